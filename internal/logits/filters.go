package logits

import "math"

type candidate struct {
	id    int
	logit float32
	p     float64
}

// shortlist returns the k largest logits scaled by invTemp, largest first.
// Equal values keep ascending id order. O(V*k), for small k.
func (s *Sampler) shortlist(logits []float32, k int, invTemp float32) []candidate {
	if k <= 0 {
		return nil
	}
	if cap(s.cand) < k+1 {
		s.cand = make([]candidate, 0, k+1)
	}
	out := s.cand[:0]
	for id, l := range logits {
		v := l * invTemp
		pos := len(out)
		for pos > 0 && out[pos-1].logit < v {
			pos--
		}
		if pos >= k {
			continue
		}
		out = append(out, candidate{})
		copy(out[pos+1:], out[pos:])
		out[pos] = candidate{id: id, logit: v}
		if len(out) > k {
			out = out[:k]
		}
	}
	s.cand = out
	return out
}

// softmax fills p over sorted candidates. It reports false when the
// distribution degenerates.
func softmax(cand []candidate) bool {
	top := cand[0].logit
	var sum float64
	for i := range cand {
		e := math.Exp(float64(cand[i].logit - top))
		cand[i].p = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return false
	}
	normalize(cand, sum)
	return true
}

func normalize(cand []candidate, sum float64) {
	inv := 1 / sum
	for i := range cand {
		cand[i].p *= inv
	}
}

// minP drops candidates below frac times the top probability.
func minP(cand []candidate, frac float64) []candidate {
	threshold := cand[0].p * frac
	n := 0
	var sum float64
	for _, c := range cand {
		if c.p >= threshold {
			cand[n] = c
			sum += c.p
			n++
		}
	}
	if n < len(cand) && sum > 0 {
		normalize(cand[:n], sum)
	}
	return cand[:n]
}

// topP keeps the shortest prefix whose cumulative probability reaches p.
func topP(cand []candidate, p float32) []candidate {
	var c float64
	for i := range cand {
		c += cand[i].p
		if float32(c) >= p {
			return cand[:i+1]
		}
	}
	return cand
}

// draw selects the candidate whose cumulative range contains r in [0,1).
func draw(cand []candidate, r float64) int {
	var c float64
	for _, cd := range cand {
		c += cd.p
		if r <= c {
			return cd.id
		}
	}
	return cand[len(cand)-1].id
}

// penaltySet tracks which ids of the recent window were already penalized
// in the current call, without clearing a vocab-sized buffer each step.
type penaltySet struct {
	mark  []uint32
	epoch uint32
}

func (p *penaltySet) apply(logits []float32, window, exclude []int, penalty float32) {
	if len(p.mark) < len(logits) {
		p.mark = make([]uint32, len(logits))
	}
	p.epoch++
	if p.epoch == 0 {
		clear(p.mark)
		p.epoch = 1
	}
	// Excluded ids are marked up front so the loop below skips them.
	for _, id := range exclude {
		if id >= 0 && id < len(logits) {
			p.mark[id] = p.epoch
		}
	}
	for _, id := range window {
		if id < 0 || id >= len(logits) || p.mark[id] == p.epoch {
			continue
		}
		p.mark[id] = p.epoch
		if logits[id] > 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}
