package tensor

import "math"

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	src = src[:len(dst)]
	for i := range dst {
		dst[i] += src[i]
	}
}

// Dot returns the dot product of a and b, which must have equal length.
func Dot(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

// RMSNorm writes src scaled by its inverse root mean square and by weight
// into dst. dst and src may alias.
func RMSNorm(dst, src, weight []float32, eps float32) {
	var ss float64
	for _, v := range src {
		ss += float64(v) * float64(v)
	}
	scale := float32(1 / math.Sqrt(ss/float64(len(src))+float64(eps)))
	for i, v := range src {
		dst[i] = v * scale * weight[i]
	}
}

// Softmax normalizes x in place. An all -Inf input is left unchanged.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	top := x[0]
	for _, v := range x[1:] {
		top = max(top, v)
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - top))
		x[i] = float32(e)
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) {
		return
	}
	inv := float32(1 / sum)
	for i := range x {
		x[i] *= inv
	}
}

// SiLU writes silu(src) into dst. dst and src may alias.
func SiLU(dst, src []float32) {
	for i, v := range src {
		dst[i] = v / (1 + float32(math.Exp(float64(-v))))
	}
}

// RoPE rotates consecutive value pairs of each head by position dependent
// angles.
type RoPE struct {
	headDim int
	invFreq []float64
	cos     []float32
	sin     []float32
}

// NewRoPE panics when headDim is odd.
func NewRoPE(headDim int, theta float64) *RoPE {
	if headDim%2 != 0 {
		panic("tensor: RoPE head dimension must be even")
	}
	half := headDim / 2
	r := &RoPE{
		headDim: headDim,
		invFreq: make([]float64, half),
		cos:     make([]float32, half),
		sin:     make([]float32, half),
	}
	for i := range r.invFreq {
		r.invFreq[i] = 1 / math.Pow(theta, float64(2*i)/float64(headDim))
	}
	return r
}

// Apply rotates x, laid out as nHead heads of headDim values, for position
// pos. It is not safe for concurrent use.
func (r *RoPE) Apply(x []float32, nHead, pos int) {
	for i, f := range r.invFreq {
		s, c := math.Sincos(float64(pos) * f)
		r.cos[i], r.sin[i] = float32(c), float32(s)
	}
	for h := range nHead {
		head := x[h*r.headDim : (h+1)*r.headDim]
		for i := range r.cos {
			x0, x1 := head[2*i], head[2*i+1]
			head[2*i] = x0*r.cos[i] - x1*r.sin[i]
			head[2*i+1] = x0*r.sin[i] + x1*r.cos[i]
		}
	}
}
