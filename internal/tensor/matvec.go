package tensor

import (
	"runtime"
	"sync"
)

// parallelThreshold is the number of multiply-adds below which MatVec stays
// on the calling goroutine.
const parallelThreshold = 1 << 16

// MatVec computes dst = w * x where len(x) == w.C and len(dst) >= w.R.
func MatVec(dst []float32, w *Mat, x []float32) {
	if w.R == 0 || w.C == 0 {
		return
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > w.R {
		workers = w.R
	}
	if workers <= 1 || w.R*w.C < parallelThreshold {
		matVecRange(dst, w, x, 0, w.R)
		return
	}

	chunk := (w.R + workers - 1) / workers
	var wg sync.WaitGroup
	for rs := 0; rs < w.R; rs += chunk {
		re := min(rs+chunk, w.R)
		wg.Add(1)
		go func(rs, re int) {
			defer wg.Done()
			matVecRange(dst, w, x, rs, re)
		}(rs, re)
	}
	wg.Wait()
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	x = x[:w.C]
	for r := rs; r < re; r++ {
		dst[r] = Dot(w.Row(r), x)
	}
}
