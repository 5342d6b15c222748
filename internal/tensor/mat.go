package tensor

import (
	"fmt"
	"math/rand"
)

// Mat is a dense row-major matrix of float32 values.
//
// R and C are the number of rows and columns. Out-of-range indices panic
// through Go's slice bounds checks.
type Mat struct {
	R, C int
	Data []float32
}

// NewMat allocates a zeroed r x c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{R: r, C: c, Data: make([]float32, r*c)}
}

// NewMatFromData wraps data as an r x c matrix without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, fmt.Errorf("negative dimension %dx%d", r, c)
	}
	if r*c != len(data) {
		return Mat{}, fmt.Errorf("data length %d does not match %dx%d", len(data), r, c)
	}
	return Mat{R: r, C: c, Data: data}, nil
}

// Row returns a view of row i.
func (m *Mat) Row(i int) []float32 {
	return m.Data[i*m.C : (i+1)*m.C]
}

// Bytes returns the storage size of the matrix payload.
func (m *Mat) Bytes() int64 {
	return int64(len(m.Data)) * 4
}

// FillRand fills m with small deterministic values derived from seed,
// roughly in (-scale/2, scale/2).
func FillRand(m *Mat, seed int64, scale float32) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.Data {
		m.Data[i] = (rng.Float32() - 0.5) * scale
	}
}
