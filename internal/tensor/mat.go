package tensor

import (
	"fmt"
	"math/rand/v2"
)

// Mat represents a dense row-major matrix of float32 values.
//
// R and C are the number of rows and columns. Stride is the number of
// elements between the starts of two consecutive rows (equal to C for
// matrices built by this package). Out-of-range indices panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a zeroed r x c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{R: r, C: c, Stride: c, Data: make([]float32, r*c)}
}

// NewMatFromData wraps existing row-major data without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, fmt.Errorf("negative dimension %dx%d", r, c)
	}
	if r*c != len(data) {
		return Mat{}, fmt.Errorf("data length %d does not match %dx%d", len(data), r, c)
	}
	return Mat{R: r, C: c, Stride: c, Data: data}, nil
}

// Row returns a view of row i. Writes through the slice update the matrix.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// FillRand fills m with reproducible values in roughly (-0.01, 0.01).
func FillRand(m *Mat, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	for i := range m.Data {
		m.Data[i] = (rng.Float32() - 0.5) * 0.02
	}
}
