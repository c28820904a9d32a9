package tensor

import (
	"math/rand"
)

// Mat represents a dense row‑major matrix of float32 values.
//
// R and C represent the number of rows and columns respectively.  Stride is the
// number of elements between the starts of two consecutive rows (for row‑major
// matrices this is equal to C).  Data holds the flattened matrix values.
//
// Mat does not perform any memory safety beyond the checks performed by Go's
// slice types; out‑of‑range indices will panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a new matrix with the given number of rows and columns.
// The underlying slice is zero initialised.  The stride is set to the
// number of columns.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float32, r*c),
	}
}

// NewMatFromData creates a matrix from existing data.
// It checks that the data length matches r*c.
func NewMatFromData(r, c int, data []float32) Mat {
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}
}

// Row returns a view of the i‑th row of the matrix as a slice.  The slice
// has length equal to the number of columns.  Modifications to the returned
// slice update the underlying matrix values.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// FillRand fills the matrix with reproducible pseudo‑random values.  A small
// range around zero is used to avoid overflow in accumulations.  The seed
// controls the random sequence; multiple calls with the same seed produce
// identical matrices.
func FillRand(m *Mat, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.Data {
		m.Data[i] = (rng.Float32() - 0.5) * 0.02 // roughly in (-0.01,0.01)
	}
}

// Tensor3 is a dense batch-major [B x T x V] block of float32 values, the
// shape of per-position vocabulary scores produced by a sequence model.
type Tensor3 struct {
	B, T, V int
	Data    []float32
}

// NewTensor3 allocates a zeroed [b x t x v] tensor.
func NewTensor3(b, t, v int) *Tensor3 {
	if b < 0 || t < 0 || v < 0 {
		panic("negative dimension for tensor")
	}
	return &Tensor3{B: b, T: t, V: v, Data: make([]float32, b*t*v)}
}

// At returns the V-length slice for batch row b at position t.
func (x *Tensor3) At(b, t int) []float32 {
	if b < 0 || b >= x.B || t < 0 || t >= x.T {
		panic("tensor index out of range")
	}
	start := (b*x.T + t) * x.V
	return x.Data[start : start+x.V]
}

// Tokens is a rectangular row-major matrix of token indices. Rows shorter
// than C are right-padded by whoever builds the matrix.
type Tokens struct {
	R, C int
	Data []int
}

// NewTokens allocates an r x c token matrix with every cell set to fill.
func NewTokens(r, c, fill int) Tokens {
	if r < 0 || c < 0 {
		panic("negative dimension for tokens")
	}
	data := make([]int, r*c)
	if fill != 0 {
		for i := range data {
			data[i] = fill
		}
	}
	return Tokens{R: r, C: c, Data: data}
}

// Row returns a view of the i-th row.
func (t Tokens) Row(i int) []int {
	if i < 0 || i >= t.R {
		panic("row index out of range")
	}
	return t.Data[i*t.C : (i+1)*t.C]
}

// Slice returns a copy holding columns [from, to) of every row.
func (t Tokens) Slice(from, to int) Tokens {
	if from < 0 || to > t.C || from > to {
		panic("column slice out of range")
	}
	out := Tokens{R: t.R, C: to - from, Data: make([]int, t.R*(to-from))}
	for i := 0; i < t.R; i++ {
		copy(out.Row(i), t.Row(i)[from:to])
	}
	return out
}

// Gather returns a copy of t whose rows are t's rows in the given order.
func (t Tokens) Gather(order []int) Tokens {
	out := Tokens{R: len(order), C: t.C, Data: make([]int, len(order)*t.C)}
	for i, src := range order {
		copy(out.Row(i), t.Row(src))
	}
	return out
}

// GatherRows returns a copy of m whose rows are m's rows in the given order.
func GatherRows(m *Mat, order []int) Mat {
	out := NewMat(len(order), m.C)
	for i, src := range order {
		copy(out.Row(i), m.Row(src))
	}
	return out
}

// Param is a trainable parameter block together with its accumulated
// gradient. Data and Grad always have the same length.
type Param struct {
	Name string
	Data []float32
	Grad []float32
}

// NewParam wraps data as a parameter with a zeroed gradient buffer.
func NewParam(name string, data []float32) *Param {
	return &Param{Name: name, Data: data, Grad: make([]float32, len(data))}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	clear(p.Grad)
}
