// Package nn contains the numeric building blocks the model is assembled
// from: trainable parameters, linear and normalization layers, dropout, and
// the softmax/cross-entropy kernels. All matrices are gonum mat.Dense.
package nn

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
)

// InitStd is the standard deviation every weight matrix is drawn with.
// Biases and shifts start at exactly zero, normalization scales at one.
// This is the single initialization policy for the whole model.
const InitStd = 0.02

// Param is one trainable matrix together with the gradient accumulated
// for it during the backward pass.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam draws a (rows, cols) weight matrix from N(0, InitStd^2).
func NewParam(name string, rows, cols int, rng *rand.Rand) *Param {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * InitStd
	}
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, data),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// NewZeroParam creates a parameter initialized to zero (biases, shifts).
func NewZeroParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// NewConstParam creates a parameter with every entry set to v.
func NewConstParam(name string, rows, cols int, v float64) *Param {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, data),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}
