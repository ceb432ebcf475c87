package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// layerNormEps keeps the variance division away from zero.
const layerNormEps = 1e-5

// LayerNorm re-centers and rescales each row of its input to zero mean and
// unit variance, then applies a learned affine transform (scale and shift).
type LayerNorm struct {
	Scale *Param // (1, dim), starts at 1
	Shift *Param // (1, dim), starts at 0
	Eps   float64

	caches []lnCache
}

type lnCache struct {
	xhat   *mat.Dense
	invStd []float64
}

// NewLayerNorm creates a LayerNorm over feature vectors of the given width.
func NewLayerNorm(name string, dim int) *LayerNorm {
	return &LayerNorm{
		Scale: NewConstParam(name+".scale", 1, dim, 1),
		Shift: NewZeroParam(name+".shift", 1, dim),
		Eps:   layerNormEps,
	}
}

// Forward normalizes every row of x independently.
func (ln *LayerNorm) Forward(x *mat.Dense, train bool) *mat.Dense {
	t, dim := x.Dims()
	scale := ln.Scale.Value.RawRowView(0)
	shift := ln.Shift.Value.RawRowView(0)

	y := mat.NewDense(t, dim, nil)
	xhat := mat.NewDense(t, dim, nil)
	invStd := make([]float64, t)
	for i := 0; i < t; i++ {
		row := x.RawRowView(i)
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(dim)
		var variance float64
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(dim)
		s := 1 / math.Sqrt(variance+ln.Eps)
		invStd[i] = s

		xh := xhat.RawRowView(i)
		out := y.RawRowView(i)
		for j, v := range row {
			xh[j] = (v - mean) * s
			out[j] = xh[j]*scale[j] + shift[j]
		}
	}
	if train {
		ln.caches = append(ln.caches, lnCache{xhat: xhat, invStd: invStd})
	}
	return y
}

// Backward accumulates scale/shift gradients and returns the input gradient
// for the most recent training forward.
func (ln *LayerNorm) Backward(dout *mat.Dense) *mat.Dense {
	c := ln.caches[len(ln.caches)-1]
	ln.caches = ln.caches[:len(ln.caches)-1]

	t, dim := dout.Dims()
	scale := ln.Scale.Value.RawRowView(0)
	dscale := ln.Scale.Grad.RawRowView(0)
	dshift := ln.Shift.Grad.RawRowView(0)

	dx := mat.NewDense(t, dim, nil)
	for i := 0; i < t; i++ {
		drow := dout.RawRowView(i)
		xh := c.xhat.RawRowView(i)

		var meanDxhat, meanDxhatXhat float64
		for j, d := range drow {
			dxh := d * scale[j]
			meanDxhat += dxh
			meanDxhatXhat += dxh * xh[j]
			dscale[j] += d * xh[j]
			dshift[j] += d
		}
		meanDxhat /= float64(dim)
		meanDxhatXhat /= float64(dim)

		out := dx.RawRowView(i)
		for j, d := range drow {
			dxh := d * scale[j]
			out[j] = c.invStd[i] * (dxh - meanDxhat - xh[j]*meanDxhatXhat)
		}
	}
	return dx
}

// Reset discards cached activations from any forward passes not yet
// consumed by Backward.
func (ln *LayerNorm) Reset() {
	ln.caches = nil
}

// Params returns the learned affine parameters.
func (ln *LayerNorm) Params() []*Param {
	return []*Param{ln.Scale, ln.Shift}
}
