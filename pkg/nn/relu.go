package nn

import "gonum.org/v1/gonum/mat"

// ReLU clamps negative activations to zero.
type ReLU struct {
	masks []*mat.Dense
}

// Forward applies max(0, x) elementwise.
func (r *ReLU) Forward(x *mat.Dense, train bool) *mat.Dense {
	t, c := x.Dims()
	y := mat.NewDense(t, c, nil)
	var mask *mat.Dense
	if train {
		mask = mat.NewDense(t, c, nil)
	}
	for i := 0; i < t; i++ {
		xrow := x.RawRowView(i)
		yrow := y.RawRowView(i)
		for j, v := range xrow {
			if v > 0 {
				yrow[j] = v
				if mask != nil {
					mask.Set(i, j, 1)
				}
			}
		}
	}
	if train {
		r.masks = append(r.masks, mask)
	}
	return y
}

// Reset discards masks from any forward passes not yet consumed by
// Backward.
func (r *ReLU) Reset() {
	r.masks = nil
}

// Backward passes gradient through where the input was positive.
func (r *ReLU) Backward(dout *mat.Dense) *mat.Dense {
	mask := r.masks[len(r.masks)-1]
	r.masks = r.masks[:len(r.masks)-1]
	var dx mat.Dense
	dx.MulElem(dout, mask)
	return &dx
}
