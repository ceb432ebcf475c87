package nn

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes a random fraction of its input during training and scales
// the survivors by 1/(1-p) (inverted dropout). When applied to attention
// rows the rows are deliberately not renormalized afterwards. In inference
// mode it is a deterministic no-op.
type Dropout struct {
	P float64

	rng   *rand.Rand
	masks []*mat.Dense
}

// NewDropout creates a dropout layer with drop probability p.
func NewDropout(p float64, rng *rand.Rand) *Dropout {
	return &Dropout{P: p, rng: rng}
}

// Forward applies the random drop in training mode and returns x unchanged
// otherwise. The mask is cached so Backward can replay it.
func (d *Dropout) Forward(x *mat.Dense, train bool) *mat.Dense {
	if !train {
		return x
	}
	if d.P == 0 {
		d.masks = append(d.masks, nil)
		return x
	}
	t, c := x.Dims()
	mask := mat.NewDense(t, c, nil)
	y := mat.NewDense(t, c, nil)
	keep := 1 / (1 - d.P)
	for i := 0; i < t; i++ {
		xrow := x.RawRowView(i)
		mrow := mask.RawRowView(i)
		yrow := y.RawRowView(i)
		for j := range xrow {
			if d.rng.Float64() >= d.P {
				mrow[j] = keep
				yrow[j] = xrow[j] * keep
			}
		}
	}
	d.masks = append(d.masks, mask)
	return y
}

// Reset discards masks from any forward passes not yet consumed by
// Backward.
func (d *Dropout) Reset() {
	d.masks = nil
}

// Backward replays the mask of the most recent training forward.
func (d *Dropout) Backward(dout *mat.Dense) *mat.Dense {
	mask := d.masks[len(d.masks)-1]
	d.masks = d.masks[:len(d.masks)-1]
	if mask == nil {
		return dout
	}
	var dx mat.Dense
	dx.MulElem(dout, mask)
	return &dx
}
