package nn

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
)

// Linear is a fully connected layer computing y = x*W (+ b).
//
// Forward caches its input when called in training mode; Backward pops the
// most recent cached input, so forward and backward calls must pair up in
// LIFO order across a batch.
type Linear struct {
	W *Param // (in, out)
	B *Param // (1, out), nil when the layer carries no bias

	xs []*mat.Dense
}

// NewLinear creates a linear layer. The attention projections are built
// without a bias term; everything else keeps one.
func NewLinear(name string, in, out int, bias bool, rng *rand.Rand) *Linear {
	l := &Linear{W: NewParam(name+".w", in, out, rng)}
	if bias {
		l.B = NewZeroParam(name+".b", 1, out)
	}
	return l
}

// Forward maps (T, in) to (T, out).
func (l *Linear) Forward(x *mat.Dense, train bool) *mat.Dense {
	t, _ := x.Dims()
	_, out := l.W.Value.Dims()
	y := mat.NewDense(t, out, nil)
	y.Mul(x, l.W.Value)
	if l.B != nil {
		bias := l.B.Value.RawRowView(0)
		for i := 0; i < t; i++ {
			row := y.RawRowView(i)
			for j := range row {
				row[j] += bias[j]
			}
		}
	}
	if train {
		l.xs = append(l.xs, x)
	}
	return y
}

// Backward accumulates dW and dB for the most recent training forward and
// returns the gradient with respect to that input.
func (l *Linear) Backward(dout *mat.Dense) *mat.Dense {
	x := l.xs[len(l.xs)-1]
	l.xs = l.xs[:len(l.xs)-1]

	var dw mat.Dense
	dw.Mul(x.T(), dout)
	l.W.Grad.Add(l.W.Grad, &dw)

	t, out := dout.Dims()
	if l.B != nil {
		grad := l.B.Grad.RawRowView(0)
		for i := 0; i < t; i++ {
			row := dout.RawRowView(i)
			for j := 0; j < out; j++ {
				grad[j] += row[j]
			}
		}
	}

	in, _ := l.W.Value.Dims()
	dx := mat.NewDense(t, in, nil)
	dx.Mul(dout, l.W.Value.T())
	return dx
}

// Reset discards cached inputs from any forward passes not yet consumed
// by Backward.
func (l *Linear) Reset() {
	l.xs = nil
}

// Params returns the layer's trainable parameters.
func (l *Linear) Params() []*Param {
	if l.B == nil {
		return []*Param{l.W}
	}
	return []*Param{l.W, l.B}
}
