package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestLinearForwardShapeAndBias(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := NewLinear("l", 3, 5, true, rng)
	l.B.Value.Set(0, 2, 1.5)
	x := mat.NewDense(4, 3, nil)
	y := l.Forward(x, false)
	r, c := y.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 5, c)
	// Zero input exposes the bias.
	assert.Equal(t, 1.5, y.At(0, 2))
	assert.Equal(t, 0.0, y.At(0, 0))
}

func TestLinearNoBias(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := NewLinear("l", 3, 2, false, rng)
	assert.Nil(t, l.B)
	assert.Len(t, l.Params(), 1)
}

func TestLinearResetDropsCachedInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := NewLinear("l", 3, 2, true, rng)
	x := mat.NewDense(2, 3, nil)
	l.Forward(x, true)
	l.Forward(x, true)
	require.Len(t, l.xs, 2)
	l.Reset()
	assert.Empty(t, l.xs)
}

func TestLinearBackwardMatchesNumericGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := NewLinear("l", 3, 2, true, rng)
	x := mat.NewDense(2, 3, []float64{0.5, -1, 2, 1.5, 0.3, -0.7})

	lossOf := func() float64 {
		y := l.Forward(x, false)
		var s float64
		r, c := y.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				s += y.At(i, j) * y.At(i, j)
			}
		}
		return s / 2
	}

	y := l.Forward(x, true)
	dx := l.Backward(y)

	const eps = 1e-6
	// Weight gradient.
	for _, idx := range [][2]int{{0, 0}, {2, 1}} {
		i, j := idx[0], idx[1]
		orig := l.W.Value.At(i, j)
		l.W.Value.Set(i, j, orig+eps)
		up := lossOf()
		l.W.Value.Set(i, j, orig-eps)
		down := lossOf()
		l.W.Value.Set(i, j, orig)
		require.InDelta(t, (up-down)/(2*eps), l.W.Grad.At(i, j), 1e-5)
	}
	// Bias gradient.
	orig := l.B.Value.At(0, 1)
	l.B.Value.Set(0, 1, orig+eps)
	up := lossOf()
	l.B.Value.Set(0, 1, orig-eps)
	down := lossOf()
	l.B.Value.Set(0, 1, orig)
	require.InDelta(t, (up-down)/(2*eps), l.B.Grad.At(0, 1), 1e-5)
	// Input gradient.
	origX := x.At(1, 2)
	x.Set(1, 2, origX+eps)
	up = lossOf()
	x.Set(1, 2, origX-eps)
	down = lossOf()
	x.Set(1, 2, origX)
	require.InDelta(t, (up-down)/(2*eps), dx.At(1, 2), 1e-5)
}
