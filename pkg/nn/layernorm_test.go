package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLayerNormZeroMeanUnitVariance(t *testing.T) {
	ln := NewLayerNorm("ln", 6)
	x := mat.NewDense(2, 6, []float64{
		3, -1, 4, 1, 5, -9,
		0.1, 0.2, 0.3, 0.4, 0.5, 0.6,
	})
	y := ln.Forward(x, false)
	for i := 0; i < 2; i++ {
		var mean float64
		for j := 0; j < 6; j++ {
			mean += y.At(i, j)
		}
		mean /= 6
		assert.InDelta(t, 0.0, mean, 1e-10)
		var variance float64
		for j := 0; j < 6; j++ {
			d := y.At(i, j) - mean
			variance += d * d
		}
		variance /= 6
		assert.InDelta(t, 1.0, variance, 1e-3)
	}
}

func TestLayerNormAffine(t *testing.T) {
	ln := NewLayerNorm("ln", 3)
	ln.Scale.Value.Set(0, 0, 2)
	ln.Shift.Value.Set(0, 0, 0.5)
	x := mat.NewDense(1, 3, []float64{1, 2, 3})

	plain := NewLayerNorm("plain", 3)
	want := plain.Forward(x, false)
	got := ln.Forward(x, false)
	assert.InDelta(t, want.At(0, 0)*2+0.5, got.At(0, 0), 1e-12)
	assert.InDelta(t, want.At(0, 1), got.At(0, 1), 1e-12)
}

func TestLayerNormBackwardMatchesNumericGradient(t *testing.T) {
	ln := NewLayerNorm("ln", 4)
	x := mat.NewDense(2, 4, []float64{
		0.3, -1.2, 0.7, 2.1,
		1.5, 0.2, -0.4, 0.9,
	})
	// Scalar objective: sum of squares of the output.
	lossOf := func(x *mat.Dense) float64 {
		y := ln.Forward(x, false)
		var s float64
		r, c := y.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				s += y.At(i, j) * y.At(i, j)
			}
		}
		return s / 2
	}

	y := ln.Forward(x, true)
	dx := ln.Backward(y) // d(loss)/dy = y for the objective above

	const eps = 1e-6
	for _, idx := range [][2]int{{0, 0}, {0, 3}, {1, 1}, {1, 2}} {
		i, j := idx[0], idx[1]
		orig := x.At(i, j)
		x.Set(i, j, orig+eps)
		up := lossOf(x)
		x.Set(i, j, orig-eps)
		down := lossOf(x)
		x.Set(i, j, orig)
		require.InDelta(t, (up-down)/(2*eps), dx.At(i, j), 1e-5)
	}
}
