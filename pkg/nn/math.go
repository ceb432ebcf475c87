package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SoftmaxRows normalizes each row of m into a probability distribution,
// in place. The row maximum is subtracted before exponentiating so large
// positive scores cannot overflow. Rows holding -Inf entries (masked
// attention scores) end up with exactly zero weight there.
func SoftmaxRows(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		max := floats.Max(row)
		var sum float64
		for j, v := range row {
			e := math.Exp(v - max)
			row[j] = e
			sum += e
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

// SoftmaxVec returns the stable softmax of v as a new slice.
func SoftmaxVec(v []float64) []float64 {
	out := make([]float64, len(v))
	max := floats.Max(v)
	var sum float64
	for i, x := range v {
		e := math.Exp(x - max)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// CrossEntropy computes the summed negative log-likelihood of targets under
// the softmax of logits (T, V), along with the probability matrix the
// gradient needs. The caller divides by the position count to get a mean.
func CrossEntropy(logits *mat.Dense, targets []int) (loss float64, probs *mat.Dense) {
	t, v := logits.Dims()
	probs = mat.NewDense(t, v, nil)
	probs.Copy(logits)
	SoftmaxRows(probs)
	for i := 0; i < t; i++ {
		loss -= math.Log(probs.At(i, targets[i]))
	}
	return loss, probs
}

// CrossEntropyGrad returns d(loss)/d(logits) = (probs - onehot) * scale for
// the fused softmax + cross-entropy pair.
func CrossEntropyGrad(probs *mat.Dense, targets []int, scale float64) *mat.Dense {
	t, v := probs.Dims()
	dlogits := mat.NewDense(t, v, nil)
	for i := 0; i < t; i++ {
		prow := probs.RawRowView(i)
		drow := dlogits.RawRowView(i)
		for j := 0; j < v; j++ {
			drow[j] = prow[j] * scale
		}
		drow[targets[i]] -= scale
	}
	return dlogits
}
