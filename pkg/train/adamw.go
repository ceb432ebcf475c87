// Package train drives gradient-descent training of the language model:
// an AdamW optimizer and an epoch/batch trainer with loss bookkeeping.
package train

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"storylm/pkg/nn"
)

// AdamW applies bias-corrected Adam moments with decoupled weight decay.
// Steps are strictly sequential; the moment buffers are owned here, one
// pair per parameter.
type AdamW struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64

	params []*nn.Param
	m      []*mat.Dense
	v      []*mat.Dense
	step   int
}

// NewAdamW creates an optimizer over params with the usual Adam defaults.
func NewAdamW(params []*nn.Param, learningRate, weightDecay float64) *AdamW {
	o := &AdamW{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  weightDecay,
		params:       params,
		m:            make([]*mat.Dense, len(params)),
		v:            make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		o.m[i] = mat.NewDense(r, c, nil)
		o.v[i] = mat.NewDense(r, c, nil)
	}
	return o
}

// Step applies one update from the gradients currently accumulated on the
// parameters.
func (o *AdamW) Step() {
	o.step++
	c1 := 1 - math.Pow(o.Beta1, float64(o.step))
	c2 := 1 - math.Pow(o.Beta2, float64(o.step))
	for i, p := range o.params {
		val := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		mom := o.m[i].RawMatrix().Data
		vel := o.v[i].RawMatrix().Data
		for j, g := range grad {
			m := o.Beta1*mom[j] + (1-o.Beta1)*g
			v := o.Beta2*vel[j] + (1-o.Beta2)*g*g
			mom[j] = m
			vel[j] = v
			mHat := m / c1
			vHat := v / c2
			val[j] -= o.LearningRate * (mHat/(math.Sqrt(vHat)+o.Epsilon) + o.WeightDecay*val[j])
		}
	}
}

// ZeroGrad clears every parameter gradient.
func (o *AdamW) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}
