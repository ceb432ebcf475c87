package model

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"storylm/pkg/nn"
)

// expansionFactor widens the hidden layer of the position-wise network.
const expansionFactor = 4

// FeedForward is the position-wise expand/activate/contract network applied
// identically and independently to every position.
type FeedForward struct {
	Expand   *nn.Linear // (E, expansionFactor*E)
	Contract *nn.Linear // (expansionFactor*E, E)

	act  *nn.ReLU
	drop *nn.Dropout
}

// NewFeedForward builds the two projections for the given embedding width.
func NewFeedForward(name string, cfg Config, rng *rand.Rand) *FeedForward {
	hidden := expansionFactor * cfg.EmbeddingWidth
	return &FeedForward{
		Expand:   nn.NewLinear(name+".expand", cfg.EmbeddingWidth, hidden, true, rng),
		Contract: nn.NewLinear(name+".contract", hidden, cfg.EmbeddingWidth, true, rng),
		act:      &nn.ReLU{},
		drop:     nn.NewDropout(cfg.Dropout, rng),
	}
}

// Forward maps (T, E) to (T, E) with no interaction across positions.
func (f *FeedForward) Forward(x *mat.Dense, train bool) *mat.Dense {
	h := f.Expand.Forward(x, train)
	h = f.act.Forward(h, train)
	h = f.Contract.Forward(h, train)
	return f.drop.Forward(h, train)
}

// Backward runs the chain in reverse.
func (f *FeedForward) Backward(dout *mat.Dense) *mat.Dense {
	dh := f.drop.Backward(dout)
	dh = f.Contract.Backward(dh)
	dh = f.act.Backward(dh)
	return f.Expand.Backward(dh)
}

// Reset discards cached activations from any forward passes not yet
// consumed by Backward.
func (f *FeedForward) Reset() {
	f.Expand.Reset()
	f.act.Reset()
	f.Contract.Reset()
	f.drop.Reset()
}

// Params returns both projections' parameters.
func (f *FeedForward) Params() []*nn.Param {
	return append(f.Expand.Params(), f.Contract.Params()...)
}
