package model

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"storylm/pkg/nn"
)

// AttentionHead is one head of causal self-attention. The key, query and
// value projections carry no bias term.
type AttentionHead struct {
	Key   *nn.Linear // (E, H)
	Query *nn.Linear // (E, H)
	Value *nn.Linear // (E, H)

	drop      *nn.Dropout
	headWidth int
	scale     float64

	caches []headCache
}

type headCache struct {
	q, k, v *mat.Dense
	attn    *mat.Dense // post-softmax weights
	dropped *mat.Dense // weights after the regularizing drop
}

// NewAttentionHead builds one head with projections from EmbeddingWidth
// down to HeadWidth.
func NewAttentionHead(name string, cfg Config, rng *rand.Rand) *AttentionHead {
	h := cfg.HeadWidth()
	return &AttentionHead{
		Key:       nn.NewLinear(name+".key", cfg.EmbeddingWidth, h, false, rng),
		Query:     nn.NewLinear(name+".query", cfg.EmbeddingWidth, h, false, rng),
		Value:     nn.NewLinear(name+".value", cfg.EmbeddingWidth, h, false, rng),
		drop:      nn.NewDropout(cfg.Dropout, rng),
		headWidth: h,
		scale:     1 / math.Sqrt(float64(h)),
	}
}

// Forward maps x (T, E) to (T, H). Scores between a query position i and
// key position j > i are set to -Inf before normalization, so a position
// never attends to its future. The attention rows are dropped-out during
// training without renormalizing.
func (h *AttentionHead) Forward(x *mat.Dense, train bool) *mat.Dense {
	_, e := x.Dims()
	if in, _ := h.Key.W.Value.Dims(); in != e {
		panic(fmt.Sprintf("attention head expects input width %d, got %d", in, e))
	}
	q := h.Query.Forward(x, train)
	k := h.Key.Forward(x, train)
	v := h.Value.Forward(x, train)

	t, _ := q.Dims()
	scores := mat.NewDense(t, t, nil)
	scores.Mul(q, k.T())
	scores.Scale(h.scale, scores)
	for i := 0; i < t; i++ {
		row := scores.RawRowView(i)
		for j := i + 1; j < t; j++ {
			row[j] = math.Inf(-1)
		}
	}
	nn.SoftmaxRows(scores)
	attn := scores
	dropped := h.drop.Forward(attn, train)

	out := mat.NewDense(t, h.headWidth, nil)
	out.Mul(dropped, v)
	if train {
		h.caches = append(h.caches, headCache{q: q, k: k, v: v, attn: attn, dropped: dropped})
	}
	return out
}

// Backward propagates dout (T, H) back to the head input (T, E).
func (h *AttentionHead) Backward(dout *mat.Dense) *mat.Dense {
	c := h.caches[len(h.caches)-1]
	h.caches = h.caches[:len(h.caches)-1]

	var dv mat.Dense
	dv.Mul(c.dropped.T(), dout)
	var dDropped mat.Dense
	dDropped.Mul(dout, c.v.T())
	dAttn := h.drop.Backward(&dDropped)

	// Softmax backward per row; masked positions have zero weight, so
	// their score gradient vanishes on its own.
	t, _ := dout.Dims()
	dScores := mat.NewDense(t, t, nil)
	for i := 0; i < t; i++ {
		arow := c.attn.RawRowView(i)
		drow := dAttn.RawRowView(i)
		var dot float64
		for j := range arow {
			dot += arow[j] * drow[j]
		}
		srow := dScores.RawRowView(i)
		for j := range arow {
			srow[j] = arow[j] * (drow[j] - dot)
		}
	}
	dScores.Scale(h.scale, dScores)

	var dq, dk mat.Dense
	dq.Mul(dScores, c.k)
	dk.Mul(dScores.T(), c.q)

	dx := h.Query.Backward(&dq)
	dx.Add(dx, h.Key.Backward(&dk))
	dx.Add(dx, h.Value.Backward(&dv))
	return dx
}

// Reset discards cached activations from any forward passes not yet
// consumed by Backward.
func (h *AttentionHead) Reset() {
	h.Key.Reset()
	h.Query.Reset()
	h.Value.Reset()
	h.drop.Reset()
	h.caches = nil
}

// Params returns the head's projection weights.
func (h *AttentionHead) Params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, h.Key.Params()...)
	ps = append(ps, h.Query.Params()...)
	ps = append(ps, h.Value.Params()...)
	return ps
}
