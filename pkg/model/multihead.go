package model

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"storylm/pkg/nn"
)

// MultiHeadAttention runs NumHeads independent attention heads over the
// same input, concatenates their outputs in ascending head order, and
// recombines them with a single linear projection followed by dropout.
type MultiHeadAttention struct {
	Heads []*AttentionHead
	Proj  *nn.Linear // (NumHeads*H, E)

	drop      *nn.Dropout
	headWidth int
}

// NewMultiHeadAttention builds the head set and the combining projection.
func NewMultiHeadAttention(name string, cfg Config, rng *rand.Rand) *MultiHeadAttention {
	heads := make([]*AttentionHead, cfg.NumHeads)
	for i := range heads {
		heads[i] = NewAttentionHead(fmt.Sprintf("%s.heads.%d", name, i), cfg, rng)
	}
	return &MultiHeadAttention{
		Heads:     heads,
		Proj:      nn.NewLinear(name+".proj", cfg.NumHeads*cfg.HeadWidth(), cfg.EmbeddingWidth, true, rng),
		drop:      nn.NewDropout(cfg.Dropout, rng),
		headWidth: cfg.HeadWidth(),
	}
}

// Forward maps x (T, E) back to (T, E).
func (m *MultiHeadAttention) Forward(x *mat.Dense, train bool) *mat.Dense {
	t, _ := x.Dims()
	concat := mat.NewDense(t, len(m.Heads)*m.headWidth, nil)
	for i, head := range m.Heads {
		out := head.Forward(x, train)
		seg := concat.Slice(0, t, i*m.headWidth, (i+1)*m.headWidth).(*mat.Dense)
		seg.Copy(out)
	}
	proj := m.Proj.Forward(concat, train)
	return m.drop.Forward(proj, train)
}

// Backward splits the projection gradient back across the heads and sums
// their input gradients.
func (m *MultiHeadAttention) Backward(dout *mat.Dense) *mat.Dense {
	dproj := m.drop.Backward(dout)
	dconcat := m.Proj.Backward(dproj)
	t, _ := dconcat.Dims()

	var dx *mat.Dense
	for i := len(m.Heads) - 1; i >= 0; i-- {
		seg := mat.DenseCopyOf(dconcat.Slice(0, t, i*m.headWidth, (i+1)*m.headWidth))
		dh := m.Heads[i].Backward(seg)
		if dx == nil {
			dx = dh
		} else {
			dx.Add(dx, dh)
		}
	}
	return dx
}

// Reset discards cached activations across every head and the projection.
func (m *MultiHeadAttention) Reset() {
	for _, head := range m.Heads {
		head.Reset()
	}
	m.Proj.Reset()
	m.drop.Reset()
}

// Params returns the parameters of every head plus the projection.
func (m *MultiHeadAttention) Params() []*nn.Param {
	var ps []*nn.Param
	for _, head := range m.Heads {
		ps = append(ps, head.Params()...)
	}
	ps = append(ps, m.Proj.Params()...)
	return ps
}
