package model

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"storylm/pkg/nn"
)

// TransformerBlock composes attention and feed-forward sublayers around the
// residual stream:
//
//	x = x + attn(norm1(x))
//	x = x + ffwd(norm2(x))
//
// Normalization is applied to each sublayer's input (pre-norm); this
// ordering is required for training stability and must not be swapped.
type TransformerBlock struct {
	Norm1 *nn.LayerNorm
	Attn  *MultiHeadAttention
	Norm2 *nn.LayerNorm
	Ffwd  *FeedForward
}

// NewTransformerBlock builds one block for the given configuration.
func NewTransformerBlock(name string, cfg Config, rng *rand.Rand) *TransformerBlock {
	return &TransformerBlock{
		Norm1: nn.NewLayerNorm(name+".norm1", cfg.EmbeddingWidth),
		Attn:  NewMultiHeadAttention(name+".attn", cfg, rng),
		Norm2: nn.NewLayerNorm(name+".norm2", cfg.EmbeddingWidth),
		Ffwd:  NewFeedForward(name+".ffwd", cfg, rng),
	}
}

// Forward preserves the (T, E) shape of the residual stream.
func (b *TransformerBlock) Forward(x *mat.Dense, train bool) *mat.Dense {
	var a mat.Dense
	a.Add(x, b.Attn.Forward(b.Norm1.Forward(x, train), train))
	var out mat.Dense
	out.Add(&a, b.Ffwd.Forward(b.Norm2.Forward(&a, train), train))
	return &out
}

// Backward propagates through both residual branches.
func (b *TransformerBlock) Backward(dout *mat.Dense) *mat.Dense {
	da := mat.DenseCopyOf(dout)
	da.Add(da, b.Norm2.Backward(b.Ffwd.Backward(dout)))
	dx := mat.DenseCopyOf(da)
	dx.Add(dx, b.Norm1.Backward(b.Attn.Backward(da)))
	return dx
}

// Reset discards cached activations in both sublayers.
func (b *TransformerBlock) Reset() {
	b.Norm1.Reset()
	b.Attn.Reset()
	b.Norm2.Reset()
	b.Ffwd.Reset()
}

// Params returns the block's parameters in a stable order.
func (b *TransformerBlock) Params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, b.Norm1.Params()...)
	ps = append(ps, b.Attn.Params()...)
	ps = append(ps, b.Norm2.Params()...)
	ps = append(ps, b.Ffwd.Params()...)
	return ps
}
