// Package model implements a decoder-only causal transformer language
// model: token and position embeddings, a stack of pre-norm transformer
// blocks, a vocabulary projection, teacher-forced loss, hand-written
// backpropagation, and autoregressive sampling.
package model

import "fmt"

// Config is the full hyperparameter surface of the model. It is passed
// explicitly to every component at construction; nothing reads ambient
// state.
type Config struct {
	// VocabSize is the number of distinct token ids.
	VocabSize int
	// EmbeddingWidth is the width of the residual stream.
	EmbeddingWidth int
	// ContextLength is the longest sequence the model can attend over.
	ContextLength int
	// NumLayers is the number of transformer blocks.
	NumLayers int
	// NumHeads is the number of attention heads per block.
	NumHeads int
	// Dropout is the drop probability used by every regularizing drop.
	Dropout float64
	// Seed drives weight initialization, dropout and sampling.
	Seed uint64
	// Device selects the execution device. Only "cpu" is honored.
	Device string
}

// DefaultConfig mirrors the hyperparameters the model was originally
// trained with on BookCorpus.
func DefaultConfig() Config {
	return Config{
		VocabSize:      50257,
		EmbeddingWidth: 512,
		ContextLength:  128,
		NumLayers:      6,
		NumHeads:       8,
		Dropout:        0.1,
		Seed:           1337,
		Device:         "cpu",
	}
}

// HeadWidth is the per-head feature width.
func (c Config) HeadWidth() int {
	return c.EmbeddingWidth / c.NumHeads
}

// Validate rejects configurations the model cannot be built from.
func (c Config) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab size must be positive, got %d", c.VocabSize)
	}
	if c.EmbeddingWidth <= 0 {
		return fmt.Errorf("embedding width must be positive, got %d", c.EmbeddingWidth)
	}
	if c.ContextLength <= 0 {
		return fmt.Errorf("context length must be positive, got %d", c.ContextLength)
	}
	if c.NumLayers <= 0 {
		return fmt.Errorf("number of layers must be positive, got %d", c.NumLayers)
	}
	if c.NumHeads <= 0 {
		return fmt.Errorf("number of heads must be positive, got %d", c.NumHeads)
	}
	if c.EmbeddingWidth%c.NumHeads != 0 {
		return fmt.Errorf("embedding width %d is not divisible by head count %d",
			c.EmbeddingWidth, c.NumHeads)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout rate must be in [0, 1), got %g", c.Dropout)
	}
	switch c.Device {
	case "", "cpu":
	default:
		return fmt.Errorf("unsupported device %q", c.Device)
	}
	return nil
}
