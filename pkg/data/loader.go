// Package data supplies the model with fixed-length batches of token ids.
// The core consumes only this stream; dataset acquisition and cleaning
// happen upstream.
package data

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

const int32ByteLen = 4

// Batch is one batch of token-id sequences, shape (B, L), with a parallel
// validity mask of the same shape. The mask is carried for collaborators
// that want padding-aware handling; the model forward pass does not
// consume it.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int
}

// Loader yields batches of fixed-length sequences.
type Loader interface {
	Next() (Batch, error)
	Reset()
	Batches() int
}

// TokenLoader serves batches out of an in-memory token stream, wrapping
// around at the end.
type TokenLoader struct {
	batchSize int
	seqLen    int
	tokens    []int
	pos       int
}

// NewTokenLoader creates a loader over tokens. The stream must cover at
// least one batch.
func NewTokenLoader(tokens []int, batchSize, seqLen int) (*TokenLoader, error) {
	if batchSize <= 0 || seqLen <= 1 {
		return nil, fmt.Errorf("batch size must be positive and sequence length at least 2, got %d and %d",
			batchSize, seqLen)
	}
	if len(tokens) < batchSize*seqLen {
		return nil, fmt.Errorf("token stream of %d tokens is too small for batch size %d and sequence length %d",
			len(tokens), batchSize, seqLen)
	}
	return &TokenLoader{batchSize: batchSize, seqLen: seqLen, tokens: tokens}, nil
}

// NewFileLoader reads a little-endian int32 token file and serves batches
// from it.
func NewFileLoader(filename string, batchSize, seqLen int) (*TokenLoader, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	if len(raw)%int32ByteLen != 0 {
		return nil, fmt.Errorf("token file %s is not a whole number of int32 tokens", filename)
	}
	ids := make([]int32, len(raw)/int32ByteLen)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, ids); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	tokens := make([]int, len(ids))
	for i, id := range ids {
		tokens[i] = int(id)
	}
	return NewTokenLoader(tokens, batchSize, seqLen)
}

// Batches returns how many batches make up one pass over the stream.
func (l *TokenLoader) Batches() int {
	return len(l.tokens) / (l.batchSize * l.seqLen)
}

// Next returns the next batch, wrapping to the start of the stream when
// the remainder is too short.
func (l *TokenLoader) Next() (Batch, error) {
	need := l.batchSize * l.seqLen
	if l.pos+need > len(l.tokens) {
		l.Reset()
	}
	batch := Batch{
		InputIDs:      make([][]int, l.batchSize),
		AttentionMask: make([][]int, l.batchSize),
	}
	for b := 0; b < l.batchSize; b++ {
		batch.InputIDs[b] = l.tokens[l.pos : l.pos+l.seqLen]
		l.pos += l.seqLen
		mask := make([]int, l.seqLen)
		for i := range mask {
			mask[i] = 1
		}
		batch.AttentionMask[b] = mask
	}
	return batch, nil
}

// Reset rewinds the loader to the start of the stream.
func (l *TokenLoader) Reset() {
	l.pos = 0
}
