package model

import (
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"storylm/pkg/nn"
)

// LanguageModel is a decoder-only causal transformer. It owns the token and
// position embedding tables, the ordered block stack, the final
// normalization and the vocabulary projection.
type LanguageModel struct {
	TokEmbed *nn.Param // (V, E)
	PosEmbed *nn.Param // (ContextLength, E)
	Blocks   []*TransformerBlock
	Norm     *nn.LayerNorm
	Output   *nn.Linear // (E, V)

	cfg      Config
	src      rand.Source
	rng      *rand.Rand
	training bool

	// batch holds what Backward needs from the latest training forward.
	batch []seqCache
}

type seqCache struct {
	inputs  []int
	targets []int
	probs   *mat.Dense
}

// New constructs a LanguageModel from cfg. Configuration errors are
// rejected here, not discovered mid-training.
func New(cfg Config) (*LanguageModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	src := rand.NewSource(cfg.Seed)
	rng := rand.New(src)
	m := &LanguageModel{
		TokEmbed: nn.NewParam("tok_embed", cfg.VocabSize, cfg.EmbeddingWidth, rng),
		PosEmbed: nn.NewParam("pos_embed", cfg.ContextLength, cfg.EmbeddingWidth, rng),
		Norm:     nn.NewLayerNorm("norm", cfg.EmbeddingWidth),
		Output:   nn.NewLinear("output", cfg.EmbeddingWidth, cfg.VocabSize, true, rng),
		cfg:      cfg,
		src:      src,
		rng:      rng,
	}
	m.Blocks = make([]*TransformerBlock, cfg.NumLayers)
	for i := range m.Blocks {
		m.Blocks[i] = NewTransformerBlock(fmt.Sprintf("blocks.%d", i), cfg, rng)
	}
	return m, nil
}

// Config returns the configuration the model was built from.
func (m *LanguageModel) Config() Config {
	return m.cfg
}

// SetTraining switches between training mode (dropout active, activations
// cached for Backward) and inference mode (deterministic, no caching).
// Switching discards any pending backward state, including the activation
// caches held inside every component.
func (m *LanguageModel) SetTraining(training bool) {
	m.training = training
	m.batch = nil
	for _, blk := range m.Blocks {
		blk.Reset()
	}
	m.Norm.Reset()
	m.Output.Reset()
}

// Forward runs the block stack over a batch of token-id sequences and
// returns per-sequence logits of shape (T, V). When targets are supplied
// it also returns the mean cross-entropy loss over all positions jointly;
// otherwise loss is -1. Sequences longer than ContextLength are truncated,
// and the truncation is surfaced as a warning.
func (m *LanguageModel) Forward(inputs, targets [][]int) (logits []*mat.Dense, loss float64, err error) {
	if len(inputs) == 0 {
		return nil, -1, fmt.Errorf("empty input batch")
	}
	if targets != nil && len(targets) != len(inputs) {
		return nil, -1, fmt.Errorf("target batch size %d does not match input batch size %d",
			len(targets), len(inputs))
	}
	// Loss-bearing training forwards cache activations for Backward.
	cache := m.training && targets != nil

	logits = make([]*mat.Dense, len(inputs))
	m.batch = m.batch[:0]
	var total float64
	var positions int
	for b, seq := range inputs {
		if len(seq) == 0 {
			return nil, -1, fmt.Errorf("sequence %d is empty", b)
		}
		seq = m.truncate(seq)
		var tgt []int
		if targets != nil {
			tgt = targets[b]
			if len(tgt) > len(seq) {
				tgt = tgt[:len(seq)]
			}
			if len(tgt) != len(seq) {
				return nil, -1, fmt.Errorf("sequence %d: target length %d does not match input length %d",
					b, len(tgt), len(seq))
			}
			for _, id := range tgt {
				if id < 0 || id >= m.cfg.VocabSize {
					return nil, -1, fmt.Errorf("sequence %d: target id %d outside vocabulary of size %d",
						b, id, m.cfg.VocabSize)
				}
			}
		}

		x, err := m.embed(seq)
		if err != nil {
			return nil, -1, fmt.Errorf("sequence %d: %w", b, err)
		}
		for _, blk := range m.Blocks {
			x = blk.Forward(x, cache)
		}
		x = m.Norm.Forward(x, cache)
		lg := m.Output.Forward(x, cache)
		logits[b] = lg

		if tgt != nil {
			l, probs := nn.CrossEntropy(lg, tgt)
			total += l
			positions += len(tgt)
			if cache {
				m.batch = append(m.batch, seqCache{inputs: seq, targets: tgt, probs: probs})
			}
		}
	}
	if targets == nil {
		return logits, -1, nil
	}
	return logits, total / float64(positions), nil
}

// Backward propagates the loss of the latest training forward through the
// whole stack, accumulating gradients on every parameter.
func (m *LanguageModel) Backward() error {
	if len(m.batch) == 0 {
		return fmt.Errorf("must run a training forward pass with targets before backward")
	}
	var positions int
	for _, c := range m.batch {
		positions += len(c.targets)
	}
	scale := 1 / float64(positions)
	for b := len(m.batch) - 1; b >= 0; b-- {
		c := m.batch[b]
		dx := m.Output.Backward(nn.CrossEntropyGrad(c.probs, c.targets, scale))
		dx = m.Norm.Backward(dx)
		for i := len(m.Blocks) - 1; i >= 0; i-- {
			dx = m.Blocks[i].Backward(dx)
		}
		m.embedBackward(c.inputs, dx)
	}
	m.batch = m.batch[:0]
	return nil
}

// Generate extends prefix by maxNewTokens ids, sampling each next token
// from the softmax of the final-position logits divided by temperature.
// A temperature of 1 samples the raw distribution; lower values sharpen
// it towards the argmax. The call is read-only with respect to the
// parameters; training mode is disabled throughout. Only the last
// ContextLength tokens are fed back each iteration.
func (m *LanguageModel) Generate(prefix []int, maxNewTokens int, temperature float64) ([]int, error) {
	if temperature <= 0 {
		return nil, fmt.Errorf("temperature must be positive, got %g", temperature)
	}
	if len(prefix) == 0 {
		return nil, fmt.Errorf("generation prefix must hold at least one token")
	}
	for _, id := range prefix {
		if id < 0 || id >= m.cfg.VocabSize {
			return nil, fmt.Errorf("prefix id %d outside vocabulary of size %d", id, m.cfg.VocabSize)
		}
	}
	wasTraining := m.training
	m.SetTraining(false)
	defer func() { m.training = wasTraining }()

	seq := append([]int(nil), prefix...)
	for i := 0; i < maxNewTokens; i++ {
		window := seq
		if len(window) > m.cfg.ContextLength {
			window = window[len(window)-m.cfg.ContextLength:]
		}
		logits, _, err := m.Forward([][]int{window}, nil)
		if err != nil {
			return nil, err
		}
		t, _ := logits[0].Dims()
		last := logits[0].RawRowView(t - 1)
		scaled := make([]float64, len(last))
		for j, v := range last {
			scaled[j] = v / temperature
		}
		probs := nn.SoftmaxVec(scaled)
		dist := distuv.NewCategorical(probs, m.src)
		seq = append(seq, int(dist.Rand()))
	}
	return seq, nil
}

// Params returns every trainable parameter in a stable order.
func (m *LanguageModel) Params() []*nn.Param {
	ps := []*nn.Param{m.TokEmbed, m.PosEmbed}
	for _, blk := range m.Blocks {
		ps = append(ps, blk.Params()...)
	}
	ps = append(ps, m.Norm.Params()...)
	ps = append(ps, m.Output.Params()...)
	return ps
}

// StateDict exposes the full parameter set as a mapping from parameter path
// to tensor, for serialization by an external collaborator.
func (m *LanguageModel) StateDict() map[string]*mat.Dense {
	dict := make(map[string]*mat.Dense)
	for _, p := range m.Params() {
		dict[p.Name] = p.Value
	}
	return dict
}

// LoadStateDict restores parameter values from a state dict. Every model
// parameter must be present with a matching shape.
func (m *LanguageModel) LoadStateDict(dict map[string]*mat.Dense) error {
	for _, p := range m.Params() {
		v, ok := dict[p.Name]
		if !ok {
			return fmt.Errorf("state dict is missing parameter %q", p.Name)
		}
		pr, pc := p.Value.Dims()
		vr, vc := v.Dims()
		if pr != vr || pc != vc {
			return fmt.Errorf("parameter %q has shape (%d, %d), state dict holds (%d, %d)",
				p.Name, pr, pc, vr, vc)
		}
		p.Value.Copy(v)
	}
	return nil
}

// ZeroGrad clears every parameter gradient.
func (m *LanguageModel) ZeroGrad() {
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}

// truncate enforces the context-length bound, surfacing the cut.
func (m *LanguageModel) truncate(seq []int) []int {
	if len(seq) <= m.cfg.ContextLength {
		return seq
	}
	log.Warn("truncating sequence to context length",
		"sequence_length", len(seq), "context_length", m.cfg.ContextLength)
	return seq[:m.cfg.ContextLength]
}

// embed sums token and position embeddings into the initial residual
// stream (T, E).
func (m *LanguageModel) embed(seq []int) (*mat.Dense, error) {
	x := mat.NewDense(len(seq), m.cfg.EmbeddingWidth, nil)
	for t, id := range seq {
		if id < 0 || id >= m.cfg.VocabSize {
			return nil, fmt.Errorf("token id %d outside vocabulary of size %d", id, m.cfg.VocabSize)
		}
		row := x.RawRowView(t)
		tok := m.TokEmbed.Value.RawRowView(id)
		pos := m.PosEmbed.Value.RawRowView(t)
		for j := range row {
			row[j] = tok[j] + pos[j]
		}
	}
	return x, nil
}

// embedBackward scatters the residual-stream gradient into the two
// embedding tables.
func (m *LanguageModel) embedBackward(seq []int, dx *mat.Dense) {
	for t, id := range seq {
		drow := dx.RawRowView(t)
		tok := m.TokEmbed.Grad.RawRowView(id)
		pos := m.PosEmbed.Grad.RawRowView(t)
		for j, d := range drow {
			tok[j] += d
			pos[j] += d
		}
	}
}
