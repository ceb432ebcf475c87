package train

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"storylm/pkg/data"
	"storylm/pkg/model"
)

// EpochStats is the per-epoch record emitted to the caller.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	EvalLoss  float64
	Duration  time.Duration
}

// Trainer drives epochs and batches: teacher-forced forward, backward,
// one optimizer step per batch, and a gradient-free evaluation pass after
// every epoch.
type Trainer struct {
	Model  *model.LanguageModel
	Opt    *AdamW
	Epochs int
	// LogEvery reports the per-batch loss every LogEvery batches;
	// zero disables batch-level reporting.
	LogEvery int
}

// New creates a trainer for the given model and optimizer.
func New(m *model.LanguageModel, opt *AdamW, epochs int) *Trainer {
	return &Trainer{Model: m, Opt: opt, Epochs: epochs}
}

// Run trains for the configured number of epochs and returns one stats
// record per epoch. Any forward/backward failure aborts immediately.
func (t *Trainer) Run(trainLoader, evalLoader data.Loader) ([]EpochStats, error) {
	stats := make([]EpochStats, 0, t.Epochs)
	for epoch := 0; epoch < t.Epochs; epoch++ {
		start := time.Now()
		trainLoss, err := t.trainEpoch(epoch, trainLoader)
		if err != nil {
			return stats, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		evalLoss, err := t.Evaluate(evalLoader)
		if err != nil {
			return stats, fmt.Errorf("epoch %d eval: %w", epoch, err)
		}
		record := EpochStats{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			EvalLoss:  evalLoss,
			Duration:  time.Since(start),
		}
		stats = append(stats, record)
		log.Info("epoch complete",
			"epoch", epoch,
			"train_loss", fmt.Sprintf("%.4f", trainLoss),
			"eval_loss", fmt.Sprintf("%.4f", evalLoss),
			"took", record.Duration)
		trainLoader.Reset()
		evalLoader.Reset()
	}
	return stats, nil
}

func (t *Trainer) trainEpoch(epoch int, loader data.Loader) (float64, error) {
	t.Model.SetTraining(true)
	var sum float64
	batches := loader.Batches()
	for i := 0; i < batches; i++ {
		batch, err := loader.Next()
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		inputs, targets := shift(batch.InputIDs)
		_, loss, err := t.Model.Forward(inputs, targets)
		if err != nil {
			return 0, fmt.Errorf("batch %d forward: %w", i, err)
		}
		t.Model.ZeroGrad()
		if err := t.Model.Backward(); err != nil {
			return 0, fmt.Errorf("batch %d backward: %w", i, err)
		}
		t.Opt.Step()
		sum += loss
		if t.LogEvery > 0 && (i+1)%t.LogEvery == 0 {
			log.Info("batch", "epoch", epoch, "batch", i+1, "of", batches,
				"loss", fmt.Sprintf("%.4f", loss))
		}
	}
	if batches == 0 {
		return 0, fmt.Errorf("training loader yielded no batches")
	}
	return sum / float64(batches), nil
}

// Evaluate runs a forward-only pass over the held-out stream and returns
// the mean loss. No gradients are computed and no parameters move.
func (t *Trainer) Evaluate(loader data.Loader) (float64, error) {
	t.Model.SetTraining(false)
	var sum float64
	batches := loader.Batches()
	if batches == 0 {
		return 0, fmt.Errorf("evaluation loader yielded no batches")
	}
	for i := 0; i < batches; i++ {
		batch, err := loader.Next()
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		inputs, targets := shift(batch.InputIDs)
		_, loss, err := t.Model.Forward(inputs, targets)
		if err != nil {
			return 0, fmt.Errorf("batch %d forward: %w", i, err)
		}
		sum += loss
	}
	return sum / float64(batches), nil
}

// shift frames next-token prediction: inputs are each sequence without its
// last token, targets the same sequence shifted one position left.
func shift(rows [][]int) (inputs, targets [][]int) {
	inputs = make([][]int, len(rows))
	targets = make([][]int, len(rows))
	for i, row := range rows {
		inputs[i] = row[:len(row)-1]
		targets[i] = row[1:]
	}
	return inputs, targets
}
