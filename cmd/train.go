package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"storylm/pkg/checkpoint"
	"storylm/pkg/data"
	"storylm/pkg/model"
	"storylm/pkg/train"
)

func newTrainCommand() *cobra.Command {
	var (
		datasetPath  string
		evalPath     string
		epochs       int
		batchSize    int
		seqLength    int
		learningRate float64
		weightDecay  float64
		logEvery     int
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the model on a binary token file",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := args.modelConfig()
			m, err := model.New(cfg)
			if err != nil {
				return err
			}
			trainLoader, err := data.NewFileLoader(datasetPath, batchSize, seqLength)
			if err != nil {
				return fmt.Errorf("training data: %w", err)
			}
			if evalPath == "" {
				evalPath = datasetPath
			}
			evalLoader, err := data.NewFileLoader(evalPath, batchSize, seqLength)
			if err != nil {
				return fmt.Errorf("evaluation data: %w", err)
			}

			opt := train.NewAdamW(m.Params(), learningRate, weightDecay)
			trainer := train.New(m, opt, epochs)
			trainer.LogEvery = logEvery
			log.Info("starting training",
				"layers", cfg.NumLayers, "heads", cfg.NumHeads,
				"embedding_width", cfg.EmbeddingWidth, "context_length", cfg.ContextLength,
				"device", cfg.Device,
				"batches_per_epoch", trainLoader.Batches())
			if _, err := trainer.Run(trainLoader, evalLoader); err != nil {
				return fmt.Errorf("training: %w", err)
			}
			if err := checkpoint.Save(args.checkpointPath, m.StateDict()); err != nil {
				return err
			}
			log.Info("saved checkpoint", "path", args.checkpointPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "dataset.bin", "Training token file")
	cmd.Flags().StringVar(&evalPath, "eval-dataset", "", "Held-out token file (defaults to the training file)")
	cmd.Flags().IntVarP(&epochs, "epochs", "e", 1, "Number of epochs")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 8, "Sequences per batch")
	cmd.Flags().IntVarP(&seqLength, "seq-length", "l", 128, "Tokens per sequence")
	cmd.Flags().Float64VarP(&learningRate, "learning-rate", "r", 3e-4, "Learning rate")
	cmd.Flags().Float64VarP(&weightDecay, "weight-decay", "w", 0.01, "Weight decay")
	cmd.Flags().IntVar(&logEvery, "log-every", 10, "Report batch loss every N batches (0 disables)")
	return cmd
}
