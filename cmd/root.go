// Package cmd contains the storylm command line interface.
package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"storylm/pkg/model"
)

// rootArgs holds the flag values shared by the subcommands.
type rootArgs struct {
	verbose bool

	vocabSize      int
	embeddingWidth int
	contextLength  int
	numLayers      int
	numHeads       int
	dropout        float64
	seed           uint64
	device         string

	checkpointPath string
	vocabPath      string
}

var args rootArgs

// modelConfig assembles the model configuration from the shared flags.
func (a *rootArgs) modelConfig() model.Config {
	return model.Config{
		VocabSize:      a.vocabSize,
		EmbeddingWidth: a.embeddingWidth,
		ContextLength:  a.contextLength,
		NumLayers:      a.numLayers,
		NumHeads:       a.numHeads,
		Dropout:        a.dropout,
		Seed:           a.seed,
		Device:         a.device,
	}
}

var rootCmd = &cobra.Command{
	Use:   "storylm",
	Short: "Train and sample a small decoder-only transformer language model",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if args.verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaults := model.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&args.verbose, "verbose", "v", false, "Enable debug logging")
	pf.IntVar(&args.vocabSize, "vocab-size", defaults.VocabSize, "Vocabulary size")
	pf.IntVar(&args.embeddingWidth, "embedding-width", defaults.EmbeddingWidth, "Residual stream width")
	pf.IntVar(&args.contextLength, "context-length", defaults.ContextLength, "Maximum attendable sequence length")
	pf.IntVar(&args.numLayers, "layers", defaults.NumLayers, "Number of transformer blocks")
	pf.IntVar(&args.numHeads, "heads", defaults.NumHeads, "Attention heads per block")
	pf.Float64Var(&args.dropout, "dropout", defaults.Dropout, "Dropout rate")
	pf.Uint64Var(&args.seed, "seed", defaults.Seed, "Seed for initialization, dropout and sampling")
	pf.StringVar(&args.device, "device", defaults.Device, "Execution device")
	pf.StringVar(&args.checkpointPath, "checkpoint", "model.ckpt", "Checkpoint file path")
	pf.StringVar(&args.vocabPath, "vocab", "", "Vocabulary file path (byte-level when empty)")

	rootCmd.AddCommand(newTrainCommand())
	rootCmd.AddCommand(newGenerateCommand())
}
