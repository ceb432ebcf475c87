package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"storylm/pkg/checkpoint"
	"storylm/pkg/model"
	"storylm/pkg/tokenizer"
)

func newGenerateCommand() *cobra.Command {
	var (
		prompt       string
		maxNewTokens int
		temperature  float64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Sample text from a trained checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := model.New(args.modelConfig())
			if err != nil {
				return err
			}
			dict, err := checkpoint.Load(args.checkpointPath)
			if err != nil {
				return err
			}
			if err := m.LoadStateDict(dict); err != nil {
				return fmt.Errorf("restoring checkpoint: %w", err)
			}

			var tok tokenizer.Tokenizer
			if args.vocabPath == "" {
				tok = tokenizer.NewByteLevel()
			} else if tok, err = tokenizer.NewFromFile(args.vocabPath); err != nil {
				return err
			}
			prefix, err := tok.Encode(prompt)
			if err != nil {
				return fmt.Errorf("encoding prompt: %w", err)
			}

			seq, err := m.Generate(prefix, maxNewTokens, temperature)
			if err != nil {
				return fmt.Errorf("generating: %w", err)
			}
			text, err := tok.Decode(seq)
			if err != nil {
				return fmt.Errorf("decoding sample: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt to continue from")
	cmd.Flags().IntVarP(&maxNewTokens, "max-new-tokens", "n", 64, "Number of tokens to sample")
	cmd.Flags().Float64VarP(&temperature, "temperature", "T", 1.0, "Sampling temperature (1 samples the raw distribution)")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}
