package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocr-eval/harness/pkg/config"
	"github.com/ocr-eval/harness/pkg/logger"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate LLM cleaning of OCR text",
	Long: `Evaluate how well LLMs clean OCR text against a ground-truth edition.

The pipeline cleans every dataset item with each configured model, scores the
output with WER and CER, asks a judge model for a 0-5 rating, and measures
how closely the judge agrees with human annotators.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logger.Init(cfg.Logging.Level, "console", "stderr")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(runCmd, agreementCmd, scoreCmd, subsetCmd, extractCmd, importHTMLCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
