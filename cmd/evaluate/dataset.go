package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/ingestion"
	"github.com/ocr-eval/harness/pkg/logger"
)

var (
	subsetOCR    string
	subsetClean  string
	subsetSize   int
	subsetOutput string

	extractOutput string

	importOutput   string
	importMinChars int
)

var subsetCmd = &cobra.Command{
	Use:   "subset",
	Short: "Pair OCR and clean texts by key and keep the first N items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ocr, err := dataset.LoadTexts(subsetOCR)
		if err != nil {
			return err
		}
		clean, err := dataset.LoadTexts(subsetClean)
		if err != nil {
			return err
		}

		merged, warnings := dataset.Merge(ocr, clean)
		for _, w := range warnings {
			logger.Warn(w)
		}

		subset, err := dataset.Subset(merged, subsetSize)
		if err != nil {
			return err
		}

		output := valueOr(subsetOutput, cfg.Paths.Dataset)
		if err := dataset.SaveEntries(output, subset); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Subset of %d items saved to %s\n", len(subset), output)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [results-file]",
	Short: "Flatten pipeline results into one record per item with a field per model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Paths.Results
		if len(args) == 1 {
			path = args[0]
		}

		items, err := dataset.LoadResults(path)
		if err != nil {
			return err
		}

		if err := dataset.SaveExtract(extractOutput, dataset.ExtractByModel(items)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d items to %s\n", len(items), extractOutput)
		return nil
	},
}

var importHTMLCmd = &cobra.Command{
	Use:   "import-html <edition.html>",
	Short: "Split an HTML edition into chapters for the clean side of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		opts := ingestion.DefaultOptions()
		opts.MinChars = importMinChars
		chapters, err := ingestion.NewProcessor(opts).Chapters(f)
		if err != nil {
			return err
		}

		if err := dataset.SaveTexts(importOutput, ingestion.Keyed(chapters)); err != nil {
			return err
		}
		logger.Info("Chapters saved", zap.String("path", importOutput), zap.Int("chapters", len(chapters)))
		fmt.Fprintf(cmd.OutOrStdout(), "%d chapters saved to %s\n", len(chapters), importOutput)
		return nil
	},
}

func init() {
	subsetCmd.Flags().StringVar(&subsetOCR, "ocr", "", "JSON object of key to OCR text")
	subsetCmd.Flags().StringVar(&subsetClean, "clean", "", "JSON object of key to clean text")
	subsetCmd.Flags().IntVarP(&subsetSize, "size", "n", 24, "number of items to keep")
	subsetCmd.Flags().StringVarP(&subsetOutput, "output", "o", "", "dataset file (default from config)")
	_ = subsetCmd.MarkFlagRequired("ocr")
	_ = subsetCmd.MarkFlagRequired("clean")

	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "results/extracted_texts.json", "output file")

	importHTMLCmd.Flags().StringVarP(&importOutput, "output", "o", "dataset/clean.json", "output file")
	importHTMLCmd.Flags().IntVar(&importMinChars, "min-chars", 0, "drop chapters shorter than this")
}
