package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocr-eval/harness/internal/scoring"
)

var (
	scoreFiles bool
	scoreDiffs bool
)

var scoreCmd = &cobra.Command{
	Use:   "score <reference> <hypothesis>",
	Short: "Compute WER and CER for one text pair",
	Long: `Compute WER, CER and the word alignment for a reference and a hypothesis.

With --files the arguments are paths to text files.`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreFiles, "files", false, "treat arguments as file paths")
	scoreCmd.Flags().BoolVar(&scoreDiffs, "diffs", false, "include word-level differences")
}

func runScore(cmd *cobra.Command, args []string) error {
	reference, hypothesis := args[0], args[1]
	if scoreFiles {
		ref, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read reference: %w", err)
		}
		hyp, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read hypothesis: %w", err)
		}
		reference, hypothesis = string(ref), string(hyp)
	}

	out := struct {
		Metrics     scoring.MetricResult  `json:"metrics"`
		Alignment   scoring.WordAlignment `json:"alignment"`
		Differences []scoring.Difference  `json:"differences,omitempty"`
	}{
		Metrics:   scoring.ComputeMetrics(reference, hypothesis),
		Alignment: scoring.AlignWords(reference, hypothesis),
	}
	if scoreDiffs {
		out.Differences = scoring.DetailedDiffs(reference, hypothesis)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
