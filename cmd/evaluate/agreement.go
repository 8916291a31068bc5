package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/agreement"
	"github.com/ocr-eval/harness/internal/bootstrap"
	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/storage/sqlite"
	"github.com/ocr-eval/harness/pkg/logger"
)

var (
	agreementRun    string
	agreementReport string
)

var agreementCmd = &cobra.Command{
	Use:   "agreement [results-file]",
	Short: "Measure agreement between human and judge scores",
	Long: `Compute Cohen's kappa between human scores and the judge's scores.

Scores are read from a results file whose judgements carry human_score
fields, or from a stored run with --run. The report is printed and written
to --report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAgreement,
}

func init() {
	agreementCmd.Flags().StringVar(&agreementRun, "run", "", "read scores of a stored run instead of a results file")
	agreementCmd.Flags().StringVar(&agreementReport, "report", "", "report file (default from config)")
}

func runAgreement(cmd *cobra.Command, args []string) error {
	items, err := loadScoredItems(cmd, args)
	if err != nil {
		return err
	}

	report, err := bootstrap.Analyzer(cfg.Scoring).Analyze(items)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := agreement.WriteText(&buf, report); err != nil {
		return err
	}

	path := valueOr(agreementReport, cfg.Paths.Report)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("Agreement report saved", zap.String("path", path))

	_, err = io.Copy(cmd.OutOrStdout(), &buf)
	return err
}

func loadScoredItems(cmd *cobra.Command, args []string) ([]agreement.ScoredItem, error) {
	if agreementRun == "" {
		path := cfg.Paths.Results
		if len(args) == 1 {
			path = args[0]
		}
		results, err := dataset.LoadResults(path)
		if err != nil {
			return nil, err
		}
		return dataset.ScoredItems(results), nil
	}

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	items, err := store.ScoredItems(cmd.Context(), agreementRun)
	if err != nil {
		return nil, err
	}
	return items, nil
}
