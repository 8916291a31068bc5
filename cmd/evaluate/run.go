package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/bootstrap"
	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/evaluation"
	"github.com/ocr-eval/harness/internal/storage/models"
	"github.com/ocr-eval/harness/internal/storage/sqlite"
	"github.com/ocr-eval/harness/pkg/logger"
)

var (
	runDataset string
	runOutput  string
	runStart   int
	runEnd     int
	runNoStore bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clean, score and judge a dataset with every configured model",
	Long: `Run the full pipeline over a range of a dataset file.

Results are written as JSON to --output and, unless --no-store is given,
recorded in the SQLite database so that human scores can be added later
through the API.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runDataset, "dataset", "", "dataset file (default from config)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "results file (default from config)")
	runCmd.Flags().IntVar(&runStart, "start", 0, "first item, 1-based (default from config)")
	runCmd.Flags().IntVar(&runEnd, "end", -1, "last item, inclusive; 0 means the last item (default from config)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not record the run in SQLite")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	path := valueOr(runDataset, cfg.Paths.Dataset)
	output := valueOr(runOutput, cfg.Paths.Results)
	start := runStart
	if start == 0 {
		start = cfg.Pipeline.StartIndex
	}
	end := runEnd
	if end < 0 {
		end = cfg.Pipeline.EndIndex
	}

	entries, err := dataset.LoadEntries(path)
	if err != nil {
		return err
	}
	selected, err := dataset.Slice(entries, start, end)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no items between %d and %d in %s", start, end, path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *sqlite.Client
	if !runNoStore {
		store, err = sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.InitSchema(); err != nil {
			return err
		}
	}

	cache := bootstrap.OpenCache(cfg.Redis)
	if cache != nil {
		defer cache.Close()
	}

	var runStore evaluation.Store
	if store != nil {
		runStore = store
	}
	runner, err := bootstrap.Runner(cfg, runStore, cache, nil)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	if store != nil {
		err := store.InsertRun(ctx, &models.Run{
			ID:          runID,
			Status:      models.RunPending,
			DatasetPath: path,
			StartIndex:  start,
			EndIndex:    end,
			Models:      runner.ModelNames(),
			ItemsTotal:  len(selected),
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return err
		}
	}

	items, runErr := runner.Run(ctx, runID, start, selected)

	if store != nil {
		status, msg := models.RunCompleted, ""
		if runErr != nil {
			status, msg = models.RunFailed, runErr.Error()
			if ctx.Err() != nil {
				status = models.RunCancelled
			}
		}
		if err := store.FinishRun(context.Background(), runID, status, msg); err != nil {
			logger.Warn("Failed to finish run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := dataset.SaveResults(output, items); err != nil {
		return err
	}
	logger.Info("Results saved", zap.String("path", output), zap.String("run_id", runID))

	return evaluation.GenerateReport(cmd.OutOrStdout(), "Model Comparison", evaluation.Summarize(items))
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
