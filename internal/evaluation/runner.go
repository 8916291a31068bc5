package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/llm"
	"github.com/ocr-eval/harness/internal/metrics"
	"github.com/ocr-eval/harness/internal/preclean"
	"github.com/ocr-eval/harness/internal/scoring"
	"github.com/ocr-eval/harness/internal/storage/models"
	"github.com/ocr-eval/harness/pkg/logger"
)

// TextCleaner is satisfied by *llm.Cleaner.
type TextCleaner interface {
	Name() string
	Clean(ctx context.Context, ocrText string) (string, error)
}

// Rater is satisfied by *llm.Judge.
type Rater interface {
	Model() string
	Rate(ctx context.Context, cleaned, groundTruth string) (string, error)
}

// Cache is satisfied by *redis.Client.
type Cache interface {
	GetCleaned(ctx context.Context, cleaner, ocrText string) (string, bool, error)
	SetCleaned(ctx context.Context, cleaner, ocrText, cleaned string) error
	GetJudgement(ctx context.Context, judgeModel, cleaned, groundTruth string) (string, bool, error)
	SetJudgement(ctx context.Context, judgeModel, cleaned, groundTruth, raw string) error
}

// Store is satisfied by *sqlite.Client.
type Store interface {
	UpsertModelOutput(ctx context.Context, out *models.ModelOutput) error
	UpdateRunProgress(ctx context.Context, runID string, status models.RunStatus, itemsDone int) error
}

type Options struct {
	Workers int
	// RequestDelay spaces consecutive model calls across all workers.
	RequestDelay time.Duration
	// PreClean is applied to OCR text before cleaning; nil disables it.
	PreClean *preclean.Cleaner
	Diffs    bool

	Cache Cache
	Store Store
	Hub   *Hub
}

type Runner struct {
	cleaners []TextCleaner
	judge    Rater
	opts     Options
	limiter  *rate.Limiter
}

func NewRunner(cleaners []TextCleaner, judge Rater, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
	}

	return &Runner{cleaners: cleaners, judge: judge, opts: opts, limiter: limiter}
}

func (r *Runner) ModelNames() []string {
	names := make([]string, len(r.cleaners))
	for i, c := range r.cleaners {
		names[i] = c.Name()
	}
	return names
}

// Run cleans, scores and judges every entry with every cleaner. firstID is
// the item id given to entries[0]; results keep the order of entries.
// Per-output failures are recorded in the results, so Run only fails when
// ctx is done or the store rejects a write.
func (r *Runner) Run(ctx context.Context, runID string, firstID int, entries []dataset.Keyed) ([]dataset.Item, error) {
	items := make([]dataset.Item, len(entries))
	total := len(entries)

	logger.Info("Starting pipeline run",
		zap.String("run_id", runID),
		zap.Int("items", total),
		zap.Strings("models", r.ModelNames()),
		zap.Int("workers", r.opts.Workers),
	)

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	r.opts.Hub.Publish(Event{Type: EventRunStarted, RunID: runID, ItemsTotal: total, Status: string(models.RunRunning)})
	if err := r.progress(ctx, runID, models.RunRunning, 0); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			item, err := r.processItem(gctx, runID, firstID+i, entry)
			if err != nil {
				return err
			}
			items[i] = item

			mu.Lock()
			done++
			n := done
			err = r.progress(gctx, runID, models.RunRunning, n)
			mu.Unlock()
			if err != nil {
				return err
			}

			r.opts.Hub.Publish(Event{
				Type:       EventItemCompleted,
				RunID:      runID,
				ItemID:     item.ItemID,
				ItemsDone:  n,
				ItemsTotal: total,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline run %s: %w", runID, err)
	}

	logger.Info("Pipeline run complete", zap.String("run_id", runID), zap.Int("items", total))
	return items, nil
}

func (r *Runner) progress(ctx context.Context, runID string, status models.RunStatus, done int) error {
	if r.opts.Store == nil {
		return nil
	}
	if err := r.opts.Store.UpdateRunProgress(ctx, runID, status, done); err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	return nil
}

func (r *Runner) processItem(ctx context.Context, runID string, itemID int, entry dataset.Keyed) (dataset.Item, error) {
	ocrText := entry.OCR
	if r.opts.PreClean != nil {
		ocrText = r.opts.PreClean.Apply(ocrText)
	}

	item := dataset.Item{
		ItemID:       itemID,
		OriginalOCR:  ocrText,
		GroundTruth:  entry.Clean,
		ModelOutputs: make([]dataset.ModelOutput, 0, len(r.cleaners)),
	}

	for _, cleaner := range r.cleaners {
		start := time.Now()
		out, failure, err := r.processOutput(ctx, cleaner, ocrText, entry.Clean)
		if err != nil {
			return item, err
		}
		metrics.ItemDuration.WithLabelValues(cleaner.Name()).Observe(time.Since(start).Seconds())
		item.ModelOutputs = append(item.ModelOutputs, out)

		if err := r.persist(ctx, runID, item, entry.Key, out, failure); err != nil {
			return item, err
		}
		r.publishOutput(runID, itemID, out, failure)
	}

	return item, nil
}

// processOutput returns the output and the cleaning failure it records, if
// any. The error is set only when the run must stop.
func (r *Runner) processOutput(ctx context.Context, cleaner TextCleaner, ocrText, groundTruth string) (dataset.ModelOutput, string, error) {
	name := cleaner.Name()

	cleaned, err := r.clean(ctx, cleaner, ocrText)
	if err != nil {
		if ctx.Err() != nil {
			return dataset.ModelOutput{}, "", ctx.Err()
		}
		logger.Warn("Cleaning failed, skipping scoring",
			zap.String("model", name),
			zap.Error(err),
		)
		metrics.ModelOutputsTotal.WithLabelValues(name, "clean_error").Inc()
		return dataset.ModelOutput{
			ModelName:   name,
			CleanedText: fmt.Sprintf("[ERROR: %v]", err),
			Differences: []scoring.Difference{},
		}, err.Error(), nil
	}

	result := scoring.ComputeMetrics(groundTruth, cleaned)
	metrics.WordErrorRate.WithLabelValues(name).Observe(result.WER)
	metrics.CharErrorRate.WithLabelValues(name).Observe(result.CER)

	score := dataset.UnparsedScore
	raw, err := r.rate(ctx, cleaned, groundTruth)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return dataset.ModelOutput{}, "", ctx.Err()
		}
		logger.Warn("Judge failed", zap.String("model", name), zap.Error(err))
		raw = fmt.Sprintf("[JUDGE_ERROR: %v]", err)
		metrics.ModelOutputsTotal.WithLabelValues(name, "judge_error").Inc()
	default:
		parsed, ok := llm.ParseScore(raw)
		if !ok {
			logger.Warn("Could not parse judge score", zap.String("model", name), zap.String("raw", raw))
			metrics.ModelOutputsTotal.WithLabelValues(name, "unparsed").Inc()
			break
		}
		score = parsed
		metrics.JudgeScore.WithLabelValues(name).Observe(float64(score))
		metrics.ModelOutputsTotal.WithLabelValues(name, "scored").Inc()
	}

	diffs := []scoring.Difference{}
	if r.opts.Diffs {
		diffs = scoring.DetailedDiffs(groundTruth, cleaned)
	}

	return dataset.ModelOutput{
		ModelName:   name,
		CleanedText: cleaned,
		Metrics:     &result,
		Judgement:   &dataset.Judgement{Score: score, RawScoreText: raw},
		Differences: diffs,
	}, "", nil
}

func (r *Runner) clean(ctx context.Context, cleaner TextCleaner, ocrText string) (string, error) {
	if r.opts.Cache != nil {
		cached, ok, err := r.opts.Cache.GetCleaned(ctx, cleaner.Name(), ocrText)
		if err != nil {
			logger.Warn("Cache lookup failed", zap.String("cache", "cleaned"), zap.Error(err))
		}
		if ok {
			metrics.CacheHits.WithLabelValues("cleaned").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("cleaned").Inc()
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	cleaned, err := cleaner.Clean(ctx, ocrText)
	if err != nil {
		return "", err
	}

	if r.opts.Cache != nil {
		if err := r.opts.Cache.SetCleaned(ctx, cleaner.Name(), ocrText, cleaned); err != nil {
			logger.Warn("Cache write failed", zap.String("cache", "cleaned"), zap.Error(err))
		}
	}
	return cleaned, nil
}

func (r *Runner) rate(ctx context.Context, cleaned, groundTruth string) (string, error) {
	if r.judge == nil {
		return "", errors.New("no judge configured")
	}
	model := r.judge.Model()

	if r.opts.Cache != nil {
		cached, ok, err := r.opts.Cache.GetJudgement(ctx, model, cleaned, groundTruth)
		if err != nil {
			logger.Warn("Cache lookup failed", zap.String("cache", "judgement"), zap.Error(err))
		}
		if ok {
			metrics.CacheHits.WithLabelValues("judgement").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("judgement").Inc()
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	raw, err := r.judge.Rate(ctx, cleaned, groundTruth)
	if err != nil {
		return "", err
	}

	if r.opts.Cache != nil {
		if err := r.opts.Cache.SetJudgement(ctx, model, cleaned, groundTruth, raw); err != nil {
			logger.Warn("Cache write failed", zap.String("cache", "judgement"), zap.Error(err))
		}
	}
	return raw, nil
}

func (r *Runner) persist(ctx context.Context, runID string, item dataset.Item, key string, out dataset.ModelOutput, failure string) error {
	if r.opts.Store == nil {
		return nil
	}

	diffs, err := json.Marshal(out.Differences)
	if err != nil {
		return fmt.Errorf("failed to marshal differences: %w", err)
	}

	row := &models.ModelOutput{
		RunID:       runID,
		ItemID:      item.ItemID,
		ItemKey:     key,
		ModelName:   out.ModelName,
		OriginalOCR: item.OriginalOCR,
		GroundTruth: item.GroundTruth,
		CleanedText: out.CleanedText,
		Differences: string(diffs),
	}
	row.CleanError = failure
	if out.Metrics != nil {
		wer, cer := out.Metrics.WER, out.Metrics.CER
		row.WER, row.CER = &wer, &cer
	}
	if out.Judgement != nil {
		row.Judged = true
		row.JudgeScore = out.Judgement.Score
		row.RawScoreText = out.Judgement.RawScoreText
	}

	return r.opts.Store.UpsertModelOutput(ctx, row)
}

func (r *Runner) publishOutput(runID string, itemID int, out dataset.ModelOutput, failure string) {
	e := Event{Type: EventOutputScored, RunID: runID, ItemID: itemID, ModelName: out.ModelName}
	if failure != "" {
		e.Type = EventOutputFailed
		e.Error = failure
	}
	if out.Metrics != nil {
		wer, cer := out.Metrics.WER, out.Metrics.CER
		e.WER, e.CER = &wer, &cer
	}
	if out.Judgement != nil {
		e.Score = out.Judgement.AutomatedScore()
	}
	r.opts.Hub.Publish(e)
}
