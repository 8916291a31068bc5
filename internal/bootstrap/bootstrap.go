// Package bootstrap assembles pipeline components from configuration for
// the API server and the CLI.
package bootstrap

import (
	"time"

	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/agreement"
	"github.com/ocr-eval/harness/internal/cache/redis"
	"github.com/ocr-eval/harness/internal/evaluation"
	"github.com/ocr-eval/harness/internal/llm"
	"github.com/ocr-eval/harness/internal/preclean"
	"github.com/ocr-eval/harness/pkg/config"
	"github.com/ocr-eval/harness/pkg/logger"
)

// OpenCache connects to Redis when it is enabled. A connection failure is
// logged and the pipeline runs without a cache.
func OpenCache(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client, err := redis.NewClient(cfg.Host, cfg.Port, cfg.Password, cfg.DB, time.Duration(cfg.TTLHours)*time.Hour)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		return nil
	}
	return client
}

func Analyzer(cfg config.ScoringConfig) *agreement.Analyzer {
	return agreement.NewAnalyzer(cfg.ScaleMin, cfg.ScaleMax, cfg.ReviewThreshold)
}

func PreCleaner(cfg config.PipelineConfig) *preclean.Cleaner {
	if !cfg.PreClean {
		return nil
	}
	return preclean.Without(cfg.PreCleanSkip...)
}

// Runner builds the configured cleaners and judge. store, cache and hub may
// be nil.
func Runner(cfg *config.Config, store evaluation.Store, cache *redis.Client, hub *evaluation.Hub) (*evaluation.Runner, error) {
	registry := llm.NewRegistry(cfg.LLM)

	cleaners, err := registry.Cleaners(cfg.Cleaners)
	if err != nil {
		return nil, err
	}
	judge, err := registry.Judge(cfg.Judge)
	if err != nil {
		return nil, err
	}

	textCleaners := make([]evaluation.TextCleaner, len(cleaners))
	for i, c := range cleaners {
		textCleaners[i] = c
	}

	opts := evaluation.Options{
		Workers:      cfg.Pipeline.Workers,
		RequestDelay: time.Duration(cfg.Pipeline.RequestDelayMs) * time.Millisecond,
		PreClean:     PreCleaner(cfg.Pipeline),
		Diffs:        cfg.Pipeline.Diffs,
		Store:        store,
		Hub:          hub,
	}
	if cache != nil {
		opts.Cache = cache
	}

	logger.Info("Pipeline configured",
		zap.Strings("providers", registry.Providers()),
		zap.Int("cleaners", len(textCleaners)),
		zap.String("judge", judge.Model()),
	)

	return evaluation.NewRunner(textCleaners, judge, opts), nil
}
