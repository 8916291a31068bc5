package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ModelOutputsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_eval_model_outputs_total",
			Help: "Model outputs produced by the pipeline",
		},
		[]string{"model", "status"},
	)

	ItemDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_eval_item_duration_seconds",
			Help:    "Time to clean, score and judge one item for one model",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	WordErrorRate = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_eval_wer",
			Help:    "Word error rate of cleaned outputs",
			Buckets: []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 2},
		},
		[]string{"model"},
	)

	CharErrorRate = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_eval_cer",
			Help:    "Character error rate of cleaned outputs",
			Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2},
		},
		[]string{"model"},
	)

	JudgeScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_eval_judge_score",
			Help:    "Automated judge scores",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"model"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_eval_llm_request_duration_seconds",
			Help:    "LLM completion latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_eval_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_eval_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_eval_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	AgreementKappa = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ocr_eval_agreement_kappa",
			Help: "Most recent Cohen's kappa between human and judge scores",
		},
		[]string{"weighting"},
	)

	ScoreRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_eval_score_requests_total",
			Help: "Scoring API requests",
		},
		[]string{"endpoint"},
	)

	RunsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocr_eval_runs_active",
			Help: "Pipeline runs in progress",
		},
	)

	ChaptersImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ocr_eval_chapters_imported_total",
			Help: "Chapters extracted from imported HTML editions",
		},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ModelOutputsTotal,
			ItemDuration,
			WordErrorRate,
			CharErrorRate,
			JudgeScore,
			LLMRequestDuration,
			LLMTokensUsed,
			CacheHits,
			CacheMisses,
			AgreementKappa,
			ScoreRequests,
			RunsActive,
			ChaptersImported,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
