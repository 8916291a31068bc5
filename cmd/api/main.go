package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/api/handlers"
	"github.com/ocr-eval/harness/internal/bootstrap"
	"github.com/ocr-eval/harness/internal/evaluation"
	"github.com/ocr-eval/harness/internal/ingestion"
	"github.com/ocr-eval/harness/internal/metrics"
	"github.com/ocr-eval/harness/internal/middleware/ratelimit"
	"github.com/ocr-eval/harness/internal/middleware/security"
	"github.com/ocr-eval/harness/internal/middleware/validation"
	"github.com/ocr-eval/harness/internal/storage/sqlite"
	"github.com/ocr-eval/harness/pkg/config"
	appLogger "github.com/ocr-eval/harness/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting OCR evaluation API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	cache := bootstrap.OpenCache(cfg.Redis)
	if cache != nil {
		defer cache.Close()
	}

	hub := evaluation.NewHub(256)
	runner, err := bootstrap.Runner(cfg, sqliteClient, cache, hub)
	if err != nil {
		appLogger.Fatal("Failed to configure pipeline", zap.Error(err))
	}
	manager := evaluation.NewManager(runner, sqliteClient, hub)
	analyzer := bootstrap.Analyzer(cfg.Scoring)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	headers := security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}
	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(security.CORS(headers))
	app.Use(security.HeadersMiddleware(headers))

	app.Get("/metrics", metrics.MetricsHandler())

	scoreHandler := handlers.NewScoreHandler()
	agreementHandler := handlers.NewAgreementHandler(analyzer)
	runHandler := handlers.NewRunHandler(manager, sqliteClient, analyzer, cfg.Paths.Dataset)
	datasetHandler := handlers.NewDatasetHandler(ingestion.NewProcessor(ingestion.DefaultOptions()))
	wsHandler := handlers.NewWebSocketHandler(hub)

	api := app.Group("/api/v1", limiter.Middleware(), validation.Middleware(validation.Config{
		Logger: appLogger.Named("validation"),
	}))

	api.Post("/score", scoreHandler.Score)
	api.Post("/score/batch", scoreHandler.ScoreBatch)
	api.Post("/agreement", agreementHandler.Analyze)

	api.Post("/runs", runHandler.CreateRun)
	api.Get("/runs", runHandler.ListRuns)
	api.Get("/runs/:id", runHandler.GetRun)
	api.Delete("/runs/:id", runHandler.CancelRun)
	api.Get("/runs/:id/summary", runHandler.Summary)
	api.Get("/runs/:id/agreement", runHandler.Agreement)
	api.Put("/runs/:id/outputs/:item/:model/human-score", runHandler.SetHumanScore)

	api.Post("/datasets/import-html", datasetHandler.ImportHTML)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "healthy",
			"time":        time.Now().Unix(),
			"active_runs": manager.Active(),
			"cache":       cache != nil,
		})
	})

	app.Use("/ws", wsHandler.Upgrade)
	app.Get("/ws/runs", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		appLogger.Warn("Runs did not stop in time", zap.Error(err))
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Warn("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
