package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/api/handlers"
	redisCache "github.com/retail-insights/backend/internal/cache/redis"
	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/internal/datastore/sqlite"
	"github.com/retail-insights/backend/internal/evaluation"
	"github.com/retail-insights/backend/internal/llm"
	"github.com/retail-insights/backend/internal/metrics"
	"github.com/retail-insights/backend/internal/middleware/ratelimit"
	"github.com/retail-insights/backend/internal/middleware/security"
	"github.com/retail-insights/backend/internal/middleware/validation"
	"github.com/retail-insights/backend/internal/orchestrator"
	"github.com/retail-insights/backend/internal/router"
	"github.com/retail-insights/backend/internal/session"
	"github.com/retail-insights/backend/internal/sqlgen"
	"github.com/retail-insights/backend/internal/synth"
	"github.com/retail-insights/backend/pkg/config"
	appLogger "github.com/retail-insights/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
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

	appLogger.Info("Starting Retail Insights API Server")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path, cfg.Dataset.Table)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	err = store.LoadCSV(context.Background(), cfg.Dataset.CSVPath)
	if err != nil {
		appLogger.Fatal("Failed to load sales dataset", zap.Error(err))
	}

	var queryStore datastore.Store = store
	var archive session.Archive
	if cfg.Redis.Enabled {
		redisClient, err := redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		archive = redisClient
		queryStore = redisCache.NewSchemaCachedStore(store, redisClient, cfg.Dataset.Table)
	}

	reasoner := llm.NewClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	sessions := session.NewManager(archive)

	engine := orchestrator.New(
		router.New(reasoner),
		sqlgen.New(reasoner, cfg.Dataset.Table, cfg.Pipeline.HistoryWindow, cfg.Pipeline.RowLimit),
		queryStore,
		store,
		synth.New(reasoner, cfg.Pipeline.MaxPromptRows),
		evaluation.NewEngine(),
		reasoner,
		sessions,
		time.Duration(cfg.Pipeline.QueryTimeoutSec)*time.Second,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(engine)
	reportHandler := handlers.NewReportHandler(engine)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/sessions/:id/history", queryHandler.GetHistory)
	api.Delete("/sessions/:id/memory", queryHandler.ClearMemory)
	api.Get("/sessions/:id/evaluation", queryHandler.GetEvaluation)
	api.Get("/stats", queryHandler.GetStats)

	api.Post("/reports", reportHandler.HandleUpload)
	api.Post("/reports/executive", reportHandler.HandleExecutiveSummary)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
