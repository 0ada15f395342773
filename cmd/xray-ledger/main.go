package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/sells-group/xray-ledger/internal/api"
	"github.com/sells-group/xray-ledger/internal/browser"
	"github.com/sells-group/xray-ledger/internal/config"
	"github.com/sells-group/xray-ledger/internal/events"
	"github.com/sells-group/xray-ledger/internal/extractor"
	"github.com/sells-group/xray-ledger/internal/ledger"
	"github.com/sells-group/xray-ledger/internal/models"
	"github.com/sells-group/xray-ledger/internal/pace"
	"github.com/sells-group/xray-ledger/internal/queue"
	"github.com/sells-group/xray-ledger/internal/retry"
	"github.com/sells-group/xray-ledger/internal/runner"
	"github.com/sells-group/xray-ledger/internal/store"
)

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := store.New(ctx, store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		MaxConns: 10,
		MinConns: 2,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// Redis client for the outbox relay
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	relay := store.NewRelay(db, redisClient, logger, store.RelayConfig{
		PollInterval: cfg.Relay.PollInterval,
		BatchSize:    cfg.Relay.BatchSize,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	// Attach to the Chrome carrying the overlay extension, or launch one
	// when no CDP endpoint is configured
	session, err := browser.Connect(&browser.Options{
		CDPURL:      cfg.Browser.CDPURL,
		ExtensionID: cfg.Browser.ExtensionID,
		Headless:    cfg.Browser.Headless,
		Timeout:     cfg.Browser.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to browser", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	// Ledger workbooks, one per seller segment
	ledgers, err := ledger.OpenSet(map[models.SellerSegment]string{
		models.SegmentNewSeller:      cfg.Ledger.NewSellerPath,
		models.SegmentExistingSeller: cfg.Ledger.ExistingSellerPath,
		models.SegmentVendor:         cfg.Ledger.VendorPath,
	}, logger)
	if err != nil {
		logger.Error("failed to open ledger workbooks", "error", err)
		os.Exit(1)
	}
	defer ledgers.Close()

	publisher := events.NewPublisher(db, logger)
	runRepo := store.NewRunRepository(db)

	coordinator := runner.NewCoordinator(runner.Deps{
		Ledgers:  ledgers,
		Nav:      runner.NewSessionNavigator(session),
		Category: extractor.NewCategoryRevenue(session, logger, cfg.Extractor.SettleDelay),
		Profit: extractor.NewProfitability(session, logger, extractor.TabPolicy{
			CloseAllFirst:        cfg.Extractor.CloseTabsFirst,
			CloseOthersAfterOpen: cfg.Extractor.CloseOtherTabs,
		}),
		Retrier:         retry.New(cfg.Retry.MaxAttempts, cfg.Retry.Delay, logger),
		Events:          publisher,
		Audit:           runRepo,
		Pacer:           pace.NewAdaptive(cfg.Pace.MinDelay, cfg.Pace.MaxDelay),
		Logger:          logger,
		CompetitorMonth: cfg.Extractor.CompetitorMonth,
	})

	runQueue := queue.NewRunQueue()
	defer runQueue.Close()

	worker := runner.NewWorker(runQueue, coordinator, logger)
	go func() {
		if err := worker.Start(ctx); err != nil {
			logger.Error("worker stopped with error", "error", err)
		}
	}()

	handlers := api.NewHandlers(runQueue, runRepo, cfg.Ledger.UploadDir, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		pendingCount, _ := relay.PendingCount(req.Context())
		deadLetterCount, _ := relay.DeadLetterCount(req.Context())

		health := map[string]interface{}{
			"ok": true,
			"outbox": map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			},
		}

		status := http.StatusOK
		if deadLetterCount > 100 {
			health["ok"] = false
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	r.Get("/api/scraper-status", handlers.ScraperStatus)
	r.Post("/api/submissions", handlers.CreateSubmission)
	r.Post("/api/submissions-with-files", handlers.CreateSubmissionWithFiles)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
