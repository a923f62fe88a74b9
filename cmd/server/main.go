package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/auth"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/config"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/handler"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/kafka"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/postgres"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/redis"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/service"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis rank mirror. The service degrades to ledger
	// scans for rank lookups if Redis is unavailable.
	var mirror *redis.RankMirror
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	mirror, err = redis.NewRankMirror(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("failed to connect to Redis, rank mirror disabled", "error", err)
		mirror = nil
	} else {
		defer mirror.Close()
		logger.Info("connected to Redis")
	}

	// Initialize token service
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if err != nil {
		logger.Error("failed to create token service", "error", err)
		os.Exit(1)
	}

	// Initialize services
	scoreService := service.NewScoreService(repo, repo, mirror, &cfg.Leaderboard, logger)
	authService := service.NewAuthService(repo, tokens, cfg.Auth.BcryptCost, logger)

	// Initialize reconcile worker and seed the mirror from the ledger
	var reconciler *worker.ReconcileWorker
	if mirror != nil {
		reconciler = worker.NewReconcileWorker(repo, mirror, &cfg.Reconcile, logger)

		logger.Info("seeding rank mirror from ledger")
		if err := reconciler.Reconcile(ctx); err != nil {
			logger.Warn("failed to seed rank mirror on startup", "error", err)
		}

		if cfg.Reconcile.Enabled {
			if err := reconciler.Start(ctx); err != nil {
				logger.Error("failed to start reconcile worker", "error", err)
				os.Exit(1)
			}
		}
	}

	// Initialize Kafka consumer for bulk score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, scoreService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(scoreService, authService, tokens, cfg.IsProduction(), logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if reconciler != nil {
		if err := reconciler.Stop(); err != nil {
			logger.Error("failed to stop reconcile worker", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
