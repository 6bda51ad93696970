// BCFG relay server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/wwbp/BCFG-API/internal/api"
	"github.com/wwbp/BCFG-API/internal/config"
	"github.com/wwbp/BCFG-API/internal/delivery"
	"github.com/wwbp/BCFG-API/internal/llm"
	"github.com/wwbp/BCFG-API/internal/middleware"
	"github.com/wwbp/BCFG-API/internal/orchestrator"
	"github.com/wwbp/BCFG-API/internal/queue"
	"github.com/wwbp/BCFG-API/internal/scheduler"
	"github.com/wwbp/BCFG-API/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "queue", cfg.QueueEnabled())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	llmOpts := []llm.Option{llm.WithModel(cfg.OpenAIModel)}
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llmClient, err := llm.NewClient(cfg.OpenAIAPIKey, llmOpts...)
	if err != nil {
		slog.Error("Failed to create LLM client", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(repo, rand.New(rand.NewSource(time.Now().UnixNano())))
	orch := orchestrator.New(repo, llmClient, sched)

	var sender delivery.Sender
	if cfg.SendBaseURL != "" {
		sender, err = delivery.NewWebhook(cfg.SendBaseURL, nil)
		if err != nil {
			slog.Error("Failed to create delivery webhook", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("BCFG_SEND_BASE_URL not set, reply push disabled")
	}

	var producer *queue.Producer
	if cfg.QueueEnabled() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Error("Failed to load AWS config", "error", err)
			os.Exit(1)
		}
		producer, err = queue.NewProducer(sqs.NewFromConfig(awsCfg), cfg.QueueURL)
		if err != nil {
			slog.Error("Failed to create SQS producer", "error", err)
			os.Exit(1)
		}
		slog.Info("SQS dispatch enabled", "queue_url", cfg.QueueURL)
	}

	// Initialize handlers.
	ingestHandler := api.NewIngestHandler(repo, orch, sender, producer)
	chatHandler := api.NewChatHandler(repo, orch, cfg.IsDevelopment())
	adminHandler := api.NewAdminHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	ingestHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)

	// Create server.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// Turns block on LLM run polling; give writes generous room.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
