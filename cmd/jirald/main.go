package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mba-tools/jirald/internal/adapter/github"
	jhttp "github.com/mba-tools/jirald/internal/adapter/http"
	"github.com/mba-tools/jirald/internal/adapter/jira"
	"github.com/mba-tools/jirald/internal/adapter/litellm"
	jotel "github.com/mba-tools/jirald/internal/adapter/otel"
	"github.com/mba-tools/jirald/internal/config"
	"github.com/mba-tools/jirald/internal/logger"
	"github.com/mba-tools/jirald/internal/prompt"
	"github.com/mba-tools/jirald/internal/resilience"
	"github.com/mba-tools/jirald/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"project_key", cfg.Jira.ProjectKey,
		"command_token", cfg.Bot.CommandToken,
		"trigger_label", cfg.Bot.TriggerLabel,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := jotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := jotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Outbound clients ---
	privateKey, err := cfg.GitHub.DecodedPrivateKey()
	if err != nil {
		return fmt.Errorf("github key: %w", err)
	}
	app, err := github.NewApp(cfg.GitHub.AppID, privateKey, cfg.GitHub.BaseURL)
	if err != nil {
		return fmt.Errorf("github app: %w", err)
	}

	trackerClient := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.APIToken)
	trackerClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	llmClient := litellm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---
	prompts, err := prompt.NewBuilder()
	if err != nil {
		return fmt.Errorf("prompts: %w", err)
	}

	classifier := service.NewClassifier(cfg.Bot.CommandToken, cfg.Bot.TriggerLabel, cfg.GitHub.BotLogin)
	interpreter := service.NewInterpreter(llmClient, cfg.LLM.Model, cfg.LLM.MaxTokens)
	pipeline := service.NewPipeline(trackerClient, app, interpreter, prompts, service.PipelineConfig{
		ProjectKey:   cfg.Jira.ProjectKey,
		TriggerLabel: cfg.Bot.TriggerLabel,
		CreatedLabel: cfg.Bot.CreatedLabel,
		MaxRuns:      int64(cfg.Bot.MaxConcurrentRuns),
	}, metrics)

	// --- HTTP ---
	handlers := &jhttp.Handlers{
		Classifier: classifier,
		Pipeline:   pipeline,
		Metrics:    metrics,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(jhttp.SecurityHeaders)
	r.Use(jhttp.Logger)
	r.Use(jotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.Timeout(30 * time.Second))

	jhttp.MountRoutes(r, handlers, cfg.GitHub.WebhookSecret)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
