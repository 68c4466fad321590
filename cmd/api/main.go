// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/aggregate"
	"github.com/q360-insights/research-portal/internal/answer"
	"github.com/q360-insights/research-portal/internal/config"
	"github.com/q360-insights/research-portal/internal/events"
	"github.com/q360-insights/research-portal/internal/handler"
	"github.com/q360-insights/research-portal/internal/llm"
	"github.com/q360-insights/research-portal/internal/middleware"
	"github.com/q360-insights/research-portal/internal/session"
	"github.com/q360-insights/research-portal/internal/storage"
	"github.com/q360-insights/research-portal/internal/tenant"
	"github.com/q360-insights/research-portal/internal/usage"
	"github.com/q360-insights/research-portal/pkg/logger"
	"github.com/q360-insights/research-portal/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "research-portal", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Load the tenant directory. Without it nobody can authenticate, so an
	// error here is fatal.
	directory, err := tenant.Load(cfg.TenantDatabaseJSON, cfg.TenantDatabaseFile)
	if err != nil {
		log.Error("failed to load tenant directory", zap.Error(err))
		os.Exit(1)
	}
	log.Info("tenant directory loaded", zap.Int("tenants", directory.Len()))

	// Connect to Google Drive. Missing credentials degrade to a visible
	// message at session creation rather than stopping the server.
	var store storage.Store
	driveStore, err := storage.NewDriveStore(ctx, cfg.GoogleServiceAccountJSON)
	if err != nil {
		log.Warn("document storage unavailable", zap.Error(err))
		store = storage.Unconfigured()
	} else {
		store = driveStore
	}

	// Connect to NATS for audit events, if configured
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		natsClient, err = events.Connect(ctx, events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, audit events disabled", zap.Error(err))
		} else {
			defer natsClient.Close()
			publisher = events.NewPublisher(natsClient, log)
			if err := publisher.EnsureStream(ctx); err != nil {
				log.Warn("failed to ensure audit stream", zap.Error(err))
			}
		}
	}

	// Initialize LLM client. DEFAULT_LLM names the preferred provider; a
	// missing key for it falls back to whichever provider has one.
	llmClient, err := llm.SelectClient(llm.Provider(cfg.DefaultLLM), cfg.AnthropicAPIKey, cfg.OpenAIAPIKey)
	if err != nil {
		log.Warn("failed to create LLM client, answering disabled", zap.Error(err))
	} else if llmClient == nil {
		log.Warn("no LLM API key configured, answering disabled")
	} else {
		log.Info("LLM client ready", zap.String("provider", llmClient.Name()))
	}

	// Initialize services
	tracker := usage.NewTracker(usage.DefaultPolicy())
	aggregator := aggregate.New(store, cfg.MaxFolderDepth, log)
	sessions := session.NewManager(directory, aggregator, publisher, cfg.SessionTTL, log)
	generator := answer.NewGenerator(llmClient, log)

	// Periodic retention sweep for usage counters
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.UsageSweepInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.UsageSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case <-ticker.C:
					removed := tracker.Sweep()
					if removed > 0 {
						log.Debug("usage buckets swept", zap.Int("removed", removed))
					}
				}
			}
		}()
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	sessionHandler := handler.NewSessionHandler(sessions, cfg.SessionSecret, cfg.SessionTTL, log)
	messageHandler := handler.NewMessageHandler(sessions, tracker, generator, publisher, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.IPRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Session creation authenticates by access id
		r.Post("/sessions", sessionHandler.Create)

		// Everything below requires a session token
		r.Route("/session", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.SessionSecret))

			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Delete)
			r.Put("/settings", sessionHandler.UpdateSettings)

			r.Get("/messages", messageHandler.List)
			r.Post("/messages", messageHandler.Ask)
			r.Post("/stream", messageHandler.StreamAnswer)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
