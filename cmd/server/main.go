// Command server runs the chatbot conversation backend.
//
// Startup order:
//  1. Load .env (best effort) and environment configuration
//  2. Configure global logging (zerolog level + optional pretty console)
//  3. Open SQLite, run migrations, attach the GORM tracing plugin
//  4. Build the processing pipeline (AI stage only when a key is configured)
//  5. Start the webhook dispatcher
//  6. Register routes and serve, with graceful shutdown on SIGINT/SIGTERM
//
// @title           Chatbot Conversation API
// @version         1.0
// @description     Widget-facing message processing and conversation management for embeddable chatbots.
// @BasePath        /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/chatforge/go-chatbot-backend/docs"
	"github.com/chatforge/go-chatbot-backend/internal/ai"
	"github.com/chatforge/go-chatbot-backend/internal/config"
	"github.com/chatforge/go-chatbot-backend/internal/engine"
	httpapi "github.com/chatforge/go-chatbot-backend/internal/http"
	"github.com/chatforge/go-chatbot-backend/internal/observability"
	"github.com/chatforge/go-chatbot-backend/internal/repo"
	"github.com/chatforge/go-chatbot-backend/internal/sysutil"
	"github.com/chatforge/go-chatbot-backend/internal/webhook"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting")

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	// MIGRATE_ONLY=1 runs schema migrations and exits, for deploy hooks.
	if sysutil.IsTruthy(os.Getenv("MIGRATE_ONLY")) {
		log.Info().Msg("migrations complete")
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = shutdownOTel(ctx)
		return
	}

	// AI stage is optional: without a key the pipeline falls through to the
	// chatbot's fallback message.
	var responder engine.AIResponder
	if cfg.OpenAIKey != "" {
		r, err := ai.NewResponder(cfg.OpenAIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("ai responder")
		}
		responder = r
		log.Info().Msg("ai stage enabled")
	}
	pipeline := engine.NewPipeline(responder, cfg.AITimeout)

	hooks := webhook.NewDispatcher(cfg.WebhookWorkers, cfg.WebhookBuffer, cfg.WebhookTimeout)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, pipeline, hooks, cfg)

	// BIND_ADDR overrides the listen address entirely (e.g. "127.0.0.1:9090").
	addr := sysutil.FirstNonEmpty(os.Getenv("BIND_ADDR"), ":"+cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Flush queued webhook deliveries before exit.
	hooks.Close()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info().Msg("stopped")
}
