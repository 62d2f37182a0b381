// Moltbook agent dashboard server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/moltdash/internal/api"
	"github.com/ashureev/moltdash/internal/autopost"
	"github.com/ashureev/moltdash/internal/config"
	"github.com/ashureev/moltdash/internal/content"
	"github.com/ashureev/moltdash/internal/credentials"
	"github.com/ashureev/moltdash/internal/domain"
	"github.com/ashureev/moltdash/internal/events"
	"github.com/ashureev/moltdash/internal/middleware"
	"github.com/ashureev/moltdash/internal/moltbook"
	"github.com/ashureev/moltdash/internal/store"
	"github.com/ashureev/moltdash/internal/translate"
	"github.com/ashureev/moltdash/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	creds := credentials.Resolve(os.LookupEnv, cfg.Moltbook.CredentialsFile)
	if creds.Credentials.Present() {
		slog.Info("Agent credentials loaded", "source", creds.Source, "agent", creds.Credentials.AgentName)
	} else {
		slog.Warn("Agent credentials not loaded, proxy and auto-post routes will fail",
			"credentials_file", cfg.Moltbook.CredentialsFile)
	}

	// Initialize dependencies.
	var repo store.HistoryRepository
	repo, err = store.NewSQLite(cfg.DBPath)
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
	slog.Info("Database connected", "path", cfg.DBPath)

	library, err := content.LoadLibrary(cfg.AutoPost.LibraryPath)
	if err != nil {
		slog.Error("Failed to load content library", "error", err)
		os.Exit(1)
	}
	slog.Info("Content library loaded", "items", library.Len(), "categories", library.Categories())

	// Generation is optional; without it auto-post uses the library and translation is unavailable.
	var generator content.Generator
	var translator api.Translator
	if cfg.GenerationEnabled() {
		gemini, err := content.NewGeminiGenerator(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			slog.Warn("Failed to initialize generation provider, using static library only", "error", err)
		} else {
			generator = gemini
			translator = translate.New(gemini)
			slog.Info("Generation provider ready", "provider", gemini.Name(), "model", cfg.Gemini.Model)
		}
	} else {
		slog.Info("Generation disabled (GEMINI_API_KEY not set)")
	}
	source := content.NewSource(library, generator, logger)

	var remote api.Remote
	var publisher autopost.Publisher
	if creds.Credentials.Present() {
		client := moltbook.NewClient(creds.Credentials.APIKey,
			moltbook.WithBaseURL(cfg.Moltbook.BaseURL),
			moltbook.WithTimeout(cfg.Moltbook.Timeout),
		)
		remote = client
		publisher = client
	}

	hub := events.NewHub()

	scheduler := autopost.New(autopost.Options{
		Interval:    cfg.AutoPost.Interval,
		Categories:  cfg.AutoPost.Categories,
		Credentials: creds.Credentials,
		Source:      source,
		Publisher:   publisher,
		Recorder:    repo,
		Notifier:    hub,
		Logger:      logger,
	})

	// Initialize handlers.
	handler := api.NewHandler(api.Deps{
		Credentials: creds.Credentials,
		Remote:      remote,
		Scheduler:   scheduler,
		Translator:  translator,
		History:     repo,
	})
	wsHandler := events.NewWebSocketHandler(hub, func() domain.Event {
		return events.StatusEvent(scheduler.Status().Running, time.Now())
	}, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r, middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	// WebSocket endpoint.
	r.Get("/ws/events", wsHandler.ServeHTTP)

	// Serve embedded dashboard (catch-all).
	r.Handle("/*", web.Handler())

	// No WriteTimeout: /ws/events connections are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
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

	hub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		slog.Error("Auto-post tick did not finish before shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}
