package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/whizsid/openxd-sub000/pkg/oxd/api"
	"github.com/whizsid/openxd-sub000/pkg/oxd/config"
)

type Config struct {
	ApiKeySHA256   string `env:"API_KEY_SHA256" env-default:"1"`
	LogLevel       string `env:"LOG_LEVEL" env-default:"info"`
	EnvPrefix      string `env:"OXD_ENV_PREFIX" env-default:"OXD_"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" env-default:"536870912"`
	CORSOrigins    string `env:"CORS_ORIGINS" env-default:""`
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(cfg.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if serverConfig.DatabaseType == "postgres" {
		if err := serverConfig.PingPostgres(ctx); err != nil {
			slog.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
	}

	svc, err := serverConfig.BuildService(ctx, logger)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
		APIKeys: map[string]string{
			"key1": cfg.ApiKeySHA256,
		},
	})
	if err != nil {
		slog.Error("Failed initialize API Key middleware", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	projectHandler := api.NewProjectHandler(svc, logger).WithMaxUploadBytes(cfg.MaxUploadBytes)
	mountAPI(server.R, projectHandler, logger, apiKeyMiddleware, cfg.CORSOrigins)

	httpServer := newHTTPServer(serverConfig.Port, server.R)

	go func() {
		slog.Info("OXD server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
			"codec", serverConfig.ArchiveCodec,
			"key_layout", serverConfig.KeyLayout,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}
}

// mountAPI serves the project routes under /api/v1 behind request id,
// access logging, panic recovery, optional CORS and the API key check.
func mountAPI(r chi.Router, projects *api.ProjectHandler, logger *slog.Logger, apiKey func(http.Handler) http.Handler, corsOrigins string) {
	chain := api.NewMiddlewareChain(
		api.RequestIDMiddleware,
		api.LoggingMiddleware(logger),
		api.RecoveryMiddleware(logger),
	)
	if corsOrigins != "" {
		chain.Then(api.CORSMiddleware(strings.Split(corsOrigins, ","), nil, nil))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chain.Wrap)
			r.Use(apiKey)
			r.Mount("/", projects.Routes())
		})
	})
}

func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: handler,
	}
}
