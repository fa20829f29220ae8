package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gridconsole/internal/application"
	"github.com/JonMunkholm/gridconsole/internal/config"
	"github.com/JonMunkholm/gridconsole/internal/logging"
	"github.com/JonMunkholm/gridconsole/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	app, err := application.New(ctx, cfg, application.Options{
		OnUnauthorized: func() {
			slog.Warn("platform rejected the API token; browser sessions will be signed out")
		},
	})
	if err != nil {
		slog.Error("failed to start application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("tables registered",
		"count", app.Registry.Len(),
		"tables", app.Registry.Names(),
		"driver", cfg.Store.Driver,
	)

	server := web.NewServer(web.Deps{
		Registry: app.Registry,
		Client:   app.Client,
		Config:   cfg,
		Metrics:  app.Metrics,
		Gatherer: app.Prometheus,
		Audit:    app.Audit,
	})

	// Background jobs stop before the HTTP server drains.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	app.StartJobs(jobCtx)
	server.Run(jobCtx)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Waits for in-flight grid writes as well as open requests.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		app.Close()
		os.Exit(1)
	}
	slog.Info("server stopped")
}
