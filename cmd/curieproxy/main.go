package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/curiefense/curieproxy-go/internal/accesslog"
	"github.com/curiefense/curieproxy-go/internal/config"
	"github.com/curiefense/curieproxy-go/internal/core/ports"
	"github.com/curiefense/curieproxy-go/internal/geo"
	"github.com/curiefense/curieproxy-go/internal/hook"
	"github.com/curiefense/curieproxy-go/internal/inspect"
	"github.com/curiefense/curieproxy-go/internal/oracle"
	"github.com/curiefense/curieproxy-go/internal/proxy"
	"github.com/curiefense/curieproxy-go/internal/runtime"
	"github.com/curiefense/curieproxy-go/internal/server"
	sqlitestore "github.com/curiefense/curieproxy-go/internal/storage/sqlite"
	"github.com/curiefense/curieproxy-go/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("curieproxy", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	upstreamURL, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		log.Fatalf("Invalid upstream URL: %v", err)
	}

	// Access-log sinks: structured log always, SQLite when configured.
	sinks := []ports.AccessLogger{accesslog.NewSlogLogger(logger)}
	if cfg.Storage.Type == "sqlite" {
		store, err := sqlitestore.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open access-log store: %v", err)
		}
		defer store.Close()

		storeSink, err := accesslog.NewStoreLogger(store)
		if err != nil {
			log.Fatalf("Failed to create access-log sink: %v", err)
		}
		sinks = append(sinks, storeSink)
	}

	var geoResolver runtime.GeoResolver = geo.NoopResolver{}
	if cfg.Geo.TrustHeaders {
		geoResolver = geo.NewHeaderResolver()
	}

	pipeline := hook.New(
		inspect.NewClient(cfg.Engine.URL, cfg.Engine.Timeout),
		oracle.NewStatic(cfg.Engine.Token),
		accesslog.NewMulti(sinks...),
	)

	worker := proxy.NewWorker(pipeline, upstreamURL, logger, geoResolver)

	srv := server.New(cfg.Server.Listen, cfg.Server.Timeout, logger)
	srv.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv.Router.Handle("/*", worker)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	logger.Info("worker started",
		slog.String("listen", cfg.Server.Listen),
		slog.String("upstream", cfg.Upstream.URL),
		slog.String("engine", cfg.Engine.URL),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("worker shutdown complete")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
