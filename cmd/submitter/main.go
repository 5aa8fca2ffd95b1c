package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"submitter/internal/api"
	"submitter/internal/config"
	"submitter/internal/logger"
	"submitter/internal/observability"
	"submitter/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	signature     = flag.String("signature", "", "Signature sent as the bearer credential (defaults to $SUBMITTER_SIGNATURE)")
	concurrency   = flag.Int("concurrency", 0, "Maximum documents in flight, 0 for no limit")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration to this path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	ver := version.Get()

	if *showVersion {
		fmt.Println(ver.String())
		return 0
	}

	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			return 1
		}
		return 0
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	sig := *signature
	if sig == "" {
		sig = os.Getenv("SUBMITTER_SIGNATURE")
	}
	if flag.NArg() == 0 {
		slog.Error("No document files given", "usage", "submitter [-config file] [-signature sig] doc.json...")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	svc, err := newService(ctx, cfg, cfg.Metrics.Enabled || cfg.Observability.Tracing.Enabled)
	if err != nil {
		slog.Error("Failed to initialize submitter", "error", err)
		return 1
	}
	defer svc.Close()

	if cfg.Metrics.Enabled {
		status := api.NewHandlers(
			api.WithPool(svc.pool),
			api.WithJournal(svc.journal),
			api.WithStats(svc.stats),
			api.WithVersion(ver),
		)
		metricsServer := observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider, svc.Health, status.Register)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("Metrics server forced to shutdown", "error", err)
			}
		}()
	}

	slog.Info("Submitting documents",
		"count", flag.NArg(),
		"request_limit", cfg.Limiter.RequestLimit,
		"window", svc.pool.Window(),
		"endpoint", cfg.Endpoint.URL,
	)

	results := submitAll(ctx, svc.gateway, flag.Args(), sig, *concurrency)
	failed := printResults(os.Stdout, results)

	if ctx.Err() != nil {
		slog.Warn("Interrupted, remaining submissions cancelled")
	}
	if failed > 0 {
		slog.Error("Some documents were not accepted", "failed", failed, "total", len(results))
		return 1
	}
	return 0
}
