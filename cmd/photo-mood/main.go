// Command photo-mood runs the enrichment orchestrator: an HTTP upload
// endpoint in front of fan-out workers reached over the configured pub/sub
// transport.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeffasante/photo-mood/internal/config"
	"github.com/jeffasante/photo-mood/internal/httpapi"
	"github.com/jeffasante/photo-mood/internal/logging"
	"github.com/jeffasante/photo-mood/internal/orchestrator"

	// Transport backends register themselves on import.
	_ "github.com/jeffasante/photo-mood/internal/transport/aws"
	_ "github.com/jeffasante/photo-mood/internal/transport/channel"
	_ "github.com/jeffasante/photo-mood/internal/transport/jetstream"
	_ "github.com/jeffasante/photo-mood/internal/transport/kafka"
	_ "github.com/jeffasante/photo-mood/internal/transport/nats"
	_ "github.com/jeffasante/photo-mood/internal/transport/rabbitmq"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("photo-mood", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (optional, env vars apply on top)")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if *showVersion {
		fmt.Printf("photo-mood version %s\n", version)
		return 0
	}

	if *configPath == "" {
		*configPath = os.Getenv("PHOTOMOOD_CONFIG")
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := newLogger(conf.LogLevel)
	logger.Info("photo-mood starting", logging.LogFields{
		"version":       version,
		"pubsub_system": conf.PubSubSystem,
		"services":      conf.ServiceTags(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.NewService(ctx, conf, logger, orchestrator.ServiceDependencies{})
	if err != nil {
		logger.Error("failed to create orchestrator", err, nil)
		return 1
	}
	defer svc.Close()

	errCh := make(chan error, 2)
	go func() {
		if err := svc.Start(ctx); err != nil {
			errCh <- fmt.Errorf("router: %w", err)
		}
	}()

	select {
	case <-svc.Running():
	case <-ctx.Done():
		return 0
	case err := <-errCh:
		logger.Error("router failed to start", err, nil)
		return 1
	}

	api := httpapi.New(conf, svc, logger)
	go func() {
		if err := api.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received", nil)
	case err := <-errCh:
		logger.Error("component failed", err, nil)
		stop()
		return 1
	}

	if err := svc.Close(); err != nil {
		logger.Error("shutdown finished with errors", err, nil)
		return 1
	}
	logger.Info("shutdown complete", nil)
	return 0
}

func newLogger(level string) logging.ServiceLogger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return logging.NewSlogServiceLogger(slog.New(handler))
}
