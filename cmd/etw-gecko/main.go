// etw-gecko converts a decoded ETW sampling trace into a Firefox Profiler (Gecko) profile.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/etw-gecko/internal/config"
	"github.com/mrzor/etw-gecko/internal/convert"
	"github.com/mrzor/etw-gecko/internal/logging"
	"github.com/mrzor/etw-gecko/internal/otel"
	"github.com/mrzor/etw-gecko/internal/output"
)

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupOTEL initializes the OTEL provider and returns a tracer and cleanup function.
func setupOTEL(ctx context.Context, logger *zap.Logger) (trace.Tracer, func(), error) {
	// Parse OTEL configuration from environment
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}

	tp, err := otel.InitProvider(ctx, otelCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			logger.Warn("shutting down OTEL provider", zap.Error(err))
		}
	}

	return otel.Tracer(tp), cleanup, nil
}

func run() error {
	// Parse command line arguments
	cfg, err := config.ParseArgs(os.Args, version)
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		fmt.Printf("etw-gecko %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	envCfg, err := config.ParseEnvConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(envCfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	}()

	logger.Debug("starting etw-gecko",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("built", date))

	writer, err := output.New(cfg.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, cleanupOTEL, err := setupOTEL(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanupOTEL()

	res, err := convert.Convert(ctx, convert.OptionsFromConfig(cfg), logger, tracer)
	if err != nil {
		return err
	}

	if err := output.WriteFile(cfg.OutputPath, writer, res.Profile); err != nil {
		return err
	}

	fmt.Printf("Wrote %d samples from %d threads and %d libraries to %s\n",
		res.Stats.Samples, len(res.Profile.Threads()), res.Stats.Libraries, cfg.OutputPath)
	return nil
}
