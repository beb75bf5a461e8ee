// Package convert runs one trace-to-profile conversion.
package convert

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/etw-gecko/internal/config"
	"github.com/mrzor/etw-gecko/internal/eventprocessor"
	"github.com/mrzor/etw-gecko/internal/eventstream"
	"github.com/mrzor/etw-gecko/internal/gecko"
	"github.com/mrzor/etw-gecko/internal/target"
	"github.com/mrzor/etw-gecko/internal/timesync"
	"github.com/mrzor/etw-gecko/internal/tracesource"
)

// Options configure a conversion.
type Options struct {
	TracePath           string
	Selector            target.Selector
	Strict              bool
	Product             string
	Interval            time.Duration
	TicksPerMillisecond float64
	// StartTime is the wall-clock time recorded in the profile header.
	// Zero means now.
	StartTime time.Time
}

// OptionsFromConfig maps command-line settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TracePath:           cfg.TracePath,
		Selector:            cfg.Selector,
		Strict:              cfg.Strict,
		Product:             cfg.Product,
		Interval:            cfg.Interval,
		TicksPerMillisecond: cfg.TicksPerMillisecond,
	}
}

// Result is a finished conversion.
type Result struct {
	Profile *gecko.Profile
	Stats   eventprocessor.Stats
	// MalformedRecords counts source records skipped before routing.
	MalformedRecords int
}

// Convert reads the trace at opts.TracePath and builds its profile.
func Convert(ctx context.Context, opts Options, logger *zap.Logger, tracer trace.Tracer) (*Result, error) {
	src, err := tracesource.Open(opts.TracePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("closing trace", zap.Error(err))
		}
	}()

	return ConvertSource(ctx, src, opts, logger, tracer)
}

// ConvertSource builds a profile from an already opened source.
func ConvertSource(ctx context.Context, src tracesource.Source, opts Options, logger *zap.Logger, tracer trace.Tracer) (*Result, error) {
	ctx, span := tracer.Start(ctx, "convert", trace.WithAttributes(
		attribute.String("etw_gecko.trace", opts.TracePath),
		attribute.String("etw_gecko.selector", opts.Selector.String()),
		attribute.Bool("etw_gecko.strict", opts.Strict),
	))
	defer span.End()

	res, err := convert(ctx, src, opts, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(statsAttributes(res)...)
	return res, nil
}

func convert(ctx context.Context, src tracesource.Source, opts Options, logger *zap.Logger) (*Result, error) {
	filter, err := target.New(opts.Selector)
	if err != nil {
		return nil, err
	}

	clock := timesync.NewConverter()
	if opts.TicksPerMillisecond != 0 {
		if clock, err = timesync.NewConverterWithResolution(opts.TicksPerMillisecond); err != nil {
			return nil, err
		}
	}

	start := opts.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	interval := opts.Interval
	if interval == 0 {
		interval = config.DefaultInterval
	}
	profile := gecko.NewProfile(start, opts.Product, interval)

	processor := eventprocessor.NewProcessor(filter, profile, clock, logger.Named("eventprocessor"), opts.Strict)
	stream := eventstream.New(src, processor, logger.Named("eventstream"), opts.Strict)

	logger.Info("converting trace",
		zap.String("trace", opts.TracePath),
		zap.Stringer("selector", opts.Selector),
		zap.Bool("strict", opts.Strict),
		zap.Float64("ticks_per_ms", clock.TicksPerMillisecond()))

	if _, err := stream.Run(ctx); err != nil {
		return nil, fmt.Errorf("converting %s: %w", opts.TracePath, err)
	}

	res := &Result{
		Profile:          processor.Finish(),
		Stats:            processor.Stats(),
		MalformedRecords: stream.Skipped(),
	}
	if filter.Len() == 0 {
		logger.Warn("no process matched the selector", zap.Stringer("selector", opts.Selector))
	}
	logger.Info("conversion finished", statsFields(res)...)
	return res, nil
}

func statsFields(res *Result) []zap.Field {
	s := res.Stats
	return []zap.Field{
		zap.Int("events", s.Events),
		zap.Int("threads", len(res.Profile.Threads())),
		zap.Int("samples", s.Samples),
		zap.Int("merged", s.Merged),
		zap.Int("flushed_kernel_stacks", s.FlushedKernelStacks),
		zap.Int("superseded_kernel_stacks", s.SupersededKernelStacks),
		zap.Int("dropped_user_stacks", s.DroppedUserStacks),
		zap.Int("unmatched_stack_walks", s.UnmatchedStackWalks),
		zap.Int("discarded_kernel_stacks", s.DiscardedKernelStacks),
		zap.Int("dropped_interrupts", s.DroppedInterrupts),
		zap.Int("libraries", s.Libraries),
		zap.Int("skipped_libraries", s.SkippedLibraries),
		zap.Int("skipped_events", s.SkippedEvents),
		zap.Int("malformed_records", res.MalformedRecords),
	}
}

func statsAttributes(res *Result) []attribute.KeyValue {
	s := res.Stats
	return []attribute.KeyValue{
		attribute.Int("etw_gecko.events", s.Events),
		attribute.Int("etw_gecko.threads", len(res.Profile.Threads())),
		attribute.Int("etw_gecko.samples", s.Samples),
		attribute.Int("etw_gecko.libraries", s.Libraries),
		attribute.Int("etw_gecko.skipped_events", s.SkippedEvents),
		attribute.Int("etw_gecko.malformed_records", res.MalformedRecords),
	}
}
