// Package eventstream pumps events from a trace source into a handler.
package eventstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mrzor/etw-gecko/internal/tracesource"
)

// Handler consumes events in trace order.
type Handler interface {
	HandleEvent(ev tracesource.Event) error
}

// Stream reads events from a source and dispatches them to a handler.
type Stream struct {
	source  tracesource.Source
	handler Handler
	logger  *zap.Logger
	strict  bool
	skipped int
}

// New creates a new Stream with the given source and event handler.
// Unless strict is set, records the source cannot decode are logged and skipped.
func New(source tracesource.Source, handler Handler, logger *zap.Logger, strict bool) *Stream {
	return &Stream{
		source:  source,
		handler: handler,
		logger:  logger,
		strict:  strict,
	}
}

// Run processes events on the calling goroutine until the source is
// exhausted, the context is cancelled, or the handler returns an error.
// It returns the number of events handed to the handler. Reaching the end
// of the source is not an error.
func (s *Stream) Run(ctx context.Context) (int, error) {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		default:
		}

		ev, err := s.source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("end of trace", zap.Int("events", n), zap.Int("skipped", s.skipped))
				return n, nil
			}
			if !s.strict && errors.Is(err, tracesource.ErrMalformedEvent) {
				s.skipped++
				s.logger.Warn("skipping malformed record", zap.Error(err))
				continue
			}
			return n, fmt.Errorf("reading trace: %w", err)
		}
		n++

		if err := s.handler.HandleEvent(ev); err != nil {
			return n, fmt.Errorf("handling event %d: %w", n, err)
		}
	}
}

// Skipped returns the number of malformed records skipped so far.
func (s *Stream) Skipped() int {
	return s.skipped
}
