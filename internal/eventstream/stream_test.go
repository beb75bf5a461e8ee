package eventstream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrzor/etw-gecko/internal/tracesource"
)

type recordingHandler struct {
	names []string
	err   error
}

func (h *recordingHandler) HandleEvent(ev tracesource.Event) error {
	h.names = append(h.names, ev.Name())
	return h.err
}

const trace = `{"name":"a","timestamp":1}
{"name":"b","timestamp":2}

{"name":"c","timestamp":3}
`

func TestStream_RunToEOF(t *testing.T) {
	h := &recordingHandler{}
	s := New(tracesource.NewReader(strings.NewReader(trace)), h, zap.NewNop(), false)

	n, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, h.names)
}

func TestStream_HandlerErrorStops(t *testing.T) {
	boom := errors.New("boom")
	h := &recordingHandler{err: boom}
	s := New(tracesource.NewReader(strings.NewReader(trace)), h, zap.NewNop(), false)

	n, err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "handling event 1")
}

func TestStream_MalformedRecordSkipped(t *testing.T) {
	input := "{\"name\":\"a\"}\n{\"name\":\n{\"name\":\"b\"}\n"
	h := &recordingHandler{}
	s := New(tracesource.NewReader(strings.NewReader(input)), h, zap.NewNop(), false)

	n, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.Skipped())
	assert.Equal(t, []string{"a", "b"}, h.names)
}

func TestStream_MalformedRecordStrict(t *testing.T) {
	input := "{\"name\":\"a\"}\n{\"name\":\n{\"name\":\"b\"}\n"
	h := &recordingHandler{}
	s := New(tracesource.NewReader(strings.NewReader(input)), h, zap.NewNop(), true)

	_, err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, tracesource.ErrMalformedEvent)
	assert.Equal(t, []string{"a"}, h.names)
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &recordingHandler{}
	s := New(tracesource.NewReader(strings.NewReader(trace)), h, zap.NewNop(), false)

	n, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Empty(t, h.names)
}
