package tracesource

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"
)

const (
	defaultPointerSize = 8
	maxLineSize        = 16 * 1024 * 1024
)

// Reader reads decoded events from a JSON-lines export, one event per line.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// Open opens a JSON-lines export on disk.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace %s: %w", path, err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// NewReader reads events from r. The caller keeps ownership of r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF once the export is exhausted.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		// The scanner reuses its buffer between calls.
		line := append([]byte(nil), raw...)
		ev, err := ParseEvent(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", r.line, ErrMalformedEvent, err)
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return nil, io.EOF
}

// Close closes the underlying file when the reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// jsonEvent is an Event backed by one line of the export. Only the header is
// decoded eagerly; properties and payload are extracted on access.
type jsonEvent struct {
	name        string
	timestamp   int64
	pid         uint32
	tid         uint32
	pointerSize uint32
	raw         []byte
	props       jsonProperties
}

// ParseEvent decodes the header of a single JSON-encoded event.
func ParseEvent(line []byte) (Event, error) {
	name, err := jsonparser.GetString(line, "name")
	if err != nil {
		return nil, fmt.Errorf("event name: %w", err)
	}

	ev := &jsonEvent{name: name, raw: line, pointerSize: defaultPointerSize}

	if ev.timestamp, err = headerInt(line, "timestamp"); err != nil {
		return nil, err
	}
	pid, err := headerInt(line, "pid")
	if err != nil {
		return nil, err
	}
	tid, err := headerInt(line, "tid")
	if err != nil {
		return nil, err
	}
	ptr, err := headerInt(line, "pointer_size")
	if err != nil {
		return nil, err
	}
	//nolint:gosec // Header ids are 32-bit in the trace format
	ev.pid, ev.tid = uint32(pid), uint32(tid)
	if ptr != 0 {
		//nolint:gosec // Pointer sizes are 4 or 8
		ev.pointerSize = uint32(ptr)
	}

	props, typ, _, err := jsonparser.Get(line, "properties")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
	case err != nil:
		return nil, fmt.Errorf("event %s properties: %w", name, err)
	case typ != jsonparser.Object:
		return nil, fmt.Errorf("event %s properties: %w", name, ErrPropertyType)
	}
	ev.props = jsonProperties{event: ev, raw: props}

	return ev, nil
}

// headerInt reads an optional integer header field, returning 0 when absent.
func headerInt(line []byte, key string) (int64, error) {
	raw, typ, _, err := jsonparser.Get(line, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("header %s: %w", key, err)
	}
	v, err := parseInt(raw, typ)
	if err != nil {
		return 0, fmt.Errorf("header %s: %w", key, err)
	}
	return v, nil
}

func (e *jsonEvent) Name() string           { return e.name }
func (e *jsonEvent) Timestamp() int64       { return e.timestamp }
func (e *jsonEvent) ProcessID() uint32      { return e.pid }
func (e *jsonEvent) ThreadID() uint32       { return e.tid }
func (e *jsonEvent) PointerSize() uint32    { return e.pointerSize }
func (e *jsonEvent) Properties() Properties { return &e.props }

type jsonProperties struct {
	event *jsonEvent
	raw   []byte
}

func (p *jsonProperties) get(name string) ([]byte, jsonparser.ValueType, error) {
	if p.raw == nil {
		return nil, jsonparser.NotExist, fmt.Errorf("%s: %q: %w", p.event.name, name, ErrPropertyNotFound)
	}
	raw, typ, _, err := jsonparser.Get(p.raw, name)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, typ, fmt.Errorf("%s: %q: %w", p.event.name, name, ErrPropertyNotFound)
	}
	if err != nil {
		return nil, typ, fmt.Errorf("%s: %q: %w", p.event.name, name, err)
	}
	return raw, typ, nil
}

func (p *jsonProperties) String(name string) (string, error) {
	raw, typ, err := p.get(name)
	if err != nil {
		return "", err
	}
	if typ != jsonparser.String {
		return "", fmt.Errorf("%s: %q: %w", p.event.name, name, ErrPropertyType)
	}
	return jsonparser.ParseString(raw)
}

func (p *jsonProperties) Uint64(name string) (uint64, error) {
	raw, typ, err := p.get(name)
	if err != nil {
		return 0, err
	}
	v, err := parseUint(raw, typ, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", p.event.name, name, err)
	}
	return v, nil
}

func (p *jsonProperties) Uint32(name string) (uint32, error) {
	raw, typ, err := p.get(name)
	if err != nil {
		return 0, err
	}
	v, err := parseUint(raw, typ, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", p.event.name, name, err)
	}
	return uint32(v), nil
}

func (p *jsonProperties) Int64(name string) (int64, error) {
	raw, typ, err := p.get(name)
	if err != nil {
		return 0, err
	}
	v, err := parseInt(raw, typ)
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", p.event.name, name, err)
	}
	return v, nil
}

func (p *jsonProperties) Pointer(name string) (uint64, error) {
	raw, typ, err := p.get(name)
	if err != nil {
		return 0, err
	}
	bits := 64
	if p.event.pointerSize == 4 {
		bits = 32
	}
	v, err := parseUint(raw, typ, bits)
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", p.event.name, name, err)
	}
	return v, nil
}

func (p *jsonProperties) GUID(name string) (uuid.UUID, error) {
	s, err := p.String(name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %q: %w", p.event.name, name, err)
	}
	return id, nil
}

func (p *jsonProperties) Payload() ([]byte, error) {
	raw, typ, _, err := jsonparser.Get(p.event.raw, "payload")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) || typ == jsonparser.Null {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: payload: %w", p.event.name, err)
	}
	if typ != jsonparser.String {
		return nil, fmt.Errorf("%s: payload: %w", p.event.name, ErrPropertyType)
	}
	buf, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: payload: %w", p.event.name, err)
	}
	return buf, nil
}

// parseUint accepts JSON numbers and strings; strings may carry a 0x prefix.
func parseUint(raw []byte, typ jsonparser.ValueType, bits int) (uint64, error) {
	switch typ {
	case jsonparser.Number:
		return strconv.ParseUint(string(raw), 10, bits)
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return 0, err
		}
		return strconv.ParseUint(strings.TrimSpace(s), 0, bits)
	default:
		return 0, ErrPropertyType
	}
}

func parseInt(raw []byte, typ jsonparser.ValueType) (int64, error) {
	switch typ {
	case jsonparser.Number:
		return strconv.ParseInt(string(raw), 10, 64)
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return 0, err
		}
		return strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	default:
		return 0, ErrPropertyType
	}
}
