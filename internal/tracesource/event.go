// Package tracesource adapts the output of the external ETW decoding service
// into typed events.
//
// The decoding service turns a binary ETL file into named events with a
// property bag. This package reads its JSON-lines export and exposes each
// record as an Event whose properties are parsed on demand.
package tracesource

import (
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors for property access.
var (
	// ErrPropertyNotFound is returned when a named field is absent from the event.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrPropertyType is returned when a field exists but cannot be read as the requested type.
	ErrPropertyType = errors.New("property has unexpected type")
	// ErrMalformedEvent is returned by a Source for a record that could not be
	// decoded. The source remains usable and Next may be called again.
	ErrMalformedEvent = errors.New("malformed event")
)

// Event is one decoded trace event. It is only valid for the duration of the
// callback it is handed to.
type Event interface {
	// Name is the logical event name, e.g. "MSNT_SystemTrace/StackWalk/Stack".
	Name() string
	// Timestamp is the raw event header timestamp in 100ns ticks.
	Timestamp() int64
	// ProcessID is the process id from the event header.
	ProcessID() uint32
	// ThreadID is the thread id from the event header.
	ThreadID() uint32
	// PointerSize is the pointer width of the traced system in bytes.
	PointerSize() uint32
	// Properties returns the lazily parsed property bag.
	Properties() Properties
}

// Properties gives typed access to the fields of an event.
type Properties interface {
	String(name string) (string, error)
	Uint32(name string) (uint32, error)
	Uint64(name string) (uint64, error)
	Int64(name string) (int64, error)
	// Pointer reads a pointer-sized integer.
	Pointer(name string) (uint64, error)
	GUID(name string) (uuid.UUID, error)
	// Payload returns the raw bytes trailing the fixed fields, used for
	// variable-length arrays such as stack walks.
	Payload() ([]byte, error)
}

// Source yields events one at a time. Next returns io.EOF at the end of the trace.
type Source interface {
	Next() (Event, error)
	Close() error
}
