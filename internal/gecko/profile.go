// Package gecko assembles sampled stacks into a Gecko profile, the JSON
// format loaded by the Firefox Profiler.
//
// Frames are not symbolicated: each frame location is the hexadecimal
// instruction pointer, and the libs table carries the breakpad identifiers a
// symbolication server needs to resolve them.
package gecko

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const formatVersion = 24

// Lib is a loaded library as recorded in the profile.
type Lib struct {
	Name      string
	Path      string
	DebugName string
	DebugPath string
	UUID      uuid.UUID
	Age       uint32
	Arch      string
	Start     uint64
	End       uint64
}

// BreakpadID is the GUID as upper-case hex without separators followed by
// the age in upper-case hex.
func (l Lib) BreakpadID() string {
	id := strings.ToUpper(strings.ReplaceAll(l.UUID.String(), "-", ""))
	return fmt.Sprintf("%s%X", id, l.Age)
}

// Profile collects libraries and threads for one recording.
type Profile struct {
	startTime time.Time
	product   string
	interval  time.Duration
	libs      []Lib
	threads   []*ThreadBuilder
}

// NewProfile creates an empty profile.
func NewProfile(startTime time.Time, product string, interval time.Duration) *Profile {
	return &Profile{
		startTime: startTime,
		product:   product,
		interval:  interval,
	}
}

// AddLib records a library with its debug identity and address range [start, end).
func (p *Profile) AddLib(debugName, codeName string, id uuid.UUID, age uint32, arch string, start, end uint64) {
	p.libs = append(p.libs, Lib{
		Name:      debugName,
		Path:      codeName,
		DebugName: debugName,
		DebugPath: debugName,
		UUID:      id,
		Age:       age,
		Arch:      arch,
		Start:     start,
		End:       end,
	})
}

// AddThread takes ownership of a finished thread.
func (p *Profile) AddThread(t *ThreadBuilder) {
	p.threads = append(p.threads, t)
}

// Libs returns the recorded libraries in insertion order.
func (p *Profile) Libs() []Lib {
	return p.libs
}

// Threads returns the added threads in insertion order.
func (p *Profile) Threads() []*ThreadBuilder {
	return p.threads
}

// StartTime returns the wall-clock time the profile was started.
func (p *Profile) StartTime() time.Time {
	return p.startTime
}

// Interval returns the nominal sampling interval.
func (p *Profile) Interval() time.Duration {
	return p.interval
}

// SampleCount returns the number of samples across all threads.
func (p *Profile) SampleCount() int {
	n := 0
	for _, t := range p.threads {
		n += len(t.samples)
	}
	return n
}
