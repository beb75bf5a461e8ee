package gecko

import "strconv"

// Sample is one stack of a thread's timeline. Stack is ordered from the
// outermost frame to the innermost.
type Sample struct {
	Time     float64 // milliseconds
	Stack    []uint64
	CPUDelta uint64
}

// ThreadBuilder accumulates the samples of one thread.
type ThreadBuilder struct {
	pid       uint32
	tid       uint32
	index     int
	startTime float64
	isMain    bool
	name      string
	samples   []Sample
}

// NewThread creates a thread timeline. index orders threads within the profile.
func NewThread(pid uint32, index int, startTime float64, isMain bool) *ThreadBuilder {
	return &ThreadBuilder{
		pid:       pid,
		tid:       uint32(index), //nolint:gosec // Replaced by SetTID when the real id is known
		index:     index,
		startTime: startTime,
		isMain:    isMain,
	}
}

// SetName sets the display name of the thread.
func (t *ThreadBuilder) SetName(name string) {
	t.name = name
}

// SetTID records the operating-system thread id.
func (t *ThreadBuilder) SetTID(tid uint32) {
	t.tid = tid
}

// AddSample appends a sample. The stack slice is copied.
func (t *ThreadBuilder) AddSample(timeMs float64, stack []uint64, cpuDelta uint64) {
	t.samples = append(t.samples, Sample{
		Time:     timeMs,
		Stack:    append([]uint64(nil), stack...),
		CPUDelta: cpuDelta,
	})
}

func (t *ThreadBuilder) Name() string      { return t.name }
func (t *ThreadBuilder) PID() uint32       { return t.pid }
func (t *ThreadBuilder) TID() uint32       { return t.tid }
func (t *ThreadBuilder) Index() int        { return t.index }
func (t *ThreadBuilder) Samples() []Sample { return t.samples }

// DisplayName is the name shown for the thread, with a generated fallback
// for unnamed threads.
func (t *ThreadBuilder) DisplayName() string {
	switch {
	case t.name != "":
		return t.name
	case t.isMain:
		return "GeckoMain"
	default:
		return "Thread " + strconv.FormatUint(uint64(t.tid), 10)
	}
}
