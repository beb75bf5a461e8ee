package stackwalk

// Phase is the stitching state of one thread.
type Phase int

const (
	// Idle means no kernel fragment is buffered.
	Idle Phase = iota
	// KernelPending means a kernel fragment waits for its user-mode half.
	KernelPending
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case KernelPending:
		return "kernel-pending"
	default:
		return "unknown"
	}
}

// Outcome describes what a stack-walk fragment did to the state machine.
type Outcome int

const (
	// Unmatched: the fragment is not tied to a sampling interrupt and was discarded.
	Unmatched Outcome = iota
	// KernelBuffered: a kernel fragment was buffered while Idle.
	KernelBuffered
	// KernelSuperseded: a kernel fragment replaced an unconsumed one, which is lost.
	KernelSuperseded
	// Merged: a user fragment completed the buffered kernel fragment into one sample.
	Merged
	// StaleKernelFlushed: the buffered kernel fragment did not match the user
	// fragment's timestamp and was emitted alone.
	StaleKernelFlushed
	// UserDropped: a user fragment arrived with nothing buffered.
	UserDropped
)

func (o Outcome) String() string {
	switch o {
	case Unmatched:
		return "unmatched"
	case KernelBuffered:
		return "kernel-buffered"
	case KernelSuperseded:
		return "kernel-superseded"
	case Merged:
		return "merged"
	case StaleKernelFlushed:
		return "stale-kernel-flushed"
	case UserDropped:
		return "user-dropped"
	default:
		return "unknown"
	}
}

// Sample is one reconstructed stack at a raw trace timestamp.
type Sample struct {
	Timestamp uint64
	Frames    []uint64
}

// Stitcher holds the per-thread stitching state.
type Stitcher struct {
	phase      Phase
	kernel     []uint64
	kernelTime uint64

	lastSample    int64
	hasLastSample bool
}

// Phase returns the current state.
func (s *Stitcher) Phase() Phase {
	return s.phase
}

// PendingKernel returns the buffered kernel fragment and its timestamp.
func (s *Stitcher) PendingKernel() ([]uint64, uint64, bool) {
	if s.phase != KernelPending {
		return nil, 0, false
	}
	return s.kernel, s.kernelTime, true
}

// MarkSample records the timestamp of a sampling interrupt for this thread,
// replacing any earlier one.
func (s *Stitcher) MarkSample(timestamp int64) {
	s.lastSample = timestamp
	s.hasLastSample = true
}

// Accepts reports whether a stack-walk fragment at timestamp belongs to the
// most recent sampling interrupt. Fragments that do not are discarded
// without looking at their frames.
func (s *Stitcher) Accepts(timestamp uint64) bool {
	//nolint:gosec // Stack-walk timestamps and header timestamps share the same clock
	return s.hasLastSample && int64(timestamp) == s.lastSample
}

// Stitch feeds one stack-walk fragment. frames must already be in profile
// order; frames[0] decides whether the fragment is kernel or user mode.
// A sample is returned only for Merged and StaleKernelFlushed.
func (s *Stitcher) Stitch(timestamp uint64, frames []uint64, pointerSize uint32) (*Sample, Outcome) {
	if !s.Accepts(timestamp) || len(frames) == 0 {
		return nil, Unmatched
	}

	if IsKernelAddress(frames[0], pointerSize) {
		outcome := KernelBuffered
		if s.phase == KernelPending {
			outcome = KernelSuperseded
		}
		s.phase = KernelPending
		s.kernel = frames
		s.kernelTime = timestamp
		return nil, outcome
	}

	switch s.phase {
	case KernelPending:
		kernel, kernelTime := s.kernel, s.kernelTime
		s.reset()
		if kernelTime == timestamp {
			merged := make([]uint64, 0, len(frames)+len(kernel))
			merged = append(merged, frames...)
			merged = append(merged, kernel...)
			return &Sample{Timestamp: timestamp, Frames: merged}, Merged
		}
		return &Sample{Timestamp: kernelTime, Frames: kernel}, StaleKernelFlushed
	default:
		// Kernel fragments are delivered before their user half, so a user
		// fragment on its own has no kernel part to wait for.
		return nil, UserDropped
	}
}

func (s *Stitcher) reset() {
	s.phase = Idle
	s.kernel = nil
	s.kernelTime = 0
}
