package eventprocessor

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/mrzor/etw-gecko/internal/gecko"
	"github.com/mrzor/etw-gecko/internal/libtable"
	"github.com/mrzor/etw-gecko/internal/stackwalk"
	"github.com/mrzor/etw-gecko/internal/target"
	"github.com/mrzor/etw-gecko/internal/threadstate"
	"github.com/mrzor/etw-gecko/internal/timesync"
	"github.com/mrzor/etw-gecko/internal/tracesource"
)

// Event names understood by the processor.
const (
	EventThreadDCStart  = "MSNT_SystemTrace/Thread/DCStart"
	EventThreadStart    = "MSNT_SystemTrace/Thread/Start"
	EventProcessDCStart = "MSNT_SystemTrace/Process/DCStart"
	EventProcessStart   = "MSNT_SystemTrace/Process/Start"
	EventStackWalk      = "MSNT_SystemTrace/StackWalk/Stack"
	EventSampleProf     = "MSNT_SystemTrace/PerfInfo/SampleProf"
	EventImageID        = "KernelTraceControl/ImageID/"
	EventImageDebugID   = "KernelTraceControl/ImageID/DbgID_RSDS"
)

// kernelPID is the pseudo-process that owns kernel-mode images.
const kernelPID = 0

// Stats counts what happened to the events of a run.
type Stats struct {
	Events                 int
	Samples                int
	Merged                 int
	FlushedKernelStacks    int
	SupersededKernelStacks int
	DroppedUserStacks      int
	UnmatchedStackWalks    int
	DiscardedKernelStacks  int
	DroppedInterrupts      int
	Libraries              int
	SkippedLibraries       int
	SkippedEvents          int
}

// Processor coordinates event processing.
// It owns the per-run state and feeds finished samples and libraries into a profile.
type Processor struct {
	filter  *target.Filter
	libs    *libtable.Table
	threads *threadstate.Store
	profile *gecko.Profile
	clock   *timesync.Converter
	logger  *zap.Logger
	strict  bool
	stats   Stats
}

// NewProcessor creates a new event processor.
// In strict mode the first event that cannot be handled aborts the run;
// otherwise such events are logged and skipped.
func NewProcessor(
	filter *target.Filter,
	profile *gecko.Profile,
	clock *timesync.Converter,
	logger *zap.Logger,
	strict bool,
) *Processor {
	return &Processor{
		filter:  filter,
		libs:    libtable.New(),
		threads: threadstate.NewStore(),
		profile: profile,
		clock:   clock,
		logger:  logger,
		strict:  strict,
	}
}

// HandleEvent routes events by name to specialized handlers.
func (p *Processor) HandleEvent(ev tracesource.Event) error {
	p.stats.Events++

	var err error
	switch ev.Name() {
	case EventThreadDCStart, EventThreadStart:
		err = p.handleThreadStart(ev)
	case EventProcessDCStart, EventProcessStart:
		err = p.handleProcessStart(ev)
	case EventStackWalk:
		err = p.handleStackWalk(ev)
	case EventSampleProf:
		err = p.handleSampleProf(ev)
	case EventImageID:
		err = p.handleImageID(ev)
	case EventImageDebugID:
		err = p.handleImageDebugID(ev)
	default:
		// Unknown event - ignore
		return nil
	}
	if err == nil {
		return nil
	}

	if p.strict {
		return fmt.Errorf("%s at %d: %w", ev.Name(), ev.Timestamp(), err)
	}
	p.stats.SkippedEvents++
	p.logger.Warn("skipping event",
		zap.String("event", ev.Name()),
		zap.Int64("timestamp", ev.Timestamp()),
		zap.Error(err))
	return nil
}

// Finish moves every thread into the profile and returns it.
// Kernel fragments still waiting for their user half are discarded.
func (p *Processor) Finish() *gecko.Profile {
	for _, t := range p.threads.Drain() {
		if frames, ts, ok := t.Stitcher.PendingKernel(); ok {
			p.stats.DiscardedKernelStacks++
			p.logger.Debug("discarding pending kernel stack",
				zap.Uint32("tid", t.TID),
				zap.Uint64("timestamp", ts),
				zap.Int("frames", len(frames)))
		}
		p.profile.AddThread(t.Builder)
	}
	p.logger.Debug("image table drained",
		zap.Int("recorded_images", p.libs.Len()),
		zap.Int("libraries", p.stats.Libraries))
	return p.profile
}

// Stats returns the counters accumulated so far.
func (p *Processor) Stats() Stats {
	return p.stats
}

// handleThreadStart registers threads of admitted processes.
func (p *Processor) handleThreadStart(ev tracesource.Event) error {
	pid := ev.ProcessID()
	if !p.filter.Admit(pid) {
		return nil
	}

	props := ev.Properties()
	tid, err := props.Uint32("TThreadId")
	if err != nil {
		return err
	}
	name, err := optionalString(props, "ThreadName")
	if err != nil {
		return err
	}

	thread, created := p.threads.GetOrCreate(tid, pid)
	thread.SetName(name)
	if created {
		p.logger.Debug("thread registered",
			zap.Uint32("pid", pid),
			zap.Uint32("tid", tid),
			zap.String("name", name))
	}
	return nil
}

// handleProcessStart resolves a name or expression criterion to process ids.
func (p *Processor) handleProcessStart(ev tracesource.Event) error {
	if !p.filter.Pending() {
		return nil
	}

	props := ev.Properties()
	image, err := props.String("ImageFileName")
	if err != nil {
		return err
	}
	pid, err := props.Uint32("ProcessId")
	if err != nil {
		return err
	}
	cmdline, err := optionalString(props, "CommandLine")
	if err != nil {
		return err
	}

	admitted, err := p.filter.ObserveProcessStart(pid, image, cmdline)
	if err != nil {
		return err
	}
	if admitted {
		p.logger.Info("process admitted", zap.Uint32("pid", pid), zap.String("image", image))
	}
	return nil
}

// handleStackWalk decodes a stack fragment and feeds it to the thread's stitcher.
func (p *Processor) handleStackWalk(ev tracesource.Event) error {
	props := ev.Properties()
	pid, err := props.Uint32("StackProcess")
	if err != nil {
		return err
	}
	if !p.filter.Admit(pid) {
		return nil
	}

	tid, err := props.Uint32("StackThread")
	if err != nil {
		return err
	}
	timestamp, err := props.Int64("EventTimeStamp")
	if err != nil {
		return err
	}

	thread, _ := p.threads.GetOrCreate(tid, pid)
	//nolint:gosec // Trace timestamps are non-negative
	ts := uint64(timestamp)
	if !thread.Stitcher.Accepts(ts) {
		p.stats.UnmatchedStackWalks++
		return nil
	}

	payload, err := props.Payload()
	if err != nil {
		return err
	}
	frames, err := stackwalk.DecodeAddresses(payload, ev.PointerSize())
	if err != nil {
		return err
	}
	// The walker reports the innermost frame first.
	slices.Reverse(frames)

	sample, outcome := thread.Stitcher.Stitch(ts, frames, ev.PointerSize())
	p.countOutcome(outcome)
	if sample == nil {
		return nil
	}

	thread.Builder.AddSample(p.clock.TicksToMilliseconds(sample.Timestamp), sample.Frames, 0)
	p.stats.Samples++
	return nil
}

func (p *Processor) countOutcome(outcome stackwalk.Outcome) {
	switch outcome {
	case stackwalk.Unmatched:
		p.stats.UnmatchedStackWalks++
	case stackwalk.KernelSuperseded:
		p.stats.SupersededKernelStacks++
	case stackwalk.Merged:
		p.stats.Merged++
	case stackwalk.StaleKernelFlushed:
		p.stats.FlushedKernelStacks++
	case stackwalk.UserDropped:
		p.stats.DroppedUserStacks++
	}
}

// handleSampleProf records the sampling interrupt of a known thread.
func (p *Processor) handleSampleProf(ev tracesource.Event) error {
	tid, err := ev.Properties().Uint32("ThreadId")
	if err != nil {
		return err
	}

	thread := p.threads.Get(tid)
	if thread == nil {
		p.stats.DroppedInterrupts++
		return nil
	}
	thread.Stitcher.MarkSample(ev.Timestamp())
	return nil
}

// handleImageID records a module load.
func (p *Processor) handleImageID(ev tracesource.Event) error {
	pid := ev.ProcessID()
	if !p.filter.Admit(pid) && pid != kernelPID {
		return nil
	}

	props := ev.Properties()
	base, err := props.Pointer("ImageBase")
	if err != nil {
		return err
	}
	size, err := props.Uint32("ImageSize")
	if err != nil {
		return err
	}
	fileName, err := props.String("OriginalFileName")
	if err != nil {
		return err
	}

	p.libs.RecordImage(base, size, fileName)
	return nil
}

// handleImageDebugID finalizes a recorded module into a profile library.
func (p *Processor) handleImageDebugID(ev tracesource.Event) error {
	pid := ev.ProcessID()
	if !p.filter.Admit(pid) && pid != kernelPID {
		return nil
	}

	props := ev.Properties()
	base, err := props.Pointer("ImageBase")
	if err != nil {
		return err
	}
	guid, err := props.GUID("GuidSig")
	if err != nil {
		return err
	}
	age, err := props.Uint32("Age")
	if err != nil {
		return err
	}
	pdbFileName, err := props.String("PdbFileName")
	if err != nil {
		return err
	}

	if pid == kernelPID && !libtable.AllowKernelModule(pdbFileName) {
		return nil
	}

	lib, err := p.libs.Finalize(base, guid, age, pdbFileName, ev.PointerSize())
	if err != nil {
		p.stats.SkippedLibraries++
		return err
	}
	p.profile.AddLib(lib.DebugName, lib.Name, lib.UUID, lib.Age, lib.Arch, lib.Start, lib.End)
	p.stats.Libraries++
	return nil
}

// optionalString reads a string property, treating a missing one as empty.
func optionalString(props tracesource.Properties, name string) (string, error) {
	s, err := props.String(name)
	if errors.Is(err, tracesource.ErrPropertyNotFound) {
		return "", nil
	}
	return s, err
}
