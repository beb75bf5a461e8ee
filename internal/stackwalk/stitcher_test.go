package stackwalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kernelA = 0xFFFFF80000000001
	kernelB = 0xFFFFF80000000002
	userA   = 0x401000
	userB   = 0x402000
)

func TestIsKernelAddress(t *testing.T) {
	tests := []struct {
		name        string
		ip          uint64
		pointerSize uint32
		want        bool
	}{
		{name: "64-bit kernel", ip: 0xFFFF800000000000, pointerSize: 8, want: true},
		{name: "64-bit cutoff", ip: 0xFFFF000000000000, pointerSize: 8, want: true},
		{name: "64-bit below cutoff", ip: 0xFFFEFFFFFFFFFFFF, pointerSize: 8, want: false},
		{name: "64-bit user", ip: 0x0000700000000000, pointerSize: 8, want: false},
		{name: "32-bit cutoff", ip: 0x80000000, pointerSize: 4, want: true},
		{name: "32-bit user", ip: 0x7FFFFFFF, pointerSize: 4, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKernelAddress(tt.ip, tt.pointerSize))
		})
	}
}

func TestStitch_MergesKernelAndUser(t *testing.T) {
	var s Stitcher
	s.MarkSample(100)

	sample, outcome := s.Stitch(100, []uint64{kernelA, kernelB}, 8)
	assert.Nil(t, sample)
	assert.Equal(t, KernelBuffered, outcome)
	assert.Equal(t, KernelPending, s.Phase())

	sample, outcome = s.Stitch(100, []uint64{userA, userB}, 8)
	require.NotNil(t, sample)
	assert.Equal(t, Merged, outcome)
	assert.Equal(t, uint64(100), sample.Timestamp)
	assert.Equal(t, []uint64{userA, userB, kernelA, kernelB}, sample.Frames)
	assert.Equal(t, Idle, s.Phase())

	_, _, pending := s.PendingKernel()
	assert.False(t, pending)
}

func TestStitch_FlushesStaleKernel(t *testing.T) {
	var s Stitcher
	s.MarkSample(100)
	_, outcome := s.Stitch(100, []uint64{kernelA}, 8)
	require.Equal(t, KernelBuffered, outcome)

	s.MarkSample(200)
	sample, outcome := s.Stitch(200, []uint64{userA}, 8)
	require.NotNil(t, sample)
	assert.Equal(t, StaleKernelFlushed, outcome)
	assert.Equal(t, uint64(100), sample.Timestamp, "flushed at the kernel fragment's own time")
	assert.Equal(t, []uint64{kernelA}, sample.Frames)
	assert.Equal(t, Idle, s.Phase(), "user fragment is not kept")
}

func TestStitch_UnmatchedTimestamp(t *testing.T) {
	var s Stitcher

	// No interrupt seen yet.
	sample, outcome := s.Stitch(100, []uint64{kernelA}, 8)
	assert.Nil(t, sample)
	assert.Equal(t, Unmatched, outcome)

	s.MarkSample(100)
	sample, outcome = s.Stitch(101, []uint64{kernelA}, 8)
	assert.Nil(t, sample)
	assert.Equal(t, Unmatched, outcome)
	assert.Equal(t, Idle, s.Phase(), "unmatched fragments do not change state")

	sample, outcome = s.Stitch(99, []uint64{userA}, 8)
	assert.Nil(t, sample)
	assert.Equal(t, Unmatched, outcome)
}

func TestStitcher_Accepts(t *testing.T) {
	var s Stitcher
	assert.False(t, s.Accepts(0), "no interrupt seen yet")

	s.MarkSample(100)
	assert.True(t, s.Accepts(100))
	assert.False(t, s.Accepts(101))
}

func TestStitch_KernelSuperseded(t *testing.T) {
	var s Stitcher
	s.MarkSample(100)
	_, outcome := s.Stitch(100, []uint64{kernelA}, 8)
	require.Equal(t, KernelBuffered, outcome)

	s.MarkSample(200)
	_, outcome = s.Stitch(200, []uint64{kernelB}, 8)
	assert.Equal(t, KernelSuperseded, outcome)

	frames, ts, ok := s.PendingKernel()
	require.True(t, ok)
	assert.Equal(t, uint64(200), ts)
	assert.Equal(t, []uint64{kernelB}, frames)

	sample, outcome := s.Stitch(200, []uint64{userA}, 8)
	require.NotNil(t, sample)
	assert.Equal(t, Merged, outcome)
	assert.Equal(t, []uint64{userA, kernelB}, sample.Frames, "the superseded fragment is gone")
}

// A user fragment with nothing buffered is dropped rather than emitted on
// its own. Kernel-only fragments do get flushed, so the two cases are
// deliberately asymmetric.
func TestStitch_UserOnlyIsDropped(t *testing.T) {
	var s Stitcher
	s.MarkSample(100)

	sample, outcome := s.Stitch(100, []uint64{userA, userB}, 8)
	assert.Nil(t, sample)
	assert.Equal(t, UserDropped, outcome)
	assert.Equal(t, Idle, s.Phase())
}

func TestStitch_SecondUserFragmentAfterMerge(t *testing.T) {
	var s Stitcher
	s.MarkSample(100)
	s.Stitch(100, []uint64{kernelA}, 8)
	_, outcome := s.Stitch(100, []uint64{userA}, 8)
	require.Equal(t, Merged, outcome)

	sample, outcome := s.Stitch(100, []uint64{userB}, 8)
	assert.Nil(t, sample, "a sample is never emitted twice")
	assert.Equal(t, UserDropped, outcome)
}

func TestStitch_32BitCutoff(t *testing.T) {
	var s Stitcher
	s.MarkSample(5)

	_, outcome := s.Stitch(5, []uint64{0x80001000}, 4)
	assert.Equal(t, KernelBuffered, outcome)

	sample, outcome := s.Stitch(5, []uint64{0x00401000}, 4)
	require.NotNil(t, sample)
	assert.Equal(t, Merged, outcome)
	assert.Equal(t, []uint64{0x00401000, 0x80001000}, sample.Frames)
}

func TestStitch_EmptyFragment(t *testing.T) {
	var s Stitcher
	s.MarkSample(1)

	sample, outcome := s.Stitch(1, nil, 8)
	assert.Nil(t, sample)
	assert.Equal(t, Unmatched, outcome)
}

func TestMarkSample_Overwrites(t *testing.T) {
	var s Stitcher
	s.MarkSample(10)
	s.MarkSample(20)
	assert.False(t, s.Accepts(10))
	assert.True(t, s.Accepts(20))
}

func TestPhaseAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "kernel-pending", KernelPending.String())
	assert.Equal(t, "stale-kernel-flushed", StaleKernelFlushed.String())
	assert.Equal(t, "user-dropped", UserDropped.String())
}
