package threadstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzor/etw-gecko/internal/stackwalk"
)

func TestStore_GetNonExistent(t *testing.T) {
	s := NewStore()

	assert.Nil(t, s.Get(9999))
	assert.Equal(t, 0, s.Len())
}

func TestStore_GetOrCreate(t *testing.T) {
	s := NewStore()

	thread, created := s.GetOrCreate(7, 42)
	require.NotNil(t, thread)
	assert.True(t, created)
	assert.Equal(t, uint32(7), thread.TID)
	assert.Equal(t, uint32(42), thread.PID)
	assert.Equal(t, 0, thread.Index)
	assert.Equal(t, uint32(7), thread.Builder.TID())
	assert.Equal(t, uint32(42), thread.Builder.PID())
	assert.Equal(t, stackwalk.Idle, thread.Stitcher.Phase())

	again, created := s.GetOrCreate(7, 42)
	assert.False(t, created)
	assert.Same(t, thread, again, "GetOrCreate() should return the same instance")

	other, created := s.GetOrCreate(8, 42)
	assert.True(t, created)
	assert.Equal(t, 1, other.Index, "indexes are sequential")
	assert.Equal(t, 2, s.Len())
}

func TestStore_StatePersists(t *testing.T) {
	s := NewStore()

	thread, _ := s.GetOrCreate(7, 42)
	thread.Stitcher.MarkSample(100)

	assert.True(t, s.Get(7).Stitcher.Accepts(100))
}

func TestThread_SetNameIgnoresEmpty(t *testing.T) {
	s := NewStore()
	thread, _ := s.GetOrCreate(7, 42)

	thread.SetName("Compositor")
	thread.SetName("")

	assert.Equal(t, "Compositor", thread.Builder.Name())
}

func TestStore_Drain(t *testing.T) {
	s := NewStore()
	s.GetOrCreate(30, 1)
	s.GetOrCreate(10, 1)
	s.GetOrCreate(20, 1)

	drained := s.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, []uint32{30, 10, 20}, []uint32{drained[0].TID, drained[1].TID, drained[2].TID}, "creation order")

	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Get(30))

	fresh, created := s.GetOrCreate(30, 1)
	assert.True(t, created)
	assert.Equal(t, 0, fresh.Index)
}
