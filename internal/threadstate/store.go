package threadstate

import (
	"github.com/mrzor/etw-gecko/internal/gecko"
	"github.com/mrzor/etw-gecko/internal/stackwalk"
)

// Thread is the state kept for one observed thread.
type Thread struct {
	TID      uint32
	PID      uint32
	Index    int
	Builder  *gecko.ThreadBuilder
	Stitcher stackwalk.Stitcher
}

// SetName applies a thread name unless it is empty.
func (t *Thread) SetName(name string) {
	if name == "" {
		return
	}
	t.Builder.SetName(name)
}

// Store maps thread ids to their state.
type Store struct {
	index   map[uint32]int
	threads []*Thread
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{index: make(map[uint32]int)}
}

// Get returns the thread with id tid, or nil if it has not been seen.
func (s *Store) Get(tid uint32) *Thread {
	i, ok := s.index[tid]
	if !ok {
		return nil
	}
	return s.threads[i]
}

// GetOrCreate returns the thread with id tid, creating it with the next
// sequential index if needed. The second result reports whether it was created.
func (s *Store) GetOrCreate(tid, pid uint32) (*Thread, bool) {
	if t := s.Get(tid); t != nil {
		return t, false
	}

	idx := len(s.threads)
	builder := gecko.NewThread(pid, idx, 0, false)
	builder.SetTID(tid)

	t := &Thread{
		TID:     tid,
		PID:     pid,
		Index:   idx,
		Builder: builder,
	}
	s.index[tid] = idx
	s.threads = append(s.threads, t)
	return t, true
}

// Len returns the number of threads in the store.
func (s *Store) Len() int {
	return len(s.threads)
}

// Drain returns every thread in creation order and empties the store.
func (s *Store) Drain() []*Thread {
	threads := s.threads
	s.threads = nil
	s.index = make(map[uint32]int)
	return threads
}
