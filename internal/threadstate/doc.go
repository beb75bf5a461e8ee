// Package threadstate owns the per-thread state of a conversion run.
//
// Store is an arena: thread ids map to indexes into a growable slice, so
// every Thread has exactly one owner and is created at most once.
//
// Queries:
//   - Get(tid) - Retrieve a known thread
//   - Len() - Number of threads seen
//
// Commands:
//   - GetOrCreate(tid, pid) - Get-or-create with the next sequential index
//   - Drain() - Hand all threads out in creation order and reset the store
//
// Not safe for concurrent use; a conversion runs on a single goroutine.
package threadstate
