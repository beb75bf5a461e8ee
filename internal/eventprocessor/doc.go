// Package eventprocessor routes decoded trace events to the profile builders.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│      Decoded trace events               │
//	└─────────────────┬───────────────────────┘
//	                  │
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventprocessor                        │  ← Event routing
//	│   - Routes by event name                │
//	│   - Applies the target filter           │
//	│   - Skips or aborts on bad events       │
//	└─────────┬───────────────────────────────┘
//	          │
//	          ├──→ Process start ──→ target.Filter
//	          │                      - Admits processes by name or expression
//	          │
//	          ├──→ Thread start ───→ threadstate.Store
//	          │                      - Creates thread entries
//	          │                      - Records thread names
//	          │
//	          ├──→ SampleProf ─────→ stackwalk.Stitcher
//	          │                      - Marks the interrupt timestamp
//	          │
//	          ├──→ StackWalk ──────→ stackwalk.Stitcher
//	          │                      - Joins kernel and user fragments
//	          │                      - Emits samples via timesync
//	          │
//	          └──→ ImageID ────────→ libtable.Table
//	               DbgID_RSDS        - Records loads
//	                                 - Finalizes libraries into the profile
//
// Events are handled one at a time in trace order; the processor is not safe
// for concurrent use.
package eventprocessor
