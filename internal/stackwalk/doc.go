// Package stackwalk rebuilds one call stack per sampling tick from the
// separately delivered kernel-mode and user-mode stack-walk fragments.
//
// State machine (per thread):
//
//	┌─────────┐  kernel fragment @T   ┌───────────────┐
//	│  Idle   │ ────────────────────► │ KernelPending │ ◄──┐
//	└─────────┘                       └───────┬───────┘    │ kernel fragment:
//	   ▲    │                                 │            │ older one is lost
//	   │    │ user fragment: dropped          ├────────────┘
//	   │    ▼                                 │
//	   └────┘                                 │ user fragment @T:  merge user+kernel
//	   ▲                                      │ user fragment @T': flush kernel alone
//	   └──────────────────────────────────────┘
//
// A fragment is only considered when its timestamp equals the timestamp of
// the thread's most recent sampling interrupt. Fragments are classified by
// their first address against the kernel/user address-space cutoff.
package stackwalk
