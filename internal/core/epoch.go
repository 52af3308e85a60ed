package core

import "sync/atomic"

// Epoch is a monotonically increasing counter bumped on every committed
// schema mutation. The query cache (internal/querycache) keys entries on
// the epoch so a schema change invalidates cached executables without
// requiring the cache to understand schema internals.
type Epoch struct {
	value atomic.Uint64
}

// Current returns the epoch's present value.
func (e *Epoch) Current() uint64 { return e.value.Load() }

// Advance bumps the epoch and returns the new value, called once per
// committed schema transaction.
func (e *Epoch) Advance() uint64 { return e.value.Add(1) }
