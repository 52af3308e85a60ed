package executor

import "sync/atomic"

// Interrupt is a process-wide cancellation flag checked at batch boundaries
// and between rows inside long iterators. Deadlines are expressed as
// interrupts signalled by an external timer; this type carries no timer
// itself.
type Interrupt struct {
	flag atomic.Bool
}

// NewInterrupt returns an un-signalled interrupt.
func NewInterrupt() *Interrupt { return &Interrupt{} }

// Signal marks the interrupt as raised. Safe to call concurrently with
// Observed.
func (i *Interrupt) Signal() { i.flag.Store(true) }

// Observed reports whether Signal has been called.
func (i *Interrupt) Observed() bool { return i.flag.Load() }
