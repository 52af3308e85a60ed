package executor

import "sync"

// Profile counts rows and batches produced per compiled step, keyed by the
// step's label. It exists purely for tests and benchmarks to assert on
// executor behavior (e.g. that a negation short-circuits after one inner
// row); production read paths run with a fresh, unread Profile.
type Profile struct {
	mu      sync.Mutex
	rows    map[string]uint64
	batches map[string]uint64
}

// NewProfile creates an empty profile.
func NewProfile() *Profile {
	return &Profile{rows: make(map[string]uint64), batches: make(map[string]uint64)}
}

// RecordBatch records one emitted batch of n rows for label.
func (p *Profile) RecordBatch(label string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches[label]++
	p.rows[label] += uint64(n)
}

// Rows returns the total row count recorded for label.
func (p *Profile) Rows(label string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows[label]
}

// Batches returns the total batch count recorded for label.
func (p *Profile) Batches(label string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batches[label]
}
