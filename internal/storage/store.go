package storage

import (
	"sync"

	"gravix/internal/storage/durability"
)

// Store owns the fixed set of named keyspaces plus the durability log and
// watermark bookkeeping
type Store struct {
	baseDir string

	keyspaces map[KeyspaceName]*Keyspace
	log       *durability.Log

	// isolationMu serializes commit validation: a pending write's conflict
	// check against the committed log runs under this mutex.
	isolationMu sync.Mutex
	committed   []commitRecordView // sorted by commitSeq, ascending

	watermarkMu sync.RWMutex
	watermark   uint64
	pending     map[uint64]bool // commitSeq -> committed, awaiting contiguity
}

// commitRecordView is the subset of a committed transaction's state needed
// for future isolation validation: its write-set and its required
// ("modifications") key set.
type commitRecordView struct {
	commitSeq     uint64
	openSeq       uint64
	writeSet      map[string]struct{}
	modifications map[string]struct{}
}

// Open opens (or creates) a store rooted at baseDir, one badger database per
// keyspace plus a shared durability log.
func Open(baseDir string) (*Store, error) {
	log, err := durability.Open(baseDir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		baseDir:   baseDir,
		keyspaces: make(map[KeyspaceName]*Keyspace, len(AllKeyspaces)),
		log:       log,
		pending:   make(map[uint64]bool),
	}
	for _, name := range AllKeyspaces {
		ks, err := openKeyspace(baseDir, name)
		if err != nil {
			return nil, err
		}
		s.keyspaces[name] = ks
	}
	return s, nil
}

// Close closes every keyspace and the durability log.
func (s *Store) Close() error {
	var firstErr error
	for _, ks := range s.keyspaces {
		if err := ks.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Watermark returns the highest sequence number up to which all preceding
// commits have a durable status.
func (s *Store) Watermark() uint64 {
	s.watermarkMu.RLock()
	defer s.watermarkMu.RUnlock()
	return s.watermark
}

// markSequenced records that commitSeq now has a durable status (committed
// or aborted) and advances the watermark across any contiguous prefix of
// now-resolved sequence numbers.
func (s *Store) markSequenced(commitSeq uint64) {
	s.watermarkMu.Lock()
	defer s.watermarkMu.Unlock()
	s.pending[commitSeq] = true
	for s.pending[s.watermark+1] {
		delete(s.pending, s.watermark+1)
		s.watermark++
	}
}

func (s *Store) keyspace(name KeyspaceName) *Keyspace {
	return s.keyspaces[name]
}
