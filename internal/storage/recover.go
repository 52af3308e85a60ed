package storage

import (
	"fmt"

	"gravix/internal/storage/durability"
	"gravix/internal/storage/recovery"
)

// Recover replays the durability log against this store at startup,
// implementing recovery.KeyspaceApplier, recovery.Isolation, and
// recovery.StatusWriter so internal/storage/recovery stays independent of
// the concrete store type.
func (s *Store) Recover() (recovery.Result, error) {
	res, err := recovery.Recover(s.baseDir, s, s, s)
	if err != nil {
		return res, err
	}
	s.markSequenced(res.CheckpointSeq)
	return res, nil
}

// PersistStatus implements recovery.StatusWriter: it durably appends the
// status record recovery settled for a commit that crashed without one.
func (s *Store) PersistStatus(commitSeq uint64, committed bool) error {
	statusSeq, err := s.log.AppendSequenced(durability.TypeStatusRecord,
		durability.StatusRecord{CommitSeq: commitSeq, Committed: committed})
	if err != nil {
		return err
	}
	s.markSequenced(commitSeq)
	s.markSequenced(statusSeq)
	return nil
}

// MarkResolved implements recovery.StatusWriter: a replayed record whose
// outcome is already settled (a status record, or the commit it settles)
// only needs its sequence slot folded into the watermark.
func (s *Store) MarkResolved(seq uint64) {
	s.markSequenced(seq)
}

// ApplyRecovered implements recovery.KeyspaceApplier.
func (s *Store) ApplyRecovered(commitSeq uint64, keyspace string, key, value []byte, isDelete bool) error {
	ks, ok := s.keyspaces[KeyspaceName(keyspace)]
	if !ok {
		return fmt.Errorf("storage: recovered write references unknown keyspace %q", keyspace)
	}
	if err := ks.applyAt(commitSeq, []writeOp{{key: key, value: value, isDelete: isDelete}}); err != nil {
		return err
	}
	s.markSequenced(commitSeq)
	return nil
}

// ValidateRecovered implements recovery.Isolation, re-running the same
// validation Commit would have run, against whichever commits have already
// been recovered and registered.
func (s *Store) ValidateRecovered(commitSeq, openSeq uint64, record durability.CommitRecord) error {
	return s.validateAndRegister(commitSeq, openSeq, record)
}
