package storage

import (
	"gravix/internal/gravixerr"
	"gravix/internal/storage/durability"
)

// Commit runs the five-step commit protocol:
//  1. allocate a provisional commit sequence number (the durability log's
//     own sequence counter, see durability.Log),
//  2. serialize and durably append a CommitRecord,
//  3. validate isolation against every concurrently committed transaction,
//  4. write a StatusRecord then, on success, apply batched writes,
//  5. advance the watermark.
//
// Commit returns a *gravixerr.Error with CodeIsolationConflict (retryable)
// on a conflict, or a storage error on I/O failure.
func (w *WriteSnapshot) Commit() error {
	record := durability.CommitRecord{OpenSeq: w.openSeq}
	for ks, entries := range w.buffers {
		for key, e := range entries {
			op := durability.KeyedOp{Keyspace: string(ks), Key: []byte(key), IsDelete: e.isDelete}
			if !e.isDelete {
				op.Value = e.value
			}
			record.Writes = append(record.Writes, op)
			if e.requiresExists {
				record.Modifications = append(record.Modifications, durability.ModKey(string(ks), []byte(key)))
			}
		}
	}

	// Step 1 + 2: allocate the provisional commit sequence number and make
	// the commit record durable before validating isolation.
	commitSeq, err := w.store.log.AppendSequenced(durability.TypeCommitRecord, record)
	if err != nil {
		return gravixerr.Wrap(gravixerr.CodeDurabilityIO, "append commit record", err)
	}

	// Step 3: isolation validation, serialized via the isolation mutex.
	conflict := w.store.validateAndRegister(commitSeq, w.openSeq, record)

	// Step 4: status record durable before acknowledgement, then apply. The
	// status record's own sequence slot is resolved the moment it is
	// written, so it is marked alongside the commit's; leaving it pending
	// would stall the contiguous-prefix watermark forever.
	status := durability.StatusRecord{CommitSeq: commitSeq, Committed: conflict == nil}
	statusSeq, err := w.store.log.AppendSequenced(durability.TypeStatusRecord, status)
	if err != nil {
		return gravixerr.Wrap(gravixerr.CodeDurabilityIO, "append status record", err)
	}

	if conflict != nil {
		w.store.markSequenced(commitSeq)
		w.store.markSequenced(statusSeq)
		return conflict
	}

	if err := w.applyWrites(commitSeq); err != nil {
		return gravixerr.Wrap(gravixerr.CodeKeyspaceIO, "apply committed writes", err)
	}

	// Step 5.
	w.store.markSequenced(commitSeq)
	w.store.markSequenced(statusSeq)
	return nil
}

func (w *WriteSnapshot) applyWrites(commitSeq uint64) error {
	byKeyspace := make(map[KeyspaceName][]writeOp)
	for ksName, entries := range w.buffers {
		for key, e := range entries {
			byKeyspace[ksName] = append(byKeyspace[ksName], writeOp{
				key:      []byte(key),
				value:    e.value,
				isDelete: e.isDelete,
			})
		}
	}
	for ksName, ops := range byKeyspace {
		if err := w.store.keyspace(ksName).applyAt(commitSeq, ops); err != nil {
			return err
		}
	}
	return nil
}

// validateAndRegister performs step 3 of the commit protocol: it checks the
// new transaction's write-set against every transaction already committed
// with open_seq <= other.commit_seq < commit_seq (i.e. concurrent with this
// one), then, only if no conflict was found, registers this transaction's
// record for future validations.
func (s *Store) validateAndRegister(commitSeq, openSeq uint64, record durability.CommitRecord) error {
	s.isolationMu.Lock()
	defer s.isolationMu.Unlock()

	modSet := make(map[string]struct{}, len(record.Modifications))
	for _, m := range record.Modifications {
		modSet[m] = struct{}{}
	}
	writeSet := make(map[string]struct{}, len(record.Writes))
	deleteOrIfAbsent := make(map[string]struct{})
	for _, op := range record.Writes {
		k := durability.ModKey(op.Keyspace, op.Key)
		writeSet[k] = struct{}{}
	}
	for _, m := range record.Modifications {
		deleteOrIfAbsent[m] = struct{}{}
	}

	var conflict error
	for _, other := range s.committed {
		if !(openSeq <= other.commitSeq && other.commitSeq < commitSeq) {
			continue
		}
		// Conflict rule A: the other transaction's write-set intersects
		// this transaction's required (modifications) key set.
		for m := range modSet {
			if _, hit := other.writeSet[m]; hit {
				conflict = gravixerr.New(gravixerr.CodeIsolationConflict,
					"concurrent transaction wrote a key this transaction required unchanged: "+m)
				break
			}
		}
		if conflict != nil {
			break
		}
		// Conflict rule B: both transactions delete or put-if-absent the
		// same key with incompatible outcomes.
		for m := range deleteOrIfAbsent {
			if _, hit := other.modifications[m]; hit {
				conflict = gravixerr.New(gravixerr.CodeIsolationConflict,
					"concurrent transaction made an incompatible delete/put-if-absent on: "+m)
				break
			}
		}
		if conflict != nil {
			break
		}
	}

	// Only successful commits are registered, since an aborted transaction's
	// writes never apply and therefore can never conflict with anyone.
	if conflict == nil {
		s.committed = append(s.committed, commitRecordView{
			commitSeq:     commitSeq,
			openSeq:       openSeq,
			writeSet:      writeSet,
			modifications: modSet,
		})
	}
	return conflict
}
