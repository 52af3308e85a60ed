// Package recovery implements the startup replay:
// load the most recent checkpoint, then replay the durability log from that
// point forward, re-validating any commit record that crashed before its
// status record was written.
package recovery

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"gravix/internal/gravixerr"
	"gravix/internal/storage/durability"
)

// KeyspaceApplier is the narrow interface recovery needs from the store: the
// ability to apply a recovered write at a given commit sequence. Replay
// re-applies every committed write whether or not it had reached the
// keyspace before the crash.
type KeyspaceApplier interface {
	ApplyRecovered(commitSeq uint64, keyspace string, key, value []byte, isDelete bool) error
}

// Isolation is the narrow interface recovery needs to re-run validation for
// a commit record that crashed before its status record was written.
type Isolation interface {
	ValidateRecovered(commitSeq, openSeq uint64, record durability.CommitRecord) error
}

// StatusWriter persists the outcome recovery settled for a commit record
// that had none (so the next restart replays it as decided rather than
// re-validating again) and folds already-settled sequence slots into the
// store's watermark.
type StatusWriter interface {
	PersistStatus(commitSeq uint64, committed bool) error
	MarkResolved(seq uint64)
}

// Result summarizes what recovery did, useful for startup logging.
type Result struct {
	CheckpointSeq      uint64
	RecordsReplayed    int
	CommitsApplied     int
	CommitsAborted     int
	CommitsRevalidated int
}

// Recover loads the checkpoint (if any) under baseDir/checkpoints and
// replays the durability log from that sequence forward, applying it to
// applier and using isolation to settle any commit record that has no
// matching status record.
// A gap between the checkpoint's watermark and the log's earliest available
// record is fatal and non-recoverable
func Recover(baseDir string, applier KeyspaceApplier, isolation Isolation, statuses StatusWriter) (Result, error) {
	checkpoint, err := loadCheckpoint(baseDir)
	if err != nil {
		return Result{}, gravixerr.Wrap(gravixerr.CodeRecovery, "load checkpoint", err)
	}

	result := Result{CheckpointSeq: checkpoint.Seq}
	pendingCommits := map[uint64]durability.CommitRecord{}
	sawFirstSequenced := false

	logPath := filepath.Join(baseDir, "wal", "durability.log")
	err = durability.IterFrom(logPath, checkpoint.Seq+1, func(r durability.Record) error {
		result.RecordsReplayed++
		if r.Kind == durability.KindSequenced {
			if !sawFirstSequenced {
				sawFirstSequenced = true
				if r.Seq != checkpoint.Seq+1 {
					return fmt.Errorf("recovery: gap between checkpoint watermark %d and first recovered record %d",
						checkpoint.Seq, r.Seq)
				}
			}
		}
		switch r.Type {
		case durability.TypeCommitRecord:
			var cr durability.CommitRecord
			if err := msgpack.Unmarshal(r.Payload, &cr); err != nil {
				return fmt.Errorf("recovery: decode commit record: %w", err)
			}
			pendingCommits[r.Seq] = cr
		case durability.TypeStatusRecord:
			var sr durability.StatusRecord
			if err := msgpack.Unmarshal(r.Payload, &sr); err != nil {
				return fmt.Errorf("recovery: decode status record: %w", err)
			}
			statuses.MarkResolved(r.Seq)
			statuses.MarkResolved(sr.CommitSeq)
			cr, ok := pendingCommits[sr.CommitSeq]
			if !ok {
				return fmt.Errorf("recovery: status record for unknown commit seq %d", sr.CommitSeq)
			}
			if sr.Committed {
				if err := applyCommit(applier, sr.CommitSeq, cr); err != nil {
					return err
				}
				result.CommitsApplied++
			} else {
				result.CommitsAborted++
			}
			delete(pendingCommits, sr.CommitSeq)
		}
		return nil
	})
	if err != nil {
		return result, gravixerr.Wrap(gravixerr.CodeRecovery, "replay log", err)
	}

	// Any commit record left in pendingCommits crashed before its status
	// record was written: re-run isolation validation, persist the settled
	// outcome, then apply if committed. Sorted by sequence so validation
	// sees earlier commits before later ones.
	pending := make([]uint64, 0, len(pendingCommits))
	for seq := range pendingCommits {
		pending = append(pending, seq)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	for _, seq := range pending {
		cr := pendingCommits[seq]
		result.CommitsRevalidated++
		verr := isolation.ValidateRecovered(seq, cr.OpenSeq, cr)
		committed := verr == nil
		if err := statuses.PersistStatus(seq, committed); err != nil {
			return result, gravixerr.Wrap(gravixerr.CodeRecovery, "persist re-validated status", err)
		}
		if committed {
			if err := applyCommit(applier, seq, cr); err != nil {
				return result, gravixerr.Wrap(gravixerr.CodeRecovery, "apply re-validated commit", err)
			}
			result.CommitsApplied++
		} else {
			result.CommitsAborted++
		}
	}

	return result, nil
}

func applyCommit(applier KeyspaceApplier, commitSeq uint64, cr durability.CommitRecord) error {
	for _, op := range cr.Writes {
		if err := applier.ApplyRecovered(commitSeq, op.Keyspace, op.Key, op.Value, op.IsDelete); err != nil {
			return fmt.Errorf("recovery: apply write in keyspace %s: %w", op.Keyspace, err)
		}
	}
	return nil
}
