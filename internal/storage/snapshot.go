package storage

import (
	"sort"

	"gravix/internal/gravixerr"
)

// ReadSnapshot is a point-in-time read view opened at a fixed sequence
// number. Readers opened at sequence s observe only committed records with
// commit_seq <= s and commit_seq <= the store's watermark.
type ReadSnapshot struct {
	store   *Store
	openSeq uint64
}

// OpenRead opens a read-only snapshot at the store's current watermark, the
// highest sequence known to be fully resolved.
func (s *Store) OpenRead() *ReadSnapshot {
	return &ReadSnapshot{store: s, openSeq: s.Watermark()}
}

// OpenSeq returns the sequence number this snapshot was opened at.
func (r *ReadSnapshot) OpenSeq() uint64 { return r.openSeq }

// Get reads key from keyspace as visible at this snapshot's open sequence.
func (r *ReadSnapshot) Get(keyspace KeyspaceName, key []byte) ([]byte, bool, error) {
	ks := r.store.keyspace(keyspace)
	readSeq := min(r.openSeq, r.store.Watermark())
	val, ok, err := ks.getAt(readSeq, key)
	if err != nil {
		return nil, false, gravixerr.Wrap(gravixerr.CodeConceptRead, "read snapshot get", err)
	}
	return val, ok, nil
}

// Iterate scans [start, end) in keyspace as visible at this snapshot,
// invoking visit(key, value) for each live key in ascending order. Iteration
// returns only the most recent visible Insert per key and skips Delete
// tombstones, which badger's managed-mode MVCC already guarantees for us.
func (r *ReadSnapshot) Iterate(keyspace KeyspaceName, start, end []byte, visit func(key, value []byte) error) error {
	return iteratePrefix(r.store.keyspace(keyspace), min(r.openSeq, r.store.Watermark()), start, end, visit)
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// bufferEntry is one buffered mutation in a WriteSnapshot's per-keyspace
// write buffer.
type bufferEntry struct {
	value          []byte
	isDelete       bool
	requiresExists bool // true for put-if-absent / delete: adds the key to `modifications`
}

// WriteSnapshot is a read view plus a per-transaction buffer of
// puts/deletes/requires-exists modifications.
type WriteSnapshot struct {
	ReadSnapshot
	buffers map[KeyspaceName]map[string]*bufferEntry
}

// OpenWrite opens a write snapshot at the store's current watermark.
func (s *Store) OpenWrite() *WriteSnapshot {
	return &WriteSnapshot{
		ReadSnapshot: ReadSnapshot{store: s, openSeq: s.Watermark()},
		buffers:      make(map[KeyspaceName]map[string]*bufferEntry),
	}
}

func (w *WriteSnapshot) buffer(keyspace KeyspaceName) map[string]*bufferEntry {
	b, ok := w.buffers[keyspace]
	if !ok {
		b = make(map[string]*bufferEntry)
		w.buffers[keyspace] = b
	}
	return b
}

// Put is a blind write: it never conflicts with a concurrent transaction
// purely by virtue of being written.
func (w *WriteSnapshot) Put(keyspace KeyspaceName, key, value []byte) {
	w.buffer(keyspace)[string(key)] = &bufferEntry{value: value}
}

// PutIfAbsent buffers a conditional put that conflicts if another
// concurrently committed transaction also wrote this key.
func (w *WriteSnapshot) PutIfAbsent(keyspace KeyspaceName, key, value []byte) {
	w.buffer(keyspace)[string(key)] = &bufferEntry{value: value, requiresExists: true}
}

// Delete buffers a delete, which requires-exists for isolation purposes.
func (w *WriteSnapshot) Delete(keyspace KeyspaceName, key []byte) {
	w.buffer(keyspace)[string(key)] = &bufferEntry{isDelete: true, requiresExists: true}
}

// Get reads key, transparently merging this transaction's write buffer over
// the underlying MVCC view.
func (w *WriteSnapshot) Get(keyspace KeyspaceName, key []byte) ([]byte, bool, error) {
	if b, ok := w.buffers[keyspace][string(key)]; ok {
		if b.isDelete {
			return nil, false, nil
		}
		return b.value, true, nil
	}
	return w.ReadSnapshot.Get(keyspace, key)
}

// Iterate scans [start, end) with this transaction's write buffer merged
// over the committed view: buffered puts appear, buffered deletes hide the
// underlying key. Callers that need the pre-transaction baseline instead
// (commit-time cardinality counting) go through the embedded
// ReadSnapshot.Iterate directly.
func (w *WriteSnapshot) Iterate(keyspace KeyspaceName, start, end []byte, visit func(key, value []byte) error) error {
	buffered := w.buffers[keyspace]
	if len(buffered) == 0 {
		return w.ReadSnapshot.Iterate(keyspace, start, end, visit)
	}

	inRange := func(key string) bool {
		return key >= string(start) && key < string(end)
	}
	var keys []string
	for key, e := range buffered {
		if !e.isDelete && inRange(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	i := 0
	err := w.ReadSnapshot.Iterate(keyspace, start, end, func(key, value []byte) error {
		for i < len(keys) && keys[i] < string(key) {
			if err := visit([]byte(keys[i]), buffered[keys[i]].value); err != nil {
				return err
			}
			i++
		}
		if b, ok := buffered[string(key)]; ok {
			if i < len(keys) && keys[i] == string(key) {
				i++
			}
			if b.isDelete {
				return nil
			}
			return visit(key, b.value)
		}
		return visit(key, value)
	})
	if err != nil {
		return err
	}
	for ; i < len(keys); i++ {
		if err := visit([]byte(keys[i]), buffered[keys[i]].value); err != nil {
			return err
		}
	}
	return nil
}

// SchemaSnapshot is a write snapshot that additionally permits schema
// mutations. The store takes no lock when one is opened; keeping a single
// schema transaction open at a time is up to the callers of OpenSchema.
type SchemaSnapshot struct {
	WriteSnapshot
}

// OpenSchema opens an exclusive schema-mutation snapshot. Callers are
// responsible for serializing calls to OpenSchema themselves (e.g. via the
// schema manager's own mutex) since the store does not queue callers.
func (s *Store) OpenSchema() *SchemaSnapshot {
	return &SchemaSnapshot{WriteSnapshot: *s.OpenWrite()}
}
