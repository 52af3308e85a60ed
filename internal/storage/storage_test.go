package storage

import (
	"testing"

	"gravix/internal/storage/durability"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlindPutsNeverConflict(t *testing.T) {
	s := openTestStore(t)

	w1 := s.OpenWrite()
	w1.Put(KeyspaceMetadata, []byte("a"), []byte("1"))
	if err := w1.Commit(); err != nil {
		t.Fatalf("w1 commit: %v", err)
	}

	w2 := s.OpenWrite()
	w2.Put(KeyspaceMetadata, []byte("a"), []byte("2"))
	if err := w2.Commit(); err != nil {
		t.Fatalf("w2 commit should succeed (blind put never conflicts): %v", err)
	}

	r := s.OpenRead()
	val, ok, err := r.Get(KeyspaceMetadata, []byte("a"))
	if err != nil || !ok {
		t.Fatalf("expected value present, err=%v ok=%v", err, ok)
	}
	if string(val) != "2" {
		t.Fatalf("got %q want %q", val, "2")
	}
}

// TestIsolationConflictOnConcurrentDelete models end-to-end scenario 3: two
// concurrent writes touching the same role's cardinality-constrained edge
// both delete the same key; exactly one commits.
func TestIsolationConflictOnConcurrentDelete(t *testing.T) {
	s := openTestStore(t)

	seed := s.OpenWrite()
	seed.Put(KeyspaceInstanceEdge, []byte("rel:role:player"), []byte("x"))
	if err := seed.Commit(); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	w1 := s.OpenWrite()
	w1.Delete(KeyspaceInstanceEdge, []byte("rel:role:player"))

	w2 := s.OpenWrite()
	w2.Delete(KeyspaceInstanceEdge, []byte("rel:role:player"))

	err1 := w1.Commit()
	err2 := w2.Commit()

	if (err1 == nil) == (err2 == nil) {
		t.Fatalf("expected exactly one commit to fail, got err1=%v err2=%v", err1, err2)
	}
}

func TestWriteSnapshotReadsOwnBuffer(t *testing.T) {
	s := openTestStore(t)
	w := s.OpenWrite()
	w.Put(KeyspaceMetadata, []byte("k"), []byte("v"))
	val, ok, err := w.Get(KeyspaceMetadata, []byte("k"))
	if err != nil || !ok || string(val) != "v" {
		t.Fatalf("expected buffered value visible before commit, got %q ok=%v err=%v", val, ok, err)
	}
}

func TestWriteSnapshotIterateMergesBuffer(t *testing.T) {
	s := openTestStore(t)

	seed := s.OpenWrite()
	seed.Put(KeyspaceMetadata, []byte("a"), []byte("1"))
	seed.Put(KeyspaceMetadata, []byte("c"), []byte("3"))
	if err := seed.Commit(); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	w := s.OpenWrite()
	w.Put(KeyspaceMetadata, []byte("b"), []byte("2"))
	w.Put(KeyspaceMetadata, []byte("d"), []byte("4"))
	w.Delete(KeyspaceMetadata, []byte("c"))

	var keys []string
	err := w.Iterate(KeyspaceMetadata, []byte("a"), []byte("z"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []string{"a", "b", "d"}
	if len(keys) != len(want) {
		t.Fatalf("merged iteration = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("merged iteration = %v, want %v", keys, want)
		}
	}
}

// TestRecoveryRevalidatesUnstatusedCommit simulates a crash between the
// commit record and its status record: on restart the commit must be
// re-validated, a status record persisted, and the writes applied — and a
// second restart must replay it from the persisted status without
// re-validating again.
func TestRecoveryRevalidatesUnstatusedCommit(t *testing.T) {
	dir := t.TempDir()

	log, err := durability.Open(dir)
	if err != nil {
		t.Fatalf("open durability log: %v", err)
	}
	record := durability.CommitRecord{
		OpenSeq: 0,
		Writes: []durability.KeyedOp{
			{Keyspace: string(KeyspaceMetadata), Key: []byte("k"), Value: []byte("v")},
		},
	}
	if _, err := log.AppendSequenced(durability.TypeCommitRecord, record); err != nil {
		t.Fatalf("append commit record: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	res, err := s.Recover()
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if res.CommitsRevalidated != 1 || res.CommitsApplied != 1 {
		t.Fatalf("expected 1 re-validated and applied commit, got %+v", res)
	}
	val, ok, err := s.OpenRead().Get(KeyspaceMetadata, []byte("k"))
	if err != nil || !ok || string(val) != "v" {
		t.Fatalf("expected recovered value, got %q ok=%v err=%v", val, ok, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })
	res2, err := s2.Recover()
	if err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if res2.CommitsRevalidated != 0 {
		t.Fatalf("expected the persisted status record to settle the commit, got %+v", res2)
	}
	if res2.CommitsApplied != 1 {
		t.Fatalf("expected the settled commit replayed once, got %+v", res2)
	}
}
