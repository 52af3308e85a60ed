// Package storage implements the MVCC key-value store: a fixed set of named
// keyspaces, three snapshot kinds with increasing privilege, and a five-step
// commit protocol validated against concurrently committed transactions.
// Each keyspace is backed by a badger.DB opened in managed mode
// (badger.OpenManaged), which lets gravix assign commit timestamps itself
// instead of letting badger pick them — exactly the external-sequence-number
// control the open_seq/commit_seq model needs.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// KeyspaceName identifies one of the engine's independently-indexed KV
// namespaces.
type KeyspaceName string

const (
	KeyspaceSchemaVertex   KeyspaceName = "schema_vertex"
	KeyspaceSchemaEdge     KeyspaceName = "schema_edge"
	KeyspaceSchemaProperty KeyspaceName = "schema_property"
	KeyspaceInstanceVertex KeyspaceName = "instance_vertex"
	KeyspaceInstanceEdge   KeyspaceName = "instance_edge"
	KeyspaceInstanceProp   KeyspaceName = "instance_property"
	KeyspaceLabelIndex     KeyspaceName = "label_index"
	KeyspaceMetadata       KeyspaceName = "metadata"
)

// AllKeyspaces enumerates the fixed set of keyspaces the store always opens.
var AllKeyspaces = []KeyspaceName{
	KeyspaceSchemaVertex, KeyspaceSchemaEdge, KeyspaceSchemaProperty,
	KeyspaceInstanceVertex, KeyspaceInstanceEdge, KeyspaceInstanceProp,
	KeyspaceLabelIndex, KeyspaceMetadata,
}

// Keyspace is a single sorted KV map supporting prefix iteration and atomic
// batch writes, backed by its own badger database directory.
type Keyspace struct {
	name KeyspaceName
	db   *badger.DB
}

func openKeyspace(baseDir string, name KeyspaceName) (*Keyspace, error) {
	dir := filepath.Join(baseDir, "storage", string(name))
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.OpenManaged(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open keyspace %s: %w", name, err)
	}
	return &Keyspace{name: name, db: db}, nil
}

// Close flushes and closes the keyspace's underlying badger database.
func (k *Keyspace) Close() error {
	return k.db.Close()
}

// getAt reads the value visible at readTs, or (nil, false) if absent.
func (k *Keyspace) getAt(readTs uint64, key []byte) ([]byte, bool, error) {
	txn := k.db.NewTransactionAt(readTs, false)
	defer txn.Discard()
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// writeOp is one buffered mutation to apply to a keyspace at commit.
type writeOp struct {
	key      []byte
	value    []byte
	isDelete bool
}

// applyAt durably writes a batch of operations at commitTs. Puts and
// deletes for the same commit share one badger transaction so the apply is
// atomic from badger's point of view; gravix's own commit atomicity across
// keyspaces is provided by the durability log, not by this call.
func (k *Keyspace) applyAt(commitTs uint64, ops []writeOp) error {
	if len(ops) == 0 {
		return nil
	}
	txn := k.db.NewTransactionAt(commitTs, true)
	defer txn.Discard()
	for _, op := range ops {
		var err error
		if op.isDelete {
			err = txn.Delete(op.key)
		} else {
			err = txn.Set(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return txn.CommitAt(commitTs, nil)
}

// prefixIterator returns a badger iterator positioned at start, read at
// readTs; it is not bounded by end, so the caller stops at end itself.
// Callers must call Close on the returned iterator via the closer.
func (k *Keyspace) prefixIterator(readTs uint64, start, end []byte) (*badger.Iterator, func(), error) {
	txn := k.db.NewTransactionAt(readTs, false)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	it.Seek(start)
	closer := func() {
		it.Close()
		txn.Discard()
	}
	return it, closer, nil
}
