// Package schemastore persists the schema manager's type graph into the
// schema keyspaces and restores it at startup, keeping TypeIDs stable across
// restarts. One key per type under the schema-vertex prefix, one key per
// capability under the schema-edge prefix, both msgpack-encoded, and a label
// index entry per label holding the raw big-endian TypeID.
package schemastore

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"gravix/internal/core"
	"gravix/internal/keyencoding"
	"gravix/internal/storage"
)

// ownsPayload is the value stored under an Owns capability edge key.
type ownsPayload struct {
	Ordered     bool                    `msgpack:"ordered,omitempty"`
	Annotations []core.AnnotationRecord `msgpack:"anns,omitempty"`
}

// relatesPayload is the value stored under a Relates capability edge key.
type relatesPayload struct {
	Annotations []core.AnnotationRecord `msgpack:"anns,omitempty"`
}

// Save rewrites the schema keyspaces to reflect m's current type graph. The
// full rewrite (clear then re-put) keeps Save idempotent across define,
// redefine, and undefine without tracking per-statement diffs; the write
// snapshot buffers everything, so storage sees one atomic commit.
func Save(w *storage.WriteSnapshot, m *core.Manager) error {
	if err := clearKeyspace(w, storage.KeyspaceSchemaVertex); err != nil {
		return err
	}
	if err := clearKeyspace(w, storage.KeyspaceSchemaEdge); err != nil {
		return err
	}
	if err := clearKeyspace(w, storage.KeyspaceLabelIndex); err != nil {
		return err
	}

	rec := m.Snapshot()
	for _, tr := range rec.Types {
		body, err := msgpack.Marshal(tr)
		if err != nil {
			return fmt.Errorf("schemastore: marshal type %q: %w", tr.Label, err)
		}
		w.Put(storage.KeyspaceSchemaVertex, keyencoding.TypeVertexKey(keyencoding.TypeID(tr.ID)), body)

		label := tr.Label
		if tr.HasRelation {
			rel := m.GetByID(core.TypeID(tr.Relation))
			if rel == nil {
				return fmt.Errorf("schemastore: role %q references missing relation %d", tr.Label, tr.Relation)
			}
			label = rel.Label + ":" + tr.Label
		}
		var idBuf [2]byte
		binary.BigEndian.PutUint16(idBuf[:], tr.ID)
		w.Put(storage.KeyspaceLabelIndex, keyencoding.LabelIndexKey(label), idBuf[:])
	}

	for _, o := range rec.Owns {
		body, err := msgpack.Marshal(ownsPayload{Ordered: o.Ordered, Annotations: o.Annotations})
		if err != nil {
			return fmt.Errorf("schemastore: marshal owns edge: %w", err)
		}
		key := keyencoding.CapabilityEdgeKey(keyencoding.CapabilityOwns, keyencoding.TypeID(o.Owner), keyencoding.TypeID(o.Attribute))
		w.Put(storage.KeyspaceSchemaEdge, key, body)
	}
	for _, p := range rec.Plays {
		key := keyencoding.CapabilityEdgeKey(keyencoding.CapabilityPlays, keyencoding.TypeID(p.Player), keyencoding.TypeID(p.Role))
		w.Put(storage.KeyspaceSchemaEdge, key, nil)
	}
	for _, r := range rec.Relates {
		body, err := msgpack.Marshal(relatesPayload{Annotations: r.Annotations})
		if err != nil {
			return fmt.Errorf("schemastore: marshal relates edge: %w", err)
		}
		key := keyencoding.CapabilityEdgeKey(keyencoding.CapabilityRelates, keyencoding.TypeID(r.Relation), keyencoding.TypeID(r.Role))
		w.Put(storage.KeyspaceSchemaEdge, key, body)
	}
	return nil
}

// clearKeyspace tombstones every key currently committed in the keyspace.
// Schema transactions are exclusive, so the requires-exists deletes this
// buffers can only conflict with a concurrent writer that should not exist.
func clearKeyspace(w *storage.WriteSnapshot, name storage.KeyspaceName) error {
	var stale [][]byte
	err := w.ReadSnapshot.Iterate(name, []byte{0x00}, []byte{0xff, 0xff}, func(key, _ []byte) error {
		stale = append(stale, append([]byte{}, key...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("schemastore: scan %s for rewrite: %w", name, err)
	}
	for _, key := range stale {
		w.Delete(name, key)
	}
	return nil
}

// Load reconstructs the schema manager persisted in snap's schema
// keyspaces. The second return reports whether any schema was present; a
// fresh keyspace restores nothing and the caller starts from an empty
// manager instead.
func Load(snap *storage.ReadSnapshot, instances core.InstanceCounter) (*core.Manager, bool, error) {
	var rec core.SchemaRecord

	start, end := keyencoding.TypeVertexRange()
	err := snap.Iterate(storage.KeyspaceSchemaVertex, start, end, func(_, val []byte) error {
		var tr core.TypeRecord
		if err := msgpack.Unmarshal(val, &tr); err != nil {
			return fmt.Errorf("schemastore: decode type record: %w", err)
		}
		rec.Types = append(rec.Types, tr)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(rec.Types) == 0 {
		return nil, false, nil
	}

	err = snap.Iterate(storage.KeyspaceSchemaEdge, []byte{0x00}, []byte{0xff, 0xff}, func(key, val []byte) error {
		if len(key) != 6 {
			return fmt.Errorf("schemastore: malformed capability edge key of length %d", len(key))
		}
		from := binary.BigEndian.Uint16(key[2:4])
		to := binary.BigEndian.Uint16(key[4:6])
		switch keyencoding.CapabilityKind(key[1]) {
		case keyencoding.CapabilityOwns:
			var p ownsPayload
			if err := msgpack.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("schemastore: decode owns edge: %w", err)
			}
			rec.Owns = append(rec.Owns, core.OwnsRecord{Owner: from, Attribute: to, Ordered: p.Ordered, Annotations: p.Annotations})
		case keyencoding.CapabilityPlays:
			rec.Plays = append(rec.Plays, core.PlaysRecord{Player: from, Role: to})
		case keyencoding.CapabilityRelates:
			var p relatesPayload
			if len(val) > 0 {
				if err := msgpack.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("schemastore: decode relates edge: %w", err)
				}
			}
			rec.Relates = append(rec.Relates, core.RelatesRecord{Relation: from, Role: to, Annotations: p.Annotations})
		default:
			return fmt.Errorf("schemastore: unknown capability kind %q", key[1])
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	m, err := core.RestoreManager(rec, instances)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}
