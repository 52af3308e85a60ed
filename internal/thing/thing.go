// Package thing implements the instance manager: creation, lookup, and
// deletion of entities, relations, and attributes, and maintenance of their
// has/links edges over an MVCC snapshot.
package thing

import (
	"errors"
	"sync"

	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/idgen"
	"gravix/internal/keyencoding"
	"gravix/internal/storage"
)

// ID identifies one instance: its type plus an object or attribute id.
type ID struct {
	Type   core.TypeID
	Object keyencoding.ObjectID
	Attr   keyencoding.AttributeID
}

// Manager creates, looks up, and deletes instances through write snapshots,
// and tracks the statistics the planner consults.
type Manager struct {
	mu     sync.Mutex
	ids    *idgen.PerTypeCounters
	stats  *Statistics
	schema *core.Manager
}

// NewManager constructs a thing manager bound to schema for kind/value-type
// lookups during instance creation.
func NewManager(schema *core.Manager) *Manager {
	return &Manager{
		ids:    idgen.NewPerTypeCounters(),
		stats:  NewStatistics(),
		schema: schema,
	}
}

// InstanceCount implements core.InstanceCounter.
func (m *Manager) InstanceCount(id core.TypeID) uint64 {
	return m.stats.InstanceCount(id)
}

// Statistics exposes the manager's live statistics snapshot.
func (m *Manager) Statistics() *Statistics { return m.stats }

// CreateEntity allocates a new entity instance of typ and writes its vertex
// key.
func (m *Manager) CreateEntity(w *storage.WriteSnapshot, typ *core.Type) (keyencoding.ObjectID, error) {
	if typ.Kind != core.KindEntity {
		return 0, gravixerr.New(gravixerr.CodeWriteIllegalKind, "CreateEntity requires an entity type")
	}
	obj := keyencoding.ObjectID(m.ids.Next(uint16(typ.ID)))
	key := keyencoding.ObjectVertexKey(keyencoding.PrefixInstanceEntity, keyencoding.TypeID(typ.ID), obj)
	w.Put(storage.KeyspaceInstanceVertex, key, nil)
	m.stats.incInstance(typ.ID)
	return obj, nil
}

// CreateRelation allocates a new relation instance of typ.
func (m *Manager) CreateRelation(w *storage.WriteSnapshot, typ *core.Type) (keyencoding.ObjectID, error) {
	if typ.Kind != core.KindRelation {
		return 0, gravixerr.New(gravixerr.CodeWriteIllegalKind, "CreateRelation requires a relation type")
	}
	obj := keyencoding.ObjectID(m.ids.Next(uint16(typ.ID)))
	key := keyencoding.ObjectVertexKey(keyencoding.PrefixInstanceRelation, keyencoding.TypeID(typ.ID), obj)
	w.Put(storage.KeyspaceInstanceVertex, key, nil)
	m.stats.incInstance(typ.ID)
	return obj, nil
}

// PutAttribute looks up or creates the attribute instance of typ holding
// value, deduplicating via content-addressed hashing.
func (m *Manager) PutAttribute(w *storage.WriteSnapshot, typ *core.Type, value any) (keyencoding.AttributeID, error) {
	if typ.Kind != core.KindAttribute {
		return keyencoding.AttributeID{}, gravixerr.New(gravixerr.CodeWriteIllegalKind, "PutAttribute requires an attribute type")
	}
	vk, err := toKeyencodingValueKind(typ.ValueType.Kind)
	if err != nil {
		return keyencoding.AttributeID{}, gravixerr.Wrap(gravixerr.CodeConceptRead, "resolve value kind", err)
	}
	encoded, err := keyencoding.EncodeValueBytes(vk, value)
	if err != nil {
		return keyencoding.AttributeID{}, gravixerr.Wrap(gravixerr.CodeConceptRead, "encode attribute value", err)
	}

	tid := keyencoding.TypeID(typ.ID)
	if !keyencoding.NeedsHashing(len(encoded)) {
		attrID := keyencoding.InlineAttributeID(encoded)
		key := keyencoding.AttributeVertexKey(tid, attrID)
		if _, ok, getErr := w.Get(storage.KeyspaceInstanceVertex, key); getErr == nil && !ok {
			w.Put(storage.KeyspaceInstanceVertex, key, encoded)
			m.stats.incInstance(typ.ID)
		}
		return attrID, nil
	}

	return m.putHashedAttribute(w, typ, tid, encoded)
}

// toKeyencodingValueKind converts core's schema-level value kind (which
// includes the zero-value ValueNone sentinel) to keyencoding's encoding-level
// kind, which has no such sentinel.
func toKeyencodingValueKind(k core.ValueKind) (keyencoding.ValueKind, error) {
	switch k {
	case core.ValueBoolean:
		return keyencoding.ValueBoolean, nil
	case core.ValueInteger:
		return keyencoding.ValueInteger, nil
	case core.ValueDouble:
		return keyencoding.ValueDouble, nil
	case core.ValueDecimal:
		return keyencoding.ValueDecimal, nil
	case core.ValueString:
		return keyencoding.ValueString, nil
	case core.ValueDate:
		return keyencoding.ValueDate, nil
	case core.ValueDateTime:
		return keyencoding.ValueDateTime, nil
	case core.ValueDateTimeTZ:
		return keyencoding.ValueDateTimeTZ, nil
	case core.ValueDuration:
		return keyencoding.ValueDuration, nil
	case core.ValueStruct:
		return keyencoding.ValueStruct, nil
	default:
		return 0, gravixerr.New(gravixerr.CodeConceptRead, "attribute type has no concrete value type")
	}
}

// errFoundExisting stops a collision scan early once the exact value match
// is in hand; it never escapes putHashedAttribute.
var errFoundExisting = errors.New("thing: found existing attribute")

func (m *Manager) putHashedAttribute(w *storage.WriteSnapshot, typ *core.Type, tid keyencoding.TypeID, encoded []byte) (keyencoding.AttributeID, error) {
	return m.putHashedAttributeAtHash(w, typ, tid, keyencoding.HashValue(encoded), encoded)
}

// putHashedAttributeAtHash is the hash-explicit core, split out so tests can
// drive a fully-colliding hash family without depending on real collisions.
func (m *Manager) putHashedAttributeAtHash(w *storage.WriteSnapshot, typ *core.Type, tid keyencoding.TypeID, hash uint64, encoded []byte) (keyencoding.AttributeID, error) {
	start := keyencoding.AttributeVertexKey(tid, keyencoding.HashedAttributeID(hash, 0))
	start = start[:len(start)-1] // drop the terminal disambiguator/tag byte: scan every disambiguator
	end := prefixEnd(start)

	var existing byte
	used := make(map[byte]bool)
	err := w.Iterate(storage.KeyspaceInstanceVertex, start, end, func(key, val []byte) error {
		d := key[len(key)-1] & 0x7f
		if bytesEqual(val, encoded) {
			existing = d
			return errFoundExisting
		}
		used[d] = true
		return nil
	})
	if errors.Is(err, errFoundExisting) {
		return keyencoding.HashedAttributeID(hash, existing), nil
	}
	if err != nil {
		return keyencoding.AttributeID{}, err
	}

	// New value: take the smallest unused disambiguator, reusing any slot a
	// deletion left free.
	disambiguator := -1
	for d := 0; d < 128; d++ {
		if !used[byte(d)] {
			disambiguator = d
			break
		}
	}
	if disambiguator < 0 {
		return keyencoding.AttributeID{}, gravixerr.New(gravixerr.CodeConceptRead,
			"attribute hash collision set exhausted all 128 disambiguators")
	}

	attrID := keyencoding.HashedAttributeID(hash, byte(disambiguator))
	key := keyencoding.AttributeVertexKey(tid, attrID)
	w.Put(storage.KeyspaceInstanceVertex, key, encoded)
	m.stats.incInstance(typ.ID)
	return attrID, nil
}

func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return append(end, 0xff)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
