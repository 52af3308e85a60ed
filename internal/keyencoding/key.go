package keyencoding

import "encoding/binary"

// Key is an opaque, comparable encoded byte key. Keys sort lexicographically
// by their raw bytes, which is what gives prefix iteration its contiguous
// range property.
type Key []byte

// putTypeID appends a big-endian TypeID, matching the fixed-width prefix the
// spec requires for cheap prefix iteration.
func putTypeID(buf []byte, id TypeID) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(id))
	return append(buf, tmp[:]...)
}

func putObjectID(buf []byte, id ObjectID) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(id))
	return append(buf, tmp[:]...)
}

// TypeVertexKey encodes a schema vertex (type definition) key: prefix,
// TypeID.
func TypeVertexKey(id TypeID) Key {
	buf := make([]byte, 0, 3)
	buf = append(buf, byte(PrefixSchemaVertex))
	buf = putTypeID(buf, id)
	return buf
}

// TypeVertexRange returns the [start, end) byte range covering every schema
// vertex key, for full-schema scans.
func TypeVertexRange() (Key, Key) {
	return Key{byte(PrefixSchemaVertex)}, Key{byte(PrefixSchemaVertex) + 1}
}

// CapabilityEdgeKey encodes an Owns/Plays/Relates capability edge between
// two types, scoped under the schema-edge prefix and a capability-kind
// discriminator byte so the three capability kinds don't collide.
type CapabilityKind byte

const (
	CapabilityOwns    CapabilityKind = 'O'
	CapabilityPlays   CapabilityKind = 'P'
	CapabilityRelates CapabilityKind = 'R'
)

func CapabilityEdgeKey(kind CapabilityKind, from, to TypeID) Key {
	buf := make([]byte, 0, 6)
	buf = append(buf, byte(PrefixSchemaEdge), byte(kind))
	buf = putTypeID(buf, from)
	buf = putTypeID(buf, to)
	return buf
}

// CapabilityEdgePrefix returns the prefix range for every capability edge of
// the given kind originating at `from`, used to enumerate a type's
// capabilities.
func CapabilityEdgePrefix(kind CapabilityKind, from TypeID) (Key, Key) {
	start := make([]byte, 0, 4)
	start = append(start, byte(PrefixSchemaEdge), byte(kind))
	start = putTypeID(start, from)
	end := make(Key, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

// ObjectVertexKey encodes an entity or relation instance key: prefix
// (entity/relation), TypeID, ObjectID.
func ObjectVertexKey(prefix Prefix, typ TypeID, obj ObjectID) Key {
	buf := make([]byte, 0, 11)
	buf = append(buf, byte(prefix))
	buf = putTypeID(buf, typ)
	buf = putObjectID(buf, obj)
	return buf
}

// ObjectVertexPrefix returns the prefix range for every instance of typ under
// the given instance prefix (entity or relation).
func ObjectVertexPrefix(prefix Prefix, typ TypeID) (Key, Key) {
	start := make([]byte, 0, 3)
	start = append(start, byte(prefix))
	start = putTypeID(start, typ)
	end := make(Key, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

// AttributeVertexKey encodes an attribute instance key: prefix, TypeID, then
// the AttributeID's variable-length suffix (inline value or hash+disambiguator).
func AttributeVertexKey(typ TypeID, attr AttributeID) Key {
	buf := make([]byte, 0, 3+9)
	buf = append(buf, byte(PrefixInstanceAttribute))
	buf = putTypeID(buf, typ)
	buf = append(buf, attr.Bytes()...)
	return buf
}

// AttributeVertexPrefix returns the prefix range for every attribute
// instance of typ, used to enumerate collisions and scan all values.
func AttributeVertexPrefix(typ TypeID) (Key, Key) {
	return ObjectVertexPrefix(PrefixInstanceAttribute, typ)
}

// HasEdgeKey encodes the forward has-edge key: owner object -> attribute.
func HasEdgeKey(ownerType TypeID, owner ObjectID, attrType TypeID, attr AttributeID) Key {
	buf := make([]byte, 0, 32)
	buf = append(buf, byte(PrefixEdgeHasForward))
	buf = putTypeID(buf, ownerType)
	buf = putObjectID(buf, owner)
	buf = putTypeID(buf, attrType)
	buf = append(buf, attr.Bytes()...)
	return buf
}

// HasEdgeReverseKey encodes the reverse has-edge key: attribute -> owner
// object, kept in lockstep with HasEdgeKey
func HasEdgeReverseKey(attrType TypeID, attr AttributeID, ownerType TypeID, owner ObjectID) Key {
	buf := make([]byte, 0, 32)
	buf = append(buf, byte(PrefixEdgeHasReverse))
	buf = putTypeID(buf, attrType)
	buf = append(buf, attr.Bytes()...)
	buf = putTypeID(buf, ownerType)
	buf = putObjectID(buf, owner)
	return buf
}

// HasEdgeOwnerPrefix returns the prefix range of every has-edge for a given
// owner, used to enumerate and cascade-delete an instance's attributes.
func HasEdgeOwnerPrefix(ownerType TypeID, owner ObjectID) (Key, Key) {
	start := make([]byte, 0, 11)
	start = append(start, byte(PrefixEdgeHasForward))
	start = putTypeID(start, ownerType)
	start = putObjectID(start, owner)
	end := make(Key, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

// LinksEdgeKey encodes the forward links-edge key: relation -> role ->
// player, plus an optional ordinal suffix used only when the role is
// declared ordered.
func LinksEdgeKey(relType TypeID, rel ObjectID, role TypeID, playerType TypeID, player ObjectID, ordinal *uint32) Key {
	buf := make([]byte, 0, 40)
	buf = append(buf, byte(PrefixEdgeLinksForward))
	buf = putTypeID(buf, relType)
	buf = putObjectID(buf, rel)
	buf = putTypeID(buf, role)
	buf = putTypeID(buf, playerType)
	buf = putObjectID(buf, player)
	if ordinal != nil {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], *ordinal)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// LinksEdgeReverseKey encodes the reverse links-edge key: player -> role ->
// relation.
func LinksEdgeReverseKey(playerType TypeID, player ObjectID, role TypeID, relType TypeID, rel ObjectID) Key {
	buf := make([]byte, 0, 40)
	buf = append(buf, byte(PrefixEdgeLinksReverse))
	buf = putTypeID(buf, playerType)
	buf = putObjectID(buf, player)
	buf = putTypeID(buf, role)
	buf = putTypeID(buf, relType)
	buf = putObjectID(buf, rel)
	return buf
}

// LinksEdgeRelationPrefix returns the prefix range of every links-edge for a
// given relation instance, used to cascade-delete a relation's role players.
func LinksEdgeRelationPrefix(relType TypeID, rel ObjectID) (Key, Key) {
	start := make([]byte, 0, 11)
	start = append(start, byte(PrefixEdgeLinksForward))
	start = putTypeID(start, relType)
	start = putObjectID(start, rel)
	end := make(Key, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

// LinksEdgePlayerPrefix returns the prefix range of every reverse links-edge
// for a given player instance, used to find the relations an entity
// participates in when cascading its deletion.
func LinksEdgePlayerPrefix(playerType TypeID, player ObjectID) (Key, Key) {
	start := make([]byte, 0, 11)
	start = append(start, byte(PrefixEdgeLinksReverse))
	start = putTypeID(start, playerType)
	start = putObjectID(start, player)
	end := make(Key, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

// IndexedPlayersKey encodes the symmetric two-player shortcut index used to
// short-circuit two-player lookups in a relation. Both (a, b) and (b, a)
// orderings are written so either player can lead a prefix scan.
func IndexedPlayersKey(relType TypeID, rel ObjectID, playerAType, roleAType TypeID, playerA ObjectID, playerBType, roleBType TypeID, playerB ObjectID) Key {
	buf := make([]byte, 0, 60)
	buf = append(buf, byte(PrefixEdgeIndexedPlayers))
	buf = putTypeID(buf, relType)
	buf = putObjectID(buf, rel)
	buf = putTypeID(buf, playerAType)
	buf = putObjectID(buf, playerA)
	buf = putTypeID(buf, roleAType)
	buf = putTypeID(buf, playerBType)
	buf = putObjectID(buf, playerB)
	buf = putTypeID(buf, roleBType)
	return buf
}

// IndexedPlayersPairPrefix returns the range covering every index entry for
// a relation instance led by playerA, so a two-player lookup is a short
// prefix scan rather than a walk of the relation's full links set.
func IndexedPlayersPairPrefix(relType TypeID, rel ObjectID, playerAType TypeID, playerA ObjectID) (Key, Key) {
	start := make([]byte, 0, 21)
	start = append(start, byte(PrefixEdgeIndexedPlayers))
	start = putTypeID(start, relType)
	start = putObjectID(start, rel)
	start = putTypeID(start, playerAType)
	start = putObjectID(start, playerA)
	end := make(Key, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

// IndexedPlayersRelationPrefix returns the range covering a relation
// instance's whole two-player index, for cascade deletion.
func IndexedPlayersRelationPrefix(relType TypeID, rel ObjectID) (Key, Key) {
	start := make([]byte, 0, 11)
	start = append(start, byte(PrefixEdgeIndexedPlayers))
	start = putTypeID(start, relType)
	start = putObjectID(start, rel)
	end := make(Key, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

// LabelIndexKey encodes the label -> TypeID lookup index key.
func LabelIndexKey(label string) Key {
	buf := make([]byte, 0, 1+len(label))
	buf = append(buf, byte(PrefixLabelIndex))
	buf = append(buf, label...)
	return buf
}
