// Package keyencoding implements the typed, prefix-structured byte key
// scheme: every key begins with a one-byte
// prefix and a two-byte TypeID, so a prefix range scan over a type is a
// contiguous byte range in every keyspace.
package keyencoding

// Prefix is the leading byte of every encoded key. Keyspaces partition
// storage by prefix so each encoding domain (schema vertex/edge/property,
// instance vertex/edge/property, label index, metadata) can be range-scanned
// independently.
type Prefix byte

const (
	PrefixSchemaVertex   Prefix = 0x01
	PrefixSchemaEdge     Prefix = 0x02
	PrefixSchemaProperty Prefix = 0x03

	PrefixInstanceEntity    Prefix = 0x10
	PrefixInstanceRelation  Prefix = 0x11
	PrefixInstanceAttribute Prefix = 0x12

	PrefixEdgeHasForward     Prefix = 0x20
	PrefixEdgeHasReverse     Prefix = 0x21
	PrefixEdgeLinksForward   Prefix = 0x22
	PrefixEdgeLinksReverse   Prefix = 0x23
	PrefixEdgeIndexedPlayers Prefix = 0x24

	PrefixInstanceProperty Prefix = 0x30
	PrefixLabelIndex       Prefix = 0x40
	PrefixMetadata         Prefix = 0xF0
)

// TypeID is the stable 16-bit internal identifier of a schema type.
type TypeID uint16

// ObjectID is the 64-bit monotonic per-type instance identifier for
// entities and relations.
type ObjectID uint64
