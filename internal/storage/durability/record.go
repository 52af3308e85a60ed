package durability

// KeyedOp is one keyspace-qualified mutation within a CommitRecord.
type KeyedOp struct {
	Keyspace string `msgpack:"ks"`
	Key      []byte `msgpack:"k"`
	Value    []byte `msgpack:"v,omitempty"`
	IsDelete bool   `msgpack:"d,omitempty"`
}

// CommitRecord is the sequenced payload written before a transaction's
// isolation validation runs: the transaction's open
// sequence, its full write set, and the subset of keys ("modifications")
// that participate in conflict detection.
type CommitRecord struct {
	OpenSeq       uint64    `msgpack:"open_seq"`
	Writes        []KeyedOp `msgpack:"writes"`
	Modifications []string  `msgpack:"modifications"` // keyspace\x00key, see ModKey
}

// ModKey builds the composite string used in CommitRecord.Modifications so
// keys from different keyspaces never collide.
func ModKey(keyspace string, key []byte) string {
	return keyspace + "\x00" + string(key)
}

// StatusRecord records a commit sequence's outcome. Both the commit record
// and its status record must be durable before the commit is acknowledged;
// gravix's chosen ordering (see DESIGN.md open-question 1) writes the
// status record before applying batched writes to keyspaces.
type StatusRecord struct {
	CommitSeq uint64 `msgpack:"commit_seq"`
	Committed bool   `msgpack:"committed"`
}

// Checkpoint is the unsequenced record marking a point up to which every
// keyspace's on-disk state already reflects all commits at or below Seq,
// so recovery need only replay the log from here forward.
type Checkpoint struct {
	Seq uint64 `msgpack:"seq"`
}
