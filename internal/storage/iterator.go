package storage

import "bytes"

// iteratePrefix scans [start, end) in keyspace as visible at readSeq and
// invokes visit for each key in ascending order, stopping early if visit
// returns a non-nil error.
func iteratePrefix(ks *Keyspace, readSeq uint64, start, end []byte, visit func(key, value []byte) error) error {
	it, closer, err := ks.prefixIterator(readSeq, start, end)
	if err != nil {
		return err
	}
	defer closer()

	for ; it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if bytes.Compare(key, end) >= 0 {
			break
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := visit(key, val); err != nil {
			return err
		}
	}
	return nil
}
