package keyencoding

import (
	"github.com/cespare/xxhash/v2"
)

// maxInlineLen is the largest value that fits inline in an AttributeID. The
// terminal byte always carries the inline-vs-hashed discriminator in its
// top bit, so an inline payload is capped short enough
// that the discriminator byte never collides with real value bytes: values
// up to this length are stored as-is; longer values are content-addressed
// by hash.
const maxInlineLen = 15

// disambiguatorMask selects the low 7 bits of the terminal byte, the
// disambiguator distinguishing colliding hashed values.
const disambiguatorMask = 0x7F

// hashedTag is OR'd into the terminal byte's top bit to mark a hashed
// (as opposed to inline) attribute id.
const hashedTag = 0x80

// AttributeID is an attribute instance's identity within its type: either
// the inline value bytes, or an 8-byte value hash plus a 1-byte
// disambiguator that distinguishes collisions already present in storage.
type AttributeID struct {
	inline   []byte
	hash     uint64
	disambig byte
	isHashed bool
}

// InlineAttributeID builds an AttributeID that carries the value bytes
// directly. Callers must ensure len(value) <= maxInlineLen; HashValue
// reports when a value requires hashing instead.
func InlineAttributeID(value []byte) AttributeID {
	cp := make([]byte, len(value))
	copy(cp, value)
	return AttributeID{inline: cp}
}

// HashedAttributeID builds an AttributeID from a precomputed value hash and
// an assigned disambiguator.
func HashedAttributeID(hash uint64, disambig byte) AttributeID {
	return AttributeID{hash: hash, disambig: disambig & disambiguatorMask, isHashed: true}
}

// NeedsHashing reports whether a value of the given length must use the
// hash+disambiguator encoding rather than the inline encoding.
func NeedsHashing(valueLen int) bool {
	return valueLen > maxInlineLen
}

// HashValue computes the content-address hash used to assign an
// AttributeID to an over-length value. xxhash gives a fast, well
// distributed 64-bit digest for the hashed-with-disambiguator scheme,
// without pulling in a cryptographic hash that nothing here requires.
func HashValue(value []byte) uint64 {
	return xxhash.Sum64(value)
}

// IsHashed reports whether this id uses the hash+disambiguator encoding.
func (a AttributeID) IsHashed() bool { return a.isHashed }

// Bytes renders the AttributeID's key suffix: for inline ids, the value
// bytes followed by a terminal byte with the top bit clear; for hashed ids,
// the 8-byte hash followed by a terminal byte with the top bit set and the
// low 7 bits holding the disambiguator.
func (a AttributeID) Bytes() []byte {
	if a.isHashed {
		buf := make([]byte, 0, 9)
		var tmp [8]byte
		be := a.hash
		for i := 7; i >= 0; i-- {
			tmp[i] = byte(be)
			be >>= 8
		}
		buf = append(buf, tmp[:]...)
		buf = append(buf, hashedTag|(a.disambig&disambiguatorMask))
		return buf
	}
	buf := make([]byte, 0, len(a.inline)+1)
	buf = append(buf, a.inline...)
	buf = append(buf, 0) // top bit clear marks inline
	return buf
}

// DecodeAttributeID parses the suffix produced by Bytes back into an
// AttributeID, satisfying the round-trip property.
func DecodeAttributeID(suffix []byte) (AttributeID, bool) {
	if len(suffix) == 0 {
		return AttributeID{}, false
	}
	terminal := suffix[len(suffix)-1]
	if terminal&hashedTag != 0 {
		if len(suffix) != 9 {
			return AttributeID{}, false
		}
		var hash uint64
		for i := 0; i < 8; i++ {
			hash = hash<<8 | uint64(suffix[i])
		}
		return HashedAttributeID(hash, terminal&disambiguatorMask), true
	}
	return InlineAttributeID(suffix[:len(suffix)-1]), true
}

// CollisionPrefix returns the key prefix shared by every AttributeID
// hashing to the same value, so the resolver can scan existing collisions
// to assign the smallest unused disambiguator or to find an exact match.
func (a AttributeID) CollisionPrefix() []byte {
	buf := make([]byte, 0, 8)
	var tmp [8]byte
	be := a.hash
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(be)
		be >>= 8
	}
	buf = append(buf, tmp[:]...)
	return buf
}
