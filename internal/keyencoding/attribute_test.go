package keyencoding

import "testing"

func TestAttributeIDRoundTripInline(t *testing.T) {
	id := InlineAttributeID([]byte("abc"))
	decoded, ok := DecodeAttributeID(id.Bytes())
	if !ok {
		t.Fatalf("decode failed")
	}
	if decoded.IsHashed() {
		t.Fatalf("expected inline id")
	}
	if string(decoded.inline) != "abc" {
		t.Fatalf("got %q want %q", decoded.inline, "abc")
	}
}

func TestAttributeIDRoundTripHashed(t *testing.T) {
	h := HashValue([]byte("a long value that needs hashing because it exceeds the inline limit"))
	id := HashedAttributeID(h, 3)
	decoded, ok := DecodeAttributeID(id.Bytes())
	if !ok {
		t.Fatalf("decode failed")
	}
	if !decoded.IsHashed() {
		t.Fatalf("expected hashed id")
	}
	if decoded.hash != h || decoded.disambig != 3 {
		t.Fatalf("got hash=%d disambig=%d", decoded.hash, decoded.disambig)
	}
}

// TestAttributeCollisionDisambiguators builds three hashed ids sharing one
// hash with disambiguators 0, 1 and 2, and checks that each keeps its
// disambiguator and all share the same collision prefix.
func TestAttributeCollisionDisambiguators(t *testing.T) {
	const collidingHash = 0xDEADBEEF
	ids := []AttributeID{
		HashedAttributeID(collidingHash, 0),
		HashedAttributeID(collidingHash, 1),
		HashedAttributeID(collidingHash, 2),
	}
	prefix := ids[0].CollisionPrefix()
	for i, id := range ids {
		if id.disambig != byte(i) {
			t.Fatalf("id %d: got disambig %d", i, id.disambig)
		}
		if string(id.CollisionPrefix()) != string(prefix) {
			t.Fatalf("id %d: collision prefix mismatch", i)
		}
	}
}

func TestNeedsHashing(t *testing.T) {
	if NeedsHashing(maxInlineLen) {
		t.Fatalf("boundary length should not need hashing")
	}
	if !NeedsHashing(maxInlineLen + 1) {
		t.Fatalf("over-length value should need hashing")
	}
}
