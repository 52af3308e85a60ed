package thing

import (
	"testing"

	"gravix/internal/core"
	"gravix/internal/keyencoding"
	"gravix/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateEntityAllocatesMonotonicObjectIDs(t *testing.T) {
	schema := core.NewManager(nil)
	person, _ := schema.CreateEntityType("person", nil)

	m := NewManager(schema)
	s := openTestStore(t)
	w := s.OpenWrite()

	first, err := m.CreateEntity(w, person)
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	second, err := m.CreateEntity(w, person)
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if second <= first {
		t.Fatalf("expected monotonically increasing object ids, got %d then %d", first, second)
	}
	if got := m.InstanceCount(person.ID); got != 2 {
		t.Fatalf("expected instance count 2, got %d", got)
	}
}

func TestPutAttributeDeduplicatesEqualValues(t *testing.T) {
	schema := core.NewManager(nil)
	name, _ := schema.CreateAttributeType("name", core.ValueType{Kind: core.ValueString}, nil)

	m := NewManager(schema)
	s := openTestStore(t)
	w := s.OpenWrite()

	id1, err := m.PutAttribute(w, name, "Alice")
	if err != nil {
		t.Fatalf("put attribute: %v", err)
	}
	id2, err := m.PutAttribute(w, name, "Alice")
	if err != nil {
		t.Fatalf("put attribute: %v", err)
	}
	if string(id1.Bytes()) != string(id2.Bytes()) {
		t.Fatalf("expected equal values to dedup to the same attribute id, got %v and %v", id1, id2)
	}
	if got := m.InstanceCount(name.ID); got != 1 {
		t.Fatalf("expected a single attribute instance, got %d", got)
	}

	id3, err := m.PutAttribute(w, name, "Bob")
	if err != nil {
		t.Fatalf("put attribute: %v", err)
	}
	if string(id3.Bytes()) == string(id1.Bytes()) {
		t.Fatalf("expected distinct values to get distinct attribute ids")
	}
}

func TestDeleteEntityCascadesHasEdges(t *testing.T) {
	schema := core.NewManager(nil)
	person, _ := schema.CreateEntityType("person", nil)
	name, _ := schema.CreateAttributeType("name", core.ValueType{Kind: core.ValueString}, nil)
	if err := schema.AddOwns(person, name, core.Unordered, nil); err != nil {
		t.Fatalf("add owns: %v", err)
	}

	m := NewManager(schema)
	s := openTestStore(t)
	w := s.OpenWrite()

	obj, _ := m.CreateEntity(w, person)
	attr, err := m.PutAttribute(w, name, "Alice")
	if err != nil {
		t.Fatalf("put attribute: %v", err)
	}
	m.PutHas(w, person.ID, obj, name.ID, attr)

	if got := m.Statistics().HasCount(person.ID, name.ID); got != 1 {
		t.Fatalf("expected has-count 1 before delete, got %d", got)
	}

	if err := m.DeleteEntity(w, person.ID, obj); err != nil {
		t.Fatalf("delete entity: %v", err)
	}
	if got := m.Statistics().HasCount(person.ID, name.ID); got != 0 {
		t.Fatalf("expected has-count 0 after cascade delete, got %d", got)
	}
}

// TestPutAttributeHashedValuesWithinOneTransaction exercises the
// hash+disambiguator path against the write snapshot's own buffer: values
// too long to inline must dedup (same value) and stay distinct (different
// values) before anything commits.
func TestPutAttributeHashedValuesWithinOneTransaction(t *testing.T) {
	schema := core.NewManager(nil)
	bio, _ := schema.CreateAttributeType("biography", core.ValueType{Kind: core.ValueString}, nil)

	m := NewManager(schema)
	s := openTestStore(t)
	w := s.OpenWrite()

	long1 := "a biography long enough to spill past the inline limit"
	long2 := "a different biography, also far past the inline limit"

	id1, err := m.PutAttribute(w, bio, long1)
	if err != nil {
		t.Fatalf("put first hashed attribute: %v", err)
	}
	if !id1.IsHashed() {
		t.Fatalf("expected a value of length %d to use the hashed encoding", len(long1))
	}
	id1Again, err := m.PutAttribute(w, bio, long1)
	if err != nil {
		t.Fatalf("re-put first hashed attribute: %v", err)
	}
	if string(id1.Bytes()) != string(id1Again.Bytes()) {
		t.Fatalf("expected the same hashed value to dedup within one transaction, got %x and %x", id1.Bytes(), id1Again.Bytes())
	}
	id2, err := m.PutAttribute(w, bio, long2)
	if err != nil {
		t.Fatalf("put second hashed attribute: %v", err)
	}
	if string(id1.Bytes()) == string(id2.Bytes()) {
		t.Fatalf("expected distinct hashed values to get distinct attribute ids")
	}
	if got := m.InstanceCount(bio.ID); got != 2 {
		t.Fatalf("expected 2 hashed attribute instances, got %d", got)
	}
}

// TestPutAttributeCollisionScanStopsAtMatch seeds a collision family by
// hand — keys sharing the looked-up value's hash but holding other value
// bytes — and checks that (a) an exact match returns its own disambiguator
// even when non-matching colliders sort after it, and (b) a fresh value
// takes the smallest unused slot, reusing a gap rather than growing past
// the maximum.
func TestPutAttributeCollisionScanStopsAtMatch(t *testing.T) {
	schema := core.NewManager(nil)
	bio, _ := schema.CreateAttributeType("biography", core.ValueType{Kind: core.ValueString}, nil)

	m := NewManager(schema)
	s := openTestStore(t)
	w := s.OpenWrite()

	value := "a value long enough to take the hashed encoding path"
	encoded, err := keyencoding.EncodeValueBytes(keyencoding.ValueString, value)
	if err != nil {
		t.Fatalf("encode value: %v", err)
	}
	hash := keyencoding.HashValue(encoded)
	tid := keyencoding.TypeID(bio.ID)

	seed := func(d byte, stored string) {
		key := keyencoding.AttributeVertexKey(tid, keyencoding.HashedAttributeID(hash, d))
		w.Put(storage.KeyspaceInstanceVertex, key, []byte(stored))
	}
	// Colliders at 0 and 2, the real value at 1: a gap below the match and a
	// non-matching key after it.
	seed(0, "collider-a")
	seed(1, string(encoded))
	seed(2, "collider-b")

	id, err := m.PutAttribute(w, bio, value)
	if err != nil {
		t.Fatalf("put attribute: %v", err)
	}
	want := keyencoding.HashedAttributeID(hash, 1)
	if string(id.Bytes()) != string(want.Bytes()) {
		t.Fatalf("lookup of an existing collided value = %x, want disambiguator 1 (%x)", id.Bytes(), want.Bytes())
	}

	// Remove the match so 1 becomes a gap between live slots 0 and 2: a new
	// value forced into the same hash family must reuse it, not take 3.
	w.Delete(storage.KeyspaceInstanceVertex, keyencoding.AttributeVertexKey(tid, want))
	gapID, err := m.putHashedAttributeAtHash(w, bio, tid, hash, []byte("collider-c"))
	if err != nil {
		t.Fatalf("put gap-filling collider: %v", err)
	}
	if got := gapID.Bytes(); got[len(got)-1]&0x7f != 1 {
		t.Fatalf("expected the freed disambiguator 1 reused, got %x", got)
	}
}

// TestDeleteEntityCascadesIncidentLinks deletes a player entity and expects
// the relation's links-edges (both directions) to go with it.
func TestDeleteEntityCascadesIncidentLinks(t *testing.T) {
	schema := core.NewManager(nil)
	person, _ := schema.CreateEntityType("person", nil)
	team, _ := schema.CreateEntityType("team", nil)
	membership, _ := schema.CreateRelationType("membership", nil)
	member, _ := schema.CreateRole(membership, "member", nil)
	group, _ := schema.CreateRole(membership, "group", nil)
	_ = schema.AddRelates(membership, member, nil)
	_ = schema.AddRelates(membership, group, nil)
	_ = schema.AddPlays(person, member)
	_ = schema.AddPlays(team, group)

	m := NewManager(schema)
	s := openTestStore(t)
	w := s.OpenWrite()

	alice, _ := m.CreateEntity(w, person)
	dev, _ := m.CreateEntity(w, team)
	rel, _ := m.CreateRelation(w, membership)
	if err := m.PutLinks(w, membership.ID, rel, member.ID, person.ID, alice, nil); err != nil {
		t.Fatalf("put member link: %v", err)
	}
	if err := m.PutLinks(w, membership.ID, rel, group.ID, team.ID, dev, nil); err != nil {
		t.Fatalf("put group link: %v", err)
	}

	if got := m.Statistics().PlayerCount(membership.ID, member.ID); got != 1 {
		t.Fatalf("expected player-count 1 before delete, got %d", got)
	}

	linked, err := m.PlayersLinkedVia(w, membership.ID, rel, person.ID, alice, team.ID, dev)
	if err != nil {
		t.Fatalf("indexed players lookup: %v", err)
	}
	if !linked {
		t.Fatal("expected the two-player index to pair alice with dev")
	}

	if err := m.DeleteEntity(w, person.ID, alice); err != nil {
		t.Fatalf("delete entity: %v", err)
	}
	if got := m.Statistics().PlayerCount(membership.ID, member.ID); got != 0 {
		t.Fatalf("expected the member links-edge gone after cascade delete, got player-count %d", got)
	}
	if got := m.Statistics().PlayerCount(membership.ID, group.ID); got != 1 {
		t.Fatalf("expected the other role's edge untouched, got player-count %d", got)
	}
}
