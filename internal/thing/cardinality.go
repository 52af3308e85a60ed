package thing

import (
	"encoding/binary"
	"fmt"

	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/keyencoding"
	"gravix/internal/storage"
)

// EdgeTouch identifies one owner instance's has-edges of a single attribute
// type, touched by an insert/delete/update stage during a transaction.
type EdgeTouch struct {
	OwnerType core.TypeID
	Owner     keyencoding.ObjectID
	AttrType  core.TypeID
}

// RoleTouch identifies one relation instance's links-edges for a single
// role, touched by an insert/delete/update stage.
type RoleTouch struct {
	RelType core.TypeID
	Rel     keyencoding.ObjectID
	Role    core.TypeID
}

// Delta tracks the net new-minus-deleted edge count a transaction applied to
// one touched (owner, attribute-type) or (relation, role) pair. Commit-time
// validation reads the pre-transaction baseline from the snapshot's
// committed view (bypassing the write buffer, which already contains these
// edges) and adds this delta, rather than rescanning the merged view.
type Delta struct {
	owners map[EdgeTouch]int
	roles  map[RoleTouch]int
}

// NewDelta creates an empty edge-touch tracker for one transaction.
func NewDelta() *Delta {
	return &Delta{owners: make(map[EdgeTouch]int), roles: make(map[RoleTouch]int)}
}

// TouchHas records a has-edge write (delta=+1) or delete (delta=-1).
func (d *Delta) TouchHas(ownerType core.TypeID, owner keyencoding.ObjectID, attrType core.TypeID, delta int) {
	d.owners[EdgeTouch{OwnerType: ownerType, Owner: owner, AttrType: attrType}] += delta
}

// TouchLinks records a links-edge write (delta=+1) or delete (delta=-1).
func (d *Delta) TouchLinks(relType core.TypeID, rel keyencoding.ObjectID, role core.TypeID, delta int) {
	d.roles[RoleTouch{RelType: relType, Rel: rel, Role: role}] += delta
}

// ValidateCardinality re-derives each touched owner's has-count and each
// touched relation's player-count (pre-transaction baseline plus this
// transaction's delta) and checks it against the schema's inherited
// cardinality bound. It is the write executor's last step before Commit.
func (m *Manager) ValidateCardinality(w *storage.WriteSnapshot, schema *core.Manager, d *Delta) error {
	for touch, delta := range d.owners {
		ownerType := schema.GetByID(touch.OwnerType)
		attrType := schema.GetByID(touch.AttrType)
		if ownerType == nil || attrType == nil {
			continue
		}
		card, ok := core.OwnsCardinality(ownerType, attrType)
		if !ok {
			continue
		}
		base, err := countHasForward(w, touch.OwnerType, touch.Owner, touch.AttrType)
		if err != nil {
			return err
		}
		count := base + delta
		if err := checkCardinality(card, count, fmt.Sprintf(
			"owner %s (id %d) has %d attribute(s) of type %s", ownerType.Label, touch.Owner, count, attrType.Label)); err != nil {
			return err
		}
	}
	for touch, delta := range d.roles {
		relType := schema.GetByID(touch.RelType)
		roleType := schema.GetByID(touch.Role)
		if relType == nil || roleType == nil {
			continue
		}
		card, ok := core.RelatesCardinality(relType, roleType)
		if !ok {
			continue
		}
		base, err := countLinksForward(w, touch.RelType, touch.Rel, touch.Role)
		if err != nil {
			return err
		}
		count := base + delta
		if err := checkCardinality(card, count, fmt.Sprintf(
			"relation %s (id %d) has %d player(s) in role %s", relType.Label, touch.Rel, count, roleType.Label)); err != nil {
			return err
		}
	}
	return nil
}

func checkCardinality(card core.Cardinality, count int, desc string) error {
	if count < int(card.Min) {
		return gravixerr.New(gravixerr.CodeCardinality,
			fmt.Sprintf("cardinality violation: %s, below minimum %d", desc, card.Min))
	}
	if !card.NoMax && count > int(card.Max) {
		return gravixerr.New(gravixerr.CodeCardinality,
			fmt.Sprintf("cardinality violation: %s, above maximum %d", desc, card.Max))
	}
	return nil
}

// countHasForward counts owner's pre-transaction has-edges of exactly
// attrType, via the snapshot's committed (pre-buffer) view.
func countHasForward(w *storage.WriteSnapshot, ownerType core.TypeID, owner keyencoding.ObjectID, attrType core.TypeID) (int, error) {
	start, end := keyencoding.HasEdgeOwnerPrefix(keyencoding.TypeID(ownerType), owner)
	count := 0
	err := w.ReadSnapshot.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		if len(key) < 13 {
			return nil
		}
		if core.TypeID(binary.BigEndian.Uint16(key[11:13])) == attrType {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, gravixerr.Wrap(gravixerr.CodeConceptRead, "count has edges for cardinality validation", err)
	}
	return count, nil
}

// countLinksForward counts relation rel's pre-transaction players in role.
func countLinksForward(w *storage.WriteSnapshot, relType core.TypeID, rel keyencoding.ObjectID, role core.TypeID) (int, error) {
	start, end := keyencoding.LinksEdgeRelationPrefix(keyencoding.TypeID(relType), rel)
	count := 0
	err := w.ReadSnapshot.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		if len(key) < 23 {
			return nil
		}
		if core.TypeID(binary.BigEndian.Uint16(key[11:13])) == role {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, gravixerr.Wrap(gravixerr.CodeConceptRead, "count links edges for cardinality validation", err)
	}
	return count, nil
}
