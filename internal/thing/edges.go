package thing

import (
	"gravix/internal/core"
	"gravix/internal/keyencoding"
	"gravix/internal/storage"
)

// PutHas writes the forward and reverse has-edges linking owner to attr:
// has and links edges appear in both canonical and reverse forms, and both
// must be written and deleted together.
func (m *Manager) PutHas(w *storage.WriteSnapshot, ownerType core.TypeID, owner keyencoding.ObjectID, attrType core.TypeID, attr keyencoding.AttributeID) {
	fwd := keyencoding.HasEdgeKey(keyencoding.TypeID(ownerType), owner, keyencoding.TypeID(attrType), attr)
	rev := keyencoding.HasEdgeReverseKey(keyencoding.TypeID(attrType), attr, keyencoding.TypeID(ownerType), owner)
	w.Put(storage.KeyspaceInstanceEdge, fwd, nil)
	w.Put(storage.KeyspaceInstanceEdge, rev, nil)
	m.stats.incHas(ownerType, attrType)
}

// DeleteHas removes both directions of a has-edge.
func (m *Manager) DeleteHas(w *storage.WriteSnapshot, ownerType core.TypeID, owner keyencoding.ObjectID, attrType core.TypeID, attr keyencoding.AttributeID) {
	fwd := keyencoding.HasEdgeKey(keyencoding.TypeID(ownerType), owner, keyencoding.TypeID(attrType), attr)
	rev := keyencoding.HasEdgeReverseKey(keyencoding.TypeID(attrType), attr, keyencoding.TypeID(ownerType), owner)
	w.Delete(storage.KeyspaceInstanceEdge, fwd)
	w.Delete(storage.KeyspaceInstanceEdge, rev)
	m.stats.decHas(ownerType, attrType)
}

// PutLinks writes the forward and reverse links-edges for a relation/role/
// player triple, with an optional ordinal for ordered roles, and extends
// the relation's materialised two-player index with a symmetric pair entry
// per player already present.
func (m *Manager) PutLinks(w *storage.WriteSnapshot, relType core.TypeID, rel keyencoding.ObjectID, role core.TypeID, playerType core.TypeID, player keyencoding.ObjectID, ordinal *uint32) error {
	existing, err := m.relationPlayers(w, relType, rel)
	if err != nil {
		return err
	}

	fwd := keyencoding.LinksEdgeKey(keyencoding.TypeID(relType), rel, keyencoding.TypeID(role), keyencoding.TypeID(playerType), player, ordinal)
	rev := keyencoding.LinksEdgeReverseKey(keyencoding.TypeID(playerType), player, keyencoding.TypeID(role), keyencoding.TypeID(relType), rel)
	w.Put(storage.KeyspaceInstanceEdge, fwd, nil)
	w.Put(storage.KeyspaceInstanceEdge, rev, nil)

	for _, other := range existing {
		if other.playerType == playerType && other.player == player && other.role == role {
			continue
		}
		a, b := m.indexedPairKeys(relType, rel, playerType, player, role, other.playerType, other.player, other.role)
		w.Put(storage.KeyspaceInstanceEdge, a, nil)
		w.Put(storage.KeyspaceInstanceEdge, b, nil)
	}
	m.stats.incPlayer(relType, role)
	return nil
}

// DeleteLinks removes both directions of a links-edge and every two-player
// index entry pairing the removed player with another.
func (m *Manager) DeleteLinks(w *storage.WriteSnapshot, relType core.TypeID, rel keyencoding.ObjectID, role core.TypeID, playerType core.TypeID, player keyencoding.ObjectID, ordinal *uint32) error {
	existing, err := m.relationPlayers(w, relType, rel)
	if err != nil {
		return err
	}

	fwd := keyencoding.LinksEdgeKey(keyencoding.TypeID(relType), rel, keyencoding.TypeID(role), keyencoding.TypeID(playerType), player, ordinal)
	rev := keyencoding.LinksEdgeReverseKey(keyencoding.TypeID(playerType), player, keyencoding.TypeID(role), keyencoding.TypeID(relType), rel)
	w.Delete(storage.KeyspaceInstanceEdge, fwd)
	w.Delete(storage.KeyspaceInstanceEdge, rev)

	for _, other := range existing {
		if other.playerType == playerType && other.player == player && other.role == role {
			continue
		}
		a, b := m.indexedPairKeys(relType, rel, playerType, player, role, other.playerType, other.player, other.role)
		w.Delete(storage.KeyspaceInstanceEdge, a)
		w.Delete(storage.KeyspaceInstanceEdge, b)
	}
	m.stats.decPlayer(relType, role)
	return nil
}

// rolePlayer is one (player, role) participant read back from a relation's
// forward links-edges.
type rolePlayer struct {
	playerType core.TypeID
	player     keyencoding.ObjectID
	role       core.TypeID
}

func (m *Manager) relationPlayers(w *storage.WriteSnapshot, relType core.TypeID, rel keyencoding.ObjectID) ([]rolePlayer, error) {
	start, end := keyencoding.LinksEdgeRelationPrefix(keyencoding.TypeID(relType), rel)
	var out []rolePlayer
	err := w.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		if len(key) < linksForwardFixedLen {
			return nil
		}
		out = append(out, rolePlayer{
			role:       core.TypeID(be16(key[11:13])),
			playerType: core.TypeID(be16(key[13:15])),
			player:     keyencoding.ObjectID(be64(key[15:23])),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) indexedPairKeys(relType core.TypeID, rel keyencoding.ObjectID, aType core.TypeID, a keyencoding.ObjectID, aRole core.TypeID, bType core.TypeID, b keyencoding.ObjectID, bRole core.TypeID) (keyencoding.Key, keyencoding.Key) {
	first := keyencoding.IndexedPlayersKey(keyencoding.TypeID(relType), rel,
		keyencoding.TypeID(aType), keyencoding.TypeID(aRole), a,
		keyencoding.TypeID(bType), keyencoding.TypeID(bRole), b)
	second := keyencoding.IndexedPlayersKey(keyencoding.TypeID(relType), rel,
		keyencoding.TypeID(bType), keyencoding.TypeID(bRole), b,
		keyencoding.TypeID(aType), keyencoding.TypeID(aRole), a)
	return first, second
}

// PlayersLinkedVia reports whether relation rel links players a and b via
// the materialised two-player index: one prefix scan led by a, filtered on
// b, instead of walking the relation's full links set.
func (m *Manager) PlayersLinkedVia(w *storage.WriteSnapshot, relType core.TypeID, rel keyencoding.ObjectID, aType core.TypeID, a keyencoding.ObjectID, bType core.TypeID, b keyencoding.ObjectID) (bool, error) {
	start, end := keyencoding.IndexedPlayersPairPrefix(keyencoding.TypeID(relType), rel, keyencoding.TypeID(aType), a)
	found := false
	err := w.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		// layout: prefix(1) rel(2+8) playerA(2+8) roleA(2) playerB(2+8) roleB(2)
		if len(key) < 35 {
			return nil
		}
		if core.TypeID(be16(key[23:25])) == bType && keyencoding.ObjectID(be64(key[25:33])) == b {
			found = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// hasForwardFixedLen is the byte length of a has-edge forward key up to but
// excluding the variable-length AttributeID suffix: prefix(1) + ownerType(2)
// + owner(8) + attrType(2).
const hasForwardFixedLen = 13

// DeleteEntity cascades an entity's deletion to every outgoing has-edge and
// every links-edge it participates in as a player, then removes the entity's
// own vertex key.
func (m *Manager) DeleteEntity(w *storage.WriteSnapshot, typ core.TypeID, obj keyencoding.ObjectID) error {
	start, end := keyencoding.HasEdgeOwnerPrefix(keyencoding.TypeID(typ), obj)
	var toDelete [][]byte
	err := w.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		cp := append([]byte{}, key...)
		toDelete = append(toDelete, cp)
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range toDelete {
		w.Delete(storage.KeyspaceInstanceEdge, key)
		if rev, ok := reverseHasKey(key); ok {
			w.Delete(storage.KeyspaceInstanceEdge, rev)
		}
		attrType := decodeAttrType(key)
		m.stats.decHas(typ, attrType)
		if attrID, ok := keyencoding.DecodeAttributeID(key[hasForwardFixedLen:]); ok {
			if err := m.CleanupAttribute(w, attrType, attrID); err != nil {
				return err
			}
		}
	}
	if err := m.deleteIncidentLinks(w, typ, obj); err != nil {
		return err
	}
	key := keyencoding.ObjectVertexKey(keyencoding.PrefixInstanceEntity, keyencoding.TypeID(typ), obj)
	w.Delete(storage.KeyspaceInstanceVertex, key)
	m.stats.decInstance(typ)
	return nil
}

// deleteIncidentLinks removes every links-edge where the instance is a
// player: the reverse key gives (role, relation) directly, and the matching
// forward key is rebuilt from the same fields. An ordered role's forward key
// carries an ordinal suffix the reverse key does not, so those are found by
// scanning the relation's forward prefix for the (role, player) pair.
func (m *Manager) deleteIncidentLinks(w *storage.WriteSnapshot, playerType core.TypeID, player keyencoding.ObjectID) error {
	start, end := keyencoding.LinksEdgePlayerPrefix(keyencoding.TypeID(playerType), player)
	var reverse [][]byte
	err := w.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		cp := append([]byte{}, key...)
		reverse = append(reverse, cp)
		return nil
	})
	if err != nil {
		return err
	}
	for _, rev := range reverse {
		if len(rev) != linksForwardFixedLen {
			continue
		}
		role := keyencoding.TypeID(be16(rev[11:13]))
		relType := keyencoding.TypeID(be16(rev[13:15]))
		rel := keyencoding.ObjectID(be64(rev[15:23]))

		fwdStart, fwdEnd := keyencoding.LinksEdgeRelationPrefix(relType, rel)
		var forward [][]byte
		err := w.Iterate(storage.KeyspaceInstanceEdge, fwdStart, fwdEnd, func(key, _ []byte) error {
			if len(key) < linksForwardFixedLen {
				return nil
			}
			if keyencoding.TypeID(be16(key[11:13])) != role {
				return nil
			}
			if keyencoding.TypeID(be16(key[13:15])) != keyencoding.TypeID(playerType) ||
				keyencoding.ObjectID(be64(key[15:23])) != player {
				return nil
			}
			forward = append(forward, append([]byte{}, key...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, fwd := range forward {
			w.Delete(storage.KeyspaceInstanceEdge, fwd)
		}
		w.Delete(storage.KeyspaceInstanceEdge, rev)
		if err := m.deleteIndexedPairsFor(w, core.TypeID(relType), rel, playerType, player); err != nil {
			return err
		}
		m.stats.decPlayer(core.TypeID(relType), core.TypeID(role))
	}
	return nil
}

// deleteIndexedPairsFor drops every two-player index entry of rel that
// involves the given player, in both key orders.
func (m *Manager) deleteIndexedPairsFor(w *storage.WriteSnapshot, relType core.TypeID, rel keyencoding.ObjectID, playerType core.TypeID, player keyencoding.ObjectID) error {
	start, end := keyencoding.IndexedPlayersPairPrefix(keyencoding.TypeID(relType), rel, keyencoding.TypeID(playerType), player)
	var leads [][]byte
	err := w.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		leads = append(leads, append([]byte{}, key...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range leads {
		w.Delete(storage.KeyspaceInstanceEdge, key)
		if mirror, ok := mirroredPairKey(key); ok {
			w.Delete(storage.KeyspaceInstanceEdge, mirror)
		}
	}
	return nil
}

// mirroredPairKey swaps a two-player index key's (playerA, roleA) and
// (playerB, roleB) halves so both orderings of a pair are deleted together.
func mirroredPairKey(key []byte) ([]byte, bool) {
	if len(key) != 35 {
		return nil, false
	}
	relType := keyencoding.TypeID(be16(key[1:3]))
	rel := keyencoding.ObjectID(be64(key[3:11]))
	aType := keyencoding.TypeID(be16(key[11:13]))
	a := keyencoding.ObjectID(be64(key[13:21]))
	aRole := keyencoding.TypeID(be16(key[21:23]))
	bType := keyencoding.TypeID(be16(key[23:25]))
	b := keyencoding.ObjectID(be64(key[25:33]))
	bRole := keyencoding.TypeID(be16(key[33:35]))
	return keyencoding.IndexedPlayersKey(relType, rel, bType, bRole, b, aType, aRole, a), true
}

// CleanupAttribute removes attr's vertex once its last has-edge is gone,
// unless its type is marked @independent. Callers invoke it after deleting
// a has-edge; the check runs against the merged (buffered) view so edges
// removed earlier in the same transaction count as gone.
func (m *Manager) CleanupAttribute(w *storage.WriteSnapshot, attrType core.TypeID, attr keyencoding.AttributeID) error {
	typ := m.schema.GetByID(attrType)
	if typ == nil || typ.Independent {
		return nil
	}
	prefix := keyencoding.HasEdgeReverseKey(keyencoding.TypeID(attrType), attr, 0, 0)
	prefix = prefix[:len(prefix)-10]
	end := prefixEnd(prefix)
	remaining := false
	err := w.Iterate(storage.KeyspaceInstanceEdge, prefix, end, func(_, _ []byte) error {
		remaining = true
		return nil
	})
	if err != nil {
		return err
	}
	if remaining {
		return nil
	}
	w.Delete(storage.KeyspaceInstanceVertex, keyencoding.AttributeVertexKey(keyencoding.TypeID(attrType), attr))
	m.stats.decInstance(attrType)
	return nil
}

// reverseHasKey decodes a has-edge forward key and re-encodes its reverse
// form, so cascade deletes clean up both directions without a second scan.
func reverseHasKey(fwd []byte) ([]byte, bool) {
	if len(fwd) <= hasForwardFixedLen {
		return nil, false
	}
	ownerType := keyencoding.TypeID(be16(fwd[1:3]))
	owner := keyencoding.ObjectID(be64(fwd[3:11]))
	attrType := keyencoding.TypeID(be16(fwd[11:13]))
	attrID, ok := keyencoding.DecodeAttributeID(fwd[13:])
	if !ok {
		return nil, false
	}
	return keyencoding.HasEdgeReverseKey(attrType, attrID, ownerType, owner), true
}

func decodeAttrType(fwd []byte) core.TypeID {
	if len(fwd) < 13 {
		return 0
	}
	return core.TypeID(be16(fwd[11:13]))
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

func be64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// DeleteRelation cascades a relation's deletion to every incident links-edge.
func (m *Manager) DeleteRelation(w *storage.WriteSnapshot, typ core.TypeID, obj keyencoding.ObjectID) error {
	start, end := keyencoding.LinksEdgeRelationPrefix(keyencoding.TypeID(typ), obj)
	var toDelete [][]byte
	err := w.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		cp := append([]byte{}, key...)
		toDelete = append(toDelete, cp)
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range toDelete {
		w.Delete(storage.KeyspaceInstanceEdge, key)
		if rev, role, ok := reverseLinksKey(key); ok {
			w.Delete(storage.KeyspaceInstanceEdge, rev)
			m.stats.decPlayer(typ, role)
		}
	}
	idxStart, idxEnd := keyencoding.IndexedPlayersRelationPrefix(keyencoding.TypeID(typ), obj)
	var idxKeys [][]byte
	err = w.Iterate(storage.KeyspaceInstanceEdge, idxStart, idxEnd, func(key, _ []byte) error {
		idxKeys = append(idxKeys, append([]byte{}, key...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range idxKeys {
		w.Delete(storage.KeyspaceInstanceEdge, key)
	}
	key := keyencoding.ObjectVertexKey(keyencoding.PrefixInstanceRelation, keyencoding.TypeID(typ), obj)
	w.Delete(storage.KeyspaceInstanceVertex, key)
	m.stats.decInstance(typ)
	return nil
}

// linksForwardFixedLen is a links-edge forward key's length with no ordinal
// suffix: prefix(1)+relType(2)+rel(8)+role(2)+playerType(2)+player(8).
const linksForwardFixedLen = 23

// reverseLinksKey decodes a links-edge forward key (with or without the
// optional ordered-role ordinal suffix) and re-encodes its reverse form.
func reverseLinksKey(fwd []byte) ([]byte, core.TypeID, bool) {
	if len(fwd) != linksForwardFixedLen && len(fwd) != linksForwardFixedLen+4 {
		return nil, 0, false
	}
	relType := keyencoding.TypeID(be16(fwd[1:3]))
	rel := keyencoding.ObjectID(be64(fwd[3:11]))
	role := keyencoding.TypeID(be16(fwd[11:13]))
	playerType := keyencoding.TypeID(be16(fwd[13:15]))
	player := keyencoding.ObjectID(be64(fwd[15:23]))
	return keyencoding.LinksEdgeReverseKey(playerType, player, role, relType, rel), core.TypeID(role), true
}
