package executor

import (
	"encoding/binary"

	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/keyencoding"
	"gravix/internal/storage"
)

// scanInstances enumerates every live instance of typ as a Concept,
// choosing the entity, relation, or attribute vertex keyspace by kind.
func scanInstances(ctx *Context, typ *core.Type) ([]*Concept, error) {
	switch typ.Kind {
	case core.KindEntity:
		return scanObjectVertices(ctx, keyencoding.PrefixInstanceEntity, typ)
	case core.KindRelation:
		return scanObjectVertices(ctx, keyencoding.PrefixInstanceRelation, typ)
	case core.KindAttribute:
		return scanAttributeVertices(ctx, typ)
	default:
		return nil, gravixerr.New(gravixerr.CodeConceptRead, "cannot scan instances of a role type")
	}
}

func scanObjectVertices(ctx *Context, prefix keyencoding.Prefix, typ *core.Type) ([]*Concept, error) {
	start, end := keyencoding.ObjectVertexPrefix(prefix, keyencoding.TypeID(typ.ID))
	var out []*Concept
	err := ctx.Snapshot.Iterate(storage.KeyspaceInstanceVertex, start, end, func(key, _ []byte) error {
		if len(key) < 11 {
			return nil
		}
		obj := keyencoding.ObjectID(binary.BigEndian.Uint64(key[3:11]))
		out = append(out, &Concept{Type: typ, Object: obj})
		return nil
	})
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "scan instances", err)
	}
	return out, nil
}

func scanAttributeVertices(ctx *Context, typ *core.Type) ([]*Concept, error) {
	start, end := keyencoding.AttributeVertexPrefix(keyencoding.TypeID(typ.ID))
	vk, err := schemaValueKind(typ)
	if err != nil {
		return nil, err
	}
	var out []*Concept
	err = ctx.Snapshot.Iterate(storage.KeyspaceInstanceVertex, start, end, func(key, val []byte) error {
		attrID, ok := keyencoding.DecodeAttributeID(key[3:])
		if !ok {
			return nil
		}
		decoded, decErr := keyencoding.DecodeValueBytes(vk, val)
		if decErr != nil {
			// Hashed collisions durably store the canonical encoded bytes
			// too, so this should not happen; skip defensively rather
			// than fail the whole scan on one bad row.
			return nil
		}
		out = append(out, &Concept{Type: typ, Attr: attrID, Value: decoded})
		return nil
	})
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "scan attribute instances", err)
	}
	return out, nil
}

// resolveAttributeValue decodes the value stored at attr's vertex, for
// callers (e.g. fetch projection) that only hold the AttributeID from a
// has-edge scan and need the underlying scalar.
func resolveAttributeValue(ctx *Context, typ *core.Type, attr keyencoding.AttributeID) (any, error) {
	vk, err := schemaValueKind(typ)
	if err != nil {
		return nil, err
	}
	key := keyencoding.AttributeVertexKey(keyencoding.TypeID(typ.ID), attr)
	val, found, err := ctx.Snapshot.Get(storage.KeyspaceInstanceVertex, key)
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "resolve attribute value", err)
	}
	if !found {
		return nil, nil
	}
	return keyencoding.DecodeValueBytes(vk, val)
}

func schemaValueKind(typ *core.Type) (keyencoding.ValueKind, error) {
	switch typ.ValueType.Kind {
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

// scanHasForward enumerates attribute Concepts owner owns, restricted to
// attrType.
func scanHasForward(ctx *Context, ownerType core.TypeID, owner keyencoding.ObjectID, attrType *core.Type) ([]*Concept, error) {
	start, end := keyencoding.HasEdgeOwnerPrefix(keyencoding.TypeID(ownerType), owner)
	var out []*Concept
	err := ctx.Snapshot.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		if len(key) < 13 {
			return nil
		}
		at := core.TypeID(binary.BigEndian.Uint16(key[11:13]))
		if at != attrType.ID {
			return nil
		}
		attrID, ok := keyencoding.DecodeAttributeID(key[13:])
		if !ok {
			return nil
		}
		out = append(out, &Concept{Type: attrType, Attr: attrID})
		return nil
	})
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "scan has forward", err)
	}
	return out, nil
}

// scanHasForwardAny enumerates every attribute Concept owner has,
// regardless of attribute type, optionally restricted to the type IDs in
// allowed (nil means unrestricted).
func scanHasForwardAny(ctx *Context, ownerType core.TypeID, owner keyencoding.ObjectID, allowed map[core.TypeID]bool) ([]*Concept, error) {
	start, end := keyencoding.HasEdgeOwnerPrefix(keyencoding.TypeID(ownerType), owner)
	var out []*Concept
	err := ctx.Snapshot.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		if len(key) < 13 {
			return nil
		}
		at := core.TypeID(binary.BigEndian.Uint16(key[11:13]))
		if allowed != nil && !allowed[at] {
			return nil
		}
		attrT := ctx.Schema.GetByID(at)
		if attrT == nil {
			return nil
		}
		attrID, ok := keyencoding.DecodeAttributeID(key[13:])
		if !ok {
			return nil
		}
		out = append(out, &Concept{Type: attrT, Attr: attrID})
		return nil
	})
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "scan has forward (any type)", err)
	}
	return out, nil
}

// scanHasReverseAny enumerates every owner Concept holding attr, regardless
// of owner type, optionally restricted to the type IDs in allowed.
func scanHasReverseAny(ctx *Context, attrType core.TypeID, attr keyencoding.AttributeID, allowed map[core.TypeID]bool) ([]*Concept, error) {
	prefix := keyencoding.HasEdgeReverseKey(keyencoding.TypeID(attrType), attr, 0, 0)
	prefix = prefix[:len(prefix)-10] // drop the placeholder ownerType(2)+owner(8) suffix
	end := make([]byte, len(prefix))
	copy(end, prefix)
	end[len(end)-1]++

	var out []*Concept
	err := ctx.Snapshot.Iterate(storage.KeyspaceInstanceEdge, prefix, end, func(key, _ []byte) error {
		if len(key) < 10 {
			return nil
		}
		ot := core.TypeID(binary.BigEndian.Uint16(key[len(key)-10 : len(key)-8]))
		if allowed != nil && !allowed[ot] {
			return nil
		}
		ownerT := ctx.Schema.GetByID(ot)
		if ownerT == nil {
			return nil
		}
		obj := keyencoding.ObjectID(binary.BigEndian.Uint64(key[len(key)-8:]))
		out = append(out, &Concept{Type: ownerT, Object: obj})
		return nil
	})
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "scan has reverse (any type)", err)
	}
	return out, nil
}

// scanLinksForward enumerates (role, player) pairs a relation instance
// links, optionally restricted to roleType.
func scanLinksForward(ctx *Context, relType core.TypeID, rel keyencoding.ObjectID, roleType *core.Type, playerType *core.Type) ([]*Concept, []*core.Type, error) {
	start, end := keyencoding.LinksEdgeRelationPrefix(keyencoding.TypeID(relType), rel)
	var players []*Concept
	var roles []*core.Type
	err := ctx.Snapshot.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		if len(key) < 23 {
			return nil
		}
		role := core.TypeID(binary.BigEndian.Uint16(key[11:13]))
		pType := core.TypeID(binary.BigEndian.Uint16(key[13:15]))
		player := keyencoding.ObjectID(binary.BigEndian.Uint64(key[15:23]))
		if roleType != nil && role != roleType.ID {
			return nil
		}
		pt := ctx.Schema.GetByID(pType)
		if pt == nil {
			return nil
		}
		if playerType != nil && pt != playerType && !pt.IsSubtypeOf(playerType) {
			return nil
		}
		roleT := ctx.Schema.GetByID(role)
		players = append(players, &Concept{Type: pt, Object: player})
		roles = append(roles, roleT)
		return nil
	})
	if err != nil {
		return nil, nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "scan links forward", err)
	}
	return players, roles, nil
}

// scanLinksReverse enumerates (role, relation) pairs a player participates
// in, optionally restricted to relType.
func scanLinksReverse(ctx *Context, playerType core.TypeID, player keyencoding.ObjectID, roleType *core.Type, relType *core.Type) ([]*Concept, []*core.Type, error) {
	start, end := func() (keyencoding.Key, keyencoding.Key) {
		buf := keyencoding.LinksEdgeReverseKey(keyencoding.TypeID(playerType), player, 0, 0, 0)
		s := buf[:11] // prefix + playerType + player
		e := make(keyencoding.Key, len(s))
		copy(e, s)
		e[len(e)-1]++
		return s, e
	}()
	var rels []*Concept
	var roles []*core.Type
	err := ctx.Snapshot.Iterate(storage.KeyspaceInstanceEdge, start, end, func(key, _ []byte) error {
		if len(key) < 23 {
			return nil
		}
		role := core.TypeID(binary.BigEndian.Uint16(key[11:13]))
		rType := core.TypeID(binary.BigEndian.Uint16(key[13:15]))
		rel := keyencoding.ObjectID(binary.BigEndian.Uint64(key[15:23]))
		if roleType != nil && role != roleType.ID {
			return nil
		}
		rt := ctx.Schema.GetByID(rType)
		if rt == nil {
			return nil
		}
		if relType != nil && rt != relType && !rt.IsSubtypeOf(relType) {
			return nil
		}
		roleT := ctx.Schema.GetByID(role)
		rels = append(rels, &Concept{Type: rt, Object: rel})
		roles = append(roles, roleT)
		return nil
	})
	if err != nil {
		return nil, nil, gravixerr.Wrap(gravixerr.CodeConceptRead, "scan links reverse", err)
	}
	return rels, roles, nil
}
