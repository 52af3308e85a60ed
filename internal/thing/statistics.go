package thing

import (
	"encoding/binary"
	"sync"

	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/keyencoding"
	"gravix/internal/storage"
)

// Statistics tracks the counts the planner's cost model consumes: per-type
// instance counts, per-(owner,attribute) has-counts, and per-(relation,role)
// player-counts. Commits bump counters incrementally rather than rescanning
// storage; Manager.Bootstrap rebuilds them wholesale at open.
type Statistics struct {
	mu sync.RWMutex

	instanceCount map[core.TypeID]uint64
	hasCount      map[ownerAttrKey]uint64
	playerCount   map[relRoleKey]uint64
}

type ownerAttrKey struct {
	owner core.TypeID
	attr  core.TypeID
}

type relRoleKey struct {
	relation core.TypeID
	role     core.TypeID
}

// NewStatistics constructs an empty statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		instanceCount: make(map[core.TypeID]uint64),
		hasCount:      make(map[ownerAttrKey]uint64),
		playerCount:   make(map[relRoleKey]uint64),
	}
}

func (s *Statistics) incInstance(id core.TypeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceCount[id]++
}

func (s *Statistics) decInstance(id core.TypeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instanceCount[id] > 0 {
		s.instanceCount[id]--
	}
}

// InstanceCount returns the live instance count for a single type, not
// summed over subtypes; callers needing a subtree total sum over
// AllSubtypes themselves.
func (s *Statistics) InstanceCount(id core.TypeID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanceCount[id]
}

func (s *Statistics) incHas(owner, attr core.TypeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasCount[ownerAttrKey{owner, attr}]++
}

func (s *Statistics) decHas(owner, attr core.TypeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ownerAttrKey{owner, attr}
	if s.hasCount[k] > 0 {
		s.hasCount[k]--
	}
}

// HasCount returns the has-edge count for an exact (owner, attribute) type
// pair.
func (s *Statistics) HasCount(owner, attr core.TypeID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasCount[ownerAttrKey{owner, attr}]
}

func (s *Statistics) incPlayer(relation, role core.TypeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerCount[relRoleKey{relation, role}]++
}

func (s *Statistics) decPlayer(relation, role core.TypeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := relRoleKey{relation, role}
	if s.playerCount[k] > 0 {
		s.playerCount[k]--
	}
}

// PlayerCount returns the role-player count for an exact (relation, role)
// type pair.
func (s *Statistics) PlayerCount(relation, role core.TypeID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerCount[relRoleKey{relation, role}]
}

// Bootstrap rebuilds the manager's statistics and object-id watermarks from
// a recovered keyspace: a full scan of the instance vertex and edge
// keyspaces, run once at open so incremental commit-time bookkeeping starts
// from the durable truth rather than zero.
func (m *Manager) Bootstrap(snap *storage.ReadSnapshot) error {
	scanObjects := func(prefix keyencoding.Prefix) error {
		start := []byte{byte(prefix)}
		end := []byte{byte(prefix) + 1}
		return snap.Iterate(storage.KeyspaceInstanceVertex, start, end, func(key, _ []byte) error {
			if len(key) < 11 {
				return nil
			}
			typ := core.TypeID(binary.BigEndian.Uint16(key[1:3]))
			obj := binary.BigEndian.Uint64(key[3:11])
			m.stats.incInstance(typ)
			m.ids.Observe(uint16(typ), obj)
			return nil
		})
	}
	if err := scanObjects(keyencoding.PrefixInstanceEntity); err != nil {
		return gravixerr.Wrap(gravixerr.CodeConceptRead, "bootstrap entity counts", err)
	}
	if err := scanObjects(keyencoding.PrefixInstanceRelation); err != nil {
		return gravixerr.Wrap(gravixerr.CodeConceptRead, "bootstrap relation counts", err)
	}

	err := snap.Iterate(storage.KeyspaceInstanceVertex,
		[]byte{byte(keyencoding.PrefixInstanceAttribute)}, []byte{byte(keyencoding.PrefixInstanceAttribute) + 1},
		func(key, _ []byte) error {
			if len(key) < 3 {
				return nil
			}
			m.stats.incInstance(core.TypeID(binary.BigEndian.Uint16(key[1:3])))
			return nil
		})
	if err != nil {
		return gravixerr.Wrap(gravixerr.CodeConceptRead, "bootstrap attribute counts", err)
	}

	err = snap.Iterate(storage.KeyspaceInstanceEdge,
		[]byte{byte(keyencoding.PrefixEdgeHasForward)}, []byte{byte(keyencoding.PrefixEdgeHasForward) + 1},
		func(key, _ []byte) error {
			if len(key) < 13 {
				return nil
			}
			owner := core.TypeID(binary.BigEndian.Uint16(key[1:3]))
			attr := core.TypeID(binary.BigEndian.Uint16(key[11:13]))
			m.stats.incHas(owner, attr)
			return nil
		})
	if err != nil {
		return gravixerr.Wrap(gravixerr.CodeConceptRead, "bootstrap has counts", err)
	}

	err = snap.Iterate(storage.KeyspaceInstanceEdge,
		[]byte{byte(keyencoding.PrefixEdgeLinksForward)}, []byte{byte(keyencoding.PrefixEdgeLinksForward) + 1},
		func(key, _ []byte) error {
			if len(key) < 13 {
				return nil
			}
			rel := core.TypeID(binary.BigEndian.Uint16(key[1:3]))
			role := core.TypeID(binary.BigEndian.Uint16(key[11:13]))
			m.stats.incPlayer(rel, role)
			return nil
		})
	if err != nil {
		return gravixerr.Wrap(gravixerr.CodeConceptRead, "bootstrap player counts", err)
	}
	return nil
}
