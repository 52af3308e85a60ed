// Package querycache caches compiled query pipelines keyed by the
// structural shape of their translated IR combined with the schema epoch
// at compile time, so a schema mutation invalidates every cached entry
// without the cache needing to understand schema internals.
package querycache

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"gravix/internal/ir"
	"gravix/internal/parser"
)

// Key identifies one cache entry: a structural hash of a translated
// pipeline folded together with the schema epoch it was compiled against.
type Key uint64

// HashPipeline derives a Key from p's structural shape and epoch. Variable
// names are ignored: each distinct variable hashes as the ordinal of its
// first appearance in the walk, so renaming every variable consistently
// yields the same key. Structure, labels, constants, and function identity
// are significant; two pipelines compiled against different schema epochs
// never collide.
func HashPipeline(p *parser.Pipeline, epoch uint64) Key {
	hs := &hashState{h: xxhash.New(), ordinals: make(map[*ir.Variable]int)}
	hs.hashPipeline(p)
	var epochBuf [8]byte
	binary.BigEndian.PutUint64(epochBuf[:], epoch)
	hs.h.Write(epochBuf[:])
	return Key(hs.h.Sum64())
}

// hashState threads the variable-ordinal table through one HashPipeline
// walk.
type hashState struct {
	h        *xxhash.Digest
	ordinals map[*ir.Variable]int
}

func (hs *hashState) writeVar(v *ir.Variable) {
	if v == nil {
		writeString(hs.h, "$nil")
		return
	}
	ord, ok := hs.ordinals[v]
	if !ok {
		ord = len(hs.ordinals)
		hs.ordinals[v] = ord
	}
	writeUint(hs.h, uint64(ord))
}

func (hs *hashState) hashPipeline(p *parser.Pipeline) {
	for _, stage := range p.Stages {
		hs.hashStage(stage)
	}
	if p.Fetch != nil {
		writeString(hs.h, "fetch")
		hs.hashFetchNode(p.Fetch)
	}
}

func (hs *hashState) hashStage(s *parser.PipelineStage) {
	writeUint(hs.h, uint64(s.Kind))
	if s.Block != nil {
		hs.hashBlock(s.Block)
	}
	for _, v := range s.UpdateGuard {
		hs.writeVar(v)
	}
	for _, r := range s.ReduceReducers {
		writeUint(hs.h, uint64(r.Op))
		hs.writeVar(r.Target)
	}
	for _, v := range s.ReduceGroupBy {
		hs.writeVar(v)
	}
	for _, v := range s.SelectVars {
		hs.writeVar(v)
	}
	for _, v := range s.RequireVars {
		hs.writeVar(v)
	}
	for _, k := range s.SortKeys {
		hs.writeVar(k.Var)
		if k.Descending {
			writeString(hs.h, "desc")
		}
	}
	writeUint(hs.h, uint64(s.Offset))
	writeUint(hs.h, uint64(s.Limit))
}

func (hs *hashState) hashBlock(b *ir.Block) {
	writeString(hs.h, "block(")
	for _, c := range b.Constraints {
		hs.hashConstraint(c)
	}
	for _, n := range b.Nested {
		hs.hashPattern(n)
	}
	writeString(hs.h, ")")
}

func (hs *hashState) hashPattern(p ir.Pattern) {
	switch t := p.(type) {
	case *ir.Disjunction:
		writeString(hs.h, "or(")
		for _, branch := range t.Branches {
			hs.hashBlock(branch)
		}
		writeString(hs.h, ")")
	case *ir.Negation:
		writeString(hs.h, "not(")
		hs.hashBlock(t.Inner)
		writeString(hs.h, ")")
	case *ir.Optional:
		writeString(hs.h, "try(")
		hs.hashBlock(t.Inner)
		writeString(hs.h, ")")
	case *ir.Block:
		hs.hashBlock(t)
	}
}

func (hs *hashState) hashConstraint(c ir.Constraint) {
	switch t := c.(type) {
	case ir.Isa:
		writeString(hs.h, "isa")
		hs.writeVar(t.Thing)
		hs.writeVar(t.Type)
	case ir.Sub:
		writeString(hs.h, "sub")
		hs.writeVar(t.Subtype)
		hs.writeVar(t.Supertype)
	case ir.Has:
		writeString(hs.h, "has")
		hs.writeVar(t.Owner)
		hs.writeVar(t.Attribute)
	case ir.Links:
		writeString(hs.h, "links")
		hs.writeVar(t.Relation)
		hs.writeVar(t.Player)
		if t.Role != nil {
			hs.writeVar(t.Role)
		}
	case ir.Label:
		writeString(hs.h, "label")
		hs.writeVar(t.Var)
		writeString(hs.h, t.Label)
	case ir.RoleName:
		writeString(hs.h, "role-name")
		hs.writeVar(t.Var)
		writeString(hs.h, t.Name)
	case ir.Kind:
		writeString(hs.h, "kind")
		hs.writeVar(t.Var)
		writeUint(hs.h, uint64(t.Kind))
	case ir.Value:
		writeString(hs.h, "value")
		hs.writeVar(t.Var)
		writeUint(hs.h, uint64(t.ValueKind))
	case ir.Comparison:
		writeString(hs.h, "cmp")
		hs.writeVar(t.Left)
		writeUint(hs.h, uint64(t.Op))
		hs.writeVar(t.Right)
	case ir.Is:
		writeString(hs.h, "is")
		hs.writeVar(t.Left)
		hs.writeVar(t.Right)
	case ir.ExpressionBinding:
		writeString(hs.h, "bind")
		hs.writeVar(t.Var)
		hs.hashExpression(t.Expr)
	case ir.FunctionCallBinding:
		writeString(hs.h, "call")
		writeString(hs.h, t.Function)
		for _, v := range t.Args {
			hs.writeVar(v)
		}
		for _, v := range t.Assigned {
			hs.writeVar(v)
		}
	case ir.Owns:
		writeString(hs.h, "owns")
		hs.writeVar(t.Owner)
		hs.writeVar(t.Attribute)
	case ir.Relates:
		writeString(hs.h, "relates")
		hs.writeVar(t.Relation)
		hs.writeVar(t.Role)
	case ir.Plays:
		writeString(hs.h, "plays")
		hs.writeVar(t.Player)
		hs.writeVar(t.Role)
	case ir.As:
		writeString(hs.h, "as")
		hs.writeVar(t.Specializing)
		hs.writeVar(t.Overridden)
	}
}

func (hs *hashState) hashExpression(e *ir.Expression) {
	if e == nil {
		return
	}
	if e.IsLeaf() {
		if e.Variable != nil {
			writeString(hs.h, "var:")
			hs.writeVar(e.Variable)
		} else {
			writeString(hs.h, fmt.Sprintf("const:%v", e.Constant))
		}
		return
	}
	writeString(hs.h, fmt.Sprintf("op:%d:%s(", e.Op, e.Name))
	for _, child := range e.Children {
		hs.hashExpression(child)
	}
	writeString(hs.h, ")")
}

// hashFetchNode walks fetch entries in sorted key order; the parsed map's
// own iteration order is randomized and must not leak into the key.
func (hs *hashState) hashFetchNode(n *ir.FetchNode) {
	if n == nil {
		return
	}
	if n.Var != nil {
		writeString(hs.h, "var:")
		hs.writeVar(n.Var)
	}
	writeString(hs.h, n.AttrLabel)
	writeString(hs.h, n.Function)
	for _, v := range n.Args {
		hs.writeVar(v)
	}
	if n.Entries != nil {
		writeString(hs.h, "entries(")
		for _, key := range sortedFetchKeys(n.Entries) {
			writeString(hs.h, key)
			hs.hashFetchNode(n.Entries[key])
		}
		writeString(hs.h, ")")
	}
	if n.SubPipeline != nil {
		writeString(hs.h, "sub(")
		hs.hashBlock(n.SubPipeline)
		for _, key := range sortedFetchKeys(n.SubFetch) {
			writeString(hs.h, key)
			hs.hashFetchNode(n.SubFetch[key])
		}
		writeString(hs.h, ")")
	}
	if n.AsList {
		writeString(hs.h, "list")
	}
}

func sortedFetchKeys(m map[string]*ir.FetchNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeString(h *xxhash.Digest, s string) { h.Write([]byte(s)) }

func writeUint(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// Cache is an LRU cache of compiled query artifacts, type-parameterized so
// the engine package can store whatever compiled representation it needs
// (a plan, a compiled stage sequence) without this package importing it.
type Cache[V any] struct {
	lru *lru.Cache[Key, V]
}

// New creates a Cache holding at most size entries.
func New[V any](size int) (*Cache[V], error) {
	c, err := lru.New[Key, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: c}, nil
}

// Get looks up key, reporting whether it was present.
func (c *Cache[V]) Get(key Key) (V, bool) {
	return c.lru.Get(key)
}

// Put inserts or replaces key's entry, evicting the least recently used
// entry if the cache is at capacity.
func (c *Cache[V]) Put(key Key, value V) {
	c.lru.Add(key, value)
}

// Purge discards every cached entry, called when the schema epoch advances
// in a way the caller wants reflected immediately rather than lazily via a
// miss-then-recompute on the new epoch's keys.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len reports the number of entries currently cached.
func (c *Cache[V]) Len() int { return c.lru.Len() }
