package ir

import (
	"fmt"
	"sort"
	"sync"
)

// ReturnKind distinguishes a function's four return shapes.
type ReturnKind uint8

const (
	ReturnStream ReturnKind = iota
	ReturnSingle
	ReturnCheck
	ReturnReduce
)

// Selector picks which tuple a ReturnSingle statement yields when its
// pipeline produces more than one.
type Selector uint8

const (
	SelectorFirst Selector = iota
	SelectorLast
)

// ReducerOp enumerates the aggregation operators a ReturnReduce statement's
// reducer list may use.
type ReducerOp uint8

const (
	ReduceCount ReducerOp = iota
	ReduceSum
	ReduceMax
	ReduceMin
	ReduceMean
	ReduceMedian
	ReduceList
)

// Reducer aggregates Target across a pipeline's output rows.
type Reducer struct {
	Op     ReducerOp
	Target *Variable
}

// ReturnStatement is the terminal stage of a function's pipeline.
type ReturnStatement struct {
	Kind     ReturnKind
	Vars     []*Variable // ReturnStream, ReturnSingle
	Selector Selector    // ReturnSingle
	Reducers []Reducer   // ReturnReduce
}

// ArgSpec is one typed argument of a function signature.
type ArgSpec struct {
	Name     string
	Category VariableCategory
}

// FunctionSignature is a function's externally-visible shape: name, typed
// arguments, and return kind. Signatures are registered before any body is
// translated, so a call appearing earlier in source than its callee's
// definition still resolves during IR construction.
type FunctionSignature struct {
	Name   string
	Args   []ArgSpec
	Return ReturnKind
}

// FunctionDef is a fully translated function: its signature, an ordered
// pipeline of match/filter blocks, and its return statement.
type FunctionDef struct {
	Signature FunctionSignature
	Pipeline  []*Block
	Return    ReturnStatement
}

// FunctionIndex holds every function signature (and, once translated, body)
// visible to a query, keyed by name.
type FunctionIndex struct {
	mu   sync.RWMutex
	sigs map[string]*FunctionSignature
	defs map[string]*FunctionDef
}

// NewFunctionIndex creates an empty function index.
func NewFunctionIndex() *FunctionIndex {
	return &FunctionIndex{
		sigs: make(map[string]*FunctionSignature),
		defs: make(map[string]*FunctionDef),
	}
}

// RegisterSignature declares sig before its body is translated. It is an
// error to register the same function name twice.
func (idx *FunctionIndex) RegisterSignature(sig FunctionSignature) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.sigs[sig.Name]; exists {
		return fmt.Errorf("ir: function %q already declared", sig.Name)
	}
	idx.sigs[sig.Name] = &sig
	return nil
}

// Signature resolves a function name to its registered signature.
func (idx *FunctionIndex) Signature(name string) (*FunctionSignature, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	sig, ok := idx.sigs[name]
	return sig, ok
}

// SetBody attaches a translated body to a previously registered signature.
func (idx *FunctionIndex) SetBody(def *FunctionDef) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.sigs[def.Signature.Name]; !ok {
		return fmt.Errorf("ir: function %q has no registered signature", def.Signature.Name)
	}
	idx.defs[def.Signature.Name] = def
	return nil
}

// Get resolves a function name to its translated definition.
func (idx *FunctionIndex) Get(name string) (*FunctionDef, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	def, ok := idx.defs[name]
	return def, ok
}

// Names returns every registered function name in sorted order, for
// deterministic call-graph traversal during type inference.
func (idx *FunctionIndex) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.sigs))
	for name := range idx.sigs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CallGraph returns, for each function name, the set of function names its
// body calls via FunctionCallBinding constraints — the input to Kosaraju's
// SCC detection in internal/ir/inference.
func (idx *FunctionIndex) CallGraph() map[string][]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	graph := make(map[string][]string, len(idx.defs))
	for name, def := range idx.defs {
		var callees []string
		for _, blk := range def.Pipeline {
			walkBlockCalls(blk, &callees)
		}
		graph[name] = callees
	}
	return graph
}

func walkBlockCalls(b *Block, out *[]string) {
	if b == nil {
		return
	}
	for _, c := range b.Constraints {
		if fc, ok := c.(FunctionCallBinding); ok {
			*out = append(*out, fc.Function)
		}
	}
	for _, n := range b.Nested {
		switch p := n.(type) {
		case *Disjunction:
			for _, branch := range p.Branches {
				walkBlockCalls(branch, out)
			}
		case *Negation:
			walkBlockCalls(p.Inner, out)
		case *Optional:
			walkBlockCalls(p.Inner, out)
		}
	}
}
