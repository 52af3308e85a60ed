package executor

import (
	"sync"

	"gravix/internal/compiler"
	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/storage"
	"gravix/internal/thing"
)

// Snapshot is the read surface a step executor scans: implemented by both
// *storage.ReadSnapshot and *storage.WriteSnapshot, so a match stage running
// inside a write pipeline sees the rows earlier stages of the same
// transaction buffered but have not yet committed.
type Snapshot interface {
	Get(keyspace storage.KeyspaceName, key []byte) ([]byte, bool, error)
	Iterate(keyspace storage.KeyspaceName, start, end []byte, visit func(key, value []byte) error) error
}

// Context bundles everything a step executor needs to read: the snapshot
// it scans, the schema for capability lookups, the thing manager for
// instance/statistics access, a shared tabled-recursion table registry, the
// query's interrupt flag, and an optional profiler.
// Functions/Infer/Compiler are optional: a Context built for a standalone
// match/insert/delete/update pipeline with no function calls may leave them
// nil; a tabled or plain function call encountered with them unset is a
// compile-time-should-have-caught-this executor error.
type Context struct {
	Snapshot  Snapshot
	Schema    *core.Manager
	Things    *thing.Manager
	Tables    *TableRegistry
	Interrupt *Interrupt
	Profile   *Profile

	Functions *ir.FunctionIndex
	Infer     *inference.Engine
	Compiler  *compiler.Compiler

	funcMu    sync.Mutex
	funcCache map[string]*compiledFunction

	// tabledStack is the chain of tabled-call producer frames currently on
	// this query's (single-threaded) call stack, innermost last. A
	// non-producer re-entry that reads an incomplete table marks every
	// frame provisional; see runTabledCall.
	tabledStack []*TabledCallSuspension
}

// NewContext constructs an execution context for a read pipeline with no
// function calls.
func NewContext(snap Snapshot, schema *core.Manager, things *thing.Manager) *Context {
	return &Context{
		Snapshot:  snap,
		Schema:    schema,
		Things:    things,
		Tables:    NewTableRegistry(),
		Interrupt: NewInterrupt(),
		Profile:   NewProfile(),
		funcCache: make(map[string]*compiledFunction),
	}
}

// WithFunctions attaches the function index and compilation toolchain
// needed to execute FunctionCallBinding/TabledCallStep steps, returning ctx
// for chaining.
func (c *Context) WithFunctions(functions *ir.FunctionIndex, infer *inference.Engine, comp *compiler.Compiler) *Context {
	c.Functions = functions
	c.Infer = infer
	c.Compiler = comp
	return c
}

// checkInterrupt returns an interrupted error if the context's interrupt
// flag has been raised, otherwise nil. Callers check this between batches
// and between rows inside long iterators.
func (c *Context) checkInterrupt() error {
	if c.Interrupt.Observed() {
		return gravixerr.New(gravixerr.CodeInterrupted, "execution interrupted")
	}
	return nil
}
