package executor

import (
	"fmt"
	"sync"

	"gravix/internal/core"
)

// TableKey identifies one tabled function call by function identity and its
// concrete argument values: keyed by (function_id, argument_values).
type TableKey struct {
	FunctionID string
	Args       string
}

// NewTableKey builds a TableKey from a TabledCallStep's resolved argument
// row values.
func NewTableKey(functionID string, args Row) TableKey {
	return TableKey{FunctionID: functionID, Args: rowKey(args)}
}

// TabledCallSuspension is one in-flight producer frame on a query's tabled
// call stack. A recursive re-entry that reads a not-yet-complete table marks
// every frame above it provisional: those tables hold sound rows at
// completion but are released rather than frozen, so the next claim
// re-derives them against their (by then complete) dependencies.
type TabledCallSuspension struct {
	Key          TableKey
	NextTableRow int
	Provisional  bool
}

// tableEntry holds one tabled call's deduplicated answer rows plus the
// producer/waiter bookkeeping. A single query executes single-threaded, so
// in practice only one goroutine ever touches an entry at a time; the mutex
// exists because a TableRegistry may be shared across concurrently
// scheduled queries against the same schema epoch.
type tableEntry struct {
	mu        sync.Mutex
	rows      []Row
	seen      map[string]bool
	producing bool
	done      bool
}

func newTableEntry() *tableEntry {
	return &tableEntry{seen: make(map[string]bool)}
}

// append adds row to the table if its key is not already present, reporting
// whether it was new.
func (e *tableEntry) append(row Row) bool {
	k := rowKey(row)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seen[k] {
		return false
	}
	e.seen[k] = true
	e.rows = append(e.rows, row)
	return true
}

func (e *tableEntry) rowsFrom(start int) []Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	if start >= len(e.rows) {
		return nil
	}
	out := make([]Row, len(e.rows)-start)
	copy(out, e.rows[start:])
	return out
}

func (e *tableEntry) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}

func (e *tableEntry) isDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *tableEntry) markDone() {
	e.mu.Lock()
	e.producing = false
	e.done = true
	e.mu.Unlock()
}

// release ends production without freezing the entry: rows and the seen set
// stay, so the next Claim resumes from the accumulated answers rather than
// from scratch.
func (e *tableEntry) release() {
	e.mu.Lock()
	e.producing = false
	e.mu.Unlock()
}

// TableRegistry is the shared answer-table registry for tabled (recursive)
// function calls, keyed by (function_id, argument_values).
// One registry is shared by every tabled call within a query; a server may
// also share one registry across concurrently executing queries against the
// same schema epoch, since the table's contents depend only on the
// snapshot's data, not on the calling query.
type TableRegistry struct {
	mu      sync.Mutex
	entries map[TableKey]*tableEntry
}

// NewTableRegistry creates an empty registry.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{entries: make(map[TableKey]*tableEntry)}
}

func (r *TableRegistry) entry(key TableKey) *tableEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = newTableEntry()
		r.entries[key] = e
	}
	return e
}

// Claim returns key's table entry and reports whether the caller is the
// producer responsible for driving it to its fixpoint. A caller that is not
// the producer reads the table's accumulated rows instead of recomputing,
// and marks the producer frames above it provisional when the entry is
// still incomplete.
func (r *TableRegistry) Claim(key TableKey) (entry *tableEntry, isProducer bool) {
	e := r.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.producing || e.done {
		return e, false
	}
	e.producing = true
	return e, true
}

// rowKey renders a Row to a value-equality key suitable for table
// deduplication and call-key identity, since Row may hold *Concept,
// *core.Type, or raw scalars.
func rowKey(row Row) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = cellKey(v)
	}
	return fmt.Sprintf("%v", parts)
}

func cellKey(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00none"
	case *Concept:
		if t == nil {
			return "\x00none"
		}
		if t.IsAttribute() {
			return fmt.Sprintf("attr:%d:%x", t.Type.ID, t.Attr.Bytes())
		}
		return fmt.Sprintf("obj:%d:%d", t.Type.ID, t.Object)
	case *core.Type:
		if t == nil {
			return "\x00none"
		}
		return fmt.Sprintf("type:%d", t.ID)
	default:
		return fmt.Sprintf("%v", t)
	}
}
