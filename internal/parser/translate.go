package parser

import (
	"fmt"

	"gravix/internal/gravixerr"
	"gravix/internal/ir"
)

// StageKind identifies which pipeline operation a PipelineStage performs.
type StageKind uint8

const (
	StageMatch StageKind = iota
	StageInsert
	StageDelete
	StageUpdate
	StagePut
	StageReduce
	StageSelect
	StageSort
	StageOffset
	StageLimit
	StageDistinct
	StageRequire
)

// ResolvedSortKey is one translated sort key: Descending defaults to false
// (the grammar's "asc" and an absent direction are equivalent).
type ResolvedSortKey struct {
	Var        *ir.Variable
	Descending bool
}

// PipelineStage is one translated stage. Block carries that stage's pattern
// constraints for Match/Insert/Delete/Update/Put (nil for modifier stages);
// the remaining fields are populated only for the stage Kind that uses them.
type PipelineStage struct {
	Kind StageKind

	Block       *ir.Block
	UpdateGuard []*ir.Variable

	ReduceReducers []ir.Reducer
	ReduceGroupBy  []*ir.Variable

	SelectVars  []*ir.Variable
	RequireVars []*ir.Variable
	SortKeys    []ResolvedSortKey
	Offset      int64
	Limit       int64
}

// Pipeline is a fully translated query: its function definitions (already
// registered and set on Functions), its ordered stages, and an optional
// terminal fetch projection.
type Pipeline struct {
	Functions *ir.FunctionIndex
	Stages    []*PipelineStage
	Fetch     *ir.FetchNode
}

// Translator turns a parsed AST into internal/ir trees. A Translator is not
// safe for concurrent use; build one per query.
type Translator struct {
	Functions *ir.FunctionIndex
	anonSeq   int
}

// NewTranslator creates a translator that registers and resolves function
// signatures against idx.
func NewTranslator(idx *ir.FunctionIndex) *Translator {
	return &Translator{Functions: idx}
}

func (t *Translator) anonName() string {
	t.anonSeq++
	return fmt.Sprintf("$_anon%d", t.anonSeq)
}

// TranslateQuery registers every function signature, translates each
// function body, and translates the main pipeline, in that order — matching
// ir.FunctionIndex's requirement that signatures exist before any body
// referencing them (including the main pipeline's own calls) is translated.
func (t *Translator) TranslateQuery(q *Query) (*Pipeline, error) {
	for _, fd := range q.Functions {
		if err := t.registerSignature(fd); err != nil {
			return nil, err
		}
	}
	for _, fd := range q.Functions {
		def, err := t.translateFunctionBody(fd)
		if err != nil {
			return nil, err
		}
		if err := t.Functions.SetBody(def); err != nil {
			return nil, gravixerr.Wrap(gravixerr.CodeParse, "set function body", err)
		}
	}

	stages, err := t.translateStages(nil, q.Stages)
	if err != nil {
		return nil, err
	}

	var fetch *ir.FetchNode
	if q.Fetch != nil {
		scope := lastBlock(stages, nil)
		fetch, err = t.translateFetchBody(scope, q.Fetch)
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{Functions: t.Functions, Stages: stages, Fetch: fetch}, nil
}

func lastBlock(stages []*PipelineStage, fallback *ir.Block) *ir.Block {
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i].Block != nil {
			return stages[i].Block
		}
	}
	return fallback
}

func argCategory(a *ArgSpec) (ir.VariableCategory, error) {
	switch a.Category {
	case "thing":
		if a.List {
			return ir.CategoryThingList, nil
		}
		return ir.CategoryThing, nil
	case "type":
		return ir.CategoryType, nil
	case "attribute":
		if a.List {
			return ir.CategoryAttributeList, nil
		}
		return ir.CategoryAttribute, nil
	case "value":
		if a.List {
			return ir.CategoryValueList, nil
		}
		return ir.CategoryValue, nil
	default:
		return ir.CategoryUnset, gravixerr.New(gravixerr.CodeParse, fmt.Sprintf("parser: unknown argument category %q", a.Category))
	}
}

func returnKind(s string) ir.ReturnKind {
	switch s {
	case "single":
		return ir.ReturnSingle
	case "check":
		return ir.ReturnCheck
	case "reduce":
		return ir.ReturnReduce
	default:
		return ir.ReturnStream
	}
}

func (t *Translator) registerSignature(fd *FunctionDef) error {
	args := make([]ir.ArgSpec, len(fd.Args))
	for i, a := range fd.Args {
		cat, err := argCategory(a)
		if err != nil {
			return err
		}
		args[i] = ir.ArgSpec{Name: a.Name, Category: cat}
	}
	sig := ir.FunctionSignature{Name: fd.Name, Args: args, Return: returnKind(fd.Returns)}
	if err := t.Functions.RegisterSignature(sig); err != nil {
		return gravixerr.Wrap(gravixerr.CodeParse, "register function signature", err)
	}
	return nil
}

func (t *Translator) translateFunctionBody(fd *FunctionDef) (*ir.FunctionDef, error) {
	sig, ok := t.Functions.Signature(fd.Name)
	if !ok {
		return nil, gravixerr.New(gravixerr.CodeParse, fmt.Sprintf("parser: function %q has no registered signature", fd.Name))
	}

	root := ir.NewBlock(nil)
	for _, a := range sig.Args {
		v := root.Resolve(a.Name)
		if err := v.Narrow(a.Category, "function argument", ""); err != nil {
			return nil, gravixerr.Wrap(gravixerr.CodeVariableCategory, "narrow function argument category", err)
		}
	}

	stages, err := t.translateStages(root, fd.Body)
	if err != nil {
		return nil, err
	}
	pipeline := make([]*ir.Block, 0, len(stages))
	for _, s := range stages {
		if s.Block != nil {
			pipeline = append(pipeline, s.Block)
		}
	}

	scope := lastBlock(stages, root)
	ret, err := t.translateReturn(scope, fd.Return)
	if err != nil {
		return nil, err
	}

	return &ir.FunctionDef{Signature: *sig, Pipeline: pipeline, Return: ret}, nil
}

// translateStages threads a linear chain of blocks: each stage's block is
// parented on the previous stage's, so Block.Resolve finds variables bound
// earlier in the pipeline, and modifier stages (reduce/select/sort/offset/
// limit/distinct) that need no constraints of their own still get a scope to
// resolve variable references against.
func (t *Translator) translateStages(seed *ir.Block, raw []*Stage) ([]*PipelineStage, error) {
	scope := seed
	stages := make([]*PipelineStage, 0, len(raw))
	for _, s := range raw {
		stage, next, err := t.translateStage(scope, s)
		if err != nil {
			return nil, err
		}
		scope = next
		stages = append(stages, stage)
	}
	return stages, nil
}

func (t *Translator) translateStage(scope *ir.Block, s *Stage) (*PipelineStage, *ir.Block, error) {
	switch {
	case s.Match != nil:
		b, err := t.translateThingStmts(scope, s.Match)
		return &PipelineStage{Kind: StageMatch, Block: b}, b, err
	case s.Insert != nil:
		b, err := t.translateThingStmts(scope, s.Insert)
		return &PipelineStage{Kind: StageInsert, Block: b}, b, err
	case s.Delete != nil:
		b, err := t.translateThingStmts(scope, s.Delete)
		return &PipelineStage{Kind: StageDelete, Block: b}, b, err
	case s.Put != nil:
		b, err := t.translateThingStmts(scope, s.Put)
		return &PipelineStage{Kind: StagePut, Block: b}, b, err
	case s.Update != nil:
		b := ir.NewBlock(scope)
		if err := t.translatePatterns(b, b, s.Update.Patterns); err != nil {
			return nil, nil, err
		}
		guard := make([]*ir.Variable, len(s.Update.Guard))
		for i, name := range s.Update.Guard {
			guard[i] = b.Resolve(name)
		}
		return &PipelineStage{Kind: StageUpdate, Block: b, UpdateGuard: guard}, b, nil
	case s.Reduce != nil:
		b := ir.NewBlock(scope)
		reducers := make([]ir.Reducer, len(s.Reduce.Specs))
		for i, spec := range s.Reduce.Specs {
			op, err := reducerOp(spec.Op)
			if err != nil {
				return nil, nil, err
			}
			reducers[i] = ir.Reducer{Op: op, Target: b.Resolve(spec.Var)}
		}
		groupBy := make([]*ir.Variable, len(s.Reduce.GroupBy))
		for i, name := range s.Reduce.GroupBy {
			groupBy[i] = b.Resolve(name)
		}
		return &PipelineStage{Kind: StageReduce, ReduceReducers: reducers, ReduceGroupBy: groupBy}, b, nil
	case s.Select != nil:
		b := ir.NewBlock(scope)
		vars := make([]*ir.Variable, len(s.Select.Vars))
		for i, name := range s.Select.Vars {
			vars[i] = b.Resolve(name)
		}
		return &PipelineStage{Kind: StageSelect, SelectVars: vars}, b, nil
	case s.Sort != nil:
		b := ir.NewBlock(scope)
		keys := make([]ResolvedSortKey, len(s.Sort.Keys))
		for i, k := range s.Sort.Keys {
			keys[i] = ResolvedSortKey{Var: b.Resolve(k.Var), Descending: k.Dir != nil && *k.Dir == "desc"}
		}
		return &PipelineStage{Kind: StageSort, SortKeys: keys}, b, nil
	case s.Offset != nil:
		b := ir.NewBlock(scope)
		return &PipelineStage{Kind: StageOffset, Offset: s.Offset.N}, b, nil
	case s.Limit != nil:
		b := ir.NewBlock(scope)
		return &PipelineStage{Kind: StageLimit, Limit: s.Limit.N}, b, nil
	case s.Distinct != nil:
		b := ir.NewBlock(scope)
		return &PipelineStage{Kind: StageDistinct}, b, nil
	case s.Require != nil:
		b := ir.NewBlock(scope)
		vars := make([]*ir.Variable, len(s.Require.Vars))
		for i, name := range s.Require.Vars {
			vars[i] = b.Resolve(name)
		}
		return &PipelineStage{Kind: StageRequire, RequireVars: vars}, b, nil
	default:
		return nil, nil, gravixerr.New(gravixerr.CodeParse, "parser: empty pipeline stage")
	}
}

func (t *Translator) translateThingStmts(scope *ir.Block, ts *ThingStmts) (*ir.Block, error) {
	b := ir.NewBlock(scope)
	if err := t.translatePatterns(b, b, ts.Patterns); err != nil {
		return nil, err
	}
	return b, nil
}

func reducerOp(op string) (ir.ReducerOp, error) {
	switch op {
	case "count":
		return ir.ReduceCount, nil
	case "sum":
		return ir.ReduceSum, nil
	case "max":
		return ir.ReduceMax, nil
	case "min":
		return ir.ReduceMin, nil
	case "mean":
		return ir.ReduceMean, nil
	case "median":
		return ir.ReduceMedian, nil
	case "list":
		return ir.ReduceList, nil
	default:
		return 0, gravixerr.New(gravixerr.CodeParse, fmt.Sprintf("parser: unknown reducer %q", op))
	}
}

func (t *Translator) translateReturn(scope *ir.Block, rc *ReturnClause) (ir.ReturnStatement, error) {
	if rc.Check {
		return ir.ReturnStatement{Kind: ir.ReturnCheck}, nil
	}
	if len(rc.Reducers) > 0 {
		reducers := make([]ir.Reducer, len(rc.Reducers))
		for i, spec := range rc.Reducers {
			op, err := reducerOp(spec.Op)
			if err != nil {
				return ir.ReturnStatement{}, err
			}
			reducers[i] = ir.Reducer{Op: op, Target: scope.Resolve(spec.Var)}
		}
		return ir.ReturnStatement{Kind: ir.ReturnReduce, Reducers: reducers}, nil
	}
	vars := make([]*ir.Variable, len(rc.Vars))
	for i, name := range rc.Vars {
		vars[i] = scope.Resolve(name)
	}
	if rc.Selector != nil {
		sel := ir.SelectorFirst
		if *rc.Selector == "last" {
			sel = ir.SelectorLast
		}
		return ir.ReturnStatement{Kind: ir.ReturnSingle, Vars: vars, Selector: sel}, nil
	}
	return ir.ReturnStatement{Kind: ir.ReturnStream, Vars: vars}, nil
}

// translatePatterns appends constraints/nested patterns to sink, resolving
// variable references against scope. sink and scope are the same block for
// a stage's own top-level patterns; nested constructs pass a fresh child
// block as both (see translatePattern's Disjunction/Negation/Optional arms).
func (t *Translator) translatePatterns(sink, scope *ir.Block, patterns []*Pattern) error {
	for _, p := range patterns {
		if err := t.translatePattern(sink, scope, p); err != nil {
			return err
		}
	}
	return nil
}

// translatePatternList builds a nested block whose variables are private to
// it (negation: inner names are invisible outside).
func (t *Translator) translatePatternList(scope *ir.Block, pl *PatternList) (*ir.Block, error) {
	if pl == nil {
		return ir.NewBlock(scope), nil
	}
	b := ir.NewBlock(scope)
	if err := t.translatePatterns(b, b, pl.Patterns); err != nil {
		return nil, err
	}
	return b, nil
}

// translateSharedPatternList builds a nested block whose constraints live in
// the child but whose variable names declare into scope: disjunction
// branches and try blocks bind variables the surrounding pattern (and later
// stages) can see, with rows that miss them carrying None.
func (t *Translator) translateSharedPatternList(scope *ir.Block, pl *PatternList) (*ir.Block, error) {
	b := ir.NewBlock(scope)
	if pl == nil {
		return b, nil
	}
	if err := t.translatePatterns(b, scope, pl.Patterns); err != nil {
		return nil, err
	}
	return b, nil
}

func (t *Translator) translatePattern(sink, scope *ir.Block, p *Pattern) error {
	switch {
	case p.Disjunction != nil:
		branches := make([]*ir.Block, len(p.Disjunction.Branches))
		for i, pl := range p.Disjunction.Branches {
			b, err := t.translateSharedPatternList(scope, pl)
			if err != nil {
				return err
			}
			branches[i] = b
		}
		sink.AddNested(&ir.Disjunction{Branches: branches})
		return nil
	case p.Negation != nil:
		inner, err := t.translatePatternList(scope, p.Negation.Inner)
		if err != nil {
			return err
		}
		sink.AddNested(&ir.Negation{Inner: inner})
		return nil
	case p.Optional != nil:
		inner, err := t.translateSharedPatternList(scope, p.Optional.Inner)
		if err != nil {
			return err
		}
		sink.AddNested(&ir.Optional{Inner: inner})
		return nil
	case p.Isa != nil:
		thing := scope.Resolve(p.Isa.Thing)
		typ, err := t.resolveVarOrLabel(sink, scope, p.Isa.Type)
		if err != nil {
			return err
		}
		sink.AddConstraint(ir.Isa{Thing: thing, Type: typ, Transitive: !p.Isa.Bang})
		return nil
	case p.Sub != nil:
		sub := scope.Resolve(p.Sub.Subtype)
		super, err := t.resolveVarOrLabel(sink, scope, p.Sub.Supertype)
		if err != nil {
			return err
		}
		sink.AddConstraint(ir.Sub{Subtype: sub, Supertype: super, Exact: p.Sub.Bang})
		return nil
	case p.Has != nil:
		owner := scope.Resolve(p.Has.Owner)
		attr, err := t.resolveValueLit(sink, scope, p.Has.Value)
		if err != nil {
			return err
		}
		typeVar := scope.Resolve(t.anonName())
		sink.AddConstraint(ir.Label{Var: typeVar, Label: p.Has.Label})
		sink.AddConstraint(ir.Isa{Thing: attr, Type: typeVar, Transitive: true})
		sink.AddConstraint(ir.Has{Owner: owner, Attribute: attr})
		return nil
	case p.Links != nil:
		rel := scope.Resolve(p.Links.Relation)
		for _, ra := range p.Links.Roles {
			player := scope.Resolve(ra.Player)
			roleVar := scope.Resolve(t.anonName())
			sink.AddConstraint(ir.RoleName{Var: roleVar, Name: ra.Role})
			sink.AddConstraint(ir.Links{Relation: rel, Player: player, Role: roleVar})
		}
		return nil
	case p.Assign != nil:
		return t.translateAssign(sink, scope, p.Assign)
	case p.Compare != nil:
		left := scope.Resolve(p.Compare.Left)
		right, err := t.resolveValueLit(sink, scope, p.Compare.Right)
		if err != nil {
			return err
		}
		op, err := comparisonOp(p.Compare.Op)
		if err != nil {
			return err
		}
		sink.AddConstraint(ir.Comparison{Left: left, Right: right, Op: op})
		return nil
	case p.Is != nil:
		sink.AddConstraint(ir.Is{Left: scope.Resolve(p.Is.Left), Right: scope.Resolve(p.Is.Right)})
		return nil
	default:
		return gravixerr.New(gravixerr.CodeParse, "parser: empty pattern")
	}
}

func comparisonOp(op string) (ir.ComparisonOp, error) {
	switch op {
	case "==":
		return ir.CompareEQ, nil
	case "!=":
		return ir.CompareNE, nil
	case "<":
		return ir.CompareLT, nil
	case "<=":
		return ir.CompareLE, nil
	case ">":
		return ir.CompareGT, nil
	case ">=":
		return ir.CompareGE, nil
	case "contains":
		return ir.CompareContains, nil
	case "like":
		return ir.CompareLike, nil
	default:
		return 0, gravixerr.New(gravixerr.CodeParse, fmt.Sprintf("parser: unknown comparison operator %q", op))
	}
}

// resolveVarOrLabel resolves a bound variable reference, or desugars a bare
// schema-type label into a fresh variable fixed by a Label constraint.
func (t *Translator) resolveVarOrLabel(sink, scope *ir.Block, vl *VarOrLabel) (*ir.Variable, error) {
	if vl.Var != nil {
		return scope.Resolve(*vl.Var), nil
	}
	v := scope.Resolve(t.anonName())
	sink.AddConstraint(ir.Label{Var: v, Label: *vl.Label})
	return v, nil
}

// resolveValueLit resolves a bound variable reference, or desugars a literal
// constant into a fresh variable fixed by an ExpressionBinding — Has and
// Comparison both only carry variable endpoints, never raw constants.
func (t *Translator) resolveValueLit(sink, scope *ir.Block, vl *ValueLit) (*ir.Variable, error) {
	if vl.Var != nil {
		return scope.Resolve(*vl.Var), nil
	}
	var constant any
	switch {
	case vl.Str != nil:
		constant = *vl.Str
	case vl.Float != nil:
		constant = *vl.Float
	case vl.Int != nil:
		constant = *vl.Int
	case vl.Bool != nil:
		constant = *vl.Bool == "true"
	default:
		return nil, gravixerr.New(gravixerr.CodeParse, "parser: empty value literal")
	}
	v := scope.Resolve(t.anonName())
	sink.AddConstraint(ir.ExpressionBinding{Var: v, Expr: ir.Leaf(nil, constant)})
	return v, nil
}

// bareCall reports whether e is nothing but a single function/builtin call
// with no surrounding arithmetic, the shape AssignStmt needs in order to
// become a FunctionCallBinding rather than an ExpressionBinding.
func bareCall(e *Expr) *CallExpr {
	if e == nil || len(e.Ops) != 0 || e.Left == nil || len(e.Left.Ops) != 0 {
		return nil
	}
	f := e.Left.Left
	if f == nil || f.Negate || f.Value == nil || f.Value.Index != nil {
		return nil
	}
	return f.Value.Base.Call
}

// translateAssign disambiguates `$a[, $b...] = <expr>` using the callee's
// registered return kind (when the right-hand side is a bare call): a
// ReturnStream function becomes a FunctionCallBinding producing a new row
// per output tuple; every other shape (including calls to unregistered
// built-ins) becomes a single ExpressionBinding, with multiple assignment
// targets being illegal there.
func (t *Translator) translateAssign(sink, scope *ir.Block, a *AssignStmt) error {
	if call := bareCall(a.Expr); call != nil {
		if sig, ok := t.Functions.Signature(call.Name); ok && sig.Return == ir.ReturnStream {
			args, err := t.resolveCallArgs(scope, call.Args)
			if err != nil {
				return err
			}
			assigned := make([]*ir.Variable, len(a.Vars))
			for i, name := range a.Vars {
				assigned[i] = scope.Resolve(name)
			}
			sink.AddConstraint(ir.FunctionCallBinding{Function: call.Name, Args: args, Assigned: assigned})
			return nil
		}
	}
	if len(a.Vars) != 1 {
		return gravixerr.New(gravixerr.CodeParse, "parser: multi-variable assignment requires a stream-returning function call")
	}
	expr, err := t.translateExpr(scope, a.Expr)
	if err != nil {
		return err
	}
	sink.AddConstraint(ir.ExpressionBinding{Var: scope.Resolve(a.Vars[0]), Expr: expr})
	return nil
}

// resolveCallArgs resolves each argument expression of a FunctionCallBinding
// call, which (unlike a general expression call) only accepts bare
// variables — matching ir.FunctionCallBinding.Args' []*Variable shape.
func (t *Translator) resolveCallArgs(scope *ir.Block, args []*Expr) ([]*ir.Variable, error) {
	out := make([]*ir.Variable, len(args))
	for i, arg := range args {
		f := bareVarExpr(arg)
		if f == "" {
			return nil, gravixerr.New(gravixerr.CodeParse, "parser: stream function call arguments must be bare variables")
		}
		out[i] = scope.Resolve(f)
	}
	return out, nil
}

// bareVarExpr returns the variable name if e is nothing but a variable leaf,
// or "" otherwise.
func bareVarExpr(e *Expr) string {
	if e == nil || len(e.Ops) != 0 || e.Left == nil || len(e.Left.Ops) != 0 {
		return ""
	}
	f := e.Left.Left
	if f == nil || f.Negate || f.Value == nil || f.Value.Index != nil || f.Value.Base == nil {
		return ""
	}
	if f.Value.Base.Var == nil {
		return ""
	}
	return *f.Value.Base.Var
}

func (t *Translator) translateExpr(scope *ir.Block, e *Expr) (*ir.Expression, error) {
	left, err := t.translateTerm(scope, e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := t.translateTerm(scope, op.Right)
		if err != nil {
			return nil, err
		}
		code := ir.OpAdd
		if op.Op == "-" {
			code = ir.OpSub
		}
		left = ir.Node(code, "", left, right)
	}
	return left, nil
}

func (t *Translator) translateTerm(scope *ir.Block, term *Term) (*ir.Expression, error) {
	left, err := t.translateFactor(scope, term.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range term.Ops {
		right, err := t.translateFactor(scope, op.Right)
		if err != nil {
			return nil, err
		}
		var code ir.ExpressionOp
		switch op.Op {
		case "*":
			code = ir.OpMul
		case "/":
			code = ir.OpDiv
		default:
			code = ir.OpMod
		}
		left = ir.Node(code, "", left, right)
	}
	return left, nil
}

func (t *Translator) translateFactor(scope *ir.Block, f *Factor) (*ir.Expression, error) {
	val, err := t.translatePostfix(scope, f.Value)
	if err != nil {
		return nil, err
	}
	if f.Negate {
		val = ir.Node(ir.OpNeg, "", val)
	}
	return val, nil
}

func (t *Translator) translatePostfix(scope *ir.Block, p *PostfixExpr) (*ir.Expression, error) {
	base, err := t.translatePrimary(scope, p.Base)
	if err != nil {
		return nil, err
	}
	if p.Index == nil {
		return base, nil
	}
	start, err := t.translateExpr(scope, p.Index.Start)
	if err != nil {
		return nil, err
	}
	if p.Index.End == nil {
		return ir.Node(ir.OpListIndex, "", base, start), nil
	}
	end, err := t.translateExpr(scope, p.Index.End)
	if err != nil {
		return nil, err
	}
	return ir.Node(ir.OpListRange, "", base, start, end), nil
}

func (t *Translator) translatePrimary(scope *ir.Block, p *Primary) (*ir.Expression, error) {
	switch {
	case p.Call != nil:
		children := make([]*ir.Expression, len(p.Call.Args))
		for i, a := range p.Call.Args {
			c, err := t.translateExpr(scope, a)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		op := ir.OpBuiltinCall
		if _, ok := t.Functions.Signature(p.Call.Name); ok {
			op = ir.OpFunctionCall
		}
		return ir.Node(op, p.Call.Name, children...), nil
	case p.Var != nil:
		return ir.Leaf(scope.Resolve(*p.Var), nil), nil
	case p.Str != nil:
		return ir.Leaf(nil, *p.Str), nil
	case p.Float != nil:
		return ir.Leaf(nil, *p.Float), nil
	case p.Int != nil:
		return ir.Leaf(nil, *p.Int), nil
	case p.Bool != nil:
		return ir.Leaf(nil, *p.Bool == "true"), nil
	case p.Paren != nil:
		return t.translateExpr(scope, p.Paren)
	default:
		return nil, gravixerr.New(gravixerr.CodeParse, "parser: empty expression primary")
	}
}

func (t *Translator) translateFetchBody(scope *ir.Block, fb *FetchBody) (*ir.FetchNode, error) {
	entries, err := t.translateFetchEntries(scope, fb.Entries)
	if err != nil {
		return nil, err
	}
	return &ir.FetchNode{Entries: entries}, nil
}

func (t *Translator) translateFetchEntries(scope *ir.Block, entries []*FetchEntry) (map[string]*ir.FetchNode, error) {
	out := make(map[string]*ir.FetchNode, len(entries))
	for _, e := range entries {
		node, err := t.translateFetchValue(scope, e.Value)
		if err != nil {
			return nil, err
		}
		out[e.Key] = node
	}
	return out, nil
}

func (t *Translator) translateFetchValue(scope *ir.Block, v *FetchValue) (*ir.FetchNode, error) {
	switch {
	case v.Attr != nil:
		return &ir.FetchNode{Var: scope.Resolve(v.Attr.Var), AttrLabel: v.Attr.Label}, nil
	case v.Call != nil:
		args := make([]*ir.Variable, len(v.Call.Args))
		for i, a := range v.Call.Args {
			name := bareVarExpr(a)
			if name == "" {
				return nil, gravixerr.New(gravixerr.CodeParse, "parser: fetch function call arguments must be bare variables")
			}
			args[i] = scope.Resolve(name)
		}
		return &ir.FetchNode{Function: v.Call.Name, Args: args}, nil
	case v.Var != nil:
		return &ir.FetchNode{Var: scope.Resolve(*v.Var)}, nil
	case v.Object != nil:
		entries, err := t.translateFetchEntries(scope, v.Object.Entries)
		if err != nil {
			return nil, err
		}
		return &ir.FetchNode{Entries: entries}, nil
	case v.List != nil:
		return t.translateListFetch(scope, v.List)
	default:
		return nil, gravixerr.New(gravixerr.CodeParse, "parser: empty fetch value")
	}
}

func (t *Translator) translateListFetch(scope *ir.Block, lf *ListFetch) (*ir.FetchNode, error) {
	if lf.Attr != nil {
		return &ir.FetchNode{Var: scope.Resolve(lf.Attr.Var), AttrLabel: lf.Attr.Label, AsList: true}, nil
	}
	sub, err := t.translatePatternList(scope, lf.SubMatch)
	if err != nil {
		return nil, err
	}
	subFetch, err := t.translateFetchEntries(sub, lf.SubFetch)
	if err != nil {
		return nil, err
	}
	return &ir.FetchNode{SubPipeline: sub, SubFetch: subFetch, AsList: true}, nil
}
