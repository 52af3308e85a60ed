package parser

// SchemaQuery is a `define`/`redefine`/`undefine` block: a keyword followed
// by one statement per schema change, each terminated by ";".
type SchemaQuery struct {
	Kind  string        `@("define"|"redefine"|"undefine")`
	Stmts []*SchemaStmt `@@*`
}

// SchemaStmt is one schema statement, disambiguated by its leading keyword
// (entity/relation/attribute) or, for capability statements, by the owning
// type's label appearing first.
type SchemaStmt struct {
	Entity    *EntityDecl    `(  "entity" @@`
	Relation  *RelationDecl  `|  "relation" @@`
	Attribute *AttributeDecl `|  "attribute" @@`
	Relates   *RelatesDecl   `|  @@`
	Owns      *OwnsDecl      `|  @@`
	Plays     *PlaysDecl     `|  @@`
	Abstract  *AbstractDecl  `|  @@ ) ";"`
}

type EntityDecl struct {
	Label string  `@Ident`
	Super *string `( "sub" @Ident )?`
}

type RelationDecl struct {
	Label string  `@Ident`
	Super *string `( "sub" @Ident )?`
}

type AttributeDecl struct {
	Label string         `@Ident`
	Super *string        `( "sub" @Ident )?`
	Value *ValueTypeSpec `( "value" @@ )?`
}

// ValueTypeSpec is a value kind name, with a struct name when Kind is
// "struct".
type ValueTypeSpec struct {
	Kind   string  `@Ident`
	Struct *string `( "(" @Ident ")" )?`
}

// RelatesDecl is `<relation> relates <role> [as <super-role>] [@annot...]`.
type RelatesDecl struct {
	Relation    string        `@Ident "relates"`
	Role        string        `@Ident`
	Super       *string       `( "as" @Ident )?`
	Annotations []*Annotation `@@*`
}

// OwnsDecl is `<owner> owns <attribute> [as <super-attr>] [@annot...]`.
type OwnsDecl struct {
	Owner       string        `@Ident "owns"`
	Attribute   string        `@Ident`
	Super       *string       `( "as" @Ident )?`
	Ordered     bool          `( @"[" "]" )?`
	Annotations []*Annotation `@@*`
}

// PlaysDecl is `<player> plays <relation>:<role>`.
type PlaysDecl struct {
	Player   string `@Ident "plays"`
	Relation string `@Ident ":"`
	Role     string `@Ident`
}

// AbstractDecl is `<type> @abstract;` (or @independent/@cascade).
type AbstractDecl struct {
	Type       string `@Ident "@"`
	Annotation string `@("abstract"|"independent"|"cascade")`
}

// Annotation is one `@name` or `@name(args...)` suffix on a capability
// statement. "*" is an argument in its own right so `@card(0, *)` parses.
type Annotation struct {
	Name string   `"@" @Ident`
	Args []string `( "(" @(Int|Ident|"*") ("," @(Int|Ident|"*"))* ")" )?`
}
