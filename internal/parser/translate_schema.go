package parser

import (
	"fmt"
	"regexp"

	"gravix/internal/core"
	"gravix/internal/gravixerr"
)

// ApplySchema applies q's statements to m, in source order. define creates
// types and capabilities; undefine removes them; redefine replaces an
// existing capability's annotations (or a type's value type) by first
// retracting the prior declaration, since core.Manager's Add* calls always
// append rather than overwrite.
func ApplySchema(m *core.Manager, q *SchemaQuery) error {
	for _, stmt := range q.Stmts {
		if err := applySchemaStmt(m, q.Kind, stmt); err != nil {
			return gravixerr.Wrap(gravixerr.CodeParse, "apply schema statement", err)
		}
	}
	return nil
}

func applySchemaStmt(m *core.Manager, kind string, s *SchemaStmt) error {
	switch {
	case s.Entity != nil:
		return applyEntity(m, kind, s.Entity)
	case s.Relation != nil:
		return applyRelation(m, kind, s.Relation)
	case s.Attribute != nil:
		return applyAttribute(m, kind, s.Attribute)
	case s.Relates != nil:
		return applyRelates(m, kind, s.Relates)
	case s.Owns != nil:
		return applyOwns(m, kind, s.Owns)
	case s.Plays != nil:
		return applyPlays(m, kind, s.Plays)
	case s.Abstract != nil:
		return applyAbstract(m, kind, s.Abstract)
	default:
		return fmt.Errorf("parser: empty schema statement")
	}
}

func resolveSupertype(m *core.Manager, label *string, expect core.Kind) (*core.Type, error) {
	if label == nil {
		return nil, nil
	}
	t := m.GetType(*label)
	if t == nil {
		return nil, fmt.Errorf("parser: undefined supertype %q", *label)
	}
	if t.Kind != expect {
		return nil, fmt.Errorf("parser: supertype %q has kind %s, expected %s", *label, t.Kind, expect)
	}
	return t, nil
}

func requireType(m *core.Manager, label string) (*core.Type, error) {
	t := m.GetType(label)
	if t == nil {
		return nil, fmt.Errorf("parser: undefined type %q", label)
	}
	return t, nil
}

func applyEntity(m *core.Manager, kind string, d *EntityDecl) error {
	if kind == "undefine" {
		t, err := requireType(m, d.Label)
		if err != nil {
			return err
		}
		return m.DeleteType(t)
	}
	super, err := resolveSupertype(m, d.Super, core.KindEntity)
	if err != nil {
		return err
	}
	if kind == "redefine" {
		if t := m.GetType(d.Label); t != nil {
			if err := m.DeleteType(t); err != nil {
				return fmt.Errorf("parser: redefine entity %q: %w", d.Label, err)
			}
		}
	}
	_, err = m.CreateEntityType(d.Label, super)
	return err
}

func applyRelation(m *core.Manager, kind string, d *RelationDecl) error {
	if kind == "undefine" {
		t, err := requireType(m, d.Label)
		if err != nil {
			return err
		}
		return m.DeleteType(t)
	}
	super, err := resolveSupertype(m, d.Super, core.KindRelation)
	if err != nil {
		return err
	}
	if kind == "redefine" {
		if t := m.GetType(d.Label); t != nil {
			if err := m.DeleteType(t); err != nil {
				return fmt.Errorf("parser: redefine relation %q: %w", d.Label, err)
			}
		}
	}
	_, err = m.CreateRelationType(d.Label, super)
	return err
}

func valueType(v *ValueTypeSpec) (core.ValueType, error) {
	if v == nil {
		return core.ValueType{}, nil
	}
	kind, ok := map[string]core.ValueKind{
		"boolean":     core.ValueBoolean,
		"integer":     core.ValueInteger,
		"double":      core.ValueDouble,
		"decimal":     core.ValueDecimal,
		"string":      core.ValueString,
		"date":        core.ValueDate,
		"datetime":    core.ValueDateTime,
		"datetime-tz": core.ValueDateTimeTZ,
		"duration":    core.ValueDuration,
		"struct":      core.ValueStruct,
	}[v.Kind]
	if !ok {
		return core.ValueType{}, fmt.Errorf("parser: unknown value type %q", v.Kind)
	}
	vt := core.ValueType{Kind: kind}
	if kind == core.ValueStruct {
		if v.Struct == nil {
			return core.ValueType{}, fmt.Errorf("parser: struct value type requires a struct name")
		}
		vt.StructName = *v.Struct
	}
	return vt, nil
}

func applyAttribute(m *core.Manager, kind string, d *AttributeDecl) error {
	if kind == "undefine" {
		t, err := requireType(m, d.Label)
		if err != nil {
			return err
		}
		return m.DeleteType(t)
	}
	super, err := resolveSupertype(m, d.Super, core.KindAttribute)
	if err != nil {
		return err
	}
	vt, err := valueType(d.Value)
	if err != nil {
		return err
	}
	if kind == "redefine" {
		if t := m.GetType(d.Label); t != nil {
			if err := m.DeleteType(t); err != nil {
				return fmt.Errorf("parser: redefine attribute %q: %w", d.Label, err)
			}
		}
	}
	_, err = m.CreateAttributeType(d.Label, vt, super)
	return err
}

func applyRelates(m *core.Manager, kind string, d *RelatesDecl) error {
	relation, err := requireType(m, d.Relation)
	if err != nil {
		return err
	}
	if kind == "undefine" {
		role := m.GetRole(relation.Label, d.Role)
		if role == nil {
			return fmt.Errorf("parser: undefined role %q on relation %q", d.Role, d.Relation)
		}
		return m.DeleteType(role)
	}

	annotations, err := translateAnnotations(d.Annotations)
	if err != nil {
		return err
	}
	super, err := resolveRoleSuper(m, d.Super, relation)
	if err != nil {
		return err
	}

	role := m.GetRole(relation.Label, d.Role)
	if kind == "redefine" && role != nil {
		removeRelates(relation, role)
	} else if role == nil {
		role, err = m.CreateRole(relation, d.Role, super)
		if err != nil {
			return err
		}
	}
	return m.AddRelates(relation, role, annotations)
}

func resolveRoleSuper(m *core.Manager, label *string, relation *core.Type) (*core.Type, error) {
	if label == nil {
		return nil, nil
	}
	for r := relation.Supertype; r != nil; r = r.Supertype {
		if role := m.GetRole(r.Label, *label); role != nil {
			return role, nil
		}
	}
	return nil, fmt.Errorf("parser: undefined super-role %q reachable from relation %q", *label, relation.Label)
}

func removeRelates(relation *core.Type, role *core.Type) {
	out := relation.Relates[:0]
	for _, r := range relation.Relates {
		if r.Role != role {
			out = append(out, r)
		}
	}
	relation.Relates = out
}

func applyOwns(m *core.Manager, kind string, d *OwnsDecl) error {
	owner, err := requireType(m, d.Owner)
	if err != nil {
		return err
	}
	attribute, err := requireType(m, d.Attribute)
	if err != nil {
		return err
	}
	if kind == "undefine" {
		removeOwns(owner, attribute)
		return nil
	}

	annotations, err := translateAnnotations(d.Annotations)
	if err != nil {
		return err
	}
	ordering := core.Unordered
	if d.Ordered {
		ordering = core.Ordered
	}
	if kind == "redefine" {
		removeOwns(owner, attribute)
	}
	return m.AddOwns(owner, attribute, ordering, annotations)
}

func removeOwns(owner, attribute *core.Type) {
	out := owner.Owns[:0]
	for _, o := range owner.Owns {
		if o.Attribute != attribute {
			out = append(out, o)
		}
	}
	owner.Owns = out
}

func applyPlays(m *core.Manager, kind string, d *PlaysDecl) error {
	player, err := requireType(m, d.Player)
	if err != nil {
		return err
	}
	role := m.GetRole(d.Relation, d.Role)
	if role == nil {
		return fmt.Errorf("parser: undefined role %q on relation %q", d.Role, d.Relation)
	}
	if kind == "undefine" || kind == "redefine" {
		removePlays(player, role)
		if kind == "undefine" {
			return nil
		}
	}
	return m.AddPlays(player, role)
}

func removePlays(player, role *core.Type) {
	out := player.Plays[:0]
	for _, p := range player.Plays {
		if p.Role != role {
			out = append(out, p)
		}
	}
	player.Plays = out
}

// applyAbstract toggles the @abstract/@independent/@cascade marker named on
// a bare type declaration. cascade is accepted but carries no enforcement
// of its own yet.
func applyAbstract(m *core.Manager, kind string, d *AbstractDecl) error {
	t, err := requireType(m, d.Type)
	if err != nil {
		return err
	}
	set := kind != "undefine"
	switch d.Annotation {
	case "abstract":
		t.Abstract = set
	case "independent":
		if t.Kind != core.KindAttribute {
			return fmt.Errorf("parser: @independent applies only to attribute types, not %q", d.Type)
		}
		t.Independent = set
	}
	return nil
}

func translateAnnotations(raw []*Annotation) ([]core.Annotation, error) {
	out := make([]core.Annotation, 0, len(raw))
	for _, a := range raw {
		ann, err := translateAnnotation(a)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, nil
}

func translateAnnotation(a *Annotation) (core.Annotation, error) {
	switch a.Name {
	case "abstract":
		return core.Annotation{Category: core.AnnotationAbstract}, nil
	case "independent":
		return core.Annotation{Category: core.AnnotationIndependent}, nil
	case "distinct":
		return core.Annotation{Category: core.AnnotationDistinct}, nil
	case "unique":
		return core.Annotation{Category: core.AnnotationUnique}, nil
	case "key":
		return core.Annotation{Category: core.AnnotationKey}, nil
	case "cascade":
		return core.Annotation{Category: core.AnnotationCascade}, nil
	case "card":
		card, err := parseCardinality(a.Args)
		if err != nil {
			return core.Annotation{}, err
		}
		return core.Annotation{Category: core.AnnotationCardinality, Cardinality: card}, nil
	case "regex":
		if len(a.Args) != 1 {
			return core.Annotation{}, fmt.Errorf("parser: @regex takes exactly one pattern argument")
		}
		re, err := regexp.Compile(a.Args[0])
		if err != nil {
			return core.Annotation{}, fmt.Errorf("parser: invalid @regex pattern: %w", err)
		}
		return core.Annotation{Category: core.AnnotationRegex, Regex: re}, nil
	case "range":
		if len(a.Args) != 2 {
			return core.Annotation{}, fmt.Errorf("parser: @range takes exactly two bound arguments")
		}
		min, max := a.Args[0], a.Args[1]
		return core.Annotation{Category: core.AnnotationRange, RangeMin: &min, RangeMax: &max}, nil
	case "values":
		return core.Annotation{Category: core.AnnotationValues, Values: append([]string(nil), a.Args...)}, nil
	default:
		return core.Annotation{}, fmt.Errorf("parser: unknown annotation @%s", a.Name)
	}
}

func parseCardinality(args []string) (core.Cardinality, error) {
	if len(args) != 2 {
		return core.Cardinality{}, fmt.Errorf("parser: @card takes exactly two bound arguments")
	}
	var min uint64
	if _, err := fmt.Sscanf(args[0], "%d", &min); err != nil {
		return core.Cardinality{}, fmt.Errorf("parser: invalid @card min %q: %w", args[0], err)
	}
	if args[1] == "*" {
		return core.Cardinality{Min: min, NoMax: true}, nil
	}
	var max uint64
	if _, err := fmt.Sscanf(args[1], "%d", &max); err != nil {
		return core.Cardinality{}, fmt.Errorf("parser: invalid @card max %q: %w", args[1], err)
	}
	return core.Cardinality{Min: min, Max: max}, nil
}
