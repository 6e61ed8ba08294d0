package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/format"

	"github.com/semforge/semforge/internal/shape"
)

// SchemaRoot is the top-level CUE struct under which schemas are declared:
//
//	schema: Person: {
//	    name:       string & strings.MinRunes(1)
//	    age:        int & >=0 & <150
//	    addresses?: [...schema.Address]
//	}
const SchemaRoot = "schema"

// CueSchema adapts one CUE schema declaration to the Source interface.
type CueSchema struct {
	name string
	val  cue.Value
}

// NewCueSchema wraps a CUE value as a schema source.
func NewCueSchema(name string, v cue.Value) *CueSchema {
	return &CueSchema{name: name, val: v}
}

// LoadSchemas extracts every schema declared under the schema root of a
// built CUE value, in declaration order.
func LoadSchemas(v cue.Value) ([]*CueSchema, error) {
	if err := v.Err(); err != nil {
		return nil, &SchemaError{
			Code:    ErrBadSchemaRef,
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}

	root := v.LookupPath(cue.ParsePath(SchemaRoot))
	if !root.Exists() {
		return nil, &SchemaError{
			Code:    ErrBadSchemaRef,
			Message: fmt.Sprintf("no %q declarations found", SchemaRoot),
			Pos:     v.Pos(),
		}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, &SchemaError{
			Code:    ErrBadSchemaRef,
			Message: err.Error(),
			Pos:     root.Pos(),
		}
	}

	var schemas []*CueSchema
	for iter.Next() {
		schemas = append(schemas, NewCueSchema(iter.Label(), iter.Value()))
	}
	return schemas, nil
}

// Name implements Source.
func (s *CueSchema) Name() string { return s.name }

// Fields implements Source. Fields are yielded in declaration order;
// optional fields are included.
func (s *CueSchema) Fields() ([]FieldDef, error) {
	iter, err := s.val.Fields(cue.Optional(true))
	if err != nil {
		return nil, &SchemaError{
			Schema:  s.name,
			Code:    ErrUnclassifiableType,
			Message: err.Error(),
			Pos:     s.val.Pos(),
		}
	}

	var defs []FieldDef
	for iter.Next() {
		def, err := s.fieldDef(iter.Label(), iter.Value(), iter.IsOptional())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (s *CueSchema) fieldDef(name string, v cue.Value, optional bool) (FieldDef, error) {
	def := FieldDef{Name: name, Optional: optional}

	typ, constraints, err := s.classify(name, v)
	if err != nil {
		return def, err
	}

	// A @semforge(<datatype>) attribute refines the datatype tag of a
	// primitive field, e.g. `joined: string @semforge(dateTime)`.
	if tag, ok, attrErr := semforgeAttribute(v); attrErr != nil {
		return def, &SchemaError{
			Schema:  s.name,
			Field:   name,
			Code:    ErrBadAttribute,
			Message: attrErr.Error(),
			Pos:     v.Pos(),
		}
	} else if ok {
		refined, refineErr := refineDatatype(typ, tag)
		if refineErr != nil {
			return def, &SchemaError{
				Schema:  s.name,
				Field:   name,
				Code:    ErrBadAttribute,
				Message: refineErr.Error(),
				Pos:     v.Pos(),
			}
		}
		typ = refined
	}

	def.Type = typ
	def.Constraints = constraints
	return def, nil
}

// classify decomposes a field's CUE value into an adapter type definition
// plus its declared constraints.
func (s *CueSchema) classify(field string, v cue.Value) (TypeDef, []ConstraintDef, error) {
	// Schema references (schema.Address, schema.Node for self-recursion)
	// always become nested references; cycles are broken here, not inlined.
	if ref, ok := referencedSchema(v); ok {
		return TypeDef{Kind: TypeSchema, Schema: ref}, nil, nil
	}

	// Disjunctions: all-concrete scalars are an enumeration, all-types are
	// a union. Anything mixed is unclassifiable.
	if op, args := v.Expr(); op == cue.OrOp {
		return s.classifyDisjunction(field, v, args)
	}

	k := v.IncompleteKind()
	switch k {
	case cue.ListKind:
		elem := v.LookupPath(cue.MakePath(cue.AnyIndex))
		if !elem.Exists() {
			return TypeDef{}, nil, s.typeError(field, v, "list has no element type")
		}
		elemType, elemConstraints, err := s.classify(field, elem)
		if err != nil {
			return TypeDef{}, nil, err
		}
		if len(elemConstraints) > 0 {
			// Element-level constraints apply per value; they ride on the
			// field since every present value is an element.
			return TypeDef{Kind: TypeList, Elem: &elemType}, elemConstraints, nil
		}
		return TypeDef{Kind: TypeList, Elem: &elemType}, nil, nil

	case cue.StructKind:
		// Anonymous nested struct: synthesize a schema named after the
		// parent and field so it gets its own shape.
		nested := NewCueSchema(s.name+capitalize(field), v)
		return TypeDef{Kind: TypeSchema, Schema: nested}, nil, nil

	case cue.StringKind:
		constraints, err := s.extractConstraints(field, v)
		return TypeDef{Kind: TypeString}, constraints, err

	case cue.IntKind:
		constraints, err := s.extractConstraints(field, v)
		return TypeDef{Kind: TypeInteger}, constraints, err

	case cue.FloatKind, cue.NumberKind:
		constraints, err := s.extractConstraints(field, v)
		return TypeDef{Kind: TypeDecimal}, constraints, err

	case cue.BoolKind:
		constraints, err := s.extractConstraints(field, v)
		return TypeDef{Kind: TypeBoolean}, constraints, err

	default:
		return TypeDef{}, nil, s.typeError(field, v, fmt.Sprintf("unsupported type kind: %v", k))
	}
}

func (s *CueSchema) classifyDisjunction(field string, v cue.Value, args []cue.Value) (TypeDef, []ConstraintDef, error) {
	allConcrete := true
	for _, arg := range args {
		if !arg.IsConcrete() {
			allConcrete = false
			break
		}
	}

	if allConcrete {
		// Enumeration of concrete scalars.
		var values []string
		base := TypeDef{}
		for i, arg := range args {
			lex, kind, err := concreteLexical(arg)
			if err != nil {
				return TypeDef{}, nil, s.typeError(field, arg, err.Error())
			}
			if i == 0 {
				base.Kind = kind
			} else if base.Kind != kind {
				return TypeDef{}, nil, s.typeError(field, arg, "enumeration mixes value kinds")
			}
			values = append(values, lex)
		}
		return base, []ConstraintDef{{Kind: shape.ConstraintEnum, Values: values}}, nil
	}

	// Union of type members.
	var members []TypeDef
	for _, arg := range args {
		member, memberConstraints, err := s.classify(field, arg)
		if err != nil {
			return TypeDef{}, nil, err
		}
		if len(memberConstraints) > 0 || member.Kind == TypeList || member.Kind == TypeUnion {
			return TypeDef{}, nil, s.typeError(field, arg, "union members must be bare types or schema references")
		}
		members = append(members, member)
	}
	return TypeDef{Kind: TypeUnion, Members: members}, nil, nil
}

// extractConstraints folds a (possibly conjunctive) scalar expression into
// constraint definitions. The bare type operand is skipped; every other
// operand must reduce to a known constraint or is carried as an opaque
// predicate.
func (s *CueSchema) extractConstraints(field string, v cue.Value) ([]ConstraintDef, error) {
	op, args := v.Expr()

	var operands []cue.Value
	switch op {
	case cue.NoOp:
		return nil, nil
	case cue.AndOp:
		operands = args
	default:
		operands = []cue.Value{v}
	}

	var constraints []ConstraintDef
	for _, operand := range operands {
		def, ok, err := s.operandConstraint(field, operand)
		if err != nil {
			return nil, err
		}
		if ok {
			constraints = append(constraints, def)
		}
	}
	return constraints, nil
}

// operandConstraint maps one conjunction operand to a constraint definition.
// Returns ok=false for the bare type operand.
func (s *CueSchema) operandConstraint(field string, v cue.Value) (ConstraintDef, bool, error) {
	op, args := v.Expr()

	switch op {
	case cue.NoOp:
		if !v.IsConcrete() {
			// Bare type operand (string, int, number); no constraint.
			return ConstraintDef{}, false, nil
		}
		// A concrete conjunct pins the field to a single value.
		lex, _, err := concreteLexical(v)
		if err != nil {
			return ConstraintDef{}, false, s.typeError(field, v, err.Error())
		}
		return ConstraintDef{Kind: shape.ConstraintEnum, Values: []string{lex}}, true, nil

	case cue.RegexMatchOp:
		pattern, err := args[0].String()
		if err != nil {
			return ConstraintDef{}, false, s.typeError(field, v, "pattern operand is not a string")
		}
		return ConstraintDef{Kind: shape.ConstraintPattern, Value: pattern}, true, nil

	case cue.GreaterThanEqualOp:
		return s.boundConstraint(field, shape.ConstraintMinInclusive, v, args)
	case cue.GreaterThanOp:
		return s.boundConstraint(field, shape.ConstraintMinExclusive, v, args)
	case cue.LessThanEqualOp:
		return s.boundConstraint(field, shape.ConstraintMaxInclusive, v, args)
	case cue.LessThanOp:
		return s.boundConstraint(field, shape.ConstraintMaxExclusive, v, args)

	case cue.CallOp:
		callee := formatValue(args[0])
		switch callee {
		case "strings.MinRunes":
			return s.lengthConstraint(field, shape.ConstraintMinLength, v, args)
		case "strings.MaxRunes":
			return s.lengthConstraint(field, shape.ConstraintMaxLength, v, args)
		}
		// Any other call is an arbitrary predicate: carried, not dropped.
		return ConstraintDef{Kind: shape.ConstraintOpaquePredicate, Value: formatValue(v)}, true, nil

	default:
		return ConstraintDef{Kind: shape.ConstraintOpaquePredicate, Value: formatValue(v)}, true, nil
	}
}

func (s *CueSchema) boundConstraint(field string, kind shape.ConstraintKind, whole cue.Value, args []cue.Value) (ConstraintDef, bool, error) {
	if len(args) != 1 {
		return ConstraintDef{}, false, s.typeError(field, whole, "malformed bound")
	}
	bound := args[0]
	if bound.IncompleteKind()&cue.NumberKind == 0 {
		// Non-numeric bounds (e.g. string ordering) have no native
		// equivalent; carry them as opaque.
		return ConstraintDef{Kind: shape.ConstraintOpaquePredicate, Value: formatValue(whole)}, true, nil
	}
	return ConstraintDef{Kind: kind, Value: formatValue(bound)}, true, nil
}

func (s *CueSchema) lengthConstraint(field string, kind shape.ConstraintKind, whole cue.Value, args []cue.Value) (ConstraintDef, bool, error) {
	if len(args) != 2 {
		return ConstraintDef{}, false, s.typeError(field, whole, "malformed length constraint")
	}
	n, err := args[1].Int64()
	if err != nil {
		return ConstraintDef{}, false, s.typeError(field, whole, "length operand is not an integer")
	}
	return ConstraintDef{Kind: kind, Value: fmt.Sprintf("%d", n)}, true, nil
}

func (s *CueSchema) typeError(field string, v cue.Value, msg string) error {
	return &SchemaError{
		Schema:  s.name,
		Field:   field,
		Code:    ErrUnclassifiableType,
		Message: msg,
		Pos:     v.Pos(),
	}
}

// referencedSchema resolves a value that is a reference into another schema
// declared under the schema root.
func referencedSchema(v cue.Value) (*CueSchema, bool) {
	root, path := v.ReferencePath()
	if !root.Exists() {
		return nil, false
	}
	sels := path.Selectors()
	if len(sels) == 0 {
		return nil, false
	}
	name := strings.TrimPrefix(sels[len(sels)-1].String(), "#")
	return NewCueSchema(name, cue.Dereference(v)), true
}

// concreteLexical returns the lexical form and kind of a concrete scalar.
func concreteLexical(v cue.Value) (string, TypeDefKind, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		return s, TypeString, err
	case cue.IntKind:
		n, err := v.Int64()
		return fmt.Sprintf("%d", n), TypeInteger, err
	case cue.FloatKind, cue.NumberKind:
		return formatValue(v), TypeDecimal, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if b {
			return "true", TypeBoolean, err
		}
		return "false", TypeBoolean, err
	default:
		return "", 0, fmt.Errorf("unsupported enumeration value kind: %v", v.Kind())
	}
}

// formatValue renders a CUE value's source form, used for bound lexicals and
// serialized opaque predicates.
func formatValue(v cue.Value) string {
	node := v.Syntax(cue.Raw())
	b, err := format.Node(node)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(string(b))
}

// semforgeAttribute reads the @semforge(<datatype>) field attribute.
func semforgeAttribute(v cue.Value) (string, bool, error) {
	attr := v.Attribute("semforge")
	if attr.Err() != nil {
		return "", false, nil // attribute absent
	}
	tag, err := attr.String(0)
	if err != nil {
		return "", false, fmt.Errorf("@semforge attribute needs one positional argument")
	}
	return tag, true, nil
}

// refineDatatype applies an attribute datatype tag to a primitive type def.
func refineDatatype(def TypeDef, tag string) (TypeDef, error) {
	kinds := map[string]TypeDefKind{
		"string":   TypeString,
		"integer":  TypeInteger,
		"decimal":  TypeDecimal,
		"boolean":  TypeBoolean,
		"dateTime": TypeDateTime,
	}
	kind, ok := kinds[tag]
	if !ok {
		return def, fmt.Errorf("unknown @semforge datatype %q", tag)
	}
	switch def.Kind {
	case TypeString, TypeInteger, TypeDecimal, TypeBoolean, TypeDateTime:
		def.Kind = kind
		return def, nil
	default:
		return def, fmt.Errorf("@semforge datatype applies to primitive fields only")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
