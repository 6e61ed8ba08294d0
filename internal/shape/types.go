package shape

// TypeKind classifies a field's declared type within the supported taxonomy.
type TypeKind string

const (
	// KindPrimitive is a scalar type carrying an XSD datatype tag.
	KindPrimitive TypeKind = "primitive"

	// KindList is an ordered sequence of values of a single element type.
	KindList TypeKind = "list"

	// KindUnion is a disjunction of member type fragments.
	KindUnion TypeKind = "union"

	// KindNested is a reference to another shape by target-class IRI.
	KindNested TypeKind = "nested"
)

// ValidTypeKinds defines allowed type kinds.
var ValidTypeKinds = map[TypeKind]bool{
	KindPrimitive: true,
	KindList:      true,
	KindUnion:     true,
	KindNested:    true,
}

// Datatype is an XSD datatype tag for primitive values.
type Datatype string

const (
	DatatypeString   Datatype = XSDString
	DatatypeInteger  Datatype = XSDInteger
	DatatypeDecimal  Datatype = XSDDecimal
	DatatypeBoolean  Datatype = XSDBoolean
	DatatypeDateTime Datatype = XSDDateTime
)

// ConstraintKind enumerates the supported constraint categories.
type ConstraintKind string

const (
	ConstraintMinLength       ConstraintKind = "min-length"
	ConstraintMaxLength       ConstraintKind = "max-length"
	ConstraintPattern         ConstraintKind = "pattern"
	ConstraintMinInclusive    ConstraintKind = "min-inclusive"
	ConstraintMaxInclusive    ConstraintKind = "max-inclusive"
	ConstraintMinExclusive    ConstraintKind = "min-exclusive"
	ConstraintMaxExclusive    ConstraintKind = "max-exclusive"
	ConstraintRequired        ConstraintKind = "required"
	ConstraintEnum            ConstraintKind = "enumerated-values"
	ConstraintOpaquePredicate ConstraintKind = "opaque-predicate"

	// ConstraintDatatype is emitted by the validator when a value does not
	// conform to the field's datatype tag. It never appears on a descriptor.
	ConstraintDatatype ConstraintKind = "datatype"

	// ConstraintMinCount / ConstraintMaxCount are emitted by the validator
	// for cardinality failures. They never appear on a descriptor.
	ConstraintMinCount ConstraintKind = "min-count"
	ConstraintMaxCount ConstraintKind = "max-count"

	// ConstraintUnexpectedField is emitted in closed mode for record fields
	// absent from the shape. It never appears on a descriptor.
	ConstraintUnexpectedField ConstraintKind = "unexpected-field"
)

// ConstraintSpec is a single translated field constraint.
//
// Parameters are keyed by Kind:
//   - min-length, max-length: Value holds a base-10 integer
//   - pattern: Value holds the regular expression source
//   - min/max-inclusive/exclusive: Value holds the bound's lexical form
//   - enumerated-values: Values holds the allowed lexical forms
//   - opaque-predicate: Value holds the predicate's serialized form and
//     Unsupported is true when the target representation cannot execute it
//
// Numeric bounds are kept in lexical form so the descriptor stays float-free
// for canonical hashing; comparison happens through math/big.
type ConstraintSpec struct {
	Kind   ConstraintKind `json:"kind"`
	Value  string         `json:"value,omitempty"`
	Values []string       `json:"values,omitempty"`

	// Unsupported marks a constraint the target representation cannot
	// express natively. It is carried forward, never dropped, so the
	// validator can surface it as a warning.
	Unsupported bool `json:"unsupported,omitempty"`
}

// TypeRef identifies one member of a union disjunction: either a primitive
// datatype or a nested shape reference. Exactly one field is set.
type TypeRef struct {
	Datatype Datatype `json:"datatype,omitempty"`
	Nested   string   `json:"nested,omitempty"`
}

// FieldDescriptor describes a single schema field after introspection.
// Immutable once produced.
type FieldDescriptor struct {
	Name string   `json:"name"`
	Kind TypeKind `json:"kind"`

	// Datatype is set for primitive fields and primitive list elements.
	Datatype Datatype `json:"datatype,omitempty"`

	// Nested holds the target-class IRI for nested references and for
	// lists of nested records.
	Nested string `json:"nested,omitempty"`

	// Members holds the disjunction members for union fields.
	Members []TypeRef `json:"members,omitempty"`

	// MinCount and MaxCount bound the number of present values.
	// MaxCount of -1 means unbounded (lists).
	MinCount int `json:"min_count"`
	MaxCount int `json:"max_count"`

	// Constraints are evaluated against each present value, in order.
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
}

// Required reports whether at least one value must be present.
func (f FieldDescriptor) Required() bool {
	return f.MinCount >= 1
}

// ShapeDescriptor is the portable constraint shape for one target class.
type ShapeDescriptor struct {
	// TargetClass is the namespace-prefixed IRI of the class this shape
	// constrains. It doubles as the shape's identity.
	TargetClass string `json:"target_class"`

	// Fields are kept in schema declaration order.
	Fields []FieldDescriptor `json:"fields"`

	// Closed makes unexpected record fields a violation.
	Closed bool `json:"closed,omitempty"`

	// Diagnostics records constraints the translation could not express
	// natively. Informational; does not affect the content hash inputs
	// beyond the Unsupported flags already present on the constraints.
	Diagnostics []ConstraintDiagnostic `json:"-"`
}

// ShapeIRI returns the IRI of the shape node itself (<TargetClass>Shape).
func (s *ShapeDescriptor) ShapeIRI() string {
	return s.TargetClass + "Shape"
}

// Field returns the descriptor for the named field, if present.
func (s *ShapeDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// NestedRefs returns the distinct target-class IRIs this shape references,
// in first-appearance order.
func (s *ShapeDescriptor) NestedRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(iri string) {
		if iri != "" && !seen[iri] {
			seen[iri] = true
			refs = append(refs, iri)
		}
	}
	for _, f := range s.Fields {
		add(f.Nested)
		for _, m := range f.Members {
			add(m.Nested)
		}
	}
	return refs
}

// ConstraintDiagnostic describes a constraint that was carried but cannot be
// executed by the target representation. Non-fatal by default.
type ConstraintDiagnostic struct {
	Field     string         `json:"field"`
	Kind      ConstraintKind `json:"kind"`
	Predicate string         `json:"predicate,omitempty"`
	Message   string         `json:"message"`
}
