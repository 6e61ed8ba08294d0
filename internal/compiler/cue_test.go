package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semforge/semforge/internal/shape"
)

const personCue = `
import "strings"

schema: {
	Address: {
		street: string
		city:   string & strings.MinRunes(1)
	}
	Person: {
		name:      string & strings.MinRunes(1) & strings.MaxRunes(80) & =~"^[A-Z]"
		age:       int & >=0 & <150
		height?:   number
		active:    bool
		joined:    string @semforge(dateTime)
		status:    "active" | "inactive" | "banned"
		tags?:     [...string]
		home?:     schema.Address
		previous?: [...schema.Address]
		contact:   string | int
	}
}
`

func loadTestSchemas(t *testing.T, src string) map[string]*CueSchema {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())

	schemas, err := LoadSchemas(v)
	require.NoError(t, err)

	byName := make(map[string]*CueSchema, len(schemas))
	for _, s := range schemas {
		byName[s.Name()] = s
	}
	return byName
}

func fieldByName(t *testing.T, defs []FieldDef, name string) FieldDef {
	t.Helper()
	for _, d := range defs {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("field %q not found", name)
	return FieldDef{}
}

// TestLoadSchemas tests extraction of schema declarations.
func TestLoadSchemas(t *testing.T) {
	schemas := loadTestSchemas(t, personCue)
	require.Len(t, schemas, 2)
	assert.Contains(t, schemas, "Person")
	assert.Contains(t, schemas, "Address")
}

// TestLoadSchemas_MissingRoot tests the error for input without schema
// declarations.
func TestLoadSchemas_MissingRoot(t *testing.T) {
	v := cuecontext.New().CompileString(`other: {x: int}`)
	require.NoError(t, v.Err())

	_, err := LoadSchemas(v)
	var serr *SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrBadSchemaRef, serr.Code)
}

// TestCueSchema_PrimitiveKinds tests base type classification.
func TestCueSchema_PrimitiveKinds(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	assert.Equal(t, TypeString, fieldByName(t, defs, "name").Type.Kind)
	assert.Equal(t, TypeInteger, fieldByName(t, defs, "age").Type.Kind)
	assert.Equal(t, TypeDecimal, fieldByName(t, defs, "height").Type.Kind)
	assert.Equal(t, TypeBoolean, fieldByName(t, defs, "active").Type.Kind)
}

// TestCueSchema_Optionality tests that ? markers carry through.
func TestCueSchema_Optionality(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	assert.False(t, fieldByName(t, defs, "name").Optional)
	assert.True(t, fieldByName(t, defs, "height").Optional)
	assert.True(t, fieldByName(t, defs, "tags").Optional)
}

// TestCueSchema_StringConstraints tests rune-length and pattern extraction.
func TestCueSchema_StringConstraints(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	name := fieldByName(t, defs, "name")
	kinds := make(map[shape.ConstraintKind]string)
	for _, c := range name.Constraints {
		kinds[c.Kind] = c.Value
	}

	assert.Equal(t, "1", kinds[shape.ConstraintMinLength])
	assert.Equal(t, "80", kinds[shape.ConstraintMaxLength])
	assert.Equal(t, "^[A-Z]", kinds[shape.ConstraintPattern])
}

// TestCueSchema_NumericBounds tests inclusive and exclusive bounds.
func TestCueSchema_NumericBounds(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	age := fieldByName(t, defs, "age")
	kinds := make(map[shape.ConstraintKind]string)
	for _, c := range age.Constraints {
		kinds[c.Kind] = c.Value
	}

	assert.Equal(t, "0", kinds[shape.ConstraintMinInclusive])
	assert.Equal(t, "150", kinds[shape.ConstraintMaxExclusive])
}

// TestCueSchema_DatatypeAttribute tests the @semforge datatype refinement.
func TestCueSchema_DatatypeAttribute(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	joined := fieldByName(t, defs, "joined")
	assert.Equal(t, TypeDateTime, joined.Type.Kind)
}

// TestCueSchema_Enumeration tests concrete disjunctions become enums.
func TestCueSchema_Enumeration(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	status := fieldByName(t, defs, "status")
	assert.Equal(t, TypeString, status.Type.Kind)
	require.Len(t, status.Constraints, 1)
	assert.Equal(t, shape.ConstraintEnum, status.Constraints[0].Kind)
	assert.ElementsMatch(t, []string{"active", "inactive", "banned"}, status.Constraints[0].Values)
}

// TestCueSchema_Lists tests element classification for lists.
func TestCueSchema_Lists(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	tags := fieldByName(t, defs, "tags")
	require.Equal(t, TypeList, tags.Type.Kind)
	require.NotNil(t, tags.Type.Elem)
	assert.Equal(t, TypeString, tags.Type.Elem.Kind)

	previous := fieldByName(t, defs, "previous")
	require.Equal(t, TypeList, previous.Type.Kind)
	require.NotNil(t, previous.Type.Elem)
	require.Equal(t, TypeSchema, previous.Type.Elem.Kind)
	assert.Equal(t, "Address", previous.Type.Elem.Schema.Name())
}

// TestCueSchema_References tests that schema references resolve by name and
// remain introspectable.
func TestCueSchema_References(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	home := fieldByName(t, defs, "home")
	require.Equal(t, TypeSchema, home.Type.Kind)
	require.NotNil(t, home.Type.Schema)
	assert.Equal(t, "Address", home.Type.Schema.Name())

	nested, err := home.Type.Schema.Fields()
	require.NoError(t, err)
	require.Len(t, nested, 2)
	assert.Equal(t, "street", nested[0].Name)
	assert.Equal(t, "city", nested[1].Name)
}

// TestCueSchema_TypeUnion tests non-concrete disjunctions become unions.
func TestCueSchema_TypeUnion(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	defs, err := person.Fields()
	require.NoError(t, err)

	contact := fieldByName(t, defs, "contact")
	require.Equal(t, TypeUnion, contact.Type.Kind)
	require.Len(t, contact.Type.Members, 2)
	assert.Equal(t, TypeString, contact.Type.Members[0].Kind)
	assert.Equal(t, TypeInteger, contact.Type.Members[1].Kind)
}

// TestCueSchema_SelfReference tests that recursive schemas introspect
// without looping.
func TestCueSchema_SelfReference(t *testing.T) {
	schemas := loadTestSchemas(t, `
schema: {
	Node: {
		label:     string
		children?: [...schema.Node]
	}
}
`)
	node := schemas["Node"]
	require.NotNil(t, node)

	defs, err := node.Fields()
	require.NoError(t, err)

	children := fieldByName(t, defs, "children")
	require.Equal(t, TypeList, children.Type.Kind)
	require.Equal(t, TypeSchema, children.Type.Elem.Kind)
	assert.Equal(t, "Node", children.Type.Elem.Schema.Name())
}

// TestCueSchema_OpaquePredicate tests unrecognized calls survive as opaque
// predicates rather than being dropped.
func TestCueSchema_OpaquePredicate(t *testing.T) {
	schemas := loadTestSchemas(t, `
import "strings"

schema: {
	Account: {
		handle: string & strings.HasPrefix("@")
	}
}
`)
	defs, err := schemas["Account"].Fields()
	require.NoError(t, err)

	handle := fieldByName(t, defs, "handle")
	require.Len(t, handle.Constraints, 1)
	c := handle.Constraints[0]
	assert.Equal(t, shape.ConstraintOpaquePredicate, c.Kind)
	assert.Contains(t, c.Value, "strings.HasPrefix")
}

// TestCueSchema_AnonymousStruct tests inline structs synthesize a nested
// schema named after the parent and field.
func TestCueSchema_AnonymousStruct(t *testing.T) {
	schemas := loadTestSchemas(t, `
schema: {
	Person: {
		name: string
		home: {
			street: string
			city:   string
		}
	}
}
`)
	defs, err := schemas["Person"].Fields()
	require.NoError(t, err)

	home := fieldByName(t, defs, "home")
	require.Equal(t, TypeSchema, home.Type.Kind)
	assert.Equal(t, "PersonHome", home.Type.Schema.Name())
}

// TestCueSchema_IntrospectEndToEnd tests the adapter through the
// introspector to a content-hashable descriptor.
func TestCueSchema_IntrospectEndToEnd(t *testing.T) {
	person := loadTestSchemas(t, personCue)["Person"]
	ins := NewIntrospector(shape.NewNamespace("https://example.org/ns"))

	model, err := ins.Introspect(person)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/ns/Person", model.TargetClass)
	assert.Contains(t, model.Nested, "https://example.org/ns/Address")

	hash, err := shape.ContentHash(model.Descriptor(true))
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	again, err := ins.Introspect(person)
	require.NoError(t, err)
	assert.Equal(t, hash, shape.MustContentHash(again.Descriptor(true)))
}
