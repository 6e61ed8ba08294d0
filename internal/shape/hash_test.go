package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personShape() *ShapeDescriptor {
	return &ShapeDescriptor{
		TargetClass: "https://example.org/ns/Person",
		Fields: []FieldDescriptor{
			{
				Name:     "name",
				Kind:     KindPrimitive,
				Datatype: DatatypeString,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []ConstraintSpec{
					{Kind: ConstraintRequired},
					{Kind: ConstraintMinLength, Value: "1"},
				},
			},
			{
				Name:     "age",
				Kind:     KindPrimitive,
				Datatype: DatatypeInteger,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []ConstraintSpec{
					{Kind: ConstraintRequired},
					{Kind: ConstraintMinInclusive, Value: "0"},
					{Kind: ConstraintMaxExclusive, Value: "150"},
				},
			},
		},
	}
}

func TestContentHashDeterminism(t *testing.T) {
	h1, err := ContentHash(personShape())
	require.NoError(t, err)

	h2, err := ContentHash(personShape())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "independently built descriptors must hash identically")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestContentHashChangesWithDescriptor(t *testing.T) {
	base := MustContentHash(personShape())

	renamed := personShape()
	renamed.Fields[0].Name = "fullName"
	assert.NotEqual(t, base, MustContentHash(renamed), "field name should change the hash")

	retyped := personShape()
	retyped.Fields[1].Datatype = DatatypeDecimal
	assert.NotEqual(t, base, MustContentHash(retyped), "datatype should change the hash")

	rebounded := personShape()
	rebounded.Fields[1].Constraints[2].Value = "151"
	assert.NotEqual(t, base, MustContentHash(rebounded), "bound value should change the hash")

	closed := personShape()
	closed.Closed = true
	assert.NotEqual(t, base, MustContentHash(closed), "closed flag should change the hash")
}

func TestContentHashSensitiveToFieldOrder(t *testing.T) {
	s := personShape()
	swapped := personShape()
	swapped.Fields[0], swapped.Fields[1] = swapped.Fields[1], swapped.Fields[0]

	assert.NotEqual(t, MustContentHash(s), MustContentHash(swapped),
		"fields are an ordered set; order participates in identity")
}

func TestContentHashIgnoresDiagnostics(t *testing.T) {
	s := personShape()
	withDiag := personShape()
	withDiag.Diagnostics = []ConstraintDiagnostic{{
		Field:   "name",
		Kind:    ConstraintOpaquePredicate,
		Message: "not expressible",
	}}

	assert.Equal(t, MustContentHash(s), MustContentHash(withDiag))
}

func TestRecordHashDeterminism(t *testing.T) {
	build := func() *DataRecord {
		addr := NewRecord("https://example.org/ns/Address").
			Set("state", String("NY"))
		return NewRecord("https://example.org/ns/Person").
			Set("name", String("John")).
			Set("age", Integer(42)).
			Set("score", Decimal("12.50")).
			Set("addresses", Sequence{addr})
	}

	h1, err := RecordHash(build())
	require.NoError(t, err)
	h2, err := RecordHash(build())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := build()
	other.Fields["age"] = Integer(43)
	h3, err := RecordHash(other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestRecordHashDistinguishesValueTypes(t *testing.T) {
	// "12.50" as a string and as a decimal are different values.
	asString := NewRecord("c").Set("v", String("12.50"))
	asDecimal := NewRecord("c").Set("v", Decimal("12.50"))

	h1, err := RecordHash(asString)
	require.NoError(t, err)
	h2, err := RecordHash(asDecimal)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
