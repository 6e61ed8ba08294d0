package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semforge/semforge/internal/shape"
)

const (
	personClass  = "https://example.org/ns/Person"
	addressClass = "https://example.org/ns/Address"
	nodeClass    = "https://example.org/ns/Node"
)

type fakeResolver struct {
	shapes map[string]*shape.ShapeDescriptor
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(_ context.Context, targetClass string) (*shape.ShapeDescriptor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	desc, ok := f.shapes[targetClass]
	if !ok {
		return nil, errors.New("no shape for " + targetClass)
	}
	return desc, nil
}

func personDesc() *shape.ShapeDescriptor {
	return &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "name",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeString,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintMinLength, Value: "1"},
				},
			},
			{
				Name:     "age",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeInteger,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintMinInclusive, Value: "0"},
					{Kind: shape.ConstraintMaxExclusive, Value: "150"},
				},
			},
		},
	}
}

func addressDesc() *shape.ShapeDescriptor {
	return &shape.ShapeDescriptor{
		TargetClass: addressClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "state",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeString,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintPattern, Value: "^[A-Z]{2}$"},
				},
			},
		},
	}
}

func validPerson() *shape.DataRecord {
	return shape.NewRecord(personClass).
		Set("name", shape.String("John")).
		Set("age", shape.Integer(30))
}

func TestValidateConformingRecord(t *testing.T) {
	report, err := New(nil).Validate(context.Background(), validPerson(), personDesc())
	require.NoError(t, err)
	assert.True(t, report.Conforms())
	assert.Empty(t, report.Results)
	assert.Equal(t, personClass, report.TargetClass)
}

func TestValidateSingleOutOfBoundValue(t *testing.T) {
	// One out-of-bound value yields exactly one result, naming the field
	// path and the violated constraint kind.
	rec := validPerson().Set("age", shape.Integer(-5))

	report, err := New(nil).Validate(context.Background(), rec, personDesc())
	require.NoError(t, err)

	assert.False(t, report.Conforms())
	require.Len(t, report.Results, 1)
	assert.Equal(t, "age", report.Results[0].Path)
	assert.Equal(t, shape.ConstraintMinInclusive, report.Results[0].Constraint)
	assert.Equal(t, SeverityViolation, report.Results[0].Severity)
	assert.Equal(t, "-5", report.Results[0].Value)
}

func TestValidateAllConstraintsEvaluated(t *testing.T) {
	// No early exit: every failing constraint appears in the report.
	rec := shape.NewRecord(personClass).
		Set("name", shape.String("")).
		Set("age", shape.Integer(200))

	report, err := New(nil).Validate(context.Background(), rec, personDesc())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	kinds := map[string]shape.ConstraintKind{}
	for _, res := range report.Results {
		kinds[res.Path] = res.Constraint
	}
	assert.Equal(t, shape.ConstraintMinLength, kinds["name"])
	assert.Equal(t, shape.ConstraintMaxExclusive, kinds["age"])
}

func TestValidateRequiredAbsent(t *testing.T) {
	rec := shape.NewRecord(personClass).Set("name", shape.String("John"))

	report, err := New(nil).Validate(context.Background(), rec, personDesc())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, "age", report.Results[0].Path)
	assert.Equal(t, shape.ConstraintRequired, report.Results[0].Constraint)
}

func TestValidateCardinality(t *testing.T) {
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "aliases",
				Kind:     shape.KindList,
				Datatype: shape.DatatypeString,
				MinCount: 2,
				MaxCount: 3,
			},
		},
	}

	t.Run("under minimum", func(t *testing.T) {
		rec := shape.NewRecord(personClass).Set("aliases", shape.Sequence{shape.String("a")})
		report, err := New(nil).Validate(context.Background(), rec, desc)
		require.NoError(t, err)
		require.Len(t, report.Results, 1)
		assert.Equal(t, shape.ConstraintMinCount, report.Results[0].Constraint)
	})

	t.Run("over maximum", func(t *testing.T) {
		rec := shape.NewRecord(personClass).Set("aliases", shape.Sequence{
			shape.String("a"), shape.String("b"), shape.String("c"), shape.String("d"),
		})
		report, err := New(nil).Validate(context.Background(), rec, desc)
		require.NoError(t, err)
		require.Len(t, report.Results, 1)
		assert.Equal(t, shape.ConstraintMaxCount, report.Results[0].Constraint)
	})

	t.Run("within bounds", func(t *testing.T) {
		rec := shape.NewRecord(personClass).Set("aliases", shape.Sequence{
			shape.String("a"), shape.String("b"),
		})
		report, err := New(nil).Validate(context.Background(), rec, desc)
		require.NoError(t, err)
		assert.True(t, report.Conforms())
	})
}

func TestValidateNestedListIndexedPath(t *testing.T) {
	// Two addresses, the second with a lowercase state: exactly one
	// violation at addresses[1].state.
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "addresses",
				Kind:     shape.KindList,
				Nested:   addressClass,
				MinCount: 0,
				MaxCount: -1,
			},
		},
	}
	resolver := &fakeResolver{shapes: map[string]*shape.ShapeDescriptor{
		addressClass: addressDesc(),
	}}

	rec := shape.NewRecord(personClass).Set("addresses", shape.Sequence{
		shape.NewRecord(addressClass).Set("state", shape.String("NY")),
		shape.NewRecord(addressClass).Set("state", shape.String("ny")),
	})

	report, err := New(resolver).Validate(context.Background(), rec, desc)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, "addresses[1].state", report.Results[0].Path)
	assert.Equal(t, shape.ConstraintPattern, report.Results[0].Constraint)
	// Each list element descends independently.
	assert.Equal(t, 2, resolver.calls)
}

func TestValidateOpaquePredicateWarns(t *testing.T) {
	desc := personDesc()
	desc.Fields[0].Constraints = append(desc.Fields[0].Constraints, shape.ConstraintSpec{
		Kind:        shape.ConstraintOpaquePredicate,
		Value:       `strings.HasPrefix("@")`,
		Unsupported: true,
	})

	report, err := New(nil).Validate(context.Background(), validPerson(), desc)
	require.NoError(t, err)

	// A warning, never a violation: pass status is not blocked.
	assert.True(t, report.Conforms())
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, "name", report.Warnings()[0].Path)
	assert.Equal(t, shape.ConstraintOpaquePredicate, report.Warnings()[0].Constraint)
	assert.Empty(t, report.Violations())
}

func TestValidateClosedMode(t *testing.T) {
	desc := personDesc()
	desc.Closed = true
	rec := validPerson().
		Set("nickname", shape.String("Johnny")).
		Set("zodiac", shape.String("libra"))

	report, err := New(nil).Validate(context.Background(), rec, desc)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "nickname", report.Results[0].Path)
	assert.Equal(t, shape.ConstraintUnexpectedField, report.Results[0].Constraint)
	assert.Equal(t, "zodiac", report.Results[1].Path)

	t.Run("open mode ignores extras", func(t *testing.T) {
		open := personDesc()
		report, err := New(nil).Validate(context.Background(), rec, open)
		require.NoError(t, err)
		assert.True(t, report.Conforms())
	})
}

func TestValidateDatatypeMismatch(t *testing.T) {
	rec := validPerson().Set("age", shape.String("thirty"))

	report, err := New(nil).Validate(context.Background(), rec, personDesc())
	require.NoError(t, err)

	assert.False(t, report.Conforms())
	found := false
	for _, res := range report.Results {
		if res.Path == "age" && res.Constraint == shape.ConstraintDatatype {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateIntegerAcceptedAsDecimal(t *testing.T) {
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "height",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeDecimal,
				MinCount: 0,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintMinExclusive, Value: "0"},
				},
			},
		},
	}

	rec := shape.NewRecord(personClass).Set("height", shape.Integer(180))
	report, err := New(nil).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	assert.True(t, report.Conforms())

	rec = shape.NewRecord(personClass).Set("height", shape.Decimal("-0.5"))
	report, err = New(nil).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, shape.ConstraintMinExclusive, report.Results[0].Constraint)
}

func TestValidateDateTimeBounds(t *testing.T) {
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "joined",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeDateTime,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintMinInclusive, Value: "2020-01-01T00:00:00Z"},
				},
			},
		},
	}

	early := shape.NewRecord(personClass).
		Set("joined", shape.Time(time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)))
	report, err := New(nil).Validate(context.Background(), early, desc)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, shape.ConstraintMinInclusive, report.Results[0].Constraint)

	late := shape.NewRecord(personClass).
		Set("joined", shape.Time(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	report, err = New(nil).Validate(context.Background(), late, desc)
	require.NoError(t, err)
	assert.True(t, report.Conforms())
}

func TestValidateEnum(t *testing.T) {
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "status",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeString,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintEnum, Values: []string{"active", "inactive"}},
				},
			},
		},
	}

	rec := shape.NewRecord(personClass).Set("status", shape.String("banned"))
	report, err := New(nil).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, shape.ConstraintEnum, report.Results[0].Constraint)

	rec = shape.NewRecord(personClass).Set("status", shape.String("active"))
	report, err = New(nil).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	assert.True(t, report.Conforms())
}

func TestValidateUnion(t *testing.T) {
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "contact",
				Kind:     shape.KindUnion,
				MinCount: 1,
				MaxCount: 1,
				Members: []shape.TypeRef{
					{Datatype: shape.DatatypeString},
					{Datatype: shape.DatatypeInteger},
				},
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
				},
			},
		},
	}

	for _, v := range []shape.Value{shape.String("a@b.c"), shape.Integer(5551234)} {
		rec := shape.NewRecord(personClass).Set("contact", v)
		report, err := New(nil).Validate(context.Background(), rec, desc)
		require.NoError(t, err)
		assert.True(t, report.Conforms())
	}

	rec := shape.NewRecord(personClass).Set("contact", shape.Bool(true))
	report, err := New(nil).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, shape.ConstraintDatatype, report.Results[0].Constraint)
}

func TestValidateUnionNestedMember(t *testing.T) {
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "location",
				Kind:     shape.KindUnion,
				MinCount: 0,
				MaxCount: 1,
				Members: []shape.TypeRef{
					{Datatype: shape.DatatypeString},
					{Nested: addressClass},
				},
			},
		},
	}
	resolver := &fakeResolver{shapes: map[string]*shape.ShapeDescriptor{
		addressClass: addressDesc(),
	}}

	rec := shape.NewRecord(personClass).Set("location",
		shape.NewRecord(addressClass).Set("state", shape.String("ny")))

	report, err := New(resolver).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "location.state", report.Results[0].Path)
	assert.Equal(t, shape.ConstraintPattern, report.Results[0].Constraint)
}

func nodeDesc() *shape.ShapeDescriptor {
	return &shape.ShapeDescriptor{
		TargetClass: nodeClass,
		Fields: []shape.FieldDescriptor{
			{
				Name:     "label",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeString,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintMinLength, Value: "1"},
				},
			},
			{
				Name:     "child",
				Kind:     shape.KindNested,
				Nested:   nodeClass,
				MinCount: 0,
				MaxCount: 1,
			},
		},
	}
}

func TestValidateSelfReferenceTerminates(t *testing.T) {
	// Depth-2 self-nesting: validation terminates; re-entry of a class
	// already on the path short-circuits as pass.
	resolver := &fakeResolver{shapes: map[string]*shape.ShapeDescriptor{
		nodeClass: nodeDesc(),
	}}

	rec := shape.NewRecord(nodeClass).
		Set("label", shape.String("root")).
		Set("child", shape.NewRecord(nodeClass).
			Set("label", shape.String("leaf")).
			Set("child", shape.NewRecord(nodeClass).
				Set("label", shape.String("grandchild"))))

	report, err := New(resolver).Validate(context.Background(), rec, nodeDesc())
	require.NoError(t, err)
	assert.True(t, report.Conforms())
}

func TestValidateSiblingNestedBothChecked(t *testing.T) {
	// The visited set is path-scoped: a class left on one branch is
	// re-entered on a sibling branch.
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{Name: "home", Kind: shape.KindNested, Nested: addressClass, MinCount: 0, MaxCount: 1},
			{Name: "work", Kind: shape.KindNested, Nested: addressClass, MinCount: 0, MaxCount: 1},
		},
	}
	resolver := &fakeResolver{shapes: map[string]*shape.ShapeDescriptor{
		addressClass: addressDesc(),
	}}

	rec := shape.NewRecord(personClass).
		Set("home", shape.NewRecord(addressClass).Set("state", shape.String("NY"))).
		Set("work", shape.NewRecord(addressClass).Set("state", shape.String("xx")))

	report, err := New(resolver).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "work.state", report.Results[0].Path)
}

func TestValidateNestedRefPasses(t *testing.T) {
	// An IRI reference to a stored instance is accepted without descent.
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{Name: "home", Kind: shape.KindNested, Nested: addressClass, MinCount: 0, MaxCount: 1},
		},
	}

	rec := shape.NewRecord(personClass).
		Set("home", shape.Ref("https://example.org/ns/Address/instance/a1"))

	report, err := New(nil).Validate(context.Background(), rec, desc)
	require.NoError(t, err)
	assert.True(t, report.Conforms())
}

func TestValidateResolverFailureIsError(t *testing.T) {
	// Infrastructure faults surface as errors, never as reports.
	resolver := &fakeResolver{err: errors.New("store unreachable")}
	desc := &shape.ShapeDescriptor{
		TargetClass: personClass,
		Fields: []shape.FieldDescriptor{
			{Name: "home", Kind: shape.KindNested, Nested: addressClass, MinCount: 0, MaxCount: 1},
		},
	}
	rec := shape.NewRecord(personClass).
		Set("home", shape.NewRecord(addressClass).Set("state", shape.String("NY")))

	report, err := New(resolver).Validate(context.Background(), rec, desc)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "store unreachable")
}

func TestValidateRecordResolvesOwnShape(t *testing.T) {
	resolver := &fakeResolver{shapes: map[string]*shape.ShapeDescriptor{
		personClass: personDesc(),
	}}

	report, err := New(resolver).ValidateRecord(context.Background(), validPerson())
	require.NoError(t, err)
	assert.True(t, report.Conforms())

	_, err = New(resolver).ValidateRecord(context.Background(), &shape.DataRecord{})
	require.Error(t, err)
}
