package store

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semforge/semforge/internal/shape"
)

func marshalTestShape() *shape.ShapeDescriptor {
	return &shape.ShapeDescriptor{
		TargetClass: "https://example.org/ns/Person",
		Closed:      true,
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
					{Kind: shape.ConstraintPattern, Value: "^[A-Z]"},
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
			{
				Name:     "status",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeString,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintEnum, Values: []string{"active", "inactive", "banned"}},
				},
			},
			{
				Name:     "tags",
				Kind:     shape.KindList,
				Datatype: shape.DatatypeString,
				MinCount: 0,
				MaxCount: -1,
			},
			{
				Name:     "home",
				Kind:     shape.KindNested,
				Nested:   "https://example.org/ns/Address",
				MinCount: 0,
				MaxCount: 1,
			},
			{
				Name:     "contact",
				Kind:     shape.KindUnion,
				MinCount: 1,
				MaxCount: 1,
				Members: []shape.TypeRef{
					{Datatype: shape.DatatypeString},
					{Datatype: shape.DatatypeInteger},
					{Nested: "https://example.org/ns/Address"},
				},
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
				},
			},
			{
				Name:     "handle",
				Kind:     shape.KindPrimitive,
				Datatype: shape.DatatypeString,
				MinCount: 1,
				MaxCount: 1,
				Constraints: []shape.ConstraintSpec{
					{Kind: shape.ConstraintRequired},
					{Kind: shape.ConstraintOpaquePredicate, Value: `strings.HasPrefix("@")`, Unsupported: true},
				},
			},
		},
	}
}

func TestShapeTriplesRoundTrip(t *testing.T) {
	desc := marshalTestShape()
	hash, err := shape.ContentHash(desc)
	require.NoError(t, err)

	ts := ShapeTriples(desc, hash)
	got, gotHash, err := ShapeFromTriples(ts)
	require.NoError(t, err)

	assert.Equal(t, hash, gotHash)
	assert.Equal(t, desc, got)
}

func TestShapeTriplesRoundTripShuffled(t *testing.T) {
	// Triple sets are unordered; the importer must not depend on input
	// order.
	desc := marshalTestShape()
	hash, err := shape.ContentHash(desc)
	require.NoError(t, err)

	ts := ShapeTriples(desc, hash)
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })

	got, gotHash, err := ShapeFromTriples(ts)
	require.NoError(t, err)
	assert.Equal(t, hash, gotHash)
	assert.Equal(t, desc, got)
}

func TestShapeTriplesHashSurvivesRoundTrip(t *testing.T) {
	desc := marshalTestShape()
	hash, err := shape.ContentHash(desc)
	require.NoError(t, err)

	got, _, err := ShapeFromTriples(ShapeTriples(desc, hash))
	require.NoError(t, err)

	rehash, err := shape.ContentHash(got)
	require.NoError(t, err)
	assert.Equal(t, hash, rehash)
}

func TestShapeTriplesAgreeWithTurtleExport(t *testing.T) {
	// Triples and the transfer format are two views of the same shape;
	// importing either must yield the same descriptor.
	desc := marshalTestShape()

	fromTurtle, err := shape.ImportTurtle(shape.ExportTurtle(desc))
	require.NoError(t, err)

	fromTriples, _, err := ShapeFromTriples(ShapeTriples(desc, ""))
	require.NoError(t, err)

	assert.Equal(t, fromTurtle, fromTriples)
}

func TestShapeTriplesVocabulary(t *testing.T) {
	desc := marshalTestShape()
	ts := ShapeTriples(desc, "deadbeef")

	preds := map[string]int{}
	for _, tr := range ts {
		preds[tr.Predicate.Value]++
	}

	assert.Equal(t, 7, preds[shape.SHProperty])
	assert.Equal(t, 7, preds[shape.SFIndex])
	assert.Equal(t, 1, preds[shape.SHTargetClass])
	assert.Equal(t, 1, preds[shape.SHClosed])
	assert.Equal(t, 1, preds[shape.SFContentHash])
	assert.Equal(t, 1, preds[shape.SHOr])
	assert.Equal(t, 1, preds[shape.SHIn])
	assert.Equal(t, 1, preds[shape.SFPredicate])
	assert.Equal(t, 1, preds[shape.SFUnsupported])
	// tags is unbounded, so only six sh:maxCount triples.
	assert.Equal(t, 6, preds[shape.SHMaxCount])
}

func TestShapeFromTriplesErrors(t *testing.T) {
	t.Run("no shape node", func(t *testing.T) {
		_, _, err := ShapeFromTriples([]Triple{
			{IRI("https://example.org/x"), IRI(shape.RDFType), IRI("https://example.org/Thing")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NodeShape")
	})

	t.Run("missing target class", func(t *testing.T) {
		_, _, err := ShapeFromTriples([]Triple{
			{IRI("https://example.org/PersonShape"), IRI(shape.RDFType), IRI(shape.SHNodeShape)},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "targetClass")
	})

	t.Run("broken rdf list", func(t *testing.T) {
		subj := IRI("https://example.org/ns/PersonShape")
		prop := Blank("p0")
		_, _, err := ShapeFromTriples([]Triple{
			{subj, IRI(shape.RDFType), IRI(shape.SHNodeShape)},
			{subj, IRI(shape.SHTargetClass), IRI("https://example.org/ns/Person")},
			{subj, IRI(shape.SHProperty), prop},
			{prop, IRI(shape.SHPath), IRI("https://example.org/ns/Person/status")},
			{prop, IRI(shape.SHIn), Blank("dangling")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rdf:first")
	})
}

func TestRecordTriples(t *testing.T) {
	ns := shape.NewNamespace("https://example.org/ns/")
	joined := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	rec := shape.NewRecord(ns.ClassIRI("Person")).
		Set("name", shape.String("Ada")).
		Set("age", shape.Integer(36)).
		Set("active", shape.Bool(true)).
		Set("joined", shape.Time(joined)).
		Set("tags", shape.Sequence{shape.String("eng"), shape.String("math")}).
		Set("home", shape.NewRecord(ns.ClassIRI("Address")).
			Set("street", shape.String("1 Main St")))

	ts, subject, err := RecordTriples(ns, rec, "p1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/ns/Person/instance/p1", subject)

	byPred := map[string][]Term{}
	for _, tr := range ts {
		if tr.Subject.Value == subject {
			byPred[tr.Predicate.Value] = append(byPred[tr.Predicate.Value], tr.Object)
		}
	}

	person := ns.ClassIRI("Person")
	require.Len(t, byPred[shape.RDFType], 1)
	assert.Equal(t, person, byPred[shape.RDFType][0].Value)

	assert.Equal(t, []Term{Literal("Ada")}, byPred[person+"/name"])
	assert.Equal(t, []Term{TypedLiteral("36", shape.XSDInteger)}, byPred[person+"/age"])
	assert.Equal(t, []Term{TypedLiteral("true", shape.XSDBoolean)}, byPred[person+"/active"])
	assert.Equal(t, []Term{TypedLiteral("2024-03-01T10:30:00Z", shape.XSDDateTime)}, byPred[person+"/joined"])
	assert.Len(t, byPred[person+"/tags"], 2)

	// The nested address is its own instance, linked by IRI and typed in
	// the same triple set.
	require.Len(t, byPred[person+"/home"], 1)
	child := byPred[person+"/home"][0]
	assert.Equal(t, TermIRI, child.Kind)
	assert.True(t, strings.HasPrefix(child.Value, "https://example.org/ns/Address/instance/"))

	childTyped := false
	for _, tr := range ts {
		if tr.Subject.Value == child.Value && tr.Predicate.Value == shape.RDFType {
			childTyped = tr.Object.Value == ns.ClassIRI("Address")
		}
	}
	assert.True(t, childTyped)
}

func TestRecordTriplesGeneratesID(t *testing.T) {
	ns := shape.NewNamespace("https://example.org/ns/")
	rec := shape.NewRecord(ns.ClassIRI("Person")).Set("name", shape.String("Ada"))

	_, s1, err := RecordTriples(ns, rec, "")
	require.NoError(t, err)
	_, s2, err := RecordTriples(ns, rec, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s1, "https://example.org/ns/Person/instance/"))
	assert.NotEqual(t, s1, s2)
}

func TestRecordTriplesErrors(t *testing.T) {
	ns := shape.NewNamespace("https://example.org/ns/")

	t.Run("no target class", func(t *testing.T) {
		_, _, err := RecordTriples(ns, &shape.DataRecord{}, "x")
		require.Error(t, err)
	})

	t.Run("nested sequence", func(t *testing.T) {
		rec := shape.NewRecord(ns.ClassIRI("Person")).
			Set("grid", shape.Sequence{shape.Sequence{shape.String("a")}})
		_, _, err := RecordTriples(ns, rec, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nested sequence")
	})
}

func TestRecordFromTriples(t *testing.T) {
	ns := shape.NewNamespace("https://example.org/ns/")
	person := ns.ClassIRI("Person")
	subject := ns.InstanceIRI("Person", "p1")
	subj := IRI(subject)

	ts := []Triple{
		{subj, IRI(shape.RDFType), IRI(person)},
		{subj, IRI(person + "/name"), Literal("Ada")},
		{subj, IRI(person + "/age"), TypedLiteral("36", shape.XSDInteger)},
		{subj, IRI(person + "/active"), TypedLiteral("true", shape.XSDBoolean)},
		{subj, IRI(person + "/joined"), TypedLiteral("2024-03-01T10:30:00Z", shape.XSDDateTime)},
		{subj, IRI(person + "/tags"), Literal("eng")},
		{subj, IRI(person + "/tags"), Literal("math")},
		{subj, IRI(person + "/home"), IRI(ns.InstanceIRI("Address", "a1"))},
		// Another instance's triples must be ignored.
		{IRI(ns.InstanceIRI("Person", "p2")), IRI(person + "/name"), Literal("Grace")},
	}

	rec, err := RecordFromTriples(subject, person, ts)
	require.NoError(t, err)

	assert.Equal(t, person, rec.TargetClass)
	assert.Equal(t, shape.String("Ada"), rec.Fields["name"])
	assert.Equal(t, shape.Integer(36), rec.Fields["age"])
	assert.Equal(t, shape.Bool(true), rec.Fields["active"])
	assert.Equal(t, shape.Sequence{shape.String("eng"), shape.String("math")}, rec.Fields["tags"])
	assert.Equal(t, shape.Ref(ns.InstanceIRI("Address", "a1")), rec.Fields["home"])

	joined, ok := rec.Fields["joined"].(shape.Time)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01T10:30:00Z", joined.Lexical())
}

func TestRecordRoundTrip(t *testing.T) {
	ns := shape.NewNamespace("https://example.org/ns/")
	rec := shape.NewRecord(ns.ClassIRI("Person")).
		Set("name", shape.String("Ada")).
		Set("age", shape.Integer(36))

	ts, subject, err := RecordTriples(ns, rec, "p1")
	require.NoError(t, err)

	got, err := RecordFromTriples(subject, rec.TargetClass, ts)
	require.NoError(t, err)
	assert.Equal(t, rec.Fields["name"], got.Fields["name"])
	assert.Equal(t, rec.Fields["age"], got.Fields["age"])
}

func TestRecordFromTriplesMalformedLiteral(t *testing.T) {
	person := "https://example.org/ns/Person"
	subj := IRI(person + "/instance/p1")

	_, err := RecordFromTriples(subj.Value, person, []Triple{
		{subj, IRI(person + "/age"), TypedLiteral("not-a-number", shape.XSDInteger)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age")
}
