package shape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fieldsNS = NewNamespace("https://example.org/ns/")

func TestRecordFromFields_Scalars(t *testing.T) {
	rec, err := RecordFromFields(fieldsNS, fieldsNS.ClassIRI("Person"), map[string]any{
		"name":   "Ada",
		"age":    36,
		"active": true,
		"height": 1.63,
		"joined": time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/ns/Person", rec.TargetClass)
	assert.Equal(t, String("Ada"), rec.Fields["name"])
	assert.Equal(t, Integer(36), rec.Fields["age"])
	assert.Equal(t, Bool(true), rec.Fields["active"])
	assert.Equal(t, Decimal("1.63"), rec.Fields["height"])
	assert.Equal(t, Time(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)), rec.Fields["joined"])
}

func TestRecordFromFields_NestedAndSequence(t *testing.T) {
	rec, err := RecordFromFields(fieldsNS, fieldsNS.ClassIRI("Person"), map[string]any{
		"tags": []any{"a", "b"},
		"home": map[string]any{
			"$class": "Address",
			"city":   "Springfield",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, Sequence{String("a"), String("b")}, rec.Fields["tags"])

	home, ok := rec.Fields["home"].(*DataRecord)
	require.True(t, ok)
	assert.Equal(t, "https://example.org/ns/Address", home.TargetClass)
	assert.Equal(t, String("Springfield"), home.Fields["city"])
	_, hasClassKey := home.Fields["$class"]
	assert.False(t, hasClassKey)
}

func TestRecordFromFields_UntaggedNestedRecord(t *testing.T) {
	rec, err := RecordFromFields(fieldsNS, fieldsNS.ClassIRI("Person"), map[string]any{
		"home": map[string]any{"city": "Springfield"},
	})
	require.NoError(t, err)

	home := rec.Fields["home"].(*DataRecord)
	assert.Empty(t, home.TargetClass)
}

func TestRecordFromFields_Ref(t *testing.T) {
	rec, err := RecordFromFields(fieldsNS, fieldsNS.ClassIRI("Person"), map[string]any{
		"home": map[string]any{"$ref": "https://example.org/ns/Address/instance/1"},
	})
	require.NoError(t, err)
	assert.Equal(t, Ref("https://example.org/ns/Address/instance/1"), rec.Fields["home"])
}

func TestRecordFromFields_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{
			name:   "null value",
			fields: map[string]any{"name": nil},
			want:   "null values are not representable",
		},
		{
			name:   "ref with extra keys",
			fields: map[string]any{"home": map[string]any{"$ref": "x", "city": "y"}},
			want:   "does not combine",
		},
		{
			name:   "non-string ref",
			fields: map[string]any{"home": map[string]any{"$ref": 7}},
			want:   "needs a string IRI",
		},
		{
			name:   "non-string class",
			fields: map[string]any{"home": map[string]any{"$class": 7}},
			want:   "needs a schema name",
		},
		{
			name:   "unsupported type",
			fields: map[string]any{"blob": []byte{1}},
			want:   "unsupported value type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecordFromFields(fieldsNS, fieldsNS.ClassIRI("Person"), tt.fields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRecordToFields_RoundTrip(t *testing.T) {
	in := map[string]any{
		"name":   "Ada",
		"age":    int64(36),
		"height": 1.63,
		"tags":   []any{"a", "b"},
		"home": map[string]any{
			"$class": "Address",
			"city":   "Springfield",
		},
		"employer": map[string]any{"$ref": "https://example.org/ns/Org/instance/1"},
	}
	rec, err := RecordFromFields(fieldsNS, fieldsNS.ClassIRI("Person"), in)
	require.NoError(t, err)

	out := RecordToFields(fieldsNS, rec)
	assert.Equal(t, "Person", out["$class"])
	assert.Equal(t, "Ada", out["name"])
	assert.Equal(t, int64(36), out["age"])
	assert.Equal(t, "1.63", out["height"]) // decimal survives as string
	assert.Equal(t, []any{"a", "b"}, out["tags"])
	assert.Equal(t, map[string]any{"$ref": "https://example.org/ns/Org/instance/1"}, out["employer"])

	home := out["home"].(map[string]any)
	assert.Equal(t, "Address", home["$class"])
	assert.Equal(t, "Springfield", home["city"])
}

func TestRecordToFields_ForeignClassKeptWhole(t *testing.T) {
	rec := NewRecord("https://other.org/Thing")
	rec.Set("joined", Time(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	out := RecordToFields(fieldsNS, rec)
	assert.Equal(t, "https://other.org/Thing", out["$class"])
	assert.Equal(t, "2024-03-01T12:00:00Z", out["joined"])
}
