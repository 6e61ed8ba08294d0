package shape

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Reserved keys for the plain-map record form. "$class" names a nested
// record's schema; a map holding only "$ref" is an IRI reference.
const (
	FieldKeyClass = "$class"
	FieldKeyRef   = "$ref"
)

// RecordFromFields converts a plain decoded map (YAML or JSON) into a
// DataRecord for a target class. Floats become decimal lexicals, so no
// float64 survives into hashing or comparison.
func RecordFromFields(ns Namespace, targetClass string, fields map[string]any) (*DataRecord, error) {
	rec := NewRecord(targetClass)
	for name, raw := range fields {
		if name == FieldKeyClass {
			continue
		}
		v, err := valueFromField(ns, raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		rec.Set(name, v)
	}
	return rec, nil
}

func valueFromField(ns Namespace, raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Integer(v), nil
	case int64:
		return Integer(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows", v)
		}
		return Integer(v), nil
	case float64:
		return Decimal(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case time.Time:
		return Time(v), nil
	case []any:
		seq := make(Sequence, 0, len(v))
		for i, elem := range v {
			val, err := valueFromField(ns, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			seq = append(seq, val)
		}
		return seq, nil
	case map[string]any:
		return recordValueFromField(ns, v)
	case nil:
		return nil, fmt.Errorf("null values are not representable")
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}

func recordValueFromField(ns Namespace, m map[string]any) (Value, error) {
	if ref, ok := m[FieldKeyRef]; ok {
		if len(m) != 1 {
			return nil, fmt.Errorf("%q does not combine with other keys", FieldKeyRef)
		}
		iri, ok := ref.(string)
		if !ok {
			return nil, fmt.Errorf("%q needs a string IRI", FieldKeyRef)
		}
		return Ref(iri), nil
	}

	targetClass := ""
	if class, ok := m[FieldKeyClass]; ok {
		name, ok := class.(string)
		if !ok {
			return nil, fmt.Errorf("%q needs a schema name", FieldKeyClass)
		}
		targetClass = ns.ClassIRI(name)
	}
	return RecordFromFields(ns, targetClass, m)
}

// RecordToFields is the inverse of RecordFromFields: a plain map ready
// for YAML or JSON encoding. Decimals and dateTimes stay strings; nested
// records carry "$class" when their class sits under the namespace.
func RecordToFields(ns Namespace, rec *DataRecord) map[string]any {
	out := make(map[string]any, len(rec.Fields)+1)
	if rec.TargetClass != "" {
		out[FieldKeyClass] = strings.TrimPrefix(rec.TargetClass, ns.Base())
	}
	for name, v := range rec.Fields {
		out[name] = valueToField(ns, v)
	}
	return out
}

func valueToField(ns Namespace, v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Integer:
		return int64(val)
	case Decimal:
		return string(val)
	case Bool:
		return bool(val)
	case Time:
		return val.Lexical()
	case Ref:
		return map[string]any{FieldKeyRef: string(val)}
	case Sequence:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = valueToField(ns, elem)
		}
		return out
	case *DataRecord:
		return RecordToFields(ns, val)
	default:
		return nil
	}
}
