package shape

import (
	"fmt"
	"math/big"
	"time"
)

// Value is a sealed interface over the types a DataRecord field may hold.
// Only String, Integer, Decimal, Bool, Time, Ref, Sequence, and *DataRecord
// implement it.
//
// There is no float value: decimals carry their lexical form and are compared
// as rationals, which keeps record serialization deterministic.
type Value interface {
	value() // Sealed - only these types implement it
}

// String is a string value.
type String string

func (String) value() {}

// Integer is an integer value. Always int64.
type Integer int64

func (Integer) value() {}

// Decimal is a decimal value carried in lexical form (e.g. "12.50").
type Decimal string

func (Decimal) value() {}

// Rat parses the decimal's lexical form as a rational number.
func (d Decimal) Rat() (*big.Rat, bool) {
	r := new(big.Rat)
	_, ok := r.SetString(string(d))
	return r, ok
}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Time is a date-time value.
type Time time.Time

func (Time) value() {}

// Lexical returns the RFC 3339 form used on the wire and in hashing.
func (t Time) Lexical() string {
	return time.Time(t).UTC().Format(time.RFC3339)
}

// Ref is an IRI reference to another stored instance.
type Ref string

func (Ref) value() {}

// Sequence is an ordered list of values.
type Sequence []Value

func (Sequence) value() {}

// DataRecord is a field-name to value mapping, optionally tagged with the
// target-class IRI of the shape it claims to conform to.
type DataRecord struct {
	// TargetClass is the class IRI this record claims conformance with.
	// May be empty when validating against an explicitly supplied shape.
	TargetClass string

	Fields map[string]Value
}

func (*DataRecord) value() {}

// NewRecord creates an empty DataRecord for a target class.
func NewRecord(targetClass string) *DataRecord {
	return &DataRecord{TargetClass: targetClass, Fields: make(map[string]Value)}
}

// Set assigns a field value and returns the record for chaining.
func (r *DataRecord) Set(name string, v Value) *DataRecord {
	r.Fields[name] = v
	return r
}

// Lexical returns the canonical lexical form of a scalar value, and whether
// the value is a scalar at all. Sequences and nested records have no lexical
// form.
func Lexical(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Integer:
		return fmt.Sprintf("%d", int64(val)), true
	case Decimal:
		return string(val), true
	case Bool:
		if val {
			return "true", true
		}
		return "false", true
	case Time:
		return val.Lexical(), true
	case Ref:
		return string(val), true
	default:
		return "", false
	}
}

// ValueDatatype returns the XSD datatype tag a scalar value naturally carries.
// Refs and non-scalars return "".
func ValueDatatype(v Value) Datatype {
	switch v.(type) {
	case String:
		return DatatypeString
	case Integer:
		return DatatypeInteger
	case Decimal:
		return DatatypeDecimal
	case Bool:
		return DatatypeBoolean
	case Time:
		return DatatypeDateTime
	default:
		return ""
	}
}
