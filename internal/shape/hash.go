package shape

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix enables
// future algorithm migration without colliding with old hashes.
const (
	DomainShape  = "semforge/shape/v1"
	DomainRecord = "semforge/record/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes the content-addressed identity of a shape descriptor.
//
// The hash is a pure function of the target-class IRI, the ordered field
// descriptors, and the closed flag: two independently generated descriptors
// for an unchanged schema hash identically. Diagnostics do not participate
// beyond the Unsupported flags already present on constraint specs.
func ContentHash(s *ShapeDescriptor) (string, error) {
	canonical, err := MarshalCanonical(s.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal %s: %w", s.TargetClass, err)
	}
	return hashWithDomain(DomainShape, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when the descriptor is known to be hashable.
func MustContentHash(s *ShapeDescriptor) string {
	h, err := ContentHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// canonicalMap converts the descriptor into the plain map form consumed by
// MarshalCanonical. Field order is preserved by encoding fields as an array.
func (s *ShapeDescriptor) canonicalMap() map[string]any {
	fields := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.canonicalMap()
	}
	return map[string]any{
		"target_class": s.TargetClass,
		"closed":       s.Closed,
		"fields":       fields,
	}
}

func (f FieldDescriptor) canonicalMap() map[string]any {
	m := map[string]any{
		"name":      f.Name,
		"kind":      string(f.Kind),
		"min_count": f.MinCount,
		"max_count": f.MaxCount,
	}
	if f.Datatype != "" {
		m["datatype"] = string(f.Datatype)
	}
	if f.Nested != "" {
		m["nested"] = f.Nested
	}
	if len(f.Members) > 0 {
		members := make([]any, len(f.Members))
		for i, ref := range f.Members {
			rm := map[string]any{}
			if ref.Datatype != "" {
				rm["datatype"] = string(ref.Datatype)
			}
			if ref.Nested != "" {
				rm["nested"] = ref.Nested
			}
			members[i] = rm
		}
		m["members"] = members
	}
	if len(f.Constraints) > 0 {
		constraints := make([]any, len(f.Constraints))
		for i, c := range f.Constraints {
			cm := map[string]any{"kind": string(c.Kind)}
			if c.Value != "" {
				cm["value"] = c.Value
			}
			if len(c.Values) > 0 {
				cm["values"] = c.Values
			}
			if c.Unsupported {
				cm["unsupported"] = true
			}
			constraints[i] = cm
		}
		m["constraints"] = constraints
	}
	return m
}

// RecordHash computes a content-addressed identity for a data record, used
// when a stable instance identifier is needed without a caller-supplied ID.
func RecordHash(r *DataRecord) (string, error) {
	m, err := recordCanonicalMap(r)
	if err != nil {
		return "", err
	}
	canonical, err := MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("RecordHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

func recordCanonicalMap(r *DataRecord) (map[string]any, error) {
	fields := make(map[string]any, len(r.Fields))
	for name, v := range r.Fields {
		cv, err := valueCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = cv
	}
	return map[string]any{
		"target_class": r.TargetClass,
		"fields":       fields,
	}, nil
}

// valueCanonical lowers a record value to the canonical JSON input types.
// Scalars other than Integer and Bool travel as tagged lexical strings to
// keep decimals and timestamps float-free and unambiguous.
func valueCanonical(v Value) (any, error) {
	switch val := v.(type) {
	case Integer:
		return int64(val), nil
	case Bool:
		return bool(val), nil
	case String:
		return "s:" + string(val), nil
	case Decimal:
		return "d:" + string(val), nil
	case Time:
		return "t:" + val.Lexical(), nil
	case Ref:
		return "r:" + string(val), nil
	case Sequence:
		arr := make([]any, len(val))
		for i, elem := range val {
			cv, err := valueCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case *DataRecord:
		return recordCanonicalMap(val)
	default:
		return nil, fmt.Errorf("unsupported record value type: %T", v)
	}
}
