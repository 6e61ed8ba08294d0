package compiler

import (
	"fmt"

	"github.com/semforge/semforge/internal/shape"
)

// primitiveDatatype maps adapter-level primitive kinds to XSD datatype tags.
// Pure table; no side effects.
var primitiveDatatype = map[TypeDefKind]shape.Datatype{
	TypeString:   shape.DatatypeString,
	TypeInteger:  shape.DatatypeInteger,
	TypeDecimal:  shape.DatatypeDecimal,
	TypeBoolean:  shape.DatatypeBoolean,
	TypeDateTime: shape.DatatypeDateTime,
}

// MapType classifies a declared type into the descriptor taxonomy, filling
// the kind, datatype, nested reference, and cardinality bounds of a field
// descriptor. Cardinality follows the declared shape:
//
//	optional T  -> MinCount 0, MaxCount 1
//	required T  -> MinCount 1, MaxCount 1
//	list of T   -> MaxCount unbounded; MinCount 1 only when required
//	union       -> per-member fragments, scalar cardinality
//	schema ref  -> nested reference by target-class IRI
//
// MapType is pure given a fixed namespace.
func MapType(ns shape.Namespace, def TypeDef, optional bool) (shape.FieldDescriptor, error) {
	fd := shape.FieldDescriptor{MinCount: 1, MaxCount: 1}
	if optional {
		fd.MinCount = 0
	}

	switch def.Kind {
	case TypeString, TypeInteger, TypeDecimal, TypeBoolean, TypeDateTime:
		fd.Kind = shape.KindPrimitive
		fd.Datatype = primitiveDatatype[def.Kind]

	case TypeList:
		if def.Elem == nil {
			return fd, fmt.Errorf("list type has no element type")
		}
		fd.Kind = shape.KindList
		fd.MaxCount = -1
		switch def.Elem.Kind {
		case TypeSchema:
			if def.Elem.Schema == nil {
				return fd, fmt.Errorf("list element references no schema")
			}
			fd.Nested = ns.ClassIRI(def.Elem.Schema.Name())
		case TypeList, TypeUnion:
			return fd, fmt.Errorf("unsupported list element kind")
		default:
			fd.Datatype = primitiveDatatype[def.Elem.Kind]
		}

	case TypeUnion:
		fd.Kind = shape.KindUnion
		for _, m := range def.Members {
			switch m.Kind {
			case TypeSchema:
				if m.Schema == nil {
					return fd, fmt.Errorf("union member references no schema")
				}
				fd.Members = append(fd.Members, shape.TypeRef{Nested: ns.ClassIRI(m.Schema.Name())})
			case TypeList, TypeUnion:
				return fd, fmt.Errorf("unsupported union member kind")
			default:
				fd.Members = append(fd.Members, shape.TypeRef{Datatype: primitiveDatatype[m.Kind]})
			}
		}

	case TypeSchema:
		if def.Schema == nil {
			return fd, fmt.Errorf("nested type references no schema")
		}
		fd.Kind = shape.KindNested
		fd.Nested = ns.ClassIRI(def.Schema.Name())

	default:
		return fd, fmt.Errorf("unknown type kind %d", def.Kind)
	}

	return fd, nil
}
