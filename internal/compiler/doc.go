// Package compiler turns schema definitions into field descriptors.
//
// The core never performs host-language reflection: schema definitions reach
// it through the Source adapter interface, which yields host-agnostic field
// definitions. The CUE adapter in this package is the reference
// implementation - CUE natively expresses the constrained-schema surface
// (string/number bounds, patterns, enumerations, optional fields, nested and
// recursive references) that the descriptor model covers.
//
// Mapping is split in two pure, stateless layers: the TypeMapper classifies
// a declared type into the supported taxonomy and assigns its datatype tag;
// the ConstraintMapper translates each field constraint into a constraint
// spec, tagging anything it cannot express natively as an unsupported
// opaque predicate rather than dropping it.
package compiler
