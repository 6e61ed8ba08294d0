// Package shape defines the portable constraint-shape representation: field
// and shape descriptors, the sealed record value taxonomy, canonical JSON
// serialization, content-addressed hashing, and the Turtle transfer format.
//
// Descriptors are immutable once produced. A shape's content hash is a pure
// function of its target class, ordered fields, and closed flag, so two
// independently generated descriptors for an unchanged schema always hash
// identically - that property is what gates store writes upstream.
//
// The package has no I/O and no dependencies on the store or compiler layers.
package shape
