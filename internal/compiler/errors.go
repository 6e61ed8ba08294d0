package compiler

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// Introspection error codes (E100-E119).
const (
	ErrUnclassifiableType = "E100" // type cannot be classified into the taxonomy
	ErrEmptySchema        = "E101" // schema has no fields
	ErrDuplicateField     = "E102" // duplicate field name
	ErrBadConstraint      = "E103" // constraint parameter malformed
	ErrBadSchemaRef       = "E104" // nested schema reference cannot be resolved
	ErrBadPattern         = "E105" // pattern does not compile
	ErrBadAttribute       = "E106" // malformed field attribute
)

// SchemaError reports that a schema definition cannot be decomposed into the
// supported type taxonomy. Fatal to registering that schema; other schemas
// are unaffected.
type SchemaError struct {
	Schema  string
	Field   string
	Code    string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	where := e.Schema
	if e.Field != "" {
		where += "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, where, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, where, e.Message)
}
