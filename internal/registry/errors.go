package registry

import (
	"fmt"
	"strings"

	"github.com/semforge/semforge/internal/compiler"
)

// ConflictError reports that a concurrent writer committed a different
// shape for the same target class. The caller must re-read and retry with
// fresh state.
type ConflictError struct {
	TargetClass string
	StoredHash  string
	OfferedHash string
	Err         error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("shape conflict on %s: store holds %s, offered %s: %v",
		e.TargetClass, e.StoredHash, e.OfferedHash, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// NotFoundError reports that no shape is registered for a target class.
type NotFoundError struct {
	TargetClass string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no shape registered for %s", e.TargetClass)
}

// InvalidDescriptorError rejects a descriptor that failed structural
// validation before anything reached the store.
type InvalidDescriptorError struct {
	TargetClass string
	Problems    []compiler.ValidationError
}

func (e *InvalidDescriptorError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid shape descriptor for %s: %s",
		e.TargetClass, strings.Join(msgs, "; "))
}
