package store

import "fmt"

// ConnectionError is a transport-level fault talking to the store: the
// request never completed, or the retry budget ran out on server errors.
// Attempts counts the calls made before giving up, which can be fewer
// than the budget when the context is canceled mid-flight. Query
// rejections (4xx) and malformed result bodies are not transport faults
// and surface as plain errors.
type ConnectionError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("store unreachable at %s after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
	}
	return fmt.Sprintf("store unreachable at %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransactionError is a failed commit or an invalid unit state. Never
// retried internally; the caller decides whether to re-submit the unit.
type TransactionError struct {
	Handle string
	Graph  string
	Err    error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("unit %s on graph %s: %v", e.Handle, e.Graph, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
