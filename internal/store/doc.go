// Package store provides graph-store backends for shape and instance data.
//
// Two implementations of GraphStore ship:
//   - Client: a SPARQL 1.1 protocol client (separate query and update
//     endpoints, e.g. Fuseki)
//   - Embedded: a SQLite-backed quad store for local and test use
//
// # Critical Patterns
//
// CP-1: Atomic Units
//   - All writes go through a Unit: buffered inserts and deletes are
//     committed as one SPARQL update request or one SQLite transaction
//   - A failed commit leaves the graph untouched
//
// CP-2: Bounded Retry on Reads Only
//   - Select/Ask/Instances retry transient failures with doubling
//     backoff capped by RetryConfig
//   - Commit is NEVER retried automatically; the caller decides
//
// CP-4: Deterministic Query Results
//   - All reads order results; SQLite reads use COLLATE BINARY
//   - Ensures identical results across runs
//
// # Database Configuration (Embedded)
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait on locks instead of failing
//   - Single connection: serialized writes
//
// Shapes and records cross the triple boundary via the marshalers in
// marshal.go; content hashes ride along as sf:contentHash literals.
package store
