package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/semforge/semforge/internal/query"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added (graph, predicate, object_value) index
const currentSchemaVersion = 1

// Embedded is a SQLite-backed quad store implementing GraphStore, for
// local use and tests. It honors the same unit semantics as the SPARQL
// client: one unit applies in one SQLite transaction.
type Embedded struct {
	db *sql.DB

	mu   sync.Mutex
	open map[string]*Unit
}

// Open creates or opens a quad store at the given path. Use ":memory:"
// for an ephemeral store.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Embedded, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Embedded{db: db, open: make(map[string]*Unit)}, nil
}

// Select implements GraphStore.
func (e *Embedded) Select(ctx context.Context, p Pattern) ([]Triple, error) {
	q, params, err := patternSQL(p)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, &ConnectionError{Endpoint: "sqlite", Err: fmt.Errorf("query quads: %w", err)}
	}
	defer rows.Close()

	var triples []Triple
	for rows.Next() {
		var subj, pred, kind, value, datatype string
		if err := rows.Scan(&subj, &pred, &kind, &value, &datatype); err != nil {
			return nil, fmt.Errorf("scan quad: %w", err)
		}
		triples = append(triples, Triple{
			Subject:   IRI(subj),
			Predicate: IRI(pred),
			Object:    Term{Kind: TermKind(kind), Value: value, Datatype: datatype},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quads: %w", err)
	}
	return triples, nil
}

// Ask implements GraphStore.
func (e *Embedded) Ask(ctx context.Context, p Pattern) (bool, error) {
	q, params, err := patternSQL(p)
	if err != nil {
		return false, err
	}

	var n int
	err = e.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM ("+q+"))", params...).Scan(&n)
	if err != nil {
		return false, &ConnectionError{Endpoint: "sqlite", Err: fmt.Errorf("ask quads: %w", err)}
	}
	return n > 0, nil
}

// Instances implements GraphStore.
func (e *Embedded) Instances(ctx context.Context, graph string, f *query.Fragment) ([]string, error) {
	q, params, err := query.CompileSQL(f, graph)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, &ConnectionError{Endpoint: "sqlite", Err: fmt.Errorf("query instances: %w", err)}
	}
	defer rows.Close()

	iris := []string{}
	for rows.Next() {
		var iri string
		if err := rows.Scan(&iri); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		iris = append(iris, iri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return iris, nil
}

// BeginUnit implements GraphStore.
func (e *Embedded) BeginUnit(graph string) (*Unit, error) {
	if graph == "" {
		return nil, &TransactionError{Err: fmt.Errorf("unit needs a named graph")}
	}
	u := newUnit(graph)
	e.mu.Lock()
	e.open[u.Handle] = u
	e.mu.Unlock()
	return u, nil
}

// Commit implements GraphStore. The whole unit applies in one SQLite
// transaction; inserts are idempotent via the UNIQUE constraint.
func (e *Embedded) Commit(ctx context.Context, u *Unit) error {
	if err := e.takeOpen(u); err != nil {
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() // No-op if committed

	if u.replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM quads WHERE graph = ?`, u.Graph); err != nil {
			return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("drop graph: %w", err)}
		}
	}

	for _, t := range u.deletes {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM quads
			WHERE graph = ? AND subject = ? AND predicate = ?
			  AND object_kind = ? AND object_value = ? AND object_datatype = ?
		`, u.Graph, t.Subject.Value, t.Predicate.Value,
			string(t.Object.Kind), t.Object.Value, t.Object.Datatype)
		if err != nil {
			return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("delete triple: %w", err)}
		}
	}

	for _, t := range u.inserts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quads
			(graph, subject, predicate, object_kind, object_value, object_datatype)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, u.Graph, t.Subject.Value, t.Predicate.Value,
			string(t.Object.Kind), t.Object.Value, t.Object.Datatype)
		if err != nil {
			return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("insert triple: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("commit: %w", err)}
	}

	u.state = unitCommitted
	return nil
}

// Rollback implements GraphStore.
func (e *Embedded) Rollback(u *Unit) error {
	if u == nil || u.state != unitOpen {
		return nil
	}
	e.mu.Lock()
	delete(e.open, u.Handle)
	e.mu.Unlock()
	u.state = unitRolledBack
	u.inserts, u.deletes = nil, nil
	return nil
}

// Ping implements GraphStore.
func (e *Embedded) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close implements GraphStore.
func (e *Embedded) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

func (e *Embedded) takeOpen(u *Unit) error {
	if u == nil {
		return &TransactionError{Err: fmt.Errorf("nil unit")}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if u.state != unitOpen {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("unit is not open")}
	}
	if _, ok := e.open[u.Handle]; !ok {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("unknown unit handle")}
	}
	delete(e.open, u.Handle)
	return nil
}

// patternSQL renders a pattern as a parameterized SELECT with the same
// deterministic ordering the SPARQL client requests.
func patternSQL(p Pattern) (string, []any, error) {
	if p.Graph == "" {
		return "", nil, fmt.Errorf("pattern needs a graph")
	}

	var b strings.Builder
	b.WriteString("SELECT subject, predicate, object_kind, object_value, object_datatype FROM quads WHERE graph = ?")
	params := []any{p.Graph}

	if p.Subject != nil {
		b.WriteString(" AND subject = ?")
		params = append(params, p.Subject.Value)
	}
	if p.Predicate != nil {
		b.WriteString(" AND predicate = ?")
		params = append(params, p.Predicate.Value)
	}
	if p.Object != nil {
		b.WriteString(" AND object_kind = ? AND object_value = ?")
		params = append(params, string(p.Object.Kind), p.Object.Value)
		if p.Object.Kind == TermLiteral {
			b.WriteString(" AND object_datatype = ?")
			params = append(params, p.Object.Datatype)
		}
	}

	b.WriteString(" ORDER BY subject COLLATE BINARY ASC, predicate COLLATE BINARY ASC, object_value COLLATE BINARY ASC")
	return b.String(), params, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the predicate/object lookup index for databases created
// before the schema carried it. New databases get it from schema.sql.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_quads_graph_predicate_object
		ON quads (graph, predicate, object_value)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}
