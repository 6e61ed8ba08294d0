package query

import (
	"fmt"
	"strings"

	"github.com/semforge/semforge/internal/shape"
)

// CompileSQL compiles a fragment to parameterized SQL over the embedded
// quad table. One self-join per condition, anchored on the rdf:type quad.
//
// Every query includes ORDER BY with COLLATE BINARY so result order is
// deterministic across runs, and values are always parameterized, never
// interpolated.
func CompileSQL(f *Fragment, graph string) (string, []any, error) {
	if f == nil || f.TargetClass == "" {
		return "", nil, fmt.Errorf("compile sql: fragment has no target class")
	}
	if graph == "" {
		return "", nil, fmt.Errorf("compile sql: no graph")
	}

	compares, err := flatten(f.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile sql: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT DISTINCT q0.subject FROM quads q0")
	for i := range compares {
		fmt.Fprintf(&b, "\nJOIN quads q%d ON q%d.graph = q0.graph AND q%d.subject = q0.subject", i+1, i+1, i+1)
	}

	params := []any{graph, shape.RDFType, f.TargetClass}
	b.WriteString("\nWHERE q0.graph = ? AND q0.predicate = ? AND q0.object_kind = 'iri' AND q0.object_value = ?")

	for i, c := range compares {
		alias := fmt.Sprintf("q%d", i+1)
		fmt.Fprintf(&b, "\nAND %s.predicate = ?", alias)
		params = append(params, f.TargetClass+"/"+c.Field)

		clause, value, err := compareClause(alias, c)
		if err != nil {
			return "", nil, fmt.Errorf("compile sql: field %q: %w", c.Field, err)
		}
		b.WriteString(" AND " + clause)
		params = append(params, value)
	}

	b.WriteString("\nORDER BY q0.subject ASC COLLATE BINARY")
	if f.Limit > 0 {
		b.WriteString("\nLIMIT ?")
		params = append(params, f.Limit)
	}

	return b.String(), params, nil
}

// compareClause renders one comparison against a quad alias. Integers and
// decimals compare numerically via CAST; date-times compare on their UTC
// RFC 3339 lexical forms, which order correctly as text.
func compareClause(alias string, c Compare) (string, any, error) {
	lex, ok := shape.Lexical(c.Value)
	if !ok {
		return "", nil, fmt.Errorf("value %T has no lexical form", c.Value)
	}

	col := alias + ".object_value"
	numeric := false
	switch c.Value.(type) {
	case shape.Integer, shape.Decimal:
		numeric = true
	}

	switch c.Op {
	case OpEq:
		return col + " = ?", lex, nil
	case OpNe:
		return col + " != ?", lex, nil
	case OpLt, OpLe, OpGt, OpGe:
		if numeric {
			return fmt.Sprintf("CAST(%s AS NUMERIC) %s CAST(? AS NUMERIC)", col, c.Op), lex, nil
		}
		return fmt.Sprintf("%s %s ?", col, c.Op), lex, nil
	case OpContains:
		return fmt.Sprintf("instr(%s, ?) > 0", col), lex, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
	}
}
