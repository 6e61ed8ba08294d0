package query

import (
	"fmt"
	"strings"

	"github.com/semforge/semforge/internal/shape"
)

// CompileSPARQL compiles a fragment to a SPARQL SELECT over one named
// graph. The projected variable is ?instance; results are ordered by
// instance IRI so repeated queries return rows in the same order.
func CompileSPARQL(f *Fragment, graph string) (string, error) {
	if f == nil || f.TargetClass == "" {
		return "", fmt.Errorf("compile sparql: fragment has no target class")
	}
	if graph == "" {
		return "", fmt.Errorf("compile sparql: no graph")
	}

	compares, err := flatten(f.Filter)
	if err != nil {
		return "", fmt.Errorf("compile sparql: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT ?instance WHERE {\n")
	fmt.Fprintf(&b, "  GRAPH <%s> {\n", graph)
	fmt.Fprintf(&b, "    ?instance <%s> <%s> .\n", shape.RDFType, f.TargetClass)

	for i, c := range compares {
		prop := f.TargetClass + "/" + c.Field
		lit, err := sparqlTerm(c.Value)
		if err != nil {
			return "", fmt.Errorf("compile sparql: field %q: %w", c.Field, err)
		}

		if c.Op == OpEq {
			// Equality binds the object directly; no filter needed.
			fmt.Fprintf(&b, "    ?instance <%s> %s .\n", prop, lit)
			continue
		}

		v := fmt.Sprintf("?v%d", i)
		fmt.Fprintf(&b, "    ?instance <%s> %s .\n", prop, v)
		switch c.Op {
		case OpNe, OpLt, OpLe, OpGt, OpGe:
			fmt.Fprintf(&b, "    FILTER(%s %s %s)\n", v, c.Op, lit)
		case OpContains:
			s, _ := shape.Lexical(c.Value)
			fmt.Fprintf(&b, "    FILTER(CONTAINS(STR(%s), %s))\n", v, quoteSPARQL(s))
		default:
			return "", fmt.Errorf("compile sparql: unsupported operator %q", c.Op)
		}
	}

	b.WriteString("  }\n")
	b.WriteString("}\n")
	b.WriteString("ORDER BY ?instance")
	if f.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d", f.Limit)
	}
	return b.String(), nil
}

// flatten reduces a condition tree to its comparisons. Only All and
// Compare exist in the fragment, so the result is a plain conjunction.
func flatten(c Condition) ([]Compare, error) {
	if c == nil {
		return nil, nil
	}
	switch cond := c.(type) {
	case Compare:
		return []Compare{cond}, nil
	case *Compare:
		return []Compare{*cond}, nil
	case All:
		return flattenAll(cond.Conditions)
	case *All:
		return flattenAll(cond.Conditions)
	default:
		return nil, fmt.Errorf("unsupported condition type: %T", c)
	}
}

func flattenAll(conds []Condition) ([]Compare, error) {
	var out []Compare
	for _, sub := range conds {
		cs, err := flatten(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

// sparqlTerm renders a scalar value as a SPARQL term. Integers and booleans
// use the bare numeric/boolean forms, which the store treats as their XSD
// types; decimals and date-times carry explicit datatype IRIs so lexical
// forms are never re-interpreted.
func sparqlTerm(v shape.Value) (string, error) {
	switch val := v.(type) {
	case shape.String:
		return quoteSPARQL(string(val)), nil
	case shape.Integer:
		return fmt.Sprintf("%d", int64(val)), nil
	case shape.Decimal:
		return fmt.Sprintf("%s^^<%s>", quoteSPARQL(string(val)), shape.XSDDecimal), nil
	case shape.Bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case shape.Time:
		return fmt.Sprintf("%s^^<%s>", quoteSPARQL(val.Lexical()), shape.XSDDateTime), nil
	case shape.Ref:
		return fmt.Sprintf("<%s>", string(val)), nil
	default:
		return "", fmt.Errorf("value %T has no term form", v)
	}
}

func quoteSPARQL(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return `"` + r.Replace(s) + `"`
}
