package shape

import (
	"fmt"
	"strconv"
	"strings"
)

// Turtle is the transfer format for shape graphs: a canonical, human-readable
// serialization whose layout is fixed so that exported shapes are diffable
// and re-importable with an identical content hash.
//
// The exporter emits exactly one node shape per document, one sh:property
// block per field in declaration order, and one predicate per line inside a
// block. The importer parses exactly that layout; it is not a general Turtle
// parser.

// prefixes emitted at the top of every document, in fixed order.
var turtlePrefixes = [][2]string{
	{"rdf", RDF},
	{"sh", SH},
	{"xsd", XSD},
	{"sf", SF},
}

// ExportTurtle serializes a shape descriptor to the transfer format.
func ExportTurtle(s *ShapeDescriptor) string {
	var b strings.Builder

	for _, p := range turtlePrefixes {
		fmt.Fprintf(&b, "@prefix %s: <%s> .\n", p[0], p[1])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "<%s> rdf:type sh:NodeShape ;\n", s.ShapeIRI())
	fmt.Fprintf(&b, "    sh:targetClass <%s> ;\n", s.TargetClass)
	if s.Closed {
		b.WriteString("    sh:closed true ;\n")
	}

	for _, f := range s.Fields {
		writePropertyBlock(&b, s.TargetClass, f)
	}

	b.WriteString("    .\n")
	return b.String()
}

func writePropertyBlock(b *strings.Builder, targetClass string, f FieldDescriptor) {
	b.WriteString("    sh:property [\n")
	fmt.Fprintf(b, "        sh:path <%s> ;\n", propertyPath(targetClass, f.Name))

	switch f.Kind {
	case KindUnion:
		b.WriteString("        sh:or (")
		for _, m := range f.Members {
			if m.Nested != "" {
				fmt.Fprintf(b, " [ sh:class <%s> ]", m.Nested)
			} else {
				fmt.Fprintf(b, " [ sh:datatype %s ]", datatypeTerm(m.Datatype))
			}
		}
		b.WriteString(" ) ;\n")
	default:
		if f.Datatype != "" {
			fmt.Fprintf(b, "        sh:datatype %s ;\n", datatypeTerm(f.Datatype))
		}
		if f.Nested != "" {
			fmt.Fprintf(b, "        sh:class <%s> ;\n", f.Nested)
		}
	}

	fmt.Fprintf(b, "        sh:minCount %d ;\n", f.MinCount)
	if f.MaxCount >= 0 {
		fmt.Fprintf(b, "        sh:maxCount %d ;\n", f.MaxCount)
	}

	for _, c := range f.Constraints {
		switch c.Kind {
		case ConstraintEnum:
			b.WriteString("        sh:in (")
			for _, v := range c.Values {
				fmt.Fprintf(b, " %s", turtleQuote(v))
			}
			b.WriteString(" ) ;\n")
		case ConstraintOpaquePredicate:
			fmt.Fprintf(b, "        sf:predicate %s ;\n", turtleQuote(c.Value))
			if c.Unsupported {
				b.WriteString("        sf:unsupported true ;\n")
			}
		case ConstraintPattern:
			fmt.Fprintf(b, "        sh:pattern %s ;\n", turtleQuote(c.Value))
		case ConstraintMinLength, ConstraintMaxLength:
			fmt.Fprintf(b, "        %s %s ;\n", constraintPrefixed(c.Kind), c.Value)
		case ConstraintMinInclusive, ConstraintMaxInclusive,
			ConstraintMinExclusive, ConstraintMaxExclusive:
			// Numeric bounds are typed literals so the lexical form survives.
			fmt.Fprintf(b, "        %s %s ;\n", constraintPrefixed(c.Kind), turtleQuote(c.Value))
		}
	}

	b.WriteString("    ] ;\n")
}

// propertyPath derives the sh:path IRI for a field. The field name is the
// final path segment, which is how the importer recovers it.
func propertyPath(targetClass, field string) string {
	return targetClass + "/" + field
}

// constraintPrefixed returns the prefixed name (sh:minLength etc.) for a
// constraint kind's term.
func constraintPrefixed(k ConstraintKind) string {
	return "sh:" + strings.TrimPrefix(constraintTerm[k], SH)
}

// datatypeTerm returns the prefixed xsd term for a datatype IRI.
func datatypeTerm(d Datatype) string {
	return "xsd:" + strings.TrimPrefix(string(d), XSD)
}

// turtleQuote escapes a string as a Turtle literal.
func turtleQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func turtleUnquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("not a quoted literal: %s", s)
	}
	body := s[1 : len(s)-1]
	var b strings.Builder
	escaped := false
	for _, r := range body {
		if !escaped {
			if r == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			return "", fmt.Errorf("unknown escape \\%c", r)
		}
		escaped = false
	}
	if escaped {
		return "", fmt.Errorf("dangling escape in literal: %s", s)
	}
	return b.String(), nil
}

// ImportTurtle parses a document produced by ExportTurtle back into a shape
// descriptor. Round-tripping preserves the content hash.
func ImportTurtle(doc string) (*ShapeDescriptor, error) {
	s := &ShapeDescriptor{}
	var cur *FieldDescriptor
	inProperty := false

	for lineNo, raw := range strings.Split(doc, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "@prefix") || line == "." {
			continue
		}
		line = strings.TrimSuffix(line, " ;")
		line = strings.TrimSuffix(line, ";")
		line = strings.TrimSpace(line)

		fail := func(msg string) error {
			return fmt.Errorf("turtle: line %d: %s", lineNo+1, msg)
		}

		switch {
		case strings.Contains(line, "rdf:type sh:NodeShape"):
			// Shape IRI is implied by targetClass; nothing to record.

		case strings.HasPrefix(line, "sh:targetClass "):
			iri, ok := parseIRI(strings.TrimPrefix(line, "sh:targetClass "))
			if !ok {
				return nil, fail("malformed sh:targetClass")
			}
			s.TargetClass = iri

		case line == "sh:closed true":
			s.Closed = true

		case line == "sh:property [":
			if inProperty {
				return nil, fail("nested sh:property block")
			}
			inProperty = true
			cur = &FieldDescriptor{MinCount: 0, MaxCount: -1}

		case line == "]":
			if !inProperty {
				return nil, fail("unmatched ]")
			}
			if err := finishField(cur); err != nil {
				return nil, fail(err.Error())
			}
			s.Fields = append(s.Fields, *cur)
			cur, inProperty = nil, false

		case inProperty:
			if err := parsePropertyLine(cur, line); err != nil {
				return nil, fail(err.Error())
			}

		default:
			return nil, fail(fmt.Sprintf("unexpected statement: %s", line))
		}
	}

	if inProperty {
		return nil, fmt.Errorf("turtle: unterminated sh:property block")
	}
	if s.TargetClass == "" {
		return nil, fmt.Errorf("turtle: missing sh:targetClass")
	}
	return s, nil
}

func parsePropertyLine(f *FieldDescriptor, line string) error {
	verb, rest, found := strings.Cut(line, " ")
	if !found {
		return fmt.Errorf("malformed statement: %s", line)
	}
	rest = strings.TrimSpace(rest)

	switch verb {
	case "sh:path":
		iri, ok := parseIRI(rest)
		if !ok {
			return fmt.Errorf("malformed sh:path")
		}
		f.Name = iri[strings.LastIndex(iri, "/")+1:]

	case "sh:datatype":
		f.Datatype = Datatype(XSD + strings.TrimPrefix(rest, "xsd:"))

	case "sh:class":
		iri, ok := parseIRI(rest)
		if !ok {
			return fmt.Errorf("malformed sh:class")
		}
		f.Nested = iri

	case "sh:or":
		members, err := parseUnionMembers(rest)
		if err != nil {
			return err
		}
		f.Members = members

	case "sh:minCount":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("malformed sh:minCount: %s", rest)
		}
		f.MinCount = n
		if n >= 1 {
			f.Constraints = append(f.Constraints, ConstraintSpec{Kind: ConstraintRequired})
		}

	case "sh:maxCount":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("malformed sh:maxCount: %s", rest)
		}
		f.MaxCount = n

	case "sh:minLength", "sh:maxLength":
		f.Constraints = append(f.Constraints, ConstraintSpec{
			Kind:  termConstraint[SH+strings.TrimPrefix(verb, "sh:")],
			Value: rest,
		})

	case "sh:pattern", "sh:minInclusive", "sh:maxInclusive", "sh:minExclusive", "sh:maxExclusive":
		v, err := turtleUnquote(rest)
		if err != nil {
			return err
		}
		f.Constraints = append(f.Constraints, ConstraintSpec{
			Kind:  termConstraint[SH+strings.TrimPrefix(verb, "sh:")],
			Value: v,
		})

	case "sh:in":
		values, err := parseLiteralList(rest)
		if err != nil {
			return err
		}
		f.Constraints = append(f.Constraints, ConstraintSpec{
			Kind:   ConstraintEnum,
			Values: values,
		})

	case "sf:predicate":
		v, err := turtleUnquote(rest)
		if err != nil {
			return err
		}
		f.Constraints = append(f.Constraints, ConstraintSpec{
			Kind:  ConstraintOpaquePredicate,
			Value: v,
		})

	case "sf:unsupported":
		// Applies to the most recent opaque predicate.
		for i := len(f.Constraints) - 1; i >= 0; i-- {
			if f.Constraints[i].Kind == ConstraintOpaquePredicate {
				f.Constraints[i].Unsupported = true
				break
			}
		}

	default:
		return fmt.Errorf("unknown predicate: %s", verb)
	}
	return nil
}

// finishField derives the structural kind from the parsed triples and puts
// the synthetic required-constraint in its canonical position.
func finishField(f *FieldDescriptor) error {
	if f.Name == "" {
		return fmt.Errorf("property block missing sh:path")
	}

	switch {
	case len(f.Members) > 0:
		f.Kind = KindUnion
	case f.MaxCount < 0:
		f.Kind = KindList
	case f.Nested != "":
		f.Kind = KindNested
	default:
		f.Kind = KindPrimitive
	}

	// The exporter writes constraints in descriptor order with required
	// first (it maps to sh:minCount, which precedes value constraints).
	// Re-establish that order so hashes match.
	var required, others []ConstraintSpec
	for _, c := range f.Constraints {
		if c.Kind == ConstraintRequired {
			required = append(required, c)
		} else {
			others = append(others, c)
		}
	}
	f.Constraints = append(required, others...)
	if len(f.Constraints) == 0 {
		f.Constraints = nil
	}
	return nil
}

func parseIRI(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// parseUnionMembers parses `( [ sh:datatype xsd:string ] [ sh:class <I> ] )`.
func parseUnionMembers(s string) ([]TypeRef, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("malformed sh:or list: %s", s)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])

	var members []TypeRef
	for s != "" {
		if !strings.HasPrefix(s, "[") {
			return nil, fmt.Errorf("malformed sh:or member: %s", s)
		}
		end := strings.Index(s, "]")
		if end < 0 {
			return nil, fmt.Errorf("unterminated sh:or member: %s", s)
		}
		inner := strings.TrimSpace(s[1:end])
		s = strings.TrimSpace(s[end+1:])

		verb, rest, found := strings.Cut(inner, " ")
		if !found {
			return nil, fmt.Errorf("malformed sh:or member: %s", inner)
		}
		rest = strings.TrimSpace(rest)
		switch verb {
		case "sh:datatype":
			members = append(members, TypeRef{Datatype: Datatype(XSD + strings.TrimPrefix(rest, "xsd:"))})
		case "sh:class":
			iri, ok := parseIRI(rest)
			if !ok {
				return nil, fmt.Errorf("malformed sh:class in sh:or")
			}
			members = append(members, TypeRef{Nested: iri})
		default:
			return nil, fmt.Errorf("unsupported sh:or member predicate: %s", verb)
		}
	}
	return members, nil
}

// parseLiteralList parses `( "a" "b" )`.
func parseLiteralList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("malformed literal list: %s", s)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])

	var values []string
	for s != "" {
		if s[0] != '"' {
			return nil, fmt.Errorf("malformed literal in list: %s", s)
		}
		// Find the closing unescaped quote.
		end := -1
		escaped := false
		for i := 1; i < len(s); i++ {
			if escaped {
				escaped = false
				continue
			}
			if s[i] == '\\' {
				escaped = true
				continue
			}
			if s[i] == '"' {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("unterminated literal in list: %s", s)
		}
		v, err := turtleUnquote(s[:end+1])
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		s = strings.TrimSpace(s[end+1:])
	}
	return values, nil
}
