package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semforge/semforge/internal/shape"
)

// RDF collection terms, used for sh:or and sh:in lists.
const (
	rdfFirst = shape.RDF + "first"
	rdfRest  = shape.RDF + "rest"
	rdfNil   = shape.RDF + "nil"
)

// ShapeTriples marshals a shape descriptor into the triples of its shape
// graph. The content hash rides along as sf:contentHash so readers compare
// hashes without re-deriving them, and each property node carries an
// sf:index so field order survives the round trip.
func ShapeTriples(desc *shape.ShapeDescriptor, hash string) []Triple {
	subj := IRI(desc.ShapeIRI())
	var ts []Triple
	add := func(s, p, o Term) { ts = append(ts, Triple{s, p, o}) }

	add(subj, IRI(shape.RDFType), IRI(shape.SHNodeShape))
	add(subj, IRI(shape.SHTargetClass), IRI(desc.TargetClass))
	if desc.Closed {
		add(subj, IRI(shape.SHClosed), TypedLiteral("true", shape.XSDBoolean))
	}
	if hash != "" {
		add(subj, IRI(shape.SFContentHash), Literal(hash))
	}

	for i, f := range desc.Fields {
		prop := Blank(fmt.Sprintf("p%d", i))
		add(subj, IRI(shape.SHProperty), prop)
		add(prop, IRI(shape.SFIndex), TypedLiteral(strconv.Itoa(i), shape.XSDInteger))
		add(prop, IRI(shape.SHPath), IRI(desc.TargetClass+"/"+f.Name))

		if len(f.Members) > 0 {
			head := marshalOrList(&ts, fmt.Sprintf("p%d", i), f.Members)
			add(prop, IRI(shape.SHOr), head)
		} else {
			if f.Datatype != "" {
				add(prop, IRI(shape.SHDatatype), IRI(string(f.Datatype)))
			}
			if f.Nested != "" {
				add(prop, IRI(shape.SHClass), IRI(f.Nested))
			}
		}

		add(prop, IRI(shape.SHMinCount), TypedLiteral(strconv.Itoa(f.MinCount), shape.XSDInteger))
		if f.MaxCount >= 0 {
			add(prop, IRI(shape.SHMaxCount), TypedLiteral(strconv.Itoa(f.MaxCount), shape.XSDInteger))
		}

		for _, c := range f.Constraints {
			switch c.Kind {
			case shape.ConstraintRequired:
				// Carried by sh:minCount.
			case shape.ConstraintEnum:
				head := marshalLiteralList(&ts, fmt.Sprintf("p%din", i), c.Values)
				add(prop, IRI(shape.SHIn), head)
			case shape.ConstraintOpaquePredicate:
				add(prop, IRI(shape.SFPredicate), Literal(c.Value))
				if c.Unsupported {
					add(prop, IRI(shape.SFUnsupported), TypedLiteral("true", shape.XSDBoolean))
				}
			case shape.ConstraintPattern:
				add(prop, IRI(shape.SHPattern), Literal(c.Value))
			case shape.ConstraintMinLength:
				add(prop, IRI(shape.SHMinLength), TypedLiteral(c.Value, shape.XSDInteger))
			case shape.ConstraintMaxLength:
				add(prop, IRI(shape.SHMaxLength), TypedLiteral(c.Value, shape.XSDInteger))
			case shape.ConstraintMinInclusive:
				add(prop, IRI(shape.SHMinInclusive), Literal(c.Value))
			case shape.ConstraintMaxInclusive:
				add(prop, IRI(shape.SHMaxInclusive), Literal(c.Value))
			case shape.ConstraintMinExclusive:
				add(prop, IRI(shape.SHMinExclusive), Literal(c.Value))
			case shape.ConstraintMaxExclusive:
				add(prop, IRI(shape.SHMaxExclusive), Literal(c.Value))
			}
		}
	}

	return ts
}

// marshalOrList emits the RDF list of a sh:or and returns its head term.
func marshalOrList(ts *[]Triple, label string, members []shape.TypeRef) Term {
	if len(members) == 0 {
		return IRI(rdfNil)
	}
	cells := make([]Term, len(members))
	for j := range members {
		cells[j] = Blank(fmt.Sprintf("%sc%d", label, j))
	}
	for j, m := range members {
		member := Blank(fmt.Sprintf("%sm%d", label, j))
		if m.Nested != "" {
			*ts = append(*ts, Triple{member, IRI(shape.SHClass), IRI(m.Nested)})
		} else {
			*ts = append(*ts, Triple{member, IRI(shape.SHDatatype), IRI(string(m.Datatype))})
		}
		*ts = append(*ts, Triple{cells[j], IRI(rdfFirst), member})
		rest := IRI(rdfNil)
		if j < len(members)-1 {
			rest = cells[j+1]
		}
		*ts = append(*ts, Triple{cells[j], IRI(rdfRest), rest})
	}
	return cells[0]
}

// marshalLiteralList emits the RDF list of a sh:in and returns its head.
func marshalLiteralList(ts *[]Triple, label string, values []string) Term {
	if len(values) == 0 {
		return IRI(rdfNil)
	}
	cells := make([]Term, len(values))
	for j := range values {
		cells[j] = Blank(fmt.Sprintf("%sc%d", label, j))
	}
	for j, v := range values {
		*ts = append(*ts, Triple{cells[j], IRI(rdfFirst), Literal(v)})
		rest := IRI(rdfNil)
		if j < len(values)-1 {
			rest = cells[j+1]
		}
		*ts = append(*ts, Triple{cells[j], IRI(rdfRest), rest})
	}
	return cells[0]
}

// tripleIndex groups triples by subject then predicate.
type tripleIndex map[string]map[string][]Term

// subjectKey identifies a subject by value alone. Backends do not always
// preserve the blank/IRI distinction in subject position, and blank labels
// never collide with absolute IRIs.
func subjectKey(t Term) string { return t.Value }

func indexTriples(ts []Triple) tripleIndex {
	idx := make(tripleIndex)
	for _, t := range ts {
		k := subjectKey(t.Subject)
		if idx[k] == nil {
			idx[k] = make(map[string][]Term)
		}
		idx[k][t.Predicate.Value] = append(idx[k][t.Predicate.Value], t.Object)
	}
	return idx
}

func (idx tripleIndex) one(subject Term, pred string) (Term, bool) {
	objs := idx[subjectKey(subject)][pred]
	if len(objs) == 0 {
		return Term{}, false
	}
	return objs[0], true
}

// list walks an RDF list from its head term.
func (idx tripleIndex) list(head Term) ([]Term, error) {
	var out []Term
	for i := 0; ; i++ {
		if i > 10000 {
			return nil, fmt.Errorf("rdf list too long or cyclic")
		}
		if head.Kind == TermIRI && head.Value == rdfNil {
			return out, nil
		}
		first, ok := idx.one(head, rdfFirst)
		if !ok {
			return nil, fmt.Errorf("rdf list cell missing rdf:first")
		}
		out = append(out, first)
		rest, ok := idx.one(head, rdfRest)
		if !ok {
			return nil, fmt.Errorf("rdf list cell missing rdf:rest")
		}
		head = rest
	}
}

// constraintRank fixes the canonical constraint order used when a
// descriptor is rebuilt from triples: required first, then value
// constraints. Descriptors whose schemas declared constraints in another
// order hash differently after a store round trip, which is why hash
// comparisons always use the stored sf:contentHash, never a recomputation.
var constraintRank = map[shape.ConstraintKind]int{
	shape.ConstraintRequired:        0,
	shape.ConstraintMinLength:       1,
	shape.ConstraintMaxLength:       2,
	shape.ConstraintPattern:         3,
	shape.ConstraintMinInclusive:    4,
	shape.ConstraintMaxInclusive:    5,
	shape.ConstraintMinExclusive:    6,
	shape.ConstraintMaxExclusive:    7,
	shape.ConstraintEnum:            8,
	shape.ConstraintOpaquePredicate: 9,
}

// ShapeFromTriples rebuilds a shape descriptor and its recorded content
// hash from the triples of one shape graph.
func ShapeFromTriples(ts []Triple) (*shape.ShapeDescriptor, string, error) {
	idx := indexTriples(ts)

	// The shape node is the subject typed sh:NodeShape.
	var subj Term
	found := false
	for _, t := range ts {
		if t.Predicate.Value == shape.RDFType && t.Object.Value == shape.SHNodeShape {
			subj = t.Subject
			found = true
			break
		}
	}
	if !found {
		return nil, "", fmt.Errorf("shape triples: no sh:NodeShape subject")
	}

	desc := &shape.ShapeDescriptor{}
	if o, ok := idx.one(subj, shape.SHTargetClass); ok {
		desc.TargetClass = o.Value
	} else {
		return nil, "", fmt.Errorf("shape triples: missing sh:targetClass")
	}
	if o, ok := idx.one(subj, shape.SHClosed); ok {
		desc.Closed = o.Value == "true"
	}
	hash := ""
	if o, ok := idx.one(subj, shape.SFContentHash); ok {
		hash = o.Value
	}

	props := idx[subjectKey(subj)][shape.SHProperty]
	sort.SliceStable(props, func(a, b int) bool {
		return propIndex(idx, props[a]) < propIndex(idx, props[b])
	})

	for _, prop := range props {
		fd, err := fieldFromTriples(idx, prop)
		if err != nil {
			return nil, "", fmt.Errorf("shape triples: %w", err)
		}
		desc.Fields = append(desc.Fields, fd)
	}

	return desc, hash, nil
}

func propIndex(idx tripleIndex, prop Term) int {
	if o, ok := idx.one(prop, shape.SFIndex); ok {
		if n, err := strconv.Atoi(o.Value); err == nil {
			return n
		}
	}
	return 1 << 30
}

func fieldFromTriples(idx tripleIndex, prop Term) (shape.FieldDescriptor, error) {
	fd := shape.FieldDescriptor{MinCount: 0, MaxCount: -1}

	path, ok := idx.one(prop, shape.SHPath)
	if !ok {
		return fd, fmt.Errorf("property node missing sh:path")
	}
	fd.Name = path.Value[strings.LastIndex(path.Value, "/")+1:]

	if o, ok := idx.one(prop, shape.SHDatatype); ok {
		fd.Datatype = shape.Datatype(o.Value)
	}
	if o, ok := idx.one(prop, shape.SHClass); ok {
		fd.Nested = o.Value
	}
	if o, ok := idx.one(prop, shape.SHMinCount); ok {
		n, err := strconv.Atoi(o.Value)
		if err != nil {
			return fd, fmt.Errorf("field %s: malformed sh:minCount", fd.Name)
		}
		fd.MinCount = n
		if n >= 1 {
			fd.Constraints = append(fd.Constraints, shape.ConstraintSpec{Kind: shape.ConstraintRequired})
		}
	}
	if o, ok := idx.one(prop, shape.SHMaxCount); ok {
		n, err := strconv.Atoi(o.Value)
		if err != nil {
			return fd, fmt.Errorf("field %s: malformed sh:maxCount", fd.Name)
		}
		fd.MaxCount = n
	}

	if head, ok := idx.one(prop, shape.SHOr); ok {
		members, err := idx.list(head)
		if err != nil {
			return fd, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		for _, m := range members {
			if o, ok := idx.one(m, shape.SHClass); ok {
				fd.Members = append(fd.Members, shape.TypeRef{Nested: o.Value})
			} else if o, ok := idx.one(m, shape.SHDatatype); ok {
				fd.Members = append(fd.Members, shape.TypeRef{Datatype: shape.Datatype(o.Value)})
			} else {
				return fd, fmt.Errorf("field %s: sh:or member has neither class nor datatype", fd.Name)
			}
		}
	}

	for term, kind := range map[string]shape.ConstraintKind{
		shape.SHMinLength:    shape.ConstraintMinLength,
		shape.SHMaxLength:    shape.ConstraintMaxLength,
		shape.SHPattern:      shape.ConstraintPattern,
		shape.SHMinInclusive: shape.ConstraintMinInclusive,
		shape.SHMaxInclusive: shape.ConstraintMaxInclusive,
		shape.SHMinExclusive: shape.ConstraintMinExclusive,
		shape.SHMaxExclusive: shape.ConstraintMaxExclusive,
	} {
		for _, o := range idx[subjectKey(prop)][term] {
			fd.Constraints = append(fd.Constraints, shape.ConstraintSpec{Kind: kind, Value: o.Value})
		}
	}

	if head, ok := idx.one(prop, shape.SHIn); ok {
		items, err := idx.list(head)
		if err != nil {
			return fd, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		values := make([]string, len(items))
		for i, it := range items {
			values[i] = it.Value
		}
		fd.Constraints = append(fd.Constraints, shape.ConstraintSpec{Kind: shape.ConstraintEnum, Values: values})
	}

	unsupported := false
	if o, ok := idx.one(prop, shape.SFUnsupported); ok {
		unsupported = o.Value == "true"
	}
	for _, o := range idx[subjectKey(prop)][shape.SFPredicate] {
		fd.Constraints = append(fd.Constraints, shape.ConstraintSpec{
			Kind:        shape.ConstraintOpaquePredicate,
			Value:       o.Value,
			Unsupported: unsupported,
		})
	}

	// Structural kind follows the same recovery rules as the transfer
	// format importer.
	switch {
	case len(fd.Members) > 0:
		fd.Kind = shape.KindUnion
	case fd.MaxCount < 0:
		fd.Kind = shape.KindList
	case fd.Nested != "":
		fd.Kind = shape.KindNested
	default:
		fd.Kind = shape.KindPrimitive
	}

	sort.SliceStable(fd.Constraints, func(a, b int) bool {
		return constraintRank[fd.Constraints[a].Kind] < constraintRank[fd.Constraints[b].Kind]
	})
	if len(fd.Constraints) == 0 {
		fd.Constraints = nil
	}
	return fd, nil
}

// RecordTriples marshals a data record, including all nested sub-records,
// into one triple set suitable for a single atomic unit. Returns the
// triples and the root instance IRI. Nested records get fresh instance
// identifiers and the parent links to them by IRI.
func RecordTriples(ns shape.Namespace, rec *shape.DataRecord, id string) ([]Triple, string, error) {
	if rec == nil || rec.TargetClass == "" {
		return nil, "", fmt.Errorf("record triples: record has no target class")
	}
	if id == "" {
		id = uuid.NewString()
	}

	subject := instanceIRI(ns, rec.TargetClass, id)
	var ts []Triple
	if err := recordTriples(ns, rec, subject, &ts); err != nil {
		return nil, "", err
	}
	return ts, subject, nil
}

func recordTriples(ns shape.Namespace, rec *shape.DataRecord, subject string, ts *[]Triple) error {
	subj := IRI(subject)
	*ts = append(*ts, Triple{subj, IRI(shape.RDFType), IRI(rec.TargetClass)})

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pred := IRI(rec.TargetClass + "/" + name)
		values := []shape.Value{rec.Fields[name]}
		if seq, ok := rec.Fields[name].(shape.Sequence); ok {
			values = seq
		}

		for _, v := range values {
			switch val := v.(type) {
			case *shape.DataRecord:
				if val.TargetClass == "" {
					return fmt.Errorf("record triples: nested record in %q has no target class", name)
				}
				child := instanceIRI(ns, val.TargetClass, uuid.NewString())
				*ts = append(*ts, Triple{subj, pred, IRI(child)})
				if err := recordTriples(ns, val, child, ts); err != nil {
					return err
				}
			case shape.Ref:
				*ts = append(*ts, Triple{subj, pred, IRI(string(val))})
			case shape.Sequence:
				return fmt.Errorf("record triples: nested sequence in %q", name)
			default:
				lex, ok := shape.Lexical(v)
				if !ok {
					return fmt.Errorf("record triples: field %q holds unsupported value %T", name, v)
				}
				obj := Literal(lex)
				if dt := shape.ValueDatatype(v); dt != "" && dt != shape.XSDString {
					obj = TypedLiteral(lex, string(dt))
				}
				*ts = append(*ts, Triple{subj, pred, obj})
			}
		}
	}
	return nil
}

// RecordFromTriples rebuilds the flat view of one instance from its
// triples. Object IRIs come back as Refs; resolving referenced instances
// into nested records is the caller's concern. A predicate repeated
// across triples comes back as a Sequence.
func RecordFromTriples(subject, classIRI string, ts []Triple) (*shape.DataRecord, error) {
	rec := shape.NewRecord(classIRI)
	prefix := classIRI + "/"

	for _, t := range ts {
		if t.Subject.Value != subject || t.Predicate.Value == shape.RDFType {
			continue
		}
		name := strings.TrimPrefix(t.Predicate.Value, prefix)
		if name == t.Predicate.Value {
			// Predicate outside the class namespace; take the last segment.
			name = t.Predicate.Value[strings.LastIndex(t.Predicate.Value, "/")+1:]
		}

		v, err := termValue(t.Object)
		if err != nil {
			return nil, fmt.Errorf("record triples: field %q: %w", name, err)
		}

		if existing, ok := rec.Fields[name]; ok {
			if seq, ok := existing.(shape.Sequence); ok {
				rec.Fields[name] = append(seq, v)
			} else {
				rec.Fields[name] = shape.Sequence{existing, v}
			}
		} else {
			rec.Fields[name] = v
		}
	}
	return rec, nil
}

func termValue(t Term) (shape.Value, error) {
	if t.Kind == TermIRI {
		return shape.Ref(t.Value), nil
	}
	switch t.Datatype {
	case "", shape.XSDString:
		return shape.String(t.Value), nil
	case shape.XSDInteger:
		n, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed integer literal %q", t.Value)
		}
		return shape.Integer(n), nil
	case shape.XSDDecimal:
		return shape.Decimal(t.Value), nil
	case shape.XSDBoolean:
		return shape.Bool(t.Value == "true"), nil
	case shape.XSDDateTime:
		tm, err := time.Parse(time.RFC3339, t.Value)
		if err != nil {
			return nil, fmt.Errorf("malformed dateTime literal %q", t.Value)
		}
		return shape.Time(tm), nil
	default:
		return shape.String(t.Value), nil
	}
}

// instanceIRI derives an instance IRI for a class. Classes under the
// configured namespace use the standard instance layout; foreign classes
// fall back to suffixing the class IRI.
func instanceIRI(ns shape.Namespace, classIRI, id string) string {
	if name := strings.TrimPrefix(classIRI, ns.Base()); name != classIRI {
		return ns.InstanceIRI(name, id)
	}
	return classIRI + "/instance/" + id
}
