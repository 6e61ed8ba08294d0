package shape

// Well-known namespaces bound on every exported shape graph.
const (
	// SH is the SHACL vocabulary namespace.
	SH = "http://www.w3.org/ns/shacl#"

	// XSD is the XML Schema datatype namespace.
	XSD = "http://www.w3.org/2001/XMLSchema#"

	// RDF is the core RDF namespace.
	RDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// RDFS is the RDF Schema namespace.
	RDFS = "http://www.w3.org/2000/01/rdf-schema#"

	// SF is the semforge extension namespace, used for terms SHACL has no
	// equivalent for (opaque predicates, unsupported markers).
	SF = "https://semforge.dev/ns#"
)

// XSD datatype IRIs for the primitive taxonomy.
const (
	XSDString   = XSD + "string"
	XSDInteger  = XSD + "integer"
	XSDDecimal  = XSD + "decimal"
	XSDBoolean  = XSD + "boolean"
	XSDDateTime = XSD + "dateTime"
)

// SHACL term IRIs used by the exporter and the triple marshaler.
const (
	SHNodeShape    = SH + "NodeShape"
	SHTargetClass  = SH + "targetClass"
	SHProperty     = SH + "property"
	SHPath         = SH + "path"
	SHDatatype     = SH + "datatype"
	SHNode         = SH + "node"
	SHOr           = SH + "or"
	SHMinCount     = SH + "minCount"
	SHMaxCount     = SH + "maxCount"
	SHMinLength    = SH + "minLength"
	SHMaxLength    = SH + "maxLength"
	SHPattern      = SH + "pattern"
	SHMinInclusive = SH + "minInclusive"
	SHMaxInclusive = SH + "maxInclusive"
	SHMinExclusive = SH + "minExclusive"
	SHMaxExclusive = SH + "maxExclusive"
	SHIn           = SH + "in"
	SHClass        = SH + "class"
	SHClosed       = SH + "closed"
)

// Semforge extension term IRIs.
const (
	SFPredicate   = SF + "predicate"
	SFUnsupported = SF + "unsupported"
	SFContentHash = SF + "contentHash"

	// SFIndex records a property's declaration position. Triple sets are
	// unordered; the index puts fields back in schema order on import so
	// content hashes survive a store round trip.
	SFIndex = SF + "index"
)

const RDFType = RDF + "type"

// constraintTerm maps descriptor constraint kinds to their SHACL terms.
// Opaque predicates map to the extension namespace.
var constraintTerm = map[ConstraintKind]string{
	ConstraintMinLength:       SHMinLength,
	ConstraintMaxLength:       SHMaxLength,
	ConstraintPattern:         SHPattern,
	ConstraintMinInclusive:    SHMinInclusive,
	ConstraintMaxInclusive:    SHMaxInclusive,
	ConstraintMinExclusive:    SHMinExclusive,
	ConstraintMaxExclusive:    SHMaxExclusive,
	ConstraintEnum:            SHIn,
	ConstraintOpaquePredicate: SFPredicate,
}

// termConstraint is the inverse of constraintTerm, used by the importer.
var termConstraint = func() map[string]ConstraintKind {
	m := make(map[string]ConstraintKind, len(constraintTerm))
	for k, t := range constraintTerm {
		m[t] = k
	}
	return m
}()

// Namespace builds IRIs under a configured base namespace.
//
// Class and property IRIs are deterministic functions of (base, name), which
// is what makes target-class identifiers reproducible across runs.
type Namespace struct {
	base string
}

// NewNamespace creates a Namespace. The base must end with "/" or "#"; a
// trailing "/" is appended otherwise.
func NewNamespace(base string) Namespace {
	if base == "" {
		base = "https://semforge.dev/ns/"
	}
	last := base[len(base)-1]
	if last != '/' && last != '#' {
		base += "/"
	}
	return Namespace{base: base}
}

// Base returns the base IRI prefix.
func (n Namespace) Base() string { return n.base }

// ClassIRI returns the target-class IRI for a schema name.
func (n Namespace) ClassIRI(name string) string { return n.base + name }

// PropertyIRI returns the predicate IRI for a field of a class.
func (n Namespace) PropertyIRI(class, field string) string {
	return n.base + class + "/" + field
}

// InstanceIRI returns the IRI for an instance node of a class.
func (n Namespace) InstanceIRI(class, id string) string {
	return n.base + class + "/instance/" + id
}
