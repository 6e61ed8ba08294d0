// Package harness runs validation scenarios end to end.
//
// A scenario compiles CUE schemas into shapes, registers them in an
// embedded in-memory store, validates records against the stored shapes,
// and checks the resulting reports against declared expectations. The
// full reports can additionally be compared against golden snapshots.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schemas:
//	  - schemas/person.cue
//	namespace: https://example.org/ns/
//	closed: true
//	cases:
//	  - name: conforming record
//	    schema: Person
//	    record:
//	      name: Ada
//	      age: 36
//	    expect:
//	      conforms: true
//	  - name: out of bounds
//	    schema: Person
//	    record: { name: Ada, age: 200 }
//	    expect:
//	      conforms: false
//	      results:
//	        - path: age
//	          constraint: max-exclusive
//
// Schema paths are relative to the scenario file. Expected results use
// contains semantics: every listed result must appear in the report, and
// the report may carry more.
//
// # Records
//
// Case records are plain YAML values, converted through
// shape.RecordFromFields: strings, integers, booleans and floats map to
// the corresponding record values (floats become decimal lexicals, never
// float64), lists become sequences, and maps become nested records. The
// reserved "$class" key names a nested record's schema, and a map
// holding only "$ref" becomes an IRI reference to a stored instance.
//
// # Determinism
//
// Every run uses a fresh in-memory store, and reports list results in
// shape field order, so the same scenario produces byte-identical
// snapshots across runs.
package harness
