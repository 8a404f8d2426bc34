// Package harness runs query conformance scenarios against a declared
// resource and an in-memory SQLite database.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: people_listing
//	description: "What this scenario validates"
//	resource: people.cue
//	setup: |
//	  CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, age INTEGER);
//	  INSERT INTO people VALUES (1, 'ada', 36), (2, 'bob', 30);
//	cases:
//	  - name: older first
//	    query: "sort[age]=desc&page[size]=1"
//	    expect:
//	      sql: "SELECT * FROM people ORDER BY age DESC, id ASC LIMIT ? OFFSET ?"
//	      params: [1, 0]
//	      rows:
//	        - {name: ada}
//	  - name: unknown filter
//	    json: '{"filter": {"height": 1}}'
//	    expect:
//	      error: "filter:height is not allowed"
//	      layer: shape
//
// The resource path is relative to the scenario file. A case gives its query
// either as a query string (query) or as a JSON object (json).
//
// # Expectations
//
//   - sql, params: the compiled statement
//   - rows: expected rows in order; each row is a subset match
//   - count: the number of rows returned
//   - error, layer: the rejection message and validation layer
//
// # Deterministic Testing
//
// Every case runs with a fixed request ID ("<scenario>-<case index>") and the
// resource's tie-breaker, so traces are identical across runs and can be
// compared against golden files with RunWithGolden.
package harness
