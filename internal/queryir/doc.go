// Package queryir is the query-builder representation the SQL adapter
// threads through the pipeline.
//
// A Select is an immutable value: every builder method returns a new Select
// and leaves its receiver untouched, so a Select can be handed to the
// pipeline as a builder and shared safely between branches.
//
//	[parsed descriptors] → [sqladapter] → [queryir.Select] → [querysql] → SQL + params
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods. Only types in this
// package implement them, so compilers can switch over them exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	case In:
//	case Like:
//	case IsNull:
//	case And:
//	}
//
// Values in predicates are plain Go values (string, bool, integers,
// float64, nil) and are always bound as parameters by the compiler.
// Identifiers (tables, columns) are checked by Validate because they are
// written into the SQL text.
package queryir
