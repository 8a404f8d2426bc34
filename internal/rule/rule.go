// Package rule is a small value-schema library for loosely typed request data.
//
// Schemas are composed from constructors (String, Number, Array, Object,
// Alternatives, ...) and refined with chained methods:
//
//	order := rule.String().Insensitive().Valid("asc", "desc")
//	page := rule.Alternatives(
//	    rule.Number().Integer().Positive(),
//	    rule.Object(rule.Key("size", rule.Number().Integer().Positive())),
//	)
//
// Validate returns the value converted to its canonical form (numeric strings
// become numbers, case-insensitive enum values become the declared spelling)
// or the first violation found as an *Error. Validation stops at the first
// violation; there is no aggregation.
package rule

import (
	"strings"
)

// Schema validates and converts a single value.
type Schema interface {
	// Validate checks v located at path and returns its converted form.
	Validate(v any, path []string) (any, error)

	// TypeName names the schema's base type, used when an alternation
	// reports that no alternative accepted the value.
	TypeName() string
}

// Error is a single validation failure.
type Error struct {
	// Path locates the offending value: object keys and array indexes from
	// the root of the validated value.
	Path []string

	// Reason is the human-readable failure, e.g. "must be a number".
	Reason string

	// mismatch marks failures of a schema's base type check. Alternatives
	// use it to tell "wrong kind of value" from "right kind, bad content".
	mismatch bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return e.Reason
	}
	return strings.Join(e.Path, ".") + " " + e.Reason
}

// TypeMismatch reports whether the failure came from a base type check.
func (e *Error) TypeMismatch() bool {
	return e.mismatch
}

func fail(path []string, reason string) *Error {
	return &Error{Path: clonePath(path), Reason: reason}
}

func mismatch(path []string, reason string) *Error {
	return &Error{Path: clonePath(path), Reason: reason, mismatch: true}
}

// child returns path extended with seg without aliasing the caller's slice.
func child(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

func clonePath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}
