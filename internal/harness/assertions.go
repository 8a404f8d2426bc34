package harness

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/roach88/querier/internal/store"
)

// Expectation types reported in AssertionError.Type.
const (
	AssertSQL    = "sql"
	AssertParams = "params"
	AssertRows   = "rows"
	AssertCount  = "count"
	AssertError  = "error"
	AssertLayer  = "layer"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Expectation type for categorization
	Case     string     // Case name
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Event    TraceEvent // What the case produced
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (case %q)\n", e.Type, e.Case)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Event.SQL != "" {
		fmt.Fprintf(&buf, "\nStatement:\n  %s\n  params: %v\n", e.Event.SQL, e.Event.Params)
	}
	if e.Event.Error != "" {
		fmt.Fprintf(&buf, "\nRejected:\n  %s\n", e.Event.Error)
	}

	return buf.String()
}

// checkExpect compares a case's event against its expectations and returns
// every failure.
func checkExpect(event TraceEvent, expect Expect) []error {
	fail := func(kind, expected, actual string) error {
		return &AssertionError{Type: kind, Case: event.Case, Expected: expected, Actual: actual, Event: event}
	}

	var errs []error
	if expect.rejects() {
		if event.Error == "" {
			errs = append(errs, fail(AssertError, fmt.Sprintf("rejection %q", expect.Error), "query accepted"))
			return errs
		}
		if expect.Error != "" && event.Error != expect.Error {
			errs = append(errs, fail(AssertError, expect.Error, event.Error))
		}
		if expect.Layer != "" && event.Layer != expect.Layer {
			errs = append(errs, fail(AssertLayer, expect.Layer, layerOrNone(event.Layer)))
		}
		return errs
	}

	if event.Error != "" {
		return append(errs, fail(AssertError, "query accepted", event.Error))
	}
	if expect.SQL != "" && event.SQL != expect.SQL {
		errs = append(errs, fail(AssertSQL, expect.SQL, event.SQL))
	}
	if expect.Params != nil && !paramsEqual(expect.Params, event.Params) {
		errs = append(errs, fail(AssertParams, fmt.Sprintf("%v", expect.Params), fmt.Sprintf("%v", event.Params)))
	}
	if expect.Count != nil && len(event.Rows) != *expect.Count {
		errs = append(errs, fail(AssertCount, fmt.Sprintf("%d rows", *expect.Count), fmt.Sprintf("%d rows", len(event.Rows))))
	}
	if expect.Rows != nil {
		if err := assertRows(event.Rows, expect.Rows); err != "" {
			errs = append(errs, fail(AssertRows, fmt.Sprintf("%v", expect.Rows), err))
		}
	}
	return errs
}

func layerOrNone(layer string) string {
	if layer == "" {
		return "(not a validation error)"
	}
	return layer
}

// assertRows matches rows in order. Each expected row is a subset match:
// columns it does not name are ignored. Returns a description of the first
// mismatch, or "".
func assertRows(actual []store.Row, expected []map[string]any) string {
	if len(actual) != len(expected) {
		return fmt.Sprintf("%d rows, want %d", len(actual), len(expected))
	}
	for i, want := range expected {
		if !matchRow(actual[i], want) {
			return fmt.Sprintf("row %d = %s", i, formatRow(actual[i]))
		}
	}
	return ""
}

// matchRow checks if the row contains all expected columns (subset match).
func matchRow(row store.Row, expected map[string]any) bool {
	for col, want := range expected {
		got, exists := row.Get(col)
		if !exists {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func formatRow(row store.Row) string {
	parts := make([]string, 0, row.Len())
	row.Range(func(col string, v any) bool {
		parts = append(parts, fmt.Sprintf("%s=%v", col, v))
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

func paramsEqual(expected, actual []any) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if !valuesEqual(actual[i], expected[i]) {
			return false
		}
	}
	return true
}

// valuesEqual compares a database or parameter value with a YAML-parsed
// expectation. YAML decodes integers as int and SQLite returns int64, so
// numbers compare by value.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	if a, ok := toFloat(actual); ok {
		if e, ok := toFloat(expected); ok {
			return a == e
		}
		// SQLite stores booleans as integers
		if e, ok := expected.(bool); ok {
			return e == (a != 0)
		}
		return false
	}

	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	default:
		return 0, false
	}
}
