package validator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/querier/internal/rule"
)

// Layer identifies which validation layer rejected a query.
type Layer string

const (
	// LayerDisabled: the query references a facet the schema turned off.
	LayerDisabled Layer = "disabled"

	// LayerShape: the raw query failed the parser's structural schema.
	LayerShape Layer = "shape"

	// LayerAdapter: a value failed the backend adapter's type schema.
	LayerAdapter Layer = "adapter"

	// LayerConsumer: a value failed the caller's business rules.
	LayerConsumer Layer = "consumer"
)

// ValidationError is the single error shape every validation layer reports.
//
// Error() renders "<path> <reason>", e.g. "filter:age[gt] is not allowed".
// Callers map it to a 4xx response.
type ValidationError struct {
	Path   string
	Reason string
	Layer  Layer
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Path + " " + e.Reason
}

// NewValidationError creates a ValidationError.
func NewValidationError(layer Layer, path, reason string) *ValidationError {
	return &ValidationError{Path: path, Reason: reason, Layer: layer}
}

// Disabled reports a query that references a disabled facet.
func Disabled(queryKey string) *ValidationError {
	return NewValidationError(LayerDisabled, queryKey, "is disabled")
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError extracts a ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// NotImplementedError means a component was used without providing one of
// its required operations. It is a programmer error and must surface as a
// server error.
type NotImplementedError struct {
	Component string
	Method    string
}

// Error implements the error interface.
func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s.%s is not implemented", e.Component, e.Method)
}

// NotImplemented creates a NotImplementedError.
func NotImplemented(component, method string) *NotImplementedError {
	return &NotImplementedError{Component: component, Method: method}
}

// ContractError means a parser and the schema registry disagree: shape
// validation admitted a (name, operator) pair the registry does not hold.
// It is a programmer error and must surface as a server error.
type ContractError struct {
	QueryKey string
	Entry    string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: no schema entry for %q; parser and schema disagree", e.QueryKey, e.Entry)
}

// IsProgrammerError reports whether err is a NotImplementedError or a
// ContractError.
func IsProgrammerError(err error) bool {
	var ni *NotImplementedError
	var ce *ContractError
	return errors.As(err, &ni) || errors.As(err, &ce)
}

// JoinPath renders a validation path.
//
// With a prefix the first segment joins it with ":"; every later segment is
// bracketed:
//
//	JoinPath("filter", ["age", "gt"]) == "filter:age[gt]"
//	JoinPath("page", nil)             == "page"
//	JoinPath("", ["sort:age"])        == "sort:age"
//
// Quoting a schema library adds around the leading segment is removed.
func JoinPath(prefix string, segments []string) string {
	var b strings.Builder
	rest := segments
	switch {
	case prefix != "" && len(segments) > 0:
		b.WriteString(prefix)
		b.WriteByte(':')
		b.WriteString(unquote(segments[0]))
		rest = segments[1:]
	case prefix != "":
		b.WriteString(prefix)
	case len(segments) > 0:
		b.WriteString(unquote(segments[0]))
		rest = segments[1:]
	}
	for _, seg := range rest {
		b.WriteByte('[')
		b.WriteString(seg)
		b.WriteByte(']')
	}
	return b.String()
}

func unquote(seg string) string {
	if len(seg) >= 2 && seg[0] == '"' && seg[len(seg)-1] == '"' {
		if s, err := strconv.Unquote(seg); err == nil {
			return s
		}
		return seg[1 : len(seg)-1]
	}
	return seg
}

// fromRuleError converts a rule failure into a ValidationError. Errors of
// any other type are returned unchanged.
func fromRuleError(layer Layer, prefix string, err error) error {
	var re *rule.Error
	if !errors.As(err, &re) {
		return err
	}
	return NewValidationError(layer, JoinPath(prefix, re.Path), re.Reason)
}
