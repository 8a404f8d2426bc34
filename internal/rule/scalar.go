package rule

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// AnySchema accepts every value unchanged.
type AnySchema struct{}

// Any returns a schema that accepts everything.
func Any() *AnySchema { return &AnySchema{} }

func (s *AnySchema) Validate(v any, path []string) (any, error) { return v, nil }
func (s *AnySchema) TypeName() string                           { return "any" }

// ForbiddenSchema rejects every value.
type ForbiddenSchema struct{}

// Forbidden returns a schema that rejects everything with "is not allowed".
func Forbidden() *ForbiddenSchema { return &ForbiddenSchema{} }

func (s *ForbiddenSchema) Validate(v any, path []string) (any, error) {
	return nil, fail(path, "is not allowed")
}
func (s *ForbiddenSchema) TypeName() string { return "any" }

// NullSchema accepts only nil.
type NullSchema struct{}

// Null returns a schema accepting only nil.
func Null() *NullSchema { return &NullSchema{} }

func (s *NullSchema) Validate(v any, path []string) (any, error) {
	if v != nil {
		return nil, mismatch(path, "must be null")
	}
	return nil, nil
}
func (s *NullSchema) TypeName() string { return "null" }

// BoolSchema accepts booleans and the strings "true" and "false".
type BoolSchema struct {
	strict bool
}

// Bool returns a boolean schema.
func Bool() *BoolSchema { return &BoolSchema{} }

// Strict disables string conversion.
func (s *BoolSchema) Strict() *BoolSchema {
	s.strict = true
	return s
}

func (s *BoolSchema) Validate(v any, path []string) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if !s.strict {
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	}
	return nil, mismatch(path, "must be a boolean")
}
func (s *BoolSchema) TypeName() string { return "boolean" }

// StringSchema accepts strings, optionally restricted to a set of values.
type StringSchema struct {
	valid       []string
	insensitive bool
	nonEmpty    bool
}

// String returns a string schema.
func String() *StringSchema { return &StringSchema{} }

// Valid restricts the accepted values.
func (s *StringSchema) Valid(values ...string) *StringSchema {
	s.valid = append(s.valid, values...)
	return s
}

// Insensitive compares against Valid values using Unicode case folding.
// The declared spelling is returned on match.
func (s *StringSchema) Insensitive() *StringSchema {
	s.insensitive = true
	return s
}

// NonEmpty rejects the empty string.
func (s *StringSchema) NonEmpty() *StringSchema {
	s.nonEmpty = true
	return s
}

func (s *StringSchema) Validate(v any, path []string) (any, error) {
	str, ok := v.(string)
	if !ok {
		return nil, mismatch(path, "must be a string")
	}
	if s.nonEmpty && str == "" {
		return nil, fail(path, "is not allowed to be empty")
	}
	if len(s.valid) == 0 {
		return str, nil
	}
	if canonical, ok := s.match(str); ok {
		return canonical, nil
	}
	return nil, fail(path, OneOf(s.valid))
}

func (s *StringSchema) match(str string) (string, bool) {
	if !s.insensitive {
		for _, want := range s.valid {
			if str == want {
				return want, true
			}
		}
		return "", false
	}
	fold := cases.Fold()
	folded := fold.String(str)
	for _, want := range s.valid {
		if fold.String(want) == folded {
			return want, true
		}
	}
	return "", false
}

func (s *StringSchema) TypeName() string { return "string" }

// MaxSafeInteger is the largest integer a float64 holds exactly.
const MaxSafeInteger = 1<<53 - 1

// NumberSchema accepts numbers and numeric strings.
//
// Validate returns int64 for integral values and float64 otherwise.
type NumberSchema struct {
	integer  bool
	positive bool
	strict   bool
	exact    bool
	min      *float64
	max      *float64
}

// Number returns a number schema.
func Number() *NumberSchema { return &NumberSchema{} }

// Integer rejects values with a fractional part.
func (s *NumberSchema) Integer() *NumberSchema {
	s.integer = true
	return s
}

// Positive rejects values <= 0.
func (s *NumberSchema) Positive() *NumberSchema {
	s.positive = true
	return s
}

// Min sets an inclusive lower bound.
func (s *NumberSchema) Min(n float64) *NumberSchema {
	s.min = &n
	return s
}

// Max sets an inclusive upper bound.
func (s *NumberSchema) Max(n float64) *NumberSchema {
	s.max = &n
	return s
}

// Strict disables string conversion.
func (s *NumberSchema) Strict() *NumberSchema {
	s.strict = true
	return s
}

// Exact converts a string only when the number prints back as the same
// string, so "30" converts while "030", "1e3" and "30.0" do not.
func (s *NumberSchema) Exact() *NumberSchema {
	s.exact = true
	return s
}

func (s *NumberSchema) Validate(v any, path []string) (any, error) {
	f, ok := toFloat(v, !s.strict)
	if ok && s.exact {
		if str, isString := v.(string); isString && formatNumber(f) != str {
			ok = false
		}
	}
	if !ok {
		return nil, mismatch(path, "must be a number")
	}
	if s.integer && f != math.Trunc(f) {
		return nil, fail(path, "must be an integer")
	}
	if s.integer && math.Abs(f) > MaxSafeInteger {
		return nil, fail(path, "must be a safe integer")
	}
	if s.positive && f <= 0 {
		return nil, fail(path, "must be a positive number")
	}
	if s.min != nil && f < *s.min {
		return nil, fail(path, "must be greater than or equal to "+formatNumber(*s.min))
	}
	if s.max != nil && f > *s.max {
		return nil, fail(path, "must be less than or equal to "+formatNumber(*s.max))
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), nil
	}
	return f, nil
}

func (s *NumberSchema) TypeName() string { return "number" }

// OneOf renders the "must be one of [a, b]" reason used for enumerations and
// alternations.
func OneOf(values []string) string {
	return "must be one of [" + strings.Join(values, ", ") + "]"
}

// ToInt converts a number-like value to int. Numeric strings are parsed.
// Values beyond MaxSafeInteger are rejected rather than rounded.
func ToInt(v any) (int, error) {
	f, ok := toFloat(v, true)
	if !ok {
		return 0, fmt.Errorf("not a number: %v", v)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", v)
	}
	if math.Abs(f) > MaxSafeInteger {
		return 0, fmt.Errorf("out of range: %v", v)
	}
	return int(f), nil
}

func toFloat(v any, convert bool) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		if !convert {
			return 0, false
		}
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
