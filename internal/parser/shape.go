package parser

import (
	"slices"

	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/rule"
	"github.com/roach88/querier/internal/schema"
)

// PlainValue accepts the values a filter may carry without an operator map.
func PlainValue() rule.Schema {
	return rule.Alternatives(
		rule.String(),
		rule.Number().Strict(),
		rule.Bool().Strict(),
		rule.Array(nil),
		rule.Null(),
	)
}

// FilterShape builds the shape of a filter query from the whitelist.
//
// Each whitelisted name accepts an object whose keys are exactly the name's
// operators. Names that support defaultOperator also accept a plain value.
// Any other name is rejected.
func FilterShape(s *schema.Schema, defaultOperator string) rule.Schema {
	var keys []rule.KeySchema
	s.FilterOperators().Range(func(name string, operators []string) bool {
		opKeys := make([]rule.KeySchema, 0, len(operators))
		for _, op := range operators {
			opKeys = append(opKeys, rule.Key(op, PlainValue()))
		}

		var alts []rule.Schema
		if slices.Contains(operators, defaultOperator) {
			alts = append(alts, PlainValue())
		}
		alts = append(alts, rule.Object(opKeys...))
		keys = append(keys, rule.Key(name, rule.Alternatives(alts...)))
		return true
	})
	return rule.Object(keys...)
}

// SortShape builds the shape of a sort query from the whitelist: a name, a
// list of distinct names, or an object mapping names to an order. With no
// whitelisted names every query is rejected.
func SortShape(s *schema.Schema) rule.Schema {
	names := s.Sorts().Keys()
	if len(names) == 0 {
		return rule.Forbidden()
	}

	keys := make([]rule.KeySchema, 0, len(names))
	for _, name := range names {
		keys = append(keys, rule.Key(name, SortOrder()))
	}
	return rule.Alternatives(
		rule.String().Valid(names...),
		rule.Array(rule.String().Valid(names...)).Unique(),
		rule.Object(keys...),
	)
}

// SortOrder accepts "asc" or "desc" in any case and returns the lower-case
// spelling.
func SortOrder() *rule.StringSchema {
	return rule.String().Insensitive().Valid(descriptor.Asc, descriptor.Desc)
}

// PageShape builds the shape of a page query: a positive integer (the page
// number) or an object with optional positive integer size and number.
func PageShape(opts schema.PageOptions) rule.Schema {
	size := rule.Number().Integer().Positive()
	if opts.MaxSize > 0 {
		size = size.Max(float64(opts.MaxSize))
	}
	return rule.Alternatives(
		rule.Number().Integer().Positive(),
		rule.Object(
			rule.Key(descriptor.PageSizeField, size),
			rule.Key(descriptor.PageNumberField, rule.Number().Integer().Positive()),
		),
	)
}
