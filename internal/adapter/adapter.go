// Package adapter defines the contract between the query pipeline and a
// query-builder backend.
//
// An Adapter receives canonical descriptors and returns the next builder.
// B is the backend's builder type; the pipeline threads it through every
// call and never copies or inspects it.
package adapter

import (
	"slices"

	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/validator"
)

// Config is the static configuration of a backend.
type Config struct {
	// FilterOperators lists every operator the backend can apply.
	FilterOperators []string

	// DefaultFilterOperator is used for filters given as a plain value.
	DefaultFilterOperator string
}

// Supports reports whether the backend can apply operator.
func (c Config) Supports(operator string) bool {
	return slices.Contains(c.FilterOperators, operator)
}

// Adapter applies descriptors to a builder of type B.
type Adapter[B any] interface {
	Filter(builder B, f descriptor.Filter) (B, error)
	Sort(builder B, s descriptor.Sort) (B, error)
	Page(builder B, p descriptor.Page) (B, error)

	Config() Config

	// Validator checks parsed values against the types the backend accepts.
	Validator() validator.Facets
}

// FilterFunc applies one filter.
type FilterFunc[B any] func(builder B, f descriptor.Filter) (B, error)

// SortFunc applies one sort.
type SortFunc[B any] func(builder B, s descriptor.Sort) (B, error)

// PageFunc applies the page.
type PageFunc[B any] func(builder B, p descriptor.Page) (B, error)

// Overrides replace the adapter for individual descriptors.
//
// Filters and Sorts are keyed by canonical key ("filter:age[>]",
// "sort:name"). A matching override is called instead of the adapter.
type Overrides[B any] struct {
	Filters map[string]FilterFunc[B]
	Sorts   map[string]SortFunc[B]
	Page    PageFunc[B]
}

// Filter returns the override for a filter key.
func (o Overrides[B]) Filter(key string) (FilterFunc[B], bool) {
	fn, ok := o.Filters[key]
	return fn, ok && fn != nil
}

// Sort returns the override for a sort key.
func (o Overrides[B]) Sort(key string) (SortFunc[B], bool) {
	fn, ok := o.Sorts[key]
	return fn, ok && fn != nil
}

// Unimplemented is embedded by adapters under construction. Every operation
// fails with a *validator.NotImplementedError.
type Unimplemented[B any] struct{}

func (Unimplemented[B]) Filter(builder B, _ descriptor.Filter) (B, error) {
	return builder, validator.NotImplemented("Adapter", "Filter")
}

func (Unimplemented[B]) Sort(builder B, _ descriptor.Sort) (B, error) {
	return builder, validator.NotImplemented("Adapter", "Sort")
}

func (Unimplemented[B]) Page(builder B, _ descriptor.Page) (B, error) {
	return builder, validator.NotImplemented("Adapter", "Page")
}

// Config returns the zero Config: no operators, no default.
func (Unimplemented[B]) Config() Config {
	return Config{}
}

func (Unimplemented[B]) Validator() validator.Facets {
	return unimplementedFacets{}
}

type unimplementedFacets struct{}

func (unimplementedFacets) ValidateFilters(*descriptor.Filters) (*descriptor.Filters, error) {
	return nil, validator.NotImplemented("Validator", "ValidateFilters")
}

func (unimplementedFacets) ValidateSorts(*descriptor.Sorts) (*descriptor.Sorts, error) {
	return nil, validator.NotImplemented("Validator", "ValidateSorts")
}

func (unimplementedFacets) ValidatePage(string, *descriptor.PageSet) (*descriptor.PageSet, error) {
	return nil, validator.NotImplemented("Validator", "ValidatePage")
}

var _ Adapter[any] = Unimplemented[any]{}
