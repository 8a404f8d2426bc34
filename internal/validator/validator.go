// Package validator implements the three validation layers a query passes
// through, and the error types they share.
//
//   - ParserValidator checks the raw shape of one facet against a schema
//     synthesized from the whitelist.
//   - AdapterValidator checks parsed values against the types a backend
//     adapter can handle (per filter operator, for sort orders, per page
//     field).
//   - ConsumerValidator checks a flattened view of parsed values against the
//     caller's own rules, ignoring keys the caller did not mention.
//
// Every layer stops at the first violation and reports it as a
// *ValidationError. Value layers never modify their input; they return a new
// descriptor set carrying any converted values.
package validator

import (
	"strconv"

	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/rule"
)

// Facets validates parsed descriptor sets, one method per facet.
type Facets interface {
	ValidateFilters(filters *descriptor.Filters) (*descriptor.Filters, error)
	ValidateSorts(sorts *descriptor.Sorts) (*descriptor.Sorts, error)
	ValidatePage(queryKey string, page *descriptor.PageSet) (*descriptor.PageSet, error)
}

// ParserValidator checks a raw facet query against its shape schema.
type ParserValidator struct {
	queryKey string
	schema   rule.Schema
	runs     int
}

// NewParserValidator creates a ParserValidator for the facet at queryKey.
func NewParserValidator(queryKey string, schema rule.Schema) *ParserValidator {
	return &ParserValidator{queryKey: queryKey, schema: schema}
}

// Validate checks raw. Failure paths are prefixed with the facet query key.
func (v *ParserValidator) Validate(raw any) error {
	v.runs++
	if _, err := v.schema.Validate(raw, nil); err != nil {
		return fromRuleError(LayerShape, v.queryKey, err)
	}
	return nil
}

// Runs reports how many times the underlying schema was evaluated.
func (v *ParserValidator) Runs() int {
	return v.runs
}

// AdapterSchemas are the value types a backend accepts.
//
// A missing entry means "no constraint": adapters only constrain what they
// care about.
type AdapterSchemas struct {
	// Filters maps a filter operator to the schema of its value.
	Filters map[string]rule.Schema

	// Sort is the schema of a sort order.
	Sort rule.Schema

	// Page maps a page field (size, number, offset) to its schema.
	Page map[string]rule.Schema
}

// AdapterValidator validates parsed values against AdapterSchemas.
type AdapterValidator struct {
	schemas AdapterSchemas
}

// NewAdapterValidator creates an AdapterValidator.
func NewAdapterValidator(schemas AdapterSchemas) *AdapterValidator {
	return &AdapterValidator{schemas: schemas}
}

// ValidateFilters validates each filter value against its operator's schema.
func (v *AdapterValidator) ValidateFilters(filters *descriptor.Filters) (*descriptor.Filters, error) {
	out := ordmap.New[descriptor.Filter]()
	var err error
	filters.Range(func(key string, f descriptor.Filter) bool {
		if s, ok := v.schemas.Filters[f.Operator]; ok && s != nil {
			var converted any
			converted, err = s.Validate(f.Value, []string{key})
			if err != nil {
				err = fromRuleError(LayerAdapter, "", err)
				return false
			}
			f.Value = converted
		}
		out.Set(key, f)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateSorts validates each sort order.
func (v *AdapterValidator) ValidateSorts(sorts *descriptor.Sorts) (*descriptor.Sorts, error) {
	out := ordmap.New[descriptor.Sort]()
	var err error
	sorts.Range(func(key string, s descriptor.Sort) bool {
		if v.schemas.Sort != nil {
			var converted any
			converted, err = v.schemas.Sort.Validate(s.Order, []string{key})
			if err != nil {
				err = fromRuleError(LayerAdapter, "", err)
				return false
			}
			if order, ok := converted.(string); ok {
				s.Order = order
			}
		}
		out.Set(key, s)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ValidatePage validates each page field against its schema.
func (v *AdapterValidator) ValidatePage(queryKey string, page *descriptor.PageSet) (*descriptor.PageSet, error) {
	values := ordmap.New[any]()
	var err error
	page.Range(func(field string, p descriptor.PageField) bool {
		var converted any = p.Value
		if s, ok := v.schemas.Page[field]; ok && s != nil {
			converted, err = s.Validate(p.Value, []string{descriptor.PageKey(queryKey, field)})
			if err != nil {
				err = fromRuleError(LayerAdapter, "", err)
				return false
			}
		}
		values.Set(field, converted)
		return true
	})
	if err != nil {
		return nil, err
	}
	return rebuildPage(LayerAdapter, queryKey, page, func(field string) (any, bool) {
		return values.Get(field)
	})
}

// CheckPageNumber rejects a page number whose offset would pass
// descriptor.MaxOffset at the given size.
func CheckPageNumber(layer Layer, queryKey string, size, number int) error {
	if limit := descriptor.MaxNumber(size); number > limit {
		return NewValidationError(layer, descriptor.PageKey(queryKey, descriptor.PageNumberField),
			"must be less than or equal to "+strconv.Itoa(limit))
	}
	return nil
}

// rebuildPage returns a copy of page with values taken from lookup and the
// offset re-derived from size and number.
func rebuildPage(layer Layer, queryKey string, page *descriptor.PageSet, lookup func(field string) (any, bool)) (*descriptor.PageSet, error) {
	out := ordmap.New[descriptor.PageField]()
	var err error
	page.Range(func(field string, p descriptor.PageField) bool {
		if raw, ok := lookup(field); ok {
			n, convErr := rule.ToInt(raw)
			if convErr != nil {
				err = NewValidationError(layer, descriptor.PageKey(queryKey, field), "must be an integer")
				return false
			}
			p.Value = n
		}
		out.Set(field, p)
		return true
	})
	if err != nil {
		return nil, err
	}

	size, hasSize := out.Get(descriptor.PageSizeField)
	number, hasNumber := out.Get(descriptor.PageNumberField)
	if offset, ok := out.Get(descriptor.PageOffsetField); ok && hasSize && hasNumber {
		if err := CheckPageNumber(layer, queryKey, size.Value, number.Value); err != nil {
			return nil, err
		}
		offset.Value = descriptor.Offset(number.Value, size.Value)
		out.Set(descriptor.PageOffsetField, offset)
	}
	return out, nil
}
