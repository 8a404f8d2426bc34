package parser

import (
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/rule"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/validator"
)

// PageParser parses the page facet.
//
// Supplied values are merged over the page defaults, numeric strings are
// coerced, and the offset is derived from the result. An absent query
// yields the defaults, so an enabled page facet always paginates. The set is
// keyed by bare field name in size, number, offset order.
type PageParser struct {
	base
	options schema.PageOptions
}

// NewPageParser creates a PageParser using the schema's page options.
func NewPageParser(queryKey string, query any, s *schema.Schema) *PageParser {
	opts := s.PageOptions()
	return &PageParser{
		base:    newBase(queryKey, query, PageShape(opts)),
		options: opts,
	}
}

// Parse implements Parser.
func (p *PageParser) Parse() (*descriptor.PageSet, error) {
	out := ordmap.New[descriptor.PageField]()
	size, number := p.options.Size(), p.options.Number()
	if !Empty(p.query) {
		var err error
		if size, number, err = p.merge(size, number); err != nil {
			return nil, err
		}
	}
	if err := validator.CheckPageNumber(validator.LayerShape, p.queryKey, size, number); err != nil {
		return nil, err
	}

	for _, f := range []descriptor.PageField{
		{Field: descriptor.PageSizeField, Value: size},
		{Field: descriptor.PageNumberField, Value: number},
		{Field: descriptor.PageOffsetField, Value: descriptor.Offset(number, size)},
	} {
		out.Set(p.BuildKey(f), f)
	}
	return out, nil
}

// merge validates the query shape and lays the supplied values over size
// and number.
func (p *PageParser) merge(size, number int) (int, int, error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	var err error
	if obj, ok := ordmap.Object(p.query); ok {
		if raw, has := obj.Get(descriptor.PageSizeField); has {
			if size, err = p.coerce(descriptor.PageSizeField, raw); err != nil {
				return 0, 0, err
			}
		}
		if raw, has := obj.Get(descriptor.PageNumberField); has {
			if number, err = p.coerce(descriptor.PageNumberField, raw); err != nil {
				return 0, 0, err
			}
		}
	} else if number, err = p.coerce(descriptor.PageNumberField, p.query); err != nil {
		return 0, 0, err
	}
	return size, number, nil
}

func (p *PageParser) coerce(field string, raw any) (int, error) {
	n, err := rule.ToInt(raw)
	if err != nil {
		return 0, validator.NewValidationError(validator.LayerShape, descriptor.PageKey(p.queryKey, field), "must be an integer")
	}
	return n, nil
}

// BuildKey implements Parser. Page keys are bare field names; Flatten adds
// the query key.
func (p *PageParser) BuildKey(f descriptor.PageField) string {
	return f.Field
}

// Flatten implements Parser.
func (p *PageParser) Flatten(set *descriptor.PageSet) *ordmap.Map[any] {
	return descriptor.FlattenPage(p.queryKey, set)
}

var _ Parser[descriptor.PageField] = (*PageParser)(nil)
