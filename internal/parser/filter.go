package parser

import (
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/validator"
)

// FilterParser parses the filter facet.
//
// A name mapped to an object is an explicit {operator: value} map and yields
// one Filter per operator present. A name mapped to anything else uses the
// default operator. Filters come out in whitelist order: declared names
// first, then each name's declared operators.
type FilterParser struct {
	base
	schema          *schema.Schema
	defaultOperator string
}

// NewFilterParser creates a FilterParser.
func NewFilterParser(queryKey string, query any, s *schema.Schema, defaultOperator string) *FilterParser {
	return &FilterParser{
		base:            newBase(queryKey, query, FilterShape(s, defaultOperator)),
		schema:          s,
		defaultOperator: defaultOperator,
	}
}

// Parse implements Parser.
func (p *FilterParser) Parse() (*descriptor.Filters, error) {
	out := ordmap.New[descriptor.Filter]()
	if Empty(p.query) {
		return out, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	query, ok := ordmap.Object(p.query)
	if !ok {
		return out, nil
	}

	var err error
	p.schema.FilterOperators().Range(func(name string, operators []string) bool {
		raw, present := query.Get(name)
		if !present {
			return true
		}
		explicit, isMap := ordmap.Object(raw)
		if !isMap {
			err = p.add(out, name, p.defaultOperator, raw)
			return err == nil
		}
		for _, op := range operators {
			value, has := explicit.Get(op)
			if !has {
				continue
			}
			if err = p.add(out, name, op, value); err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *FilterParser) add(out *descriptor.Filters, name, operator string, value any) error {
	entry, ok := p.schema.FilterEntry(name, operator)
	if !ok {
		return &validator.ContractError{QueryKey: p.queryKey, Entry: schema.FilterEntryKey(name, operator)}
	}
	f := descriptor.Filter{
		Name:     name,
		Field:    entry.Field(),
		Operator: operator,
		Value:    value,
	}
	out.Set(p.BuildKey(f), f)
	return nil
}

// BuildKey implements Parser.
func (p *FilterParser) BuildKey(f descriptor.Filter) string {
	return descriptor.FilterKey(p.queryKey, f.Name, f.Operator)
}

// Flatten implements Parser.
func (p *FilterParser) Flatten(set *descriptor.Filters) *ordmap.Map[any] {
	return descriptor.FlattenFilters(set)
}

var _ Parser[descriptor.Filter] = (*FilterParser)(nil)
