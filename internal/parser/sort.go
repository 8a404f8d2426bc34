package parser

import (
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/rule"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/validator"
)

// SortParser parses the sort facet. Sorts come out in the order the query
// lists them; that order is the sort precedence.
type SortParser struct {
	base
	schema *schema.Schema
}

// NewSortParser creates a SortParser.
func NewSortParser(queryKey string, query any, s *schema.Schema) *SortParser {
	return &SortParser{
		base:   newBase(queryKey, query, SortShape(s)),
		schema: s,
	}
}

// Parse implements Parser.
func (p *SortParser) Parse() (*descriptor.Sorts, error) {
	out := ordmap.New[descriptor.Sort]()
	if Empty(p.query) {
		return out, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch q := p.query.(type) {
	case string:
		if err := p.add(out, q, descriptor.Asc); err != nil {
			return nil, err
		}
		return out, nil
	case []string:
		for _, name := range q {
			if err := p.add(out, name, descriptor.Asc); err != nil {
				return nil, err
			}
		}
		return out, nil
	case []any:
		for _, item := range q {
			name, _ := item.(string)
			if err := p.add(out, name, descriptor.Asc); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	query, ok := ordmap.Object(p.query)
	if !ok {
		return out, nil
	}
	var err error
	query.Range(func(name string, raw any) bool {
		order, orderErr := SortOrder().Validate(raw, nil)
		if orderErr != nil {
			err = validator.NewValidationError(validator.LayerShape, descriptor.SortKey(p.queryKey, name), rule.OneOf([]string{descriptor.Asc, descriptor.Desc}))
			return false
		}
		err = p.add(out, name, order.(string))
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *SortParser) add(out *descriptor.Sorts, name, order string) error {
	entry, ok := p.schema.Sorts().Get(name)
	if !ok {
		return &validator.ContractError{QueryKey: p.queryKey, Entry: name}
	}
	s := descriptor.Sort{Name: name, Field: entry.Field(), Order: order}
	out.Set(p.BuildKey(s), s)
	return nil
}

// BuildKey implements Parser.
func (p *SortParser) BuildKey(s descriptor.Sort) string {
	return descriptor.SortKey(p.queryKey, s.Name)
}

// Flatten implements Parser.
func (p *SortParser) Flatten(set *descriptor.Sorts) *ordmap.Map[any] {
	return descriptor.FlattenSorts(set)
}

var _ Parser[descriptor.Sort] = (*SortParser)(nil)
