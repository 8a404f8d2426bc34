package orchestrator

import (
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/parser"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/validator"
)

// Default query keys.
const (
	FilterKey = "filter"
	SortKey   = "sort"
	PageKey   = "page"
)

// Filterer is the filter facet. Filters apply in whitelist order, whatever
// order the query lists them in.
func Filterer[B any](queryKey, defaultOperator string) Facet[B, descriptor.Filter] {
	return Facet[B, descriptor.Filter]{
		QueryKey: queryKey,
		IsEnabled: func(s *schema.Schema) bool {
			return s.Filters().Len() > 0
		},
		BuildParser: func(queryKey string, query any, s *schema.Schema) parser.Parser[descriptor.Filter] {
			return parser.NewFilterParser(queryKey, query, s, defaultOperator)
		},
		Validate: func(v validator.Facets, _ string, set *descriptor.Filters) (*descriptor.Filters, error) {
			return v.ValidateFilters(set)
		},
		Apply: applyFilters[B],
	}
}

func applyFilters[B any](env Env[B], s *schema.Schema, queryKey string, builder B, set *descriptor.Filters) (B, error) {
	var err error
	s.Filters().Range(func(_ string, entry schema.FilterEntry) bool {
		key := descriptor.FilterKey(queryKey, entry.Name, entry.Operator)
		f, ok := set.Get(key)
		if !ok {
			return true
		}
		env.Logger.Debug("applying filter", "key", key, "field", f.Field, "operator", f.Operator)
		if override, has := env.Overrides.Filter(key); has {
			builder, err = override(builder, f)
		} else {
			builder, err = env.Adapter.Filter(builder, f)
		}
		return err == nil
	})
	return builder, err
}

// Sorter is the sort facet. Sorts apply in the order the query lists them.
func Sorter[B any](queryKey string) Facet[B, descriptor.Sort] {
	return Facet[B, descriptor.Sort]{
		QueryKey: queryKey,
		IsEnabled: func(s *schema.Schema) bool {
			return s.Sorts().Len() > 0
		},
		BuildParser: func(queryKey string, query any, s *schema.Schema) parser.Parser[descriptor.Sort] {
			return parser.NewSortParser(queryKey, query, s)
		},
		Validate: func(v validator.Facets, _ string, set *descriptor.Sorts) (*descriptor.Sorts, error) {
			return v.ValidateSorts(set)
		},
		Apply: applySorts[B],
	}
}

func applySorts[B any](env Env[B], _ *schema.Schema, _ string, builder B, set *descriptor.Sorts) (B, error) {
	var err error
	set.Range(func(key string, srt descriptor.Sort) bool {
		env.Logger.Debug("applying sort", "key", key, "field", srt.Field, "order", srt.Order)
		if override, has := env.Overrides.Sort(key); has {
			builder, err = override(builder, srt)
		} else {
			builder, err = env.Adapter.Sort(builder, srt)
		}
		return err == nil
	})
	return builder, err
}

// Pager is the page facet. The page applies once, as size, number and
// offset together.
func Pager[B any](queryKey string) Facet[B, descriptor.PageField] {
	return Facet[B, descriptor.PageField]{
		QueryKey: queryKey,
		IsEnabled: func(s *schema.Schema) bool {
			return s.PageOptions().Enabled
		},
		BuildParser: func(queryKey string, query any, s *schema.Schema) parser.Parser[descriptor.PageField] {
			return parser.NewPageParser(queryKey, query, s)
		},
		Validate: func(v validator.Facets, queryKey string, set *descriptor.PageSet) (*descriptor.PageSet, error) {
			return v.ValidatePage(queryKey, set)
		},
		Apply: applyPage[B],
	}
}

func applyPage[B any](env Env[B], _ *schema.Schema, _ string, builder B, set *ordmap.Map[descriptor.PageField]) (B, error) {
	page, ok := descriptor.PageOf(set)
	if !ok {
		return builder, nil
	}
	env.Logger.Debug("applying page", "size", page.Size, "number", page.Number, "offset", page.Offset)
	if env.Overrides.Page != nil {
		return env.Overrides.Page(builder, page)
	}
	return env.Adapter.Page(builder, page)
}
