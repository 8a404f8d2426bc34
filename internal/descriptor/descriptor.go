// Package descriptor defines the canonical records produced by the facet
// parsers, the deterministic keys that address them, and the flattened views
// handed to value validators.
package descriptor

import (
	"github.com/roach88/querier/internal/ordmap"
)

// Sort orders.
const (
	Asc  = "asc"
	Desc = "desc"
)

// Page fields, in application order.
const (
	PageSizeField   = "size"
	PageNumberField = "number"
	PageOffsetField = "offset"
)

// PageFields lists the page fields in the order they are applied.
var PageFields = []string{PageSizeField, PageNumberField, PageOffsetField}

// Filter is one parsed filter condition.
type Filter struct {
	Name     string `json:"name"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Sort is one parsed sort criterion.
type Sort struct {
	Name  string `json:"name"`
	Field string `json:"field"`
	Order string `json:"order"`
}

// PageField is one parsed pagination value.
type PageField struct {
	Field string `json:"field"`
	Value int    `json:"value"`
}

// Page is the combined pagination record handed to adapters.
type Page struct {
	Size   int `json:"size"`
	Number int `json:"number"`
	Offset int `json:"offset"`
}

// MaxOffset bounds derived offsets to integers a float64 holds exactly.
const MaxOffset = 1<<53 - 1

// Offset computes the row offset of a page. Callers keep number within
// MaxNumber(size).
func Offset(number, size int) int {
	return (number - 1) * size
}

// MaxNumber is the largest page number whose offset stays within MaxOffset.
func MaxNumber(size int) int {
	if size <= 0 {
		return 1
	}
	return MaxOffset/size + 1
}

// FilterKey is the canonical key "<queryKey>:<name>[<operator>]".
func FilterKey(queryKey, name, operator string) string {
	return queryKey + ":" + name + "[" + operator + "]"
}

// SortKey is the canonical key "<queryKey>:<name>".
func SortKey(queryKey, name string) string {
	return queryKey + ":" + name
}

// PageKey is the page field name, prefixed with "<queryKey>:" when queryKey
// is non-empty.
func PageKey(queryKey, field string) string {
	if queryKey == "" {
		return field
	}
	return queryKey + ":" + field
}

// Filters is a parsed filter set keyed by canonical key.
type Filters = ordmap.Map[Filter]

// Sorts is a parsed sort set keyed by canonical key.
type Sorts = ordmap.Map[Sort]

// PageSet is a parsed page keyed by bare field name.
type PageSet = ordmap.Map[PageField]

// FlattenFilters maps each canonical key to its filter value.
func FlattenFilters(filters *Filters) *ordmap.Map[any] {
	out := ordmap.New[any]()
	filters.Range(func(k string, f Filter) bool {
		out.Set(k, f.Value)
		return true
	})
	return out
}

// FlattenSorts maps each canonical key to its order.
func FlattenSorts(sorts *Sorts) *ordmap.Map[any] {
	out := ordmap.New[any]()
	sorts.Range(func(k string, s Sort) bool {
		out.Set(k, s.Order)
		return true
	})
	return out
}

// FlattenPage maps each page field, prefixed with queryKey, to its value.
func FlattenPage(queryKey string, page *PageSet) *ordmap.Map[any] {
	out := ordmap.New[any]()
	page.Range(func(_ string, p PageField) bool {
		out.Set(PageKey(queryKey, p.Field), p.Value)
		return true
	})
	return out
}

// PageOf combines parsed page fields into a Page.
func PageOf(page *PageSet) (Page, bool) {
	if page.Len() == 0 {
		return Page{}, false
	}
	var p Page
	page.Range(func(_ string, f PageField) bool {
		switch f.Field {
		case PageSizeField:
			p.Size = f.Value
		case PageNumberField:
			p.Number = f.Value
		case PageOffsetField:
			p.Offset = f.Value
		}
		return true
	})
	return p, true
}
