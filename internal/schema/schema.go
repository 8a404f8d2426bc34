// Package schema holds the whitelist an endpoint declares for its query:
// which filter fields accept which operators, which fields are sortable, and
// whether pagination is on.
//
// A Schema is populated once, by the callback handed to querier.New, and is
// read-only for the rest of the request. Registration never fails; declaring
// the same (name, operator) pair twice overwrites the first declaration in
// place.
package schema

import (
	"github.com/roach88/querier/internal/ordmap"
)

// Page defaults applied when PageOptions leaves them unset.
const (
	DefaultPageSize   = 20
	DefaultPageNumber = 1
)

// FilterOptions customizes a filter entry.
type FilterOptions struct {
	// Field is the backend column or path; defaults to the filter name.
	Field string
}

// FilterEntry is one whitelisted (name, operator) pair.
type FilterEntry struct {
	Name     string
	Operator string
	Options  FilterOptions
}

// SortOptions customizes a sort entry.
type SortOptions struct {
	// Field is the backend column or path; defaults to the sort name.
	Field string
}

// SortEntry is one whitelisted sort field.
type SortEntry struct {
	Name    string
	Options SortOptions
}

// PageOptions is the pagination policy.
type PageOptions struct {
	Enabled bool

	// DefaultSize and DefaultNumber replace the package defaults when > 0.
	DefaultSize   int
	DefaultNumber int

	// MaxSize bounds the accepted page size when > 0.
	MaxSize int

	// Extra carries adapter- or consumer-specific settings untouched.
	Extra map[string]any
}

// Size returns the effective default page size.
func (o PageOptions) Size() int {
	if o.DefaultSize > 0 {
		return o.DefaultSize
	}
	return DefaultPageSize
}

// Number returns the effective default page number.
func (o PageOptions) Number() int {
	if o.DefaultNumber > 0 {
		return o.DefaultNumber
	}
	return DefaultPageNumber
}

// FilterOption configures a filter entry.
type FilterOption func(*FilterOptions)

// FilterField maps the filter to a different backend field.
func FilterField(field string) FilterOption {
	return func(o *FilterOptions) { o.Field = field }
}

// SortOption configures a sort entry.
type SortOption func(*SortOptions)

// SortField maps the sort to a different backend field.
func SortField(field string) SortOption {
	return func(o *SortOptions) { o.Field = field }
}

// PageOption configures pagination.
type PageOption func(*PageOptions)

// PageSize sets the default page size.
func PageSize(n int) PageOption {
	return func(o *PageOptions) { o.DefaultSize = n }
}

// PageNumber sets the default page number.
func PageNumber(n int) PageOption {
	return func(o *PageOptions) { o.DefaultNumber = n }
}

// MaxPageSize bounds the page size a caller may request.
func MaxPageSize(n int) PageOption {
	return func(o *PageOptions) { o.MaxSize = n }
}

// PageExtra stores an opaque setting in PageOptions.Extra.
func PageExtra(key string, value any) PageOption {
	return func(o *PageOptions) {
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[key] = value
	}
}

// Schema is the whitelist registry for one endpoint.
type Schema struct {
	filters *ordmap.Map[FilterEntry]
	sorts   *ordmap.Map[SortEntry]
	page    PageOptions
}

// New creates an empty Schema: no filters, no sorts, pagination disabled.
func New() *Schema {
	return &Schema{
		filters: ordmap.New[FilterEntry](),
		sorts:   ordmap.New[SortEntry](),
	}
}

// Ops is a readability helper for Filter's operator list.
func Ops(operators ...string) []string {
	return operators
}

// Filter whitelists name with each of operators.
func (s *Schema) Filter(name string, operators []string, opts ...FilterOption) *Schema {
	options := FilterOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	for _, op := range operators {
		s.filters.Set(FilterEntryKey(name, op), FilterEntry{
			Name:     name,
			Operator: op,
			Options:  options,
		})
	}
	return s
}

// Sort whitelists name for sorting.
func (s *Schema) Sort(name string, opts ...SortOption) *Schema {
	options := SortOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.sorts.Set(name, SortEntry{Name: name, Options: options})
	return s
}

// Page sets the pagination policy.
func (s *Schema) Page(enabled bool, opts ...PageOption) *Schema {
	options := PageOptions{Enabled: enabled}
	for _, opt := range opts {
		opt(&options)
	}
	s.page = options
	return s
}

// Filters returns the filter whitelist keyed by "name[operator]", in
// declaration order. Callers must not modify it.
func (s *Schema) Filters() *ordmap.Map[FilterEntry] {
	return s.filters
}

// Sorts returns the sort whitelist keyed by name, in declaration order.
// Callers must not modify it.
func (s *Schema) Sorts() *ordmap.Map[SortEntry] {
	return s.sorts
}

// PageOptions returns the pagination policy.
func (s *Schema) PageOptions() PageOptions {
	return s.page
}

// FilterEntry looks up the whitelisted (name, operator) pair.
func (s *Schema) FilterEntry(name, operator string) (FilterEntry, bool) {
	return s.filters.Get(FilterEntryKey(name, operator))
}

// FilterOperators maps each filter name to its operators, both in
// declaration order.
func (s *Schema) FilterOperators() *ordmap.Map[[]string] {
	out := ordmap.New[[]string]()
	s.filters.Range(func(_ string, e FilterEntry) bool {
		ops, _ := out.Get(e.Name)
		out.Set(e.Name, append(ops, e.Operator))
		return true
	})
	return out
}

// FilterEntryKey is the registry key for a (name, operator) pair.
func FilterEntryKey(name, operator string) string {
	return name + "[" + operator + "]"
}

// Field returns the backend field of a filter entry.
func (e FilterEntry) Field() string {
	if e.Options.Field != "" {
		return e.Options.Field
	}
	return e.Name
}

// Field returns the backend field of a sort entry.
func (e SortEntry) Field() string {
	if e.Options.Field != "" {
		return e.Options.Field
	}
	return e.Name
}
