// Package decl loads resource declarations: the table a query endpoint reads
// and the filter, sort and page whitelist it exposes.
//
// Declarations are written in CUE or YAML:
//
//	table: "people"
//	columns: ["id", "name", "age"]
//	filters: [
//		{name: "age", operators: ["=", ">", "<"]},
//		{name: "name", operators: ["=", "like"], field: "full_name"},
//	]
//	sorts: [{name: "age"}, {name: "name"}]
//	page: {size: 20, max_size: 100}
//
// CUE files are checked against the embedded #Resource definition, so errors
// carry file positions. Both formats then pass the same semantic checks.
package decl

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/querier/internal/querier"
	"github.com/roach88/querier/internal/queryir"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/sqladapter"
	"github.com/roach88/querier/internal/validator"
)

// Filter whitelists one filter name with its operators.
type Filter struct {
	Name      string   `json:"name" yaml:"name"`
	Operators []string `json:"operators" yaml:"operators"`
	Field     string   `json:"field,omitempty" yaml:"field,omitempty"`
}

// Sort whitelists one sort name.
type Sort struct {
	Name  string `json:"name" yaml:"name"`
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
}

// Page is the pagination policy. A present page block is enabled unless it
// says otherwise.
type Page struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Size    int   `json:"size,omitempty" yaml:"size,omitempty"`
	Number  int   `json:"number,omitempty" yaml:"number,omitempty"`
	MaxSize int   `json:"max_size,omitempty" yaml:"max_size,omitempty"`
}

// IsEnabled reports whether paging is on.
func (p *Page) IsEnabled() bool {
	if p == nil {
		return false
	}
	return p.Enabled == nil || *p.Enabled
}

// Consumer holds the caller's value rules. At most one backend may be set.
type Consumer struct {
	CUE        string `json:"cue,omitempty" yaml:"cue,omitempty"`
	JSONSchema string `json:"json_schema,omitempty" yaml:"json_schema,omitempty"`
}

// Resource is one declared query endpoint.
type Resource struct {
	Table      string   `json:"table" yaml:"table"`
	Columns    []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	TieBreaker string   `json:"tie_breaker,omitempty" yaml:"tie_breaker,omitempty"`
	Filters    []Filter `json:"filters,omitempty" yaml:"filters,omitempty"`
	Sorts      []Sort   `json:"sorts,omitempty" yaml:"sorts,omitempty"`
	Page       *Page    `json:"page,omitempty" yaml:"page,omitempty"`
	Consumer   Consumer `json:"consumer,omitempty" yaml:"consumer,omitempty"`

	consumerOnce sync.Once
	consumer     validator.Facets
	consumerErr  error
}

// Validate checks the declaration against the SQL backend: identifiers must
// be safe and every operator supported.
func (r *Resource) Validate() error {
	var errs []error
	if !queryir.IsIdentifier(r.Table) {
		errs = append(errs, fmt.Errorf("table: invalid identifier %q", r.Table))
	}
	for i, col := range r.Columns {
		if !queryir.IsIdentifier(col) {
			errs = append(errs, fmt.Errorf("columns[%d]: invalid identifier %q", i, col))
		}
	}
	if r.TieBreaker != "" && !queryir.IsIdentifier(r.TieBreaker) {
		errs = append(errs, fmt.Errorf("tie_breaker: invalid identifier %q", r.TieBreaker))
	}

	cfg := sqladapter.New().Config()
	for i, f := range r.Filters {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("filters[%d]: name is required", i))
		} else if !validName(f.Name) {
			errs = append(errs, fmt.Errorf("filters[%d]: invalid name %q", i, f.Name))
		}
		if !queryir.IsIdentifier(fieldOr(f.Field, f.Name)) {
			errs = append(errs, fmt.Errorf("filters[%d]: invalid field %q", i, fieldOr(f.Field, f.Name)))
		}
		if len(f.Operators) == 0 {
			errs = append(errs, fmt.Errorf("filters[%d]: at least one operator is required", i))
		}
		for _, op := range f.Operators {
			if !cfg.Supports(op) {
				errs = append(errs, fmt.Errorf("filters[%d]: unsupported operator %q", i, op))
			}
		}
	}
	for i, s := range r.Sorts {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sorts[%d]: name is required", i))
		} else if !validName(s.Name) {
			errs = append(errs, fmt.Errorf("sorts[%d]: invalid name %q", i, s.Name))
		}
		if !queryir.IsIdentifier(fieldOr(s.Field, s.Name)) {
			errs = append(errs, fmt.Errorf("sorts[%d]: invalid field %q", i, fieldOr(s.Field, s.Name)))
		}
	}
	if p := r.Page; p != nil {
		if p.Size < 0 || p.Number < 0 || p.MaxSize < 0 {
			errs = append(errs, errors.New("page: sizes must not be negative"))
		}
		if p.MaxSize > 0 && p.Size > p.MaxSize {
			errs = append(errs, fmt.Errorf("page: size %d exceeds max_size %d", p.Size, p.MaxSize))
		}
		if p.MaxSize > sqladapter.MaxPageSize {
			errs = append(errs, fmt.Errorf("page: max_size %d exceeds the backend limit %d", p.MaxSize, sqladapter.MaxPageSize))
		}
	}
	if r.Consumer.CUE != "" && r.Consumer.JSONSchema != "" {
		errs = append(errs, errors.New("consumer: set either cue or json_schema, not both"))
	}
	return errors.Join(errs...)
}

// validName rejects names that would be ambiguous inside a canonical key or
// a query string bracket. Qualified columns go in field.
func validName(name string) bool {
	return !strings.ContainsAny(name, ".:[]")
}

func fieldOr(field, name string) string {
	if field != "" {
		return field
	}
	return name
}

// Define replays the declaration onto s. Pass it to querier.New.
func (r *Resource) Define(s *schema.Schema) {
	for _, f := range r.Filters {
		var opts []schema.FilterOption
		if f.Field != "" {
			opts = append(opts, schema.FilterField(f.Field))
		}
		s.Filter(f.Name, f.Operators, opts...)
	}
	for _, srt := range r.Sorts {
		var opts []schema.SortOption
		if srt.Field != "" {
			opts = append(opts, schema.SortField(srt.Field))
		}
		s.Sort(srt.Name, opts...)
	}
	if r.Page != nil {
		s.Page(r.Page.IsEnabled(),
			schema.PageSize(r.Page.Size),
			schema.PageNumber(r.Page.Number),
			schema.MaxPageSize(r.Page.MaxSize),
		)
	}
}

// ConsumerValidator returns the validator for the declared consumer rules, or
// nil when there are none. It is compiled once and safe for concurrent use.
func (r *Resource) ConsumerValidator() (validator.Facets, error) {
	r.consumerOnce.Do(func() {
		r.consumer, r.consumerErr = r.compileConsumer()
	})
	return r.consumer, r.consumerErr
}

func (r *Resource) compileConsumer() (validator.Facets, error) {
	switch {
	case r.Consumer.CUE != "":
		s, err := validator.NewCUESchema(r.Consumer.CUE)
		if err != nil {
			return nil, err
		}
		return validator.NewConsumerValidator(s), nil
	case r.Consumer.JSONSchema != "":
		s, err := validator.NewJSONSchema(r.Consumer.JSONSchema)
		if err != nil {
			return nil, err
		}
		return validator.NewConsumerValidator(s), nil
	default:
		return nil, nil
	}
}

// Select returns the base query the declaration's whitelist applies to.
func (r *Resource) Select() queryir.Select {
	return queryir.NewSelect(r.Table, r.Columns...)
}

// Querier builds a request-scoped Querier for query over the SQL backend,
// wired with the declared whitelist and consumer rules.
func (r *Resource) Querier(query any, opts ...querier.Option) (*querier.Querier[queryir.Select], error) {
	consumer, err := r.ConsumerValidator()
	if err != nil {
		return nil, err
	}
	if consumer != nil {
		opts = append([]querier.Option{querier.WithConsumer(consumer)}, opts...)
	}
	return querier.New[queryir.Select](query, sqladapter.New(), r.Define, opts...)
}

// Build validates query and returns the resulting Select.
func (r *Resource) Build(query any, opts ...querier.Option) (queryir.Select, error) {
	q, err := r.Querier(query, opts...)
	if err != nil {
		return queryir.Select{}, err
	}
	return q.Run(r.Select())
}
