// Package querier is the composition root: it turns one request query into
// validated filter, sort and page operations on a builder.
//
// A Querier is request-scoped. Build one per request with New, call Run once,
// and discard it. Parse and validation results are cached on the instance, so
// it must not be shared between goroutines.
//
// Run validates every facet before it applies any, so a rejected page never
// leaves a builder that already carries the query's filters.
//
// Example:
//
//	q, err := querier.New(query, sqladapter.New(), func(s *schema.Schema) {
//		s.Filter("age", schema.Ops("=", ">"))
//		s.Sort("age")
//		s.Page(true)
//	})
//	if err != nil {
//		return err
//	}
//	sel, err := q.Run(queryir.NewSelect("people"))
package querier

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/querier/internal/adapter"
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/metrics"
	"github.com/roach88/querier/internal/orchestrator"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/validator"
)

// QueryKeys names the request query keys of the three facets.
type QueryKeys struct {
	Filter string
	Sort   string
	Page   string
}

// DefaultQueryKeys returns "filter", "sort" and "page".
func DefaultQueryKeys() QueryKeys {
	return QueryKeys{
		Filter: orchestrator.FilterKey,
		Sort:   orchestrator.SortKey,
		Page:   orchestrator.PageKey,
	}
}

type options struct {
	consumer  validator.Facets
	overrides any
	logger    *slog.Logger
	metrics   *metrics.Metrics
	keys      QueryKeys
	ids       IDGenerator
}

// Option configures a Querier.
type Option func(*options)

// WithConsumer adds the caller's value validator as the last layer.
func WithConsumer(v validator.Facets) Option {
	return func(o *options) {
		o.consumer = v
	}
}

// WithOverrides routes selected canonical keys to caller functions instead of
// the adapter. The builder type must match the Querier's.
func WithOverrides[B any](overrides adapter.Overrides[B]) Option {
	return func(o *options) {
		o.overrides = overrides
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics reports outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithQueryKeys renames the facet query keys. Empty fields keep their
// defaults.
func WithQueryKeys(keys QueryKeys) Option {
	return func(o *options) {
		if keys.Filter != "" {
			o.keys.Filter = keys.Filter
		}
		if keys.Sort != "" {
			o.keys.Sort = keys.Sort
		}
		if keys.Page != "" {
			o.keys.Page = keys.Page
		}
	}
}

// WithRequestID fixes the request ID instead of generating one.
func WithRequestID(id string) Option {
	return func(o *options) {
		o.ids = NewFixedGenerator(id)
	}
}

// WithIDGenerator sets the request ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// Querier validates and applies one request query.
type Querier[B any] struct {
	id      string
	keys    QueryKeys
	schema  *schema.Schema
	logger  *slog.Logger
	metrics *metrics.Metrics

	// queryErr rejects a query that is not an object at all.
	queryErr error

	filter *orchestrator.Orchestrator[B, descriptor.Filter]
	sort   *orchestrator.Orchestrator[B, descriptor.Sort]
	page   *orchestrator.Orchestrator[B, descriptor.PageField]

	validated   bool
	validateErr error
}

// New builds a Querier for query.
//
// define declares the whitelist on a fresh Schema. New fails when the
// whitelist uses a filter operator the adapter does not list, or when
// overrides were given for a different builder type. Problems with the query
// itself surface from Validate and Run.
func New[B any](query any, a adapter.Adapter[B], define func(*schema.Schema), opts ...Option) (*Querier[B], error) {
	if a == nil {
		return nil, errors.New("querier: adapter is required")
	}

	o := options{keys: DefaultQueryKeys()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.ids == nil {
		o.ids = UUIDv7Generator{}
	}

	var overrides adapter.Overrides[B]
	if o.overrides != nil {
		typed, ok := o.overrides.(adapter.Overrides[B])
		if !ok {
			return nil, fmt.Errorf("querier: overrides %T do not match the adapter's builder type", o.overrides)
		}
		overrides = typed
	}

	s := schema.New()
	if define != nil {
		define(s)
	}

	cfg := a.Config()
	if err := checkOperators(s, cfg); err != nil {
		return nil, err
	}

	id := o.ids.Generate()
	q := &Querier[B]{
		id:      id,
		keys:    o.keys,
		schema:  s,
		logger:  o.logger.With("request_id", id),
		metrics: o.metrics,
	}

	filterQuery, sortQuery, pageQuery, err := split(query, o.keys)
	if err != nil {
		q.queryErr = err
	}

	env := orchestrator.Env[B]{
		Adapter:   a,
		Overrides: overrides,
		Consumer:  o.consumer,
		Logger:    q.logger,
	}
	q.filter = orchestrator.New(orchestrator.Filterer[B](o.keys.Filter, cfg.DefaultFilterOperator), filterQuery, s, env)
	q.sort = orchestrator.New(orchestrator.Sorter[B](o.keys.Sort), sortQuery, s, env)
	q.page = orchestrator.New(orchestrator.Pager[B](o.keys.Page), pageQuery, s, env)

	return q, nil
}

// checkOperators rejects whitelisted operators the adapter cannot apply. An
// adapter that lists no operators accepts any.
func checkOperators(s *schema.Schema, cfg adapter.Config) error {
	if len(cfg.FilterOperators) == 0 {
		return nil
	}
	var err error
	s.Filters().Range(func(_ string, entry schema.FilterEntry) bool {
		if !cfg.Supports(entry.Operator) {
			err = fmt.Errorf("querier: filter %q uses operator %q, which the adapter does not support", entry.Name, entry.Operator)
			return false
		}
		return true
	})
	return err
}

// split picks the three facet queries out of the request query. Keys other
// than the facet keys are left to the application.
func split(query any, keys QueryKeys) (filter, sort, page any, err error) {
	if query == nil {
		return nil, nil, nil, nil
	}
	obj, ok := ordmap.Object(query)
	if !ok {
		return nil, nil, nil, validator.NewValidationError(validator.LayerShape, "query", "must be of type object")
	}
	filter, _ = obj.Get(keys.Filter)
	sort, _ = obj.Get(keys.Sort)
	page, _ = obj.Get(keys.Page)
	return filter, sort, page, nil
}

// ID returns the request ID.
func (q *Querier[B]) ID() string {
	return q.id
}

// Schema returns the whitelist built by New.
func (q *Querier[B]) Schema() *schema.Schema {
	return q.schema
}

// QueryKeys returns the facet query keys in use.
func (q *Querier[B]) QueryKeys() QueryKeys {
	return q.keys
}

// Validate validates filter, sort and page, in that order, stopping at the
// first failure. Repeated calls return the first result.
func (q *Querier[B]) Validate() error {
	if q.validated {
		return q.validateErr
	}
	q.validated = true

	facet, err := q.validate()
	if err != nil {
		q.validateErr = err
		q.reject(facet, err)
		return err
	}
	q.logger.Debug("query validated")
	return nil
}

func (q *Querier[B]) validate() (string, error) {
	if q.queryErr != nil {
		return "query", q.queryErr
	}
	if _, err := q.filter.Validate(); err != nil {
		return q.keys.Filter, err
	}
	if _, err := q.sort.Validate(); err != nil {
		return q.keys.Sort, err
	}
	if _, err := q.page.Validate(); err != nil {
		return q.keys.Page, err
	}
	return "", nil
}

func (q *Querier[B]) reject(facet string, err error) {
	if ve, ok := validator.AsValidationError(err); ok {
		q.logger.Warn("query rejected",
			"facet", facet,
			"layer", ve.Layer,
			"error", err,
		)
		q.metrics.ObserveRejection(facet, string(ve.Layer))
		return
	}
	q.logger.Error("query failed",
		"facet", facet,
		"error", err,
	)
}

// Run validates the whole query, then applies filters, sorts and the page to
// builder and returns the result. On error the original builder is returned.
func (q *Querier[B]) Run(builder B) (B, error) {
	start := time.Now()
	defer func() {
		q.metrics.ObserveRun(time.Since(start))
	}()

	if err := q.Validate(); err != nil {
		q.metrics.ObserveQuery(outcome(err))
		return builder, err
	}

	out, err := q.apply(builder)
	if err != nil {
		q.logger.Error("query apply failed", "error", err)
		q.metrics.ObserveQuery(outcome(err))
		return builder, err
	}

	q.metrics.ObserveQuery(metrics.OutcomeOK)
	q.logger.Info("query applied", "duration", time.Since(start))
	return out, nil
}

func (q *Querier[B]) apply(builder B) (B, error) {
	var err error
	if builder, err = q.filter.Run(builder); err != nil {
		return builder, err
	}
	if builder, err = q.sort.Run(builder); err != nil {
		return builder, err
	}
	if builder, err = q.page.Run(builder); err != nil {
		return builder, err
	}

	filters, _ := q.filter.Validate()
	sorts, _ := q.sort.Validate()
	q.metrics.ObserveApplied(q.keys.Filter, filters.Len())
	q.metrics.ObserveApplied(q.keys.Sort, sorts.Len())
	if _, ok := q.pageValue(); ok {
		q.metrics.ObserveApplied(q.keys.Page, 1)
	}
	return builder, nil
}

func outcome(err error) string {
	if validator.IsValidationError(err) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

// Filters returns the validated filters keyed by canonical key, in whitelist
// order.
func (q *Querier[B]) Filters() (*descriptor.Filters, error) {
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.filter.Validate()
}

// Sorts returns the validated sorts keyed by canonical key, in query order.
func (q *Querier[B]) Sorts() (*descriptor.Sorts, error) {
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.sort.Validate()
}

// Page returns the validated page fields keyed by field name.
func (q *Querier[B]) Page() (*descriptor.PageSet, error) {
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.page.Validate()
}

func (q *Querier[B]) pageValue() (descriptor.Page, bool) {
	set, err := q.Page()
	if err != nil {
		return descriptor.Page{}, false
	}
	return descriptor.PageOf(set)
}
