// Package orchestrator sequences one query facet through parsing,
// validation and application to a builder.
//
// A single generic Orchestrator serves all three facets. What differs per
// facet (query key, enablement, parser, validator hook, apply loop) is
// supplied as a Facet record; see Filterer, Sorter and Pager.
//
// Lifecycle per instance: parse (cached) -> validate (cached) -> run. Run
// always validates first and Validate always parses first. An Orchestrator is
// request-scoped and not safe for concurrent use.
package orchestrator

import (
	"log/slog"

	"github.com/roach88/querier/internal/adapter"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/parser"
	"github.com/roach88/querier/internal/schema"
	"github.com/roach88/querier/internal/validator"
)

// Env holds the collaborators an Orchestrator applies and validates with.
type Env[B any] struct {
	Adapter   adapter.Adapter[B]
	Overrides adapter.Overrides[B]

	// Consumer is the caller's value validator. Nil skips the layer.
	Consumer validator.Facets

	Logger *slog.Logger
}

// Facet is the capability record of one query facet.
type Facet[B, D any] struct {
	// QueryKey is the facet's key in the request query.
	QueryKey string

	// IsEnabled reports whether the schema turns the facet on.
	IsEnabled func(s *schema.Schema) bool

	// BuildParser creates the facet parser for one query.
	BuildParser func(queryKey string, query any, s *schema.Schema) parser.Parser[D]

	// Validate runs one value validator over a parsed set.
	Validate func(v validator.Facets, queryKey string, set *ordmap.Map[D]) (*ordmap.Map[D], error)

	// Apply applies a validated set to builder.
	Apply func(env Env[B], s *schema.Schema, queryKey string, builder B, set *ordmap.Map[D]) (B, error)
}

// Orchestrator runs one facet of one request.
type Orchestrator[B, D any] struct {
	facet  Facet[B, D]
	query  any
	schema *schema.Schema
	env    Env[B]
	parser parser.Parser[D]

	parsed    *ordmap.Map[D]
	parseErr  error
	parseDone bool

	validated    *ordmap.Map[D]
	validateErr  error
	validateDone bool
}

// New creates an Orchestrator for facet over the facet's raw query.
func New[B, D any](facet Facet[B, D], query any, s *schema.Schema, env Env[B]) *Orchestrator[B, D] {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	return &Orchestrator[B, D]{
		facet:  facet,
		query:  query,
		schema: s,
		env:    env,
	}
}

// QueryKey returns the facet's query key.
func (o *Orchestrator[B, D]) QueryKey() string {
	return o.facet.QueryKey
}

// IsEnabled reports whether the schema enables the facet.
func (o *Orchestrator[B, D]) IsEnabled() bool {
	return o.facet.IsEnabled(o.schema)
}

// Parser returns the facet parser, or nil before the first Parse of an
// enabled facet.
func (o *Orchestrator[B, D]) Parser() parser.Parser[D] {
	return o.parser
}

// Parse parses the facet query. Repeated calls return the same set.
//
// A disabled facet parses to an empty set when the query is silent about it
// and fails with a disabled error otherwise.
func (o *Orchestrator[B, D]) Parse() (*ordmap.Map[D], error) {
	if o.parseDone {
		return o.parsed, o.parseErr
	}
	o.parseDone = true

	if !o.IsEnabled() {
		if !parser.Empty(o.query) {
			o.parseErr = validator.Disabled(o.facet.QueryKey)
			return nil, o.parseErr
		}
		o.parsed = ordmap.New[D]()
		return o.parsed, nil
	}

	o.parser = o.facet.BuildParser(o.facet.QueryKey, o.query, o.schema)
	o.parsed, o.parseErr = o.parser.Parse()
	return o.parsed, o.parseErr
}

// Validate parses, then runs the adapter and consumer value validators in
// that order. Each layer's output feeds the next. Repeated calls return the
// same set.
func (o *Orchestrator[B, D]) Validate() (*ordmap.Map[D], error) {
	if o.validateDone {
		return o.validated, o.validateErr
	}
	o.validateDone = true

	set, err := o.Parse()
	if err != nil {
		o.validateErr = err
		return nil, err
	}
	if !o.IsEnabled() || set.Len() == 0 {
		o.validated = set
		return set, nil
	}

	for _, layer := range o.layers() {
		set, err = o.facet.Validate(layer, o.facet.QueryKey, set)
		if err != nil {
			o.validateErr = err
			return nil, err
		}
	}
	o.validated = set
	return set, nil
}

func (o *Orchestrator[B, D]) layers() []validator.Facets {
	var layers []validator.Facets
	if o.env.Adapter != nil {
		if v := o.env.Adapter.Validator(); v != nil {
			layers = append(layers, v)
		}
	}
	if o.env.Consumer != nil {
		layers = append(layers, o.env.Consumer)
	}
	return layers
}

// Run validates, then applies the facet to builder and returns the
// resulting builder.
func (o *Orchestrator[B, D]) Run(builder B) (B, error) {
	set, err := o.Validate()
	if err != nil {
		return builder, err
	}
	if set.Len() == 0 {
		return builder, nil
	}
	o.env.Logger.Debug("applying facet",
		"facet", o.facet.QueryKey,
		"entries", set.Len(),
	)
	return o.facet.Apply(o.env, o.schema, o.facet.QueryKey, builder, set)
}
