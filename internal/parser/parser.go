// Package parser turns one raw query facet (filter, sort or page) into a
// canonical ordered set of descriptors.
//
// Every parser checks the raw shape against a schema synthesized from the
// whitelist (see FilterShape, SortShape and PageShape) before it reads
// anything. Shape validation runs at most once per parser. An empty or
// absent facet query is never validated; filters and sorts parse it to an
// empty set, the page parser to its defaults.
package parser

import (
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/rule"
	"github.com/roach88/querier/internal/validator"
)

// Parser normalizes one query facet into descriptors of type D.
type Parser[D any] interface {
	// QueryKey is the facet's key in the request query ("filter", "sort", "page").
	QueryKey() string

	// Validate checks the raw shape. The result is cached.
	Validate() error

	// Parse validates, then builds a fresh descriptor set keyed by BuildKey.
	Parse() (*ordmap.Map[D], error)

	// BuildKey returns the canonical key of a descriptor.
	BuildKey(d D) string

	// Flatten maps canonical keys to bare values for consumer validation.
	Flatten(set *ordmap.Map[D]) *ordmap.Map[any]

	// Runs reports how many times shape validation was evaluated.
	Runs() int
}

// base carries what every facet parser shares.
type base struct {
	queryKey  string
	query     any
	validator *validator.ParserValidator

	validated   bool
	validateErr error
}

func newBase(queryKey string, query any, shape rule.Schema) base {
	return base{
		queryKey:  queryKey,
		query:     query,
		validator: validator.NewParserValidator(queryKey, shape),
	}
}

func (b *base) QueryKey() string {
	return b.queryKey
}

func (b *base) Validate() error {
	if b.validated {
		return b.validateErr
	}
	b.validated = true
	if Empty(b.query) {
		return nil
	}
	b.validateErr = b.validator.Validate(b.query)
	return b.validateErr
}

func (b *base) Runs() int {
	return b.validator.Runs()
}

// Empty reports whether a facet query is absent: nil, "", or an empty list
// or object.
func Empty(query any) bool {
	switch q := query.(type) {
	case nil:
		return true
	case string:
		return q == ""
	case []any:
		return len(q) == 0
	case []string:
		return len(q) == 0
	case map[string]any:
		return len(q) == 0
	case *ordmap.Map[any]:
		return q.Len() == 0
	default:
		return false
	}
}
