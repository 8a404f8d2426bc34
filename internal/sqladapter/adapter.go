// Package sqladapter applies parsed query descriptors to a queryir.Select.
//
// Supported filter operators:
//
//	=  != <>  >  >=  <  <=   comparison with a scalar
//	in  nin                  membership in a list
//	like  nlike              SQL LIKE pattern
//	null                     true: IS NULL, false: IS NOT NULL
//
// The default operator is "=".
package sqladapter

import (
	"fmt"

	"github.com/roach88/querier/internal/adapter"
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/queryir"
	"github.com/roach88/querier/internal/rule"
	"github.com/roach88/querier/internal/validator"
)

// Filter operators.
const (
	OpEq      = "="
	OpNe      = "!="
	OpNeAlt   = "<>"
	OpGt      = ">"
	OpGte     = ">="
	OpLt      = "<"
	OpLte     = "<="
	OpIn      = "in"
	OpNotIn   = "nin"
	OpLike    = "like"
	OpNotLike = "nlike"
	OpNull    = "null"
)

// DefaultOp applies to filters given as a plain value.
const DefaultOp = OpEq

// MaxPageSize bounds LIMIT.
const MaxPageSize = 1000

// Operators lists every supported filter operator.
var Operators = []string{OpEq, OpNe, OpNeAlt, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpLike, OpNotLike, OpNull}

var compareOps = map[string]queryir.CompareOp{
	OpEq:    queryir.OpEq,
	OpNe:    queryir.OpNe,
	OpNeAlt: queryir.OpNe,
	OpGt:    queryir.OpGt,
	OpGte:   queryir.OpGte,
	OpLt:    queryir.OpLt,
	OpLte:   queryir.OpLte,
}

// Adapter builds queryir.Select values.
type Adapter struct {
	validator *validator.AdapterValidator
}

// New creates an Adapter.
func New() *Adapter {
	return &Adapter{validator: validator.NewAdapterValidator(Schemas())}
}

// Schemas returns the value types the SQL backend accepts.
//
// Scalars are numbers, strings, booleans or null; numeric strings become
// numbers so they bind with the right SQL type.
func Schemas() validator.AdapterSchemas {
	filters := make(map[string]rule.Schema, len(Operators))
	for op := range compareOps {
		filters[op] = scalar()
	}
	filters[OpIn] = rule.Array(scalar())
	filters[OpNotIn] = rule.Array(scalar())
	filters[OpLike] = rule.String()
	filters[OpNotLike] = rule.String()
	filters[OpNull] = rule.Bool()

	return validator.AdapterSchemas{
		Filters: filters,
		Sort:    rule.String().Insensitive().Valid(descriptor.Asc, descriptor.Desc),
		Page: map[string]rule.Schema{
			descriptor.PageSizeField:   rule.Number().Integer().Positive().Max(MaxPageSize),
			descriptor.PageNumberField: rule.Number().Integer().Positive(),
			descriptor.PageOffsetField: rule.Number().Integer().Min(0),
		},
	}
}

// scalar converts a numeric string only when the conversion is lossless, so
// "30" binds as 30 while "02134" and "1e3" bind as written.
func scalar() rule.Schema {
	return rule.Alternatives(rule.Number().Exact(), rule.String(), rule.Bool().Strict(), rule.Null())
}

// Filter adds a WHERE condition.
func (a *Adapter) Filter(q queryir.Select, f descriptor.Filter) (queryir.Select, error) {
	if op, ok := compareOps[f.Operator]; ok {
		return q.Where(queryir.Compare{Field: f.Field, Op: op, Value: f.Value}), nil
	}

	switch f.Operator {
	case OpIn, OpNotIn:
		values, ok := asList(f.Value)
		if !ok {
			return q, fmt.Errorf("filter %s[%s]: expected a list, got %T", f.Name, f.Operator, f.Value)
		}
		return q.Where(queryir.In{Field: f.Field, Values: values, Negate: f.Operator == OpNotIn}), nil
	case OpLike, OpNotLike:
		pattern, ok := f.Value.(string)
		if !ok {
			return q, fmt.Errorf("filter %s[%s]: expected a string, got %T", f.Name, f.Operator, f.Value)
		}
		return q.Where(queryir.Like{Field: f.Field, Pattern: pattern, Negate: f.Operator == OpNotLike}), nil
	case OpNull:
		isNull, ok := f.Value.(bool)
		if !ok {
			return q, fmt.Errorf("filter %s[%s]: expected a boolean, got %T", f.Name, f.Operator, f.Value)
		}
		return q.Where(queryir.IsNull{Field: f.Field, Negate: !isNull}), nil
	default:
		return q, fmt.Errorf("filter %s: unsupported operator %q", f.Name, f.Operator)
	}
}

// Sort adds an ORDER BY term.
func (a *Adapter) Sort(q queryir.Select, s descriptor.Sort) (queryir.Select, error) {
	return q.OrderByField(s.Field, s.Order == descriptor.Desc), nil
}

// Page sets LIMIT and OFFSET.
func (a *Adapter) Page(q queryir.Select, p descriptor.Page) (queryir.Select, error) {
	return q.Paginate(p.Size, p.Offset), nil
}

// Config implements adapter.Adapter.
func (a *Adapter) Config() adapter.Config {
	return adapter.Config{
		FilterOperators:       Operators,
		DefaultFilterOperator: DefaultOp,
	}
}

// Validator implements adapter.Adapter.
func (a *Adapter) Validator() validator.Facets {
	return a.validator
}

var _ adapter.Adapter[queryir.Select] = (*Adapter)(nil)

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
