package validator

import (
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/rule"
)

// FlatValidator validates a flattened view of parsed values: canonical key
// to value. Keys it has no rule for must pass untouched. Implementations
// return the (possibly converted) values or a *ValidationError.
type FlatValidator interface {
	ValidateFlat(values *ordmap.Map[any]) (*ordmap.Map[any], error)
}

// ConsumerValidator applies a caller's FlatValidator to each facet.
type ConsumerValidator struct {
	flat FlatValidator
}

// NewConsumerValidator creates a ConsumerValidator backed by flat.
func NewConsumerValidator(flat FlatValidator) *ConsumerValidator {
	return &ConsumerValidator{flat: flat}
}

// ValidateFilters validates the flattened filter values.
func (v *ConsumerValidator) ValidateFilters(filters *descriptor.Filters) (*descriptor.Filters, error) {
	values, err := v.flat.ValidateFlat(descriptor.FlattenFilters(filters))
	if err != nil {
		return nil, err
	}
	out := ordmap.New[descriptor.Filter]()
	filters.Range(func(key string, f descriptor.Filter) bool {
		if val, ok := values.Get(key); ok {
			f.Value = val
		}
		out.Set(key, f)
		return true
	})
	return out, nil
}

// ValidateSorts validates the flattened sort orders.
func (v *ConsumerValidator) ValidateSorts(sorts *descriptor.Sorts) (*descriptor.Sorts, error) {
	values, err := v.flat.ValidateFlat(descriptor.FlattenSorts(sorts))
	if err != nil {
		return nil, err
	}
	out := ordmap.New[descriptor.Sort]()
	sorts.Range(func(key string, s descriptor.Sort) bool {
		if val, ok := values.Get(key); ok {
			if order, isString := val.(string); isString {
				s.Order = order
			}
		}
		out.Set(key, s)
		return true
	})
	return out, nil
}

// ValidatePage validates the flattened page values. The offset is always
// re-derived afterwards.
func (v *ConsumerValidator) ValidatePage(queryKey string, page *descriptor.PageSet) (*descriptor.PageSet, error) {
	values, err := v.flat.ValidateFlat(descriptor.FlattenPage(queryKey, page))
	if err != nil {
		return nil, err
	}
	return rebuildPage(LayerConsumer, queryKey, page, func(field string) (any, bool) {
		return values.Get(descriptor.PageKey(queryKey, field))
	})
}

// RuleSchema is a FlatValidator built from rule schemas keyed by canonical
// key, e.g. rule.Key("filter:age[>]", rule.Number().Min(18)).
type RuleSchema struct {
	object *rule.ObjectSchema
}

// NewRuleSchema creates a RuleSchema. Unlisted keys are allowed.
func NewRuleSchema(keys ...rule.KeySchema) *RuleSchema {
	return &RuleSchema{object: rule.Object(keys...).Unknown(true)}
}

// ValidateFlat implements FlatValidator.
func (s *RuleSchema) ValidateFlat(values *ordmap.Map[any]) (*ordmap.Map[any], error) {
	out, err := s.object.Validate(values, nil)
	if err != nil {
		return nil, fromRuleError(LayerConsumer, "", err)
	}
	return out.(*ordmap.Map[any]), nil
}
