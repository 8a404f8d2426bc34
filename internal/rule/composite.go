package rule

import (
	"fmt"
	"strconv"

	"github.com/roach88/querier/internal/ordmap"
)

// ArraySchema accepts lists whose items all satisfy one schema.
type ArraySchema struct {
	items  Schema
	unique bool
	min    int
}

// Array returns a list schema. A nil items schema accepts any item.
func Array(items Schema) *ArraySchema {
	if items == nil {
		items = Any()
	}
	return &ArraySchema{items: items}
}

// Unique rejects lists containing the same item twice.
func (s *ArraySchema) Unique() *ArraySchema {
	s.unique = true
	return s
}

// Min requires at least n items.
func (s *ArraySchema) Min(n int) *ArraySchema {
	s.min = n
	return s
}

func (s *ArraySchema) Validate(v any, path []string) (any, error) {
	list, ok := asList(v)
	if !ok {
		return nil, mismatch(path, "must be an array")
	}
	if len(list) < s.min {
		return nil, fail(path, fmt.Sprintf("must contain at least %d items", s.min))
	}

	out := make([]any, len(list))
	seen := make(map[string]struct{}, len(list))
	for i, item := range list {
		itemPath := child(path, strconv.Itoa(i))
		converted, err := s.items.Validate(item, itemPath)
		if err != nil {
			return nil, err
		}
		if s.unique {
			key := fmt.Sprintf("%T\x00%v", converted, converted)
			if _, dup := seen[key]; dup {
				return nil, fail(itemPath, "contains a duplicate value")
			}
			seen[key] = struct{}{}
		}
		out[i] = converted
	}
	return out, nil
}

func (s *ArraySchema) TypeName() string { return "array" }

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

// KeySchema pairs an object key with the schema of its value.
type KeySchema struct {
	Name   string
	Schema Schema
}

// Key declares an object key.
func Key(name string, schema Schema) KeySchema {
	return KeySchema{Name: name, Schema: schema}
}

// ObjectSchema accepts objects whose keys are declared up front.
//
// All declared keys are optional. Undeclared keys fail with "is not allowed"
// unless Unknown(true) is set, in which case they pass through unchecked.
type ObjectSchema struct {
	keys    *ordmap.Map[Schema]
	unknown bool
}

// Object returns an object schema with the given keys.
func Object(keys ...KeySchema) *ObjectSchema {
	s := &ObjectSchema{keys: ordmap.New[Schema]()}
	for _, k := range keys {
		s.keys.Set(k.Name, k.Schema)
	}
	return s
}

// Unknown controls whether undeclared keys are allowed.
func (s *ObjectSchema) Unknown(allow bool) *ObjectSchema {
	s.unknown = allow
	return s
}

// Keys returns the declared key names in declaration order.
func (s *ObjectSchema) Keys() []string {
	return s.keys.Keys()
}

func (s *ObjectSchema) Validate(v any, path []string) (any, error) {
	obj, ok := ordmap.Object(v)
	if !ok {
		return nil, mismatch(path, "must be of type object")
	}

	out := ordmap.New[any]()
	var err error
	obj.Range(func(key string, val any) bool {
		keySchema, declared := s.keys.Get(key)
		if !declared {
			if !s.unknown {
				err = fail(child(path, key), "is not allowed")
				return false
			}
			out.Set(key, val)
			return true
		}
		var converted any
		converted, err = keySchema.Validate(val, child(path, key))
		if err != nil {
			return false
		}
		out.Set(key, converted)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ObjectSchema) TypeName() string { return "object" }

// AlternativesSchema accepts a value matching any of several schemas.
type AlternativesSchema struct {
	try []Schema
}

// Alternatives returns a schema that tries each alternative in order and
// accepts the first match.
//
// When nothing matches, the error of the first alternative that accepted the
// value's type (but rejected its content) is reported. If no alternative
// accepted the type, the failure is "must be one of [<type names>]". A single
// alternative reports its own error unchanged.
func Alternatives(schemas ...Schema) *AlternativesSchema {
	return &AlternativesSchema{try: schemas}
}

func (s *AlternativesSchema) Validate(v any, path []string) (any, error) {
	if len(s.try) == 0 {
		return nil, fail(path, "is not allowed")
	}
	if len(s.try) == 1 {
		return s.try[0].Validate(v, path)
	}

	var contentErr error
	for _, alt := range s.try {
		out, err := alt.Validate(v, path)
		if err == nil {
			return out, nil
		}
		if contentErr != nil {
			continue
		}
		if re, ok := err.(*Error); ok && re.mismatch && samePath(re.Path, path) {
			continue
		}
		contentErr = err
	}
	if contentErr != nil {
		return nil, contentErr
	}
	return nil, mismatch(path, OneOf(s.typeNames()))
}

func (s *AlternativesSchema) typeNames() []string {
	var names []string
	seen := make(map[string]bool, len(s.try))
	for _, alt := range s.try {
		name := alt.TypeName()
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func (s *AlternativesSchema) TypeName() string { return "alternatives" }

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
