// Package qs decodes bracketed query strings into the query value model.
//
//	filter[age][>]=30&filter[name]=bob&sort[]=age&sort[]=name&page[size]=10
//
// decodes to
//
//	{"filter": {"age": {">": "30"}, "name": "bob"}, "sort": ["age", "name"], "page": {"size": "10"}}
//
// Objects keep the order keys first appear in, so sort[b]=desc&sort[a]=asc
// keeps b ahead of a. Values stay strings; validators coerce them. A repeated
// key or a "[]" suffix makes a list, and an object whose keys are exactly
// 0..n-1 in some order becomes a list ordered by index.
package qs

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/validator"
)

const (
	// MaxDepth bounds bracket nesting below the top-level key.
	MaxDepth = 5

	// MaxParams bounds the number of key=value pairs.
	MaxParams = 1000
)

// Parse decodes a raw query string. A leading "?" is ignored.
func Parse(raw string) (*ordmap.Map[any], error) {
	raw = strings.TrimPrefix(raw, "?")
	root := ordmap.New[any]()
	if raw == "" {
		return root, nil
	}

	pairs := strings.Split(raw, "&")
	if len(pairs) > MaxParams {
		return nil, validator.NewValidationError(validator.LayerShape, "query",
			fmt.Sprintf("must have at most %d parameters", MaxParams))
	}

	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decode value of %q: %w", key, err)
		}

		segs := splitKey(key)
		if len(segs)-1 > MaxDepth {
			return nil, validator.NewValidationError(validator.LayerShape, segs[0],
				fmt.Sprintf("must be nested at most %d levels deep", MaxDepth))
		}
		if err := insert(root, nil, segs, value); err != nil {
			return nil, err
		}
	}

	out := ordmap.New[any]()
	root.Range(func(k string, v any) bool {
		out.Set(k, compact(v))
		return true
	})
	return out, nil
}

// splitKey splits "a[b][c]" into ["a", "b", "c"]. A key that is not well
// formed is kept whole.
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return []string{key}
	}
	segs := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		segs = append(segs, rest[1:end])
		rest = rest[end+1:]
	}
	return segs
}

func insert(obj *ordmap.Map[any], path, segs []string, value string) error {
	key := segs[0]
	path = append(path, key)
	existing, exists := obj.Get(key)

	// a[]=x or a=x: leaf, repeated keys collect into a list
	if len(segs) == 1 || (len(segs) == 2 && segs[1] == "") {
		if !exists {
			if len(segs) == 2 {
				obj.Set(key, []any{value})
			} else {
				obj.Set(key, value)
			}
			return nil
		}
		switch e := existing.(type) {
		case string:
			obj.Set(key, []any{e, value})
		case []any:
			obj.Set(key, append(e, value))
		default:
			return conflict(path)
		}
		return nil
	}

	if segs[1] == "" {
		return validator.NewValidationError(validator.LayerShape, joinPath(path), "must not nest below []")
	}

	if !exists {
		child := ordmap.New[any]()
		obj.Set(key, child)
		return insert(child, path, segs[1:], value)
	}
	child, ok := existing.(*ordmap.Map[any])
	if !ok {
		return conflict(path)
	}
	return insert(child, path, segs[1:], value)
}

func conflict(path []string) error {
	return validator.NewValidationError(validator.LayerShape, joinPath(path), "has conflicting values")
}

func joinPath(path []string) string {
	return validator.JoinPath(path[0], path[1:])
}

// compact turns index-keyed objects into lists, recursively.
func compact(v any) any {
	switch val := v.(type) {
	case *ordmap.Map[any]:
		out := ordmap.New[any]()
		val.Range(func(k string, item any) bool {
			out.Set(k, compact(item))
			return true
		})
		if list, ok := asIndexed(out); ok {
			return list
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = compact(item)
		}
		return out
	default:
		return v
	}
}

// asIndexed returns obj as a list when its keys are exactly 0..n-1.
func asIndexed(obj *ordmap.Map[any]) ([]any, bool) {
	if obj.Len() == 0 {
		return nil, false
	}
	indexes := make([]int, 0, obj.Len())
	for _, k := range obj.Keys() {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 || strconv.Itoa(n) != k {
			return nil, false
		}
		indexes = append(indexes, n)
	}
	slices.Sort(indexes)
	for i, n := range indexes {
		if i != n {
			return nil, false
		}
	}
	out := make([]any, len(indexes))
	for _, n := range indexes {
		out[n], _ = obj.Get(strconv.Itoa(n))
	}
	return out, true
}
