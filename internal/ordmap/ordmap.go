// Package ordmap provides an insertion-ordered string-keyed map.
//
// Request query objects carry meaning in their key order (sort precedence is
// whatever order the caller wrote), and Go maps forget it. Every decoder in
// this module produces *Map[any] for objects so that order survives from the
// wire to the adapter.
//
// A nil *Map is a valid empty map for all read methods.
package ordmap

import (
	"bytes"
	"sort"

	json "github.com/goccy/go-json"
)

// Map is an insertion-ordered map from string keys to V.
//
// Setting an existing key overwrites its value in place; the key keeps its
// original position.
type Map[V any] struct {
	keys   []string
	values map[string]V
}

// New creates an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{values: make(map[string]V)}
}

// Set stores value under key, appending key if it is new.
func (m *Map[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
func (m *Map[V]) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map[V]) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (m *Map[V]) Clone() *Map[V] {
	out := New[V]()
	m.Range(func(k string, v V) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m *Map[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	m.Range(func(k string, v V) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = json.Marshal(v); err != nil {
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Object views v as an ordered object.
//
// *Map[any] is returned as-is. A map[string]any is converted with its keys in
// sorted order, which is the only deterministic order available for it.
func Object(v any) (*Map[any], bool) {
	switch obj := v.(type) {
	case *Map[any]:
		if obj == nil {
			return nil, false
		}
		return obj, true
	case map[string]any:
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := New[any]()
		for _, k := range keys {
			out.Set(k, obj[k])
		}
		return out, true
	default:
		return nil, false
	}
}

// Plain converts ordered objects inside v into map[string]any, recursively.
// Libraries that walk values by reflection expect the plain form.
func Plain(v any) any {
	switch val := v.(type) {
	case *Map[any]:
		if val == nil {
			return nil
		}
		out := make(map[string]any, val.Len())
		val.Range(func(k string, item any) bool {
			out[k] = Plain(item)
			return true
		})
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Plain(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Plain(item)
		}
		return out
	default:
		return v
	}
}
