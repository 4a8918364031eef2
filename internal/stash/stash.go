// Package stash holds values captured during a test run so that later steps can
// reference them through {name} placeholders.
package stash

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
)

// Kind identifies which member of the Value union is set.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject // JSON objects and arrays
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a typed stash entry. Keeping the kind next to the value avoids
// comparing a captured number against its string rendering by accident.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  any
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// ValueOf converts a decoded JSON value (as produced by json.Unmarshal into an
// any) into a Value. Go integer and float types are accepted as numbers so that
// literals from code can be stored directly.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return String(x.String())
		}
		return Number(f)
	default:
		return Value{kind: KindObject, obj: x}
	}
}

// Kind reports which member of the union is set.
func (v Value) Kind() Kind { return v.kind }

// Interface returns the value in the shape json.Unmarshal would produce.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindObject:
		return v.obj
	default:
		return nil
	}
}

// String renders the value for placeholder substitution: strings verbatim,
// numbers in their shortest decimal form, objects and arrays as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return strconv.FormatFloat(v.num, 'g', -1, 64)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindObject:
		data, err := json.Marshal(v.obj)
		if err != nil {
			return fmt.Sprintf("%v", v.obj)
		}
		return string(data)
	default:
		return "null"
	}
}

// Stash is a run-scoped key/value store. Last write wins; entries never expire.
type Stash struct {
	mu    sync.RWMutex
	items map[string]Value
}

// New creates an empty Stash.
func New() *Stash {
	return &Stash{items: make(map[string]Value)}
}

// Set stores v under key, replacing any previous value.
func (s *Stash) Set(key string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = v
}

// Put stores a decoded JSON value under key.
func (s *Stash) Put(key string, v any) {
	s.Set(key, ValueOf(v))
}

// Get returns the value stored under key.
func (s *Stash) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Delete removes key. Returns true if it existed.
func (s *Stash) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

// Keys returns all keys in sorted order.
func (s *Stash) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Stash) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset removes every entry.
func (s *Stash) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]Value)
}
