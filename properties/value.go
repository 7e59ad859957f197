// Package properties models connman property values and translates
// property maps between the D-Bus wire form and the presentation form
// used by the rest of the backend.
package properties

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	KindBool Kind = iota
	KindNumber
	KindString
	KindStrings
	KindMap
	KindMapList
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindStrings:
		return "strings"
	case KindMap:
		return "map"
	case KindMapList:
		return "maplist"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Map is a property map keyed by property name.
type Map map[string]Value

// Value is a single property value. The zero value is Bool(false).
type Value struct {
	kind   Kind
	b      bool
	n      int64
	s      string
	strs   []string
	m      Map
	list   []Map
	opaque any
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns an integer value.
func Number(n int64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Strings returns a string list value.
func Strings(s []string) Value { return Value{kind: KindStrings, strs: s} }

// MapValue returns a nested map value.
func MapValue(m Map) Value { return Value{kind: KindMap, m: m} }

// MapList returns a list of flat maps, as used for route lists.
func MapList(l []Map) Value { return Value{kind: KindMapList, list: l} }

// Opaque wraps a wire value that has no structured equivalent.
func Opaque(v any) Value { return Value{kind: KindOpaque, opaque: v} }

func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the integer and whether v holds one.
func (v Value) AsNumber() (int64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsStrings returns the string list and whether v holds one.
func (v Value) AsStrings() ([]string, bool) { return v.strs, v.kind == KindStrings }

// AsMap returns the nested map and whether v holds one.
func (v Value) AsMap() (Map, bool) { return v.m, v.kind == KindMap }

// AsMapList returns the map list and whether v holds one.
func (v Value) AsMapList() ([]Map, bool) { return v.list, v.kind == KindMapList }

// Raw returns the wrapped value of an Opaque.
func (v Value) Raw() any { return v.opaque }

// Equal reports deep equality. Opaque values compare with ==, and
// uncomparable opaque payloads are never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindStrings:
		if len(v.strs) != len(o.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != o.strs[i] {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	case KindMapList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return opaqueEqual(v.opaque, o.opaque)
	}
}

func opaqueEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// Text renders v for display.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatInt(v.n, 10)
	case KindString:
		return v.s
	case KindStrings:
		return strings.Join(v.strs, ", ")
	case KindMap:
		return v.m.String()
	case KindMapList:
		parts := make([]string, len(v.list))
		for i, m := range v.list {
			parts[i] = m.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprint(v.opaque)
	}
}

// Plain converts v to plain Go values suitable for YAML or JSON encoding.
func (v Value) Plain() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindStrings:
		return append([]string(nil), v.strs...)
	case KindMap:
		return v.m.Plain()
	case KindMapList:
		out := make([]map[string]any, len(v.list))
		for i, m := range v.list {
			out[i] = m.Plain()
		}
		return out
	default:
		return fmt.Sprint(v.opaque)
	}
}

// Equal reports whether both maps hold equal values under the same keys.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

func (v Value) clone() Value {
	switch v.kind {
	case KindStrings:
		v.strs = append([]string(nil), v.strs...)
	case KindMap:
		v.m = v.m.Clone()
	case KindMapList:
		list := make([]Map, len(v.list))
		for i, m := range v.list {
			list[i] = m.Clone()
		}
		v.list = list
	}
	return v
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Str returns the string stored under key, or "" if absent or not a string.
func (m Map) Str(key string) string {
	s, _ := m[key].AsString()
	return s
}

// Plain converts m to a map of plain Go values.
func (m Map) Plain() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Plain()
	}
	return out
}

func (m Map) String() string {
	parts := make([]string, 0, len(m))
	for _, k := range m.Keys() {
		parts = append(parts, k+"="+m[k].Text())
	}
	return "{" + strings.Join(parts, " ") + "}"
}
