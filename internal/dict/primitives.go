package dict

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"github.com/typesugar/typesugar/internal/config"
)

// Hash mixing constants: FNV-1a, fixed for the life of the format.
// Derived Eq-equal values must produce equal hashes; every hash in
// this package reduces values to a canonical byte form first.
const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

func mix(h, x uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= x & 0xff
		h *= fnvPrime
		x >>= 8
	}
	return h
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// asNumber normalizes the numeric representations the value model
// admits. Scanners and tests hand us untyped Go literals, so ints and
// floats of equal value must compare (and hash) equal.
func asNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func asString(v Value) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v Value) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Primitive returns the builtin dictionary for a primitive type name
// (number, string, boolean) under the given typeclass.
func Primitive(typeclass, typeName string) (*Dict, bool) {
	switch typeName {
	case config.NumberTypeName:
		return numberDict(typeclass)
	case config.StringTypeName:
		return stringDict(typeclass)
	case config.BooleanTypeName:
		return booleanDict(typeclass)
	}
	return nil, false
}

func numberDict(typeclass string) (*Dict, bool) {
	d := New(typeclass, config.NumberTypeName)
	switch typeclass {
	case config.EqClassName:
		d.Eq = func(a, b Value) bool {
			x, okA := asNumber(a)
			y, okB := asNumber(b)
			return okA && okB && x == y
		}
	case config.OrdClassName:
		d.Ord = func(a, b Value) int {
			x, _ := asNumber(a)
			y, _ := asNumber(b)
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case config.HashClassName:
		d.Hash = func(v Value) uint64 {
			x, _ := asNumber(v)
			return mix(fnvOffset, math.Float64bits(x))
		}
	case config.ShowClassName:
		d.Show = func(v Value) string {
			x, ok := asNumber(v)
			if !ok {
				return fmt.Sprintf("%v", v)
			}
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
	case config.CloneClassName:
		d.Clone = func(v Value) Value { return v }
	case config.DefaultClassName:
		d.Default = func() Value { return float64(0) }
	case config.JsonClassName:
		d.Json = func(v Value) ([]byte, error) {
			x, ok := asNumber(v)
			if !ok {
				return nil, fmt.Errorf("not a number: %v", v)
			}
			return json.Marshal(x)
		}
	default:
		return nil, false
	}
	return d, true
}

func stringDict(typeclass string) (*Dict, bool) {
	d := New(typeclass, config.StringTypeName)
	switch typeclass {
	case config.EqClassName:
		d.Eq = func(a, b Value) bool {
			x, okA := asString(a)
			y, okB := asString(b)
			return okA && okB && x == y
		}
	case config.OrdClassName:
		d.Ord = func(a, b Value) int {
			x, _ := asString(a)
			y, _ := asString(b)
			return strings.Compare(x, y)
		}
	case config.HashClassName:
		d.Hash = func(v Value) uint64 {
			s, _ := asString(v)
			return hashString(s)
		}
	case config.ShowClassName:
		d.Show = func(v Value) string {
			s, ok := asString(v)
			if !ok {
				return fmt.Sprintf("%v", v)
			}
			return strconv.Quote(s)
		}
	case config.CloneClassName:
		d.Clone = func(v Value) Value { return v }
	case config.DefaultClassName:
		d.Default = func() Value { return "" }
	case config.JsonClassName:
		d.Json = func(v Value) ([]byte, error) {
			s, ok := asString(v)
			if !ok {
				return nil, fmt.Errorf("not a string: %v", v)
			}
			return json.Marshal(s)
		}
	default:
		return nil, false
	}
	return d, true
}

func booleanDict(typeclass string) (*Dict, bool) {
	d := New(typeclass, config.BooleanTypeName)
	switch typeclass {
	case config.EqClassName:
		d.Eq = func(a, b Value) bool {
			x, okA := asBool(a)
			y, okB := asBool(b)
			return okA && okB && x == y
		}
	case config.OrdClassName:
		d.Ord = func(a, b Value) int {
			x, _ := asBool(a)
			y, _ := asBool(b)
			switch {
			case !x && y:
				return -1
			case x && !y:
				return 1
			}
			return 0
		}
	case config.HashClassName:
		d.Hash = func(v Value) uint64 {
			b, _ := asBool(v)
			if b {
				return mix(fnvOffset, 1)
			}
			return mix(fnvOffset, 0)
		}
	case config.ShowClassName:
		d.Show = func(v Value) string {
			b, _ := asBool(v)
			return strconv.FormatBool(b)
		}
	case config.CloneClassName:
		d.Clone = func(v Value) Value { return v }
	case config.DefaultClassName:
		d.Default = func() Value { return false }
	case config.JsonClassName:
		d.Json = func(v Value) ([]byte, error) {
			b, ok := asBool(v)
			if !ok {
				return nil, fmt.Errorf("not a boolean: %v", v)
			}
			return json.Marshal(b)
		}
	default:
		return nil, false
	}
	return d, true
}

// ArrayOf lifts an element dictionary to Array<elem> under the same
// typeclass. forType is the rendered key (e.g. "Array<number>").
func ArrayOf(typeclass string, elem *Dict, forType string) (*Dict, bool) {
	d := New(typeclass, forType)
	switch typeclass {
	case config.EqClassName:
		d.Eq = func(a, b Value) bool {
			xs, okA := a.([]any)
			ys, okB := b.([]any)
			if !okA || !okB || len(xs) != len(ys) {
				return false
			}
			for i := range xs {
				if !elem.Eq(xs[i], ys[i]) {
					return false
				}
			}
			return true
		}
	case config.OrdClassName:
		d.Ord = func(a, b Value) int {
			xs, _ := a.([]any)
			ys, _ := b.([]any)
			n := len(xs)
			if len(ys) < n {
				n = len(ys)
			}
			for i := 0; i < n; i++ {
				if c := elem.Ord(xs[i], ys[i]); c != 0 {
					return c
				}
			}
			return len(xs) - len(ys)
		}
	case config.HashClassName:
		d.Hash = func(v Value) uint64 {
			xs, _ := v.([]any)
			h := mix(fnvOffset, uint64(len(xs)))
			for _, x := range xs {
				h = mix(h, elem.Hash(x))
			}
			return h
		}
	case config.ShowClassName:
		d.Show = func(v Value) string {
			xs, _ := v.([]any)
			parts := make([]string, len(xs))
			for i, x := range xs {
				parts[i] = elem.Show(x)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		}
	case config.CloneClassName:
		d.Clone = func(v Value) Value {
			xs, ok := v.([]any)
			if !ok {
				return v
			}
			out := make([]any, len(xs))
			for i, x := range xs {
				out[i] = elem.Clone(x)
			}
			return out
		}
	case config.DefaultClassName:
		d.Default = func() Value { return []any{} }
	case config.JsonClassName:
		d.Json = func(v Value) ([]byte, error) {
			xs, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("not an array: %v", v)
			}
			var buf strings.Builder
			buf.WriteByte('[')
			for i, x := range xs {
				if i > 0 {
					buf.WriteByte(',')
				}
				b, err := elem.Json(x)
				if err != nil {
					return nil, err
				}
				buf.Write(b)
			}
			buf.WriteByte(']')
			return []byte(buf.String()), nil
		}
	default:
		return nil, false
	}
	return d, true
}
