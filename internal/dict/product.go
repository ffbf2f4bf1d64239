package dict

import (
	"fmt"
	"strings"

	"github.com/typesugar/typesugar/internal/config"
)

// FieldDict pairs a field name with the dictionary resolved for the
// field's type.
type FieldDict struct {
	Name string
	Dict *Dict
}

func fieldValue(v Value, name string) Value {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[name]
}

// Product combines field dictionaries into the dictionary for a
// product type under the given typeclass. typeName is used for Show
// rendering; forType is the full key string. Fields are in declared
// order; Eq short-circuits on the first mismatch, Ord on the first
// non-zero comparison.
func Product(typeclass, forType, typeName string, fields []FieldDict) (*Dict, bool) {
	d := New(typeclass, forType)
	switch typeclass {
	case config.EqClassName:
		d.Eq = func(a, b Value) bool {
			for _, f := range fields {
				if !f.Dict.Eq(fieldValue(a, f.Name), fieldValue(b, f.Name)) {
					return false
				}
			}
			return true
		}
	case config.OrdClassName:
		d.Ord = func(a, b Value) int {
			for _, f := range fields {
				if c := f.Dict.Ord(fieldValue(a, f.Name), fieldValue(b, f.Name)); c != 0 {
					return c
				}
			}
			return 0
		}
	case config.HashClassName:
		d.Hash = func(v Value) uint64 {
			h := fnvOffset
			for _, f := range fields {
				h = mix(h, f.Dict.Hash(fieldValue(v, f.Name)))
			}
			return h
		}
	case config.ShowClassName:
		d.Show = func(v Value) string {
			parts := make([]string, len(fields))
			for i, f := range fields {
				parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Dict.Show(fieldValue(v, f.Name)))
			}
			if len(parts) == 0 {
				return typeName + " {}"
			}
			return fmt.Sprintf("%s { %s }", typeName, strings.Join(parts, ", "))
		}
	case config.CloneClassName:
		d.Clone = func(v Value) Value {
			src, ok := v.(map[string]any)
			if !ok {
				return v
			}
			// Undeclared entries (e.g. a sum discriminant) are
			// carried over verbatim; declared fields clone deeply.
			out := make(map[string]any, len(src))
			for k, val := range src {
				out[k] = val
			}
			for _, f := range fields {
				out[f.Name] = f.Dict.Clone(src[f.Name])
			}
			return out
		}
	case config.DefaultClassName:
		d.Default = func() Value {
			out := make(map[string]any, len(fields))
			for _, f := range fields {
				out[f.Name] = f.Dict.Default()
			}
			return out
		}
	case config.JsonClassName:
		d.Json = func(v Value) ([]byte, error) {
			// Rendered by hand to preserve declared field order.
			var buf strings.Builder
			buf.WriteByte('{')
			for i, f := range fields {
				if i > 0 {
					buf.WriteByte(',')
				}
				b, err := f.Dict.Json(fieldValue(v, f.Name))
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", f.Name, err)
				}
				fmt.Fprintf(&buf, "%q:", f.Name)
				buf.Write(b)
			}
			buf.WriteByte('}')
			return []byte(buf.String()), nil
		}
	default:
		return nil, false
	}
	return d, true
}
