package dict

import (
	"fmt"
	"strings"

	"github.com/typesugar/typesugar/internal/config"
)

// VariantDict pairs one variant of a sum type with the product
// dictionary derived for its structural fields.
type VariantDict struct {
	Name         string
	Discriminant string
	Dict         *Dict
}

// Sum combines variant dictionaries into the dictionary for a sum
// type. Every call dispatches on the value of the discriminant field
// at call time.
func Sum(typeclass, forType, discriminantField string, variants []VariantDict) (*Dict, bool) {
	byTag := make(map[string]int, len(variants))
	for i, v := range variants {
		byTag[v.Discriminant] = i
	}

	// dispatch returns the variant index for a value, or -1 when the
	// discriminant is absent or unknown.
	dispatch := func(v Value) int {
		m, ok := v.(map[string]any)
		if !ok {
			return -1
		}
		tag, ok := m[discriminantField].(string)
		if !ok {
			return -1
		}
		idx, ok := byTag[tag]
		if !ok {
			return -1
		}
		return idx
	}

	d := New(typeclass, forType)
	switch typeclass {
	case config.EqClassName:
		d.Eq = func(a, b Value) bool {
			ia, ib := dispatch(a), dispatch(b)
			if ia < 0 || ia != ib {
				return false
			}
			return variants[ia].Dict.Eq(a, b)
		}
	case config.OrdClassName:
		d.Ord = func(a, b Value) int {
			ia, ib := dispatch(a), dispatch(b)
			if ia != ib {
				return ia - ib // declared variant order
			}
			if ia < 0 {
				return 0
			}
			return variants[ia].Dict.Ord(a, b)
		}
	case config.HashClassName:
		d.Hash = func(v Value) uint64 {
			i := dispatch(v)
			if i < 0 {
				return fnvOffset
			}
			h := mix(fnvOffset, hashString(variants[i].Discriminant))
			return mix(h, variants[i].Dict.Hash(v))
		}
	case config.ShowClassName:
		d.Show = func(v Value) string {
			i := dispatch(v)
			if i < 0 {
				return "<unknown variant>"
			}
			return variants[i].Dict.Show(v)
		}
	case config.CloneClassName:
		d.Clone = func(v Value) Value {
			i := dispatch(v)
			if i < 0 {
				return v
			}
			return variants[i].Dict.Clone(v)
		}
	case config.DefaultClassName:
		d.Default = func() Value {
			// First declared variant is the default.
			if len(variants) == 0 {
				return map[string]any{}
			}
			out, ok := variants[0].Dict.Default().(map[string]any)
			if !ok {
				out = map[string]any{}
			}
			out[discriminantField] = variants[0].Discriminant
			return out
		}
	case config.JsonClassName:
		d.Json = func(v Value) ([]byte, error) {
			i := dispatch(v)
			if i < 0 {
				return nil, fmt.Errorf("value has no %q discriminant among known variants", discriminantField)
			}
			body, err := variants[i].Dict.Json(v)
			if err != nil {
				return nil, err
			}
			// Splice the discriminant in as the first member.
			tag := fmt.Sprintf("%q:%q", discriminantField, variants[i].Discriminant)
			inner := strings.TrimPrefix(string(body), "{")
			if inner == "}" {
				return []byte("{" + tag + "}"), nil
			}
			return []byte("{" + tag + "," + inner), nil
		}
	default:
		return nil, false
	}
	return d, true
}
