package derive

import (
	"fmt"

	"github.com/typesugar/typesugar/internal/config"
	"github.com/typesugar/typesugar/internal/dict"
)

// Builtin returns the derivation strategies for the bundled
// typeclasses. Eq, Ord, Hash, Show and Clone are structural and
// reject empty products; Default and Json have a perfectly good
// meaning for an empty product and declare the exemption explicitly.
func Builtin() []Strategy {
	structural := []string{
		config.EqClassName,
		config.OrdClassName,
		config.HashClassName,
		config.ShowClassName,
		config.CloneClassName,
	}
	withIdentity := []string{
		config.DefaultClassName,
		config.JsonClassName,
	}

	var out []Strategy
	for _, name := range structural {
		out = append(out, builtinStrategy(name, false))
	}
	for _, name := range withIdentity {
		out = append(out, builtinStrategy(name, true))
	}
	return out
}

func builtinStrategy(typeclass string, allowEmpty bool) Strategy {
	return Strategy{
		Typeclass:         typeclass,
		AllowEmptyProduct: allowEmpty,
		Product: func(forType, typeName string, fields []dict.FieldDict) (*dict.Dict, error) {
			d, ok := dict.Product(typeclass, forType, typeName, fields)
			if !ok {
				return nil, fmt.Errorf("no product combinator for typeclass %s", typeclass)
			}
			return d, nil
		},
		Sum: func(forType, discriminantField string, variants []dict.VariantDict) (*dict.Dict, error) {
			d, ok := dict.Sum(typeclass, forType, discriminantField, variants)
			if !ok {
				return nil, fmt.Errorf("no sum combinator for typeclass %s", typeclass)
			}
			return d, nil
		},
	}
}
