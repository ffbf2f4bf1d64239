// Package derive synthesizes typeclass instances from the structural
// shape of product and sum types. Field sub-instances are resolved
// through the orchestrator (SubResolver), never looked up directly,
// so memoization and knot-tying apply uniformly.
package derive

import (
	"github.com/typesugar/typesugar/internal/dict"
	"github.com/typesugar/typesugar/internal/typedesc"
	"github.com/typesugar/typesugar/internal/typekey"
)

// SubResolver is the recursive entry point back into the resolution
// orchestrator. Implemented by resolver.Resolver.
type SubResolver interface {
	// ResolveDict resolves (typeclass, key) to a dictionary, deriving
	// if needed. The error carries the causal failure.
	ResolveDict(typeclass string, key typekey.Key) (*dict.Dict, error)
}

// Strategy is the pair of pure synthesis functions for one
// typeclass. Product and Sum receive already-resolved sub-dictionaries
// and only assemble; all resolution happens in the engine.
type Strategy struct {
	Typeclass string

	// AllowEmptyProduct exempts the typeclass from the no-fields rule.
	// This is an explicit per-typeclass declaration: whether an empty
	// product is meaningful (identity element) is not decidable from
	// structure.
	AllowEmptyProduct bool

	Product func(forType, typeName string, fields []dict.FieldDict) (*dict.Dict, error)
	Sum     func(forType, discriminantField string, variants []dict.VariantDict) (*dict.Dict, error)
}

// Engine holds the registered strategies for one compilation unit.
type Engine struct {
	strategies map[string]Strategy
}

// NewEngine builds an engine from the given strategies.
func NewEngine(strategies ...Strategy) *Engine {
	e := &Engine{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		e.strategies[s.Typeclass] = s
	}
	return e
}

// Register adds or replaces a strategy.
func (e *Engine) Register(s Strategy) {
	e.strategies[s.Typeclass] = s
}

// Strategy returns the strategy for a typeclass.
func (e *Engine) Strategy(typeclass string) (Strategy, bool) {
	s, ok := e.strategies[typeclass]
	return s, ok
}

// Derive synthesizes an instance dictionary for (typeclass, forType)
// from the type's structural descriptor.
func (e *Engine) Derive(sub SubResolver, typeclass string, forType typekey.Key, desc typedesc.TypeDescriptor) (*dict.Dict, error) {
	strategy, ok := e.strategies[typeclass]
	if !ok {
		return nil, &NoStrategyError{Typeclass: typeclass}
	}

	switch desc.Kind() {
	case typedesc.ProductType:
		return e.deriveProduct(sub, strategy, forType, desc.Name, desc.Fields, false)
	case typedesc.SumType:
		return e.deriveSum(sub, strategy, forType, desc)
	}
	return nil, &NotDerivableError{Typeclass: typeclass, Type: forType.String()}
}

// deriveProduct resolves each field's sub-instance in declared order
// and hands the dictionaries to the strategy. The first unresolvable
// field aborts with a causal FieldError. unitVariant marks the
// product as a sum variant body, where an empty field list is a unit
// variant and always legal.
func (e *Engine) deriveProduct(sub SubResolver, strategy Strategy, forType typekey.Key, typeName string, fields []typedesc.Field, unitVariant bool) (*dict.Dict, error) {
	if len(fields) == 0 && !strategy.AllowEmptyProduct && !unitVariant {
		return nil, &NoFieldsError{Typeclass: strategy.Typeclass, Type: forType.String()}
	}

	fieldDicts := make([]dict.FieldDict, 0, len(fields))
	for _, f := range fields {
		d, err := sub.ResolveDict(strategy.Typeclass, f.Type)
		if err != nil {
			return nil, &FieldError{
				Typeclass: strategy.Typeclass,
				Type:      forType.String(),
				Field:     f.Name,
				FieldType: f.Type,
				Cause:     err,
			}
		}
		fieldDicts = append(fieldDicts, dict.FieldDict{Name: f.Name, Dict: d})
	}

	return strategy.Product(forType.String(), typeName, fieldDicts)
}

// deriveSum requires the common discriminant field on every variant,
// derives each variant through the product path (discriminant field
// excluded from structural recursion) and assembles the dispatching
// dictionary.
func (e *Engine) deriveSum(sub SubResolver, strategy Strategy, forType typekey.Key, desc typedesc.TypeDescriptor) (*dict.Dict, error) {
	if desc.DiscriminantField == "" {
		return nil, &NoDiscriminantError{
			Typeclass: strategy.Typeclass,
			Type:      forType.String(),
			Field:     desc.DiscriminantField,
		}
	}

	variantDicts := make([]dict.VariantDict, 0, len(desc.Variants))
	for _, v := range desc.Variants {
		if !v.HasField(desc.DiscriminantField) {
			return nil, &NoDiscriminantError{
				Typeclass: strategy.Typeclass,
				Type:      forType.String(),
				Variant:   v.Name,
				Field:     desc.DiscriminantField,
			}
		}

		// Unit variants (payload is just the tag) derive an empty
		// product; equality between two of them holds by tag alone.
		body, err := e.deriveProduct(sub, strategy, forType, v.Name, v.StructuralFields(desc.DiscriminantField), true)
		if err != nil {
			return nil, err
		}
		variantDicts = append(variantDicts, dict.VariantDict{
			Name:         v.Name,
			Discriminant: v.Discriminant,
			Dict:         body,
		})
	}

	return strategy.Sum(forType.String(), desc.DiscriminantField, variantDicts)
}
