// Package dict implements dictionary (evidence) values for the
// built-in derivable typeclasses. A dictionary is the opaque
// implementation handle a Resolved result carries; for derived
// instances the engine synthesizes dictionaries out of the
// combinators in this package, so derived behavior is executable and
// the derivation laws are testable.
//
// Dictionaries operate over a JSON-like value model: products are
// map[string]any, arrays are []any, primitives are Go numbers,
// strings and bools.
package dict

import (
	"github.com/google/uuid"
)

// Value is a runtime value in the JSON-like model.
type Value = any

// Dict is one typeclass dictionary for one type. Exactly one behavior
// field is non-nil per built-in typeclass; custom (non-derivable)
// instances may leave all of them nil and exist purely as handles.
type Dict struct {
	ID        uuid.UUID
	Typeclass string
	ForType   string

	Eq      func(a, b Value) bool
	Ord     func(a, b Value) int
	Hash    func(v Value) uint64
	Show    func(v Value) string
	Clone   func(v Value) Value
	Default func() Value
	Json    func(v Value) ([]byte, error)
}

// New returns an empty handle for the given typeclass/type pair.
// Used for explicit instances whose behavior lives in generated code
// the engine never sees.
func New(typeclass, forType string) *Dict {
	return &Dict{ID: uuid.New(), Typeclass: typeclass, ForType: forType}
}

// Deferred returns a placeholder dictionary plus a fill function.
// The placeholder delegates every call to the dictionary passed to
// fill; until then it must not be invoked. The resolver inserts the
// placeholder into its memo table before recursing into a type's
// fields, so a self-referential type resolves to the placeholder and
// the recursion ties the knot instead of looping.
func Deferred(typeclass, forType string) (*Dict, func(*Dict)) {
	var target *Dict

	placeholder := &Dict{
		ID:        uuid.New(),
		Typeclass: typeclass,
		ForType:   forType,

		Eq:      func(a, b Value) bool { return target.Eq(a, b) },
		Ord:     func(a, b Value) int { return target.Ord(a, b) },
		Hash:    func(v Value) uint64 { return target.Hash(v) },
		Show:    func(v Value) string { return target.Show(v) },
		Clone:   func(v Value) Value { return target.Clone(v) },
		Default: func() Value { return target.Default() },
		Json:    func(v Value) ([]byte, error) { return target.Json(v) },
	}

	fill := func(d *Dict) { target = d }
	return placeholder, fill
}
