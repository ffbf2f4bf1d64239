// Package config holds the engine options consumed from the host
// compiler and the built-in typeclass name constants.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Built-in typeclass names: the set with built-in derivation strategies.
const (
	EqClassName      = "Eq"
	OrdClassName     = "Ord"
	HashClassName    = "Hash"
	ShowClassName    = "Show"
	CloneClassName   = "Clone"
	DefaultClassName = "Default"
	JsonClassName    = "Json"
)

// Built-in primitive type names recognized by the bundled dictionaries.
const (
	NumberTypeName  = "number"
	StringTypeName  = "string"
	BooleanTypeName = "boolean"
	ArrayTypeName   = "Array"
)

// CoherenceMode controls how ambiguous resolutions are treated.
type CoherenceMode string

const (
	// ModeStrict treats an ambiguous resolution as fatal.
	ModeStrict CoherenceMode = "strict"
	// ModeLenient downgrades ambiguity to a warning and resolves to
	// the first-registered top candidate.
	ModeLenient CoherenceMode = "lenient"
)

// DefaultMaxDeriveDepth bounds derivation recursion over pathological
// type graphs. Well-formed recursive types terminate via the memo
// table long before hitting this.
const DefaultMaxDeriveDepth = 64

// Options are the per-compilation-unit engine settings. They are
// passed in by the host compiler, never owned by the engine.
type Options struct {
	// Coherence selects strict or lenient ambiguity handling.
	Coherence CoherenceMode `yaml:"coherence,omitempty"`

	// MaxDeriveDepth bounds the derivation recursion depth.
	// Zero means DefaultMaxDeriveDepth.
	MaxDeriveDepth int `yaml:"max_derive_depth,omitempty"`
}

// Default returns the canonical option set: strict coherence, default
// depth limit.
func Default() Options {
	return Options{Coherence: ModeStrict, MaxDeriveDepth: DefaultMaxDeriveDepth}
}

// Normalize fills zero values with defaults.
func (o Options) Normalize() Options {
	if o.Coherence == "" {
		o.Coherence = ModeStrict
	}
	if o.MaxDeriveDepth <= 0 {
		o.MaxDeriveDepth = DefaultMaxDeriveDepth
	}
	return o
}

// ParseOptions parses and validates YAML option data. The path is
// used in error messages only.
func ParseOptions(data []byte, path string) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	if opts.Coherence != "" && opts.Coherence != ModeStrict && opts.Coherence != ModeLenient {
		return Options{}, fmt.Errorf("%s: coherence must be %q or %q, got %q", path, ModeStrict, ModeLenient, opts.Coherence)
	}
	if opts.MaxDeriveDepth < 0 {
		return Options{}, fmt.Errorf("%s: max_derive_depth must be positive, got %d", path, opts.MaxDeriveDepth)
	}
	return opts.Normalize(), nil
}
