package resolver

import (
	"github.com/typesugar/typesugar/internal/config"
	"github.com/typesugar/typesugar/internal/derive"
	"github.com/typesugar/typesugar/internal/registry"
	"github.com/typesugar/typesugar/internal/typedesc"
)

// Unit bundles the state of one compilation unit: the registry, the
// derivation engine and the resolver over them. It is passed around
// explicitly, never held as a process-wide singleton, so independent
// compilations (test runs, watch-mode rebuilds) cannot interfere.
//
// Lifecycle: populate via the register calls during the single writer
// phase, then query via Resolve. Reset discards everything
// unconditionally; partial resolution state is never reused.
type Unit struct {
	Registry *registry.Registry
	Engine   *derive.Engine
	Options  config.Options

	resolver *Resolver
}

// NewUnit creates a fresh compilation unit with the builtin
// derivation strategies installed.
func NewUnit(opts config.Options) *Unit {
	u := &Unit{
		Registry: registry.New(),
		Engine:   derive.NewEngine(derive.Builtin()...),
		Options:  opts.Normalize(),
	}
	u.resolver = New(u.Registry, u.Engine, u.Options)
	return u
}

// Reset clears the registry, the memo table and all recorded events.
// Must be called at the start of each independent compilation.
func (u *Unit) Reset() {
	u.Registry.Clear()
	u.resolver = New(u.Registry, u.Engine, u.Options)
}

// RegisterTypeclass forwards to the registry.
func (u *Unit) RegisterTypeclass(desc registry.TypeclassDescriptor) error {
	return u.Registry.RegisterTypeclass(desc)
}

// RegisterInstance forwards to the registry.
func (u *Unit) RegisterInstance(desc registry.InstanceDescriptor) *registry.InstanceDescriptor {
	return u.Registry.RegisterInstance(desc)
}

// RegisterType pushes a structural type descriptor.
func (u *Unit) RegisterType(desc typedesc.TypeDescriptor) error {
	return u.resolver.RegisterType(desc)
}

// Resolve answers one query.
func (u *Unit) Resolve(q Query) Result {
	return u.resolver.Resolve(q)
}

// Resolver exposes the underlying resolver (events, sub-resolution).
func (u *Unit) Resolver() *Resolver {
	return u.resolver
}
