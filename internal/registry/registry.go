// Package registry is the instance store for one compilation unit:
// typeclass declarations plus every registered instance, keyed for
// exact and pattern lookup. Conflict detection is deliberately NOT
// done here: both sides of a conflicting pair must stay visible so
// the coherence checker can report them.
package registry

import (
	"fmt"
	"reflect"

	"github.com/typesugar/typesugar/internal/dict"
	"github.com/typesugar/typesugar/internal/diagnostics"
	"github.com/typesugar/typesugar/internal/typekey"
)

// Origin records how an instance came to exist.
type Origin int

const (
	OriginExplicit Origin = iota // declared by the user
	OriginDerived                // synthesized by the derivation engine
	OriginBuiltin                // bundled default
)

func (o Origin) String() string {
	switch o {
	case OriginExplicit:
		return "explicit"
	case OriginDerived:
		return "derived"
	}
	return "builtin"
}

// Locality records where an instance was declared relative to the
// compilation unit. A local declaration shadows an imported one at
// the same key.
type Locality int

const (
	LocalDecl Locality = iota
	ImportedDecl
)

func (l Locality) String() string {
	if l == LocalDecl {
		return "local"
	}
	return "imported"
}

// MethodSig is one method of a typeclass declaration.
type MethodSig struct {
	Name       string
	TypeParams []string
	Params     []string
	Return     string
}

// TypeclassDescriptor is an immutable typeclass declaration.
type TypeclassDescriptor struct {
	Name    string
	Methods []MethodSig
}

// InstanceDescriptor is one registered instance of a typeclass for
// one (possibly parameterized) type key.
type InstanceDescriptor struct {
	Typeclass string
	ForType   typekey.Key
	Impl      *dict.Dict // opaque implementation handle
	Origin    Origin
	Locality  Locality
	Module    string // declaring module; "" for local declarations
	Location  diagnostics.Token

	// seq is the registration order, assigned by the registry.
	// Determinism of this order is the caller's hard contract
	// (lexicographic file scanning).
	seq int
}

// Seq returns the registration order of the instance.
func (d *InstanceDescriptor) Seq() int { return d.seq }

// Specificity is computed from the type key's structure; it is never
// stored.
func (d *InstanceDescriptor) Specificity() typekey.Score {
	return typekey.Specificity(d.ForType)
}

// KeyString is the canonical rendering of the instance's type key.
func (d *InstanceDescriptor) KeyString() string {
	return d.ForType.String()
}

// DuplicateTypeclassError reports re-registration of a typeclass name
// with a different shape.
type DuplicateTypeclassError struct {
	Name string
}

func (e *DuplicateTypeclassError) Error() string {
	return fmt.Sprintf("typeclass %s is already registered with a different shape", e.Name)
}

// Candidate is one pattern-lookup hit: the instance plus the
// substitution that makes its key match the query.
type Candidate struct {
	Instance *InstanceDescriptor
	Subst    typekey.Subst
}

// Registry holds the declarations of one compilation unit. It has
// exactly one writer phase (scanning) followed by read-only query
// phases; it is not safe for concurrent mutation.
type Registry struct {
	typeclasses map[string]TypeclassDescriptor
	instances   map[string][]*InstanceDescriptor            // per typeclass, registration order
	byExact     map[string]map[string][]*InstanceDescriptor // typeclass -> exact key -> instances
	nextSeq     int
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	r.Clear()
	return r
}

// Clear resets all maps. Must be called between independent
// compilations; stale instances must never leak into a new program.
func (r *Registry) Clear() {
	r.typeclasses = make(map[string]TypeclassDescriptor)
	r.instances = make(map[string][]*InstanceDescriptor)
	r.byExact = make(map[string]map[string][]*InstanceDescriptor)
	r.nextSeq = 0
}

// RegisterTypeclass stores a typeclass declaration. Identical
// re-registration is idempotent; a different shape under the same
// name is a DuplicateTypeclassError.
func (r *Registry) RegisterTypeclass(desc TypeclassDescriptor) error {
	if existing, ok := r.typeclasses[desc.Name]; ok {
		if !reflect.DeepEqual(existing, desc) {
			return &DuplicateTypeclassError{Name: desc.Name}
		}
		return nil
	}
	r.typeclasses[desc.Name] = desc
	return nil
}

// Typeclass returns the declaration for a name.
func (r *Registry) Typeclass(name string) (TypeclassDescriptor, bool) {
	desc, ok := r.typeclasses[name]
	return desc, ok
}

// HasTypeclass reports whether the name is declared.
func (r *Registry) HasTypeclass(name string) bool {
	_, ok := r.typeclasses[name]
	return ok
}

// RegisterInstance always succeeds at the storage level and assigns
// the registration sequence number. Conflicting instances coexist
// here by design.
func (r *Registry) RegisterInstance(desc InstanceDescriptor) *InstanceDescriptor {
	desc.seq = r.nextSeq
	r.nextSeq++

	stored := &desc
	r.instances[desc.Typeclass] = append(r.instances[desc.Typeclass], stored)

	keyStr := desc.ForType.String()
	if r.byExact[desc.Typeclass] == nil {
		r.byExact[desc.Typeclass] = make(map[string][]*InstanceDescriptor)
	}
	r.byExact[desc.Typeclass][keyStr] = append(r.byExact[desc.Typeclass][keyStr], stored)
	return stored
}

// Remove withdraws a previously registered instance from both maps.
// Used by the resolver to retract synthesized instances whose
// derivation turned out to depend on a failed one. Explicit
// declarations are never removed.
func (r *Registry) Remove(inst *InstanceDescriptor) {
	r.instances[inst.Typeclass] = withoutInstance(r.instances[inst.Typeclass], inst)

	m := r.byExact[inst.Typeclass]
	if m == nil {
		return
	}
	key := inst.ForType.String()
	m[key] = withoutInstance(m[key], inst)
	if len(m[key]) == 0 {
		delete(m, key)
	}
}

func withoutInstance(list []*InstanceDescriptor, inst *InstanceDescriptor) []*InstanceDescriptor {
	out := list[:0]
	for _, d := range list {
		if d != inst {
			out = append(out, d)
		}
	}
	return out
}

// InstancesAt returns every instance registered under the exact key,
// in registration order. Coherence checking consumes this.
func (r *Registry) InstancesAt(typeclass string, key typekey.Key) []*InstanceDescriptor {
	m, ok := r.byExact[typeclass]
	if !ok {
		return nil
	}
	return m[key.String()]
}

// LookupExact returns the canonical instance at an exact key:
// explicit beats derived beats builtin, local beats imported, ties
// broken by registration order.
func (r *Registry) LookupExact(typeclass string, key typekey.Key) (*InstanceDescriptor, bool) {
	at := r.InstancesAt(typeclass, key)
	if len(at) == 0 {
		return nil, false
	}
	best := at[0]
	for _, inst := range at[1:] {
		if canonicalRank(inst) < canonicalRank(best) {
			best = inst
		}
	}
	return best, true
}

// canonicalRank orders instances at one exact key. Lower is better.
// seq keeps the order total and deterministic.
func canonicalRank(d *InstanceDescriptor) int {
	rank := int(d.Origin)*2 + int(d.Locality)
	return rank*1_000_000 + d.seq
}

// LookupCandidates pattern-matches every registered key for the
// typeclass against the target: exact hits, parameterized matches
// and fully generic matches all qualify. Returned in registration
// order; ranking is the resolver's concern.
func (r *Registry) LookupCandidates(typeclass string, target typekey.Key) []Candidate {
	var out []Candidate
	for _, inst := range r.instances[typeclass] {
		// Rename pattern variables so they cannot capture variables
		// appearing in the target key.
		pattern := typekey.RenameVars(inst.ForType, "inst")
		subst, ok := typekey.Match(pattern, target)
		if !ok {
			continue
		}
		out = append(out, Candidate{Instance: inst, Subst: subst})
	}
	return out
}

// Instances returns all instances of a typeclass in registration
// order.
func (r *Registry) Instances(typeclass string) []*InstanceDescriptor {
	return r.instances[typeclass]
}

// Typeclasses returns the names of all registered typeclasses in
// unspecified order.
func (r *Registry) Typeclasses() []string {
	names := make([]string, 0, len(r.typeclasses))
	for name := range r.typeclasses {
		names = append(names, name)
	}
	return names
}

// ExactKeys returns every exact key registered for a typeclass, in
// unspecified order. The coherence checker sorts before iterating.
func (r *Registry) ExactKeys(typeclass string) []string {
	m := r.byExact[typeclass]
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
