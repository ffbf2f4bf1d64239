// Package coherence validates the registry against the uniqueness
// rules: conflicting explicit instances, local declarations shadowing
// imported ones, and the tie-break policy for pattern candidates at
// query time.
package coherence

import (
	"sort"

	"github.com/typesugar/typesugar/internal/diagnostics"
	"github.com/typesugar/typesugar/internal/registry"
)

// ViolationKind classifies a coherence violation.
type ViolationKind int

const (
	Conflict ViolationKind = iota // two explicit instances at one exact key; fatal for the pair
	Shadowed                      // local shadows imported at one exact key; warning
)

// Violation is one detected rule violation. First is always the
// instance that remains canonical under the continuation policy.
type Violation struct {
	Kind   ViolationKind
	First  *registry.InstanceDescriptor
	Second *registry.InstanceDescriptor
}

// Event converts the violation to a structured diagnostic event.
func (v Violation) Event() diagnostics.Event {
	switch v.Kind {
	case Conflict:
		return diagnostics.NewEvent(
			diagnostics.ErrR002, diagnostics.KindConflict,
			v.First.Typeclass, v.First.KeyString(),
			v.Second.Location,
			v.First.KeyString(), v.Second.KeyString(),
		)
	default:
		return diagnostics.NewEvent(
			diagnostics.WarnR004, diagnostics.KindShadowed,
			v.First.Typeclass, v.First.KeyString(),
			v.Second.Location,
			v.Second.Module,
		)
	}
}

// Check runs the registry-wide passes: Conflict and Shadowed.
// (The Ambiguous rule needs a concrete query and lives in
// JudgeCandidates, called by the resolver.) Violations are reported
// in deterministic order regardless of map iteration.
func Check(reg *registry.Registry) []Violation {
	var out []Violation

	classes := reg.Typeclasses()
	sort.Strings(classes)

	for _, class := range classes {
		keys := reg.ExactKeys(class)
		sort.Strings(keys)

		for _, key := range keys {
			at := instancesAtKeyString(reg, class, key)
			out = append(out, checkConflicts(at)...)
			out = append(out, checkShadows(at)...)
		}
	}
	return out
}

func instancesAtKeyString(reg *registry.Registry, class, key string) []*registry.InstanceDescriptor {
	// ExactKeys hands back canonical key strings, so any instance of
	// the class whose rendered key matches belongs to this cell.
	var at []*registry.InstanceDescriptor
	for _, inst := range reg.Instances(class) {
		if inst.KeyString() == key {
			at = append(at, inst)
		}
	}
	return at
}

// checkConflicts reports duplicate explicit instances at one exact
// key. Duplicates are judged within one declaration site (locality +
// module): two local declarations conflict, two declarations in one
// imported module conflict, but explicit instances from two different
// imported modules are an ambiguity at the query site, not a
// conflict. Each extra instance pairs with the first-registered one,
// which stays canonical so analysis can continue with bounded
// cascades; the diagnostic is raised regardless.
func checkConflicts(at []*registry.InstanceDescriptor) []Violation {
	groups := make(map[string][]*registry.InstanceDescriptor)
	var order []string
	for _, inst := range at {
		if inst.Origin != registry.OriginExplicit {
			continue
		}
		site := inst.Locality.String() + "|" + inst.Module
		if _, seen := groups[site]; !seen {
			order = append(order, site)
		}
		groups[site] = append(groups[site], inst)
	}

	var out []Violation
	for _, site := range order {
		explicit := groups[site]
		for _, later := range explicit[1:] {
			out = append(out, Violation{Kind: Conflict, First: explicit[0], Second: later})
		}
	}
	return out
}

// checkShadows reports imported instances hidden by a local one at
// the same exact key. Non-fatal: the local declaration wins.
func checkShadows(at []*registry.InstanceDescriptor) []Violation {
	var local *registry.InstanceDescriptor
	for _, inst := range at {
		if inst.Locality == registry.LocalDecl {
			local = inst
			break
		}
	}
	if local == nil {
		return nil
	}
	var out []Violation
	for _, inst := range at {
		if inst.Locality == registry.ImportedDecl {
			out = append(out, Violation{Kind: Shadowed, First: local, Second: inst})
		}
	}
	return out
}

// JudgeCandidates ranks pattern candidates and decides the winner.
// Ranking: fewer unbound variables, then explicit over derived over
// builtin, then local over imported, then deeper concrete nesting
// (folded into the specificity score). A rank tie that only
// registration order could break is an ambiguity, which the caller
// resolves per coherence mode.
//
// Returns the ranked top group; ambiguous is true when two or more
// candidates tie for the top rank.
func JudgeCandidates(cands []registry.Candidate) (top []registry.Candidate, ambiguous bool) {
	if len(cands) == 0 {
		return nil, false
	}

	ranked := make([]registry.Candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		return compareCandidates(ranked[i], ranked[j]) < 0
	})

	top = []registry.Candidate{ranked[0]}
	for _, c := range ranked[1:] {
		if compareCandidates(top[0], c) != 0 {
			break
		}
		top = append(top, c)
	}
	return top, len(top) > 1
}

// compareCandidates returns a negative value when a outranks b.
// Registration order is deliberately NOT part of the comparison:
// equal rank means ambiguity, and only the lenient-mode policy may
// fall back to first-registered.
func compareCandidates(a, b registry.Candidate) int {
	if c := a.Instance.Specificity().Compare(b.Instance.Specificity()); c != 0 {
		return c
	}
	if c := int(a.Instance.Origin) - int(b.Instance.Origin); c != 0 {
		return c
	}
	return int(a.Instance.Locality) - int(b.Instance.Locality)
}
