// Package resolver is the single external entry point of the
// resolution engine: exact lookup, specificity-ranked pattern lookup,
// and lazy derivation, all behind one cycle-safe memoized Resolve.
package resolver

import (
	"errors"
	"fmt"

	"github.com/typesugar/typesugar/internal/coherence"
	"github.com/typesugar/typesugar/internal/config"
	"github.com/typesugar/typesugar/internal/derive"
	"github.com/typesugar/typesugar/internal/dict"
	"github.com/typesugar/typesugar/internal/diagnostics"
	"github.com/typesugar/typesugar/internal/registry"
	"github.com/typesugar/typesugar/internal/typedesc"
	"github.com/typesugar/typesugar/internal/typekey"
)

// Status tags a resolution result.
type Status int

const (
	StatusResolved Status = iota
	StatusAmbiguous
	StatusConflict
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "Resolved"
	case StatusAmbiguous:
		return "Ambiguous"
	case StatusConflict:
		return "Conflict"
	}
	return "NotFound"
}

// Query is one resolution request.
type Query struct {
	Typeclass string
	Type      typekey.Key

	// ModuleHint narrows pattern candidates to one declaring module
	// (summon-style explicit disambiguation). Empty means no hint.
	ModuleHint string

	// Location is the opaque call-site token carried into events.
	Location diagnostics.Token
}

// Result is the tagged outcome of a query. Expected failures are
// values here, never panics: callers handle Ambiguous/Conflict/
// NotFound as ordinary control flow.
type Result struct {
	Status     Status
	Instance   *registry.InstanceDescriptor   // Resolved (and Conflict: the first-registered winner)
	Candidates []*registry.InstanceDescriptor // Ambiguous / Conflict
}

// Resolver answers queries against one compilation unit's registry.
// Resolution is synchronous and single-threaded; queries must only
// begin once scanning has completed.
type Resolver struct {
	reg    *registry.Registry
	engine *derive.Engine
	opts   config.Options

	types map[string]typedesc.TypeDescriptor

	memo    map[memoKey]*memoEntry
	emitted map[string]bool
	events  []diagnostics.Event
	depth   int

	// deriving is the stack of in-flight derivations, bottom to top.
	// When a pending placeholder is consumed, everything above its
	// owner on this stack will embed the placeholder and must be
	// retracted if the owner's derivation fails.
	deriving []memoKey

	// depthExhausted is set while unwinding from a depth-limit hit.
	// Failures on that unwind are relative to the current budget, so
	// intermediate entries are not memoized; a direct query gets a
	// fresh budget.
	depthExhausted bool
}

type memoKey struct {
	typeclass string
	typeKey   string
}

type memoEntry struct {
	pending bool
	result  Result
	// reported marks that the fatal root-cause event for this entry
	// was already emitted; callers must not emit again.
	reported bool
	// placeholder dict handed to self-references while pending.
	placeholder *dict.Dict
	provisional *registry.InstanceDescriptor
	// dependents are the derivations that consumed the placeholder
	// while this entry was pending; retracted if this entry fails.
	dependents []memoKey
}

// New builds a resolver over a scanned registry.
func New(reg *registry.Registry, engine *derive.Engine, opts config.Options) *Resolver {
	return &Resolver{
		reg:     reg,
		engine:  engine,
		opts:    opts.Normalize(),
		types:   make(map[string]typedesc.TypeDescriptor),
		memo:    make(map[memoKey]*memoEntry),
		emitted: make(map[string]bool),
	}
}

// RegisterType stores a structural descriptor, keyed by the type's
// constructor name. Pushed by the scanner collaborator.
func (r *Resolver) RegisterType(desc typedesc.TypeDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	r.types[desc.Name] = desc
	return nil
}

// Events returns every diagnostic event emitted so far, in emission
// order.
func (r *Resolver) Events() []diagnostics.Event {
	return r.events
}

// Resolve is the single external entry point.
func (r *Resolver) Resolve(q Query) Result {
	res, _ := r.resolve(q, false)
	return res
}

// ResolveDict is the recursive entry point used by the derivation
// engine for field sub-queries. A Conflict result still yields the
// first-registered dictionary so error cascades stay bounded.
func (r *Resolver) ResolveDict(typeclass string, key typekey.Key) (*dict.Dict, error) {
	res, reported := r.resolve(Query{Typeclass: typeclass, Type: key}, true)
	switch res.Status {
	case StatusResolved, StatusConflict:
		return res.Instance.Impl, nil
	case StatusAmbiguous:
		return nil, r.wrapReported(reported, fmt.Errorf("ambiguous instances of %s for %s", typeclass, key))
	default:
		return nil, r.wrapReported(reported, fmt.Errorf("no instance of %s for %s", typeclass, key))
	}
}

// reportedError marks a failure whose root-cause diagnostic has
// already been emitted; outer derivation layers must not emit again.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func (r *Resolver) wrapReported(reported bool, err error) error {
	if reported {
		return &reportedError{err: err}
	}
	return err
}

func alreadyReported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

// emit records an event once per (code, typeclass, type) root cause.
func (r *Resolver) emit(ev diagnostics.Event) {
	sig := string(ev.Code) + "|" + ev.Typeclass + "|" + ev.Type
	if r.emitted[sig] {
		return
	}
	r.emitted[sig] = true
	r.events = append(r.events, ev)
}

// resolve implements the query state machine:
//
//	Requested -> ExactHit | PatternMatching -> Resolved | Failed(Ambiguous)
//	PatternMatching(miss) -> Deriving -> Resolved | Failed(FieldMissing)
//	any state on unregistered typeclass -> Failed(NotFound)
//
// internal marks recursive sub-queries from derivation: their misses
// surface through the causal FieldMissing event of the requesting
// derivation, not as query-site NotFound events.
func (r *Resolver) resolve(q Query, internal bool) (Result, bool) {
	key := memoKey{typeclass: q.Typeclass, typeKey: q.Type.String()}

	if len(r.deriving) == 0 {
		// Fresh top-level query: the derivation budget starts over.
		r.depthExhausted = false
	}

	if entry, ok := r.memo[key]; ok {
		if entry.pending {
			// Self-reference during derivation: hand back the
			// placeholder cell; the knot is tied when the outer
			// derivation fills it. Everything deriving above the
			// owner will embed the cell, so record it for retraction
			// in case the owner fails.
			for i := len(r.deriving) - 1; i >= 0; i-- {
				if r.deriving[i] == key {
					break
				}
				entry.dependents = appendKey(entry.dependents, r.deriving[i])
			}
			return Result{Status: StatusResolved, Instance: entry.provisional}, false
		}
		return entry.result, entry.reported
	}

	// Unregistered typeclass fails every state. A derivation strategy
	// for an undeclared typeclass is a programmer error, reported
	// distinctly and never silently swallowed.
	if !r.reg.HasTypeclass(q.Typeclass) {
		reported := false
		if _, hasStrategy := r.engine.Strategy(q.Typeclass); hasStrategy {
			r.emit(diagnostics.NewEvent(
				diagnostics.ErrR010, diagnostics.KindInternal,
				q.Typeclass, q.Type.String(), q.Location,
				"derivation strategy registered for undeclared typeclass",
			))
			reported = true
		} else if !internal {
			r.emit(diagnostics.NewEvent(
				diagnostics.ErrR007, diagnostics.KindNotFound,
				q.Typeclass, q.Type.String(), q.Location,
			))
			reported = true
		}
		res := Result{Status: StatusNotFound}
		r.memo[key] = &memoEntry{result: res, reported: reported}
		return res, reported
	}

	// 1. Exact lookup.
	if at := r.reg.InstancesAt(q.Typeclass, q.Type); len(at) > 0 {
		res, reported := r.resolveExact(q, at)
		r.memo[key] = &memoEntry{result: res, reported: reported}
		return res, reported
	}

	// 2. Pattern lookup with specificity ranking.
	if cands := r.reg.LookupCandidates(q.Typeclass, q.Type); len(cands) > 0 {
		res, reported := r.resolvePattern(q, cands)
		r.memo[key] = &memoEntry{result: res, reported: reported}
		return res, reported
	}

	// 3. Total miss: builtin synthesis, then derivation.
	return r.deriveFor(q, key, internal)
}

// resolveExact applies the exact-key policy. Duplicate explicit
// instances within one declaration site are a Conflict: the event is
// raised, and resolution continues with the first-registered one so
// error cascades stay bounded. A local declaration shadows imported
// ones with a warning. Explicit instances from two different imported
// modules, with no local declaration, are ambiguous at the query
// site; a ModuleHint picks one.
func (r *Resolver) resolveExact(q Query, at []*registry.InstanceDescriptor) (Result, bool) {
	if q.ModuleHint != "" {
		var hinted []*registry.InstanceDescriptor
		for _, inst := range at {
			if inst.Module == q.ModuleHint {
				hinted = append(hinted, inst)
			}
		}
		if len(hinted) > 0 {
			at = hinted
		}
	}

	siteExplicit := make(map[string][]*registry.InstanceDescriptor)
	var siteOrder []string
	var explicit []*registry.InstanceDescriptor
	hasLocal := false
	hasImported := false
	for _, inst := range at {
		if inst.Origin == registry.OriginExplicit {
			explicit = append(explicit, inst)
			site := inst.Locality.String() + "|" + inst.Module
			if _, seen := siteExplicit[site]; !seen {
				siteOrder = append(siteOrder, site)
			}
			siteExplicit[site] = append(siteExplicit[site], inst)
		}
		if inst.Locality == registry.LocalDecl {
			hasLocal = true
		} else {
			hasImported = true
		}
	}

	if hasLocal && hasImported {
		for _, inst := range at {
			if inst.Locality == registry.ImportedDecl {
				r.emit(diagnostics.NewEvent(
					diagnostics.WarnR004, diagnostics.KindShadowed,
					q.Typeclass, q.Type.String(), inst.Location,
					inst.Module,
				))
			}
		}
	}

	for _, site := range siteOrder {
		group := siteExplicit[site]
		if len(group) < 2 {
			continue
		}
		r.emit(diagnostics.NewEvent(
			diagnostics.ErrR002, diagnostics.KindConflict,
			q.Typeclass, q.Type.String(), group[1].Location,
			group[0].KeyString(), group[1].KeyString(),
		))
		return Result{Status: StatusConflict, Instance: group[0], Candidates: group}, true
	}

	// No local winner and explicit candidates from several imported
	// modules: neither "local" nor "explicit-over-derived" breaks the
	// tie, so this is ambiguous.
	if !hasLocal && len(siteExplicit) >= 2 {
		return r.ambiguousResult(q, explicit)
	}

	// Pick the canonical winner among the (possibly hint-filtered)
	// instances: explicit beats derived beats builtin, local beats
	// imported, ties by registration order.
	winner := at[0]
	for _, inst := range at[1:] {
		if exactRank(inst) < exactRank(winner) {
			winner = inst
		}
	}
	return Result{Status: StatusResolved, Instance: winner}, false
}

func exactRank(d *registry.InstanceDescriptor) int {
	rank := int(d.Origin)*2 + int(d.Locality)
	return rank*1_000_000 + d.Seq()
}

// ambiguousResult applies the coherence-mode policy to a tied set.
func (r *Resolver) ambiguousResult(q Query, insts []*registry.InstanceDescriptor) (Result, bool) {
	keys := make([]string, len(insts))
	for i, inst := range insts {
		keys[i] = inst.KeyString() + " (" + inst.Module + ")"
	}

	if r.opts.Coherence == config.ModeLenient {
		r.emit(diagnostics.NewEvent(
			diagnostics.WarnR011, diagnostics.KindAmbiguous,
			q.Typeclass, q.Type.String(), q.Location, keys...,
		))
		return Result{Status: StatusResolved, Instance: insts[0]}, false
	}

	r.emit(diagnostics.NewEvent(
		diagnostics.ErrR003, diagnostics.KindAmbiguous,
		q.Typeclass, q.Type.String(), q.Location, keys...,
	))
	return Result{Status: StatusAmbiguous, Candidates: insts}, true
}

// resolvePattern ranks candidates and applies the coherence-mode
// policy to ties.
func (r *Resolver) resolvePattern(q Query, cands []registry.Candidate) (Result, bool) {
	if q.ModuleHint != "" {
		var hinted []registry.Candidate
		for _, c := range cands {
			if c.Instance.Module == q.ModuleHint {
				hinted = append(hinted, c)
			}
		}
		if len(hinted) > 0 {
			cands = hinted
		}
	}

	top, ambiguous := coherence.JudgeCandidates(cands)
	if !ambiguous {
		return Result{Status: StatusResolved, Instance: top[0].Instance}, false
	}

	insts := make([]*registry.InstanceDescriptor, len(top))
	keys := make([]string, len(top))
	for i, c := range top {
		insts[i] = c.Instance
		keys[i] = c.Instance.KeyString()
	}

	if r.opts.Coherence == config.ModeLenient {
		r.emit(diagnostics.NewEvent(
			diagnostics.WarnR011, diagnostics.KindAmbiguous,
			q.Typeclass, q.Type.String(), q.Location, keys...,
		))
		// First-registered among the tied group wins.
		return Result{Status: StatusResolved, Instance: insts[0]}, false
	}

	r.emit(diagnostics.NewEvent(
		diagnostics.ErrR003, diagnostics.KindAmbiguous,
		q.Typeclass, q.Type.String(), q.Location, keys...,
	))
	return Result{Status: StatusAmbiguous, Candidates: insts}, true
}

// deriveFor handles the total-miss path: builtin dictionaries for
// primitives and Array lifting, then structural derivation when a
// strategy and a descriptor exist.
func (r *Resolver) deriveFor(q Query, key memoKey, internal bool) (Result, bool) {
	if r.depth >= r.opts.MaxDeriveDepth {
		r.emit(diagnostics.NewEvent(
			diagnostics.ErrR008, diagnostics.KindDepthExceeded,
			q.Typeclass, q.Type.String(), q.Location,
			fmt.Sprintf("limit %d", r.opts.MaxDeriveDepth),
		))
		// Not memoized: the failure is relative to the budget already
		// consumed by the enclosing derivation, not to this type.
		r.depthExhausted = true
		return Result{Status: StatusNotFound}, true
	}

	// Builtin defaults for the primitive universe.
	if d, ok := dict.Primitive(q.Typeclass, q.Type.String()); ok {
		inst := r.registerSynthesized(q, d, registry.OriginBuiltin)
		res := Result{Status: StatusResolved, Instance: inst}
		r.memo[key] = &memoEntry{result: res}
		return res, false
	}
	if app, ok := q.Type.(typekey.App); ok && app.Con.Name == config.ArrayTypeName && len(app.Args) == 1 {
		return r.liftArray(q, key, app)
	}

	_, hasStrategy := r.engine.Strategy(q.Typeclass)
	desc, hasDesc := r.types[typekey.Constructor(q.Type)]
	if !hasStrategy || !hasDesc || desc.Kind() == typedesc.OpaqueType {
		reported := false
		if !internal {
			r.emit(diagnostics.NewEvent(
				diagnostics.ErrR007, diagnostics.KindNotFound,
				q.Typeclass, q.Type.String(), q.Location,
			))
			reported = true
		}
		res := Result{Status: StatusNotFound}
		r.memo[key] = &memoEntry{result: res, reported: reported}
		return res, reported
	}

	if app, ok := q.Type.(typekey.App); ok {
		desc = desc.Instantiate(app.Args)
	}

	// Knot-tying: the placeholder goes into the memo BEFORE the
	// recursion into fields, so a self-referential type resolves to
	// the cell instead of re-entering derivation.
	placeholder, fill := dict.Deferred(q.Typeclass, q.Type.String())
	provisional := &registry.InstanceDescriptor{
		Typeclass: q.Typeclass,
		ForType:   q.Type,
		Impl:      placeholder,
		Origin:    registry.OriginDerived,
	}
	entry := &memoEntry{pending: true, placeholder: placeholder, provisional: provisional}
	r.memo[key] = entry

	r.depth++
	r.deriving = append(r.deriving, key)
	d, err := r.engine.Derive(r, q.Typeclass, q.Type, desc)
	r.deriving = r.deriving[:len(r.deriving)-1]
	r.depth--

	if err != nil {
		entry.pending = false
		entry.result = Result{Status: StatusNotFound}
		entry.reported = r.reportDeriveFailure(q, err)
		r.retractDependents(entry)
		if r.depthExhausted && r.depth > 0 {
			// Budget-relative failure partway down a deeper
			// derivation; a direct query must re-derive.
			delete(r.memo, key)
		}
		return entry.result, entry.reported
	}

	entry.dependents = nil
	fill(d)
	inst := r.registerSynthesized(q, d, registry.OriginDerived)
	// Late-bound self-references resolved to the provisional
	// descriptor; keep its handle forwarding to the real dictionary
	// and expose the registered instance from here on.
	entry.pending = false
	entry.result = Result{Status: StatusResolved, Instance: inst}
	return entry.result, false
}

// liftArray resolves Array<Elem> by lifting the element dictionary.
func (r *Resolver) liftArray(q Query, key memoKey, app typekey.App) (Result, bool) {
	r.depth++
	r.deriving = append(r.deriving, key)
	elem, err := r.ResolveDict(q.Typeclass, app.Args[0])
	r.deriving = r.deriving[:len(r.deriving)-1]
	r.depth--
	if err != nil {
		reported := alreadyReported(err)
		if !reported {
			r.emit(diagnostics.NewEvent(
				diagnostics.ErrR005, diagnostics.KindFieldMissing,
				q.Typeclass, q.Type.String(), q.Location,
				"element", app.Args[0].String(),
			))
			reported = true
		}
		res := Result{Status: StatusNotFound}
		if !r.depthExhausted || r.depth == 0 {
			r.memo[key] = &memoEntry{result: res, reported: reported}
		}
		return res, reported
	}

	lifted, ok := dict.ArrayOf(q.Typeclass, elem, q.Type.String())
	if !ok {
		// Non-builtin typeclasses have no Array lifting; fall back to
		// a plain miss at the query site.
		res := Result{Status: StatusNotFound}
		r.memo[key] = &memoEntry{result: res}
		return res, false
	}
	inst := r.registerSynthesized(q, lifted, registry.OriginBuiltin)
	res := Result{Status: StatusResolved, Instance: inst}
	r.memo[key] = &memoEntry{result: res}
	return res, false
}

func appendKey(keys []memoKey, k memoKey) []memoKey {
	for _, existing := range keys {
		if existing == k {
			return keys
		}
	}
	return append(keys, k)
}

// retractDependents unwinds derivations that consumed this entry's
// placeholder while it was pending: their dictionaries close over a
// cell that is never filled, so a Resolved answer would be both wrong
// and a latent crash. Retracted entries leave the memo and the
// registry entirely; a later direct query re-derives against the
// memoized root failure, which reports nothing new.
func (r *Resolver) retractDependents(entry *memoEntry) {
	queue := entry.dependents
	entry.dependents = nil
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		dep, ok := r.memo[key]
		if !ok || dep.pending {
			// In-flight entries fail on their own unwind path.
			continue
		}
		queue = append(queue, dep.dependents...)
		dep.dependents = nil
		if dep.result.Status != StatusResolved {
			// Already failed on its own; its memoized failure stands.
			continue
		}
		if dep.result.Instance != nil {
			r.reg.Remove(dep.result.Instance)
		}
		delete(r.memo, key)
	}
}

func (r *Resolver) registerSynthesized(q Query, d *dict.Dict, origin registry.Origin) *registry.InstanceDescriptor {
	return r.reg.RegisterInstance(registry.InstanceDescriptor{
		Typeclass: q.Typeclass,
		ForType:   q.Type,
		Impl:      d,
		Origin:    origin,
		Locality:  registry.LocalDecl,
		Location:  q.Location,
	})
}

// reportDeriveFailure emits exactly one event for the derivation's
// root cause. Failures whose cause was already reported deeper in
// the chain (memoized sub-failures, ambiguity events) emit nothing.
func (r *Resolver) reportDeriveFailure(q Query, err error) bool {
	var fieldErr *derive.FieldError
	var noFields *derive.NoFieldsError
	var noDisc *derive.NoDiscriminantError

	switch {
	case errors.As(err, &fieldErr):
		if alreadyReported(fieldErr.Cause) {
			return true
		}
		r.emit(diagnostics.NewEvent(
			diagnostics.ErrR005, diagnostics.KindFieldMissing,
			q.Typeclass, q.Type.String(), q.Location,
			fieldErr.Field, fieldErr.FieldType.String(),
		))
	case errors.As(err, &noFields):
		r.emit(diagnostics.NewEvent(
			diagnostics.ErrR006, diagnostics.KindNoFields,
			q.Typeclass, q.Type.String(), q.Location,
		))
	case errors.As(err, &noDisc):
		r.emit(diagnostics.NewEvent(
			diagnostics.ErrR009, diagnostics.KindNoDiscriminant,
			q.Typeclass, q.Type.String(), q.Location,
			noDisc.Variant, noDisc.Field,
		))
	default:
		// Strategy misbehavior and other unexpected states: the
		// generic programmer-error class, never silently swallowed.
		r.emit(diagnostics.NewEvent(
			diagnostics.ErrR010, diagnostics.KindInternal,
			q.Typeclass, q.Type.String(), q.Location,
			err.Error(),
		))
	}
	return true
}
