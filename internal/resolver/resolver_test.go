package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typesugar/typesugar/internal/config"
	"github.com/typesugar/typesugar/internal/dict"
	"github.com/typesugar/typesugar/internal/diagnostics"
	"github.com/typesugar/typesugar/internal/registry"
	"github.com/typesugar/typesugar/internal/typedesc"
	"github.com/typesugar/typesugar/internal/typekey"
)

func newUnit(t *testing.T, classes ...string) *Unit {
	t.Helper()
	u := NewUnit(config.Default())
	for _, c := range classes {
		require.NoError(t, u.RegisterTypeclass(registry.TypeclassDescriptor{Name: c}))
	}
	return u
}

func explicitInstance(typeclass, forType string) registry.InstanceDescriptor {
	return registry.InstanceDescriptor{
		Typeclass: typeclass,
		ForType:   typekey.MustParse(forType),
		Impl:      dict.New(typeclass, forType),
		Origin:    registry.OriginExplicit,
		Locality:  registry.LocalDecl,
	}
}

func importedInstance(typeclass, forType, module string) registry.InstanceDescriptor {
	d := explicitInstance(typeclass, forType)
	d.Locality = registry.ImportedDecl
	d.Module = module
	return d
}

func pointDescriptor() typedesc.TypeDescriptor {
	return typedesc.Product("Point",
		typedesc.Field{Name: "x", Type: typekey.MustParse("number")},
		typedesc.Field{Name: "y", Type: typekey.MustParse("number")},
	)
}

func query(typeclass, forType string) Query {
	return Query{Typeclass: typeclass, Type: typekey.MustParse(forType), Location: diagnostics.Token("test:1:1")}
}

// Scenario A: an explicit instance and a derivable shape coexist at
// the same key; resolution returns the explicit one with zero
// diagnostics.
func TestResolve_ExplicitOverDerivable(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(pointDescriptor()))
	want := u.RegisterInstance(explicitInstance("Eq", "Point"))

	res := u.Resolve(query("Eq", "Point"))

	require.Equal(t, StatusResolved, res.Status)
	assert.Same(t, want, res.Instance)
	assert.Equal(t, registry.OriginExplicit, res.Instance.Origin)
	assert.Empty(t, u.Resolver().Events(), "scenario A must produce zero diagnostics")
}

// Scenario B: two explicit instances at one exact key raise one
// Conflict diagnostic; resolution continues deterministically with
// the first-registered one.
func TestResolve_ConflictFirstRegisteredWins(t *testing.T) {
	u := newUnit(t, "Eq")
	first := u.RegisterInstance(explicitInstance("Eq", "Point"))
	u.RegisterInstance(explicitInstance("Eq", "Point"))

	res := u.Resolve(query("Eq", "Point"))

	require.Equal(t, StatusConflict, res.Status)
	assert.Same(t, first, res.Instance, "analysis continues with the first-registered instance")
	require.Len(t, res.Candidates, 2)

	events := u.Resolver().Events()
	require.Len(t, events, 1)
	assert.Equal(t, diagnostics.ErrR002, events[0].Code)

	// Re-resolving must not duplicate the diagnostic.
	again := u.Resolve(query("Eq", "Point"))
	assert.Equal(t, StatusConflict, again.Status)
	assert.Len(t, u.Resolver().Events(), 1, "one event per root cause")
}

// Scenario C: a field whose type has no instance and no derivable
// structure aborts derivation with a causal failure naming the field.
func TestResolve_DerivationFailureNamesField(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(typedesc.Product("Person",
		typedesc.Field{Name: "name", Type: typekey.MustParse("string")},
		typedesc.Field{Name: "address", Type: typekey.MustParse("Address")},
	)))

	res := u.Resolve(query("Eq", "Person"))

	require.Equal(t, StatusNotFound, res.Status)
	events := u.Resolver().Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, diagnostics.ErrR005, ev.Code)
	assert.Equal(t, diagnostics.KindFieldMissing, ev.Kind)
	require.Len(t, ev.Args, 2)
	assert.Equal(t, "address", ev.Args[0])
	assert.Equal(t, "Address", ev.Args[1])

	// A second attempt is memoized and silent.
	u.Resolve(query("Eq", "Person"))
	assert.Len(t, u.Resolver().Events(), 1)
}

// Scenario D: sum derivation dispatches on the discriminant value.
func TestResolve_SumDerivationDispatches(t *testing.T) {
	u := newUnit(t, "Show")
	require.NoError(t, u.RegisterType(typedesc.Sum("Shape", "kind",
		typedesc.Variant{Name: "Circle", Discriminant: "circle", Fields: []typedesc.Field{
			{Name: "kind", Type: typekey.MustParse("string")},
			{Name: "r", Type: typekey.MustParse("number")},
		}},
		typedesc.Variant{Name: "Square", Discriminant: "square", Fields: []typedesc.Field{
			{Name: "kind", Type: typekey.MustParse("string")},
			{Name: "s", Type: typekey.MustParse("number")},
		}},
	)))

	res := u.Resolve(query("Show", "Shape"))

	require.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, registry.OriginDerived, res.Instance.Origin)
	got := res.Instance.Impl.Show(map[string]any{"kind": "circle", "r": 5})
	assert.Equal(t, "Circle { r: 5 }", got)
	assert.Empty(t, u.Resolver().Events())
}

// Scenario E: two imported instances at equal specificity with no
// local declaration are ambiguous in strict mode.
func TestResolve_AmbiguousImports(t *testing.T) {
	u := newUnit(t, "Show")
	u.RegisterInstance(importedInstance("Show", "User", "lib/a"))
	u.RegisterInstance(importedInstance("Show", "User", "lib/b"))

	res := u.Resolve(query("Show", "User"))

	require.Equal(t, StatusAmbiguous, res.Status)
	assert.Nil(t, res.Instance)
	require.Len(t, res.Candidates, 2)

	events := u.Resolver().Events()
	require.Len(t, events, 1)
	assert.Equal(t, diagnostics.ErrR003, events[0].Code)
}

func TestResolve_ModuleHintDisambiguates(t *testing.T) {
	u := newUnit(t, "Show")
	u.RegisterInstance(importedInstance("Show", "User", "lib/a"))
	fromB := u.RegisterInstance(importedInstance("Show", "User", "lib/b"))

	q := query("Show", "User")
	q.ModuleHint = "lib/b"
	res := u.Resolve(q)

	require.Equal(t, StatusResolved, res.Status)
	assert.Same(t, fromB, res.Instance)
	assert.Empty(t, u.Resolver().Events())
}

func TestResolve_LenientDowngradesAmbiguity(t *testing.T) {
	u := NewUnit(config.Options{Coherence: config.ModeLenient})
	require.NoError(t, u.RegisterTypeclass(registry.TypeclassDescriptor{Name: "Show"}))
	first := u.RegisterInstance(importedInstance("Show", "User", "lib/a"))
	u.RegisterInstance(importedInstance("Show", "User", "lib/b"))

	res := u.Resolve(query("Show", "User"))

	require.Equal(t, StatusResolved, res.Status)
	assert.Same(t, first, res.Instance, "lenient mode falls back to first-registered")

	events := u.Resolver().Events()
	require.Len(t, events, 1)
	assert.Equal(t, diagnostics.WarnR011, events[0].Code)
	assert.Equal(t, diagnostics.SeverityWarning, events[0].Severity())
}

func TestResolve_LocalShadowsImported(t *testing.T) {
	u := newUnit(t, "Show")
	u.RegisterInstance(importedInstance("Show", "User", "lib/display"))
	local := u.RegisterInstance(explicitInstance("Show", "User"))

	res := u.Resolve(query("Show", "User"))

	require.Equal(t, StatusResolved, res.Status)
	assert.Same(t, local, res.Instance, "the local declaration wins")

	events := u.Resolver().Events()
	require.Len(t, events, 1)
	assert.Equal(t, diagnostics.WarnR004, events[0].Code)
	assert.Equal(t, diagnostics.SeverityWarning, events[0].Severity(), "shadowing is never fatal")
	assert.Equal(t, []string{"lib/display"}, events[0].Args)
}

// Specificity: Show<Array<number>> beats Show<Array<T>>.
func TestResolve_SpecificityRanking(t *testing.T) {
	u := newUnit(t, "Show")
	u.RegisterInstance(explicitInstance("Show", "Array<T>"))
	concrete := u.RegisterInstance(explicitInstance("Show", "Array<number>"))

	res := u.Resolve(query("Show", "Array<number>"))
	require.Equal(t, StatusResolved, res.Status)
	assert.Same(t, concrete, res.Instance)

	// A query only the generic pattern covers still resolves.
	generic := u.Resolve(query("Show", "Array<Point>"))
	require.Equal(t, StatusResolved, generic.Status)
	assert.Equal(t, "Array<T>", generic.Instance.KeyString())
	assert.Empty(t, u.Resolver().Events())
}

func TestResolve_PatternRankingFewerVarsWins(t *testing.T) {
	u := newUnit(t, "Show")
	u.RegisterInstance(explicitInstance("Show", "Map<K, V>"))
	partial := u.RegisterInstance(explicitInstance("Show", "Map<K, number>"))

	res := u.Resolve(query("Show", "Map<string, number>"))
	require.Equal(t, StatusResolved, res.Status)
	assert.Same(t, partial, res.Instance)
}

// Termination on recursion: TreeNode contains Array<TreeNode>.
func TestResolve_RecursiveTypeTerminates(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(typedesc.Product("TreeNode",
		typedesc.Field{Name: "value", Type: typekey.MustParse("number")},
		typedesc.Field{Name: "children", Type: typekey.MustParse("Array<TreeNode>")},
	)))

	res := u.Resolve(query("Eq", "TreeNode"))
	require.Equal(t, StatusResolved, res.Status)
	require.Empty(t, u.Resolver().Events())

	leaf := func(v int) map[string]any {
		return map[string]any{"value": v, "children": []any{}}
	}
	tree := map[string]any{"value": 1, "children": []any{leaf(2), leaf(3)}}
	same := map[string]any{"value": 1, "children": []any{leaf(2), leaf(3)}}
	diff := map[string]any{"value": 1, "children": []any{leaf(2), leaf(4)}}

	eq := res.Instance.Impl
	assert.True(t, eq.Eq(tree, same), "recursive comparison must descend into children")
	assert.False(t, eq.Eq(tree, diff))
}

// Idempotent derivation: a second query returns the same memoized
// instance, not a structurally new one.
func TestResolve_DerivationIsMemoized(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(pointDescriptor()))

	first := u.Resolve(query("Eq", "Point"))
	second := u.Resolve(query("Eq", "Point"))

	require.Equal(t, StatusResolved, first.Status)
	assert.Same(t, first.Instance, second.Instance)
	assert.Equal(t, first.Instance.Impl.ID, second.Instance.Impl.ID)
}

// Eq/Hash law across full resolution: derived-Eq-equal values hash
// equal under derived Hash.
func TestResolve_EqHashContract(t *testing.T) {
	u := newUnit(t, "Eq", "Hash")
	require.NoError(t, u.RegisterType(pointDescriptor()))

	eqRes := u.Resolve(query("Eq", "Point"))
	hashRes := u.Resolve(query("Hash", "Point"))
	require.Equal(t, StatusResolved, eqRes.Status)
	require.Equal(t, StatusResolved, hashRes.Status)

	values := []map[string]any{
		{"x": 1, "y": 2},
		{"x": 1.0, "y": 2.0},
		{"x": 0, "y": -1},
		{"x": 0.0, "y": -1.0},
	}
	for _, a := range values {
		for _, b := range values {
			if eqRes.Instance.Impl.Eq(a, b) {
				assert.Equal(t,
					hashRes.Instance.Impl.Hash(a),
					hashRes.Instance.Impl.Hash(b),
					"Eq-equal %v and %v must hash equal", a, b)
			}
		}
	}
}

// A root derivation that fails after a mutually-recursive sibling
// already derived against its pending cell must retract the sibling
// too: the sibling's dictionary closes over a cell that is never
// filled.
func TestResolve_FailedDerivationRetractsSiblings(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(typedesc.Product("Alpha",
		typedesc.Field{Name: "b", Type: typekey.MustParse("Beta")},
		typedesc.Field{Name: "x", Type: typekey.MustParse("Mystery")},
	)))
	require.NoError(t, u.RegisterType(typedesc.Product("Beta",
		typedesc.Field{Name: "a", Type: typekey.MustParse("Alpha")},
	)))

	root := u.Resolve(query("Eq", "Alpha"))
	require.Equal(t, StatusNotFound, root.Status)

	sibling := u.Resolve(query("Eq", "Beta"))
	assert.Equal(t, StatusNotFound, sibling.Status,
		"Beta embeds Alpha, which has no Eq instance")
	assert.Nil(t, sibling.Instance)

	// The retracted sibling must not linger in the registry.
	assert.Empty(t, u.Registry.InstancesAt("Eq", typekey.MustParse("Beta")))

	events := u.Resolver().Events()
	require.Len(t, events, 1, "one event for the root cause")
	assert.Equal(t, diagnostics.ErrR005, events[0].Code)
	assert.Equal(t, "Alpha", events[0].Type)
	assert.Equal(t, []string{"x", "Mystery"}, events[0].Args)
}

// The same pair of types must fail the same way regardless of which
// one is queried first.
func TestResolve_SiblingFailureIsOrderIndependent(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(typedesc.Product("Alpha",
		typedesc.Field{Name: "b", Type: typekey.MustParse("Beta")},
		typedesc.Field{Name: "x", Type: typekey.MustParse("Mystery")},
	)))
	require.NoError(t, u.RegisterType(typedesc.Product("Beta",
		typedesc.Field{Name: "a", Type: typekey.MustParse("Alpha")},
	)))

	assert.Equal(t, StatusNotFound, u.Resolve(query("Eq", "Beta")).Status)
	assert.Equal(t, StatusNotFound, u.Resolve(query("Eq", "Alpha")).Status)

	events := u.Resolver().Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Alpha", events[0].Type)
}

// Array dictionaries lifted over a pending cell are retracted along
// with the failed owner.
func TestResolve_FailedDerivationRetractsLiftedArrays(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(typedesc.Product("Node",
		typedesc.Field{Name: "children", Type: typekey.MustParse("Array<Node>")},
		typedesc.Field{Name: "x", Type: typekey.MustParse("Mystery")},
	)))

	require.Equal(t, StatusNotFound, u.Resolve(query("Eq", "Node")).Status)

	arr := u.Resolve(query("Eq", "Array<Node>"))
	assert.Equal(t, StatusNotFound, arr.Status)
	assert.Empty(t, u.Registry.InstancesAt("Eq", typekey.MustParse("Array<Node>")))
}

// A deep query that hits the depth ceiling must not leave the
// intermediate types unresolvable: a direct query starts with a
// fresh budget.
func TestResolve_DepthFailureIsPerRootDerivation(t *testing.T) {
	u := NewUnit(config.Options{MaxDeriveDepth: 4})
	require.NoError(t, u.RegisterTypeclass(registry.TypeclassDescriptor{Name: "Eq"}))
	require.NoError(t, u.RegisterType(typedesc.Product("Box",
		typedesc.Field{Name: "value", Type: typekey.MustParse("T")},
	).WithParams("T")))

	deep := "Box<Box<Box<Box<Box<Box<number>>>>>>"
	require.Equal(t, StatusNotFound, u.Resolve(query("Eq", deep)).Status)

	res := u.Resolve(query("Eq", "Box<Box<number>>"))
	require.Equal(t, StatusResolved, res.Status, "direct derivation fits the budget")
	assert.True(t, res.Instance.Impl.Eq(
		map[string]any{"value": map[string]any{"value": 1}},
		map[string]any{"value": map[string]any{"value": 1.0}},
	))

	// The deep query's own failure stays memoized.
	assert.Equal(t, StatusNotFound, u.Resolve(query("Eq", deep)).Status)
}

func TestResolve_DepthLimit(t *testing.T) {
	u := NewUnit(config.Options{MaxDeriveDepth: 8})
	require.NoError(t, u.RegisterTypeclass(registry.TypeclassDescriptor{Name: "Eq"}))
	// Rec<T> references Rec<Array<T>>: the key grows at every step,
	// so memoization never catches it and the depth guard must.
	require.NoError(t, u.RegisterType(typedesc.Product("Rec",
		typedesc.Field{Name: "v", Type: typekey.MustParse("T")},
		typedesc.Field{Name: "next", Type: typekey.MustParse("Rec<Array<T>>")},
	).WithParams("T")))

	res := u.Resolve(query("Eq", "Rec<number>"))

	require.Equal(t, StatusNotFound, res.Status, "pathological recursion is a diagnostic, not a crash")
	events := u.Resolver().Events()
	require.NotEmpty(t, events)
	var depthEvents int
	for _, ev := range events {
		if ev.Code == diagnostics.ErrR008 {
			depthEvents++
		}
	}
	assert.Equal(t, 1, depthEvents, "exactly one depth-limit event for the root cause")
}

func TestResolve_NotFound(t *testing.T) {
	u := newUnit(t, "Eq")

	res := u.Resolve(query("Eq", "Mystery"))

	require.Equal(t, StatusNotFound, res.Status)
	events := u.Resolver().Events()
	require.Len(t, events, 1)
	assert.Equal(t, diagnostics.ErrR007, events[0].Code)
}

func TestResolve_UnregisteredTypeclass(t *testing.T) {
	u := NewUnit(config.Default())
	// The builtin engine carries an Eq strategy, but Eq was never
	// declared: programmer error, reported distinctly.
	res := u.Resolve(query("Eq", "Point"))
	require.Equal(t, StatusNotFound, res.Status)
	events := u.Resolver().Events()
	require.Len(t, events, 1)
	assert.Equal(t, diagnostics.ErrR010, events[0].Code)
	assert.Equal(t, diagnostics.KindInternal, events[0].Kind)

	// A typeclass with neither declaration nor strategy is a plain miss.
	res = u.Resolve(query("Serialize", "Point"))
	require.Equal(t, StatusNotFound, res.Status)
	assert.Equal(t, diagnostics.ErrR007, u.Resolver().Events()[1].Code)
}

func TestResolve_PrimitivesAndArrays(t *testing.T) {
	u := newUnit(t, "Show")

	num := u.Resolve(query("Show", "number"))
	require.Equal(t, StatusResolved, num.Status)
	assert.Equal(t, registry.OriginBuiltin, num.Instance.Origin)
	assert.Equal(t, "5", num.Instance.Impl.Show(5))

	arr := u.Resolve(query("Show", "Array<string>"))
	require.Equal(t, StatusResolved, arr.Status)
	assert.Equal(t, `["a", "b"]`, arr.Instance.Impl.Show([]any{"a", "b"}))
}

func TestUnit_ResetDiscardsEverything(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(pointDescriptor()))
	u.Resolve(query("Eq", "Point"))
	u.Resolve(query("Eq", "Ghost")) // records a NotFound event

	u.Reset()

	assert.Empty(t, u.Resolver().Events(), "events must not survive a reset")
	assert.False(t, u.Registry.HasTypeclass("Eq"), "registry state must not leak across compilations")

	// The same query in the fresh unit starts from nothing.
	res := u.Resolve(query("Eq", "Point"))
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestResolve_JsonDerivation(t *testing.T) {
	u := newUnit(t, "Json")
	require.NoError(t, u.RegisterType(typedesc.Product("Person",
		typedesc.Field{Name: "name", Type: typekey.MustParse("string")},
		typedesc.Field{Name: "scores", Type: typekey.MustParse("Array<number>")},
	)))

	res := u.Resolve(query("Json", "Person"))
	require.Equal(t, StatusResolved, res.Status)

	b, err := res.Instance.Impl.Json(map[string]any{"name": "ada", "scores": []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"ada","scores":[1,2]}`, string(b))
}

func TestResolve_GenericDescriptorInstantiation(t *testing.T) {
	u := newUnit(t, "Eq")
	require.NoError(t, u.RegisterType(typedesc.Product("Box",
		typedesc.Field{Name: "value", Type: typekey.MustParse("T")},
	).WithParams("T")))

	res := u.Resolve(query("Eq", "Box<number>"))
	require.Equal(t, StatusResolved, res.Status)
	assert.True(t, res.Instance.Impl.Eq(map[string]any{"value": 7}, map[string]any{"value": 7.0}))
	assert.False(t, res.Instance.Impl.Eq(map[string]any{"value": 7}, map[string]any{"value": 8}))
}
