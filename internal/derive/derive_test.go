package derive

import (
	"errors"
	"testing"

	"github.com/typesugar/typesugar/internal/config"
	"github.com/typesugar/typesugar/internal/dict"
	"github.com/typesugar/typesugar/internal/typedesc"
	"github.com/typesugar/typesugar/internal/typekey"
)

// stubResolver resolves primitives and Array<prim> only; everything
// else fails. Stands in for the orchestrator in unit tests.
type stubResolver struct{}

func (stubResolver) ResolveDict(typeclass string, key typekey.Key) (*dict.Dict, error) {
	if d, ok := dict.Primitive(typeclass, key.String()); ok {
		return d, nil
	}
	if app, ok := key.(typekey.App); ok && app.Con.Name == config.ArrayTypeName && len(app.Args) == 1 {
		if elem, ok := dict.Primitive(typeclass, app.Args[0].String()); ok {
			if lifted, ok := dict.ArrayOf(typeclass, elem, key.String()); ok {
				return lifted, nil
			}
		}
	}
	return nil, errors.New("no instance for " + key.String())
}

func engine() *Engine {
	return NewEngine(Builtin()...)
}

func TestDeriveProductEq(t *testing.T) {
	desc := typedesc.Product("Point",
		typedesc.Field{Name: "x", Type: typekey.MustParse("number")},
		typedesc.Field{Name: "y", Type: typekey.MustParse("number")},
	)
	d, err := engine().Derive(stubResolver{}, "Eq", typekey.MustParse("Point"), desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Eq(map[string]any{"x": 1, "y": 2}, map[string]any{"x": 1, "y": 2}) {
		t.Errorf("equal points should compare equal")
	}
	if d.Eq(map[string]any{"x": 1, "y": 2}, map[string]any{"x": 1, "y": 3}) {
		t.Errorf("unequal points should not compare equal")
	}
}

func TestDeriveProduct_FieldFailureIsCausal(t *testing.T) {
	desc := typedesc.Product("Person",
		typedesc.Field{Name: "name", Type: typekey.MustParse("string")},
		typedesc.Field{Name: "address", Type: typekey.MustParse("Address")},
	)
	_, err := engine().Derive(stubResolver{}, "Eq", typekey.MustParse("Person"), desc)
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("error = %v, want FieldError", err)
	}
	if fieldErr.Field != "address" {
		t.Errorf("failing field = %s, want address", fieldErr.Field)
	}
	if fieldErr.FieldType.String() != "Address" {
		t.Errorf("failing field type = %s, want Address", fieldErr.FieldType)
	}
}

func TestDeriveProduct_NoFields(t *testing.T) {
	empty := typedesc.Product("Unit")

	// Structural typeclasses reject an empty product.
	_, err := engine().Derive(stubResolver{}, "Eq", typekey.MustParse("Unit"), empty)
	var noFields *NoFieldsError
	if !errors.As(err, &noFields) {
		t.Fatalf("error = %v, want NoFieldsError", err)
	}

	// Typeclasses with an identity element declare the exemption.
	d, err := engine().Derive(stubResolver{}, "Json", typekey.MustParse("Unit"), empty)
	if err != nil {
		t.Fatalf("Json should allow an empty product: %v", err)
	}
	b, err := d.Json(map[string]any{})
	if err != nil || string(b) != "{}" {
		t.Errorf("empty product json = %s (%v), want {}", b, err)
	}
}

func TestDeriveSum_Show(t *testing.T) {
	shape := typedesc.Sum("Shape", "kind",
		typedesc.Variant{Name: "Circle", Discriminant: "circle", Fields: []typedesc.Field{
			{Name: "kind", Type: typekey.MustParse("string")},
			{Name: "r", Type: typekey.MustParse("number")},
		}},
		typedesc.Variant{Name: "Square", Discriminant: "square", Fields: []typedesc.Field{
			{Name: "kind", Type: typekey.MustParse("string")},
			{Name: "s", Type: typekey.MustParse("number")},
		}},
	)
	d, err := engine().Derive(stubResolver{}, "Show", typekey.MustParse("Shape"), shape)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := d.Show(map[string]any{"kind": "circle", "r": 5})
	if got != "Circle { r: 5 }" {
		t.Errorf("Show = %q, want Circle-variant rendering", got)
	}
}

func TestDeriveSum_MissingDiscriminant(t *testing.T) {
	bad := typedesc.Sum("Shape", "kind",
		typedesc.Variant{Name: "Circle", Discriminant: "circle", Fields: []typedesc.Field{
			{Name: "kind", Type: typekey.MustParse("string")},
			{Name: "r", Type: typekey.MustParse("number")},
		}},
		typedesc.Variant{Name: "Blob", Discriminant: "blob", Fields: []typedesc.Field{
			{Name: "data", Type: typekey.MustParse("string")},
		}},
	)
	_, err := engine().Derive(stubResolver{}, "Eq", typekey.MustParse("Shape"), bad)
	var noDisc *NoDiscriminantError
	if !errors.As(err, &noDisc) {
		t.Fatalf("error = %v, want NoDiscriminantError", err)
	}
	if noDisc.Variant != "Blob" {
		t.Errorf("offending variant = %s, want Blob", noDisc.Variant)
	}
}

func TestDeriveSum_UnitVariantIsLegal(t *testing.T) {
	opt := typedesc.Sum("Maybe", "tag",
		typedesc.Variant{Name: "None", Discriminant: "none", Fields: []typedesc.Field{
			{Name: "tag", Type: typekey.MustParse("string")},
		}},
		typedesc.Variant{Name: "Some", Discriminant: "some", Fields: []typedesc.Field{
			{Name: "tag", Type: typekey.MustParse("string")},
			{Name: "value", Type: typekey.MustParse("number")},
		}},
	)
	d, err := engine().Derive(stubResolver{}, "Eq", typekey.MustParse("Maybe"), opt)
	if err != nil {
		t.Fatalf("unit variants must not trip the no-fields rule: %v", err)
	}
	if !d.Eq(map[string]any{"tag": "none"}, map[string]any{"tag": "none"}) {
		t.Errorf("two unit variants of the same tag should be equal")
	}
	if d.Eq(map[string]any{"tag": "none"}, map[string]any{"tag": "some", "value": 1}) {
		t.Errorf("different variants should not be equal")
	}
}

func TestDerive_NoStrategy(t *testing.T) {
	desc := typedesc.Product("Point", typedesc.Field{Name: "x", Type: typekey.MustParse("number")})
	_, err := engine().Derive(stubResolver{}, "Serialize", typekey.MustParse("Point"), desc)
	var noStrategy *NoStrategyError
	if !errors.As(err, &noStrategy) {
		t.Fatalf("error = %v, want NoStrategyError", err)
	}
}

func TestDerive_OpaqueType(t *testing.T) {
	_, err := engine().Derive(stubResolver{}, "Eq", typekey.MustParse("Handle"), typedesc.Opaque("Handle"))
	var notDerivable *NotDerivableError
	if !errors.As(err, &notDerivable) {
		t.Fatalf("error = %v, want NotDerivableError", err)
	}
}
