// Package typedesc holds the structural descriptions of types as
// pushed by the declaration scanner. The resolution engine never
// parses source syntax; everything it knows about a type's shape
// arrives through these descriptors.
package typedesc

import (
	"fmt"

	"github.com/typesugar/typesugar/internal/typekey"
)

// ShapeKind classifies a descriptor.
type ShapeKind int

const (
	OpaqueType  ShapeKind = iota // no structure known; cannot be derived
	ProductType                  // named fields in declared order
	SumType                      // tagged variants sharing a discriminant field
)

func (k ShapeKind) String() string {
	switch k {
	case ProductType:
		return "product"
	case SumType:
		return "sum"
	}
	return "opaque"
}

// Field is a single named field of a product or variant.
type Field struct {
	Name string
	Type typekey.Key
}

// Variant is one arm of a sum type. Discriminant is the literal value
// of the shared discriminant field that selects this variant.
type Variant struct {
	Name         string
	Discriminant string
	Fields       []Field
}

// TypeDescriptor describes the shape of one named type.
// Field order is declaration order and is significant: derived Ord
// compares lexicographically in this order, derived Show renders in
// this order.
type TypeDescriptor struct {
	Name              string
	TypeParams        []string  // declared type parameters, e.g. Box<T>
	Fields            []Field   // products only
	Variants          []Variant // sums only
	DiscriminantField string    // sums only: the common field name
	kind              ShapeKind
}

// Product builds a product descriptor.
func Product(name string, fields ...Field) TypeDescriptor {
	return TypeDescriptor{Name: name, Fields: fields, kind: ProductType}
}

// Sum builds a sum descriptor dispatching on the named field.
func Sum(name, discriminantField string, variants ...Variant) TypeDescriptor {
	return TypeDescriptor{
		Name:              name,
		Variants:          variants,
		DiscriminantField: discriminantField,
		kind:              SumType,
	}
}

// Opaque builds a descriptor for a type with no known structure.
func Opaque(name string) TypeDescriptor {
	return TypeDescriptor{Name: name, kind: OpaqueType}
}

func (d TypeDescriptor) Kind() ShapeKind { return d.kind }

// WithParams declares the descriptor's type parameters. Field types
// may mention them; derivation substitutes the query's type arguments
// before recursing.
func (d TypeDescriptor) WithParams(params ...string) TypeDescriptor {
	d.TypeParams = params
	return d
}

// Instantiate substitutes type arguments for the declared parameters
// in every field type. Extra or missing arguments leave the
// corresponding parameters unbound.
func (d TypeDescriptor) Instantiate(args []typekey.Key) TypeDescriptor {
	if len(d.TypeParams) == 0 || len(args) == 0 {
		return d
	}
	subst := make(typekey.Subst)
	for i, p := range d.TypeParams {
		if i < len(args) {
			subst[p] = args[i]
		}
	}

	out := d
	out.Fields = substFields(d.Fields, subst)
	if len(d.Variants) > 0 {
		out.Variants = make([]Variant, len(d.Variants))
		for i, v := range d.Variants {
			nv := v
			nv.Fields = substFields(v.Fields, subst)
			out.Variants[i] = nv
		}
	}
	return out
}

func substFields(fields []Field, subst typekey.Subst) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Name: f.Name, Type: f.Type.Apply(subst)}
	}
	return out
}

// Validate checks internal consistency of the descriptor.
// For sums, every variant must carry the discriminant field.
func (d TypeDescriptor) Validate() error {
	switch d.kind {
	case SumType:
		if d.DiscriminantField == "" {
			return fmt.Errorf("sum type %s has no discriminant field", d.Name)
		}
		if len(d.Variants) == 0 {
			return fmt.Errorf("sum type %s has no variants", d.Name)
		}
		seen := make(map[string]string, len(d.Variants))
		for _, v := range d.Variants {
			if v.Discriminant == "" {
				return fmt.Errorf("variant %s of %s has no discriminant value", v.Name, d.Name)
			}
			if prev, dup := seen[v.Discriminant]; dup {
				return fmt.Errorf("variants %s and %s of %s share discriminant value %q", prev, v.Name, d.Name, v.Discriminant)
			}
			seen[v.Discriminant] = v.Name
		}
	case ProductType:
		names := make(map[string]bool, len(d.Fields))
		for _, f := range d.Fields {
			if names[f.Name] {
				return fmt.Errorf("duplicate field %s in %s", f.Name, d.Name)
			}
			names[f.Name] = true
		}
	}
	return nil
}

// StructuralFields returns the fields of a variant that participate in
// structural derivation: everything except the discriminant field,
// which exists for dispatch, not data.
func (v Variant) StructuralFields(discriminantField string) []Field {
	out := make([]Field, 0, len(v.Fields))
	for _, f := range v.Fields {
		if f.Name == discriminantField {
			continue
		}
		out = append(out, f)
	}
	return out
}

// HasField reports whether the variant declares the named field.
func (v Variant) HasField(name string) bool {
	for _, f := range v.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
