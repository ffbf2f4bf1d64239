package derive

import (
	"fmt"

	"github.com/typesugar/typesugar/internal/typekey"
)

// FieldError aborts a product derivation at the first field whose
// type has no resolvable instance. It names the field and its type
// so the diagnostic is causal, not generic.
type FieldError struct {
	Typeclass string
	Type      string
	Field     string
	FieldType typekey.Key
	Cause     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("cannot derive %s for %s: field %s of type %s has no %s instance",
		e.Typeclass, e.Type, e.Field, e.FieldType, e.Typeclass)
}

func (e *FieldError) Unwrap() error { return e.Cause }

// NoFieldsError rejects structural derivation for a zero-field
// product. Strategies with an identity element opt out via
// AllowEmptyProduct.
type NoFieldsError struct {
	Typeclass string
	Type      string
}

func (e *NoFieldsError) Error() string {
	return fmt.Sprintf("cannot derive %s for %s: product type has no fields", e.Typeclass, e.Type)
}

// NoDiscriminantError rejects sum derivation when a variant lacks the
// common discriminant field.
type NoDiscriminantError struct {
	Typeclass string
	Type      string
	Variant   string
	Field     string
}

func (e *NoDiscriminantError) Error() string {
	return fmt.Sprintf("cannot derive %s for %s: variant %s lacks discriminant field %q",
		e.Typeclass, e.Type, e.Variant, e.Field)
}

// NoStrategyError reports a derivation request for a typeclass with
// no registered strategy.
type NoStrategyError struct {
	Typeclass string
}

func (e *NoStrategyError) Error() string {
	return fmt.Sprintf("no derivation strategy registered for typeclass %s", e.Typeclass)
}

// NotDerivableError reports a derivation request for a type with no
// structural description (opaque descriptor or none at all).
type NotDerivableError struct {
	Typeclass string
	Type      string
}

func (e *NotDerivableError) Error() string {
	return fmt.Sprintf("cannot derive %s for %s: type has no structural description", e.Typeclass, e.Type)
}
