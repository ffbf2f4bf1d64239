// Package diagnostics defines the structured events the resolution
// engine reports to the (external) rendering layer. Events carry
// stable codes and typed fields; message formatting is entirely the
// renderer's concern.
package diagnostics

// Code is a stable diagnostic code. ErrR* codes are fatal for the
// offending pair/query, WarnR* codes never block anything.
type Code string

const (
	ErrR001  Code = "R001" // duplicate typeclass with a different shape
	ErrR002  Code = "R002" // conflicting explicit instances at one exact key
	ErrR003  Code = "R003" // ambiguous candidates at a query site
	WarnR004 Code = "R004" // local declaration shadows an imported one
	ErrR005  Code = "R005" // derivation failed: field has no instance
	ErrR006  Code = "R006" // derivation failed: product has no fields
	ErrR007  Code = "R007" // no instance and no derivation strategy
	ErrR008  Code = "R008" // derivation recursion depth exceeded
	ErrR009  Code = "R009" // sum type lacks a common discriminant field
	ErrR010  Code = "R010" // internal invariant violation
	WarnR011 Code = "R011" // ambiguity downgraded in lenient mode
)

// Kind mirrors the failure taxonomy.
type Kind int

const (
	KindConflict Kind = iota
	KindAmbiguous
	KindShadowed
	KindFieldMissing
	KindNoFields
	KindNotFound
	KindDepthExceeded
	KindNoDiscriminant
	KindDuplicateTypeclass
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "Conflict"
	case KindAmbiguous:
		return "Ambiguous"
	case KindShadowed:
		return "Shadowed"
	case KindFieldMissing:
		return "FieldMissing"
	case KindNoFields:
		return "NoFields"
	case KindNotFound:
		return "NotFound"
	case KindDepthExceeded:
		return "DepthExceeded"
	case KindNoDiscriminant:
		return "NoDiscriminant"
	case KindDuplicateTypeclass:
		return "DuplicateTypeclass"
	case KindInternal:
		return "Internal"
	}
	return "Unknown"
}

// Token is an opaque source-location token. The engine passes it
// through unmodified; only the renderer interprets it.
type Token string

// Event is one structured diagnostic record.
type Event struct {
	Code      Code
	Kind      Kind
	Typeclass string
	Type      string
	Args      []string // extra typed fields: field names, module names, candidate keys
	Location  Token
}

// Severity of an event, derived from its code.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (e Event) Severity() Severity {
	switch e.Code {
	case WarnR004, WarnR011:
		return SeverityWarning
	}
	return SeverityError
}

// NewEvent builds an event. Args order per kind:
//
//	FieldMissing:   field name, field type
//	Shadowed:       shadowed (imported) instance key
//	Conflict:       first key, second key
//	Ambiguous:      candidate keys...
//	NoDiscriminant: variant name missing the field
func NewEvent(code Code, kind Kind, typeclass, typ string, location Token, args ...string) Event {
	return Event{
		Code:      code,
		Kind:      kind,
		Typeclass: typeclass,
		Type:      typ,
		Args:      args,
		Location:  location,
	}
}
