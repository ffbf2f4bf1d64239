package pipeline

import (
	"errors"

	"github.com/typesugar/typesugar/internal/coherence"
	"github.com/typesugar/typesugar/internal/dict"
	"github.com/typesugar/typesugar/internal/diagnostics"
	"github.com/typesugar/typesugar/internal/registry"
	"github.com/typesugar/typesugar/internal/resolver"
)

// ScanStage registers every declaration into the unit, document by
// document, preserving declaration order. This is the single writer
// phase; later stages only read.
type ScanStage struct{}

func (s *ScanStage) Name() string { return "scan" }

func (s *ScanStage) Process(ctx *Context) *Context {
	for _, doc := range ctx.Documents {
		for i, tc := range doc.Typeclasses {
			methods := make([]registry.MethodSig, 0, len(tc.Methods))
			for _, m := range tc.Methods {
				methods = append(methods, registry.MethodSig{
					Name:       m.Name,
					TypeParams: m.TypeParams,
					Params:     m.Params,
					Return:     m.Return,
				})
			}
			err := ctx.Unit.RegisterTypeclass(registry.TypeclassDescriptor{
				Name:    tc.Name,
				Methods: methods,
			})
			var dup *registry.DuplicateTypeclassError
			if errors.As(err, &dup) {
				ctx.AddEvent(diagnostics.NewEvent(
					diagnostics.ErrR001, diagnostics.KindDuplicateTypeclass,
					tc.Name, "", token(doc, "typeclasses", i),
				))
			} else if err != nil {
				ctx.AddError(err)
			}
		}

		for i, t := range doc.Types {
			desc, err := t.Descriptor()
			if err != nil {
				ctx.AddError(err)
				continue
			}
			if err := ctx.Unit.RegisterType(desc); err != nil {
				ctx.AddEvent(diagnostics.NewEvent(
					diagnostics.ErrR009, diagnostics.KindNoDiscriminant,
					"", t.Name, token(doc, "types", i),
					err.Error(),
				))
			}
		}

		for i, inst := range doc.Instances {
			key, err := inst.ForKey()
			if err != nil {
				ctx.AddError(err)
				continue
			}
			locality := registry.LocalDecl
			if inst.Module != "" {
				locality = registry.ImportedDecl
			}
			ctx.Unit.RegisterInstance(registry.InstanceDescriptor{
				Typeclass: inst.Typeclass,
				ForType:   key,
				Impl:      dict.New(inst.Typeclass, inst.For),
				Origin:    registry.OriginExplicit,
				Locality:  locality,
				Module:    inst.Module,
				Location:  token(doc, "instances", i),
			})
		}
	}
	return ctx
}

// CoherenceStage runs the registry-wide uniqueness passes.
type CoherenceStage struct{}

func (s *CoherenceStage) Name() string { return "coherence" }

func (s *CoherenceStage) Process(ctx *Context) *Context {
	for _, v := range coherence.Check(ctx.Unit.Registry) {
		ctx.AddEvent(v.Event())
	}
	return ctx
}

// QueryStage answers every declared query and merges the resolver's
// event stream into the context.
type QueryStage struct{}

func (s *QueryStage) Name() string { return "query" }

func (s *QueryStage) Process(ctx *Context) *Context {
	for _, doc := range ctx.Documents {
		for i, q := range doc.Queries {
			key, err := q.TypeKey()
			if err != nil {
				ctx.AddError(err)
				continue
			}
			query := resolver.Query{
				Typeclass:  q.Typeclass,
				Type:       key,
				ModuleHint: q.ModuleHint,
				Location:   token(doc, "queries", i),
			}
			ctx.Results = append(ctx.Results, QueryResult{
				Query:  query,
				Result: ctx.Unit.Resolve(query),
			})
		}
	}
	for _, ev := range ctx.Unit.Resolver().Events() {
		ctx.AddEvent(ev)
	}
	return ctx
}
