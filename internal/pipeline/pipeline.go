// Package pipeline runs the workspace phases in order: scan the
// declarations into the registry, check coherence, then answer the
// queries. Stages keep running after failures so one run collects
// every diagnostic.
package pipeline

import (
	"fmt"

	"github.com/typesugar/typesugar/internal/diagnostics"
	"github.com/typesugar/typesugar/internal/manifest"
	"github.com/typesugar/typesugar/internal/resolver"
)

// Processor is one pipeline stage.
type Processor interface {
	Name() string
	Process(ctx *Context) *Context
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Check builds the standard workspace pipeline.
func Check() *Pipeline {
	return New(&ScanStage{}, &CoherenceStage{}, &QueryStage{})
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *Context) *Context {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors to collect diagnostics from all stages.
	}
	return ctx
}

// QueryResult pairs a query with its resolution outcome.
type QueryResult struct {
	Query  resolver.Query
	Result resolver.Result
}

// Context carries the state threaded through the stages: the
// compilation unit, the loaded documents, the query results and the
// merged diagnostic stream.
type Context struct {
	Unit      *resolver.Unit
	Documents []*manifest.Document

	Results []QueryResult
	Events  []diagnostics.Event
	Errors  []error

	seen map[string]bool
}

// NewContext builds a context over a fresh unit and loaded documents.
func NewContext(unit *resolver.Unit, docs []*manifest.Document) *Context {
	return &Context{
		Unit:      unit,
		Documents: docs,
		seen:      make(map[string]bool),
	}
}

// AddEvent appends an event unless the same root cause was already
// recorded. The coherence pass and the resolver can both report one
// underlying violation; the user sees it once.
func (c *Context) AddEvent(ev diagnostics.Event) {
	sig := string(ev.Code) + "|" + ev.Typeclass + "|" + ev.Type
	if c.seen[sig] {
		return
	}
	c.seen[sig] = true
	c.Events = append(c.Events, ev)
}

// AddError records a stage-level failure (unreadable declarations,
// malformed type keys). These are driver errors, not engine events.
func (c *Context) AddError(err error) {
	c.Errors = append(c.Errors, err)
}

// Fatal reports whether the run must exit non-zero: any stage error
// or any error-severity event.
func (c *Context) Fatal() bool {
	if len(c.Errors) > 0 {
		return true
	}
	for _, ev := range c.Events {
		if ev.Severity() == diagnostics.SeverityError {
			return true
		}
	}
	return false
}

func token(doc *manifest.Document, section string, index int) diagnostics.Token {
	return diagnostics.Token(fmt.Sprintf("%s#%s[%d]", doc.Path, section, index))
}
