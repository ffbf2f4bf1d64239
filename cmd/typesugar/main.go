package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/typesugar/typesugar/internal/config"
	"github.com/typesugar/typesugar/internal/diagnostics"
	"github.com/typesugar/typesugar/internal/manifest"
	"github.com/typesugar/typesugar/internal/pipeline"
	"github.com/typesugar/typesugar/internal/resolver"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "check":
		os.Exit(runCheck(os.Args[2:]))
	case "help", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s check [--lenient] <workspace.yaml> [more.yaml...]

Loads the workspace declarations in lexicographic file order, checks
instance coherence, answers the declared queries and prints every
diagnostic. Exits 1 when any error-severity diagnostic was emitted.

  --lenient   downgrade ambiguous resolutions to warnings and pick
              the first-registered candidate
`, os.Args[0])
}

func runCheck(args []string) int {
	lenient := false
	var paths []string
	for _, arg := range args {
		switch arg {
		case "--lenient":
			lenient = true
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "unknown flag %q\n", arg)
				return 2
			}
			paths = append(paths, arg)
		}
	}
	if len(paths) == 0 {
		usage()
		return 2
	}

	docs, err := manifest.LoadAll(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	opts := config.Default()
	for _, doc := range docs {
		// The first document carrying an options block wins.
		if doc.Options != nil {
			opts = doc.Options.Normalize()
			break
		}
	}
	if lenient {
		opts.Coherence = config.ModeLenient
	}

	unit := resolver.NewUnit(opts)
	ctx := pipeline.Check().Run(pipeline.NewContext(unit, docs))

	r := newRenderer(os.Stdout)
	for _, err := range ctx.Errors {
		r.printError(err)
	}
	for _, ev := range ctx.Events {
		r.printEvent(ev)
	}
	for _, res := range ctx.Results {
		r.printResult(res)
	}
	r.printSummary(ctx)

	if ctx.Fatal() {
		return 1
	}
	return 0
}

type renderer struct {
	out   *os.File
	color bool
}

func newRenderer(out *os.File) *renderer {
	return &renderer{
		out:   out,
		color: isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
	}
}

const (
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiReset  = "\033[0m"
)

func (r *renderer) paint(color, s string) string {
	if !r.color {
		return s
	}
	return color + s + ansiReset
}

func (r *renderer) printError(err error) {
	fmt.Fprintf(r.out, "%s %v\n", r.paint(ansiRed, "error:"), err)
}

func (r *renderer) printEvent(ev diagnostics.Event) {
	label := fmt.Sprintf("error[%s]:", ev.Code)
	color := ansiRed
	if ev.Severity() == diagnostics.SeverityWarning {
		label = fmt.Sprintf("warning[%s]:", ev.Code)
		color = ansiYellow
	}
	fmt.Fprintf(r.out, "%s %s\n", r.paint(color, label), eventMessage(ev))
	if ev.Location != "" {
		fmt.Fprintf(r.out, "  at %s\n", ev.Location)
	}
}

// eventMessage renders the human-readable form of a structured event.
// Formatting lives here, outside the engine.
func eventMessage(ev diagnostics.Event) string {
	subject := ev.Typeclass
	if ev.Type != "" {
		subject = fmt.Sprintf("%s for %s", ev.Typeclass, ev.Type)
	}
	switch ev.Kind {
	case diagnostics.KindDuplicateTypeclass:
		return fmt.Sprintf("typeclass %s is already declared with a different shape", ev.Typeclass)
	case diagnostics.KindConflict:
		return fmt.Sprintf("conflicting instances of %s; keeping the first-registered declaration", subject)
	case diagnostics.KindAmbiguous:
		msg := fmt.Sprintf("ambiguous instances of %s", subject)
		if len(ev.Args) > 0 {
			msg += ": candidates " + strings.Join(ev.Args, ", ")
		}
		if ev.Code == diagnostics.WarnR011 {
			msg += " (lenient mode: using the first-registered candidate)"
		}
		return msg
	case diagnostics.KindShadowed:
		if len(ev.Args) > 0 {
			return fmt.Sprintf("local instance of %s shadows the one imported from %s", subject, ev.Args[0])
		}
		return fmt.Sprintf("local instance of %s shadows an imported one", subject)
	case diagnostics.KindFieldMissing:
		if len(ev.Args) >= 2 {
			return fmt.Sprintf("cannot derive %s: field %q of type %s has no instance", subject, ev.Args[0], ev.Args[1])
		}
		return fmt.Sprintf("cannot derive %s: a field has no instance", subject)
	case diagnostics.KindNoFields:
		return fmt.Sprintf("cannot derive %s: the type has no fields", subject)
	case diagnostics.KindNotFound:
		return fmt.Sprintf("no instance of %s and no way to derive one", subject)
	case diagnostics.KindDepthExceeded:
		return fmt.Sprintf("derivation of %s exceeded the recursion depth limit", subject)
	case diagnostics.KindNoDiscriminant:
		if len(ev.Args) >= 2 {
			return fmt.Sprintf("cannot derive %s: variant %s lacks the discriminant field %q", subject, ev.Args[0], ev.Args[1])
		}
		return fmt.Sprintf("cannot derive %s: invalid sum type shape", subject)
	default:
		msg := fmt.Sprintf("internal error while resolving %s", subject)
		if len(ev.Args) > 0 {
			msg += ": " + strings.Join(ev.Args, "; ")
		}
		return msg
	}
}

func (r *renderer) printResult(res pipeline.QueryResult) {
	name := fmt.Sprintf("%s<%s>", res.Query.Typeclass, res.Query.Type)
	switch res.Result.Status {
	case resolver.StatusResolved:
		fmt.Fprintf(r.out, "%s %s via %s instance\n",
			r.paint(ansiGreen, "resolved"), name, res.Result.Instance.Origin)
	case resolver.StatusConflict:
		fmt.Fprintf(r.out, "%s %s (conflicting declarations; using the first-registered one)\n",
			r.paint(ansiRed, "conflict"), name)
	case resolver.StatusAmbiguous:
		fmt.Fprintf(r.out, "%s %s (%d candidates)\n",
			r.paint(ansiRed, "ambiguous"), name, len(res.Result.Candidates))
	default:
		fmt.Fprintf(r.out, "%s %s\n", r.paint(ansiRed, "not found"), name)
	}
}

func (r *renderer) printSummary(ctx *pipeline.Context) {
	errs, warns := 0, 0
	for _, ev := range ctx.Events {
		if ev.Severity() == diagnostics.SeverityError {
			errs++
		} else {
			warns++
		}
	}
	errs += len(ctx.Errors)
	fmt.Fprintf(r.out, "%d queries, %d errors, %d warnings\n", len(ctx.Results), errs, warns)
}
