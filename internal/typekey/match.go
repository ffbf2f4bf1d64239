package typekey

// Match attempts one-way structural matching of pattern against target.
// Variables occur in the pattern only; each variable binds consistently
// (a pattern Pair<T, T> does not match Pair<number, string>). The
// returned substitution maps the pattern's variable names to target
// sub-keys.
//
// The caller is expected to rename pattern variables (RenameVars) when
// the target itself may contain variables with colliding names.
func Match(pattern, target Key) (Subst, bool) {
	subst := make(Subst)
	if !matchInto(pattern, target, subst) {
		return nil, false
	}
	return subst, true
}

func matchInto(pattern, target Key, subst Subst) bool {
	switch pat := pattern.(type) {
	case Var:
		if bound, ok := subst[pat.Name]; ok {
			return Equal(bound, target)
		}
		subst[pat.Name] = target
		return true

	case Con:
		tc, ok := target.(Con)
		return ok && tc.Name == pat.Name

	case App:
		ta, ok := target.(App)
		if !ok || ta.Con.Name != pat.Con.Name || len(ta.Args) != len(pat.Args) {
			return false
		}
		for i := range pat.Args {
			if !matchInto(pat.Args[i], ta.Args[i], subst) {
				return false
			}
		}
		return true
	}
	return false
}

// Score is the specificity of a key pattern: fewer unbound variables
// is more specific; among equals, deeper concrete nesting is more
// specific. Show<Array<number>> beats Show<Array<T>> beats Show<T>.
type Score struct {
	Vars  int // distinct unbound variables
	Depth int // nesting depth of concrete constructors
}

// Specificity computes the score of a key.
func Specificity(k Key) Score {
	return Score{
		Vars:  len(k.FreeVars()),
		Depth: depth(k),
	}
}

// Compare returns a negative value if a is more specific than b,
// positive if less specific, zero if tied.
func (a Score) Compare(b Score) int {
	if a.Vars != b.Vars {
		return a.Vars - b.Vars
	}
	return b.Depth - a.Depth
}

func depth(k Key) int {
	switch kk := k.(type) {
	case Var:
		return 0
	case Con:
		return 1
	case App:
		max := 0
		for _, arg := range kk.Args {
			if d := depth(arg); d > max {
				max = d
			}
		}
		return 1 + max
	}
	return 0
}
