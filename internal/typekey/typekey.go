package typekey

import (
	"fmt"
	"strings"
)

// Key is the interface for all structural type keys.
// A key is the nominal-plus-structural identity of a type as the
// resolution engine sees it: a bare constructor (Point, number), an
// unbound variable (T), or an application (Array<T>, Map<string, V>).
type Key interface {
	String() string
	Apply(Subst) Key
	FreeVars() []Var
}

// Var represents an unbound type variable (e.g. T, U, a).
type Var struct {
	Name string
}

func (v Var) String() string { return v.Name }

func (v Var) Apply(s Subst) Key {
	if replacement, ok := s[v.Name]; ok {
		// Direct self-reference must not loop.
		if rv, ok := replacement.(Var); ok && rv.Name == v.Name {
			return v
		}
		return replacement
	}
	return v
}

func (v Var) FreeVars() []Var {
	return []Var{v}
}

// Con represents a concrete type constructor (e.g. Point, number, Array).
type Con struct {
	Name string
}

func (c Con) String() string { return c.Name }

func (c Con) Apply(s Subst) Key { return c }

func (c Con) FreeVars() []Var { return []Var{} }

// App represents a constructor application (e.g. Array<T>, Map<string, number>).
type App struct {
	Con  Con
	Args []Key
}

func (a App) String() string {
	args := make([]string, len(a.Args))
	for i, arg := range a.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s<%s>", a.Con.Name, strings.Join(args, ", "))
}

func (a App) Apply(s Subst) Key {
	newArgs := make([]Key, len(a.Args))
	for i, arg := range a.Args {
		newArgs[i] = arg.Apply(s)
	}
	return App{Con: a.Con, Args: newArgs}
}

func (a App) FreeVars() []Var {
	vars := []Var{}
	for _, arg := range a.Args {
		vars = append(vars, arg.FreeVars()...)
	}
	return uniqueVars(vars)
}

// Subst is a mapping from variable names to keys.
type Subst map[string]Key

// Compose combines two substitutions: applying the result is
// equivalent to applying s2, then s1.
func (s1 Subst) Compose(s2 Subst) Subst {
	subst := Subst{}
	for k, v := range s2 {
		subst[k] = v
	}
	for k, v := range s1 {
		subst[k] = v.Apply(s2)
	}
	return subst
}

// Equal reports structural equality of two keys.
func Equal(a, b Key) bool {
	switch ak := a.(type) {
	case Var:
		bv, ok := b.(Var)
		return ok && ak.Name == bv.Name
	case Con:
		bc, ok := b.(Con)
		return ok && ak.Name == bc.Name
	case App:
		bApp, ok := b.(App)
		if !ok || ak.Con.Name != bApp.Con.Name || len(ak.Args) != len(bApp.Args) {
			return false
		}
		for i := range ak.Args {
			if !Equal(ak.Args[i], bApp.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// IsGround reports whether the key contains no unbound variables.
func IsGround(k Key) bool {
	return len(k.FreeVars()) == 0
}

// Constructor returns the outermost constructor name of a key,
// or "" for a bare variable.
func Constructor(k Key) string {
	switch kk := k.(type) {
	case Con:
		return kk.Name
	case App:
		return kk.Con.Name
	}
	return ""
}

// RenameVars renames every free variable in k with the given suffix.
// Used before matching so an instance pattern's variables can never
// collide with variables in the query key.
func RenameVars(k Key, suffix string) Key {
	vars := k.FreeVars()
	subst := make(Subst)
	for _, v := range vars {
		subst[v.Name] = Var{Name: v.Name + "_" + suffix}
	}
	return k.Apply(subst)
}

func uniqueVars(vars []Var) []Var {
	unique := []Var{}
	seen := map[string]bool{}
	for _, v := range vars {
		if !seen[v.Name] {
			seen[v.Name] = true
			unique = append(unique, v)
		}
	}
	return unique
}
