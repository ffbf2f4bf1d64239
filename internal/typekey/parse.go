package typekey

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse reads the surface form of a type key:
//
//	Point
//	Array<T>
//	Map<string, Array<number>>
//
// Single-character identifiers parse as unbound variables (T, U, a);
// everything else is a concrete constructor. Whitespace is tolerated
// around commas and angle brackets.
func Parse(s string) (Key, error) {
	p := &parser{input: s}
	key, err := p.parseKey()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("unexpected trailing input at offset %d in type key %q", p.pos, s)
	}
	return key, nil
}

// MustParse is Parse for statically known keys (tests, builtins).
func MustParse(s string) Key {
	key, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return key
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) parseKey() (Key, error) {
	p.skipSpace()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != '<' {
		return ident(name), nil
	}

	// Constructor application: Name<Arg, ...>
	p.pos++ // consume '<'
	var args []Key
	for {
		arg, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, fmt.Errorf("unterminated type argument list in %q", p.input)
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
			continue
		case '>':
			p.pos++
			return App{Con: Con{Name: name}, Args: args}, nil
		default:
			return nil, fmt.Errorf("expected ',' or '>' at offset %d in type key %q", p.pos, p.input)
		}
	}
}

func (p *parser) parseIdent() (string, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", fmt.Errorf("expected identifier at offset %d in type key %q", start, p.input)
	}
	return p.input[start:p.pos], nil
}

// ident decides whether a bare identifier is a variable or a constructor.
// Single-character names are variables by convention.
func ident(name string) Key {
	if len(name) == 1 {
		return Var{Name: name}
	}
	return Con{Name: name}
}

// Normalize re-renders a key string into canonical form
// (single spaces after commas, no other whitespace).
func Normalize(s string) (string, error) {
	key, err := Parse(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return key.String(), nil
}
