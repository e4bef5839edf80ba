package symbols

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// TypeExpr is a parsed type reference as written in source, before names are
// resolved to declared types.
type TypeExpr struct {
	// Parts are the dotted name segments. Empty for tuples.
	Parts []string
	// Args are the generic arguments of the last segment.
	Args []*TypeExpr
	// Tuple holds tuple element types.
	Tuple []*TypeExpr
	// Ranks lists array ranks in source order: int[][,] is [1 2].
	Ranks []int
}

// Name returns the dotted name.
func (e *TypeExpr) Name() string {
	return strings.Join(e.Parts, ".")
}

// String renders e back to source syntax.
func (e *TypeExpr) String() string {
	var sb strings.Builder
	if e.Tuple != nil {
		sb.WriteByte('(')
		for i, el := range e.Tuple {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(el.String())
		}
		sb.WriteByte(')')
	} else {
		sb.WriteString(e.Name())
		if len(e.Args) > 0 {
			sb.WriteByte('<')
			for i, a := range e.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(a.String())
			}
			sb.WriteByte('>')
		}
	}
	for _, r := range e.Ranks {
		sb.WriteByte('[')
		sb.WriteString(strings.Repeat(",", r-1))
		sb.WriteByte(']')
	}
	return sb.String()
}

// ParseTypeExpr parses a type reference such as "int", "string[]",
// "List<Game.Item>", "Dictionary<string, int[]>" or "(int x, string y)".
// Nullable and pointer markers are accepted and dropped.
func ParseTypeExpr(s string) (*TypeExpr, error) {
	p := &typeParser{src: s}
	p.next()
	e, err := p.parseType()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing type %q", s)
	}
	if p.tok != "" {
		return nil, errors.Newf("parsing type %q: unexpected %q", s, p.tok)
	}
	return e, nil
}

type typeParser struct {
	src string
	pos int
	tok string
}

func (p *typeParser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = ""
		return
	}
	c := p.src[p.pos]
	if isIdentStart(c) {
		start := p.pos
		p.pos++
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		p.tok = p.src[start:p.pos]
		return
	}
	if c == ':' && p.pos+1 < len(p.src) && p.src[p.pos+1] == ':' {
		p.pos += 2
		p.tok = "::"
		return
	}
	p.pos++
	p.tok = string(c)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '@' || c >= 0x80 || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdent(tok string) bool {
	return tok != "" && isIdentStart(tok[0])
}

func (p *typeParser) expect(tok string) error {
	if p.tok != tok {
		if p.tok == "" {
			return errors.Newf("expected %q, got end of input", tok)
		}
		return errors.Newf("expected %q, got %q", tok, p.tok)
	}
	p.next()
	return nil
}

func (p *typeParser) parseType() (*TypeExpr, error) {
	var e *TypeExpr
	var err error
	switch {
	case p.tok == "(":
		e, err = p.parseTuple()
	case isIdent(p.tok):
		e, err = p.parseName()
	case p.tok == "":
		return nil, errors.New("empty type")
	default:
		return nil, errors.Newf("unexpected %q", p.tok)
	}
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok {
		case "?", "*":
			p.next()
		case "[":
			rank := 1
			p.next()
			for p.tok == "," {
				rank++
				p.next()
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e.Ranks = append(e.Ranks, rank)
		default:
			return e, nil
		}
	}
}

func (p *typeParser) parseName() (*TypeExpr, error) {
	e := &TypeExpr{}
	for {
		name := strings.TrimPrefix(p.tok, "@")
		p.next()
		if p.tok == "::" {
			// global:: and extern aliases qualify nothing we track.
			p.next()
			if !isIdent(p.tok) {
				return nil, errors.Newf("expected identifier after ::, got %q", p.tok)
			}
			continue
		}
		e.Parts = append(e.Parts, name)
		if p.tok == "<" {
			p.next()
			args, err := p.parseList(">")
			if err != nil {
				return nil, err
			}
			e.Args = args
		}
		if p.tok != "." {
			return e, nil
		}
		p.next()
		if !isIdent(p.tok) {
			return nil, errors.Newf("expected identifier after '.', got %q", p.tok)
		}
		// Arguments on an outer segment do not survive into the name.
		e.Args = nil
	}
}

func (p *typeParser) parseTuple() (*TypeExpr, error) {
	p.next()
	var elems []*TypeExpr
	for {
		el, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if isIdent(p.tok) {
			p.next() // element name
		}
		elems = append(elems, el)
		if p.tok == "," {
			p.next()
			continue
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &TypeExpr{Tuple: elems}, nil
	}
}

func (p *typeParser) parseList(closer string) ([]*TypeExpr, error) {
	var out []*TypeExpr
	for {
		if p.tok == "," || p.tok == closer {
			// Open generic syntax such as Dictionary<,>.
			out = append(out, &TypeExpr{})
		} else {
			a, err := p.parseType()
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		if p.tok == "," {
			p.next()
			continue
		}
		if err := p.expect(closer); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// IsOpen reports whether e is an omitted argument in open generic syntax.
func (e *TypeExpr) IsOpen() bool {
	return len(e.Parts) == 0 && e.Tuple == nil
}
