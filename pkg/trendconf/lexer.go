package trendconf

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokIllegal
)

// Position is a 1-based line/column location in a configuration file.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

type token struct {
	kind tokenKind
	text string
	pos  Position
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	case tokIllegal:
		return t.text
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// lexer splits configuration text into keywords and double-quoted strings.
// Whitespace and newlines are insignificant; '#' starts a comment that runs
// to the end of the line.
type lexer struct {
	src  []rune
	off  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.off >= len(l.src) {
		return 0, false
	}
	return l.src[l.off], true
}

func (l *lexer) advance() rune {
	r := l.src[l.off]
	l.off++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() {
	for {
		r, ok := l.peekRune()
		if !ok {
			return
		}
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '#':
			for {
				r, ok := l.peekRune()
				if !ok || r == '\n' {
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *lexer) next() token {
	l.skipSpaceAndComments()
	pos := Position{Line: l.line, Column: l.col}
	r, ok := l.peekRune()
	if !ok {
		return token{kind: tokEOF, pos: pos}
	}

	if r == '"' {
		return l.lexString(pos)
	}
	if unicode.IsLetter(r) {
		var sb strings.Builder
		for {
			r, ok := l.peekRune()
			if !ok || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
				break
			}
			sb.WriteRune(l.advance())
		}
		return token{kind: tokIdent, text: sb.String(), pos: pos}
	}

	l.advance()
	return token{kind: tokIllegal, text: fmt.Sprintf("unexpected character %q", r), pos: pos}
}

func (l *lexer) lexString(pos Position) token {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		r, ok := l.peekRune()
		if !ok || r == '\n' {
			return token{kind: tokIllegal, text: "unterminated string", pos: pos}
		}
		l.advance()
		switch r {
		case '"':
			return token{kind: tokString, text: sb.String(), pos: pos}
		case '\\':
			esc, ok := l.peekRune()
			if !ok {
				return token{kind: tokIllegal, text: "unterminated string", pos: pos}
			}
			l.advance()
			switch esc {
			case '"', '\\':
				sb.WriteRune(esc)
			default:
				// Unknown escapes are kept verbatim so regex escapes like \d survive.
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
}
