package trendconf

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrSyntax is wrapped by every ParseError.
var ErrSyntax = errors.New("syntax error")

// ParseError is one diagnostic produced while parsing a configuration file.
type ParseError struct {
	File string
	Pos  Position
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%s: %s", e.File, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

// SourceKind distinguishes the two source selectors.
type SourceKind int

const (
	SourceByType SourceKind = iota + 1
	SourceByPath
)

// SourceSelector identifies which sources a record applies to.
type SourceSelector struct {
	Kind  SourceKind
	Value string
}

// Key is the matcher key for the selector: the file-type tag or the path.
func (s SourceSelector) Key() string {
	if s.Kind == SourceByType {
		return strings.ToLower(s.Value)
	}
	return s.Value
}

// TrendSelector identifies trends within a source, by exact name or regex.
type TrendSelector struct {
	Name    string
	Pattern *regexp.Regexp
}

// IsRegex reports whether the selector is a regex.
func (t TrendSelector) IsRegex() bool { return t.Pattern != nil }

// Record is one parsed source/trend/transform triple. Transform is nil for
// the "unit" transform, which carries no action.
type Record struct {
	Source    SourceSelector
	Trend     TrendSelector
	Transform Transform
	Pos       Position
}

type parser struct {
	file string
	lex  *lexer
	tok  token
	errs []error
}

// Parse parses configuration text. It returns every record it could build
// together with all diagnostics; callers must treat a non-empty error list
// as invalidating the whole file.
func Parse(file, src string) ([]Record, []error) {
	p := &parser{file: file, lex: newLexer(src)}
	p.next()

	var records []Record
	for p.tok.kind != tokEOF {
		rec, ok := p.record()
		if ok {
			records = append(records, rec)
			continue
		}
		p.sync()
	}
	return records, p.errs
}

func (p *parser) next() { p.tok = p.lex.next() }

func (p *parser) errorf(pos Position, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{File: p.file, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// sync skips to the next token that can start a record so later errors in
// the same file are still reported.
func (p *parser) sync() {
	for p.tok.kind != tokEOF {
		if p.tok.kind == tokIdent && (p.tok.text == "type" || p.tok.text == "path") {
			return
		}
		p.next()
	}
}

func (p *parser) keyword(allowed ...string) (string, Position, bool) {
	tok := p.tok
	if tok.kind != tokIdent {
		p.errorf(tok.pos, "expected one of %s, found %s", strings.Join(allowed, ", "), tok.describe())
		if tok.kind != tokEOF {
			p.next()
		}
		return "", tok.pos, false
	}
	for _, a := range allowed {
		if tok.text == a {
			p.next()
			return a, tok.pos, true
		}
	}
	p.errorf(tok.pos, "expected one of %s, found %s", strings.Join(allowed, ", "), tok.describe())
	p.next()
	return "", tok.pos, false
}

func (p *parser) str(what string) (string, Position, bool) {
	tok := p.tok
	if tok.kind != tokString {
		p.errorf(tok.pos, "expected %s string, found %s", what, tok.describe())
		return "", tok.pos, false
	}
	p.next()
	return tok.text, tok.pos, true
}

func (p *parser) record() (Record, bool) {
	rec := Record{Pos: p.tok.pos}

	kw, _, ok := p.keyword("type", "path")
	if !ok {
		return rec, false
	}
	val, _, ok := p.str(kw)
	if !ok {
		return rec, false
	}
	if kw == "type" {
		rec.Source = SourceSelector{Kind: SourceByType, Value: val}
	} else {
		rec.Source = SourceSelector{Kind: SourceByPath, Value: val}
	}

	kw, _, ok = p.keyword("re", "name")
	if !ok {
		return rec, false
	}
	val, pos, ok := p.str(kw)
	if !ok {
		return rec, false
	}
	if kw == "re" {
		re, err := regexp.Compile(val)
		if err != nil {
			p.errorf(pos, "invalid trend regex: %v", err)
			return rec, false
		}
		rec.Trend = TrendSelector{Pattern: re}
	} else {
		rec.Trend = TrendSelector{Name: val}
	}

	kw, _, ok = p.keyword("unit", "convert", "rename", "replace")
	if !ok {
		return rec, false
	}
	switch kw {
	case "unit":
		if _, _, ok := p.str("unit"); !ok {
			return rec, false
		}
	case "convert":
		from, _, ok := p.str("source unit")
		if !ok {
			return rec, false
		}
		to, _, ok := p.str("target unit")
		if !ok {
			return rec, false
		}
		rec.Transform = UnitConvert{From: from, To: to}
	case "rename":
		name, _, ok := p.str("new name")
		if !ok {
			return rec, false
		}
		rec.Transform = Rename{NewName: name}
	case "replace":
		find, pos, ok := p.str("find regex")
		if !ok {
			return rec, false
		}
		repl, _, ok := p.str("replacement")
		if !ok {
			return rec, false
		}
		re, err := regexp.Compile(find)
		if err != nil {
			p.errorf(pos, "invalid find regex: %v", err)
			return rec, false
		}
		rec.Transform = FindReplace{Find: re, Replace: repl}
	}
	return rec, true
}
