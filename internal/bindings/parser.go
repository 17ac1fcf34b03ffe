package bindings

import (
	"strconv"
	"strings"
)

// Parse reads one binding file. Includes are recorded but not followed; use a
// Loader to expand them and resolve macros.
func Parse(name string, src []byte) (*File, error) {
	p := &parser{lex: newLexer(name, src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	file := &File{Name: name}
	if err := p.parseFile(file); err != nil {
		return nil, err
	}
	return file, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return p.lex.errorf(p.tok.pos, format, args...)
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return p.errorf("expected %q, found %s", s, p.tok.describe())
	}
	return p.advance()
}

func (p *parser) expectName() (token, error) {
	if p.tok.kind != tokName {
		return token{}, p.errorf("expected identifier, found %s", p.tok.describe())
	}
	tok := p.tok
	return tok, p.advance()
}

func (p *parser) parseFile(file *File) error {
	for {
		switch p.tok.kind {
		case tokEOF:
			return nil
		case tokNewline:
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}

		if err := p.parseStatement(file); err != nil {
			return err
		}

		switch p.tok.kind {
		case tokNewline, tokEOF:
		default:
			return p.errorf("expected end of line, found %s", p.tok.describe())
		}
	}
}

func (p *parser) parseStatement(file *File) error {
	if p.tok.kind != tokName {
		return p.errorf("expected binding, include or import, found %s", p.tok.describe())
	}

	switch p.tok.text {
	case "include":
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return err
		}
		if p.tok.kind != tokString {
			return p.errorf("include expects a quoted path, found %s", p.tok.describe())
		}
		if p.tok.text == "" {
			return p.errorf("include path cannot be empty")
		}
		file.Order = append(file.Order, Statement{IsInclude: true, Index: len(file.Includes)})
		file.Includes = append(file.Includes, Include{Path: p.tok.text, Pos: pos})
		return p.advance()
	case "import", "from":
		imp, err := p.parseImport()
		if err != nil {
			return err
		}
		file.Imports = append(file.Imports, imp)
		return nil
	}

	binding, err := p.parseBinding()
	if err != nil {
		return err
	}
	file.Order = append(file.Order, Statement{Index: len(file.Bindings)})
	file.Bindings = append(file.Bindings, binding)
	return nil
}

func (p *parser) parseImport() (Import, error) {
	imp := Import{Pos: p.tok.pos}
	isFrom := p.tok.text == "from"
	if err := p.advance(); err != nil {
		return Import{}, err
	}

	module, err := p.expectName()
	if err != nil {
		return Import{}, err
	}
	imp.Module = module.text

	if isFrom {
		if p.tok.kind != tokName || p.tok.text != "import" {
			return Import{}, p.errorf("expected import, found %s", p.tok.describe())
		}
		if err := p.advance(); err != nil {
			return Import{}, err
		}
		name, err := p.expectName()
		if err != nil {
			return Import{}, err
		}
		if strings.Contains(name.text, ".") {
			return Import{}, p.lex.errorf(name.pos, "from-import name %q cannot be dotted", name.text)
		}
		imp.Name = name.text
	}

	if p.tok.kind == tokName && p.tok.text == "as" {
		if err := p.advance(); err != nil {
			return Import{}, err
		}
		alias, err := p.expectName()
		if err != nil {
			return Import{}, err
		}
		if strings.Contains(alias.text, ".") {
			return Import{}, p.lex.errorf(alias.pos, "import alias %q cannot be dotted", alias.text)
		}
		imp.Alias = alias.text
	}
	return imp, nil
}

// parseSelector reads `name {/ name}` as used by keys, macros and references.
func (p *parser) parseSelector() (string, Position, error) {
	first, err := p.expectName()
	if err != nil {
		return "", Position{}, err
	}
	parts := []string{first.text}
	for p.isPunct("/") {
		if err := p.advance(); err != nil {
			return "", Position{}, err
		}
		next, err := p.expectName()
		if err != nil {
			return "", Position{}, err
		}
		parts = append(parts, next.text)
	}
	return strings.Join(parts, "/"), first.pos, nil
}

func (p *parser) parseBinding() (Binding, error) {
	raw, pos, err := p.parseSelector()
	if err != nil {
		return Binding{}, err
	}
	key, err := ParseKey(raw)
	if err != nil {
		return Binding{}, p.lex.errorf(pos, "%s", err)
	}
	if err := p.expectPunct("="); err != nil {
		return Binding{}, err
	}
	if p.tok.kind == tokNewline || p.tok.kind == tokEOF {
		return Binding{}, p.errorf("missing value for %s", key)
	}
	value, err := p.parseValue()
	if err != nil {
		return Binding{}, err
	}
	return Binding{Key: key, Value: value, Pos: pos}, nil
}

func (p *parser) parseValue() (Value, error) {
	tok := p.tok
	switch tok.kind {
	case tokString:
		return String(tok.text), p.advance()
	case tokInt, tokFloat:
		return p.parseNumber(false)
	case tokName:
		var v Value
		switch tok.text {
		case "True":
			v = Bool(true)
		case "False":
			v = Bool(false)
		case "None":
			v = None()
		default:
			return Value{}, p.errorf("unexpected identifier %q (string values must be quoted)", tok.text)
		}
		return v, p.advance()
	case tokPunct:
		switch tok.text {
		case "-", "+":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			if p.tok.kind != tokInt && p.tok.kind != tokFloat {
				return Value{}, p.errorf("expected number after %q, found %s", tok.text, p.tok.describe())
			}
			return p.parseNumber(tok.text == "-")
		case "%":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			name, _, err := p.parseSelector()
			if err != nil {
				return Value{}, err
			}
			return Macro(name), nil
		case "@":
			return p.parseReference()
		case "[":
			items, err := p.parseItems("]")
			if err != nil {
				return Value{}, err
			}
			return List(items...), nil
		case "(":
			return p.parseTuple()
		case "{":
			return p.parseDict()
		}
	}
	return Value{}, p.errorf("expected value, found %s", tok.describe())
}

func (p *parser) parseNumber(negate bool) (Value, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	if tok.kind == tokFloat {
		f, err := strconv.ParseFloat(strings.ReplaceAll(tok.text, "_", ""), 64)
		if err != nil {
			return Value{}, p.lex.errorf(tok.pos, "invalid float literal %q", tok.text)
		}
		if negate {
			f = -f
		}
		return Float(f), nil
	}
	text := tok.text
	if negate {
		text = "-" + text
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return Value{}, p.lex.errorf(tok.pos, "integer literal %q out of range", text)
	}
	return Int(i), nil
}

func (p *parser) parseReference() (Value, error) {
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	name, _, err := p.parseSelector()
	if err != nil {
		return Value{}, err
	}
	if !p.isPunct("(") {
		return Reference(name, false), nil
	}
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	if err := p.expectPunct(")"); err != nil {
		return Value{}, err
	}
	return Reference(name, true), nil
}

// parseItems reads comma separated values up to and including the closing
// bracket. A trailing comma is allowed.
func (p *parser) parseItems(closing string) ([]Value, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	items := []Value{}
	for !p.isPunct(closing) {
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !p.isPunct(closing) {
			return nil, p.errorf("expected \",\" or %q, found %s", closing, p.tok.describe())
		}
	}
	return items, p.advance()
}

func (p *parser) parseTuple() (Value, error) {
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	items := []Value{}
	sawComma := false
	for !p.isPunct(")") {
		item, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			sawComma = true
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			continue
		}
		if !p.isPunct(")") {
			return Value{}, p.errorf("expected \",\" or \")\", found %s", p.tok.describe())
		}
	}
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	// (x) is a parenthesised value, (x,) a one-element tuple.
	if len(items) == 1 && !sawComma {
		return items[0], nil
	}
	return Tuple(items...), nil
}

func (p *parser) parseDict() (Value, error) {
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	entries := []DictEntry{}
	seen := make(map[string]struct{})
	for !p.isPunct("}") {
		keyTok := p.tok
		var key string
		switch keyTok.kind {
		case tokString, tokInt:
			key = keyTok.text
		default:
			return Value{}, p.errorf("dict keys must be strings or integers, found %s", keyTok.describe())
		}
		if _, dup := seen[key]; dup {
			return Value{}, p.errorf("duplicate dict key %q", key)
		}
		seen[key] = struct{}{}
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		if err := p.expectPunct(":"); err != nil {
			return Value{}, err
		}
		value, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, DictEntry{Key: key, Value: value})
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			continue
		}
		if !p.isPunct("}") {
			return Value{}, p.errorf("expected \",\" or \"}\", found %s", p.tok.describe())
		}
	}
	return Dict(entries...), p.advance()
}
