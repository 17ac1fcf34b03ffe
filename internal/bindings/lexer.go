package bindings

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokName
	tokInt
	tokFloat
	tokString
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "end of line"
	case tokName:
		return "name"
	case tokInt:
		return "integer"
	case tokFloat:
		return "float"
	case tokString:
		return "string"
	case tokPunct:
		return "punctuation"
	}
	return "token"
}

type token struct {
	kind tokenKind
	// text is the raw source for names, numbers and punctuation, and the
	// unquoted contents for strings.
	text string
	pos  Position
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF, tokNewline:
		return t.kind.String()
	case tokString:
		return strconv.Quote(t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// lexer splits binding-file source into tokens. Newlines are only reported
// outside of brackets, so bracketed values may span several lines.
type lexer struct {
	file  string
	src   string
	off   int
	line  int
	col   int
	depth int
}

func newLexer(file string, src []byte) *lexer {
	return &lexer{file: file, src: string(src), line: 1, col: 1}
}

func (l *lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *lexer) errorf(pos Position, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekByte(ahead int) byte {
	if l.off+ahead >= len(l.src) {
		return 0
	}
	return l.src[l.off+ahead]
}

func (l *lexer) advance() {
	if l.off >= len(l.src) {
		return
	}
	if l.src[l.off] == '\n' {
		l.line++
		l.col = 1
		l.off++
		return
	}
	_, size := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += size
	l.col++
}

func (l *lexer) next() (token, error) {
	for {
		c := l.peekByte(0)
		switch {
		case l.off >= len(l.src):
			return token{kind: tokEOF, pos: l.position()}, nil
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.advance()
		case c == '#':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance()
			}
		case c == '\\' && (l.peekByte(1) == '\n' || (l.peekByte(1) == '\r' && l.peekByte(2) == '\n')):
			// explicit line continuation
			l.advance()
			for l.peekByte(0) != '\n' {
				l.advance()
			}
			l.advance()
		case c == '\n':
			pos := l.position()
			l.advance()
			if l.depth == 0 {
				return token{kind: tokNewline, pos: pos}, nil
			}
		default:
			return l.scanToken()
		}
	}
}

func (l *lexer) scanToken() (token, error) {
	pos := l.position()
	c := l.peekByte(0)

	switch {
	case isNameStart(c):
		start := l.off
		for isNameChar(l.peekByte(0)) {
			l.advance()
		}
		name := l.src[start:l.off]
		if strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
			return token{}, l.errorf(pos, "malformed dotted name %q", name)
		}
		return token{kind: tokName, text: name, pos: pos}, nil
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		return l.scanNumber(pos)
	case c == '"' || c == '\'':
		return l.scanString(pos, c)
	}

	switch c {
	case '[', '(', '{':
		l.depth++
	case ']', ')', '}':
		if l.depth > 0 {
			l.depth--
		}
	case '=', ',', ':', '%', '@', '/', '-', '+':
	default:
		r, _ := utf8.DecodeRuneInString(l.src[l.off:])
		return token{}, l.errorf(pos, "unexpected character %q", r)
	}
	l.advance()
	return token{kind: tokPunct, text: string(c), pos: pos}, nil
}

func (l *lexer) scanNumber(pos Position) (token, error) {
	start := l.off
	hex := l.peekByte(0) == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X')
	for {
		c := l.peekByte(0)
		if !hex && (c == 'e' || c == 'E') {
			l.advance()
			if s := l.peekByte(0); s == '+' || s == '-' {
				l.advance()
			}
			continue
		}
		if isDigit(c) || c == '.' || c == '_' || isLetter(c) {
			l.advance()
			continue
		}
		break
	}

	text := l.src[start:l.off]
	if !hex && strings.ContainsAny(text, ".eE") {
		if _, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64); err != nil {
			return token{}, l.errorf(pos, "invalid float literal %q", text)
		}
		return token{kind: tokFloat, text: text, pos: pos}, nil
	}
	if _, err := strconv.ParseUint(text, 0, 64); err != nil {
		return token{}, l.errorf(pos, "invalid integer literal %q", text)
	}
	return token{kind: tokInt, text: text, pos: pos}, nil
}

func (l *lexer) scanString(pos Position, quote byte) (token, error) {
	l.advance()
	var sb strings.Builder
	for {
		if l.off >= len(l.src) || l.peekByte(0) == '\n' {
			return token{}, l.errorf(pos, "unterminated string")
		}
		c := l.peekByte(0)
		if c == quote {
			l.advance()
			return token{kind: tokString, text: sb.String(), pos: pos}, nil
		}
		if c != '\\' {
			_, size := utf8.DecodeRuneInString(l.src[l.off:])
			sb.WriteString(l.src[l.off : l.off+size])
			l.advance()
			continue
		}

		escPos := l.position()
		l.advance()
		e := l.peekByte(0)
		switch e {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case 'x', 'u', 'U':
			width := 2
			switch e {
			case 'u':
				width = 4
			case 'U':
				width = 8
			}
			if l.off+1+width > len(l.src) {
				return token{}, l.errorf(escPos, "truncated \\%c escape", e)
			}
			digits := l.src[l.off+1 : l.off+1+width]
			n, err := strconv.ParseUint(digits, 16, 32)
			if err != nil {
				return token{}, l.errorf(escPos, "invalid \\%c escape %q", e, digits)
			}
			// \xHH is a raw byte so strings holding invalid UTF-8 survive a
			// round trip through Value.String.
			if e == 'x' {
				sb.WriteByte(byte(n))
			} else {
				if n > utf8.MaxRune || (n >= 0xD800 && n <= 0xDFFF) {
					return token{}, l.errorf(escPos, "invalid \\%c escape %q", e, digits)
				}
				sb.WriteRune(rune(n))
			}
			for i := 0; i < width; i++ {
				l.advance()
			}
		default:
			return token{}, l.errorf(escPos, "unknown escape sequence \\%c", e)
		}
		l.advance()
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(c byte) bool {
	return isLetter(c) || c == '_'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c) || c == '.'
}
