package bindings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies the type of a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindTuple
	KindDict
	KindMacro
	KindReference
	KindConstant
)

var kindNames = map[Kind]string{
	KindNone:      "none",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindList:      "list",
	KindTuple:     "tuple",
	KindDict:      "dict",
	KindMacro:     "macro",
	KindReference: "reference",
	KindConstant:  "constant",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// DictEntry is a single key/value pair of a dict value. Entries keep their
// source order.
type DictEntry struct {
	Key   string
	Value Value
}

// Value is a literal or symbolic right-hand side of a binding.
//
// Macro values only exist in parsed files; a resolved Table never contains
// them. Reference values (@name) stay symbolic because the configurable they
// point to lives in the host program.
type Value struct {
	Kind Kind

	Bool  bool
	Int   int64
	Float float64
	// Str holds string contents, or the name for macros, references and
	// constants.
	Str string
	// Call marks a reference written as @name().
	Call  bool
	Items []Value
	Dict  []DictEntry
}

// None returns the None value.
func None() Value { return Value{Kind: KindNone} }

// Bool returns a bool value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int returns an int value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// List returns a list value.
func List(items ...Value) Value { return Value{Kind: KindList, Items: items} }

// Tuple returns a tuple value.
func Tuple(items ...Value) Value { return Value{Kind: KindTuple, Items: items} }

// Dict returns a dict value with the given entries.
func Dict(entries ...DictEntry) Value { return Value{Kind: KindDict, Dict: entries} }

// Macro returns an unresolved %name reference.
func Macro(name string) Value { return Value{Kind: KindMacro, Str: name} }

// Reference returns an @name or @name() reference to a configurable.
func Reference(name string, call bool) Value {
	return Value{Kind: KindReference, Str: name, Call: call}
}

// Constant returns a named constant carrying a numeric value, such as a
// logging level.
func Constant(name string, n int64) Value {
	return Value{Kind: KindConstant, Str: name, Int: n}
}

// Equal reports whether two values are structurally identical.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNone:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString, KindMacro:
		return v.Str == o.Str
	case KindReference:
		return v.Str == o.Str && v.Call == o.Call
	case KindConstant:
		return v.Str == o.Str && v.Int == o.Int
	case KindList, KindTuple:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.Dict) != len(o.Dict) {
			return false
		}
		for i := range v.Dict {
			if v.Dict[i].Key != o.Dict[i].Key || !v.Dict[i].Value.Equal(o.Dict[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value in binding-file syntax. Parsing the output yields
// an equal value.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.Kind {
	case KindNone:
		sb.WriteString("None")
	case KindBool:
		if v.Bool {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		sb.WriteString(formatFloat(v.Float))
	case KindString:
		writeQuoted(sb, v.Str)
	case KindMacro, KindConstant:
		sb.WriteByte('%')
		sb.WriteString(v.Str)
	case KindReference:
		sb.WriteByte('@')
		sb.WriteString(v.Str)
		if v.Call {
			sb.WriteString("()")
		}
	case KindList:
		sb.WriteByte('[')
		writeItems(sb, v.Items)
		sb.WriteByte(']')
	case KindTuple:
		sb.WriteByte('(')
		writeItems(sb, v.Items)
		if len(v.Items) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case KindDict:
		sb.WriteByte('{')
		for i, entry := range v.Dict {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeQuoted(sb, entry.Key)
			sb.WriteString(": ")
			entry.Value.write(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString("<invalid>")
	}
}

func writeItems(sb *strings.Builder, items []Value) {
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		item.write(sb)
	}
}

// writeQuoted writes s as a double-quoted string literal using only the
// escapes the lexer reads back. Bytes that are not valid UTF-8 become \xHH.
func writeQuoted(sb *strings.Builder, s string) {
	const hex = "0123456789abcdef"
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			sb.WriteString(`\x`)
			sb.WriteByte(hex[s[i]>>4])
			sb.WriteByte(hex[s[i]&0xf])
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			sb.WriteString(`\x`)
			sb.WriteByte(hex[r>>4])
			sb.WriteByte(hex[r&0xf])
		case !unicode.IsPrint(r):
			if r > 0xffff {
				fmt.Fprintf(sb, `\U%08x`, r)
			} else {
				fmt.Fprintf(sb, `\u%04x`, r)
			}
		default:
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	sb.WriteByte('"')
}

// formatFloat keeps a decimal point or exponent so the text re-parses as a
// float rather than an int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

// Native converts the value to plain Go data: nil, bool, int64, float64,
// string, []any or map[string]any. Constants become their name, references
// become "@name".
func (v Value) Native() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindConstant:
		return v.Str
	case KindReference, KindMacro:
		return v.String()
	case KindList, KindTuple:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Native()
		}
		return out
	case KindDict:
		out := make(map[string]any, len(v.Dict))
		for _, entry := range v.Dict {
			out[entry.Key] = entry.Value.Native()
		}
		return out
	}
	return nil
}

// macroNames returns the names of every macro referenced by the value,
// including nested ones, sorted and de-duplicated.
func (v Value) macroNames() []string {
	seen := make(map[string]struct{})
	var walk func(Value)
	walk = func(val Value) {
		switch val.Kind {
		case KindMacro:
			seen[val.Str] = struct{}{}
		case KindList, KindTuple:
			for _, item := range val.Items {
				walk(item)
			}
		case KindDict:
			for _, entry := range val.Dict {
				walk(entry.Value)
			}
		}
	}
	walk(v)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GoString makes %#v output readable in test failures.
func (v Value) GoString() string {
	return fmt.Sprintf("bindings.Value(%s %s)", v.Kind, v.String())
}
