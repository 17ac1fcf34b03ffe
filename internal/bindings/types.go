package bindings

import (
	"fmt"
	"regexp"
	"strings"
)

// identRegex matches a dotted identifier such as `GrowingNode` or
// `experiments.graph.GrowingGraph`.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Key names what a binding assigns to: either a parameter of a configurable
// (`[scope/]Target.param`) or a macro (`name`, empty Target).
type Key struct {
	Scope  string
	Target string
	Param  string
}

// IsMacro reports whether the key defines a macro rather than a parameter.
func (k Key) IsMacro() bool {
	return k.Target == ""
}

// String returns the canonical text of the key.
func (k Key) String() string {
	var sb strings.Builder
	if k.Scope != "" {
		sb.WriteString(k.Scope)
		sb.WriteByte('/')
	}
	if k.Target != "" {
		sb.WriteString(k.Target)
		sb.WriteByte('.')
	}
	sb.WriteString(k.Param)
	return sb.String()
}

// ParseKey parses the canonical text of a key.
func ParseKey(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Key{}, fmt.Errorf("key cannot be empty")
	}

	var key Key
	selector := raw
	if idx := strings.LastIndexByte(raw, '/'); idx >= 0 {
		key.Scope = raw[:idx]
		selector = raw[idx+1:]
		for _, part := range strings.Split(key.Scope, "/") {
			if !identRegex.MatchString(part) {
				return Key{}, fmt.Errorf("invalid scope segment %q in %q", part, raw)
			}
		}
	}
	if !identRegex.MatchString(selector) {
		return Key{}, fmt.Errorf("invalid identifier %q", selector)
	}

	if idx := strings.LastIndexByte(selector, '.'); idx >= 0 {
		key.Target = selector[:idx]
		key.Param = selector[idx+1:]
	} else {
		if key.Scope != "" {
			return Key{}, fmt.Errorf("macro %q cannot be scoped", selector)
		}
		key.Param = selector
	}
	return key, nil
}

// Binding assigns a value to a key. Pos is where the key appears.
type Binding struct {
	Key   Key
	Value Value
	Pos   Position
}

func (b Binding) String() string {
	return b.Key.String() + " = " + b.Value.String()
}

// Include is an `include "path"` directive.
type Include struct {
	Path string
	Pos  Position
}

// Import is an `import a.b.c [as x]` or `from a.b import c [as x]`
// directive. Imports are recorded, never resolved.
type Import struct {
	Module string
	Name   string
	Alias  string
	Pos    Position
}

func (i Import) String() string {
	var sb strings.Builder
	if i.Name != "" {
		sb.WriteString("from ")
		sb.WriteString(i.Module)
		sb.WriteString(" import ")
		sb.WriteString(i.Name)
	} else {
		sb.WriteString("import ")
		sb.WriteString(i.Module)
	}
	if i.Alias != "" {
		sb.WriteString(" as ")
		sb.WriteString(i.Alias)
	}
	return sb.String()
}

// File is the parsed, unresolved content of one binding file.
type File struct {
	Name     string
	Includes []Include
	Imports  []Import
	Bindings []Binding
	// Order interleaves includes and bindings as they appear so the loader
	// can expand includes in place.
	Order []Statement
}

// Statement points at an entry of File.Includes (IsInclude) or File.Bindings.
type Statement struct {
	IsInclude bool
	Index     int
}
