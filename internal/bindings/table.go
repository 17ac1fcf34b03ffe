package bindings

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one resolved binding of a Table.
type Entry struct {
	Key   Key
	Value Value
	Pos   Position
}

// Table is an immutable, fully resolved set of bindings. It never contains
// macro values and is safe for concurrent use.
type Table struct {
	entries []Entry
	index   map[string]int
	imports []Import
	files   []string
}

func newTable(entries []Entry, imports []Import, files []string) *Table {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key.String() < sorted[j].Key.String()
	})

	index := make(map[string]int, len(sorted))
	for i, e := range sorted {
		index[e.Key.String()] = i
	}

	var uniqueImports []Import
	seen := make(map[string]struct{}, len(imports))
	for _, imp := range imports {
		if _, dup := seen[imp.String()]; dup {
			continue
		}
		seen[imp.String()] = struct{}{}
		uniqueImports = append(uniqueImports, imp)
	}

	return &Table{
		entries: sorted,
		index:   index,
		imports: uniqueImports,
		files:   append([]string(nil), files...),
	}
}

func (t *Table) withFiles(files []string) *Table {
	t.files = append([]string(nil), files...)
	return t
}

// Len returns the number of bindings, macros included.
func (t *Table) Len() int {
	return len(t.entries)
}

// Keys returns every bound key in canonical form, sorted.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.Key.String()
	}
	return keys
}

// Entries returns a copy of all entries sorted by key.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Get returns the value bound to key.
func (t *Table) Get(key string) (Value, bool) {
	e, ok := t.entry(key)
	return e.Value, ok
}

// Position returns where key was bound.
func (t *Table) Position(key string) (Position, bool) {
	e, ok := t.entry(key)
	return e.Pos, ok
}

func (t *Table) entry(key string) (Entry, bool) {
	idx, ok := t.index[strings.TrimSpace(key)]
	if !ok {
		return Entry{}, false
	}
	return t.entries[idx], true
}

// Lookup is Get with an ErrNotFound error for missing keys.
func (t *Table) Lookup(key string) (Value, error) {
	v, ok := t.Get(key)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Int returns an int (or constant) binding.
func (t *Table) Int(key string) (int64, error) {
	v, err := t.Lookup(key)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case KindInt, KindConstant:
		return v.Int, nil
	}
	return 0, mismatch(key, v, "int")
}

// Float returns a float binding; ints are widened.
func (t *Table) Float(key string) (float64, error) {
	v, err := t.Lookup(key)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case KindFloat:
		return v.Float, nil
	case KindInt:
		return float64(v.Int), nil
	}
	return 0, mismatch(key, v, "float")
}

// Bool returns a bool binding.
func (t *Table) Bool(key string) (bool, error) {
	v, err := t.Lookup(key)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, mismatch(key, v, "bool")
	}
	return v.Bool, nil
}

// Text returns a string binding.
func (t *Table) Text(key string) (string, error) {
	v, err := t.Lookup(key)
	if err != nil {
		return "", err
	}
	if v.Kind != KindString {
		return "", mismatch(key, v, "string")
	}
	return v.Str, nil
}

func mismatch(key string, v Value, want string) error {
	return fmt.Errorf("%w: %s is %s, not %s", ErrTypeMismatch, key, v.Kind, want)
}

// Macros returns the macro definitions, sorted by name.
func (t *Table) Macros() []Entry {
	var out []Entry
	for _, e := range t.entries {
		if e.Key.IsMacro() {
			out = append(out, e)
		}
	}
	return out
}

// Targets returns the configurables that have at least one binding, without
// scopes, sorted.
func (t *Table) Targets() []string {
	seen := make(map[string]struct{})
	for _, e := range t.entries {
		if !e.Key.IsMacro() {
			seen[e.Key.Target] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Params returns the parameters bound for target as seen from scope.
// Unscoped bindings apply first, then bindings of each enclosing scope from
// outermost to innermost, so `a/b/T.x` overrides `a/T.x` overrides `T.x`.
func (t *Table) Params(scope, target string) map[string]Value {
	entries := t.paramEntries(scope, target)
	out := make(map[string]Value, len(entries))
	for name, e := range entries {
		out[name] = e.Value
	}
	return out
}

func (t *Table) paramEntries(scope, target string) map[string]Entry {
	scopes := []string{""}
	if scope != "" {
		parts := strings.Split(scope, "/")
		for i := range parts {
			scopes = append(scopes, strings.Join(parts[:i+1], "/"))
		}
	}

	out := make(map[string]Entry)
	for _, s := range scopes {
		for _, e := range t.entries {
			if e.Key.Target == target && e.Key.Scope == s {
				out[e.Key.Param] = e
			}
		}
	}
	return out
}

// Imports returns the import directives in load order, without duplicates.
func (t *Table) Imports() []Import {
	return append([]Import(nil), t.imports...)
}

// Files returns the binding files the table was loaded from, in load order.
func (t *Table) Files() []string {
	return append([]string(nil), t.files...)
}

// WriteConfig writes the table as a binding file: imports, then macros, then the
// parameters of each configurable. The output is deterministic and loads back
// into an equal table.
func (t *Table) WriteConfig(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, imp := range t.imports {
		fmt.Fprintln(bw, imp.String())
	}
	if len(t.imports) > 0 {
		fmt.Fprintln(bw)
	}

	rule := "# " + strings.Repeat("=", 78)
	if macros := t.Macros(); len(macros) > 0 {
		fmt.Fprintln(bw, "# Macros:")
		fmt.Fprintln(bw, rule)
		for _, e := range macros {
			fmt.Fprintf(bw, "%s = %s\n", e.Key, e.Value)
		}
		fmt.Fprintln(bw)
	}

	groups := make(map[string][]Entry)
	for _, e := range t.entries {
		if e.Key.IsMacro() {
			continue
		}
		group := e.Key.Target
		if e.Key.Scope != "" {
			group = e.Key.Scope + "/" + e.Key.Target
		}
		groups[group] = append(groups[group], e)
	}
	names := sortedKeys(groups)
	for i, name := range names {
		fmt.Fprintf(bw, "# Parameters for %s:\n", name)
		fmt.Fprintln(bw, rule)
		for _, e := range groups[name] {
			fmt.Fprintf(bw, "%s = %s\n", e.Key, e.Value)
		}
		if i < len(names)-1 {
			fmt.Fprintln(bw)
		}
	}

	return bw.Flush()
}

// ToMap converts the table to plain Go data:
//
//	macros:   {name: value}
//	bindings: {"[scope/]Target": {param: value}}
//	imports:  ["import a.b", ...]
func (t *Table) ToMap() map[string]any {
	macros := make(map[string]any)
	targets := make(map[string]any)
	for _, e := range t.entries {
		if e.Key.IsMacro() {
			macros[e.Key.Param] = e.Value.Native()
			continue
		}
		group := e.Key.Target
		if e.Key.Scope != "" {
			group = e.Key.Scope + "/" + e.Key.Target
		}
		params, ok := targets[group].(map[string]any)
		if !ok {
			params = make(map[string]any)
			targets[group] = params
		}
		params[e.Key.Param] = e.Value.Native()
	}

	imports := make([]any, len(t.imports))
	for i, imp := range t.imports {
		imports[i] = imp.String()
	}

	return map[string]any{
		"macros":   macros,
		"bindings": targets,
		"imports":  imports,
	}
}

// WriteYAML writes ToMap as a YAML document.
func (t *Table) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t.ToMap()); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return enc.Close()
}

// MarshalJSON encodes ToMap.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToMap())
}
