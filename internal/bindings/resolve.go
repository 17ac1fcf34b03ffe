package bindings

import (
	"sort"
)

// Constants are named values that %name references fall back to when no
// binding with that name exists.
type Constants map[string]Value

// DefaultConstants returns the logging level constants understood by binding
// files (`%DEBUG`, `%INFO`, ...), using the conventional numeric levels.
func DefaultConstants() Constants {
	return Constants{
		"DEBUG":    Constant("DEBUG", 10),
		"INFO":     Constant("INFO", 20),
		"WARNING":  Constant("WARNING", 30),
		"WARN":     Constant("WARN", 30),
		"ERROR":    Constant("ERROR", 40),
		"CRITICAL": Constant("CRITICAL", 50),
		"FATAL":    Constant("FATAL", 50),
	}
}

// Merge returns a copy of c with the entries of other added. Entries in other
// win on conflict.
func (c Constants) Merge(other Constants) Constants {
	out := make(Constants, len(c)+len(other))
	for name, v := range c {
		out[name] = v
	}
	for name, v := range other {
		out[name] = v
	}
	return out
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	resolved
)

type resolver struct {
	bindings  []Binding
	byKey     map[string]int
	constants Constants

	state []visitState
	memo  []Value
	stack []string
}

// Resolve checks the bindings for duplicate keys, substitutes every %macro
// reference and returns the resulting table. Bindings are expected in load
// order; the first occurrence of a duplicated key is reported as the original.
func Resolve(bindings []Binding, imports []Import, constants Constants) (*Table, error) {
	byKey := make(map[string]int, len(bindings))
	for i, b := range bindings {
		key := b.Key.String()
		if first, dup := byKey[key]; dup {
			return nil, &DuplicateBindingError{Key: key, First: bindings[first].Pos, Second: b.Pos}
		}
		byKey[key] = i
	}

	r := &resolver{
		bindings:  bindings,
		byKey:     byKey,
		constants: constants,
		state:     make([]visitState, len(bindings)),
		memo:      make([]Value, len(bindings)),
	}

	entries := make([]Entry, len(bindings))
	for i, b := range bindings {
		v, err := r.resolveBinding(i)
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{Key: b.Key, Value: v, Pos: b.Pos}
	}

	return newTable(entries, imports, nil), nil
}

func (r *resolver) resolveBinding(idx int) (Value, error) {
	b := r.bindings[idx]
	key := b.Key.String()

	switch r.state[idx] {
	case resolved:
		return r.memo[idx], nil
	case visiting:
		start := 0
		for i, name := range r.stack {
			if name == key {
				start = i
				break
			}
		}
		chain := append(append([]string{}, r.stack[start:]...), key)
		return Value{}, &CyclicMacroError{Chain: chain, Pos: b.Pos}
	}

	r.state[idx] = visiting
	r.stack = append(r.stack, key)
	v, err := r.resolveValue(b.Value, b)
	r.stack = r.stack[:len(r.stack)-1]
	if err != nil {
		return Value{}, err
	}
	r.state[idx] = resolved
	r.memo[idx] = v
	return v, nil
}

func (r *resolver) resolveValue(v Value, from Binding) (Value, error) {
	switch v.Kind {
	case KindMacro:
		if idx, ok := r.byKey[v.Str]; ok {
			return r.resolveBinding(idx)
		}
		if c, ok := r.constants[v.Str]; ok {
			return c, nil
		}
		return Value{}, &UnresolvedMacroError{Name: v.Str, Pos: from.Pos, Key: from.Key.String()}
	case KindList, KindTuple:
		if len(v.macroNames()) == 0 {
			return v, nil
		}
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			resolvedItem, err := r.resolveValue(item, from)
			if err != nil {
				return Value{}, err
			}
			items[i] = resolvedItem
		}
		return Value{Kind: v.Kind, Items: items}, nil
	case KindDict:
		if len(v.macroNames()) == 0 {
			return v, nil
		}
		entries := make([]DictEntry, len(v.Dict))
		for i, entry := range v.Dict {
			resolvedValue, err := r.resolveValue(entry.Value, from)
			if err != nil {
				return Value{}, err
			}
			entries[i] = DictEntry{Key: entry.Key, Value: resolvedValue}
		}
		return Dict(entries...), nil
	}
	return v, nil
}

// MacroReferences lists, for every binding that uses macros, the names it
// references. The result is keyed by canonical binding key.
func MacroReferences(bindings []Binding) map[string][]string {
	refs := make(map[string][]string)
	for _, b := range bindings {
		if names := b.Value.macroNames(); len(names) > 0 {
			refs[b.Key.String()] = names
		}
	}
	return refs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
