package bindings

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDirectivesAndBindings(t *testing.T) {
	t.Parallel()

	src := `
include "base.gin"
import experiments.connecting_activated_nodes.GrowingNode
from model_classes import BaseFlow as Flow

activation_limit = 0.5   # shared threshold
GrowingNode.activation_limit = %activation_limit
`
	file, err := Parse("experiment.gin", []byte(src))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(file.Includes) != 1 || file.Includes[0].Path != "base.gin" {
		t.Fatalf("unexpected includes: %+v", file.Includes)
	}
	if file.Includes[0].Pos.Line != 2 {
		t.Fatalf("expected include on line 2, got %d", file.Includes[0].Pos.Line)
	}

	wantImports := []string{
		"import experiments.connecting_activated_nodes.GrowingNode",
		"from model_classes import BaseFlow as Flow",
	}
	if len(file.Imports) != len(wantImports) {
		t.Fatalf("expected %d imports, got %d", len(wantImports), len(file.Imports))
	}
	for i, want := range wantImports {
		if got := file.Imports[i].String(); got != want {
			t.Fatalf("import %d: expected %q, got %q", i, want, got)
		}
	}

	if len(file.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(file.Bindings))
	}
	macro := file.Bindings[0]
	if !macro.Key.IsMacro() || macro.Key.Param != "activation_limit" {
		t.Fatalf("expected macro definition, got %+v", macro.Key)
	}
	if !macro.Value.Equal(Float(0.5)) {
		t.Fatalf("expected 0.5, got %s", macro.Value)
	}
	ref := file.Bindings[1]
	if ref.Key.Target != "GrowingNode" || ref.Key.Param != "activation_limit" {
		t.Fatalf("unexpected key %+v", ref.Key)
	}
	if !ref.Value.Equal(Macro("activation_limit")) {
		t.Fatalf("expected macro reference, got %s", ref.Value)
	}

	wantOrder := []Statement{{IsInclude: true, Index: 0}, {Index: 0}, {Index: 1}}
	if diff := cmp.Diff(wantOrder, file.Order); diff != "" {
		t.Fatalf("statement order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want Value
	}{
		{name: "Int", src: "50", want: Int(50)},
		{name: "NegativeInt", src: "-3", want: Int(-3)},
		{name: "HexInt", src: "0x1F", want: Int(31)},
		{name: "Underscores", src: "500_000", want: Int(500000)},
		{name: "SmallFloat", src: "0.0001", want: Float(0.0001)},
		{name: "Exponent", src: "1e-4", want: Float(0.0001)},
		{name: "LeadingDot", src: ".5", want: Float(0.5)},
		{name: "NegativeFloat", src: "-2.5", want: Float(-2.5)},
		{name: "True", src: "True", want: Bool(true)},
		{name: "False", src: "False", want: Bool(false)},
		{name: "None", src: "None", want: None()},
		{name: "DoubleQuoted", src: `"localhost"`, want: String("localhost")},
		{name: "SingleQuoted", src: `'it\'s'`, want: String("it's")},
		{name: "Escapes", src: `"a\tb\né"`, want: String("a\tb\né")},
		{name: "Macro", src: "%DEBUG", want: Macro("DEBUG")},
		{name: "MacroToBinding", src: "%GrowingNode.activation_limit", want: Macro("GrowingNode.activation_limit")},
		{name: "Reference", src: "@GrowingNode", want: Reference("GrowingNode", false)},
		{name: "ReferenceCall", src: "@scope/create_receptor()", want: Reference("scope/create_receptor", true)},
		{name: "EmptyList", src: "[]", want: List()},
		{name: "List", src: "[1, 2.5, 'x',]", want: List(Int(1), Float(2.5), String("x"))},
		{name: "Parenthesised", src: "(7)", want: Int(7)},
		{name: "SingleTuple", src: "(7,)", want: Tuple(Int(7))},
		{name: "Tuple", src: "(1, %m)", want: Tuple(Int(1), Macro("m"))},
		{name: "Dict", src: `{"a": 1, 2: [True]}`, want: Dict(
			DictEntry{Key: "a", Value: Int(1)},
			DictEntry{Key: "2", Value: List(Bool(true))},
		)},
		{name: "MultiLineList", src: "[\n  1,\n  2,  # two\n]", want: List(Int(1), Int(2))},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			file, err := Parse("values.gin", []byte("T.p = "+tc.src+"\n"))
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if len(file.Bindings) != 1 {
				t.Fatalf("expected one binding, got %d", len(file.Bindings))
			}
			if got := file.Bindings[0].Value; !got.Equal(tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestParseScopedKey(t *testing.T) {
	t.Parallel()

	file, err := Parse("scoped.gin", []byte("train/eval/GrowingGraph.draw_graph = False\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := Key{Scope: "train/eval", Target: "GrowingGraph", Param: "draw_graph"}
	if got := file.Bindings[0].Key; got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got := want.String(); got != "train/eval/GrowingGraph.draw_graph" {
		t.Fatalf("unexpected canonical key %q", got)
	}
}

func TestParseLineContinuation(t *testing.T) {
	t.Parallel()

	file, err := Parse("cont.gin", []byte("GrowingNode.active_count = \\\n    10\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !file.Bindings[0].Value.Equal(Int(10)) {
		t.Fatalf("expected 10, got %s", file.Bindings[0].Value)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{name: "MissingValue", src: "A.b =\n", wantLine: 1},
		{name: "MissingEquals", src: "\nA.b 5\n", wantLine: 2},
		{name: "BareWord", src: "A.b = localhost\n", wantLine: 1},
		{name: "UnterminatedString", src: "A.b = \"abc\n", wantLine: 1},
		{name: "UnclosedList", src: "A.b = [1, 2\n", wantLine: 2},
		{name: "TrailingGarbage", src: "A.b = 1 2\n", wantLine: 1},
		{name: "IncludeWithoutString", src: "include base.gin\n", wantLine: 1},
		{name: "ScopedMacro", src: "scope/name = 1\n", wantLine: 1},
		{name: "BadCharacter", src: "A.b = 1 ;\n", wantLine: 1},
		{name: "DuplicateDictKey", src: "A.b = {'x': 1, 'x': 2}\n", wantLine: 1},
		{name: "BadNumber", src: "A.b = 12abc\n", wantLine: 1},
		{name: "TrailingDot", src: "A. = 1\n", wantLine: 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse("broken.gin", []byte(tc.src))
			if !errors.Is(err, ErrSyntax) {
				t.Fatalf("expected ErrSyntax, got %v", err)
			}
			pos, ok := Location(err)
			if !ok {
				t.Fatalf("expected position in error %v", err)
			}
			if pos.File != "broken.gin" || pos.Line != tc.wantLine {
				t.Fatalf("expected broken.gin:%d, got %s", tc.wantLine, pos)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	valid := map[string]Key{
		"name":                       {Param: "name"},
		"GrowingNode.active_count":   {Target: "GrowingNode", Param: "active_count"},
		"a.b.Target.param":           {Target: "a.b.Target", Param: "param"},
		"scope/Target.param":         {Scope: "scope", Target: "Target", Param: "param"},
		" outer/inner/Target.param ": {Scope: "outer/inner", Target: "Target", Param: "param"},
	}
	for raw, want := range valid {
		got, err := ParseKey(raw)
		if err != nil {
			t.Fatalf("ParseKey(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseKey(%q): expected %+v, got %+v", raw, want, got)
		}
	}

	for _, raw := range []string{"", "1abc", "a..b", "scope/", "/Target.param", "scope/macro"} {
		if _, err := ParseKey(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
