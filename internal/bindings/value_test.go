package bindings

import "testing"

func TestValueStringReparses(t *testing.T) {
	t.Parallel()

	values := []Value{
		None(),
		Bool(true),
		Int(-42),
		Float(3),
		Float(0.0001),
		Float(1e21),
		String("quote \" and \\ and\nnewline"),
		String("x\x07y"),
		String("bad\xff bytes \xc3"),
		String("bell\a back\b form\f vt\v del\x7f"),
		String("wide \U0001F600 sep \u2028 accent é"),
		Dict(DictEntry{Key: "tab\tkey\x00", Value: String("\x80")}),
		List(Int(1), String("a")),
		Tuple(Float(0.5)),
		Tuple(),
		Dict(DictEntry{Key: "k", Value: List()}),
		Reference("scope/create_receptor", true),
		Reference("GrowingNode", false),
	}

	for _, v := range values {
		text := v.String()
		file, err := Parse("value.gin", []byte("T.p = "+text+"\n"))
		if err != nil {
			t.Fatalf("%s does not parse: %v", text, err)
		}
		if got := file.Bindings[0].Value; !got.Equal(v) {
			t.Fatalf("round trip of %s produced %#v", text, got)
		}
	}
}

func TestValueEqualDistinguishesKinds(t *testing.T) {
	t.Parallel()

	if Int(1).Equal(Float(1)) {
		t.Fatalf("int and float must not be equal")
	}
	if List(Int(1)).Equal(Tuple(Int(1))) {
		t.Fatalf("list and tuple must not be equal")
	}
	if Reference("a", true).Equal(Reference("a", false)) {
		t.Fatalf("call and plain references must not be equal")
	}
	if !Constant("DEBUG", 10).Equal(Constant("DEBUG", 10)) {
		t.Fatalf("identical constants must be equal")
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	if KindFloat.String() != "float" || KindConstant.String() != "constant" {
		t.Fatalf("unexpected kind names %s %s", KindFloat, KindConstant)
	}
	if got := Kind(99).String(); got != "kind(99)" {
		t.Fatalf("unexpected name for unknown kind: %s", got)
	}
}

func TestStringEscapesDecode(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`'\a\b\f\v'`:         "\a\b\f\v",
		`'\U0001F600'`:       "\U0001F600",
		`'\u00ff'`:           "\u00ff",
		`'\xff'`:             "\xff",
		`"x\x07y"`:           "x\x07y",
		`'it\'s \"quoted\"'`: "it's \"quoted\"",
	}
	for literal, want := range tests {
		file, err := Parse("escape.gin", []byte("T.p = "+literal+"\n"))
		if err != nil {
			t.Fatalf("%s does not parse: %v", literal, err)
		}
		if got := file.Bindings[0].Value.Str; got != want {
			t.Fatalf("%s: expected %q, got %q", literal, want, got)
		}
	}

	for _, bad := range []string{`'\q'`, `'\U00110000'`, `'\ud800'`, `'\x4'`} {
		if _, err := Parse("escape.gin", []byte("T.p = "+bad+"\n")); err == nil {
			t.Fatalf("expected %s to be rejected", bad)
		}
	}
}
