package bindings

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
	"unicode"
)

var (
	valueType    = reflect.TypeOf(Value{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// Bind copies the parameters bound for target (as seen from scope) into the
// struct pointed to by dst. A field receives the parameter named by its
// `gin:"name"` tag, or the snake_case form of its Go name; `gin:"-"` skips a
// field. Fields without a binding keep their current value, so callers set
// defaults before binding.
//
// time.Duration fields take numeric values in seconds.
func Bind(table *Table, scope, target string, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind %s: destination must be a non-nil struct pointer, got %T", target, dst)
	}
	rv = rv.Elem()

	fields := fieldsByParam(rv.Type())
	params := table.paramEntries(scope, target)
	for _, name := range sortedKeys(params) {
		entry := params[name]
		idx, ok := fields[name]
		if !ok {
			return &UnknownParameterError{Key: entry.Key.String(), Pos: entry.Pos}
		}
		if err := assign(rv.Field(idx), entry.Value); err != nil {
			return fmt.Errorf("%s: bind %s: %w", entry.Pos, entry.Key, err)
		}
	}
	return nil
}

func fieldsByParam(t reflect.Type) map[string]int {
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, hasTag := f.Tag.Lookup("gin")
		if tag == "-" {
			continue
		}
		if f.Anonymous && !hasTag {
			continue
		}
		name := tag
		if name == "" {
			name = snakeCase(f.Name)
		}
		fields[name] = i
	}
	return fields
}

// snakeCase converts Go field names: ActivationLimit -> activation_limit,
// HTTPPort -> http_port.
func snakeCase(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func assign(dst reflect.Value, v Value) error {
	if dst.Type() == valueType {
		dst.Set(reflect.ValueOf(v))
		return nil
	}
	if v.Kind == KindNone {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Type() == durationType {
		return assignDuration(dst, v)
	}

	switch dst.Kind() {
	case reflect.Bool:
		if v.Kind == KindBool {
			dst.SetBool(v.Bool)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Kind == KindInt || v.Kind == KindConstant {
			if dst.OverflowInt(v.Int) {
				return fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, v.Int, dst.Type())
			}
			dst.SetInt(v.Int)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Kind == KindInt {
			if v.Int < 0 || dst.OverflowUint(uint64(v.Int)) {
				return fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, v.Int, dst.Type())
			}
			dst.SetUint(uint64(v.Int))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch v.Kind {
		case KindFloat:
			if dst.OverflowFloat(v.Float) {
				return fmt.Errorf("%w: %g overflows %s", ErrTypeMismatch, v.Float, dst.Type())
			}
			dst.SetFloat(v.Float)
			return nil
		case KindInt:
			dst.SetFloat(float64(v.Int))
			return nil
		}
	case reflect.String:
		switch v.Kind {
		case KindString, KindConstant:
			dst.SetString(v.Str)
			return nil
		case KindReference:
			dst.SetString(v.String())
			return nil
		}
	case reflect.Slice:
		if v.Kind == KindList || v.Kind == KindTuple {
			out := reflect.MakeSlice(dst.Type(), len(v.Items), len(v.Items))
			for i, item := range v.Items {
				if err := assign(out.Index(i), item); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
			dst.Set(out)
			return nil
		}
	case reflect.Map:
		if v.Kind == KindDict && dst.Type().Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(dst.Type(), len(v.Dict))
			for _, entry := range v.Dict {
				elem := reflect.New(dst.Type().Elem()).Elem()
				if err := assign(elem, entry.Value); err != nil {
					return fmt.Errorf("key %q: %w", entry.Key, err)
				}
				out.SetMapIndex(reflect.ValueOf(entry.Key).Convert(dst.Type().Key()), elem)
			}
			dst.Set(out)
			return nil
		}
	case reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	case reflect.Interface:
		if dst.NumMethod() == 0 {
			dst.Set(reflect.ValueOf(v.Native()))
			return nil
		}
	}
	return fmt.Errorf("%w: cannot assign %s %s to %s", ErrTypeMismatch, v.Kind, v, dst.Type())
}

func assignDuration(dst reflect.Value, v Value) error {
	var seconds float64
	switch v.Kind {
	case KindInt:
		seconds = float64(v.Int)
	case KindFloat:
		seconds = v.Float
	default:
		return fmt.Errorf("%w: cannot assign %s %s to %s", ErrTypeMismatch, v.Kind, v, dst.Type())
	}
	nanos := seconds * float64(time.Second)
	if math.IsNaN(nanos) || nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return fmt.Errorf("%w: %g seconds overflows %s", ErrTypeMismatch, seconds, dst.Type())
	}
	dst.SetInt(int64(math.Round(nanos)))
	return nil
}
