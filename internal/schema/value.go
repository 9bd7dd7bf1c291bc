package schema

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf16"

	"github.com/roach88/calibtic/internal/calerr"
)

// Value is a sealed interface representing persisted value types.
// Only String, Int, Float, Bool, List and Object implement this.
type Value interface {
	schemaValue() // Sealed - only these types implement it
}

// String represents a string value.
type String string

func (String) schemaValue() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) schemaValue() {}

// Float represents a finite float64 value.
type Float float64

func (Float) schemaValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) schemaValue() {}

// List represents an ordered list of values.
type List []Value

func (List) schemaValue() {}

// Object represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) schemaValue() {}

// Floats builds a List of Float values.
func Floats(xs []float64) List {
	l := make(List, len(xs))
	for i, x := range xs {
		l[i] = Float(x)
	}
	return l
}

// Ints builds a List of Int values.
func Ints(xs []int) List {
	l := make(List, len(xs))
	for i, x := range xs {
		l[i] = Int(x)
	}
	return l
}

// Floats converts a list of numbers to float64. Int elements are accepted.
func (l List) Floats() ([]float64, error) {
	out := make([]float64, len(l))
	for i, v := range l {
		f, err := asFloat(v)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Ints converts a list of Int values to int.
func (l List) Ints() ([]int, error) {
	out := make([]int, len(l))
	for i, v := range l {
		n, ok := v.(Int)
		if !ok {
			return nil, calerr.Incompatible("", "list[%d]: expected int, got %T", i, v)
		}
		out[i] = int(n)
	}
	return out, nil
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Float returns the float stored under key. Int values are accepted.
func (obj Object) Float(key string) (float64, error) {
	v, ok := obj[key]
	if !ok {
		return 0, missing(key)
	}
	f, err := asFloat(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return f, nil
}

// Int returns the integer stored under key.
func (obj Object) Int(key string) (int64, error) {
	v, ok := obj[key]
	if !ok {
		return 0, missing(key)
	}
	n, ok := v.(Int)
	if !ok {
		return 0, mismatch(key, "int", v)
	}
	return int64(n), nil
}

// String returns the string stored under key.
func (obj Object) String(key string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", missing(key)
	}
	s, ok := v.(String)
	if !ok {
		return "", mismatch(key, "string", v)
	}
	return string(s), nil
}

// Bool returns the boolean stored under key.
func (obj Object) Bool(key string) (bool, error) {
	v, ok := obj[key]
	if !ok {
		return false, missing(key)
	}
	b, ok := v.(Bool)
	if !ok {
		return false, mismatch(key, "bool", v)
	}
	return bool(b), nil
}

// List returns the list stored under key.
func (obj Object) List(key string) (List, error) {
	v, ok := obj[key]
	if !ok {
		return nil, missing(key)
	}
	l, ok := v.(List)
	if !ok {
		return nil, mismatch(key, "list", v)
	}
	return l, nil
}

// Object returns the nested object stored under key.
func (obj Object) Object(key string) (Object, error) {
	v, ok := obj[key]
	if !ok {
		return nil, missing(key)
	}
	o, ok := v.(Object)
	if !ok {
		return nil, mismatch(key, "object", v)
	}
	return o, nil
}

// Has reports whether key is present.
func (obj Object) Has(key string) bool {
	_, ok := obj[key]
	return ok
}

// Equal reports whether two values are structurally identical.
// Floats compare by bit pattern so -0 and 0 differ.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && math.Float64bits(float64(av)) == math.Float64bits(float64(bv))
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asFloat(v Value) (float64, error) {
	switch n := v.(type) {
	case Float:
		return float64(n), nil
	case Int:
		return float64(n), nil
	default:
		return 0, calerr.Incompatible("", "expected number, got %T", v)
	}
}

func missing(key string) error {
	return calerr.Incompatible(key, "missing field %q", key)
}

func mismatch(key, want string, got Value) error {
	return calerr.Incompatible(key, "field %q: expected %s, got %T", key, want, got)
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	// If all compared units are equal, shorter string comes first
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
