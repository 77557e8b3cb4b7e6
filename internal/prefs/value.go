// Package prefs holds controller preferences as a map of tagged values.
// An entry is absent, an integer, a string or a float; "unset" is explicit.
package prefs

import (
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindAbsent Kind = iota
	KindInt
	KindString
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	default:
		return "absent"
	}
}

// Value is one preference slot.
type Value struct {
	kind Kind
	i    int64
	s    string
	f    float64
}

func Absent() Value            { return Value{} }
func Int(v int64) Value        { return Value{kind: KindInt, i: v} }
func String(v string) Value    { return Value{kind: KindString, s: v} }
func Float(v float64) Value    { return Value{kind: KindFloat, f: v} }
func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Int returns the integer payload. Floats are truncated.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

// Float returns the float payload. Integers are widened.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// Parse converts raw into a Value of the requested kind.
// Empty input yields Absent.
func Parse(kind Kind, raw string) (Value, error) {
	if raw == "" {
		return Absent(), nil
	}
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Absent(), fmt.Errorf("parse int %q: %w", raw, err)
		}
		return Int(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Absent(), fmt.Errorf("parse float %q: %w", raw, err)
		}
		return Float(f), nil
	case KindString:
		return String(raw), nil
	default:
		return Absent(), nil
	}
}
