package sheet

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies which member of a Value is populated.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindInt
	KindFloat
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "absent"
	}
}

// Value is the typed content of one cell. The zero Value is absent.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	t    time.Time
	b    bool
}

func Absent() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }
func (v Value) Text() string { return v.s }
func (v Value) Integer() int64 { return v.i }
func (v Value) Number() float64 { return v.f }
func (v Value) Time() time.Time { return v.t }
func (v Value) Truth() bool { return v.b }

// Numeric returns the value as float64 for int and float kinds.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// number builds an int Value when f has no fractional part, float otherwise.
func number(f float64) Value {
	if f == float64(int64(f)) && f < 1e18 && f > -1e18 {
		return Int(int64(f))
	}
	return Float(f)
}

// classify turns a computed or raw textual result into a Value.
// Excel error literals (#DIV/0!, #N/A, ...) are absent.
func classify(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "#") {
		return Absent()
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return Bool(true)
	case "FALSE":
		return Bool(false)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return number(f)
	}
	return String(s)
}
