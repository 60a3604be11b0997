package fitlog

import (
	"encoding/json"
	"fmt"
	"time"
)

// FitEpochOffset is the number of seconds between the UNIX epoch and the FIT
// epoch (1989-12-31T00:00:00Z).
const FitEpochOffset int64 = 631065600

const semicirclesToDegrees = 180.0 / 2147483648.0 // 2^31

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindSint8
	KindUint8
	KindSint16
	KindUint16
	KindSint32
	KindUint32
	KindSint64
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindTime
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindSint8:   "sint8",
	KindUint8:   "uint8",
	KindSint16:  "sint16",
	KindUint16:  "uint16",
	KindSint32:  "sint32",
	KindUint32:  "uint32",
	KindSint64:  "sint64",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindTime:    "time",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one decoded field value. The zero Value is invalid.
type Value struct {
	kind ValueKind
	i    int64
	u    uint64
	f    float64
	s    string
	t    time.Time
}

func Sint8(v int8) Value { return Value{kind: KindSint8, i: int64(v)} }
func Uint8(v uint8) Value { return Value{kind: KindUint8, u: uint64(v)} }
func Sint16(v int16) Value { return Value{kind: KindSint16, i: int64(v)} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, u: uint64(v)} }
func Sint32(v int32) Value { return Value{kind: KindSint32, i: int64(v)} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, u: uint64(v)} }
func Sint64(v int64) Value { return Value{kind: KindSint64, i: v} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, u: v} }
func Float32(v float32) Value { return Value{kind: KindFloat32, f: float64(v)} }
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// Int widens any integer variant to int64. Unsigned 64-bit values wrap.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindSint8, KindSint16, KindSint32, KindSint64:
		return v.i, true
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return int64(v.u), true
	default:
		return 0, false
	}
}

// Float widens any integer or float variant to float64.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat32, KindFloat64:
		return v.f, true
	case KindSint8, KindSint16, KindSint32, KindSint64:
		return float64(v.i), true
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return float64(v.u), true
	default:
		return 0, false
	}
}

// Str returns the string variant.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Time returns an absolute time. Integer variants are seconds since the FIT
// epoch; a sint32 is reinterpreted as uint32 first.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t.UTC(), true
	case KindSint32:
		return FitTimestamp(uint32(int32(v.i))), true
	case KindUint32:
		return FitTimestamp(uint32(v.u)), true
	}
	if n, ok := v.Int(); ok {
		return time.Unix(n+FitEpochOffset, 0).UTC(), true
	}
	return time.Time{}, false
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindTime:
		return v.t.UTC().Format(time.RFC3339)
	case KindFloat32, KindFloat64:
		return fmt.Sprint(v.f)
	}
	if n, ok := v.Int(); ok {
		if v.kind == KindUint64 {
			return fmt.Sprint(v.u)
		}
		return fmt.Sprint(n)
	}
	return "<invalid>"
}

// MarshalJSON encodes v as a JSON number, string or RFC 3339 time.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString, KindTime:
		return json.Marshal(v.String())
	case KindFloat32, KindFloat64:
		return json.Marshal(v.f)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return json.Marshal(v.u)
	case KindSint8, KindSint16, KindSint32, KindSint64:
		return json.Marshal(v.i)
	}
	return []byte("null"), nil
}

// FitTimestamp converts seconds since the FIT epoch to UTC.
func FitTimestamp(raw uint32) time.Time {
	return time.Unix(int64(raw)+FitEpochOffset, 0).UTC()
}

// SemicirclesToDegrees converts a FIT semicircle angle to degrees.
func SemicirclesToDegrees(semicircles int32) float64 {
	return float64(semicircles) * semicirclesToDegrees
}
