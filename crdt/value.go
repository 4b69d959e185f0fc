package crdt

import (
	"fmt"
	"strconv"
)

// Structs

// Kind enumerates the closed set of scalar kinds a
// replicated register may hold. Keeping the set closed
// makes serialization and conflict resolution total.
type Kind uint8

const (
	// KindInt marks a signed integer value.
	KindInt Kind = iota

	// KindFloat marks a 64 bit floating point value.
	KindFloat

	// KindString marks an UTF-8 string value.
	KindString

	// KindBool marks a boolean value.
	KindBool
)

// Value is a tagged variant over the scalar kinds above.
// Exactly the field matching Kind carries meaning, all
// other fields stay at their zero value.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// Functions

// IntValue wraps i into a Value of kind KindInt.
func IntValue(i int64) Value {
	return Value{Kind: KindInt, Int: i}
}

// FloatValue wraps f into a Value of kind KindFloat.
func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

// StringValue wraps s into a Value of kind KindString.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// BoolValue wraps b into a Value of kind KindBool.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Equal reports whether v and other carry the same
// kind and the same payload of that kind.
func (v Value) Equal(other Value) bool {

	if v.Kind != other.Kind {
		return false
	}

	switch v.Kind {
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	default:
		return v.Bool == other.Bool
	}
}

// String returns a human-readable representation of v
// used in log lines and test failure messages.
func (v Value) String() string {

	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	default:
		return strconv.FormatBool(v.Bool)
	}
}
