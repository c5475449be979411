package audit

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// Kind tags the representation carried by a Value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindUint
	KindFloat
	KindBool
	KindTime
	KindStringer
	KindList
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindStringer:
		return "stringer"
	case KindList:
		return "list"
	default:
		return "opaque"
	}
}

// Value is a single field value as seen by the audit engine. Every kind
// except KindOpaque has a canonical string form. Equal also compares kinds;
// Same compares only what a record stores.
type Value struct {
	kind Kind
	repr string
}

// Null returns the null value
func Null() Value { return Value{kind: KindNull} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, repr: s} }

// Int returns a signed integer value
func Int(i int64) Value { return Value{kind: KindInt, repr: strconv.FormatInt(i, 10)} }

// Uint returns an unsigned integer value
func Uint(u uint64) Value { return Value{kind: KindUint, repr: strconv.FormatUint(u, 10)} }

// Float returns a floating point value
func Float(f float64) Value { return Value{kind: KindFloat, repr: strconv.FormatFloat(f, 'g', -1, 64)} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, repr: strconv.FormatBool(b)} }

// Time returns a timestamp value rendered as RFC3339Nano in UTC
func Time(t time.Time) Value {
	return Value{kind: KindTime, repr: t.UTC().Format(time.RFC3339Nano)}
}

// Stringer returns a value whose string form is s.String()
func Stringer(s fmt.Stringer) Value { return Value{kind: KindStringer, repr: s.String()} }

// List returns a collection value. Lists are captured but never diffed.
func List(n int) Value { return Value{kind: KindList, repr: "list:" + strconv.Itoa(n)} }

// Opaque returns a value without a defined equality. Opaque values are
// dropped when a snapshot is captured.
func Opaque() Value { return Value{kind: KindOpaque} }

// AuditValuer lets a type choose its own audit representation. Named
// scalars such as `type Role string` implement it, or are passed through a
// constructor, since ValueOf matches concrete types only.
type AuditValuer interface {
	AuditValue() Value
}

// ValueOf tags a plain Go value. Nil pointers are Null, driver.Valuer results
// are tagged again, and unrecognised types are Opaque unless they implement
// fmt.Stringer.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case AuditValuer:
		return x.AuditValue()
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return Opaque()
		}
		return ValueOf(dv)
	case string:
		return String(x)
	case *string:
		if x == nil {
			return Null()
		}
		return String(*x)
	case []byte:
		return String(string(x))
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case *int64:
		if x == nil {
			return Null()
		}
		return Int(*x)
	case *int:
		if x == nil {
			return Null()
		}
		return Int(int64(*x))
	case *int32:
		if x == nil {
			return Null()
		}
		return Int(int64(*x))
	case uint:
		return Uint(uint64(x))
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case uint64:
		return Uint(x)
	case *uint64:
		if x == nil {
			return Null()
		}
		return Uint(*x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case *float64:
		if x == nil {
			return Null()
		}
		return Float(*x)
	case bool:
		return Bool(x)
	case *bool:
		if x == nil {
			return Null()
		}
		return Bool(*x)
	case time.Time:
		return Time(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return Time(*x)
	case []string:
		return List(len(x))
	case []int:
		return List(len(x))
	case []int64:
		return List(len(x))
	case []float64:
		return List(len(x))
	case []any:
		return List(len(x))
	case fmt.Stringer:
		return Stringer(x)
	default:
		return Opaque()
	}
}

// Values tags every entry of a plain field map
func Values(fields map[string]any) map[string]Value {
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = ValueOf(v)
	}
	return out
}

// Kind reports the tag of v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value
func (v Value) IsNull() bool { return v.kind == KindNull }

// Comparable reports whether v has a defined equality
func (v Value) Comparable() bool { return v.kind != KindOpaque }

// IsList reports whether v is a collection
func (v Value) IsList() bool { return v.kind == KindList }

// Equal compares two values. Opaque values are never equal to anything.
func (v Value) Equal(o Value) bool {
	if !v.Comparable() || !o.Comparable() {
		return false
	}
	return v.kind == o.kind && v.repr == o.repr
}

// Same reports whether v and o would be stored as the same record value.
// Kinds are ignored except that null differs from every non-null value, so
// String("30") and Int(30) are the same. Opaque values are never the same.
func (v Value) Same(o Value) bool {
	if !v.Comparable() || !o.Comparable() {
		return false
	}
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	return v.repr == o.repr
}

// String returns the canonical string form. Null and Opaque render as "".
func (v Value) String() string { return v.repr }

// Ptr returns the string form as an optional string, nil for null values
func (v Value) Ptr() *string {
	if v.kind == KindNull || v.kind == KindOpaque {
		return nil
	}
	s := v.repr
	return &s
}
