// Package sd implements the BPX structured data model: a tagged union of
// null, booleans, sized integers, floats, strings, arrays and objects.
//
// String, Array and Object values exclusively own a heap payload. Ownership
// is explicit: inserting a value into an array or object moves it there and
// resets the caller's copy to Null, and Free releases a payload together
// with everything nested in it. Freeing a Null or scalar value, or freeing
// twice, is a no-op.
//
// Copying a Value struct copies the payload reference, not the payload.
// Such copies are aliases and must not be freed independently.
package sd

import (
	"fmt"
	"math"
)

// Type is the tag of a Value.
type Type uint8

// Value types.
const (
	TypeNull Type = iota
	TypeBool
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeArray
	TypeObject
	numTypes
)

var typeNames = [...]string{
	"null", "bool", "uint8", "uint16", "uint32", "uint64",
	"int8", "int16", "int32", "int64", "float32", "float64",
	"string", "array", "object",
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool { return t < numTypes }

func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// IsScalar reports whether values of type t store their payload inline.
func (t Type) IsScalar() bool { return t < TypeString }

// Payload is the owned heap part of a String, Array or Object value.
type Payload interface {
	// Released reports whether the payload has been freed.
	Released() bool

	release()
}

// onRelease, when set, observes every payload as it is freed.
var onRelease func(Payload)

// Value is a single node of a structured data tree. The zero Value is Null.
type Value struct {
	typ  Type
	bits uint64
	ref  Payload
}

// NewNull returns a Null value.
func NewNull() Value { return Value{} }

// NewBool returns a Bool value.
func NewBool(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{typ: TypeBool, bits: bits}
}

func NewUint8(n uint8) Value     { return Value{typ: TypeUint8, bits: uint64(n)} }
func NewUint16(n uint16) Value   { return Value{typ: TypeUint16, bits: uint64(n)} }
func NewUint32(n uint32) Value   { return Value{typ: TypeUint32, bits: uint64(n)} }
func NewUint64(n uint64) Value   { return Value{typ: TypeUint64, bits: n} }
func NewInt8(n int8) Value       { return Value{typ: TypeInt8, bits: uint64(n)} }
func NewInt16(n int16) Value     { return Value{typ: TypeInt16, bits: uint64(n)} }
func NewInt32(n int32) Value     { return Value{typ: TypeInt32, bits: uint64(n)} }
func NewInt64(n int64) Value     { return Value{typ: TypeInt64, bits: uint64(n)} }
func NewFloat32(f float32) Value { return Value{typ: TypeFloat32, bits: uint64(math.Float32bits(f))} }
func NewFloat64(f float64) Value { return Value{typ: TypeFloat64, bits: math.Float64bits(f)} }

// NewString returns a String value owning a copy of s.
func NewString(s string) Value {
	return Value{typ: TypeString, ref: &String{s: s}}
}

// NewArray returns an empty Array value.
func NewArray() Value {
	return Value{typ: TypeArray, ref: new(Array)}
}

// NewObject returns an empty Object value.
func NewObject() Value {
	return Value{typ: TypeObject, ref: newObject(0)}
}

// NewScalar builds a scalar value of type t from its raw inline bits, as
// returned by Bits. Non-scalar types yield Null.
func NewScalar(t Type, bits uint64) Value {
	if !t.IsScalar() {
		return Value{}
	}
	switch t {
	case TypeNull:
		bits = 0
	case TypeBool:
		if bits != 0 {
			bits = 1
		}
	case TypeUint8, TypeInt8:
		bits &= 0xff
	case TypeUint16, TypeInt16:
		bits &= 0xffff
	case TypeUint32, TypeInt32, TypeFloat32:
		bits &= 0xffffffff
	}
	v := Value{typ: t, bits: bits}
	switch t {
	case TypeInt8:
		v.bits = uint64(int8(bits))
	case TypeInt16:
		v.bits = uint64(int16(bits))
	case TypeInt32:
		v.bits = uint64(int32(bits))
	}
	return v
}

// FromPayload wraps a payload into a value of the matching type. The value
// is an alias: it does not take ownership away from the payload's owner.
func FromPayload(p Payload) Value {
	switch p := p.(type) {
	case *String:
		return Value{typ: TypeString, ref: p}
	case *Array:
		return Value{typ: TypeArray, ref: p}
	case *Object:
		return Value{typ: TypeObject, ref: p}
	}
	return Value{}
}

// Type returns the value type.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// Bits returns the raw inline payload of scalar values.
func (v Value) Bits() uint64 { return v.bits }

// Payload returns the owned payload of String, Array and Object values.
func (v Value) Payload() Payload { return v.ref }

func (v Value) Bool() bool       { return v.typ == TypeBool && v.bits != 0 }
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Float64() float64 { return math.Float64frombits(v.bits) }

// Uint64 returns unsigned integer values widened to 64 bits.
func (v Value) Uint64() uint64 {
	switch v.typ {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return v.bits
	}
	return 0
}

// Int64 returns signed integer values widened to 64 bits.
func (v Value) Int64() int64 {
	switch v.typ {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return int64(v.bits)
	}
	return 0
}

// Array returns the array payload or nil.
func (v Value) Array() *Array {
	a, _ := v.ref.(*Array)
	return a
}

// Object returns the object payload or nil.
func (v Value) Object() *Object {
	o, _ := v.ref.(*Object)
	return o
}

// String returns the content of String values, and a short description
// of any other value.
func (v Value) String() string {
	switch v.typ {
	case TypeString:
		if s, ok := v.ref.(*String); ok {
			return s.s
		}
		return ""
	case TypeNull:
		return "null"
	case TypeBool:
		return fmt.Sprint(v.Bool())
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return fmt.Sprint(v.bits)
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return fmt.Sprint(int64(v.bits))
	case TypeFloat32:
		return fmt.Sprint(v.Float32())
	case TypeFloat64:
		return fmt.Sprint(v.Float64())
	case TypeArray:
		return fmt.Sprintf("<array len=%d>", v.Array().Len())
	case TypeObject:
		return fmt.Sprintf("<object len=%d>", v.Object().Len())
	}
	return v.typ.String()
}

// Equal reports whether v and o hold equivalent trees.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString:
		return v.String() == o.String()
	case TypeArray:
		a, b := v.Array(), o.Array()
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !a.items[i].Equal(b.items[i]) {
				return false
			}
		}
		return true
	case TypeObject:
		a, b := v.Object(), o.Object()
		if a.Len() != b.Len() {
			return false
		}
		for _, e := range a.entries {
			if !e.Value.Equal(b.RawGet(e.Hash)) {
				return false
			}
		}
		return true
	}
	return v.bits == o.bits
}

// Free releases the payload of v, recursively, and resets v to Null.
func (v *Value) Free() {
	if v.ref != nil {
		v.ref.release()
	}
	v.Reset()
}

// Take moves v out, leaving Null behind.
func (v *Value) Take() Value {
	t := *v
	v.Reset()
	return t
}

// Reset marks v as transferred: it becomes Null without releasing the
// payload.
func (v *Value) Reset() {
	*v = Value{}
}

// --------------------------------------------------------------------

// String is the payload of a String value.
type String struct {
	s        string
	released bool
}

// String returns the content.
func (p *String) String() string { return p.s }

// Len returns the content length in bytes.
func (p *String) Len() int { return len(p.s) }

// Released implements Payload.
func (p *String) Released() bool { return p.released }

func (p *String) release() {
	if p.released {
		return
	}
	p.released = true
	p.s = ""
	if onRelease != nil {
		onRelease(p)
	}
}
