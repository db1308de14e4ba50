package sd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

// Wire type codes.
const (
	codeNull    byte = 0x0
	codeInt8    byte = 0x1
	codeInt16   byte = 0x2
	codeInt32   byte = 0x3
	codeInt64   byte = 0x4
	codeUint8   byte = 0x5
	codeUint16  byte = 0x6
	codeUint32  byte = 0x7
	codeUint64  byte = 0x8
	codeFloat32 byte = 0x9
	codeFloat64 byte = 0xA
	codeString  byte = 0xB
	codeArray   byte = 0xC
	codeObject  byte = 0xD
	codeBool    byte = 0xE
)

var typeCodes = [...]byte{
	TypeNull:    codeNull,
	TypeBool:    codeBool,
	TypeUint8:   codeUint8,
	TypeUint16:  codeUint16,
	TypeUint32:  codeUint32,
	TypeUint64:  codeUint64,
	TypeInt8:    codeInt8,
	TypeInt16:   codeInt16,
	TypeInt32:   codeInt32,
	TypeInt64:   codeInt64,
	TypeFloat32: codeFloat32,
	TypeFloat64: codeFloat64,
	TypeString:  codeString,
	TypeArray:   codeArray,
	TypeObject:  codeObject,
}

// MaxEntries is the maximum number of items in an encoded array or object.
const MaxEntries = math.MaxUint8

const maxDepth = 256

var (
	// ErrTruncated is returned when the input ends inside a value.
	ErrTruncated = errors.New("sd: truncated input")
	// ErrInvalidUTF8 is returned for strings that are not valid UTF-8 or
	// cannot be NUL terminated.
	ErrInvalidUTF8 = errors.New("sd: invalid utf-8 string")
	// ErrCapacity is returned when an array or object has too many entries
	// or values nest too deeply.
	ErrCapacity = errors.New("sd: capacity exceeded")
	// ErrNotAnObject is returned by DecodeObject when the root is not an object.
	ErrNotAnObject = errors.New("sd: not an object")
	// ErrReleased is returned when encoding a value whose payload was freed
	// through another reference.
	ErrReleased = errors.New("sd: value was freed")
)

// TypeCodeError is returned when decoding an unknown type code.
type TypeCodeError struct {
	Code byte
}

func (e *TypeCodeError) Error() string {
	return fmt.Sprintf("sd: invalid type code %#02x", e.Code)
}

// --------------------------------------------------------------------

// Marshal returns the wire encoding of v.
func Marshal(v Value) ([]byte, error) {
	return appendValue(nil, v, 0)
}

// Encode writes the wire encoding of v to w and returns the number of
// bytes written.
func Encode(w io.Writer, v Value) (int, error) {
	buf, err := appendValue(nil, v, 0)
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}

func appendValue(dst []byte, v Value, depth int) ([]byte, error) {
	if depth > maxDepth {
		return dst, ErrCapacity
	}
	if !v.typ.Valid() {
		return dst, fmt.Errorf("sd: invalid value type %d", v.typ)
	}
	if p := v.Payload(); p != nil && p.Released() {
		return dst, fmt.Errorf("%w: %s", ErrReleased, v.typ)
	}

	dst = append(dst, typeCodes[v.typ])
	switch v.typ {
	case TypeNull:
	case TypeBool, TypeUint8, TypeInt8:
		dst = append(dst, byte(v.bits))
	case TypeUint16, TypeInt16:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v.bits))
	case TypeUint32, TypeInt32, TypeFloat32:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(v.bits))
	case TypeUint64, TypeInt64, TypeFloat64:
		dst = binary.LittleEndian.AppendUint64(dst, v.bits)
	case TypeString:
		s := v.String()
		if !utf8.ValidString(s) || strings.IndexByte(s, 0) != -1 {
			return dst, ErrInvalidUTF8
		}
		dst = append(dst, s...)
		dst = append(dst, 0)
	case TypeArray:
		a := v.Array()
		if a.Len() > MaxEntries {
			return dst, fmt.Errorf("%w: array has %d items", ErrCapacity, a.Len())
		}
		dst = append(dst, byte(a.Len()))
		for i := 0; i < a.Len(); i++ {
			var err error
			if dst, err = appendValue(dst, a.items[i], depth+1); err != nil {
				return dst, err
			}
		}
	case TypeObject:
		o := v.Object()
		if o.Len() > MaxEntries {
			return dst, fmt.Errorf("%w: object has %d properties", ErrCapacity, o.Len())
		}
		dst = append(dst, byte(o.Len()))
		for i := 0; i < o.Len(); i++ {
			e := o.entries[i]
			dst = binary.LittleEndian.AppendUint64(dst, e.Hash)

			var err error
			if dst, err = appendValue(dst, e.Value, depth+1); err != nil {
				return dst, err
			}
		}
	}
	return dst, nil
}

// --------------------------------------------------------------------

// Unmarshal decodes a single value from data.
func Unmarshal(data []byte) (Value, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a single value from r. It never reads past the end of the
// value, so r may be positioned at further data.
func Decode(r io.Reader) (Value, error) {
	d := decoder{r: r}
	if br, ok := r.(io.ByteReader); ok {
		d.br = br
	}
	return d.value(0)
}

// DecodeObject reads a single value from r and fails with ErrNotAnObject
// unless it is an object. Structured data sections store an object root.
func DecodeObject(r io.Reader) (Value, error) {
	v, err := Decode(r)
	if err != nil {
		return Value{}, err
	}
	if v.typ != TypeObject {
		v.Free()
		return Value{}, ErrNotAnObject
	}
	return v, nil
}

type decoder struct {
	r   io.Reader
	br  io.ByteReader
	tmp [8]byte
}

func (d *decoder) fail(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}

func (d *decoder) readByte() (byte, error) {
	if d.br != nil {
		b, err := d.br.ReadByte()
		return b, d.fail(err)
	}
	if _, err := io.ReadFull(d.r, d.tmp[:1]); err != nil {
		return 0, d.fail(err)
	}
	return d.tmp[0], nil
}

func (d *decoder) read(n int) ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.tmp[:n]); err != nil {
		return nil, d.fail(err)
	}
	return d.tmp[:n], nil
}

func (d *decoder) value(depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, ErrCapacity
	}

	code, err := d.readByte()
	if err != nil {
		return Value{}, err
	}

	switch code {
	case codeNull:
		return Value{}, nil
	case codeBool, codeUint8, codeInt8:
		b, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		switch code {
		case codeBool:
			return NewBool(b != 0), nil
		case codeUint8:
			return NewUint8(b), nil
		}
		return NewInt8(int8(b)), nil
	case codeUint16, codeInt16:
		p, err := d.read(2)
		if err != nil {
			return Value{}, err
		}
		n := binary.LittleEndian.Uint16(p)
		if code == codeInt16 {
			return NewInt16(int16(n)), nil
		}
		return NewUint16(n), nil
	case codeUint32, codeInt32, codeFloat32:
		p, err := d.read(4)
		if err != nil {
			return Value{}, err
		}
		n := binary.LittleEndian.Uint32(p)
		switch code {
		case codeInt32:
			return NewInt32(int32(n)), nil
		case codeFloat32:
			return NewFloat32(math.Float32frombits(n)), nil
		}
		return NewUint32(n), nil
	case codeUint64, codeInt64, codeFloat64:
		p, err := d.read(8)
		if err != nil {
			return Value{}, err
		}
		n := binary.LittleEndian.Uint64(p)
		switch code {
		case codeInt64:
			return NewInt64(int64(n)), nil
		case codeFloat64:
			return NewFloat64(math.Float64frombits(n)), nil
		}
		return NewUint64(n), nil
	case codeString:
		return d.str()
	case codeArray:
		return d.array(depth)
	case codeObject:
		return d.object(depth)
	}
	return Value{}, &TypeCodeError{Code: code}
}

func (d *decoder) str() (Value, error) {
	var sb strings.Builder
	for {
		b, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		if b == 0 {
			break
		}
		sb.WriteByte(b)
	}

	s := sb.String()
	if !utf8.ValidString(s) {
		return Value{}, ErrInvalidUTF8
	}
	return NewString(s), nil
}

func (d *decoder) array(depth int) (Value, error) {
	n, err := d.readByte()
	if err != nil {
		return Value{}, err
	}

	a := &Array{items: make([]Value, 0, n)}
	v := Value{typ: TypeArray, ref: a}
	for i := 0; i < int(n); i++ {
		item, err := d.value(depth + 1)
		if err != nil {
			v.Free()
			return Value{}, err
		}
		a.Push(&item)
	}
	return v, nil
}

func (d *decoder) object(depth int) (Value, error) {
	n, err := d.readByte()
	if err != nil {
		return Value{}, err
	}

	o := newObject(int(n))
	v := Value{typ: TypeObject, ref: o}
	for i := 0; i < int(n); i++ {
		p, err := d.read(8)
		if err != nil {
			v.Free()
			return Value{}, err
		}
		hash := binary.LittleEndian.Uint64(p)

		prop, err := d.value(depth + 1)
		if err != nil {
			v.Free()
			return Value{}, err
		}
		o.RawSet(hash, &prop)
	}
	return v, nil
}
