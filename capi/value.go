package capi

import (
	"bytes"
	"math"

	"github.com/bsm/bpx/internal/handle"
	"github.com/bsm/bpx/sd"
)

// Value is the foreign representation of a structured data value. Data
// holds the raw bits of scalars, or the payload handle of strings, arrays
// and objects.
type Value struct {
	Type sd.Type
	Data uint64
}

// Entry is a single object property.
type Entry struct {
	Hash  uint64
	Value Value
}

// Scalar builds a scalar value from its raw bits. Non-scalar types yield
// Null.
func Scalar(t sd.Type, bits uint64) Value {
	v := sd.NewScalar(t, bits)
	return Value{Type: v.Type(), Data: v.Bits()}
}

// NewFloat32 builds a Float32 value.
func NewFloat32(f float32) Value { return Scalar(sd.TypeFloat32, uint64(math.Float32bits(f))) }

// NewFloat64 builds a Float64 value.
func NewFloat64(f float64) Value { return Scalar(sd.TypeFloat64, math.Float64bits(f)) }

// wrap registers the payload of v, if any.
func (b *Bridge) wrap(v sd.Value) Value {
	p := v.Payload()
	if p == nil {
		return Value{Type: v.Type(), Data: v.Bits()}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return Value{Type: v.Type(), Data: uint64(b.payloads.Insert(p))}
}

// resolve turns fv into an alias of the value it references.
func (b *Bridge) resolve(fv Value) (sd.Value, Status) {
	if !fv.Type.Valid() {
		return sd.Value{}, StatusTypeMismatch
	}
	if fv.Type.IsScalar() {
		return sd.NewScalar(fv.Type, fv.Data), StatusOK
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	h := handle.Handle(fv.Data)
	p, ok := b.payloads.Get(h)
	if !ok {
		return sd.Value{}, StatusInvalidHandle
	}
	if p.Released() {
		b.payloads.Release(h)
		return sd.Value{}, StatusInvalidHandle
	}

	v := sd.FromPayload(p)
	if v.Type() != fv.Type {
		return sd.Value{}, StatusTypeMismatch
	}
	return v, StatusOK
}

// forget releases the handles of v and of every payload nested in it.
func (b *Bridge) forget(v sd.Value) {
	if v.Payload() == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.release(v)
}

func (b *Bridge) release(v sd.Value) {
	if h, ok := b.payloads.Lookup(v.Payload()); ok {
		b.payloads.Release(h)
	}
	for _, child := range children(v) {
		if child.Payload() != nil {
			b.release(child)
		}
	}
}

func children(v sd.Value) []sd.Value {
	switch v.Type() {
	case sd.TypeArray:
		a := v.Array()
		items := make([]sd.Value, a.Len())
		a.List(items)
		return items
	case sd.TypeObject:
		o := v.Object()
		entries := make([]sd.Entry, o.Len())
		o.List(entries)
		items := make([]sd.Value, len(entries))
		for i, e := range entries {
			items[i] = e.Value
		}
		return items
	}
	return nil
}

// contains reports whether p is the payload of v or nested in it.
func contains(v sd.Value, p sd.Payload) bool {
	if v.Payload() == nil {
		return false
	}
	if v.Payload() == p {
		return true
	}
	for _, child := range children(v) {
		if contains(child, p) {
			return true
		}
	}
	return false
}

// NewString builds a String value from a copy of s.
func (b *Bridge) NewString(s []byte) Value {
	return b.wrap(sd.NewString(string(s)))
}

// NewArray builds an empty Array value.
func (b *Bridge) NewArray() Value {
	return b.wrap(sd.NewArray())
}

// NewObject builds an empty Object value.
func (b *Bridge) NewObject() Value {
	return b.wrap(sd.NewObject())
}

// Free releases v recursively and resets it to Null. Freeing Null and
// scalar values is a no-op. Values obtained from arrays or objects are
// aliases: freeing one releases the element inside its parent.
func (b *Bridge) Free(v *Value) Status {
	if v == nil {
		return StatusOK
	}

	fv := *v
	*v = Value{}
	if fv.Type.IsScalar() {
		return StatusOK
	}

	sv, st := b.resolve(fv)
	if st != StatusOK {
		return st
	}
	b.forget(sv)
	sv.Free()
	return StatusOK
}

// StringLen stores the byte length of string v in out.
func (b *Bridge) StringLen(v Value, out *uint64) Status {
	s, st := b.str(v)
	if st != StatusOK {
		return st
	}
	setOut(out, uint64(s.Len()))
	return StatusOK
}

// StringCopy copies up to len(dst) bytes of string v into dst and stores
// the number of bytes copied in n.
func (b *Bridge) StringCopy(v Value, dst []byte, n *uint64) Status {
	s, st := b.str(v)
	if st != StatusOK {
		return st
	}
	setOut(n, uint64(copy(dst, s.String())))
	return StatusOK
}

func (b *Bridge) str(v Value) (*sd.String, Status) {
	if v.Type != sd.TypeString {
		return nil, StatusTypeMismatch
	}
	sv, st := b.resolve(v)
	if st != StatusOK {
		return nil, st
	}
	return sv.Payload().(*sd.String), StatusOK
}

// --------------------------------------------------------------------

// EncodeSection writes v at the cursor of loaded section s and stores the
// number of bytes written in n.
func (b *Bridge) EncodeSection(s Handle, v Value, n *uint64) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}
	sv, st := b.resolve(v)
	if st != StatusOK {
		return st
	}

	m, err := sd.Encode(ls.s, sv)
	if err != nil {
		return b.fail("sd encode", err, StatusSectionIO, nil)
	}
	setOut(n, uint64(m))
	return StatusOK
}

// EncodeMemory writes v into buf and stores the encoded size in size. When
// buf is too small nothing is written, size holds the required capacity
// and StatusCapacity is returned.
func (b *Bridge) EncodeMemory(v Value, buf []byte, size *uint64) Status {
	sv, st := b.resolve(v)
	if st != StatusOK {
		return st
	}

	data, err := sd.Marshal(sv)
	if err != nil {
		return b.fail("sd encode memory", err, StatusSdCapacity, nil)
	}
	setOut(size, uint64(len(data)))
	if len(data) > len(buf) {
		return StatusCapacity
	}
	copy(buf, data)
	return StatusOK
}

// DecodeSection reads a value at the cursor of loaded section s.
func (b *Bridge) DecodeSection(s Handle, out *Value) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}

	sv, err := sd.Decode(ls.s)
	if err != nil {
		return b.fail("sd decode", err, StatusSectionIO, nil)
	}
	return b.emit(sv, out)
}

// DecodeMemory reads a value from buf.
func (b *Bridge) DecodeMemory(buf []byte, out *Value) Status {
	sv, err := sd.Decode(bytes.NewReader(buf))
	if err != nil {
		return b.fail("sd decode memory", err, StatusSdTruncation, nil)
	}
	return b.emit(sv, out)
}

// emit hands ownership of v to the caller; v is dropped when out is nil.
func (b *Bridge) emit(v sd.Value, out *Value) Status {
	if out == nil {
		v.Free()
		return StatusOK
	}
	*out = b.wrap(v)
	return StatusOK
}

// --------------------------------------------------------------------

func (b *Bridge) array(v Value) (*sd.Array, Status) {
	if v.Type != sd.TypeArray {
		return nil, StatusTypeMismatch
	}
	sv, st := b.resolve(v)
	if st != StatusOK {
		return nil, st
	}
	return sv.Array(), StatusOK
}

// take resolves *v for a move into the collection dst. Moving a value
// into itself or one of its descendants fails with StatusInvalidHandle.
func (b *Bridge) take(v *Value, dst sd.Payload) (sd.Value, Status) {
	if v == nil {
		return sd.Value{}, StatusOK
	}
	sv, st := b.resolve(*v)
	if st != StatusOK {
		return sd.Value{}, st
	}
	if contains(sv, dst) {
		return sd.Value{}, StatusInvalidHandle
	}
	return sv, StatusOK
}

// ArrayPush moves v to the end of array a and resets *v.
func (b *Bridge) ArrayPush(a Value, v *Value) Status {
	arr, st := b.array(a)
	if st != StatusOK {
		return st
	}
	sv, st := b.take(v, arr)
	if st != StatusOK {
		return st
	}

	arr.Push(&sv)
	setOut(v, Value{})
	return StatusOK
}

// ArrayInsert moves v to position idx of array a and resets *v. It fails
// with StatusIndexOutOfRange for idx > len, leaving *v untouched.
func (b *Bridge) ArrayInsert(a Value, v *Value, idx uint64) Status {
	arr, st := b.array(a)
	if st != StatusOK {
		return st
	}
	sv, st := b.take(v, arr)
	if st != StatusOK {
		return st
	}
	if idx > uint64(arr.Len()) {
		return StatusIndexOutOfRange
	}

	if err := arr.Insert(&sv, int(idx)); err != nil {
		return b.fail("sd array insert", err, StatusIndexOutOfRange, nil)
	}
	setOut(v, Value{})
	return StatusOK
}

// ArrayRemove frees the item at idx and removes it.
func (b *Bridge) ArrayRemove(a Value, idx uint64) Status {
	arr, st := b.array(a)
	if st != StatusOK {
		return st
	}
	if idx >= uint64(arr.Len()) {
		return StatusIndexOutOfRange
	}

	b.forget(arr.Get(int(idx)))
	if err := arr.Remove(int(idx)); err != nil {
		return b.fail("sd array remove", err, StatusIndexOutOfRange, nil)
	}
	return StatusOK
}

// ArrayGet stores an alias of the item at idx in out, or Null when idx is
// out of range.
func (b *Bridge) ArrayGet(a Value, idx uint64, out *Value) Status {
	arr, st := b.array(a)
	if st != StatusOK {
		return st
	}

	var item sd.Value
	if idx < uint64(arr.Len()) {
		item = arr.Get(int(idx))
	}
	setOut(out, b.wrap(item))
	return StatusOK
}

// ArrayLen returns the number of items of a, or SizeError.
func (b *Bridge) ArrayLen(a Value) uint64 {
	arr, st := b.array(a)
	if st != StatusOK {
		return SizeError
	}
	return uint64(arr.Len())
}

// ArrayList stores aliases of up to len(dst) items in dst and the number
// stored in n.
func (b *Bridge) ArrayList(a Value, dst []Value, n *uint64) Status {
	arr, st := b.array(a)
	if st != StatusOK {
		return st
	}

	items := make([]sd.Value, min(len(dst), arr.Len()))
	m := arr.List(items)
	for i, item := range items[:m] {
		dst[i] = b.wrap(item)
	}
	setOut(n, uint64(m))
	return StatusOK
}

// --------------------------------------------------------------------

func (b *Bridge) object(v Value) (*sd.Object, Status) {
	if v.Type != sd.TypeObject {
		return nil, StatusNotAnObject
	}
	sv, st := b.resolve(v)
	if st != StatusOK {
		return nil, st
	}
	return sv.Object(), StatusOK
}

// ObjectGet stores an alias of the property under key in out, or Null.
func (b *Bridge) ObjectGet(o Value, key string, out *Value) Status {
	return b.ObjectRawGet(o, sd.Hash(key), out)
}

// ObjectRawGet stores an alias of the property under hash in out, or Null.
func (b *Bridge) ObjectRawGet(o Value, hash uint64, out *Value) Status {
	obj, st := b.object(o)
	if st != StatusOK {
		return st
	}
	setOut(out, b.wrap(obj.RawGet(hash)))
	return StatusOK
}

// ObjectSet moves v under key and resets *v. A previous value under the
// same key is freed.
func (b *Bridge) ObjectSet(o Value, key string, v *Value) Status {
	return b.ObjectRawSet(o, sd.Hash(key), v)
}

// ObjectRawSet moves v under hash and resets *v. A previous value under the
// same hash is freed. Moving a value that is nested in the value it
// replaces fails with StatusInvalidHandle.
func (b *Bridge) ObjectRawSet(o Value, hash uint64, v *Value) Status {
	obj, st := b.object(o)
	if st != StatusOK {
		return st
	}
	sv, st := b.take(v, obj)
	if st != StatusOK {
		return st
	}

	if old := obj.RawGet(hash); old.Payload() != sv.Payload() {
		// the displaced value is freed, it must not own v
		if sv.Payload() != nil && contains(old, sv.Payload()) {
			return StatusInvalidHandle
		}
		b.forget(old)
	}
	obj.RawSet(hash, &sv)
	setOut(v, Value{})
	return StatusOK
}

// ObjectLen returns the number of properties of o, or SizeError.
func (b *Bridge) ObjectLen(o Value) uint64 {
	obj, st := b.object(o)
	if st != StatusOK {
		return SizeError
	}
	return uint64(obj.Len())
}

// ObjectList stores aliases of up to len(dst) properties in dst and the
// number stored in n.
func (b *Bridge) ObjectList(o Value, dst []Entry, n *uint64) Status {
	obj, st := b.object(o)
	if st != StatusOK {
		return st
	}

	entries := make([]sd.Entry, min(len(dst), obj.Len()))
	m := obj.List(entries)
	for i, e := range entries[:m] {
		dst[i] = Entry{Hash: e.Hash, Value: b.wrap(e.Value)}
	}
	setOut(n, uint64(m))
	return StatusOK
}
