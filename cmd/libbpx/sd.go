package main

/*
#include "bpx.h"
*/
import "C"

import (
	"unsafe"

	"github.com/bsm/bpx/capi"
	"github.com/bsm/bpx/sd"
)

func fromC(v C.bpx_sd_value_t) capi.Value {
	return capi.Value{Type: sd.Type(v.ty), Data: uint64(v.data)}
}

func toC(v capi.Value) C.bpx_sd_value_t {
	return C.bpx_sd_value_t{ty: C.bpx_sd_value_type_t(v.Type), data: C.uint64_t(v.Data)}
}

func emitValue(out *C.bpx_sd_value_t, v capi.Value) {
	if out != nil {
		*out = toC(v)
	}
}

// consume runs fn with the value behind v and writes back the result, so
// that ownership transfers reset the caller's value.
func consume(v *C.bpx_sd_value_t, fn func(*capi.Value) capi.Status) C.bpx_error_t {
	if v == nil {
		return status(capi.StatusTypeMismatch)
	}
	fv := fromC(*v)
	st := fn(&fv)
	*v = toC(fv)
	return status(st)
}

func scalar(t sd.Type, bits uint64) C.bpx_sd_value_t {
	return toC(capi.Scalar(t, bits))
}

//export bpx_sd_value_new
func bpx_sd_value_new() C.bpx_sd_value_t { return toC(capi.Value{}) }

//export bpx_sd_value_new_bool
func bpx_sd_value_new_bool(b C.bool) C.bpx_sd_value_t {
	var bits uint64
	if b {
		bits = 1
	}
	return scalar(sd.TypeBool, bits)
}

//export bpx_sd_value_new_u8
func bpx_sd_value_new_u8(n C.uint8_t) C.bpx_sd_value_t { return scalar(sd.TypeUint8, uint64(n)) }

//export bpx_sd_value_new_u16
func bpx_sd_value_new_u16(n C.uint16_t) C.bpx_sd_value_t { return scalar(sd.TypeUint16, uint64(n)) }

//export bpx_sd_value_new_u32
func bpx_sd_value_new_u32(n C.uint32_t) C.bpx_sd_value_t { return scalar(sd.TypeUint32, uint64(n)) }

//export bpx_sd_value_new_u64
func bpx_sd_value_new_u64(n C.uint64_t) C.bpx_sd_value_t { return scalar(sd.TypeUint64, uint64(n)) }

//export bpx_sd_value_new_i8
func bpx_sd_value_new_i8(n C.int8_t) C.bpx_sd_value_t { return scalar(sd.TypeInt8, uint64(n)) }

//export bpx_sd_value_new_i16
func bpx_sd_value_new_i16(n C.int16_t) C.bpx_sd_value_t { return scalar(sd.TypeInt16, uint64(n)) }

//export bpx_sd_value_new_i32
func bpx_sd_value_new_i32(n C.int32_t) C.bpx_sd_value_t { return scalar(sd.TypeInt32, uint64(n)) }

//export bpx_sd_value_new_i64
func bpx_sd_value_new_i64(n C.int64_t) C.bpx_sd_value_t { return scalar(sd.TypeInt64, uint64(n)) }

//export bpx_sd_value_new_float
func bpx_sd_value_new_float(f C.float) C.bpx_sd_value_t { return toC(capi.NewFloat32(float32(f))) }

//export bpx_sd_value_new_double
func bpx_sd_value_new_double(f C.double) C.bpx_sd_value_t { return toC(capi.NewFloat64(float64(f))) }

//export bpx_sd_value_new_string
func bpx_sd_value_new_string(s *C.char) C.bpx_sd_value_t {
	if s == nil {
		return toC(capi.Value{})
	}
	return toC(capi.Default.NewString([]byte(C.GoString(s))))
}

//export bpx_sd_value_new_array
func bpx_sd_value_new_array() C.bpx_sd_value_t { return toC(capi.Default.NewArray()) }

//export bpx_sd_value_new_object
func bpx_sd_value_new_object() C.bpx_sd_value_t { return toC(capi.Default.NewObject()) }

// bpx_sd_value_free releases v recursively and resets it to null.
//
//export bpx_sd_value_free
func bpx_sd_value_free(v *C.bpx_sd_value_t) C.bpx_error_t {
	if v == nil {
		return status(capi.StatusOK)
	}
	return consume(v, capi.Default.Free)
}

//export bpx_sd_string_len
func bpx_sd_string_len(v C.bpx_sd_value_t, out *C.size_t) C.bpx_error_t {
	var n uint64
	st := capi.Default.StringLen(fromC(v), &n)
	if st == capi.StatusOK {
		setSize(out, n)
	}
	return status(st)
}

// bpx_sd_string_copy copies the string bytes without a trailing NUL.
//
//export bpx_sd_string_copy
func bpx_sd_string_copy(v C.bpx_sd_value_t, buf *C.char, size C.size_t, n *C.size_t) C.bpx_error_t {
	var nn uint64
	st := capi.Default.StringCopy(fromC(v), bytesOf((*C.uint8_t)(unsafe.Pointer(buf)), size), &nn)
	setSize(n, nn)
	return status(st)
}

// --------------------------------------------------------------------

//export bpx_sd_value_encode
func bpx_sd_value_encode(s C.bpx_section_t, v C.bpx_sd_value_t, n *C.size_t) C.bpx_error_t {
	var nn uint64
	st := capi.Default.EncodeSection(capi.Handle(s), fromC(v), &nn)
	setSize(n, nn)
	return status(st)
}

// bpx_sd_value_encode_memory stores the encoded size in *size. When buf is
// too small nothing is written and BPX_ERR_CORE_CAPACITY is returned.
//
//export bpx_sd_value_encode_memory
func bpx_sd_value_encode_memory(v C.bpx_sd_value_t, buf *C.uint8_t, bufSize C.size_t, size *C.size_t) C.bpx_error_t {
	var nn uint64
	st := capi.Default.EncodeMemory(fromC(v), bytesOf(buf, bufSize), &nn)
	setSize(size, nn)
	return status(st)
}

//export bpx_sd_value_decode
func bpx_sd_value_decode(s C.bpx_section_t, out *C.bpx_sd_value_t) C.bpx_error_t {
	var v capi.Value
	st := capi.Default.DecodeSection(capi.Handle(s), &v)
	emitValue(out, v)
	return status(st)
}

//export bpx_sd_value_decode_memory
func bpx_sd_value_decode_memory(buf *C.uint8_t, size C.size_t, out *C.bpx_sd_value_t) C.bpx_error_t {
	var v capi.Value
	st := capi.Default.DecodeMemory(bytesOf(buf, size), &v)
	emitValue(out, v)
	return status(st)
}

// --------------------------------------------------------------------

//export bpx_sd_array_push
func bpx_sd_array_push(a C.bpx_sd_value_t, v *C.bpx_sd_value_t) C.bpx_error_t {
	return consume(v, func(fv *capi.Value) capi.Status {
		return capi.Default.ArrayPush(fromC(a), fv)
	})
}

//export bpx_sd_array_insert
func bpx_sd_array_insert(a C.bpx_sd_value_t, v *C.bpx_sd_value_t, idx C.size_t) C.bpx_error_t {
	return consume(v, func(fv *capi.Value) capi.Status {
		return capi.Default.ArrayInsert(fromC(a), fv, uint64(idx))
	})
}

//export bpx_sd_array_remove
func bpx_sd_array_remove(a C.bpx_sd_value_t, idx C.size_t) C.bpx_error_t {
	return status(capi.Default.ArrayRemove(fromC(a), uint64(idx)))
}

//export bpx_sd_array_get
func bpx_sd_array_get(a C.bpx_sd_value_t, idx C.size_t, out *C.bpx_sd_value_t) C.bpx_error_t {
	var v capi.Value
	st := capi.Default.ArrayGet(fromC(a), uint64(idx), &v)
	emitValue(out, v)
	return status(st)
}

//export bpx_sd_array_len
func bpx_sd_array_len(a C.bpx_sd_value_t) C.uint64_t {
	return C.uint64_t(capi.Default.ArrayLen(fromC(a)))
}

// bpx_sd_array_list stores up to size item aliases in out and the number
// stored in *n. A nil out only validates a.
//
//export bpx_sd_array_list
func bpx_sd_array_list(a C.bpx_sd_value_t, out *C.bpx_sd_value_t, size C.size_t, n *C.size_t) C.bpx_error_t {
	fa := fromC(a)

	var dst []capi.Value
	if out != nil {
		if m := capi.Default.ArrayLen(fa); m != capi.SizeError {
			dst = make([]capi.Value, min(uint64(size), m))
		}
	}

	var nn uint64
	st := capi.Default.ArrayList(fa, dst, &nn)
	if st == capi.StatusOK && nn != 0 {
		items := unsafe.Slice(out, len(dst))
		for i := range items[:nn] {
			items[i] = toC(dst[i])
		}
	}
	setSize(n, nn)
	return status(st)
}

// --------------------------------------------------------------------

//export bpx_sd_object_get
func bpx_sd_object_get(o C.bpx_sd_value_t, key *C.char, out *C.bpx_sd_value_t) C.bpx_error_t {
	var v capi.Value
	st := capi.Default.ObjectGet(fromC(o), C.GoString(key), &v)
	emitValue(out, v)
	return status(st)
}

//export bpx_sd_object_rawget
func bpx_sd_object_rawget(o C.bpx_sd_value_t, hash C.uint64_t, out *C.bpx_sd_value_t) C.bpx_error_t {
	var v capi.Value
	st := capi.Default.ObjectRawGet(fromC(o), uint64(hash), &v)
	emitValue(out, v)
	return status(st)
}

//export bpx_sd_object_set
func bpx_sd_object_set(o C.bpx_sd_value_t, key *C.char, v *C.bpx_sd_value_t) C.bpx_error_t {
	return consume(v, func(fv *capi.Value) capi.Status {
		return capi.Default.ObjectSet(fromC(o), C.GoString(key), fv)
	})
}

//export bpx_sd_object_rawset
func bpx_sd_object_rawset(o C.bpx_sd_value_t, hash C.uint64_t, v *C.bpx_sd_value_t) C.bpx_error_t {
	return consume(v, func(fv *capi.Value) capi.Status {
		return capi.Default.ObjectRawSet(fromC(o), uint64(hash), fv)
	})
}

//export bpx_sd_object_len
func bpx_sd_object_len(o C.bpx_sd_value_t) C.uint64_t {
	return C.uint64_t(capi.Default.ObjectLen(fromC(o)))
}

// bpx_sd_object_list stores up to size property aliases in out and the
// number stored in *n. A nil out only validates o.
//
//export bpx_sd_object_list
func bpx_sd_object_list(o C.bpx_sd_value_t, out *C.bpx_sd_entry_t, size C.size_t, n *C.size_t) C.bpx_error_t {
	fo := fromC(o)

	var dst []capi.Entry
	if out != nil {
		if m := capi.Default.ObjectLen(fo); m != capi.SizeError {
			dst = make([]capi.Entry, min(uint64(size), m))
		}
	}

	var nn uint64
	st := capi.Default.ObjectList(fo, dst, &nn)
	if st == capi.StatusOK && nn != 0 {
		items := unsafe.Slice(out, len(dst))
		for i := range items[:nn] {
			items[i] = C.bpx_sd_entry_t{hash: C.uint64_t(dst[i].Hash), value: toC(dst[i].Value)}
		}
	}
	setSize(n, nn)
	return status(st)
}
