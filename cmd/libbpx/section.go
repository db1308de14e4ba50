package main

/*
#include "bpx.h"
*/
import "C"

import (
	"github.com/bsm/bpx"
	"github.com/bsm/bpx/capi"
)

//export bpx_section_get_header
func bpx_section_get_header(c C.bpx_container_t, sh C.bpx_handle_t, out *C.bpx_section_header_t) C.bpx_error_t {
	var hdr bpx.SectionHeader
	if st := capi.Default.SectionGetHeader(capi.Handle(c), uint32(sh), &hdr); st != capi.StatusOK {
		return status(st)
	}
	if out != nil {
		out.pointer = C.uint64_t(hdr.Pointer)
		out.csize = C.uint32_t(hdr.CompressedSize)
		out.size = C.uint32_t(hdr.Size)
		out.chksum = C.uint32_t(hdr.Checksum)
		out.ty = C.uint8_t(hdr.Type)
		out.flags = C.uint8_t(hdr.Flags)
	}
	return status(capi.StatusOK)
}

func emitSection(out *C.bpx_section_t, h capi.Handle) {
	if out != nil {
		*out = C.bpx_section_t(h)
	}
}

//export bpx_section_load
func bpx_section_load(c C.bpx_container_t, sh C.bpx_handle_t, out *C.bpx_section_t) C.bpx_error_t {
	var h capi.Handle
	st := capi.Default.SectionLoad(capi.Handle(c), uint32(sh), &h)
	emitSection(out, h)
	return status(st)
}

//export bpx_section_open
func bpx_section_open(c C.bpx_container_t, sh C.bpx_handle_t, out *C.bpx_section_t) C.bpx_error_t {
	var h capi.Handle
	st := capi.Default.SectionOpen(capi.Handle(c), uint32(sh), &h)
	emitSection(out, h)
	return status(st)
}

//export bpx_section_read
func bpx_section_read(s C.bpx_section_t, buf *C.uint8_t, size C.size_t, n *C.size_t) C.bpx_error_t {
	var nn uint64
	st := capi.Default.SectionRead(capi.Handle(s), bytesOf(buf, size), &nn)
	setSize(n, nn)
	return status(st)
}

//export bpx_section_write
func bpx_section_write(s C.bpx_section_t, buf *C.uint8_t, size C.size_t, n *C.size_t) C.bpx_error_t {
	var nn uint64
	st := capi.Default.SectionWrite(capi.Handle(s), bytesOf(buf, size), &nn)
	setSize(n, nn)
	return status(st)
}

//export bpx_section_write_append
func bpx_section_write_append(s C.bpx_section_t, buf *C.uint8_t, size C.size_t, n *C.size_t) C.bpx_error_t {
	var nn uint64
	st := capi.Default.SectionWriteAppend(capi.Handle(s), bytesOf(buf, size), &nn)
	setSize(n, nn)
	return status(st)
}

//export bpx_section_seek
func bpx_section_seek(s C.bpx_section_t, pos C.uint64_t, newPos *C.uint64_t) C.bpx_error_t {
	var np uint64
	st := capi.Default.SectionSeek(capi.Handle(s), uint64(pos), &np)
	setU64(newPos, np)
	return status(st)
}

//export bpx_section_flush
func bpx_section_flush(s C.bpx_section_t) C.bpx_error_t {
	return status(capi.Default.SectionFlush(capi.Handle(s)))
}

//export bpx_section_truncate
func bpx_section_truncate(s C.bpx_section_t, size C.uint64_t, newSize *C.uint64_t) C.bpx_error_t {
	var ns uint64
	st := capi.Default.SectionTruncate(capi.Handle(s), uint64(size), &ns)
	setU64(newSize, ns)
	return status(st)
}

//export bpx_section_shift
func bpx_section_shift(s C.bpx_section_t, amount C.int64_t) C.bpx_error_t {
	return status(capi.Default.SectionShift(capi.Handle(s), int64(amount)))
}

// bpx_section_size returns BPX_SIZE_ERROR for invalid handles.
//
//export bpx_section_size
func bpx_section_size(s C.bpx_section_t) C.uint64_t {
	return C.uint64_t(capi.Default.SectionSize(capi.Handle(s)))
}

//export bpx_section_close
func bpx_section_close(s *C.bpx_section_t) C.bpx_error_t {
	if s == nil {
		return status(capi.StatusInvalidHandle)
	}

	h := capi.Handle(*s)
	st := capi.Default.SectionClose(&h)
	*s = C.bpx_section_t(h)
	return status(st)
}
