package main

/*
#include "bpx.h"
*/
import "C"

import (
	"math"
	"unsafe"

	"github.com/bsm/bpx"
	"github.com/bsm/bpx/capi"
)

func containerOptions(o *C.bpx_container_options_t) *capi.ContainerOptions {
	if o == nil {
		return nil
	}
	co := &capi.ContainerOptions{
		Type:    uint8(o.ty),
		Version: uint32(o.version),
	}
	for i := range co.TypeExt {
		co.TypeExt[i] = byte(o.type_ext[i])
	}
	return co
}

func emitContainer(out *C.bpx_container_t, h capi.Handle) {
	if out != nil {
		*out = C.bpx_container_t(h)
	}
}

//export bpx_container_open
func bpx_container_open(path *C.char, out *C.bpx_container_t) C.bpx_error_t {
	if path == nil {
		return status(capi.StatusInvalidPath)
	}

	var h capi.Handle
	st := capi.Default.ContainerOpen(C.GoString(path), &h)
	emitContainer(out, h)
	return status(st)
}

//export bpx_container_create
func bpx_container_create(path *C.char, opts *C.bpx_container_options_t, out *C.bpx_container_t) C.bpx_error_t {
	if path == nil {
		return status(capi.StatusInvalidPath)
	}

	var h capi.Handle
	st := capi.Default.ContainerCreate(C.GoString(path), containerOptions(opts), &h)
	emitContainer(out, h)
	return status(st)
}

//export bpx_container_open2
func bpx_container_open2(io *C.bpx_container_io_t, out *C.bpx_container_t) C.bpx_error_t {
	cb, ok := callbacks(io)
	if !ok {
		return status(capi.StatusUnsupported)
	}

	var h capi.Handle
	st := capi.Default.ContainerOpenStream(cb, &h)
	emitContainer(out, h)
	return status(st)
}

//export bpx_container_create2
func bpx_container_create2(io *C.bpx_container_io_t, opts *C.bpx_container_options_t, out *C.bpx_container_t) C.bpx_error_t {
	cb, ok := callbacks(io)
	if !ok {
		return status(capi.StatusUnsupported)
	}

	var h capi.Handle
	st := capi.Default.ContainerCreateStream(cb, containerOptions(opts), &h)
	emitContainer(out, h)
	return status(st)
}

//export bpx_container_get_main_header
func bpx_container_get_main_header(c C.bpx_container_t, out *C.bpx_main_header_t) C.bpx_error_t {
	var mh bpx.MainHeader
	if st := capi.Default.ContainerGetMainHeader(capi.Handle(c), &mh); st != capi.StatusOK {
		return status(st)
	}
	if out == nil {
		return status(capi.StatusOK)
	}

	for i, b := range mh.Signature {
		out.signature[i] = C.uint8_t(b)
	}
	out.ty = C.uint8_t(mh.Type)
	out.chksum = C.uint32_t(mh.Checksum)
	out.file_size = C.uint64_t(mh.FileSize)
	out.section_num = C.uint32_t(mh.SectionCount)
	out.version = C.uint32_t(mh.Version)
	for i, b := range mh.TypeExt {
		out.type_ext[i] = C.uint8_t(b)
	}
	return status(capi.StatusOK)
}

// bpx_container_list_sections copies up to size section handles into out and
// returns the number of handles copied.
//
//export bpx_container_list_sections
func bpx_container_list_sections(c C.bpx_container_t, out *C.bpx_handle_t, size C.size_t) C.size_t {
	if out == nil {
		return 0
	}
	// section counts are 32 bit
	dst := unsafe.Slice((*uint32)(unsafe.Pointer(out)), min(uint64(size), math.MaxUint32))
	return C.size_t(capi.Default.ContainerListSections(capi.Handle(c), dst))
}

//export bpx_container_find_section_by_type
func bpx_container_find_section_by_type(c C.bpx_container_t, ty C.uint8_t, out *C.bpx_handle_t) C.bool {
	var sh uint32
	ok := capi.Default.ContainerFindSectionByType(capi.Handle(c), uint8(ty), &sh)
	if ok && out != nil {
		*out = C.bpx_handle_t(sh)
	}
	return C.bool(ok)
}

//export bpx_container_find_section_by_index
func bpx_container_find_section_by_index(c C.bpx_container_t, idx C.uint32_t, out *C.bpx_handle_t) C.bool {
	var sh uint32
	ok := capi.Default.ContainerFindSectionByIndex(capi.Handle(c), uint32(idx), &sh)
	if ok && out != nil {
		*out = C.bpx_handle_t(sh)
	}
	return C.bool(ok)
}

//export bpx_container_create_section
func bpx_container_create_section(c C.bpx_container_t, opts *C.bpx_section_options_t, out *C.bpx_handle_t) C.bpx_error_t {
	var so *capi.SectionOptions
	if opts != nil {
		so = &capi.SectionOptions{
			Size:      uint32(opts.size),
			Type:      uint8(opts.ty),
			Flags:     uint8(opts.flags),
			Threshold: uint32(opts.threshold),
		}
	}

	var sh uint32
	st := capi.Default.ContainerCreateSection(capi.Handle(c), so, &sh)
	if st == capi.StatusOK && out != nil {
		*out = C.bpx_handle_t(sh)
	}
	return status(st)
}

//export bpx_container_save
func bpx_container_save(c C.bpx_container_t) C.bpx_error_t {
	return status(capi.Default.ContainerSave(capi.Handle(c)))
}

// bpx_container_close closes the container with all its loaded sections
// and resets *c to zero.
//
//export bpx_container_close
func bpx_container_close(c *C.bpx_container_t) C.bpx_error_t {
	if c == nil {
		return status(capi.StatusInvalidHandle)
	}

	h := capi.Handle(*c)
	st := capi.Default.ContainerClose(&h)
	*c = C.bpx_container_t(h)
	return status(st)
}
