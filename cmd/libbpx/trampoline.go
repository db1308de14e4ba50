package main

/*
#include <stdlib.h>
#include "bpx.h"

static inline bpx_error_t bpx_io_seek(bpx_container_io_t *io, bpx_seek_from_t from, uint64_t pos, uint64_t *new_pos)
{
    return io->seek(io->userdata, from, pos, new_pos);
}

static inline bpx_error_t bpx_io_read(bpx_container_io_t *io, uint8_t *buffer, size_t size, size_t *n)
{
    return io->read(io->userdata, buffer, size, n);
}

static inline bpx_error_t bpx_io_write(bpx_container_io_t *io, const uint8_t *buffer, size_t size, size_t *n)
{
    return io->write(io->userdata, buffer, size, n);
}

static inline bpx_error_t bpx_io_flush(bpx_container_io_t *io)
{
    return io->flush(io->userdata);
}

static inline bpx_container_io_t *bpx_io_copy(const bpx_container_io_t *io)
{
    bpx_container_io_t *cp = malloc(sizeof(bpx_container_io_t));
    if (cp != NULL)
        *cp = *io;
    return cp;
}
*/
import "C"

import (
	"unsafe"

	"github.com/bsm/bpx/stream"
)

// callbacks adapts a C callback bundle. The bundle is copied, so callers
// may pass a stack allocated struct; the copy is freed by Close.
func callbacks(src *C.bpx_container_io_t) (stream.Callbacks, bool) {
	if src == nil || src.seek == nil || src.read == nil {
		return stream.Callbacks{}, false
	}
	io := C.bpx_io_copy(src)
	if io == nil {
		return stream.Callbacks{}, false
	}

	cb := stream.Callbacks{
		Seek: func(origin stream.Origin, offset uint64) (uint64, uint32) {
			var pos C.uint64_t
			st := C.bpx_io_seek(io, C.bpx_seek_from_t(origin), C.uint64_t(offset), &pos)
			return uint64(pos), uint32(st)
		},
		Read: func(p []byte) (int, uint32) {
			var n C.size_t
			st := C.bpx_io_read(io, (*C.uint8_t)(unsafe.Pointer(&p[0])), C.size_t(len(p)), &n)
			return int(n), uint32(st)
		},
		Close: func() {
			C.free(unsafe.Pointer(io))
		},
	}
	if io.write != nil {
		cb.Write = func(p []byte) (int, uint32) {
			if len(p) == 0 {
				return 0, stream.StatusOK
			}
			var n C.size_t
			st := C.bpx_io_write(io, (*C.uint8_t)(unsafe.Pointer(&p[0])), C.size_t(len(p)), &n)
			return int(n), uint32(st)
		}
	}
	if io.flush != nil {
		cb.Flush = func() uint32 {
			return uint32(C.bpx_io_flush(io))
		}
	}
	return cb, true
}
