// Command libbpx builds the C shared library:
//
//	go build -buildmode=c-shared -o libbpx.so ./cmd/libbpx
//
// The exported symbols are declared in bpx.h. All functions forward to
// capi.Default.
package main

/*
#include "bpx.h"
*/
import "C"

import (
	"unsafe"

	"github.com/bsm/bpx/capi"
)

func main() {}

func bytesOf(buf *C.uint8_t, size C.size_t) []byte {
	if buf == nil || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(size))
}

func setSize(out *C.size_t, n uint64) {
	if out != nil {
		*out = C.size_t(n)
	}
}

func setU64(out *C.uint64_t, n uint64) {
	if out != nil {
		*out = C.uint64_t(n)
	}
}

func status(st capi.Status) C.bpx_error_t { return C.bpx_error_t(st) }
