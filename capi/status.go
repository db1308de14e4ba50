package capi

import (
	"errors"
	"fmt"

	"github.com/bsm/bpx"
	"github.com/bsm/bpx/sd"
	"github.com/bsm/bpx/stream"
)

// Status is the result code of a fallible operation. Zero is success.
type Status uint32

// Status codes. Codes returned by stream callbacks that are not listed
// here are passed back unmodified; callers should pick custom codes from
// 0x100 upwards.
const (
	StatusOK               Status = 0x0
	StatusInvalidPath      Status = 0x1
	StatusFileOpen         Status = 0x2
	StatusFileCreate       Status = 0x3
	StatusSectionIO        Status = 0x4
	StatusChecksum         Status = 0x5
	StatusIO               Status = 0x6
	StatusBadVersion       Status = 0x7
	StatusBadSignature     Status = 0x8
	StatusInflate          Status = 0x9
	StatusDeflate          Status = 0xA
	StatusSectionNotLoaded Status = 0xB
	StatusCapacity         Status = 0xC
	StatusSectionInUse     Status = 0xD
	StatusUnsupported      Status = 0xE
	StatusInvalidHandle    Status = 0xF
	StatusSdTruncation     Status = 0x10
	StatusSdBadTypeCode    Status = 0x11
	StatusSdUtf8           Status = 0x12
	StatusSdCapacity       Status = 0x13
	StatusNotAnObject      Status = 0x14

	StatusInflateMemory      Status = 0x15
	StatusInflateUnsupported Status = 0x16
	StatusInflateData        Status = 0x17
	StatusInflateUnknown     Status = 0x18
	StatusInflateIO          Status = 0x19
	StatusDeflateMemory      Status = 0x1A
	StatusDeflateUnsupported Status = 0x1B
	StatusDeflateData        Status = 0x1C
	StatusDeflateUnknown     Status = 0x1D
	StatusDeflateIO          Status = 0x1E

	StatusIndexOutOfRange Status = 0x1F
	StatusTypeMismatch    Status = 0x20
)

var statusNames = map[Status]string{
	StatusOK:                 "ok",
	StatusInvalidPath:        "invalid path",
	StatusFileOpen:           "file open",
	StatusFileCreate:         "file create",
	StatusSectionIO:          "section io",
	StatusChecksum:           "checksum mismatch",
	StatusIO:                 "io",
	StatusBadVersion:         "bad version",
	StatusBadSignature:       "bad signature",
	StatusInflate:            "inflate",
	StatusDeflate:            "deflate",
	StatusSectionNotLoaded:   "section not loaded",
	StatusCapacity:           "capacity",
	StatusSectionInUse:       "section in use",
	StatusUnsupported:        "unsupported",
	StatusInvalidHandle:      "invalid handle",
	StatusSdTruncation:       "sd truncation",
	StatusSdBadTypeCode:      "sd bad type code",
	StatusSdUtf8:             "sd utf-8",
	StatusSdCapacity:         "sd capacity",
	StatusNotAnObject:        "not an object",
	StatusInflateMemory:      "inflate memory",
	StatusInflateUnsupported: "inflate unsupported",
	StatusInflateData:        "inflate data",
	StatusInflateUnknown:     "inflate unknown",
	StatusInflateIO:          "inflate io",
	StatusDeflateMemory:      "deflate memory",
	StatusDeflateUnsupported: "deflate unsupported",
	StatusDeflateData:        "deflate data",
	StatusDeflateUnknown:     "deflate unknown",
	StatusDeflateIO:          "deflate io",
	StatusIndexOutOfRange:    "index out of range",
	StatusTypeMismatch:       "type mismatch",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("custom(%#x)", uint32(s))
}

var codecStatus = map[string][5]Status{
	"inflate": {StatusInflateUnknown, StatusInflateMemory, StatusInflateUnsupported, StatusInflateData, StatusInflateIO},
	"deflate": {StatusDeflateUnknown, StatusDeflateMemory, StatusDeflateUnsupported, StatusDeflateData, StatusDeflateIO},
}

// statusOf translates err. Unclassified errors map to fallback. When err
// carries a custom callback code, the code last recorded by a is returned.
func statusOf(err error, fallback Status, a *stream.Adapter) Status {
	if err == nil {
		return StatusOK
	}

	var (
		chkErr   *bpx.ChecksumError
		codecErr *bpx.CodecError
		tcErr    *sd.TypeCodeError
	)
	switch {
	case errors.Is(err, stream.ErrCustom):
		if a != nil && a.LastError() != 0 {
			return Status(a.LastError())
		}
		return StatusIO
	case errors.Is(err, stream.ErrIO):
		return StatusIO
	case errors.Is(err, stream.ErrFileOpen):
		return StatusFileOpen
	case errors.Is(err, stream.ErrFileCreate):
		return StatusFileCreate
	case errors.Is(err, errors.ErrUnsupported):
		return StatusUnsupported
	case errors.As(err, &codecErr):
		if codes, ok := codecStatus[codecErr.Op]; ok && int(codecErr.Kind) < len(codes) {
			return codes[codecErr.Kind]
		}
		if codecErr.Op == "deflate" {
			return StatusDeflate
		}
		return StatusInflate
	case errors.As(err, &chkErr):
		return StatusChecksum
	case errors.Is(err, bpx.ErrBadSignature):
		return StatusBadSignature
	case errors.Is(err, bpx.ErrBadVersion):
		return StatusBadVersion
	case errors.Is(err, bpx.ErrCapacity):
		return StatusCapacity
	case errors.Is(err, bpx.ErrSectionNotLoaded):
		return StatusSectionNotLoaded
	case errors.Is(err, bpx.ErrSectionInUse):
		return StatusSectionInUse
	case errors.Is(err, bpx.ErrInvalidHandle), errors.Is(err, bpx.ErrClosed), errors.Is(err, sd.ErrReleased):
		return StatusInvalidHandle
	case errors.Is(err, sd.ErrTruncated):
		return StatusSdTruncation
	case errors.As(err, &tcErr):
		return StatusSdBadTypeCode
	case errors.Is(err, sd.ErrInvalidUTF8):
		return StatusSdUtf8
	case errors.Is(err, sd.ErrCapacity):
		return StatusSdCapacity
	case errors.Is(err, sd.ErrNotAnObject):
		return StatusNotAnObject
	case errors.Is(err, sd.ErrIndexOutOfRange):
		return StatusIndexOutOfRange
	}
	return fallback
}
