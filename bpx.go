package bpx

import (
	"errors"
	"fmt"
)

var signature = [3]byte{'B', 'P', 'X'}

// Format versions.
const (
	Version1       uint32 = 1
	Version2       uint32 = 2
	CurrentVersion        = Version2
)

const (
	mainHeaderSize    = 40
	sectionHeaderSize = 24
)

// DefaultThreshold is the content size in bytes above which sections are
// compressed, unless overridden by SectionOptions.Threshold.
const DefaultThreshold = 65536

// Well-known section types.
const (
	TypeStructuredData uint8 = 0xFE
	TypeStringTable    uint8 = 0xFF
)

// On-disk section header flags.
const (
	FlagCompressZlib   uint8 = 0x1
	FlagCompressXz     uint8 = 0x2
	FlagCheckCrc32     uint8 = 0x4
	FlagCheckWeak      uint8 = 0x8
	FlagCompressSnappy uint8 = 0x10
)

var (
	// ErrBadSignature is returned when the stream does not start with a BPX signature.
	ErrBadSignature = errors.New("bpx: bad signature")
	// ErrBadVersion is returned for unknown format versions.
	ErrBadVersion = errors.New("bpx: unsupported version")
	// ErrCapacity is returned when a section count or size overflows the format.
	ErrCapacity = errors.New("bpx: capacity exceeded")
	// ErrSectionNotLoaded is returned by Open for sections that are not resident.
	ErrSectionNotLoaded = errors.New("bpx: section not loaded")
	// ErrSectionInUse is returned when a section already has an open accessor.
	ErrSectionInUse = errors.New("bpx: section in use")
	// ErrInvalidHandle is returned for handles that do not name a section.
	ErrInvalidHandle = errors.New("bpx: invalid section handle")
	// ErrClosed is returned when using a closed container or section.
	ErrClosed = errors.New("bpx: is closed")
)

// ChecksumError reports a checksum mismatch.
type ChecksumError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("bpx: checksum mismatch, expected %#08x, got %#08x", e.Expected, e.Actual)
}

// --------------------------------------------------------------------

// Checksum is the section checksum algorithm.
type Checksum byte

// Supported checksum algorithms.
const (
	NoChecksum Checksum = iota
	WeakChecksum
	Crc32Checksum
	unknownChecksum
)

func (c Checksum) isValid() bool {
	return c < unknownChecksum
}

func (c Checksum) String() string {
	switch c {
	case NoChecksum:
		return "none"
	case WeakChecksum:
		return "weak"
	case Crc32Checksum:
		return "crc32"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

func (c Checksum) flag() uint8 {
	switch c {
	case WeakChecksum:
		return FlagCheckWeak
	case Crc32Checksum:
		return FlagCheckCrc32
	}
	return 0
}

// Compression is the section compression codec.
type Compression byte

// Supported compression codecs.
const (
	NoCompression Compression = iota
	ZlibCompression
	XzCompression
	SnappyCompression
	unknownCompression
)

func (c Compression) isValid() bool {
	return c < unknownCompression
}

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case ZlibCompression:
		return "zlib"
	case XzCompression:
		return "xz"
	case SnappyCompression:
		return "snappy"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

func (c Compression) flag() uint8 {
	switch c {
	case ZlibCompression:
		return FlagCompressZlib
	case XzCompression:
		return FlagCompressXz
	case SnappyCompression:
		return FlagCompressSnappy
	}
	return 0
}

func compressionOf(flags uint8) Compression {
	switch {
	case flags&FlagCompressZlib != 0:
		return ZlibCompression
	case flags&FlagCompressXz != 0:
		return XzCompression
	case flags&FlagCompressSnappy != 0:
		return SnappyCompression
	}
	return NoCompression
}

func checksumOf(flags uint8) Checksum {
	switch {
	case flags&FlagCheckCrc32 != 0:
		return Crc32Checksum
	case flags&FlagCheckWeak != 0:
		return WeakChecksum
	}
	return NoChecksum
}
