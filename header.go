package bpx

import "encoding/binary"

// MainHeader is the decoded container header.
type MainHeader struct {
	Signature    [3]byte
	Type         uint8
	Checksum     uint32
	FileSize     uint64
	SectionCount uint32
	Version      uint32
	TypeExt      [16]byte
}

func (h *MainHeader) marshal(dst []byte) {
	copy(dst[0:3], h.Signature[:])
	dst[3] = h.Type
	binary.LittleEndian.PutUint32(dst[4:], h.Checksum)
	binary.LittleEndian.PutUint64(dst[8:], h.FileSize)
	binary.LittleEndian.PutUint32(dst[16:], h.SectionCount)
	binary.LittleEndian.PutUint32(dst[20:], h.Version)
	copy(dst[24:40], h.TypeExt[:])
}

func (h *MainHeader) unmarshal(src []byte) {
	copy(h.Signature[:], src[0:3])
	h.Type = src[3]
	h.Checksum = binary.LittleEndian.Uint32(src[4:])
	h.FileSize = binary.LittleEndian.Uint64(src[8:])
	h.SectionCount = binary.LittleEndian.Uint32(src[16:])
	h.Version = binary.LittleEndian.Uint32(src[20:])
	copy(h.TypeExt[:], src[24:40])
}

// SectionHeader is the decoded, read-only descriptor of a section.
type SectionHeader struct {
	Pointer        uint64
	CompressedSize uint32
	Size           uint32
	Checksum       uint32
	Type           uint8
	Flags          uint8
}

// Compression returns the codec the section payload is stored with.
func (h SectionHeader) Compression() Compression { return compressionOf(h.Flags) }

// ChecksumAlgorithm returns the checksum algorithm the section is verified with.
func (h SectionHeader) ChecksumAlgorithm() Checksum { return checksumOf(h.Flags) }

func (h *SectionHeader) marshal(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:], h.Pointer)
	binary.LittleEndian.PutUint32(dst[8:], h.CompressedSize)
	binary.LittleEndian.PutUint32(dst[12:], h.Size)
	binary.LittleEndian.PutUint32(dst[16:], h.Checksum)
	dst[20] = h.Type
	dst[21] = h.Flags
	dst[22], dst[23] = 0, 0
}

func (h *SectionHeader) unmarshal(src []byte) {
	h.Pointer = binary.LittleEndian.Uint64(src[0:])
	h.CompressedSize = binary.LittleEndian.Uint32(src[8:])
	h.Size = binary.LittleEndian.Uint32(src[12:])
	h.Checksum = binary.LittleEndian.Uint32(src[16:])
	h.Type = src[20]
	h.Flags = src[21]
}

// --------------------------------------------------------------------

// MainHeaderOptions define the header of a newly created container.
type MainHeaderOptions struct {
	// Type is the container type byte.
	Type uint8

	// Version is the format version.
	// Default: CurrentVersion.
	Version uint32

	// TypeExt is free-form, type specific header data.
	TypeExt [16]byte
}

func (o *MainHeaderOptions) norm() *MainHeaderOptions {
	var oo MainHeaderOptions
	if o != nil {
		oo = *o
	}

	if oo.Version == 0 {
		oo.Version = CurrentVersion
	}

	return &oo
}

// SectionOptions define a newly created section.
type SectionOptions struct {
	// Size is a hint of the expected content size in bytes.
	Size uint32

	// Type is the section type byte.
	Type uint8

	// The checksum algorithm.
	// Default: NoChecksum.
	Checksum Checksum

	// The compression codec.
	// Default: NoCompression.
	Compression Compression

	// Threshold is the content size in bytes above which the section is
	// compressed.
	// Default: DefaultThreshold.
	Threshold uint32
}

func (o *SectionOptions) norm() *SectionOptions {
	var oo SectionOptions
	if o != nil {
		oo = *o
	}

	if !oo.Checksum.isValid() {
		oo.Checksum = NoChecksum
	}
	if !oo.Compression.isValid() {
		oo.Compression = NoCompression
	}
	if oo.Threshold == 0 {
		oo.Threshold = DefaultThreshold
	}

	return &oo
}
