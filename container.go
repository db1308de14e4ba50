package bpx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
)

// Backend is the stream a container is stored on. The container takes
// exclusive ownership of it and closes it on Close, when it implements
// io.Closer.
type Backend interface {
	io.ReadWriteSeeker
	Flush() error
}

// Options define container specific options.
type Options struct {
	// Logger receives debug records.
	// Default: slog.Default().
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Logger == nil {
		oo.Logger = slog.Default()
	}

	return &oo
}

// Handle identifies a section within one container. Handles are stable
// for the container's lifetime.
type Handle uint32

type section struct {
	header    SectionHeader
	comp      Compression // requested codec, applied above threshold on save
	chk       Checksum
	threshold uint32
	data      []byte // resident content
	resident  bool
	stored    []byte // payload read back by a failed Save
	inUse     atomic.Bool
}

// Container instances manage a BPX container stored on a Backend.
// Containers are not safe for concurrent use, except that section
// exclusivity is enforced atomically.
type Container struct {
	backend  Backend
	header   MainHeader
	sections []*section
	logger   *slog.Logger
	closed   bool
}

// Open decodes the container stored on backend. Section content is not
// loaded until requested.
func Open(backend Backend, o *Options) (*Container, error) {
	o = o.norm()

	if _, err := backend.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("bpx: seeking main header: %w", err)
	}

	tmp := make([]byte, mainHeaderSize)
	if _, err := io.ReadFull(backend, tmp); err != nil {
		return nil, fmt.Errorf("bpx: reading main header: %w", err)
	}

	c := &Container{backend: backend, logger: o.Logger}
	c.header.unmarshal(tmp)
	if c.header.Signature != signature {
		return nil, ErrBadSignature
	}
	if v := c.header.Version; v != Version1 && v != Version2 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	expected := c.header.Checksum
	tmp[4], tmp[5], tmp[6], tmp[7] = 0, 0, 0, 0
	sum := weakSum(0, tmp)

	tmp = tmp[:sectionHeaderSize]
	for i := uint32(0); i < c.header.SectionCount; i++ {
		if _, err := io.ReadFull(backend, tmp); err != nil {
			return nil, fmt.Errorf("bpx: reading section header %d: %w", i, err)
		}
		sum = weakSum(sum, tmp)

		s := &section{threshold: DefaultThreshold}
		s.header.unmarshal(tmp)
		s.comp, s.chk = s.header.Compression(), s.header.ChecksumAlgorithm()
		c.sections = append(c.sections, s)
	}

	if sum != expected {
		return nil, &ChecksumError{Expected: expected, Actual: sum}
	}

	c.logger.Debug("bpx: opened container", "type", c.header.Type, "version", c.header.Version, "sections", len(c.sections))
	return c, nil
}

// Create starts a new, empty container on backend. Nothing is written
// until Save is called.
func Create(backend Backend, h *MainHeaderOptions, o *Options) *Container {
	h, o = h.norm(), o.norm()

	c := &Container{backend: backend, logger: o.Logger}
	c.header = MainHeader{
		Signature: signature,
		Type:      h.Type,
		Version:   h.Version,
		TypeExt:   h.TypeExt,
		FileSize:  mainHeaderSize,
	}

	c.logger.Debug("bpx: created container", "type", c.header.Type, "version", c.header.Version)
	return c
}

// MainHeader returns a snapshot of the main header.
func (c *Container) MainHeader() MainHeader {
	return c.header
}

// NumSections returns the number of sections.
func (c *Container) NumSections() int {
	return len(c.sections)
}

// Sections returns the handles of all sections, in container order.
func (c *Container) Sections() []Handle {
	hs := make([]Handle, len(c.sections))
	for i := range c.sections {
		hs[i] = Handle(i)
	}
	return hs
}

// FindSectionByType returns the first section of type t.
func (c *Container) FindSectionByType(t uint8) (Handle, bool) {
	for i, s := range c.sections {
		if s.header.Type == t {
			return Handle(i), true
		}
	}
	return 0, false
}

// FindSectionByIndex returns the section at container position idx.
func (c *Container) FindSectionByIndex(idx uint32) (Handle, bool) {
	if uint64(idx) >= uint64(len(c.sections)) {
		return 0, false
	}
	return Handle(idx), true
}

// SectionHeader returns a snapshot of the section header as last read or saved.
func (c *Container) SectionHeader(h Handle) (SectionHeader, error) {
	s, err := c.section(h)
	if err != nil {
		return SectionHeader{}, err
	}
	return s.header, nil
}

// CreateSection appends a new, empty and resident section.
func (c *Container) CreateSection(o *SectionOptions) (Handle, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if uint64(len(c.sections)) >= math.MaxUint32 {
		return 0, ErrCapacity
	}
	o = o.norm()

	hint := int(o.Size)
	if hint > 1<<20 {
		hint = 1 << 20
	}
	s := &section{
		header: SectionHeader{
			Size:  o.Size,
			Type:  o.Type,
			Flags: o.Checksum.flag() | o.Compression.flag(),
		},
		comp:      o.Compression,
		chk:       o.Checksum,
		threshold: o.Threshold,
		data:      make([]byte, 0, hint),
		resident:  true,
	}
	c.sections = append(c.sections, s)
	c.header.SectionCount = uint32(len(c.sections))
	return Handle(len(c.sections) - 1), nil
}

// Load returns an exclusive accessor to the section content, reading it
// from the backend first if it is not resident.
func (c *Container) Load(h Handle) (*Section, error) {
	s, err := c.acquire(h)
	if err != nil {
		return nil, err
	}

	if !s.resident {
		data, err := c.readSection(s)
		if err != nil {
			s.inUse.Store(false)
			return nil, err
		}
		s.data, s.resident = data, true
	}
	return &Section{c: c, s: s}, nil
}

// Open returns an exclusive accessor to resident section content without
// touching the backend. It fails with ErrSectionNotLoaded for sections
// that were neither created nor loaded in this session.
func (c *Container) Open(h Handle) (*Section, error) {
	s, err := c.acquire(h)
	if err != nil {
		return nil, err
	}

	if !s.resident {
		s.inUse.Store(false)
		return nil, ErrSectionNotLoaded
	}
	return &Section{c: c, s: s}, nil
}

// Save writes all headers and section payloads to the backend and flushes it.
// The in-memory layout is only updated once everything was written, so a
// failed Save can be retried.
func (c *Container) Save() error {
	if c.closed {
		return ErrClosed
	}
	if uint64(len(c.sections)) > math.MaxUint32 {
		return ErrCapacity
	}

	// materialise stored payloads first, the layout below overwrites them
	payloads := make([][]byte, len(c.sections))
	pooled := make([]bool, len(c.sections))
	defer func() {
		for i, p := range payloads {
			if pooled[i] {
				releaseBuffer(p)
			}
		}
	}()

	for i, s := range c.sections {
		if s.resident {
			continue
		}
		raw, err := c.readRaw(s)
		if err != nil {
			return err
		}
		payloads[i] = raw
	}

	headers := make([]SectionHeader, len(c.sections))
	offset := uint64(mainHeaderSize) + uint64(len(c.sections))*sectionHeaderSize
	for i, s := range c.sections {
		if !s.resident {
			headers[i] = s.header
			headers[i].Pointer = offset
			offset += uint64(len(payloads[i]))
			continue
		}
		if uint64(len(s.data)) > math.MaxUint32 {
			return fmt.Errorf("%w: section %d is %d bytes", ErrCapacity, i, len(s.data))
		}

		comp := NoCompression
		if want := s.comp; want != NoCompression && uint64(len(s.data)) > uint64(s.threshold) {
			comp = want
		}
		stored, err := deflate(comp, s.data)
		if err != nil {
			return err
		}
		payloads[i], pooled[i] = stored, comp != NoCompression
		if uint64(len(stored)) > math.MaxUint32 {
			return fmt.Errorf("%w: section %d compresses to %d bytes", ErrCapacity, i, len(stored))
		}

		chk := s.chk
		headers[i] = SectionHeader{
			Pointer:        offset,
			CompressedSize: uint32(len(stored)),
			Size:           uint32(len(s.data)),
			Checksum:       checksum(chk, s.data),
			Type:           s.header.Type,
			Flags:          chk.flag() | comp.flag(),
		}
		offset += uint64(len(stored))
	}

	mh := c.header
	mh.SectionCount = uint32(len(c.sections))
	mh.FileSize = offset
	if err := c.writeAll(&mh, headers, payloads); err != nil {
		// the backend may be partially overwritten, keep stored payloads in memory
		for i, s := range c.sections {
			if !s.resident {
				s.stored = payloads[i]
			}
		}
		return err
	}

	c.header = mh
	for i, s := range c.sections {
		s.header, s.stored = headers[i], nil
	}

	c.logger.Debug("bpx: saved container", "sections", len(c.sections), "size", offset)
	return nil
}

// Close releases the container and closes the backend. Section
// accessors become unusable.
func (c *Container) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	for _, s := range c.sections {
		s.data = nil
	}
	c.sections = nil

	c.logger.Debug("bpx: closed container")
	if cl, ok := c.backend.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c *Container) section(h Handle) (*section, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if uint64(h) >= uint64(len(c.sections)) {
		return nil, ErrInvalidHandle
	}
	return c.sections[h], nil
}

func (c *Container) acquire(h Handle) (*section, error) {
	s, err := c.section(h)
	if err != nil {
		return nil, err
	}
	if !s.inUse.CompareAndSwap(false, true) {
		return nil, ErrSectionInUse
	}
	return s, nil
}

// seekSection positions the backend at the stored payload of s. Payloads
// must lie within the backend, so corrupt headers cannot trigger large
// allocations.
func (c *Container) seekSection(s *section) error {
	end, err := c.backend.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("bpx: seeking end: %w", err)
	}
	if last := s.header.Pointer + uint64(s.header.CompressedSize); last < s.header.Pointer || last > uint64(end) {
		return fmt.Errorf("%w: section payload at %d+%d exceeds %d bytes", ErrCapacity, s.header.Pointer, s.header.CompressedSize, end)
	}
	if _, err := c.backend.Seek(int64(s.header.Pointer), io.SeekStart); err != nil {
		return fmt.Errorf("bpx: seeking section: %w", err)
	}
	return nil
}

func (c *Container) readSection(s *section) ([]byte, error) {
	var r io.Reader = c.backend
	if s.stored != nil {
		r = bytes.NewReader(s.stored)
	} else if err := c.seekSection(s); err != nil {
		return nil, err
	}

	data, err := inflate(r, s.header.Compression(), s.header.CompressedSize, s.header.Size)
	if err != nil {
		return nil, err
	}

	if chk := s.header.ChecksumAlgorithm(); chk != NoChecksum {
		if sum := checksum(chk, data); sum != s.header.Checksum {
			return nil, &ChecksumError{Expected: s.header.Checksum, Actual: sum}
		}
	}
	return data, nil
}

func (c *Container) readRaw(s *section) ([]byte, error) {
	if s.stored != nil {
		return s.stored, nil
	}
	if err := c.seekSection(s); err != nil {
		return nil, err
	}
	raw := make([]byte, s.header.CompressedSize)
	if _, err := io.ReadFull(c.backend, raw); err != nil {
		return nil, fmt.Errorf("bpx: reading section: %w", err)
	}
	return raw, nil
}

func (c *Container) writeAll(mh *MainHeader, headers []SectionHeader, payloads [][]byte) error {
	tmp := make([]byte, mainHeaderSize+len(headers)*sectionHeaderSize)

	mh.Checksum = 0
	mh.marshal(tmp)
	for i := range headers {
		off := mainHeaderSize + i*sectionHeaderSize
		headers[i].marshal(tmp[off : off+sectionHeaderSize])
	}
	mh.Checksum = weakSum(0, tmp)
	mh.marshal(tmp[:mainHeaderSize])

	if _, err := c.backend.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("bpx: seeking main header: %w", err)
	}
	if err := c.writeRaw(tmp); err != nil {
		return fmt.Errorf("bpx: writing headers: %w", err)
	}
	for i, p := range payloads {
		if err := c.writeRaw(p); err != nil {
			return fmt.Errorf("bpx: writing section %d: %w", i, err)
		}
	}

	if t, ok := c.backend.(interface{ Truncate(int64) error }); ok {
		if err := t.Truncate(int64(mh.FileSize)); err != nil && !errors.Is(err, errors.ErrUnsupported) {
			return fmt.Errorf("bpx: truncating backend: %w", err)
		}
	}
	if err := c.backend.Flush(); err != nil && !errors.Is(err, errors.ErrUnsupported) {
		return fmt.Errorf("bpx: flushing backend: %w", err)
	}
	return nil
}

func (c *Container) writeRaw(p []byte) error {
	for len(p) != 0 {
		n, err := c.backend.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
