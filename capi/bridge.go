// Package capi exposes containers, loaded sections and structured data
// values to foreign callers through opaque handles and status codes.
//
// Every owned object lives in a handle table of a Bridge. Handles are
// generation checked, so using a handle after its object was closed or
// freed yields StatusInvalidHandle. Close and free operations take a
// pointer to the caller's handle and reset it to zero. Nil output pointers
// are ignored.
//
// Operations on one container and its sections must not run concurrently.
package capi

import (
	"log/slog"
	"sync"

	"github.com/bsm/bpx"
	"github.com/bsm/bpx/internal/handle"
	"github.com/bsm/bpx/sd"
	"github.com/bsm/bpx/stream"
)

// Handle is an opaque object reference. Zero is the null handle.
type Handle = handle.Handle

// Options define bridge specific options.
type Options struct {
	// Logger receives debug records of failed operations.
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

type container struct {
	c        *bpx.Container
	adapter  *stream.Adapter
	sections map[Handle]struct{}
}

type loadedSection struct {
	owner *container
	s     *bpx.Section
}

// Bridge owns the handle tables.
type Bridge struct {
	mu         sync.Mutex
	containers handle.Table[*container]
	sections   handle.Table[*loadedSection]
	payloads   handle.Table[sd.Payload]

	logger *slog.Logger
	opts   bpx.Options
}

// Default is the bridge used by the C exports.
var Default = New(nil)

// New inits a new bridge.
func New(o *Options) *Bridge {
	o = o.norm()
	return &Bridge{
		logger: o.Logger,
		opts:   bpx.Options{Logger: o.Logger},
	}
}

func setOut[T any](out *T, v T) {
	if out != nil {
		*out = v
	}
}

func (b *Bridge) fail(op string, err error, fallback Status, a *stream.Adapter) Status {
	st := statusOf(err, fallback, a)
	b.logger.Debug("capi: operation failed", "op", op, "status", st, "error", err)
	return st
}

func (b *Bridge) container(h Handle) (*container, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.containers.Get(h)
}

func (b *Bridge) section(h Handle) (*loadedSection, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sections.Get(h)
}

func (b *Bridge) register(c *bpx.Container, a *stream.Adapter) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.containers.Insert(&container{c: c, adapter: a, sections: make(map[Handle]struct{})})
}

// --------------------------------------------------------------------

// ContainerOptions define the main header of a new container.
type ContainerOptions struct {
	Type    uint8
	Version uint32
	TypeExt [16]byte
}

// ContainerOpen opens the container stored at path.
func (b *Bridge) ContainerOpen(path string, out *Handle) Status {
	if path == "" {
		return StatusInvalidPath
	}

	a, err := stream.OpenFile(path)
	if err != nil {
		return b.fail("container open", err, StatusFileOpen, nil)
	}
	return b.open(a, out)
}

// ContainerCreate creates, or truncates, a container file at path.
// Nothing is written until ContainerSave.
func (b *Bridge) ContainerCreate(path string, o *ContainerOptions, out *Handle) Status {
	if path == "" {
		return StatusInvalidPath
	}

	a, err := stream.CreateFile(path)
	if err != nil {
		return b.fail("container create", err, StatusFileCreate, nil)
	}
	return b.create(a, o, out)
}

// ContainerOpenStream opens a container stored on a callback stream.
// cb.Close is invoked when the container is closed or fails to open.
func (b *Bridge) ContainerOpenStream(cb stream.Callbacks, out *Handle) Status {
	a, err := stream.FromCallbacks(cb)
	if err != nil {
		if cb.Close != nil {
			cb.Close()
		}
		return b.fail("container open stream", err, StatusUnsupported, nil)
	}
	return b.open(a, out)
}

// ContainerCreateStream creates a container on a callback stream.
func (b *Bridge) ContainerCreateStream(cb stream.Callbacks, o *ContainerOptions, out *Handle) Status {
	a, err := stream.FromCallbacks(cb)
	if err != nil {
		if cb.Close != nil {
			cb.Close()
		}
		return b.fail("container create stream", err, StatusUnsupported, nil)
	}
	return b.create(a, o, out)
}

func (b *Bridge) open(a *stream.Adapter, out *Handle) Status {
	c, err := bpx.Open(a, &b.opts)
	if err != nil {
		st := b.fail("container open", err, StatusIO, a)
		_ = a.Close()
		return st
	}
	setOut(out, b.register(c, a))
	return StatusOK
}

func (b *Bridge) create(a *stream.Adapter, o *ContainerOptions, out *Handle) Status {
	var ho bpx.MainHeaderOptions
	if o != nil {
		ho = bpx.MainHeaderOptions{Type: o.Type, Version: o.Version, TypeExt: o.TypeExt}
	}

	c := bpx.Create(a, &ho, &b.opts)
	setOut(out, b.register(c, a))
	return StatusOK
}

// ContainerGetMainHeader copies the main header into out.
func (b *Bridge) ContainerGetMainHeader(h Handle, out *bpx.MainHeader) Status {
	c, ok := b.container(h)
	if !ok {
		return StatusInvalidHandle
	}
	setOut(out, c.c.MainHeader())
	return StatusOK
}

// ContainerListSections copies up to len(dst) section handles into dst and
// returns the number copied.
func (b *Bridge) ContainerListSections(h Handle, dst []uint32) int {
	c, ok := b.container(h)
	if !ok {
		return 0
	}

	var n int
	for _, sh := range c.c.Sections() {
		if n == len(dst) {
			break
		}
		dst[n] = uint32(sh)
		n++
	}
	return n
}

// ContainerFindSectionByType looks up the first section of type t.
func (b *Bridge) ContainerFindSectionByType(h Handle, t uint8, out *uint32) bool {
	c, ok := b.container(h)
	if !ok {
		return false
	}

	sh, ok := c.c.FindSectionByType(t)
	if ok {
		setOut(out, uint32(sh))
	}
	return ok
}

// ContainerFindSectionByIndex looks up the section at position idx.
func (b *Bridge) ContainerFindSectionByIndex(h Handle, idx uint32, out *uint32) bool {
	c, ok := b.container(h)
	if !ok {
		return false
	}

	sh, ok := c.c.FindSectionByIndex(idx)
	if ok {
		setOut(out, uint32(sh))
	}
	return ok
}

// ContainerCreateSection appends a new section and stores its handle in out.
func (b *Bridge) ContainerCreateSection(h Handle, o *SectionOptions, out *uint32) Status {
	c, ok := b.container(h)
	if !ok {
		return StatusInvalidHandle
	}

	sh, err := c.c.CreateSection(o.convert())
	if err != nil {
		return b.fail("container create section", err, StatusCapacity, c.adapter)
	}
	setOut(out, uint32(sh))
	return StatusOK
}

// ContainerSave writes the container to its stream.
func (b *Bridge) ContainerSave(h Handle) Status {
	c, ok := b.container(h)
	if !ok {
		return StatusInvalidHandle
	}

	if err := c.c.Save(); err != nil {
		return b.fail("container save", err, StatusIO, c.adapter)
	}
	return StatusOK
}

// ContainerClose closes the container, all sections loaded from it and its
// stream, and resets *h. Unsaved changes are discarded.
func (b *Bridge) ContainerClose(h *Handle) Status {
	if h == nil || h.IsNull() {
		return StatusOK
	}

	b.mu.Lock()
	c, ok := b.containers.Release(*h)
	if ok {
		for sh := range c.sections {
			if ls, ok := b.sections.Release(sh); ok {
				_ = ls.s.Close()
			}
		}
		c.sections = nil
	}
	b.mu.Unlock()

	*h = handle.Null
	if !ok {
		return StatusInvalidHandle
	}

	if err := c.c.Close(); err != nil {
		return b.fail("container close", err, StatusIO, c.adapter)
	}
	return StatusOK
}

// --------------------------------------------------------------------

// Section option flags.
const (
	FlagZlib      uint8 = 0x1
	FlagXz        uint8 = 0x2
	FlagWeak      uint8 = 0x4
	FlagCrc32     uint8 = 0x8
	FlagThreshold uint8 = 0x10
	FlagSnappy    uint8 = 0x20
)

// SectionOptions define a new section.
type SectionOptions struct {
	// Size is a hint of the expected content size.
	Size uint32
	// Type is the section type.
	Type uint8
	// Flags select the checksum, the compression and whether Threshold applies.
	// CRC32 overrides Weak. Snappy overrides Xz which overrides Zlib.
	Flags uint8
	// Threshold is the content size above which the section is compressed.
	Threshold uint32
}

func (o *SectionOptions) convert() *bpx.SectionOptions {
	if o == nil {
		return nil
	}

	so := &bpx.SectionOptions{Size: o.Size, Type: o.Type}
	if o.Flags&FlagWeak != 0 {
		so.Checksum = bpx.WeakChecksum
	}
	if o.Flags&FlagCrc32 != 0 {
		so.Checksum = bpx.Crc32Checksum
	}
	if o.Flags&FlagZlib != 0 {
		so.Compression = bpx.ZlibCompression
	}
	if o.Flags&FlagXz != 0 {
		so.Compression = bpx.XzCompression
	}
	if o.Flags&FlagSnappy != 0 {
		so.Compression = bpx.SnappyCompression
	}
	if o.Flags&FlagThreshold != 0 {
		so.Threshold = o.Threshold
	}
	return so
}
