package capi

import (
	"errors"
	"io"
	"math"

	"github.com/bsm/bpx"
	"github.com/bsm/bpx/internal/handle"
)

// SizeError is returned by size queries for invalid handles.
const SizeError uint64 = math.MaxUint64

// SectionGetHeader copies the header of section sh into out.
func (b *Bridge) SectionGetHeader(h Handle, sh uint32, out *bpx.SectionHeader) Status {
	c, ok := b.container(h)
	if !ok {
		return StatusInvalidHandle
	}

	hdr, err := c.c.SectionHeader(bpx.Handle(sh))
	if err != nil {
		return b.fail("section get header", err, StatusInvalidHandle, c.adapter)
	}
	setOut(out, hdr)
	return StatusOK
}

// SectionLoad reads section sh from the stream, unless it is resident, and
// stores an exclusive accessor in out.
func (b *Bridge) SectionLoad(h Handle, sh uint32, out *Handle) Status {
	return b.acquire("section load", h, sh, out, (*bpx.Container).Load)
}

// SectionOpen stores an exclusive accessor to resident section sh in out.
// Sections that were neither created nor loaded fail with
// StatusSectionNotLoaded.
func (b *Bridge) SectionOpen(h Handle, sh uint32, out *Handle) Status {
	return b.acquire("section open", h, sh, out, (*bpx.Container).Open)
}

func (b *Bridge) acquire(op string, h Handle, sh uint32, out *Handle, fn func(*bpx.Container, bpx.Handle) (*bpx.Section, error)) Status {
	c, ok := b.container(h)
	if !ok {
		return StatusInvalidHandle
	}

	s, err := fn(c.c, bpx.Handle(sh))
	if err != nil {
		return b.fail(op, err, StatusIO, c.adapter)
	}

	b.mu.Lock()
	lh := b.sections.Insert(&loadedSection{owner: c, s: s})
	c.sections[lh] = struct{}{}
	b.mu.Unlock()

	setOut(out, lh)
	return StatusOK
}

// SectionRead zeroes buf, reads into it and stores the number of bytes
// read in n. Reading at the end of the section reads 0 bytes.
func (b *Bridge) SectionRead(s Handle, buf []byte, n *uint64) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}

	clear(buf)
	m, err := ls.s.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return b.fail("section read", err, StatusSectionIO, nil)
	}
	setOut(n, uint64(m))
	return StatusOK
}

// SectionWrite writes buf at the cursor.
func (b *Bridge) SectionWrite(s Handle, buf []byte, n *uint64) Status {
	return b.write("section write", s, buf, n, false)
}

// SectionWriteAppend writes buf at the end of the section.
func (b *Bridge) SectionWriteAppend(s Handle, buf []byte, n *uint64) Status {
	return b.write("section write append", s, buf, n, true)
}

func (b *Bridge) write(op string, s Handle, buf []byte, n *uint64, appnd bool) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}

	var (
		m   int
		err error
	)
	if appnd {
		m, err = ls.s.WriteAppend(buf)
	} else {
		m, err = ls.s.Write(buf)
	}
	if err != nil {
		return b.fail(op, err, StatusSectionIO, nil)
	}
	setOut(n, uint64(m))
	return StatusOK
}

// SectionSeek moves the cursor to the absolute position pos and stores the
// new position in out.
func (b *Bridge) SectionSeek(s Handle, pos uint64, out *uint64) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}
	if pos > math.MaxInt64 {
		return StatusSectionIO
	}

	abs, err := ls.s.Seek(int64(pos), io.SeekStart)
	if err != nil {
		return b.fail("section seek", err, StatusSectionIO, nil)
	}
	setOut(out, uint64(abs))
	return StatusOK
}

// SectionFlush flushes the section.
func (b *Bridge) SectionFlush(s Handle) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}

	if err := ls.s.Flush(); err != nil {
		return b.fail("section flush", err, StatusSectionIO, nil)
	}
	return StatusOK
}

// SectionTruncate shrinks the section to size bytes and stores the
// resulting size in out.
func (b *Bridge) SectionTruncate(s Handle, size uint64, out *uint64) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}
	if size > math.MaxInt64 {
		size = math.MaxInt64
	}

	res, err := ls.s.Truncate(int64(size))
	if err != nil {
		return b.fail("section truncate", err, StatusSectionIO, nil)
	}
	setOut(out, uint64(res))
	return StatusOK
}

// SectionShift moves the content from the cursor onwards by amount bytes,
// to the right for positive and to the left for negative amounts.
func (b *Bridge) SectionShift(s Handle, amount int64) Status {
	ls, ok := b.section(s)
	if !ok {
		return StatusInvalidHandle
	}

	if err := ls.s.Shift(amount); err != nil {
		return b.fail("section shift", err, StatusSectionIO, nil)
	}
	return StatusOK
}

// SectionSize returns the content size or SizeError.
func (b *Bridge) SectionSize(s Handle) uint64 {
	ls, ok := b.section(s)
	if !ok {
		return SizeError
	}
	return uint64(ls.s.Size())
}

// SectionClose releases the accessor and resets *s. The section can be
// loaded or opened again afterwards.
func (b *Bridge) SectionClose(s *Handle) Status {
	if s == nil || s.IsNull() {
		return StatusOK
	}

	b.mu.Lock()
	ls, ok := b.sections.Release(*s)
	if ok && ls.owner.sections != nil {
		delete(ls.owner.sections, *s)
	}
	b.mu.Unlock()

	*s = handle.Null
	if !ok {
		return StatusInvalidHandle
	}
	if err := ls.s.Close(); err != nil {
		return b.fail("section close", err, StatusSectionIO, nil)
	}
	return StatusOK
}
