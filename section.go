package bpx

import (
	"errors"
	"io"
	"math"
)

var errNegativePosition = errors.New("bpx: negative section position")

// Section is an exclusive, seekable accessor to the content of a loaded
// section. It must be closed to allow the section to be loaded again.
type Section struct {
	c      *Container
	s      *section
	pos    int64
	closed bool
}

func (r *Section) check() error {
	if r.closed || r.c.closed {
		return ErrClosed
	}
	return nil
}

// Size returns the current content size in bytes.
func (r *Section) Size() int64 {
	if r.check() != nil {
		return 0
	}
	return int64(len(r.s.data))
}

// Read implements io.Reader.
func (r *Section) Read(p []byte) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	if r.pos >= int64(len(r.s.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.s.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

// Write implements io.Writer. Writing past the end grows the section.
func (r *Section) Write(p []byte) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	end := r.pos + int64(len(p))
	if end > math.MaxUint32 {
		return 0, ErrCapacity
	}
	r.grow(end)
	n := copy(r.s.data[r.pos:], p)
	r.pos += int64(n)
	return n, nil
}

// WriteAppend writes p at the end of the section and moves the cursor there.
func (r *Section) WriteAppend(p []byte) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	r.pos = int64(len(r.s.data))
	return r.Write(p)
}

// Seek implements io.Seeker.
func (r *Section) Seek(offset int64, whence int) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = int64(len(r.s.data)) + offset
	default:
		return 0, errors.New("bpx: invalid whence")
	}
	if abs < 0 {
		return 0, errNegativePosition
	}
	r.pos = abs
	return abs, nil
}

// Flush is a no-op for resident content; payloads are persisted by Container.Save.
func (r *Section) Flush() error {
	return r.check()
}

// Truncate shrinks the section to size bytes and returns the resulting
// size, which is unchanged when size is not smaller than the current one.
func (r *Section) Truncate(size int64) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, errNegativePosition
	}
	if size < int64(len(r.s.data)) {
		r.s.data = r.s.data[:size]
	}
	if r.pos > int64(len(r.s.data)) {
		r.pos = int64(len(r.s.data))
	}
	return int64(len(r.s.data)), nil
}

// Shift moves the content from the cursor onwards by n bytes. A positive n
// inserts n zero bytes at the cursor, a negative n removes up to |n| bytes
// in front of it. The cursor follows the moved content.
func (r *Section) Shift(n int64) error {
	if err := r.check(); err != nil {
		return err
	}
	if r.pos > int64(len(r.s.data)) {
		r.grow(r.pos)
	}

	switch {
	case n > 0:
		size := int64(len(r.s.data)) + n
		if size > math.MaxUint32 {
			return ErrCapacity
		}
		r.grow(size)
		copy(r.s.data[r.pos+n:], r.s.data[r.pos:size-n])
		clear(r.s.data[r.pos : r.pos+n])
		r.pos += n
	case n < 0:
		if -n > r.pos {
			n = -r.pos
		}
		r.s.data = append(r.s.data[:r.pos+n], r.s.data[r.pos:]...)
		r.pos += n
	}
	return nil
}

// Close releases the accessor. Closing twice is a no-op.
func (r *Section) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.s.inUse.Store(false)
	return nil
}

func (r *Section) grow(size int64) {
	if size <= int64(len(r.s.data)) {
		return
	}
	if size <= int64(cap(r.s.data)) {
		old := len(r.s.data)
		r.s.data = r.s.data[:size]
		clear(r.s.data[old:])
		return
	}
	data := make([]byte, size, size+size/4)
	copy(data, r.s.data)
	r.s.data = data
}
