// Package stream adapts local files and caller-supplied callbacks into the
// single read/write/seek/flush stream a BPX container is stored on.
//
// Callbacks report a status code per call. StatusOK is success, StatusIO
// is a generic I/O failure, and every other code is a caller-defined error:
// it is kept in a one-slot LastError field and the call fails with
// ErrCustom, so the code can be handed back to the caller unmodified once
// the surrounding operation has failed.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Callback status codes with a fixed meaning.
const (
	StatusOK uint32 = 0x0
	StatusIO uint32 = 0x6
)

// Origin is the reference point of a callback seek.
type Origin uint8

// Seek origins.
const (
	Start Origin = iota
	End
	Current
)

var (
	// ErrIO is returned when a callback reports StatusIO.
	ErrIO = errors.New("stream: i/o failure")
	// ErrCustom is returned when a callback reports a caller-defined code.
	ErrCustom = errors.New("stream: custom callback failure")
	// ErrUnsupported is returned when an optional callback is missing.
	ErrUnsupported = fmt.Errorf("stream: %w", errors.ErrUnsupported)
	// ErrFileOpen wraps failures to open a local file.
	ErrFileOpen = errors.New("stream: cannot open file")
	// ErrFileCreate wraps failures to create a local file.
	ErrFileCreate = errors.New("stream: cannot create file")
)

// Callbacks is a caller-supplied I/O bundle. Seek and Read are mandatory,
// Write, Flush and Close are optional.
type Callbacks struct {
	// Seek moves to offset relative to origin and returns the new absolute position.
	// Offsets relative to End or Current are two's complement encoded.
	Seek func(origin Origin, offset uint64) (uint64, uint32)
	// Read fills p and returns the number of bytes read.
	Read func(p []byte) (int, uint32)
	// Write writes p and returns the number of bytes written.
	Write func(p []byte) (int, uint32)
	// Flush commits buffered data.
	Flush func() uint32
	// Close releases the caller context once the adapter is discarded.
	Close func()
}

// Adapter is either a file or a callback bundle. It is owned by exactly
// one container and is not safe for concurrent use.
type Adapter struct {
	file *os.File
	cb   *Callbacks

	lastErr uint32
}

// FromFile wraps an open file.
func FromFile(f *os.File) *Adapter {
	return &Adapter{file: f}
}

// FromCallbacks wraps a callback bundle. It returns an error when a
// mandatory callback is missing.
func FromCallbacks(cb Callbacks) (*Adapter, error) {
	if cb.Seek == nil || cb.Read == nil {
		return nil, errors.New("stream: seek and read callbacks are mandatory")
	}
	return &Adapter{cb: &cb}, nil
}

// OpenFile opens an existing file for reading and writing.
func OpenFile(name string) (*Adapter, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		if f, err = os.Open(name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFileOpen, err)
		}
	}
	return FromFile(f), nil
}

// CreateFile creates or truncates a file.
func CreateFile(name string) (*Adapter, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileCreate, err)
	}
	return FromFile(f), nil
}

// LastError returns the last caller-defined code reported by a callback,
// or StatusOK.
func (a *Adapter) LastError() uint32 {
	return a.lastErr
}

// Read implements io.Reader.
func (a *Adapter) Read(p []byte) (int, error) {
	if a.file != nil {
		return a.file.Read(p)
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, status := a.cb.Read(p)
	if err := a.translate(status); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer.
func (a *Adapter) Write(p []byte) (int, error) {
	if a.file != nil {
		return a.file.Write(p)
	}
	if a.cb.Write == nil {
		return 0, ErrUnsupported
	}

	n, status := a.cb.Write(p)
	if err := a.translate(status); err != nil {
		return 0, err
	}
	return n, nil
}

// Seek implements io.Seeker.
func (a *Adapter) Seek(offset int64, whence int) (int64, error) {
	if a.file != nil {
		return a.file.Seek(offset, whence)
	}

	var origin Origin
	switch whence {
	case io.SeekStart:
		if offset < 0 {
			return 0, errors.New("stream: negative seek offset")
		}
		origin = Start
	case io.SeekEnd:
		origin = End
	case io.SeekCurrent:
		origin = Current
	default:
		return 0, errors.New("stream: invalid whence")
	}

	pos, status := a.cb.Seek(origin, uint64(offset))
	if err := a.translate(status); err != nil {
		return 0, err
	}
	return int64(pos), nil
}

// Flush commits buffered data.
func (a *Adapter) Flush() error {
	if a.file != nil {
		return a.file.Sync()
	}
	if a.cb.Flush == nil {
		return ErrUnsupported
	}
	return a.translate(a.cb.Flush())
}

// Truncate resizes the backing file. Callback streams return ErrUnsupported.
func (a *Adapter) Truncate(size int64) error {
	if a.file != nil {
		return a.file.Truncate(size)
	}
	return ErrUnsupported
}

// Close closes the file or releases the callback context.
func (a *Adapter) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	if a.cb.Close != nil {
		a.cb.Close()
	}
	return nil
}

func (a *Adapter) translate(status uint32) error {
	switch status {
	case StatusOK:
		return nil
	case StatusIO:
		return ErrIO
	}
	a.lastErr = status
	return fmt.Errorf("%w: code %#x", ErrCustom, status)
}
