package bpx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/ulikunitz/xz"
)

// CodecErrorKind classifies compression failures.
type CodecErrorKind byte

// Codec failure kinds.
const (
	CodecUnknown CodecErrorKind = iota
	CodecMemory
	CodecUnsupported
	CodecData
	CodecIO
)

func (k CodecErrorKind) String() string {
	switch k {
	case CodecMemory:
		return "memory"
	case CodecUnsupported:
		return "unsupported"
	case CodecData:
		return "data"
	case CodecIO:
		return "io"
	default:
		return "unknown"
	}
}

// CodecError is returned when a section payload cannot be inflated or deflated.
type CodecError struct {
	Op   string // "inflate" or "deflate"
	Kind CodecErrorKind
	Err  error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bpx: %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("bpx: %s (%s)", e.Op, e.Kind)
}

func (e *CodecError) Unwrap() error { return e.Err }

func inflateErr(kind CodecErrorKind, err error) error {
	return &CodecError{Op: "inflate", Kind: kind, Err: err}
}

func deflateErr(kind CodecErrorKind, err error) error {
	return &CodecError{Op: "deflate", Kind: kind, Err: err}
}

var errOutputOverflow = errors.New("output exceeds declared size")

const (
	maxPrealloc = 1 << 20

	// a 3 byte snappy copy tag expands to at most 64 bytes
	maxSnappyRatio = 24
)

// trackReader remembers backend failures so they can be told apart from
// corrupt payloads.
type trackReader struct {
	r   io.Reader
	err error
}

func (t *trackReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// inflate reads csize stored bytes from r and returns size bytes of content.
func inflate(r io.Reader, c Compression, csize, size uint32) ([]byte, error) {
	if c == NoCompression || c == SnappyCompression {
		raw := make([]byte, csize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		if c == NoCompression {
			return raw, nil
		}
		return inflateSnappy(raw, size)
	}

	src := &trackReader{r: io.LimitReader(r, int64(csize))}
	var dec io.Reader
	switch c {
	case ZlibCompression:
		zr, err := zlib.NewReader(src)
		if err != nil {
			return nil, classifyInflate(src, err)
		}
		defer zr.Close()
		dec = zr
	case XzCompression:
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, classifyInflate(src, err)
		}
		dec = xr
	default:
		return nil, inflateErr(CodecUnsupported, fmt.Errorf("compression %s", c))
	}

	// grow with the decoded data, the declared size is untrusted
	out := bytes.NewBuffer(make([]byte, 0, min(size, maxPrealloc)))
	n, err := out.ReadFrom(io.LimitReader(dec, int64(size)+1))
	if err != nil {
		return nil, classifyInflate(src, err)
	}
	if n > int64(size) {
		return nil, inflateErr(CodecMemory, errOutputOverflow)
	}
	if n < int64(size) {
		return nil, inflateErr(CodecData, io.ErrUnexpectedEOF)
	}
	return out.Bytes(), nil
}

func inflateSnappy(raw []byte, size uint32) ([]byte, error) {
	n, err := snappy.DecodedLen(raw)
	if err != nil {
		return nil, inflateErr(CodecData, err)
	}
	if n != int(size) {
		return nil, inflateErr(CodecMemory, errOutputOverflow)
	}
	if uint64(n) > maxSnappyRatio*uint64(len(raw)) {
		return nil, inflateErr(CodecData, snappy.ErrCorrupt)
	}
	plain, err := snappy.Decode(make([]byte, n), raw)
	if err == snappy.ErrUnsupported {
		return nil, inflateErr(CodecUnsupported, err)
	} else if err != nil {
		return nil, inflateErr(CodecData, err)
	}
	return plain, nil
}

func classifyInflate(src *trackReader, err error) error {
	if src.err != nil {
		return inflateErr(CodecIO, src.err)
	}
	switch {
	case errors.Is(err, zlib.ErrChecksum), errors.Is(err, zlib.ErrHeader),
		errors.Is(err, zlib.ErrDictionary), errors.Is(err, io.ErrUnexpectedEOF):
		return inflateErr(CodecData, err)
	}
	return inflateErr(CodecUnknown, err)
}

// deflate compresses plain. The returned slice is only valid until the
// next call to releaseBuffer.
func deflate(c Compression, plain []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return plain, nil
	case SnappyCompression:
		return snappy.Encode(fetchBuffer(snappy.MaxEncodedLen(len(plain))), plain), nil
	}

	buf := bytes.NewBuffer(fetchBuffer(len(plain) / 2)[:0])
	var w io.WriteCloser
	switch c {
	case ZlibCompression:
		w = zlib.NewWriter(buf)
	case XzCompression:
		xw, err := xz.NewWriter(buf)
		if err != nil {
			return nil, deflateErr(CodecUnknown, err)
		}
		w = xw
	default:
		return nil, deflateErr(CodecUnsupported, fmt.Errorf("compression %s", c))
	}

	if _, err := w.Write(plain); err != nil {
		return nil, deflateErr(CodecUnknown, err)
	}
	if err := w.Close(); err != nil {
		return nil, deflateErr(CodecUnknown, err)
	}
	return buf.Bytes(), nil
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p) //nolint:staticcheck
	}
}
