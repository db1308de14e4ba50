package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/bsm/bpx"
	"github.com/bsm/bpx/sd"
	"github.com/bsm/bpx/stream"
)

type report struct {
	File     string          `json:"file" yaml:"file"`
	Header   headerReport    `json:"header" yaml:"header"`
	Sections []sectionReport `json:"sections" yaml:"sections"`
}

type headerReport struct {
	Signature    string `json:"signature" yaml:"signature"`
	Type         uint8  `json:"type" yaml:"type"`
	Checksum     uint32 `json:"checksum" yaml:"checksum"`
	FileSize     uint64 `json:"file_size" yaml:"file_size"`
	SectionCount uint32 `json:"section_count" yaml:"section_count"`
	Version      uint32 `json:"version" yaml:"version"`
	TypeExt      string `json:"type_ext" yaml:"type_ext"`
}

type sectionReport struct {
	Index          int    `json:"index" yaml:"index"`
	Type           uint8  `json:"type" yaml:"type"`
	Pointer        uint64 `json:"pointer" yaml:"pointer"`
	Size           uint32 `json:"size" yaml:"size"`
	CompressedSize uint32 `json:"compressed_size" yaml:"compressed_size"`
	Checksum       uint32 `json:"checksum" yaml:"checksum"`
	Algorithm      string `json:"algorithm" yaml:"algorithm"`
	Compression    string `json:"compression" yaml:"compression"`
	Data           any    `json:"data,omitempty" yaml:"data,omitempty"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
}

// keyNames maps object key hashes back to known names.
type keyNames map[uint64]string

func newKeyNames(keys []string) keyNames {
	names := make(keyNames, len(keys))
	for _, k := range keys {
		names[sd.Hash(k)] = k
	}
	return names
}

func (n keyNames) key(hash uint64) string {
	if name, ok := n[hash]; ok {
		return name
	}
	return fmt.Sprintf("0x%016x", hash)
}

// plain rewrites hash keyed objects into string keyed maps, all output
// formats support those.
func (n keyNames) plain(x any) any {
	switch x := x.(type) {
	case map[uint64]any:
		out := make(map[string]any, len(x))
		for h, v := range x {
			out[n.key(h)] = n.plain(v)
		}
		return out
	case []any:
		for i, v := range x {
			x[i] = n.plain(v)
		}
		return x
	}
	return x
}

type dumper struct {
	logger *slog.Logger
	names  keyNames
	data   bool
}

func (d *dumper) dump(path string) (*report, error) {
	a, err := stream.OpenFile(path)
	if err != nil {
		return nil, err
	}

	c, err := bpx.Open(a, &bpx.Options{Logger: d.logger})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	defer c.Close()

	mh := c.MainHeader()
	rep := &report{
		File: path,
		Header: headerReport{
			Signature:    string(mh.Signature[:]),
			Type:         mh.Type,
			Checksum:     mh.Checksum,
			FileSize:     mh.FileSize,
			SectionCount: mh.SectionCount,
			Version:      mh.Version,
			TypeExt:      hex.EncodeToString(mh.TypeExt[:]),
		},
	}

	for i, h := range c.Sections() {
		sh, err := c.SectionHeader(h)
		if err != nil {
			return nil, err
		}

		sr := sectionReport{
			Index:          i,
			Type:           sh.Type,
			Pointer:        sh.Pointer,
			Size:           sh.Size,
			CompressedSize: sh.CompressedSize,
			Checksum:       sh.Checksum,
			Algorithm:      sh.ChecksumAlgorithm().String(),
			Compression:    sh.Compression().String(),
		}
		if d.data {
			if data, err := d.decode(c, h, sh.Type); err != nil {
				d.logger.Warn("section not decoded", "file", path, "index", i, "error", err)
				sr.Error = err.Error()
			} else {
				sr.Data = data
			}
		}
		rep.Sections = append(rep.Sections, sr)
	}
	return rep, nil
}

func (d *dumper) decode(c *bpx.Container, h bpx.Handle, typ uint8) (any, error) {
	if typ != bpx.TypeStructuredData && typ != bpx.TypeStringTable {
		return nil, nil
	}

	s, err := c.Load(h)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if typ == bpx.TypeStringTable {
		return readStrings(s)
	}

	root, err := sd.DecodeObject(s)
	if err != nil {
		return nil, err
	}
	defer root.Free()

	return d.names.plain(sd.ToAny(root)), nil
}

// readStrings splits a string table into its NUL terminated entries.
func readStrings(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSuffix(data, []byte{0})
	if len(data) == 0 {
		return []string{}, nil
	}

	parts := bytes.Split(data, []byte{0})
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = string(p)
	}
	return strs, nil
}
