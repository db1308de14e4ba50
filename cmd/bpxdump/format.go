package main

import (
	"encoding/json"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

type encodeFunc func(io.Writer, *report) error

var encoders = map[string]encodeFunc{
	"yaml":    encodeYAML,
	"json":    encodeJSON,
	"cbor":    encodeCBOR,
	"msgpack": encodeMsgpack,
}

// cborMode produces deterministic output: sorted map keys, smallest
// integer encoding.
var cborMode cbor.EncMode

func init() {
	var err error
	if cborMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("bpxdump: CBOR encoder initialization failed: " + err.Error())
	}
}

func encodeYAML(w io.Writer, rep *report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}

func encodeJSON(w io.Writer, rep *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// encodeCBOR relies on the json struct tags, which cbor falls back to.
func encodeCBOR(w io.Writer, rep *report) error {
	return cborMode.NewEncoder(w).Encode(rep)
}

func encodeMsgpack(w io.Writer, rep *report) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(rep)
}
