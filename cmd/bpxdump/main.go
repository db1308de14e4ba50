// Command bpxdump prints the headers of BPX containers and decodes their
// structured data and string table sections.
//
//	bpxdump [--format yaml|json|cbor|msgpack] [--key name]... FILE...
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "bpxdump: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		format   string
		keys     []string
		logLevel string
		noData   bool
	)

	flagSet := pflag.NewFlagSet("bpxdump", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&format, "format", "f", "yaml", "output format (yaml, json, cbor, msgpack)")
	flagSet.StringSliceVarP(&keys, "key", "k", nil, "object key names to resolve in decoded sections")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&noData, "headers-only", false, "do not decode section contents")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	paths := flagSet.Args()
	if len(paths) == 0 {
		return errors.New("no input files")
	}

	enc, ok := encoders[format]
	if !ok {
		return fmt.Errorf("unknown format %q", format)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger := newLogger(stderr, level)

	d := &dumper{
		logger: logger,
		names:  newKeyNames(keys),
		data:   !noData,
	}
	for _, path := range paths {
		rep, err := d.dump(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := enc(stdout, rep); err != nil {
			return fmt.Errorf("%s: encoding %s: %w", path, format, err)
		}
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}
