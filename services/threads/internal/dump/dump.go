// Package dump opens newline-delimited comment dumps, plain or compressed,
// and streams them line by line.
package dump

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxLine bounds a single record. Comment bodies are capped well
// below this by the upstream site, but dumps carry extra metadata.
const DefaultMaxLine = 16 << 20

// pushshift archives are compressed with --long=31.
const zstdMaxWindow = 1 << 31

// Open opens path for reading, decompressing .zst and .gz files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f, zstd.WithDecoderMaxWindow(zstdMaxWindow), zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		return &readCloser{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			f.Close,
		}}, nil
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &readCloser{Reader: gz, closers: []func() error{gz.Close, f.Close}}, nil
	default:
		return f, nil
	}
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lines calls fn for every non-blank line of r with its 1-based line
// number. The slice passed to fn is only valid until fn returns. Lines
// stops at the first error returned by fn.
func Lines(r io.Reader, maxLine int, fn func(lineNo int, line []byte) error) error {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	initial := 64 * 1024
	if initial > maxLine {
		initial = maxLine
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initial), maxLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", lineNo+1, err)
	}
	return nil
}
