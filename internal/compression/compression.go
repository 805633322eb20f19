// Package compression provides the stream compressors used for corpus batch payloads.
package compression

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Kind identifies a payload compression algorithm.
type Kind uint8

const (
	// None stores payloads uncompressed.
	None Kind = iota
	// Zstd is the default: good ratio at high speed.
	Zstd
	// Gzip is portable to every downstream tool.
	Gzip
	// LZ4 favors decode speed over ratio.
	LZ4
	// Bzip2 is read-only; it exists for batches written by older pipeline versions.
	Bzip2
)

// ErrUnsupported is returned when a kind cannot be used in the requested direction.
var ErrUnsupported = errors.New("compression: unsupported")

var kinds = []struct {
	kind Kind
	name string
	ext  string
}{
	{None, "none", ""},
	{Zstd, "zstd", ".zst"},
	{Gzip, "gzip", ".gz"},
	{LZ4, "lz4", ".lz4"},
	{Bzip2, "bzip2", ".bz2"},
}

// String returns the stable name of the kind.
func (k Kind) String() string {
	for _, e := range kinds {
		if e.kind == k {
			return e.name
		}
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// Extension returns the file extension (with leading dot) for the kind.
// None has an empty extension.
func (k Kind) Extension() string {
	for _, e := range kinds {
		if e.kind == k {
			return e.ext
		}
	}
	return ""
}

// Parse returns the kind for a stable name such as "zstd".
func Parse(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, e := range kinds {
		if e.name == name {
			return e.kind, nil
		}
	}
	return None, fmt.Errorf("%w: unknown compression %q", ErrUnsupported, name)
}

// FromExtension detects the kind from a file name suffix. Names without a
// known compression suffix are reported as None.
func FromExtension(name string) Kind {
	for _, e := range kinds {
		if e.ext != "" && strings.HasSuffix(name, e.ext) {
			return e.kind
		}
	}
	return None
}

// Writable reports whether NewWriter supports the kind.
func (k Kind) Writable() bool {
	switch k {
	case None, Zstd, Gzip, LZ4:
		return true
	default:
		return false
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with a compressing writer. Closing the returned writer
// flushes the compressed stream but does not close w.
func NewWriter(w io.Writer, k Kind) (io.WriteCloser, error) {
	switch k {
	case None:
		return nopWriteCloser{w}, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("compression: zstd writer: %w", err)
		}
		return enc, nil
	case Gzip:
		gz, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("compression: gzip writer: %w", err)
		}
		return gz, nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
			return nil, fmt.Errorf("compression: lz4 writer: %w", err)
		}
		return lw, nil
	default:
		return nil, fmt.Errorf("%w: cannot write %s", ErrUnsupported, k)
	}
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r with a decompressing reader. Closing the returned reader
// releases decoder resources but does not close r.
func NewReader(r io.Reader, k Kind) (io.ReadCloser, error) {
	switch k {
	case None:
		return io.NopCloser(r), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("compression: zstd reader: %w", err)
		}
		return zstdReadCloser{dec}, nil
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("compression: gzip reader: %w", err)
		}
		return gz, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: cannot read %s", ErrUnsupported, k)
	}
}
