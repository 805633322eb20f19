// Package npy reads and writes float32 matrices in the NPY v1.0 format.
//
// Only little-endian float32 ('<f4') in C order is supported; that is the
// only layout the vector files use.
package npy

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	magic = "\x93NUMPY"
	descr = "<f4"
	// header (magic + version + length + dict) is padded to this boundary.
	align = 64
)

// ErrFormat is returned for input that is not a supported NPY file.
var ErrFormat = errors.New("npy: invalid format")

// Header describes the array stored in an NPY file.
type Header struct {
	Descr        string
	FortranOrder bool
	Rows, Cols   int
	// Offset is the byte offset of the array data.
	Offset int
}

func headerDict(rows, cols int) string {
	return fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", descr, rows, cols)
}

// Write writes a rows x cols float32 matrix. len(data) must equal rows*cols.
func Write(w io.Writer, data []float32, rows, cols int) error {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return fmt.Errorf("npy: data length %d does not match shape (%d, %d)", len(data), rows, cols)
	}

	dict := headerDict(rows, cols)
	// 6 magic + 2 version + 2 length, dict, trailing newline
	pad := align - (10+len(dict)+1)%align
	if pad == align {
		pad = 0
	}
	dict += strings.Repeat(" ", pad) + "\n"
	if len(dict) > math.MaxUint16 {
		return fmt.Errorf("npy: header too large")
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(magic)
	bw.Write([]byte{1, 0})
	var hl [2]byte
	binary.LittleEndian.PutUint16(hl[:], uint16(len(dict)))
	bw.Write(hl[:])
	bw.WriteString(dict)

	var buf [4]byte
	for _, f := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var (
	descrRe   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// ParseHeader parses the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 10 || string(b[:6]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	var (
		hlen  int
		start int
	)
	switch b[6] {
	case 1:
		hlen, start = int(binary.LittleEndian.Uint16(b[8:10])), 10
	case 2, 3:
		if len(b) < 12 {
			return Header{}, fmt.Errorf("%w: truncated header", ErrFormat)
		}
		hlen, start = int(binary.LittleEndian.Uint32(b[8:12])), 12
	default:
		return Header{}, fmt.Errorf("%w: unsupported version %d.%d", ErrFormat, b[6], b[7])
	}
	if len(b) < start+hlen {
		return Header{}, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	dict := string(b[start : start+hlen])

	h := Header{Offset: start + hlen}
	m := descrRe.FindStringSubmatch(dict)
	if m == nil {
		return Header{}, fmt.Errorf("%w: missing descr", ErrFormat)
	}
	h.Descr = m[1]
	if m = fortranRe.FindStringSubmatch(dict); m != nil {
		h.FortranOrder = m[1] == "True"
	}
	m = shapeRe.FindStringSubmatch(dict)
	if m == nil {
		return Header{}, fmt.Errorf("%w: missing shape", ErrFormat)
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return Header{}, fmt.Errorf("%w: bad shape %q", ErrFormat, m[1])
		}
		dims = append(dims, d)
	}
	if len(dims) != 2 {
		return Header{}, fmt.Errorf("%w: expected 2-d shape, got %q", ErrFormat, m[1])
	}
	h.Rows, h.Cols = dims[0], dims[1]
	return h, nil
}

// Decode parses a complete NPY file held in b and returns a copy of its data.
func Decode(b []byte) (Header, []float32, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	if h.Descr != descr {
		return Header{}, nil, fmt.Errorf("%w: unsupported dtype %q", ErrFormat, h.Descr)
	}
	if h.FortranOrder {
		return Header{}, nil, fmt.Errorf("%w: fortran order not supported", ErrFormat)
	}
	n := h.Rows * h.Cols
	body := b[h.Offset:]
	if len(body) != n*4 {
		return Header{}, nil, fmt.Errorf("%w: expected %d data bytes, found %d", ErrFormat, n*4, len(body))
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return h, data, nil
}

// Read reads a complete NPY file from r.
func Read(r io.Reader) (Header, []float32, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Header{}, nil, err
	}
	return Decode(b)
}
