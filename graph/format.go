package graph

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
)

// NoSense is the marker of similarity graph records. Cluster files carry the
// sense id in the same field.
const NoSense = -1

const (
	headerSize = 12
	edgeSize   = 8
	// maxEdges bounds the neighbor count a reader accepts for one record.
	maxEdges = 1 << 24
)

// ErrTruncated is returned when a stream ends inside a record.
var ErrTruncated = errors.New("graph: truncated record")

// Edge is a weighted link to a neighbor id.
type Edge struct {
	Neighbor int32
	Weight   float32
}

// Record is one node of a graph or cluster file:
//
//	id:int32 marker:int32 n:int32 n*(neighbor:int32 weight:float32)
//
// All fields are big-endian.
type Record struct {
	ID     int32
	Marker int32
	Edges  []Edge
}

// Writer encodes records.
type Writer struct {
	w   *bufio.Writer
	buf []byte
	n   int64
}

// NewWriter returns a buffered record writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write encodes one record.
func (w *Writer) Write(rec Record) error {
	size := headerSize + edgeSize*len(rec.Edges)
	if cap(w.buf) < size {
		w.buf = make([]byte, size)
	}
	b := w.buf[:size]
	binary.BigEndian.PutUint32(b[0:], uint32(rec.ID))
	binary.BigEndian.PutUint32(b[4:], uint32(rec.Marker))
	binary.BigEndian.PutUint32(b[8:], uint32(len(rec.Edges)))
	off := headerSize
	for _, e := range rec.Edges {
		binary.BigEndian.PutUint32(b[off:], uint32(e.Neighbor))
		binary.BigEndian.PutUint32(b[off+4:], math.Float32bits(e.Weight))
		off += edgeSize
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	return err
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error { return w.w.Flush() }

// Written returns the number of encoded bytes.
func (w *Writer) Written() int64 { return w.n }

// Reader decodes records.
type Reader struct {
	r   *bufio.Reader
	hdr [headerSize]byte
	buf []byte
}

// NewReader returns a record reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next decodes the next record. It returns io.EOF at a clean end of stream
// and ErrTruncated if the stream ends inside a record.
func (r *Reader) Next() (Record, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrTruncated
		}
		return Record{}, err
	}
	rec := Record{
		ID:     int32(binary.BigEndian.Uint32(r.hdr[0:])),
		Marker: int32(binary.BigEndian.Uint32(r.hdr[4:])),
	}
	n := int32(binary.BigEndian.Uint32(r.hdr[8:]))
	if n < 0 || n > maxEdges {
		return Record{}, fmt.Errorf("graph: record %d: invalid neighbor count %d", rec.ID, n)
	}

	size := int(n) * edgeSize
	if cap(r.buf) < size {
		r.buf = make([]byte, size)
	}
	b := r.buf[:size]
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrTruncated
		}
		return Record{}, err
	}
	rec.Edges = make([]Edge, n)
	for i := range rec.Edges {
		off := i * edgeSize
		rec.Edges[i] = Edge{
			Neighbor: int32(binary.BigEndian.Uint32(b[off:])),
			Weight:   math.Float32frombits(binary.BigEndian.Uint32(b[off+4:])),
		}
	}
	return rec, nil
}

// Records returns a sequence over the records of r. A decode error is
// yielded once and ends the sequence.
func Records(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rd := NewReader(r)
		for {
			rec, err := rd.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
