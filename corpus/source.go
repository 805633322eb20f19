package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/ober/codec"
)

// Source yields documents to AddDocuments. Next returns ok == false once the
// source is exhausted; an error aborts ingestion.
type Source interface {
	Next() (doc Document, ok bool, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Document, bool, error)

// Next calls f.
func (f SourceFunc) Next() (Document, bool, error) { return f() }

// SliceSource yields the documents of a slice in order.
type SliceSource struct {
	docs []Document
	pos  int
}

// NewSliceSource returns a Source over docs.
func NewSliceSource(docs []Document) *SliceSource {
	return &SliceSource{docs: docs}
}

// Next implements Source.
func (s *SliceSource) Next() (Document, bool, error) {
	if s.pos >= len(s.docs) {
		return Document{}, false, nil
	}
	d := s.docs[s.pos]
	s.pos++
	return d, true, nil
}

// LineSource decodes one document per line from an uncompressed JSON lines
// stream, as produced by an external tokenizer. Blank lines are skipped.
type LineSource struct {
	r    *bufio.Reader
	c    codec.Codec
	line int
}

// NewLineSource returns a Source reading JSON lines from r. A nil codec
// selects codec.Default.
func NewLineSource(r io.Reader, c codec.Codec) *LineSource {
	if c == nil {
		c = codec.Default
	}
	return &LineSource{r: bufio.NewReaderSize(r, 1<<20), c: c}
}

// Next implements Source.
func (s *LineSource) Next() (Document, bool, error) {
	for {
		b, err := s.r.ReadBytes('\n')
		if len(b) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return Document{}, false, nil
			}
			return Document{}, false, err
		}
		s.line++
		b = bytes.TrimSpace(b)
		if len(b) == 0 {
			if err != nil {
				return Document{}, false, nil
			}
			continue
		}
		var d Document
		if uerr := s.c.Unmarshal(b, &d); uerr != nil {
			return Document{}, false, fmt.Errorf("corpus: line %d: %w", s.line, uerr)
		}
		return d, true, nil
	}
}
