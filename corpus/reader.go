package corpus

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/hupe1980/ober/internal/compression"
	"github.com/hupe1980/ober/internal/fs"
)

type selectorKind uint8

const (
	selectAll selectorKind = iota
	selectBatch
	selectRandom
)

// Selector chooses which batches a read covers.
type Selector struct {
	kind  selectorKind
	index int
}

// All selects every committed batch in ascending index order.
func All() Selector { return Selector{kind: selectAll} }

// Batch selects the committed batch i.
func Batch(i int) Selector { return Selector{kind: selectBatch, index: i} }

// Random selects one committed batch uniformly at random.
func Random() Selector { return Selector{kind: selectRandom} }

func (sel Selector) String() string {
	switch sel.kind {
	case selectBatch:
		return fmt.Sprintf("batch %d", sel.index)
	case selectRandom:
		return "random"
	default:
		return "all"
	}
}

func (s *Store) resolve(sel Selector) ([]int, error) {
	switch sel.kind {
	case selectBatch:
		if _, ok := s.batch(sel.index); !ok {
			return nil, fmt.Errorf("%w: %d", ErrBatchNotFound, sel.index)
		}
		return []int{sel.index}, nil
	case selectRandom:
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.order) == 0 {
			return nil, fmt.Errorf("%w: corpus is empty", ErrBatchNotFound)
		}
		return []int{s.order[s.rng.IntN(len(s.order))]}, nil
	default:
		return s.Batches(), nil
	}
}

// Documents returns a lazy sequence of the documents in the selected batches.
// Iteration stops at the first error, which is yielded with a zero Document.
func (s *Store) Documents(sel Selector) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		indices, err := s.resolve(sel)
		if err != nil {
			yield(Document{}, err)
			return
		}
		for _, i := range indices {
			b, ok := s.batch(i)
			if !ok {
				yield(Document{}, fmt.Errorf("%w: %d", ErrBatchNotFound, i))
				return
			}
			more, err := s.readBatch(b, yield)
			if err != nil {
				yield(Document{}, err)
				return
			}
			if !more {
				return
			}
		}
	}
}

// readBatch streams one payload into yield. It returns false when the
// consumer stopped early.
func (s *Store) readBatch(b batch, yield func(Document, error) bool) (bool, error) {
	f, err := fs.Open(s.opts.fs, b.payload)
	if err != nil {
		return false, fmt.Errorf("%w: open %s: %v", ErrCorruptArtifact, b.payload, err)
	}
	defer f.Close()

	zr, err := compression.NewReader(f, b.kind)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, b.payload, err)
	}
	defer zr.Close()

	r := bufio.NewReaderSize(zr, 1<<20)
	for line := 1; ; line++ {
		raw, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("%w: read %s: %v", ErrCorruptArtifact, b.payload, err)
		}
		if raw := bytes.TrimSpace(raw); len(raw) > 0 {
			var d Document
			if uerr := s.opts.codec.Unmarshal(raw, &d); uerr != nil {
				return false, fmt.Errorf("%w: %s line %d: %v", ErrCorruptArtifact, b.payload, line, uerr)
			}
			if !yield(d, nil) {
				return false, nil
			}
		}
		if err != nil {
			return true, nil
		}
	}
}

// Paragraphs flattens Documents into their paragraphs.
func (s *Store) Paragraphs(sel Selector) iter.Seq2[Paragraph, error] {
	return func(yield func(Paragraph, error) bool) {
		for d, err := range s.Documents(sel) {
			if err != nil {
				yield(Paragraph{}, err)
				return
			}
			for _, p := range d.Paragraphs {
				if !yield(p, nil) {
					return
				}
			}
		}
	}
}

// Sentences flattens Documents into the token lists of their sentences.
func (s *Store) Sentences(sel Selector) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for p, err := range s.Paragraphs(sel) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, sent := range p.Sentences {
				if !yield(sent.Tokens, nil) {
					return
				}
			}
		}
	}
}

// CountTokens counts token occurrences over the selected batches.
func (s *Store) CountTokens(ctx context.Context, sel Selector) (map[string]int, error) {
	counts := make(map[string]int)
	n := 0
	for tokens, err := range s.Sentences(sel) {
		if err != nil {
			return nil, err
		}
		if n++; n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, t := range tokens {
			counts[t]++
		}
	}
	return counts, ctx.Err()
}
