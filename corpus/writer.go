package corpus

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/hupe1980/ober/codec"
	"github.com/hupe1980/ober/internal/compression"
	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/internal/iolimit"
	"golang.org/x/time/rate"
)

// AddResult summarizes an AddDocuments call.
type AddResult struct {
	// Batches lists the indices committed by this call, ascending.
	Batches   []int
	Documents int
	Sentences int
	// Bytes is the number of compressed payload bytes written.
	Bytes int64
}

// staged is a payload being written to a temp file.
type staged struct {
	file      fs.File
	lw        *iolimit.Writer
	zw        io.WriteCloser
	docs      int
	sentences int
	line      []byte
}

// AddDocuments drains src into batches of the configured size. A batch whose
// documents contain no sentence is discarded rather than committed. On error,
// batches committed before the failure stay committed and are reported in the
// result.
func (s *Store) AddDocuments(ctx context.Context, src Source) (AddResult, error) {
	var res AddResult
	if s.readOnly {
		return res, ErrReadOnly
	}
	limiter := iolimit.NewLimiter(s.opts.writeLimit)

	for {
		st, err := s.stage(ctx, limiter)
		if err != nil {
			return res, err
		}
		exhausted, err := s.fill(ctx, st, src)
		if cerr := st.zw.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = st.file.Sync()
		}
		if cerr := st.file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			s.discard(st)
			return res, err
		}

		if st.sentences > 0 {
			idx, err := s.commit(st)
			if err != nil {
				s.discard(st)
				return res, err
			}
			res.Batches = append(res.Batches, idx)
			res.Documents += st.docs
			res.Sentences += st.sentences
			res.Bytes += st.lw.Written()
		} else {
			s.discard(st)
			if st.docs > 0 {
				s.opts.logger.Debug("discarded batch without sentences", "documents", st.docs)
			}
		}
		if exhausted {
			return res, nil
		}
	}
}

func (s *Store) stage(ctx context.Context, limiter *rate.Limiter) (*staged, error) {
	f, err := s.opts.fs.CreateTemp(s.batches.Root(), stagingPrefix+"*"+fs.TempSuffix)
	if err != nil {
		return nil, fmt.Errorf("corpus: create staging file: %w", err)
	}
	st := &staged{file: f, lw: iolimit.NewWriter(ctx, f, limiter)}
	st.zw, err = compression.NewWriter(st.lw, s.opts.compression)
	if err != nil {
		_ = f.Close()
		_ = s.opts.fs.Remove(f.Name())
		return nil, err
	}
	return st, nil
}

// fill writes up to batchSize documents from src into st and reports whether
// src is exhausted.
func (s *Store) fill(ctx context.Context, st *staged, src Source) (bool, error) {
	for st.docs < s.opts.batchSize {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		doc, ok, err := src.Next()
		if err != nil {
			return false, fmt.Errorf("corpus: read source: %w", err)
		}
		if !ok {
			return true, nil
		}
		st.line, err = codec.AppendLine(st.line[:0], s.opts.codec, doc)
		if err != nil {
			return false, err
		}
		if _, err := st.zw.Write(st.line); err != nil {
			return false, fmt.Errorf("corpus: write payload: %w", err)
		}
		st.docs++
		st.sentences += doc.NumSentences()
	}
	return false, nil
}

// commit allocates the next batch index, writes its statistics and renames the
// staged payload into place. The rename is the commit point.
func (s *Store) commit(st *staged) (int, error) {
	idx, err := s.batches.CreateLatest()
	if err != nil {
		return 0, err
	}
	dir := s.batches.Path(idx)

	stats := BatchStats{TotalSentences: st.sentences, Documents: st.docs}
	data, err := s.opts.codec.Marshal(stats)
	if err != nil {
		return 0, err
	}
	if err := fs.WriteFileAtomic(s.opts.fs, filepath.Join(dir, StatsFile), data); err != nil {
		s.abandon(dir)
		return 0, fmt.Errorf("corpus: write stats for batch %d: %w", idx, err)
	}

	payload := filepath.Join(dir, PayloadBase+s.opts.compression.Extension())
	if err := s.opts.fs.Rename(st.file.Name(), payload); err != nil {
		s.abandon(dir)
		return 0, fmt.Errorf("corpus: commit batch %d: %w", idx, err)
	}
	fs.SyncDir(s.opts.fs, dir)

	s.mu.Lock()
	s.committed[idx] = batch{payload: payload, kind: s.opts.compression, stats: stats}
	s.order = append(s.order, idx)
	slices.Sort(s.order)
	s.mu.Unlock()

	s.opts.logger.Info("batch committed",
		"dir", dir,
		"batch", idx,
		"documents", st.docs,
		"sentences", st.sentences,
	)
	return idx, nil
}

// abandon removes a batch directory whose commit failed. Leftovers are
// harmless: a directory without a payload is never read.
func (s *Store) abandon(dir string) {
	if err := s.opts.fs.RemoveAll(dir); err != nil {
		s.opts.logger.Warn("failed to remove abandoned batch", "dir", dir, "error", err)
	}
}

func (s *Store) discard(st *staged) {
	_ = s.opts.fs.Remove(st.file.Name())
}
