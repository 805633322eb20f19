package corpus

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/ober/internal/compression"
	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/version"
)

const (
	// PayloadBase is the payload file name before the compression extension.
	PayloadBase = "data.jl"
	// StatsFile is the statistics sidecar name.
	StatsFile = "stats.json"
	// stagingPrefix names payload temp files in the content directory.
	stagingPrefix = ".batch-"
)

type batch struct {
	payload string
	kind    compression.Kind
	stats   BatchStats
}

// Store is a batched corpus bound to one content version.
type Store struct {
	opts     options
	root     string
	contents *version.Store
	content  int
	batches  *version.Store
	readOnly bool

	mu        sync.RWMutex
	committed map[int]batch
	order     []int
	rng       *rand.Rand
}

func newStore(root string, opts []Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.documentSet != "" {
		root = filepath.Join(root, o.documentSet)
	}
	rng := o.rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Store{opts: o, root: root, committed: make(map[int]batch), rng: rng}
}

func (s *Store) versionOptions() []version.Option {
	return []version.Option{version.WithFileSystem(s.opts.fs), version.WithLogger(s.opts.logger)}
}

// Open opens the corpus for writing, creating the root and content version as
// needed. Stray temp payloads from an interrupted writer are removed.
func Open(root string, opts ...Option) (*Store, error) {
	s := newStore(root, opts)
	if !s.opts.compression.Writable() {
		return nil, fmt.Errorf("corpus: %w: %s", compression.ErrUnsupported, s.opts.compression)
	}

	contents, err := version.Open(s.root, version.ContentWidth, s.versionOptions()...)
	if err != nil {
		return nil, err
	}
	s.contents = contents

	switch {
	case s.opts.newContentVersion:
		s.content, err = contents.CreateLatest()
	case s.opts.contentVersion > 0:
		s.content = s.opts.contentVersion
		_, err = contents.Create(s.content)
	default:
		s.content = contents.Latest()
		if s.content == 0 {
			s.content, err = contents.CreateLatest()
		}
	}
	if err != nil {
		return nil, err
	}

	s.batches, err = version.Open(contents.Path(s.content), version.SlotWidth, s.versionOptions()...)
	if err != nil {
		return nil, err
	}

	n, err := fs.RemoveTemps(s.opts.fs, s.batches.Root())
	if err != nil {
		return nil, fmt.Errorf("corpus: clean staging files: %w", err)
	}
	if n > 0 {
		s.opts.logger.Warn("removed stray batch payloads", "dir", s.batches.Root(), "count", n)
	}

	if err := s.loadBatches(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load opens an existing corpus for reading. It never creates directories and
// fails with version.ErrVersionNotFound if the root or the selected content
// version does not exist.
func Load(root string, opts ...Option) (*Store, error) {
	s := newStore(root, opts)
	s.readOnly = true

	contents, err := version.OpenExisting(s.root, version.ContentWidth, s.versionOptions()...)
	if err != nil {
		return nil, err
	}
	s.contents = contents

	s.content, err = contents.Resolve(s.opts.contentVersion)
	if err != nil {
		return nil, err
	}
	s.batches, err = version.OpenExisting(contents.Path(s.content), version.SlotWidth, s.versionOptions()...)
	if err != nil {
		return nil, err
	}
	if err := s.loadBatches(); err != nil {
		return nil, err
	}
	return s, nil
}

// findPayload returns the payload file inside a batch directory.
func (s *Store) findPayload(dir string) (string, compression.Kind, bool, error) {
	entries, err := s.opts.fs.ReadDir(dir)
	if err != nil {
		return "", compression.None, false, err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, PayloadBase) {
			continue
		}
		if name != PayloadBase+compression.FromExtension(name).Extension() {
			continue
		}
		return filepath.Join(dir, name), compression.FromExtension(name), true, nil
	}
	return "", compression.None, false, nil
}

func (s *Store) readStats(dir string) (BatchStats, error) {
	path := filepath.Join(dir, StatsFile)
	b, err := fs.ReadFile(s.opts.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return BatchStats{}, fmt.Errorf("%w: missing %s", ErrCorruptArtifact, path)
		}
		return BatchStats{}, err
	}
	var st BatchStats
	if err := s.opts.codec.Unmarshal(b, &st); err != nil {
		return BatchStats{}, fmt.Errorf("%w: parse %s: %v", ErrCorruptArtifact, path, err)
	}
	return st, nil
}

// loadBatches fills the statistics cache from every committed batch. Batch
// directories without a payload were interrupted before their commit and are
// skipped.
func (s *Store) loadBatches() error {
	committed := make(map[int]batch)
	var order []int
	for _, v := range s.batches.Versions() {
		dir := s.batches.Path(v)
		payload, kind, ok, err := s.findPayload(dir)
		if err != nil {
			return fmt.Errorf("corpus: scan batch %d: %w", v, err)
		}
		if !ok {
			s.opts.logger.Debug("skipping uncommitted batch", "dir", dir)
			continue
		}
		st, err := s.readStats(dir)
		if err != nil {
			return err
		}
		committed[v] = batch{payload: payload, kind: kind, stats: st}
		order = append(order, v)
	}

	s.mu.Lock()
	s.committed = committed
	s.order = order
	s.mu.Unlock()
	return nil
}

// Reload rescans batches committed since open, e.g. by another process.
func (s *Store) Reload() error {
	if err := s.batches.Rescan(); err != nil {
		return err
	}
	return s.loadBatches()
}

// Root returns the document set directory.
func (s *Store) Root() string { return s.root }

// ContentVersion returns the bound content version.
func (s *Store) ContentVersion() int { return s.content }

// Dir returns the content version directory.
func (s *Store) Dir() string { return s.batches.Root() }

// Batches returns the committed batch indices in ascending order.
func (s *Store) Batches() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// NumBatches returns the number of committed batches.
func (s *Store) NumBatches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// BatchStats returns the statistics of a committed batch.
func (s *Store) BatchStats(i int) (BatchStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.committed[i]
	if !ok {
		return BatchStats{}, fmt.Errorf("%w: %d", ErrBatchNotFound, i)
	}
	return b.stats, nil
}

// TotalSentences sums the sentence counts of all committed batches.
func (s *Store) TotalSentences() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.committed {
		n += b.stats.TotalSentences
	}
	return n
}

// TotalDocuments sums the document counts of all committed batches.
func (s *Store) TotalDocuments() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.committed {
		n += b.stats.Documents
	}
	return n
}

func (s *Store) batch(i int) (batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.committed[i]
	return b, ok
}
