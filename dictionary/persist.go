package dictionary

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/internal/mmap"
	"github.com/hupe1980/ober/internal/npy"
	"github.com/hupe1980/ober/version"
)

// SaveOptions selects which version axes Save advances.
type SaveOptions struct {
	// NewContentVersion writes the vocabulary into a new content version,
	// together with vectors version 1.
	NewContentVersion bool
	// NewVectorsVersion writes only the vectors into a new vectors version of
	// the bound content version.
	NewVectorsVersion bool
}

// LoadOptions selects the versions Load reads. Zero means latest.
type LoadOptions struct {
	ContentVersion int
	VectorsVersion int
}

func (s *Store) versionOptions() []version.Option {
	return []version.Option{version.WithFileSystem(s.opts.fs), version.WithLogger(s.opts.logger)}
}

// Save persists the dictionary under root.
//
// A dictionary that is not bound to a content version under root, because it
// was never saved or was loaded from elsewhere, always gets a new content
// version. With neither option set, a bound dictionary is
// left as is. Every file is written to a temp file and renamed into place.
func (s *Store) Save(root string, opts SaveOptions) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root = filepath.Clean(root)
	bound := s.loc.ContentVersion > 0 && s.loc.Root == root
	if !bound {
		opts.NewContentVersion = true
	}
	if !opts.NewContentVersion && !opts.NewVectorsVersion {
		return s.loc, nil
	}
	if s.vectors == nil {
		return Location{}, ErrNoVectors
	}
	if s.vectors.rows != len(s.symbols) || s.vectors.cols != s.width {
		return Location{}, &ShapeError{Op: "save", WantRows: len(s.symbols), WantCols: s.width,
			GotRows: s.vectors.rows, GotCols: s.vectors.cols}
	}

	contents, err := version.Open(root, version.ContentWidth, s.versionOptions()...)
	if err != nil {
		return Location{}, err
	}

	loc := Location{Root: root, ContentVersion: s.loc.ContentVersion}
	if opts.NewContentVersion {
		if err := s.checkSymbols(); err != nil {
			return Location{}, err
		}
		if loc.ContentVersion, err = contents.CreateLatest(); err != nil {
			return Location{}, err
		}
	} else if len(s.symbols) != s.savedLen {
		return Location{}, &ShapeError{Op: "save vectors", WantRows: s.savedLen, WantCols: s.width,
			GotRows: len(s.symbols), GotCols: s.width}
	}

	vecs, err := version.Open(filepath.Join(contents.Path(loc.ContentVersion), VectorsDir), version.SlotWidth, s.versionOptions()...)
	if err != nil {
		return Location{}, err
	}
	if loc.VectorsVersion, err = vecs.CreateLatest(); err != nil {
		return Location{}, err
	}
	path := filepath.Join(vecs.Path(loc.VectorsVersion), VectorsFile)
	m := s.vectors
	if err := fs.WriteAtomic(s.opts.fs, path, func(w io.Writer) error {
		return npy.Write(w, m.data, m.rows, m.cols)
	}); err != nil {
		return Location{}, fmt.Errorf("dictionary: write %s: %w", path, err)
	}

	// The vocabulary commits a content version, so it is renamed in last.
	if opts.NewContentVersion {
		if err := s.writeVocab(filepath.Join(contents.Path(loc.ContentVersion), s.schema.VocabFile)); err != nil {
			return Location{}, err
		}
	}

	s.loc = loc
	s.savedLen = len(s.symbols)
	s.dirty = false
	s.opts.logger.Info("dictionary saved",
		"schema", s.schema.Name,
		"root", root,
		"content_version", loc.ContentVersion,
		"vectors_version", loc.VectorsVersion,
		"symbols", len(s.symbols),
	)
	return loc, nil
}

func (s *Store) checkSymbols() error {
	for _, sym := range s.symbols {
		if strings.ContainsAny(sym, "\t\r\n") {
			return fmt.Errorf("%w: %q contains a tab or line break", ErrInvalidSymbol, sym)
		}
	}
	return nil
}

func (s *Store) writeVocab(path string) error {
	err := fs.WriteAtomic(s.opts.fs, path, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "%d\n", s.width); err != nil {
			return err
		}
		for id, sym := range s.symbols {
			var err error
			if s.schema.Frequencies {
				_, err = fmt.Fprintf(w, "%s\t%d\n", sym, s.freq[id])
			} else {
				_, err = fmt.Fprintf(w, "%s\n", sym)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dictionary: write %s: %w", path, err)
	}
	return nil
}

// Load reads a dictionary saved under root. Missing roots or versions fail
// with version.ErrVersionNotFound; unreadable files with
// version.ErrCorruptArtifact; vectors that do not match the vocabulary with
// ErrShapeMismatch.
func Load(root string, schema Schema, lo LoadOptions, opts ...Option) (*Store, error) {
	root = filepath.Clean(root)
	probe := newBare(schema, 0, opts)

	contents, err := version.OpenExisting(root, version.ContentWidth, probe.versionOptions()...)
	if err != nil {
		return nil, err
	}
	cv, vocabPath, err := contents.ResolveFile(lo.ContentVersion, schema.VocabFile)
	if err != nil {
		return nil, err
	}
	s, err := readVocab(probe.opts.fs, vocabPath, schema, opts)
	if err != nil {
		return nil, err
	}

	vecs, err := version.OpenExisting(filepath.Join(contents.Path(cv), VectorsDir), version.SlotWidth, s.versionOptions()...)
	if err != nil {
		return nil, err
	}
	vv, vecPath, err := vecs.ResolveFile(lo.VectorsVersion, VectorsFile)
	if err != nil {
		return nil, err
	}
	m, err := s.readVectors(vecPath)
	if err != nil {
		return nil, err
	}
	if m.rows != len(s.symbols) || m.cols != s.width {
		return nil, &ShapeError{Op: "load " + vecPath, WantRows: len(s.symbols), WantCols: s.width,
			GotRows: m.rows, GotCols: m.cols}
	}

	s.vectors = m
	s.loc = Location{Root: root, ContentVersion: cv, VectorsVersion: vv}
	s.savedLen = len(s.symbols)
	s.dirty = false
	s.opts.logger.Info("dictionary loaded",
		"schema", schema.Name,
		"root", root,
		"content_version", cv,
		"vectors_version", vv,
		"symbols", len(s.symbols),
	)
	return s, nil
}

// readVocab replays a vocabulary file into a store without pre-registered
// symbols, so ids and frequencies are exactly those on disk.
func readVocab(fsys fs.FileSystem, path string, schema Schema, opts []Option) (*Store, error) {
	b, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: read %s: %w", path, err)
	}
	corrupt := func(line int, format string, args ...any) error {
		return fmt.Errorf("%w: %s line %d: %s", version.ErrCorruptArtifact, path, line, fmt.Sprintf(format, args...))
	}

	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	if !sc.Scan() {
		return nil, corrupt(1, "missing width header")
	}
	width, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || width <= 0 {
		return nil, corrupt(1, "bad width %q", sc.Text())
	}

	s := newBare(schema, width, opts)
	for line := 2; sc.Scan(); line++ {
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		sym, count := text, 0
		if schema.Frequencies {
			var freq string
			var ok bool
			sym, freq, ok = strings.Cut(text, "\t")
			if !ok {
				return nil, corrupt(line, "missing frequency")
			}
			if count, err = strconv.Atoi(freq); err != nil {
				return nil, corrupt(line, "bad frequency %q", freq)
			}
		}
		if _, dup := s.ids[sym]; dup {
			return nil, corrupt(line, "duplicate symbol %q", sym)
		}
		if s.addSymbol(sym, count) < 0 {
			return nil, corrupt(line, "blank symbol")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", version.ErrCorruptArtifact, path, err)
	}
	for i, r := range schema.Reserved {
		if id, ok := s.ids[r]; !ok || id != i {
			return nil, fmt.Errorf("%w: %s: reserved symbol %s missing from id %d", version.ErrCorruptArtifact, path, r, i)
		}
	}
	return s, nil
}

func (s *Store) readVectors(path string) (*Matrix, error) {
	var (
		data []byte
		err  error
	)
	// The decoded matrix is copied out of the mapping, which is released on
	// return. Matrices are mutable, so they never alias a read-only mapping.
	if _, local := s.opts.fs.(fs.LocalFS); s.opts.mmap && local {
		var m *mmap.Mapping
		if m, err = mmap.Open(path); err != nil {
			return nil, fmt.Errorf("dictionary: map %s: %w", path, err)
		}
		defer m.Close()
		_ = m.Advise(mmap.AccessSequential)
		data = m.Bytes()
	} else if data, err = fs.ReadFile(s.opts.fs, path); err != nil {
		return nil, fmt.Errorf("dictionary: read %s: %w", path, err)
	}

	h, values, err := npy.Decode(data)
	if err != nil {
		if errors.Is(err, npy.ErrFormat) {
			return nil, fmt.Errorf("%w: %s: %v", version.ErrCorruptArtifact, path, err)
		}
		return nil, err
	}
	return &Matrix{rows: h.Rows, cols: h.Cols, data: values}, nil
}
