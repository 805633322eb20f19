package version

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/ober/internal/fs"
)

const (
	// ContentWidth is the padding width used for content versions.
	ContentWidth = 5
	// SlotWidth is the padding width used for batches, vectors and graphs.
	SlotWidth = 4
)

// Store manages a directory of zero-padded integer-named version directories.
//
// The set of known versions is populated by a single scan at open time and
// updated by Create; other processes' creations are only seen after Rescan.
//
// Store is safe for concurrent use within one process. Across processes the
// store assumes a single writer: Create checks for the directory and then
// creates it, so two writers racing on the same version can both observe it
// as absent. No lock file is used.
type Store struct {
	root  string
	width int
	fs    fs.FileSystem
	log   *slog.Logger

	mu    sync.RWMutex
	known *roaring.Bitmap
}

// Option configures a Store.
type Option func(*Store)

// WithFileSystem sets the filesystem used for all I/O.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func newStore(root string, width int, opts []Option) (*Store, error) {
	if width < 1 {
		return nil, fmt.Errorf("version: invalid width %d", width)
	}
	s := &Store{
		root:  filepath.Clean(root),
		width: width,
		fs:    fs.Default,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		known: roaring.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open opens the store rooted at root, creating the directory if it is absent,
// and scans it for existing versions.
func Open(root string, width int, opts ...Option) (*Store, error) {
	s, err := newStore(root, width, opts)
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("version: create root %s: %w", s.root, err)
	}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenExisting opens the store for reading. Unlike Open it never creates the
// root and fails with ErrVersionNotFound if it does not exist.
func OpenExisting(root string, width int, opts ...Option) (*Store, error) {
	s, err := newStore(root, width, opts)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no store at %s", ErrVersionNotFound, s.root)
		}
		return nil, fmt.Errorf("version: stat root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("version: root %s is not a directory", s.root)
	}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rescan replaces the known set with the versions currently on disk. Child
// entries that are not directories or whose names do not parse as positive
// integers are ignored. A failing directory scan is returned as-is.
func (s *Store) Rescan() error {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("version: scan %s: %w", s.root, err)
	}
	known := roaring.New()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, ok := Parse(e.Name())
		if !ok {
			continue
		}
		known.Add(uint32(v))
	}
	s.mu.Lock()
	s.known = known
	s.mu.Unlock()
	return nil
}

// Parse parses a version directory name. Version 0 is reserved and rejected.
func Parse(name string) (int, bool) {
	v, err := strconv.ParseUint(name, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return int(v), true
}

// Root returns the root directory of the store.
func (s *Store) Root() string { return s.root }

// Width returns the zero-padding width of version names.
func (s *Store) Width() int { return s.width }

// Name returns the directory name of version v.
func (s *Store) Name(v int) string {
	return fmt.Sprintf("%0*d", s.width, v)
}

// Path returns the directory of version v. It does not check existence.
func (s *Store) Path(v int) string {
	return filepath.Join(s.root, s.Name(v))
}

// Exists reports whether the directory of version v exists on disk.
func (s *Store) Exists(v int) bool {
	ok, err := fs.Exists(s.fs, s.Path(v))
	return err == nil && ok
}

// Contains reports whether v is in the known set.
func (s *Store) Contains(v int) bool {
	if !valid(v) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.known.Contains(uint32(v))
}

// Latest returns the highest known version, or 0 if there is none.
func (s *Store) Latest() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.known.IsEmpty() {
		return 0
	}
	return int(s.known.Maximum())
}

// Versions returns the known versions in ascending order.
func (s *Store) Versions() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, s.known.GetCardinality())
	it := s.known.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Len returns the number of known versions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.known.GetCardinality())
}

func valid(v int) bool {
	return v >= 1 && uint64(v) <= math.MaxUint32
}

// Create creates version v. It returns created=false without error if the
// directory already exists.
func (s *Store) Create(v int) (bool, error) {
	if !valid(v) {
		return false, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	path := s.Path(v)
	exists, err := fs.Exists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("version: stat %s: %w", path, err)
	}
	if exists {
		return false, nil
	}
	if err := s.fs.Mkdir(path, 0o755); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("version: create %s: %w", path, err)
	}
	s.mu.Lock()
	s.known.Add(uint32(v))
	s.mu.Unlock()
	s.log.Debug("version created", "root", s.root, "version", v)
	return true, nil
}

// CreateLatest creates version Latest()+1 and returns it.
func (s *Store) CreateLatest() (int, error) {
	v := s.Latest() + 1
	if _, err := s.Create(v); err != nil {
		return 0, err
	}
	return v, nil
}

// FilePath returns the path of name inside version v. With mustExist set, the
// version directory must exist or ErrVersionNotFound is returned.
func (s *Store) FilePath(v int, name string, mustExist bool) (string, error) {
	if mustExist && (!valid(v) || !s.Exists(v)) {
		return "", fmt.Errorf("%w: %s", ErrVersionNotFound, s.Path(v))
	}
	return filepath.Join(s.Path(v), name), nil
}

// LatestFilePath is FilePath for the latest version.
func (s *Store) LatestFilePath(name string, mustExist bool) (string, error) {
	return s.FilePath(s.Latest(), name, mustExist)
}

// Resolve maps a requested version to a concrete one: 0 means latest. It fails
// with ErrVersionNotFound if the result is not a known version.
func (s *Store) Resolve(v int) (int, error) {
	if v == 0 {
		v = s.Latest()
		if v == 0 {
			return 0, fmt.Errorf("%w: %s has no versions", ErrVersionNotFound, s.root)
		}
		return v, nil
	}
	if !s.Contains(v) {
		return 0, fmt.Errorf("%w: %s", ErrVersionNotFound, s.Path(v))
	}
	return v, nil
}

// LatestWith returns the highest known version whose directory contains name,
// or 0. Versions allocated by an interrupted writer, whose file was never
// renamed into place, are passed over.
func (s *Store) LatestWith(name string) int {
	versions := s.Versions()
	for i := len(versions) - 1; i >= 0; i-- {
		ok, err := fs.Exists(s.fs, filepath.Join(s.Path(versions[i]), name))
		if err == nil && ok {
			return versions[i]
		}
	}
	return 0
}

// ResolveFile is Resolve for versions that must contain name. A zero request
// selects LatestWith(name). An explicit version whose file is missing is a
// corrupt artifact.
func (s *Store) ResolveFile(v int, name string) (int, string, error) {
	if v == 0 {
		v = s.LatestWith(name)
		if v == 0 {
			return 0, "", fmt.Errorf("%w: no version of %s under %s", ErrVersionNotFound, name, s.root)
		}
		return v, filepath.Join(s.Path(v), name), nil
	}
	if !s.Contains(v) {
		return 0, "", fmt.Errorf("%w: %s", ErrVersionNotFound, s.Path(v))
	}
	path := filepath.Join(s.Path(v), name)
	ok, err := fs.Exists(s.fs, path)
	if err != nil {
		return 0, "", err
	}
	if !ok {
		return 0, "", fmt.Errorf("%w: missing %s", ErrCorruptArtifact, path)
	}
	return v, path, nil
}
