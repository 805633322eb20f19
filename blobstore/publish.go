package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/hupe1980/ober/codec"
	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/internal/hash"
	"golang.org/x/sync/errgroup"
)

const (
	// ManifestName is the manifest key inside a published prefix.
	ManifestName = "MANIFEST.json"

	// DefaultConcurrency bounds parallel uploads and downloads.
	DefaultConcurrency = 4
)

// ErrChecksum is returned by Fetch when a blob does not match its manifest
// entry.
var ErrChecksum = errors.New("blobstore: checksum mismatch")

// Manifest lists the files of a published version.
type Manifest struct {
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
	Files     []File    `json:"files"`
}

// File is one manifest entry. Name is relative to the published prefix.
type File struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	CRC32C string `json:"crc32c"`
}

type options struct {
	concurrency int
	fs          fs.FileSystem
	codec       codec.Codec
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures Publish and Fetch.
type Option func(*options)

// WithConcurrency bounds the number of blobs transferred at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithFileSystem sets the local filesystem.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithCodec sets the manifest codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{
		concurrency: DefaultConcurrency,
		fs:          fs.Default,
		codec:       codec.Default,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Publish uploads every regular file under srcDir to dst beneath prefix,
// then writes the manifest. Temp files of interrupted writers are skipped.
// It returns the manifest it wrote.
func Publish(ctx context.Context, dst BlobStore, srcDir, prefix string, opts ...Option) (*Manifest, error) {
	o := applyOptions(opts)
	start := o.now()

	names, err := walkFiles(o.fs, srcDir)
	if err != nil {
		return nil, fmt.Errorf("blobstore: scan %s: %w", srcDir, err)
	}

	files := make([]File, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, name := range names {
		g.Go(func() error {
			f, err := upload(gctx, dst, o.fs, filepath.Join(srcDir, filepath.FromSlash(name)), Join(prefix, name))
			if err != nil {
				return fmt.Errorf("blobstore: publish %s: %w", name, err)
			}
			f.Name = name
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Manifest{Source: srcDir, Published: start.UTC(), Files: files}
	data, err := o.codec.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := dst.Put(ctx, Join(prefix, ManifestName), bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("blobstore: publish manifest: %w", err)
	}

	o.logger.Info("version published",
		"source", srcDir,
		"prefix", prefix,
		"files", len(files),
		"duration", o.now().Sub(start),
	)
	return m, nil
}

// upload streams one file while computing its checksum.
func upload(ctx context.Context, dst BlobStore, fsys fs.FileSystem, src, key string) (File, error) {
	f, err := fs.Open(fsys, src)
	if err != nil {
		return File{}, err
	}
	defer f.Close()
	info, err := fsys.Stat(src)
	if err != nil {
		return File{}, err
	}

	h := hash.NewCRC32C()
	if err := dst.Put(ctx, key, io.TeeReader(f, h), info.Size()); err != nil {
		return File{}, err
	}
	return File{Size: info.Size(), CRC32C: hash.Encode(h.Sum32())}, nil
}

// ReadManifest reads the manifest published under prefix.
func ReadManifest(ctx context.Context, src BlobStore, prefix string, opts ...Option) (*Manifest, error) {
	o := applyOptions(opts)
	b, err := src.Open(ctx, Join(prefix, ManifestName))
	if err != nil {
		return nil, err
	}
	defer b.Close()
	data, err := io.ReadAll(b)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := o.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("blobstore: decode manifest: %w", err)
	}
	return &m, nil
}

// Fetch downloads the version published under prefix into dstDir, verifying
// each file against the manifest. Files are written atomically; a failed
// fetch may leave some complete files behind but never a partial one.
func Fetch(ctx context.Context, src BlobStore, prefix, dstDir string, opts ...Option) (*Manifest, error) {
	o := applyOptions(opts)
	m, err := ReadManifest(ctx, src, prefix, opts...)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, f := range m.Files {
		g.Go(func() error {
			if err := ValidateName(f.Name); err != nil {
				return err
			}
			dst := filepath.Join(dstDir, filepath.FromSlash(f.Name))
			if err := o.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			if err := download(gctx, src, o.fs, Join(prefix, f.Name), dst, f); err != nil {
				return fmt.Errorf("blobstore: fetch %s: %w", f.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.logger.Info("version fetched", "prefix", prefix, "dir", dstDir, "files", len(m.Files))
	return m, nil
}

func download(ctx context.Context, src BlobStore, fsys fs.FileSystem, key, dst string, want File) error {
	b, err := src.Open(ctx, key)
	if err != nil {
		return err
	}
	defer b.Close()

	return fs.WriteAtomic(fsys, dst, func(w io.Writer) error {
		h := hash.NewCRC32C()
		n, err := io.Copy(io.MultiWriter(w, h), b)
		if err != nil {
			return err
		}
		if n != want.Size || hash.Encode(h.Sum32()) != want.CRC32C {
			return fmt.Errorf("%w: %s", ErrChecksum, key)
		}
		return nil
	})
}

// walkFiles lists regular files under dir as slash-separated relative names.
func walkFiles(fsys fs.FileSystem, dir string) ([]string, error) {
	var names []string
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			name := path.Join(rel, e.Name())
			switch {
			case e.IsDir():
				if err := walk(filepath.Join(dir, e.Name()), name); err != nil {
					return err
				}
			case e.Type().IsRegular() && !fs.IsTemp(e.Name()):
				names = append(names, name)
			}
		}
		return nil
	}
	if err := walk(dir, ""); err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}
