package fs

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TempSuffix marks in-flight files. Files carrying it are never artifacts.
const TempSuffix = ".tmp"

// TempPattern returns the CreateTemp pattern used for a file that will be
// renamed to base.
func TempPattern(base string) string {
	return "." + base + "-*" + TempSuffix
}

// IsTemp reports whether name looks like an in-flight temp file.
func IsTemp(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, TempSuffix)
}

// WriteAtomic writes path by streaming into a temp file in the same directory
// and renaming it into place once write, flush and sync have succeeded. On any
// failure the temp file is removed and path is left untouched.
func WriteAtomic(fsys FileSystem, path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := fsys.CreateTemp(dir, TempPattern(filepath.Base(path)))
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = tmp.Close()
			_ = fsys.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := write(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""

	SyncDir(fsys, dir)
	return nil
}

// WriteFileAtomic is WriteAtomic for an in-memory payload.
func WriteFileAtomic(fsys FileSystem, path string, data []byte) error {
	return WriteAtomic(fsys, path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// SyncDir fsyncs a directory so a preceding rename is durable. It is best
// effort: some platforms cannot sync directories.
func SyncDir(fsys FileSystem, dir string) {
	d, err := fsys.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// RemoveTemps deletes in-flight temp files directly inside dir and returns
// how many were removed.
func RemoveTemps(fsys FileSystem, dir string) (int, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !IsTemp(e.Name()) {
			continue
		}
		if err := fsys.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	return n, nil
}

// ReadFile reads the whole file at name from fsys.
func ReadFile(fsys FileSystem, name string) ([]byte, error) {
	f, err := Open(fsys, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
