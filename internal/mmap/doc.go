// Package mmap maps vector files read-only into memory.
//
//	m, err := mmap.Open("vectors.npy")
//	if err != nil { ... }
//	defer m.Close()
//	m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// On Unix the mapping uses mmap(2) and madvise(2); on Windows it uses
// CreateFileMapping/MapViewOfFile and Advise is a no-op.
//
// Bytes is only valid until Close. Close is idempotent.
package mmap
