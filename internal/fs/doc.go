// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations (open, temp files, rename, mkdir, scan)
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility that fails writes, syncs, closes, renames or
//     directory creation for names matching a pattern
//
// Every versioned store in ober performs its I/O through a FileSystem so that
// tests can interrupt a commit at any step:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("data.jl", fs.Fault{FailOnRename: true, FailAfterBytes: -1})
//	// inject ffs with WithFileSystem(ffs)
//
// # Design Notes
//
// This package intentionally does NOT take context.Context parameters. Local
// filesystem calls are not interruptible at the syscall level.
package fs
