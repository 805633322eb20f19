// Package version implements the directory-per-version primitive every ober
// artifact is stored in.
//
// A store is a root directory whose children are directories named by
// zero-padded positive integers ("00001", "0042"). Version 0 is never created
// and means "no version". New versions are made visible by creating their
// directory; artifacts inside a version are written to temporary files and
// renamed into place so readers never observe a partial file.
//
//	s, err := version.Open("/data/content", version.ContentWidth)
//	v, err := s.CreateLatest()
//	path, err := s.FilePath(v, "vocab.txt", true)
package version
