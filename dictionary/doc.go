// Package dictionary pairs a symbol table with a dense float32 vector matrix.
//
// Symbols receive contiguous ids in first-seen order. Each id owns one row of
// the matrix, so Len() always equals the row count once vectors exist.
//
// On disk a dictionary uses two nested version axes:
//
//	<root>/<content:5>/counts.vocab              vocabulary (TokenSchema)
//	<root>/<content:5>/vectors/<vectors:4>/vectors.npy
//
// so vectors can be retrained without rewriting the vocabulary.
package dictionary
