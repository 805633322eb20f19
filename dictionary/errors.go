package dictionary

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when a matrix does not have one row per
	// symbol and one column per dimension.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrIndexOutOfRange is returned when decoding an id that has no symbol.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNoVectors is returned by operations that need vectors before any
	// were generated, loaded or set.
	ErrNoVectors = errors.New("no vectors")

	// ErrInvalidSymbol is returned when saving a symbol that cannot be
	// represented in the vocabulary file.
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// ShapeError describes a rejected matrix shape. It unwraps to ErrShapeMismatch.
type ShapeError struct {
	Op                 string
	WantRows, WantCols int
	GotRows, GotCols   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: want (%d, %d), got (%d, %d)",
		e.Op, e.WantRows, e.WantCols, e.GotRows, e.GotCols)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }
