// Package codec centralizes record and sidecar encoding.
//
// Batch payloads are JSON lines: one encoded document per line. Changing the
// codec never changes the bytes on disk in an incompatible way because every
// built-in codec speaks plain JSON; codecs differ only in speed.
package codec

import (
	"bytes"
	"fmt"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// AppendLine encodes v with c and appends it, followed by a newline, to dst.
// Encoded values must not contain raw newlines; both JSON codecs escape them.
func AppendLine(dst []byte, c Codec, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		return dst, fmt.Errorf("codec %s: marshal: %w", c.Name(), err)
	}
	if bytes.IndexByte(b, '\n') >= 0 {
		return dst, fmt.Errorf("codec %s: encoded value spans multiple lines", c.Name())
	}
	dst = append(dst, b...)
	return append(dst, '\n'), nil
}

// MustMarshal is a helper for tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
