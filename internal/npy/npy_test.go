package npy

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDecode(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6.5}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, data, 2, 3))

	b := buf.Bytes()
	assert.Equal(t, "\x93NUMPY", string(b[:6]))
	assert.Equal(t, []byte{1, 0}, b[6:8])
	hlen := int(binary.LittleEndian.Uint16(b[8:10]))
	assert.Zero(t, (10+hlen)%64, "header must be 64-byte aligned")
	assert.Equal(t, byte('\n'), b[10+hlen-1])

	h, got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "<f4", h.Descr)
	assert.Equal(t, 2, h.Rows)
	assert.Equal(t, 3, h.Cols)
	assert.Equal(t, 10+hlen, h.Offset)
	assert.Equal(t, data, got)
}

func TestEmptyMatrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, 0, 8))

	h, got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Rows)
	assert.Equal(t, 8, h.Cols)
	assert.Empty(t, got)
}

func TestWriteShapeMismatch(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, []float32{1, 2, 3}, 2, 2))
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode([]byte("not an npy file"))
	assert.ErrorIs(t, err, ErrFormat)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []float32{1, 2, 3, 4}, 2, 2))
	truncated := buf.Bytes()[:buf.Len()-3]
	_, _, err = Decode(truncated)
	assert.ErrorIs(t, err, ErrFormat)

	f8 := bytes.Replace(buf.Bytes(), []byte("<f4"), []byte("<f8"), 1)
	_, _, err = Decode(f8)
	assert.ErrorIs(t, err, ErrFormat)

	fortran := bytes.Replace(buf.Bytes(), []byte("False"), []byte("True "), 1)
	_, _, err = Decode(fortran)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestParseHeaderOneDim(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []float32{1, 2}, 1, 2))
	oneDim := bytes.Replace(buf.Bytes(), []byte("(1, 2)"), []byte("(2,)  "), 1)

	_, err := ParseHeader(oneDim)
	assert.ErrorIs(t, err, ErrFormat)
}
