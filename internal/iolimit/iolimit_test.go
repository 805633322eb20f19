package iolimit

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimited(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, NewLimiter(0))

	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, int64(11), w.Written())
	assert.Equal(t, "hello world", buf.String())
}

func TestChunksLargerThanBurst(t *testing.T) {
	var buf bytes.Buffer
	// Large rate keeps the test fast; burst of 4 forces chunking.
	w := NewWriter(context.Background(), &buf, NewLimiter(4))
	w.limiter.SetLimit(1e9)

	payload := []byte("0123456789")
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	w := NewWriter(ctx, &buf, NewLimiter(1))

	_, err := w.Write([]byte("x"))
	require.NoError(t, err, "first byte fits the initial burst")

	_, err = w.Write([]byte("yyyy"))
	assert.Error(t, err)
}
