// Package iolimit throttles write throughput with a token bucket.
package iolimit

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Writer is an io.Writer that waits for limiter tokens before every write.
// A nil limiter disables throttling; bytes are still counted.
type Writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
	written atomic.Int64
}

// NewLimiter returns a limiter allowing bytesPerSec with a one-second burst,
// or nil if bytesPerSec <= 0.
func NewLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
}

// NewWriter wraps w. Waiting is canceled with ctx.
func NewWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) *Writer {
	return &Writer{ctx: ctx, w: w, limiter: limiter}
}

// Write splits p into burst-sized chunks so WaitN never exceeds the bucket.
func (lw *Writer) Write(p []byte) (int, error) {
	if lw.limiter == nil {
		n, err := lw.w.Write(p)
		lw.written.Add(int64(n))
		return n, err
	}

	burst := lw.limiter.Burst()
	total := 0
	for len(p) > 0 {
		chunk := min(len(p), burst)
		if err := lw.limiter.WaitN(lw.ctx, chunk); err != nil {
			return total, err
		}
		n, err := lw.w.Write(p[:chunk])
		total += n
		lw.written.Add(int64(n))
		if err != nil {
			return total, err
		}
		p = p[chunk:]
	}
	return total, nil
}

// Written returns the number of bytes passed through.
func (lw *Writer) Written() int64 {
	return lw.written.Load()
}
