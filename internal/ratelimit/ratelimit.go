// Package ratelimit provides bandwidth-throttled io.Reader/io.Writer
// wrappers for FTP data-channel transfers.
//
// The Reader/Writer wrapping shape is a thin layer over
// golang.org/x/time/rate's Limiter, so bursts, refill and wait-capping
// follow a maintained ecosystem implementation rather than a
// hand-maintained token count.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Limiter bandwidth-shapes a transfer to bytesPerSecond. A single
// Limiter can back both a Reader and a Writer at once, which is how a
// global bandwidth cap is shared across every session.
type Limiter struct {
	rl *rate.Limiter
}

// New creates a limiter allowing bytesPerSecond sustained throughput
// with a one-second burst allowance. A non-positive rate returns nil,
// and a nil *Limiter is treated as "unlimited" throughout this
// package.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))}
}

// take blocks until n bytes' worth of tokens are available.
func (l *Limiter) take(n int) {
	if l == nil || n <= 0 {
		return
	}
	// WaitN rejects a request larger than the burst, and a reader or
	// writer chunk can exceed a low rate's burst, so n is taken in
	// burst-sized steps.
	burst := l.rl.Burst()
	for n > 0 {
		step := n
		if step > burst {
			step = burst
		}
		_ = l.rl.WaitN(context.Background(), step)
		n -= step
	}
}

type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader wraps r so Read calls are throttled by limiter. A nil
// limiter returns r unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

const maxReadChunk = 8 * 1024

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	readSize := len(p)
	if readSize > maxReadChunk {
		readSize = maxReadChunk
	}
	r.limiter.take(readSize)
	return r.r.Read(p[:readSize])
}

type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter wraps w so Write calls are throttled by limiter. A nil
// limiter returns w unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

const maxWriteChunk = 64 * 1024

func (w *writer) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		chunk := len(p) - total
		if chunk > maxWriteChunk {
			chunk = maxWriteChunk
		}
		w.limiter.take(chunk)
		n, err := w.w.Write(p[total : total+chunk])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
