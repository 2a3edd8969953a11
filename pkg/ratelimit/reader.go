package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// minBurst keeps a single 64 KiB sample window or buffer fill in one wait
const minBurst = 64 * 1024

// Limiter is a token bucket shared by every reader it throttles.
// A nil *Limiter means no limiting.
type Limiter struct {
	bytesPerSecond int64
	burst          int
	limiter        *rate.Limiter
}

// NewLimiter creates a new rate limiter with the specified bytes per second limit.
// Returns nil when bytesPerSecond is not positive.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	// One second worth of data
	burst := int(bytesPerSecond)
	if bytesPerSecond > int64(^uint32(0)>>1) {
		burst = int(^uint32(0) >> 1)
	}
	if burst < minBurst {
		burst = minBurst
	}

	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		burst:          burst,
		limiter:        rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

// BytesPerSecond returns the configured rate
func (l *Limiter) BytesPerSecond() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

// chunk caps a read length to what one wait can grant
func (l *Limiter) chunk(n int) int {
	if n > l.burst {
		return l.burst
	}
	return n
}

// Reader wraps an io.Reader with bandwidth limiting
type Reader struct {
	reader  io.Reader
	limiter *Limiter
	ctx     context.Context
}

// NewReader wraps an io.Reader with rate limiting. Waits end early only
// when ctx is done.
func NewReader(ctx context.Context, reader io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return reader
	}
	return &Reader{
		reader:  reader,
		limiter: limiter,
		ctx:     ctx,
	}
}

// Read implements io.Reader
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return r.reader.Read(p)
	}
	toRead := r.limiter.chunk(len(p))

	if err := r.limiter.limiter.WaitN(r.ctx, toRead); err != nil {
		return 0, err
	}
	return r.reader.Read(p[:toRead])
}

// ReaderAt wraps an io.ReaderAt with bandwidth limiting
type ReaderAt struct {
	reader  io.ReaderAt
	limiter *Limiter
	ctx     context.Context
}

// NewReaderAt wraps an io.ReaderAt with rate limiting
func NewReaderAt(ctx context.Context, reader io.ReaderAt, limiter *Limiter) io.ReaderAt {
	if limiter == nil {
		return reader
	}
	return &ReaderAt{
		reader:  reader,
		limiter: limiter,
		ctx:     ctx,
	}
}

// ReadAt implements io.ReaderAt. Large reads are split into burst-sized chunks.
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		chunk := r.limiter.chunk(len(p) - total)

		if err := r.limiter.limiter.WaitN(r.ctx, chunk); err != nil {
			return total, err
		}

		n, err := r.reader.ReadAt(p[total:total+chunk], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
