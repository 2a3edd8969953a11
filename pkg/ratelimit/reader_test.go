package ratelimit

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

// TestNewLimiter tests the Limiter constructor
func TestNewLimiter(t *testing.T) {
	t.Run("ValidBytesPerSecond", func(t *testing.T) {
		limiter := NewLimiter(1024 * 1024)
		if limiter == nil {
			t.Fatal("NewLimiter() returned nil for valid input")
		}
		if limiter.BytesPerSecond() != 1024*1024 {
			t.Errorf("BytesPerSecond() = %d, want %d", limiter.BytesPerSecond(), 1024*1024)
		}
	})

	t.Run("ZeroBytesPerSecond", func(t *testing.T) {
		if limiter := NewLimiter(0); limiter != nil {
			t.Error("NewLimiter(0) should return nil (no limiting)")
		}
	})

	t.Run("NegativeBytesPerSecond", func(t *testing.T) {
		if limiter := NewLimiter(-100); limiter != nil {
			t.Error("NewLimiter(-100) should return nil (no limiting)")
		}
	})

	t.Run("SmallBytesPerSecond", func(t *testing.T) {
		limiter := NewLimiter(1000)
		if limiter.burst < 65536 {
			t.Errorf("burst = %d, want at least 65536", limiter.burst)
		}
		if got := limiter.limiter.Burst(); got != limiter.burst {
			t.Errorf("rate burst = %d, want %d", got, limiter.burst)
		}
	})

	t.Run("NilLimiterRate", func(t *testing.T) {
		var limiter *Limiter
		if limiter.BytesPerSecond() != 0 {
			t.Error("nil limiter should report 0 bytes per second")
		}
	})
}

func TestNewReaderNilLimiter(t *testing.T) {
	base := strings.NewReader("test content")
	if reader := NewReader(context.Background(), base, nil); reader != base {
		t.Error("NewReader() with nil limiter should return the original reader")
	}

	baseAt := strings.NewReader("test content")
	if reader := NewReaderAt(context.Background(), baseAt, nil); reader != baseAt {
		t.Error("NewReaderAt() with nil limiter should return the original reader")
	}
}

func TestReaderRead(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefgh"), 1024)
	limiter := NewLimiter(10 * 1024 * 1024)

	reader := NewReader(context.Background(), bytes.NewReader(content), limiter)
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("rate limited reader altered content")
	}
}

func TestReaderAtRead(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 20000)
	limiter := NewLimiter(100 * 1024 * 1024)

	reader := NewReaderAt(context.Background(), bytes.NewReader(content), limiter)

	buf := make([]byte, 150000)
	n, err := reader.ReadAt(buf, 1000)
	if err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if n != len(buf) {
		t.Errorf("ReadAt() n = %d, want %d", n, len(buf))
	}
	if !bytes.Equal(buf, content[1000:1000+len(buf)]) {
		t.Error("rate limited ReadAt altered content")
	}
}

func TestRateLimiting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	// 64KB/s with a 64KB bucket: reading 128KB must take roughly one second
	limiter := NewLimiter(64 * 1024)
	content := make([]byte, 128*1024)
	reader := NewReader(context.Background(), bytes.NewReader(content), limiter)

	start := time.Now()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 700*time.Millisecond {
		t.Errorf("read completed in %v, expected throttling to about 1s", elapsed)
	}
}

func TestReaderCancelled(t *testing.T) {
	limiter := NewLimiter(1024)
	// Drain the initial burst
	limiter.limiter.AllowN(time.Now(), limiter.burst)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := NewReader(ctx, bytes.NewReader(make([]byte, 4096)), limiter)
	if _, err := reader.Read(make([]byte, 4096)); err == nil {
		t.Error("Read() should fail once the context is cancelled")
	}
}

func TestReaderAtChunksLargeReads(t *testing.T) {
	limiter := NewLimiter(1024)
	content := bytes.Repeat([]byte("x"), 3*minBurst)
	counting := &countingReaderAt{r: bytes.NewReader(content)}

	reader := NewReaderAt(context.Background(), counting, limiter)
	// Only the first chunk is served from the initial burst
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	reader.(*ReaderAt).ctx = ctx

	buf := make([]byte, len(content))
	n, err := reader.ReadAt(buf, 0)
	if err == nil {
		t.Fatal("ReadAt() should stop once the deadline passes")
	}
	if n != minBurst {
		t.Errorf("ReadAt() n = %d, want %d", n, minBurst)
	}
	if counting.calls != 1 {
		t.Errorf("underlying ReadAt calls = %d, want 1", counting.calls)
	}
}

type countingReaderAt struct {
	r     io.ReaderAt
	calls int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.calls++
	return c.r.ReadAt(p, off)
}

func TestParseBandwidth(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"2048", 2048, false},
		{"512K", 512 * 1024, false},
		{"10M", 10 * 1024 * 1024, false},
		{"10MB", 10 * 1024 * 1024, false},
		{"1g", 1 << 30, false},
		{"1.5M", 1572864, false},
		{"fast", 0, true},
		{"-5M", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBandwidth(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBandwidth(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBandwidth(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
