package compare

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sdejongh/toolbelt/pkg/models"
	"github.com/sdejongh/toolbelt/pkg/ratelimit"
	"github.com/sdejongh/toolbelt/pkg/storage"
)

// Verdict is the tri-state result of comparing a source file with its reference
type Verdict string

const (
	// Identical indicates the contents match
	Identical Verdict = "identical"
	// Differs indicates the contents differ
	Differs Verdict = "differs"
	// Absent indicates the reference file does not exist
	Absent Verdict = "absent"
)

// Comparison holds the result of comparing two files
type Comparison struct {
	Verdict Verdict
	Reason  string
}

// Comparator defines the interface for file comparison algorithms.
// Compare checks source/path against reference/path. I/O failures are
// returned as errors, never folded into a verdict.
type Comparator interface {
	Compare(ctx context.Context, source, reference storage.Backend, path string) (*Comparison, error)

	// Name returns the name of the comparison method
	Name() string
}

// Method names accepted by New
const (
	MethodSampled = "sampled"
	MethodMD5     = "md5"
	MethodBinary  = "binary"
)

// Methods lists the supported comparison methods
var Methods = []string{MethodSampled, MethodMD5, MethodBinary}

// Options holds the tunables shared by all comparators
type Options struct {
	// LargeFileThreshold is the size above which the sampled comparator
	// stops hashing and compares sample windows instead
	LargeFileThreshold int64

	// SampleSize is the length of each sample window
	SampleSize int64

	// BufferSize is the read buffer used while hashing or streaming
	BufferSize int

	// Limiter throttles every read when non-nil
	Limiter *ratelimit.Limiter
}

// DefaultOptions returns the default thresholds:
// 10 MiB large-file threshold, 64 KiB windows and buffers
func DefaultOptions() Options {
	return Options{
		LargeFileThreshold: 10 * 1024 * 1024,
		SampleSize:         64 * 1024,
		BufferSize:         64 * 1024,
	}
}

// Validate checks the options
func (o Options) Validate() error {
	if o.LargeFileThreshold < 0 {
		return &models.ValidationError{Field: "LargeFileThreshold", Message: "must not be negative"}
	}
	if o.SampleSize < 1 {
		return &models.ValidationError{Field: "SampleSize", Message: "must be at least 1 byte"}
	}
	if o.BufferSize < 1024 {
		return &models.ValidationError{Field: "BufferSize", Message: "must be at least 1024 bytes"}
	}
	return nil
}

// New creates the comparator for a method name
func New(method string, opts Options) (Comparator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch method {
	case MethodSampled, "":
		return NewSampledComparator(opts), nil
	case MethodMD5:
		return NewMD5Comparator(opts), nil
	case MethodBinary:
		return NewBinaryComparator(opts), nil
	default:
		return nil, &models.ValidationError{
			Field:   "method",
			Message: fmt.Sprintf("unsupported comparison method %q (use: sampled, md5, binary)", method),
		}
	}
}

// reader bundles the buffer pool and throttling shared by the comparators
type reader struct {
	opts       Options
	bufferPool *sync.Pool
}

func newReader(opts Options) reader {
	if opts.BufferSize < 4096 {
		opts.BufferSize = 4096
	}
	size := opts.BufferSize
	return reader{
		opts: opts,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// throttle applies the shared limiter to r. The limiter ignores
// cancellation of ctx: a comparison that has started reads to the end.
func (c *reader) throttle(ctx context.Context, r io.Reader) io.Reader {
	return ratelimit.NewReader(context.WithoutCancel(ctx), r, c.opts.Limiter)
}

// throttleAt is throttle for positioned reads
func (c *reader) throttleAt(ctx context.Context, r io.ReaderAt) io.ReaderAt {
	return ratelimit.NewReaderAt(context.WithoutCancel(ctx), r, c.opts.Limiter)
}

// precheck performs the steps common to every method: reference existence,
// then size. It returns a non-nil Comparison when the verdict is already known.
func precheck(ctx context.Context, source, reference storage.Backend, path string) (int64, *Comparison, error) {
	exists, err := reference.Exists(ctx, path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to check reference existence: %w", err)
	}
	if !exists {
		return 0, &Comparison{Verdict: Absent, Reason: "reference file does not exist"}, nil
	}

	sourceInfo, err := source.Stat(ctx, path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to stat source: %w", err)
	}

	referenceInfo, err := reference.Stat(ctx, path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to stat reference: %w", err)
	}

	if sourceInfo.Size != referenceInfo.Size {
		return sourceInfo.Size, &Comparison{
			Verdict: Differs,
			Reason:  fmt.Sprintf("size mismatch: source=%d, reference=%d", sourceInfo.Size, referenceInfo.Size),
		}, nil
	}

	return sourceInfo.Size, nil, nil
}
