package compare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sdejongh/toolbelt/pkg/storage"
)

// SampledComparator is the default dedup comparator.
//
// Files up to LargeFileThreshold bytes are compared by whole-file MD5.
// Larger files are compared on three SampleSize windows only (start, middle
// and end). Two large files that differ only outside those windows are
// reported as identical; this trade of accuracy for speed is intentional.
type SampledComparator struct {
	reader
}

// NewSampledComparator creates a new sampling comparator
func NewSampledComparator(opts Options) *SampledComparator {
	return &SampledComparator{reader: newReader(opts)}
}

// Compare compares two files, sampling when they are large
func (c *SampledComparator) Compare(ctx context.Context, source, reference storage.Backend, path string) (*Comparison, error) {
	size, result, err := precheck(ctx, source, reference, path)
	if err != nil || result != nil {
		return result, err
	}

	if size > c.opts.LargeFileThreshold {
		return c.compareSamples(ctx, source, reference, path, size)
	}
	return c.compareDigests(ctx, source, reference, path)
}

// SampleOffsets returns the start offsets of the windows compared for a file
// of the given size: 0, size/2 and size-sampleSize (clamped at 0)
func SampleOffsets(size, sampleSize int64) []int64 {
	last := size - sampleSize
	if last < 0 {
		last = 0
	}
	return []int64{0, size / 2, last}
}

// compareSamples compares the sample windows byte-for-byte
func (c *SampledComparator) compareSamples(ctx context.Context, source, reference storage.Backend, path string, size int64) (*Comparison, error) {
	sourceFile, err := source.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer sourceFile.Close()

	referenceFile, err := reference.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	defer referenceFile.Close()

	sourceAt := c.throttleAt(ctx, sourceFile)
	referenceAt := c.throttleAt(ctx, referenceFile)

	sourceBuf := make([]byte, c.opts.SampleSize)
	referenceBuf := make([]byte, c.opts.SampleSize)

	for _, offset := range SampleOffsets(size, c.opts.SampleSize) {
		n1, err := readWindow(sourceAt, sourceBuf, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to read source at offset %d: %w", offset, err)
		}
		n2, err := readWindow(referenceAt, referenceBuf, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference at offset %d: %w", offset, err)
		}

		if n1 != n2 || !bytes.Equal(sourceBuf[:n1], referenceBuf[:n2]) {
			return &Comparison{
				Verdict: Differs,
				Reason:  fmt.Sprintf("sample window at offset %d differs", offset),
			}, nil
		}
	}

	return &Comparison{
		Verdict: Identical,
		Reason:  fmt.Sprintf("sample windows match (%d windows of %d bytes)", 3, c.opts.SampleSize),
	}, nil
}

// readWindow reads up to len(buf) bytes at offset; a short read at EOF is not an error
func readWindow(r io.ReaderAt, buf []byte, offset int64) (int, error) {
	n, err := r.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	return n, nil
}

// Name returns the comparator name
func (c *SampledComparator) Name() string {
	return MethodSampled
}
