package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sdejongh/toolbelt/pkg/storage"
)

// BinaryComparator compares files byte-by-byte
// Slowest method, but exact and reports the first differing offset
type BinaryComparator struct {
	reader
}

// NewBinaryComparator creates a new byte-by-byte comparator
func NewBinaryComparator(opts Options) *BinaryComparator {
	return &BinaryComparator{reader: newReader(opts)}
}

// Compare compares two files byte-by-byte
func (c *BinaryComparator) Compare(ctx context.Context, source, reference storage.Backend, path string) (*Comparison, error) {
	_, result, err := precheck(ctx, source, reference, path)
	if err != nil || result != nil {
		return result, err
	}

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

	sourceReader := c.throttle(ctx, sourceFile)
	referenceReader := c.throttle(ctx, referenceFile)

	sourceBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(sourceBufPtr)
	sourceBuf := *sourceBufPtr

	referenceBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(referenceBufPtr)
	referenceBuf := *referenceBufPtr

	var compared int64
	for {
		// ReadFull keeps both sides aligned even when the OS returns short reads
		n1, err1 := io.ReadFull(sourceReader, sourceBuf)
		n2, err2 := io.ReadFull(referenceReader, referenceBuf)

		if err1 != nil && err1 != io.EOF && err1 != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read source: %w", err1)
		}
		if err2 != nil && err2 != io.EOF && err2 != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read reference: %w", err2)
		}

		if !bytes.Equal(sourceBuf[:n1], referenceBuf[:n2]) {
			limit := n1
			if n2 < limit {
				limit = n2
			}
			offset := compared + int64(limit)
			for i := 0; i < limit; i++ {
				if sourceBuf[i] != referenceBuf[i] {
					offset = compared + int64(i)
					break
				}
			}
			return &Comparison{
				Verdict: Differs,
				Reason:  fmt.Sprintf("binary content differs at byte offset %d", offset),
			}, nil
		}

		compared += int64(n1)

		// A short or empty read on both sides means both files ended together
		if err1 != nil || err2 != nil {
			break
		}
	}

	return &Comparison{
		Verdict: Identical,
		Reason:  fmt.Sprintf("binary content matches (%d bytes)", compared),
	}, nil
}

// Name returns the comparator name
func (c *BinaryComparator) Name() string {
	return MethodBinary
}
