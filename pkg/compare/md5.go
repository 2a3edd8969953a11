package compare

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/sdejongh/toolbelt/pkg/storage"
)

// MD5Comparator compares files using a whole-file MD5 digest.
// MD5 is used for equality detection only, not for security.
type MD5Comparator struct {
	reader
}

// NewMD5Comparator creates a new MD5-based comparator
func NewMD5Comparator(opts Options) *MD5Comparator {
	return &MD5Comparator{reader: newReader(opts)}
}

// Compare compares two files using MD5 hashes
func (c *MD5Comparator) Compare(ctx context.Context, source, reference storage.Backend, path string) (*Comparison, error) {
	_, result, err := precheck(ctx, source, reference, path)
	if err != nil || result != nil {
		return result, err
	}
	return c.compareDigests(ctx, source, reference, path)
}

// compareDigests hashes both files and compares the digests
func (c *reader) compareDigests(ctx context.Context, source, reference storage.Backend, path string) (*Comparison, error) {
	sourceHash, err := c.hashFile(ctx, source, path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash source: %w", err)
	}

	referenceHash, err := c.hashFile(ctx, reference, path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash reference: %w", err)
	}

	if sourceHash == referenceHash {
		return &Comparison{Verdict: Identical, Reason: "MD5 hashes match"}, nil
	}
	return &Comparison{Verdict: Differs, Reason: "MD5 hash mismatch"}, nil
}

// hashFile computes the MD5 digest of an entire file
func (c *reader) hashFile(ctx context.Context, backend storage.Backend, path string) (string, error) {
	file, err := backend.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	src := c.throttle(ctx, file)

	bufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufPtr)

	hash := md5.New()
	if _, err := io.CopyBuffer(hash, src, *bufPtr); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// Name returns the comparator name
func (c *MD5Comparator) Name() string {
	return MethodMD5
}
