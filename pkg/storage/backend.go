package storage

import (
	"context"
	"io"
)

// FileInfo represents metadata about a file
type FileInfo struct {
	Size         int64
	IsDir        bool
	RelativePath string
}

// File is an open file that supports both streaming and positioned reads
type File interface {
	io.ReadCloser
	io.ReaderAt
}

// Backend defines the interface for storage operations
// Only the local filesystem is implemented
type Backend interface {
	// Root returns the absolute root path of the backend
	Root() string

	// List returns all regular files below the root recursively
	List(ctx context.Context) ([]FileInfo, error)

	// Open opens a file for reading
	Open(ctx context.Context, path string) (File, error)

	// Remove deletes a single file; directories are never removed recursively
	Remove(ctx context.Context, path string) error

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns file metadata
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// PruneEmptyDirs removes empty directories below the root, bottom-up,
	// and returns how many were removed
	PruneEmptyDirs(ctx context.Context) int

	// Close releases any resources held by the backend
	Close() error
}
