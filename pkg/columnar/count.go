// Package columnar reads and writes Apache Arrow and Parquet files.
//
// Row counts come from Parquet footers only; column data is never decoded.
package columnar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/parquet/file"
)

// ErrRemoteDataset is returned for object-store URIs, which are not read
var ErrRemoteDataset = errors.New("remote datasets are not supported")

// FileRows is the row count of one Parquet file
type FileRows struct {
	Path      string
	RowGroups int
	Rows      int64
}

// CountResult is the row count of a file or dataset directory
type CountResult struct {
	Files []FileRows
	Rows  int64
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// CountRows sums the row counts of a Parquet file, or of every data file
// below a dataset directory (flat shards or hive-style partitions).
// Files whose name starts with "_" or "." are metadata and are skipped.
func CountRows(ctx context.Context, path string) (*CountResult, error) {
	if strings.Contains(path, "://") {
		return nil, fmt.Errorf("%s: %w", path, ErrRemoteDataset)
	}
	path = ExpandHome(path)

	files, err := datasetFiles(ctx, path)
	if err != nil {
		return nil, err
	}

	result := &CountResult{Files: make([]FileRows, 0, len(files))}
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := footerRows(p)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, rows)
		result.Rows += rows.Rows
	}
	return result, nil
}

// datasetFiles lists the data files of a dataset in path order
func datasetFiles(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access dataset: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p != root && hiddenName(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func hiddenName(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// footerRows reads the row count of one file from its footer metadata
func footerRows(path string) (FileRows, error) {
	reader, err := file.OpenParquetFile(path, false)
	if err != nil {
		return FileRows{}, fmt.Errorf("failed to read parquet footer of %s: %w", path, err)
	}
	defer reader.Close()

	return FileRows{
		Path:      path,
		RowGroups: reader.NumRowGroups(),
		Rows:      reader.NumRows(),
	}, nil
}
