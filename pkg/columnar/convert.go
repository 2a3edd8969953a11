package columnar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ArrowExt is the extension of Arrow IPC shards
const ArrowExt = ".arrow"

// ConvertOptions controls where converted files are written
type ConvertOptions struct {
	// OutputDir receives the .parquet files
	OutputDir string
	// Overwrite replaces existing outputs instead of skipping them
	Overwrite bool
	// PreserveSubdirs mirrors the source tree below OutputDir; otherwise
	// every output is written flat into OutputDir
	PreserveSubdirs bool
}

// FindArrowFiles returns every .arrow file below dir, sorted
func FindArrowFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ArrowExt) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list arrow files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns the .parquet path for an arrow file found below sourceDir
func OutputPath(src, sourceDir string, opts ConvertOptions) (string, error) {
	name := filepath.Base(src)
	if opts.PreserveSubdirs {
		rel, err := filepath.Rel(sourceDir, src)
		if err != nil {
			return "", err
		}
		name = rel
	}
	return filepath.Join(opts.OutputDir, strings.TrimSuffix(name, filepath.Ext(name))+".parquet"), nil
}

// ConvertFile rewrites one Arrow IPC file as Parquet, one record batch at a
// time. The IPC file format is tried first, then the stream format. It
// returns the number of rows written. A failed conversion leaves no output.
func ConvertFile(ctx context.Context, src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	mem := memory.DefaultAllocator

	if fr, err := ipc.NewFileReader(in, ipc.WithAllocator(mem)); err == nil {
		defer fr.Close()
		return writeParquet(dst, fr.Schema(), func(write func(arrow.Record) error) error {
			for i := 0; i < fr.NumRecords(); i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				rec, err := fr.RecordAt(i)
				if err != nil {
					return fmt.Errorf("failed to read record batch %d: %w", i, err)
				}
				err = write(rec)
				rec.Release()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind %s: %w", src, err)
	}
	sr, err := ipc.NewReader(in, ipc.WithAllocator(mem))
	if err != nil {
		return 0, fmt.Errorf("%s is neither an arrow IPC file nor a stream: %w", src, err)
	}
	defer sr.Release()

	return writeParquet(dst, sr.Schema(), func(write func(arrow.Record) error) error {
		for sr.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := write(sr.Record()); err != nil {
				return err
			}
		}
		return sr.Err()
	})
}

// writeParquet streams the batches produced by each into a snappy-compressed
// Parquet file at dst
func writeParquet(dst string, schema *arrow.Schema, each func(write func(arrow.Record) error) error) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	w, err := pqarrow.NewFileWriter(schema, out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	// Close writes the footer and closes out
	err = each(w.Write)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}
	return int64(w.NumRows()), nil
}

// ConvertResult describes the conversion of one arrow file
type ConvertResult struct {
	Source  string
	Output  string
	Rows    int64
	Skipped bool
	Err     error
}

// ConvertSummary aggregates a directory conversion
type ConvertSummary struct {
	Found     int
	Converted int
	Skipped   int
	Failed    int
}

// ErrNoArrowFiles is returned when the source tree holds no .arrow file
var ErrNoArrowFiles = errors.New("no .arrow files found")

// ConvertDir converts every .arrow file below sourceDir. Files fail
// independently; onResult is called after each file when non-nil.
func ConvertDir(ctx context.Context, sourceDir string, opts ConvertOptions, onResult func(ConvertResult)) (*ConvertSummary, error) {
	files, err := FindArrowFiles(sourceDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoArrowFiles, sourceDir)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &ConvertSummary{Found: len(files)}
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := ConvertResult{Source: src}
		result.Output, result.Err = OutputPath(src, sourceDir, opts)
		if result.Err == nil {
			if _, statErr := os.Stat(result.Output); statErr == nil && !opts.Overwrite {
				result.Skipped = true
			} else {
				result.Rows, result.Err = ConvertFile(ctx, src, result.Output)
			}
		}

		switch {
		case result.Err != nil:
			summary.Failed++
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Converted++
		}
		if onResult != nil {
			onResult(result)
		}
	}
	return summary, nil
}
