// Package pdfmeta removes identifying metadata from PDF documents: the
// document information dictionary and the XMP metadata stream of the catalog.
package pdfmeta

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// OutputPrefix is prepended to the input name when no output is given
const OutputPrefix = "stripped_"

var disableConfigDir sync.Once

// Metadata lists what a document carries
type Metadata struct {
	// InfoKeys are the keys of the document information dictionary
	InfoKeys []string
	// HasXMP reports an XMP stream attached to the catalog
	HasXMP bool
}

// Empty reports whether no metadata was found
func (m Metadata) Empty() bool {
	return len(m.InfoKeys) == 0 && !m.HasXMP
}

// Result describes one stripped document
type Result struct {
	Source  string
	Output  string
	Removed Metadata
}

// DefaultOutputPath returns stripped_<name> next to src
func DefaultOutputPath(src string) string {
	return filepath.Join(filepath.Dir(src), OutputPrefix+filepath.Base(src))
}

func readContext(path string) (*model.Context, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF %s: %w", path, err)
	}
	return ctx, nil
}

func inspect(ctx *model.Context) (Metadata, error) {
	var m Metadata

	if ctx.Info != nil {
		info, err := ctx.DereferenceDict(*ctx.Info)
		if err != nil {
			return m, fmt.Errorf("failed to read info dictionary: %w", err)
		}
		for k := range info {
			m.InfoKeys = append(m.InfoKeys, k)
		}
		sort.Strings(m.InfoKeys)
	}

	root, err := ctx.Catalog()
	if err != nil {
		return m, fmt.Errorf("failed to read catalog: %w", err)
	}
	_, m.HasXMP = root["Metadata"]
	return m, nil
}

// Inspect reports the metadata of a PDF without modifying it
func Inspect(path string) (Metadata, error) {
	ctx, err := readContext(path)
	if err != nil {
		return Metadata{}, err
	}
	return inspect(ctx)
}

// Strip writes a copy of src to dst without the information dictionary or
// the catalog XMP stream. dst may equal src; the output is written to a
// temporary file and renamed into place. The PDF writer stamps a fresh
// Producer and dates into the new information dictionary.
func Strip(src, dst string) (*Result, error) {
	ctx, err := readContext(src)
	if err != nil {
		return nil, err
	}

	removed, err := inspect(ctx)
	if err != nil {
		return nil, err
	}

	root, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	delete(root, "Metadata")

	if ctx.Info != nil {
		info, err := ctx.DereferenceDict(*ctx.Info)
		if err == nil {
			for k := range info {
				delete(info, k)
			}
		}
		ctx.Info = nil
	}

	if err := writeAtomic(ctx, dst); err != nil {
		return nil, err
	}
	return &Result{Source: src, Output: dst, Removed: removed}, nil
}

func writeAtomic(ctx *model.Context, dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pdfmeta-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := api.WriteContext(ctx, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
