package platform

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath cleans a path for the current platform, keeping the
// leading double separator of Windows UNC paths
func NormalizePath(path string) string {
	normalized := filepath.Clean(path)

	if runtime.GOOS == "windows" {
		if strings.HasPrefix(path, `\\`) && !strings.HasPrefix(normalized, `\\`) {
			normalized = `\\` + normalized
		}
	}

	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	if runtime.GOOS == "windows" && !IsUNCPath(path) {
		// a drive letter colon is allowed
		rest := path
		if len(rest) >= 2 && rest[1] == ':' {
			rest = rest[2:]
		}
		for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
			if strings.Contains(rest, char) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// ResolveDir validates path and returns it absolute and cleaned. The path
// must exist and be a directory.
func ResolveDir(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(NormalizePath(path))
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &PathError{Path: path, Message: "directory does not exist"}
	}
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}
	if !info.IsDir() {
		return "", &PathError{Path: path, Message: "not a directory"}
	}

	return abs, nil
}

// CheckSeparate validates a source/reference directory pair. They must
// differ and the reference must not lie inside the source, since files of
// the source may be deleted. A source nested in the reference is fine: a
// reference path never resolves to a source file.
func CheckSeparate(source, reference string) error {
	if samePath(source, reference) {
		return &PathError{Path: reference, Message: "both directories are the same"}
	}
	if within(reference, source) {
		return &PathError{Path: reference, Message: "directory is inside " + source}
	}
	return nil
}

// within reports whether child lies strictly below parent
func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	// symlinked or differently spelled paths to the same directory
	ia, errA := os.Stat(a)
	ib, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(ia, ib)
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
