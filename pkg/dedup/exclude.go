package dedup

import (
	"path"
	"path/filepath"
	"strings"
)

// Excluder decides which source files are left out of a run.
//
// Pattern forms:
//   - basename globs: *.tmp, Thumbs.db
//   - directory patterns with a trailing slash: .git/, node_modules/
//   - path globs containing a slash: build/*, docs/*.md
//   - any-depth globs: **/cache/*, **/*.bak
type Excluder struct {
	patterns []string
}

// NewExcluder normalizes patterns to forward slashes and drops empty ones
func NewExcluder(patterns []string) *Excluder {
	e := &Excluder{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		e.patterns = append(e.patterns, filepath.ToSlash(p))
	}
	return e
}

// Patterns returns the normalized patterns
func (e *Excluder) Patterns() []string {
	return e.patterns
}

// Match reports whether relativePath is excluded by any pattern
func (e *Excluder) Match(relativePath string) bool {
	if len(e.patterns) == 0 {
		return false
	}

	rel := filepath.ToSlash(relativePath)
	for _, pattern := range e.patterns {
		if matchPattern(pattern, rel) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, rel string) bool {
	switch {
	case strings.HasSuffix(pattern, "/"):
		return underDir(strings.TrimSuffix(pattern, "/"), rel)

	case strings.HasPrefix(pattern, "**/"):
		suffix := strings.TrimPrefix(pattern, "**/")
		if globMatch(suffix, path.Base(rel)) {
			return true
		}
		// try the suffix against every tail of the path
		parts := strings.Split(rel, "/")
		for i := range parts {
			if globMatch(suffix, strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false

	case strings.Contains(pattern, "/"):
		return globMatch(pattern, rel) || strings.HasSuffix(rel, "/"+pattern)

	default:
		return globMatch(pattern, path.Base(rel))
	}
}

// underDir reports whether rel lies inside a directory named dir at any depth
func underDir(dir, rel string) bool {
	if strings.Contains(dir, "/") {
		return rel == dir || strings.HasPrefix(rel, dir+"/")
	}
	parts := strings.Split(rel, "/")
	// the last element is the file itself
	for _, part := range parts[:len(parts)-1] {
		if globMatch(dir, part) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	matched, _ := path.Match(pattern, name)
	return matched
}
