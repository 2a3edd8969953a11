// Package notebook converts Jupyter notebooks into Sphinx-Gallery example
// scripts: a docstring header, commented text blocks and plain code.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ErrFirstCellNotMarkdown is returned when a notebook does not open with a
// markdown cell to use as the script docstring.
var ErrFirstCellNotMarkdown = errors.New("first cell has to be markdown")

// Cell separator line used by Sphinx-Gallery between text blocks
var blockSeparator = strings.Repeat("#", 70)

// Cell magics that still run Python code
var pythonCellMagics = map[string]bool{
	"time":    true,
	"timeit":  true,
	"capture": true,
	"prun":    true,
	"python":  true,
}

var lineMagicRe = regexp.MustCompile(`^%?%[a-zA-Z]+`)

// Notebook is the subset of the nbformat document the converter reads
type Notebook struct {
	Cells []Cell `json:"cells"`
}

// Cell is a single notebook cell
type Cell struct {
	CellType string `json:"cell_type"`
	Source   Source `json:"source"`
}

// Source holds cell text. nbformat stores it either as one string or as a
// list of lines.
type Source string

// UnmarshalJSON accepts both string and []string encodings
func (s *Source) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Source(str)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("cell source must be a string or list of strings: %w", err)
	}
	*s = Source(strings.Join(lines, ""))
	return nil
}

// Parse decodes a notebook document
func Parse(r io.Reader) (*Notebook, error) {
	var nb Notebook
	if err := json.NewDecoder(r).Decode(&nb); err != nil {
		return nil, fmt.Errorf("failed to parse notebook: %w", err)
	}
	return &nb, nil
}

// Load reads and parses the notebook at path
func Load(path string) (*Notebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ToGalleryScript renders nb as a Sphinx-Gallery Python script
func ToGalleryScript(nb *Notebook) (string, error) {
	var b strings.Builder
	for i, cell := range nb.Cells {
		src := string(cell.Source)
		if i == 0 {
			if cell.CellType != "markdown" {
				return "", ErrFirstCellNotMarkdown
			}
			b.WriteString(`"""` + "\n" + MarkdownToRST([]byte(src)) + "\n" + `"""`)
			continue
		}

		switch cell.CellType {
		case "markdown", "raw":
			rst := src
			if cell.CellType == "markdown" {
				rst = MarkdownToRST([]byte(src))
			}
			b.WriteString("\n\n" + blockSeparator + "\n" + commentBlock(rst))
		case "code":
			b.WriteString("\n\n" + CommentMagics(src))
		}
	}

	out := b.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, nil
}

// commentBlock prefixes every line with "# ", leaving blank lines as "#"
func commentBlock(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = "#"
		} else {
			lines[i] = "# " + line
		}
	}
	return strings.Join(lines, "\n")
}

// CommentMagics comments out IPython magics and shell escapes so the cell
// parses as plain Python. A cell magic that is not Python comments out the
// whole cell.
func CommentMagics(code string) string {
	lines := splitKeepEnds(code)
	if len(lines) == 0 {
		return code
	}

	if name, ok := cellMagic(lines[0]); ok && !pythonCellMagics[name] {
		for i, line := range lines {
			lines[i] = "# " + line
		}
		return strings.Join(lines, "")
	}

	for i, line := range lines {
		stripped := strings.TrimLeftFunc(line, unicode.IsSpace)
		if isMagicLine(stripped) {
			lines[i] = "# " + line
		}
	}
	return strings.Join(lines, "")
}

// cellMagic returns the magic name when line opens a %%magic cell
func cellMagic(line string) (string, bool) {
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	if !strings.HasPrefix(line, "%%") {
		return "", false
	}
	fields := strings.Fields(line[2:])
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func isMagicLine(stripped string) bool {
	switch {
	case strings.HasPrefix(stripped, "%") && lineMagicRe.MatchString(stripped):
		return true
	case strings.HasPrefix(stripped, "!"), strings.HasPrefix(stripped, "?"):
		return true
	case strings.HasSuffix(strings.TrimSpace(stripped), "?"):
		return true
	}
	return false
}

// splitKeepEnds splits s into lines, each keeping its trailing newline
func splitKeepEnds(s string) []string {
	var lines []string
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// DefaultOutputPath swaps the notebook extension for .py
func DefaultOutputPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".py"
}

// ConvertFile converts the notebook at src and writes the script to dst
func ConvertFile(src, dst string) error {
	nb, err := Load(src)
	if err != nil {
		return err
	}
	script, err := ToGalleryScript(nb)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.WriteFile(dst, []byte(script), 0o644)
}
