package notebook

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Underline characters for heading levels 1 through 6
const headingChars = "=-~^'\""

const rstIndent = "   "

var rstEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "`", "\\`", "|", `\|`)

// MarkdownToRST renders CommonMark source as reStructuredText. The result
// ends with a newline unless it is empty.
func MarkdownToRST(src []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	w := &rstWriter{source: src}
	out := strings.TrimRight(w.blocks(doc), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

type rstWriter struct {
	source []byte
}

func (w *rstWriter) blocks(parent ast.Node) string {
	var parts []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if s := w.block(n); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (w *rstWriter) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Heading:
		title := strings.ReplaceAll(w.inlines(n), "\n", " ")
		level := min(max(n.Level, 1), len(headingChars))
		width := max(utf8.RuneCountInString(title), 1)
		return title + "\n" + strings.Repeat(headingChars[level-1:level], width)
	case *ast.Paragraph:
		if img, ok := n.FirstChild().(*ast.Image); ok && n.ChildCount() == 1 {
			return w.image(img)
		}
		return w.inlines(n)
	case *ast.TextBlock:
		return w.inlines(n)
	case *ast.ThematicBreak:
		return "----"
	case *ast.FencedCodeBlock:
		body := indent(w.lines(n), rstIndent)
		if lang := string(n.Language(w.source)); lang != "" {
			return ".. code-block:: " + lang + "\n\n" + body
		}
		return "::\n\n" + body
	case *ast.CodeBlock:
		return "::\n\n" + indent(w.lines(n), rstIndent)
	case *ast.Blockquote:
		return indent(w.blocks(n), rstIndent)
	case *ast.List:
		return w.list(n)
	case *ast.HTMLBlock:
		raw := w.lines(n)
		if n.HasClosure() {
			raw += "\n" + strings.TrimRight(string(n.ClosureLine.Value(w.source)), "\n")
		}
		return ".. raw:: html\n\n" + indent(strings.TrimRight(raw, "\n"), rstIndent)
	default:
		return w.blocks(n)
	}
}

func (w *rstWriter) list(n *ast.List) string {
	var items []string
	num := n.Start
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "-"
		if n.IsOrdered() {
			marker = strconv.Itoa(num) + "."
			num++
		}
		pad := strings.Repeat(" ", len(marker)+1)
		lines := strings.Split(w.blocks(item), "\n")
		for i, line := range lines {
			switch {
			case i == 0:
				lines[i] = marker + " " + line
			case line != "":
				lines[i] = pad + line
			}
		}
		items = append(items, strings.Join(lines, "\n"))
	}
	sep := "\n"
	if !n.IsTight {
		sep = "\n\n"
	}
	return strings.Join(items, sep)
}

func (w *rstWriter) image(img *ast.Image) string {
	out := ".. image:: " + string(img.Destination)
	if alt := w.plain(img); alt != "" {
		out += "\n" + rstIndent + ":alt: " + alt
	}
	return out
}

// lines joins the raw source lines of a block without the final newline
func (w *rstWriter) lines(n ast.Node) string {
	var b strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(w.source))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (w *rstWriter) inlines(parent ast.Node) string {
	var b strings.Builder
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		w.inline(&b, n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (w *rstWriter) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.WriteString(rstEscaper.Replace(string(n.Value(w.source))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteByte('\n')
		}
	case *ast.String:
		b.WriteString(rstEscaper.Replace(string(n.Value)))
	case *ast.CodeSpan:
		b.WriteString("``" + w.plain(n) + "``")
	case *ast.Emphasis:
		mark := "*"
		if n.Level >= 2 {
			mark = "**"
		}
		b.WriteString(mark + w.inlines(n) + mark)
	case *ast.Link:
		label, dest := w.inlines(n), string(n.Destination)
		if label == "" || label == dest {
			b.WriteString(dest)
			return
		}
		fmt.Fprintf(b, "`%s <%s>`__", label, dest)
	case *ast.AutoLink:
		b.Write(n.URL(w.source))
	case *ast.Image:
		alt, dest := w.plain(n), string(n.Destination)
		if alt == "" {
			alt = dest
		}
		fmt.Fprintf(b, "`%s <%s>`__", alt, dest)
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.source))
		}
	default:
		b.WriteString(w.inlines(n))
	}
}

// plain returns the unescaped text content of n
func (w *rstWriter) plain(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Value(w.source))
			if c.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
