package htmltext

import (
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// skipped elements never contribute text
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Select:   true,
}

// paragraphs are separated from their surroundings by a blank line
var paragraphs = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Pre: true,
	atom.Blockquote: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
	atom.Dl: true, atom.Hr: true, atom.Figure: true,
}

// lines start on a new line
var lines = map[atom.Atom]bool{
	atom.Div: true, atom.Li: true, atom.Tr: true, atom.Section: true,
	atom.Article: true, atom.Header: true, atom.Footer: true, atom.Nav: true,
	atom.Main: true, atom.Aside: true, atom.Dt: true, atom.Dd: true,
	atom.Form: true, atom.Caption: true, atom.Figcaption: true, atom.Address: true,
}

// Convert parses an HTML document and renders its visible text. Block
// elements start new lines, list items are prefixed with "* " and
// whitespace outside <pre> is collapsed. The result is NFC-normalized and
// trimmed.
func Convert(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var t renderer
	t.walk(doc)
	return norm.NFC.String(t.String()), nil
}

// renderer accumulates text while walking the DOM
type renderer struct {
	sb        strings.Builder
	trailing  int  // consecutive newlines at the end of sb
	space     bool // a collapsed space is pending
	pre       int  // depth inside <pre>
	listDepth int
}

func (t *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		t.text(n.Data)
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
	case html.DocumentNode:
	default:
		return
	}

	a := n.DataAtom
	switch {
	case a == atom.Br:
		t.sb.WriteByte('\n')
		t.trailing++
		t.space = false
		return
	case a == atom.Td || a == atom.Th:
		t.space = true
	}
	gap := t.gap(a)
	t.breakLines(gap)

	switch a {
	case atom.Pre:
		t.pre++
		defer func() { t.pre-- }()
	case atom.Ul, atom.Ol:
		t.listDepth++
		defer func() { t.listDepth-- }()
	case atom.Li:
		depth := max(t.listDepth, 1)
		t.sb.WriteString(strings.Repeat("  ", depth-1) + "* ")
		t.trailing = 0
		t.space = false
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.walk(c)
	}
	t.breakLines(gap)
}

// gap returns the number of newlines that must surround element a
func (t *renderer) gap(a atom.Atom) int {
	switch {
	case (a == atom.Ul || a == atom.Ol) && t.listDepth > 0:
		// nested lists stay attached to their parent item
		return 1
	case paragraphs[a]:
		return 2
	case lines[a]:
		return 1
	}
	return 0
}

func (t *renderer) text(s string) {
	if s == "" {
		return
	}
	if t.pre > 0 {
		t.raw(s)
		return
	}

	if first, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(first) {
		t.space = true
	}
	for i, w := range strings.Fields(s) {
		if i > 0 {
			t.space = true
		}
		t.word(w)
	}
	if last, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(last) {
		t.space = true
	}
}

func (t *renderer) word(w string) {
	if t.space && t.sb.Len() > 0 && t.trailing == 0 {
		t.sb.WriteByte(' ')
	}
	t.sb.WriteString(w)
	t.trailing = 0
	t.space = false
}

func (t *renderer) raw(s string) {
	t.sb.WriteString(s)
	body := strings.TrimRight(s, "\n")
	if body == "" {
		t.trailing += len(s)
	} else {
		t.trailing = len(s) - len(body)
	}
	t.space = false
}

// breakLines ends the current line so that at least n newlines separate it
// from what follows. Nothing is emitted at the start of the document.
func (t *renderer) breakLines(n int) {
	if n == 0 {
		return
	}
	t.space = false
	if t.sb.Len() == 0 {
		return
	}
	for t.trailing < n {
		t.sb.WriteByte('\n')
		t.trailing++
	}
}

// String returns the text with trailing blanks stripped from every line
func (t *renderer) String() string {
	out := strings.Split(t.sb.String(), "\n")
	for i, line := range out {
		out[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var (
	blanks   = regexp.MustCompile(`[ \t]+`)
	newlines = regexp.MustCompile(`\n{2,}`)
)

// Clean collapses runs of spaces and tabs to one space and runs of blank
// lines to a single blank line
func Clean(text string) string {
	text = blanks.ReplaceAllString(text, " ")
	text = newlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
