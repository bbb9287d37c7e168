// Package markdown turns markdown documents into text suitable for speech.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Options controls how markup is spoken.
type Options struct {
	// SpeakCode reads code blocks instead of replacing them with a short
	// placeholder.
	SpeakCode bool
}

// CodePlaceholder replaces code blocks when SpeakCode is off.
const CodePlaceholder = "Code block omitted."

// Plain renders markdown source as plain text. Headings, paragraphs and list
// items end in a sentence break so they are not run together; link targets,
// HTML and images without alt text are dropped.
func Plain(src string, opts Options) string {
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	w := &walker{source: source, opts: opts}
	w.walk(doc)
	return strings.TrimSpace(w.buf.String())
}

type walker struct {
	source []byte
	opts   Options
	buf    strings.Builder
}

func (w *walker) walk(node ast.Node) {
	switch n := node.(type) {
	case *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.CodeBlock, *ast.FencedCodeBlock:
		if !w.opts.SpeakCode {
			w.buf.WriteString(CodePlaceholder + " ")
			return
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.buf.Write(seg.Value(w.source))
		}
		w.stop()
		return

	case *ast.Text:
		w.buf.Write(n.Segment.Value(w.source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.buf.WriteByte(' ')
		}
		return

	case *ast.String:
		w.buf.Write(n.Value)
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				w.buf.Write(t.Segment.Value(w.source))
			}
		}
		return

	case *ast.Image:
		// alt text only
		w.children(n)
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem:
		w.children(n)
		w.stop()
		return

	case *ast.ThematicBreak:
		w.stop()
		return
	}

	w.children(node)
}

func (w *walker) children(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.walk(c)
	}
}

// stop ends the current sentence unless it already ends in punctuation.
func (w *walker) stop() {
	s := strings.TrimRight(w.buf.String(), " \t\n")
	if s == "" {
		return
	}
	w.buf.Reset()
	w.buf.WriteString(s)
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		w.buf.WriteByte(' ')
	default:
		w.buf.WriteString(". ")
	}
}
