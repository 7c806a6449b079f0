package frontend

import (
	"bytes"
	"html/template"
	"log"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// newMarkdown renders agent answers and podcast scripts. Raw HTML in the
// source is escaped.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

func (f *Frontend) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := f.md.Convert([]byte(src), &buf); err != nil {
		log.Printf("frontend: rendering markdown: %v", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
