package ui

import (
	"regexp"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
)

// renderMarkdown renders a finished reply for the terminal. Links are reduced
// to their URL so the terminal can detect them.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width, 0)
	doc := p.Parse([]byte(content))
	rendered := string(gomarkdown.Render(doc, r))

	// Inline code comes out blue-on-italic; red text reads better on dark themes.
	return inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
}
