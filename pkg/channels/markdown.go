package channels

import (
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderMarkdown turns a bot reply into HTML. Raw HTML in the reply is dropped, so
// the result is safe to inject into the page.
func renderMarkdown(text string) template.HTML {
	// Parsers keep state between calls and must not be reused.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.HardLineBreak)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	})
	return template.HTML(markdown.ToHTML([]byte(text), p, r))
}
