// Package markdown renders post bodies to HTML with goldmark, for previews
// that do not go through the post store.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown to HTML. The zero value is not usable; call New.
// A Renderer is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// Options tunes the renderer.
type Options struct {
	HardWraps bool
	// Unsafe passes raw HTML in the source through to the output.
	Unsafe bool
}

// New returns a Renderer with the GFM extensions enabled.
func New(opts Options) *Renderer {
	var rendererOptions []goldmark.Option
	htmlOptions := []renderer.Option{html.WithXHTML()}
	if opts.HardWraps {
		htmlOptions = append(htmlOptions, html.WithHardWraps())
	}
	if opts.Unsafe {
		htmlOptions = append(htmlOptions, html.WithUnsafe())
	}
	rendererOptions = append(rendererOptions,
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(htmlOptions...),
	)
	return &Renderer{md: goldmark.New(rendererOptions...)}
}

// Render returns the HTML for text. ctx is accepted so Renderer satisfies the
// same interface as remote renderers; conversion itself does not block.
func (r *Renderer) Render(_ context.Context, text string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("markdown: convert: %w", err)
	}
	return buf.String(), nil
}

var defaultRenderer = New(Options{})

// RenderMarkdown writes the HTML representation of md to buf.
func RenderMarkdown(buf *bytes.Buffer, md string) error {
	return defaultRenderer.md.Convert([]byte(md), buf)
}

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := RenderMarkdown(&buf, content); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}
