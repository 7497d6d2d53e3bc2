package pubadmin

import (
	"context"
	"html"
)

// Renderer turns markdown into preview HTML.
type Renderer interface {
	Render(ctx context.Context, text string) (string, error)
}

// previewHTML renders text for the preview pane. A store that renders itself
// (GitHub) is preferred, then the configured local renderer. When rendering
// fails the escaped source is shown so the pane is never empty.
func (a *App) previewHTML(ctx context.Context, store PostStore, text string) string {
	if text == "" {
		return ""
	}
	var renderers []Renderer
	if store != nil {
		if r, ok := Unwrap(store).(Renderer); ok {
			renderers = append(renderers, r)
		}
	}
	if a.renderer != nil {
		renderers = append(renderers, a.renderer)
	}
	for _, r := range renderers {
		out, err := r.Render(ctx, text)
		if err == nil {
			return out
		}
		a.logger.Warn("preview render failed", "err", err)
	}
	return "<pre>" + html.EscapeString(text) + "</pre>"
}
