package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, r *Renderer, md string) string {
	t.Helper()
	got, err := r.Render(context.Background(), md)
	if err != nil {
		t.Fatalf("Render(%q): %v", md, err)
	}
	return got
}

func TestRenderInline(t *testing.T) {
	r := New(Options{})
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"__bold__", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"_italic_", "<em>italic</em>"},
		{"`code`", "<code>code</code>"},
		{"~~gone~~", "<del>gone</del>"},
		{"[link](https://example.com)", `<a href="https://example.com">link</a>`},
	}
	for _, tt := range tests {
		got := render(t, r, tt.input)
		if !strings.Contains(got, tt.expected) {
			t.Errorf("Render(%q) = %q, want it to contain %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderHeadingHasID(t *testing.T) {
	got := render(t, New(Options{}), "# Hello World")
	if !strings.Contains(got, `<h1 id="hello-world">Hello World</h1>`) {
		t.Errorf("got %q", got)
	}
}

func TestRenderCodeBlockEscapes(t *testing.T) {
	got := render(t, New(Options{}), "```go\nif a < b {}\n```")
	if !strings.Contains(got, `<code class="language-go">`) {
		t.Errorf("missing language class: %q", got)
	}
	if !strings.Contains(got, "a &lt; b") {
		t.Errorf("code not escaped: %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	got := render(t, New(Options{}), "| a | b |\n|---|---|\n| 1 | 2 |")
	for _, want := range []string{"<table>", "<th>a</th>", "<td>2</td>"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestRenderRawHTML(t *testing.T) {
	md := "<script>alert(1)</script>"
	if got := render(t, New(Options{}), md); strings.Contains(got, "<script>") {
		t.Errorf("safe renderer passed raw HTML: %q", got)
	}
	if got := render(t, New(Options{Unsafe: true}), md); !strings.Contains(got, "<script>") {
		t.Errorf("unsafe renderer dropped raw HTML: %q", got)
	}
}

func TestRenderHardWraps(t *testing.T) {
	got := render(t, New(Options{HardWraps: true}), "one\ntwo")
	if !strings.Contains(got, "<br />") {
		t.Errorf("got %q", got)
	}
	got = render(t, New(Options{}), "one\ntwo")
	if strings.Contains(got, "<br") {
		t.Errorf("soft break rendered as <br>: %q", got)
	}
}

func TestMarkdownComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown("- one\n- two").Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<li>one</li>") {
		t.Errorf("got %q", buf.String())
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := render(t, New(Options{}), ""); got != "" {
		t.Errorf("Render(\"\") = %q, want empty", got)
	}
}
