package pubadmin

import (
	"regexp"
	"strings"
)

// The grammar is informal on purpose: stored posts were written against it,
// so multi-line values and quote escaping stay unsupported.
var (
	reFrontmatter = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n(.*)$`)
	reTitle       = regexp.MustCompile(`(?m)title:[ \t]*['"]?(.*?)['"]?$`)
	reTags        = regexp.MustCompile(`tags:[ \t]*\[(.*?)\]`)
)

// Frontmatter is a parsed post file.
type Frontmatter struct {
	Title string
	Tags  []string
	Body  string
}

// SerializePost renders a post file: a "---" delimited metadata block with the
// title and, when present, the tags, followed by the body verbatim.
func SerializePost(title string, tags []string, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: '" + title + "'\n")
	if len(tags) > 0 {
		b.WriteString("tags: [" + JoinTags(tags) + "]\n")
	}
	b.WriteString("---\n")
	b.WriteString(body)
	return b.String()
}

// ParseFrontmatter splits a post file into title, tags and body. Text without
// a metadata block is all body. It never fails.
func ParseFrontmatter(text string) Frontmatter {
	m := reFrontmatter.FindStringSubmatch(text)
	if m == nil {
		return Frontmatter{Tags: []string{}, Body: text}
	}
	meta, body := m[1], m[2]
	fm := Frontmatter{Tags: []string{}, Body: body}
	if t := reTitle.FindStringSubmatch(meta); t != nil {
		fm.Title = t[1]
	}
	if t := reTags.FindStringSubmatch(meta); t != nil {
		fm.Tags = ParseTagsText(t[1])
	}
	return fm
}
