package pubadmin

import (
	"encoding/base64"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

// contentSuffixes are the file suffixes listed as posts by file-backed stores.
var contentSuffixes = []string{".md", ".mdx"}

// Slugify converts a title to a URL-safe slug: lowercase, every run of
// characters outside [a-z0-9] collapsed to one hyphen, no leading or trailing
// hyphen.
func Slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// DeriveFilename returns the post filename for a title. Only Create uses it;
// an existing post keeps its filename when its title changes.
func DeriveFilename(title string) string {
	return Slugify(title) + ".md"
}

// newFilename derives the filename for a new post. A title without any ASCII
// letter or digit has no usable slug.
func newFilename(title string) (string, error) {
	if Slugify(title) == "" {
		return "", &StoreError{Kind: ErrValidation, Op: "create", Key: title, Message: "Title needs at least one letter or digit"}
	}
	return DeriveFilename(title), nil
}

// IsContentFile reports whether name carries a post suffix.
func IsContentFile(name string) bool {
	for _, suffix := range contentSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// slugFromFilename strips the content suffix from a filename.
func slugFromFilename(name string) string {
	for _, suffix := range contentSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// EncodeTransport base64-encodes the UTF-8 bytes of text.
func EncodeTransport(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// DecodeTransport reverses EncodeTransport. Line breaks are ignored since the
// contents API wraps its base64 output every 60 characters.
func DecodeTransport(s string) (string, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", &StoreError{Kind: ErrRemote, Op: "decode", Message: "content is not valid base64", Err: err}
	}
	if !utf8.Valid(b) {
		return "", &StoreError{Kind: ErrRemote, Op: "decode", Message: "content is not valid UTF-8"}
	}
	return string(b), nil
}

// ParseTagsText splits comma separated tags, trimming blanks.
func ParseTagsText(s string) []string {
	tags := FilterEmpty(strings.Split(s, ","))
	if tags == nil {
		return []string{}
	}
	return tags
}

// JoinTags joins tags with ", ".
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// BuildURL joins a base URL with escaped path segments.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	escaped := make([]string, 0, len(pathSegments))
	for _, seg := range pathSegments {
		for _, part := range strings.Split(seg, "/") {
			if part != "" {
				escaped = append(escaped, url.PathEscape(part))
			}
		}
	}
	u.RawPath = path.Join(append([]string{"/", strings.TrimSuffix(u.EscapedPath(), "/")}, escaped...)...)
	u.Path, _ = url.PathUnescape(u.RawPath)
	return u.String()
}

// PathEscape escapes a string for use in a URL path.
func PathEscape(s string) string {
	return url.PathEscape(s)
}
