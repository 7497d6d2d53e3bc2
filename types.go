package pubadmin

// Post is a blog post as read from, or written to, a PostStore.
type Post struct {
	Key      string   `json:"key"` // filename for file-backed stores, row id for SQLStore
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Body     string   `json:"body"`
	Revision string   `json:"revision"`
	URL      string   `json:"url,omitempty"`
}

// Ref returns the reference needed to update or delete p.
func (p Post) Ref() PostRef {
	return PostRef{Key: p.Key, Title: p.Title, Revision: p.Revision, URL: p.URL}
}

// PostRef identifies a stored post at the revision it was last seen.
// Revision is opaque and only meaningful to the store that produced it.
type PostRef struct {
	Key      string `json:"key"`
	Title    string `json:"title,omitempty"`
	Revision string `json:"revision"`
	URL      string `json:"url,omitempty"`
}

// Label is the text shown for the post in listings.
func (r PostRef) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Key
}

// Draft is the editable form state. It is a value: use Reduce to derive a
// changed copy.
type Draft struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	TagsText string `json:"tags"`
}

// Tags splits the comma separated tag text.
func (d Draft) Tags() []string {
	return ParseTagsText(d.TagsText)
}

// DraftFromPost fills a Draft with the editable fields of p.
func DraftFromPost(p Post) Draft {
	return Draft{Title: p.Title, Body: p.Body, TagsText: JoinTags(p.Tags)}
}

// Field names a Draft field for Reduce.
type Field string

const (
	FieldTitle Field = "title"
	FieldBody  Field = "body"
	FieldTags  Field = "tags"
)

// Reduce returns d with field set to value. Unknown fields leave d unchanged.
func Reduce(d Draft, field Field, value string) Draft {
	switch field {
	case FieldTitle:
		d.Title = value
	case FieldBody:
		d.Body = value
	case FieldTags:
		d.TagsText = value
	}
	return d
}

// Identity is the account a credential authenticated as.
type Identity struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
}
