package pubadmin

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore keeps posts in process memory. Keys are filenames derived from
// the title, as in the file-backed stores; revisions are a global counter.
type MemoryStore struct {
	mu    sync.Mutex
	posts map[string]Post
	next  int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{posts: make(map[string]Post)}
}

func (m *MemoryStore) revision() string {
	m.next++
	return strconv.Itoa(m.next)
}

// List returns the posts ordered by key.
func (m *MemoryStore) List(_ context.Context) ([]PostRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refs := make([]PostRef, 0, len(m.posts))
	for _, p := range m.posts {
		refs = append(refs, PostRef{Key: p.Key, Revision: p.Revision})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

func (m *MemoryStore) Read(_ context.Context, ref PostRef) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[ref.Key]
	if !ok {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Status: http.StatusNotFound}
	}
	return clonePost(p), nil
}

func (m *MemoryStore) Create(_ context.Context, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	key, err := newFilename(d.Title)
	if err != nil {
		return Post{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[key]; ok {
		return Post{}, &StoreError{Kind: ErrConflict, Op: "create", Key: key, Message: "a post with this filename already exists"}
	}
	return m.put(key, d), nil
}

func (m *MemoryStore) Update(_ context.Context, ref PostRef, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("update", ref); err != nil {
		return Post{}, err
	}
	return m.put(ref.Key, d), nil
}

func (m *MemoryStore) Delete(_ context.Context, ref PostRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete", ref); err != nil {
		return err
	}
	delete(m.posts, ref.Key)
	return nil
}

// check must be called with m.mu held.
func (m *MemoryStore) check(op string, ref PostRef) error {
	p, ok := m.posts[ref.Key]
	if !ok {
		return &StoreError{Kind: ErrRemote, Op: op, Key: ref.Key, Status: http.StatusNotFound}
	}
	if p.Revision != ref.Revision {
		return &StoreError{Kind: ErrConflict, Op: op, Key: ref.Key, Message: "revision " + ref.Revision + " is stale"}
	}
	return nil
}

// put must be called with m.mu held.
func (m *MemoryStore) put(key string, d Draft) Post {
	p := Post{
		Key:      key,
		Slug:     slugFromFilename(key),
		Title:    d.Title,
		Tags:     d.Tags(),
		Body:     d.Body,
		Revision: m.revision(),
	}
	m.posts[key] = p
	return clonePost(p)
}

func clonePost(p Post) Post {
	p.Tags = append([]string{}, p.Tags...)
	return p
}
