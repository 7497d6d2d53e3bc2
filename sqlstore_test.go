package pubadmin

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLStore(filepath.Join(t.TempDir(), "data", "test_blog.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestSQLStoreTagsColumn(t *testing.T) {
	s := setupTestStore(t)
	p, err := s.Create(context.Background(), Draft{Title: "Tagged", Body: "c", TagsText: "go, web"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	var tags string
	if err := s.db.QueryRow(`SELECT tags FROM posts WHERE id = ?`, p.Key).Scan(&tags); err != nil {
		t.Fatal(err)
	}
	if tags != ",go,web," {
		t.Errorf("stored tags = %q, want %q", tags, ",go,web,")
	}
}

func TestSQLStoreListNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, title := range []string{"First", "Second", "Third"} {
		if _, err := s.Create(ctx, Draft{Title: title, Body: "c"}); err != nil {
			t.Fatalf("Create(%q) failed: %v", title, err)
		}
	}
	if _, err := s.db.Exec(`UPDATE posts SET published_at = '2020-01-01T00:00:00Z' WHERE title = 'Third'`); err != nil {
		t.Fatal(err)
	}
	refs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var titles []string
	for _, r := range refs {
		titles = append(titles, r.Title)
	}
	want := []string{"Second", "First", "Third"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles = %v, want %v", titles, want)
			break
		}
	}
}

func TestSQLStoreMigratesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`
CREATE TABLE posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    published_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
INSERT INTO posts (title, slug, content) VALUES ('Old', 'old', 'old body');
`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := NewSQLStore(path)
	if err != nil {
		t.Fatalf("NewSQLStore on old schema: %v", err)
	}
	defer s.Close()
	p, err := s.Read(context.Background(), PostRef{Key: "1"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if p.Title != "Old" || p.Body != "old body" || p.Revision != "1" || len(p.Tags) != 0 {
		t.Errorf("migrated post = %+v", p)
	}

	// Opening again must not fail on the already added columns.
	s2, err := NewSQLStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2.Close()
}

func TestSQLStoreNonNumericKey(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Read(context.Background(), PostRef{Key: "hello.md"})
	if !IsNotFound(err) {
		t.Errorf("Read(non-numeric) error = %v, want not found", err)
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{",", nil},
		{",go,", []string{"go"}},
		{",go,web,", []string{"go", "web"}},
		{",go, web ,rust,", []string{"go", "web", "rust"}},
	}

	for _, tt := range tests {
		got := ParseTags(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("ParseTags(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseTags(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}
