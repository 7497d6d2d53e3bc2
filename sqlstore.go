package pubadmin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLStore keeps posts in a SQLite table. Keys are row ids and the revision
// handle is a counter bumped by every update.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewSQLStore(path string) (*SQLStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the admin list while a save is in flight; the busy timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    published_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
	if err != nil {
		return err
	}
	// Tables created before tags and revisions existed get the columns added.
	for _, stmt := range []string{
		`ALTER TABLE posts ADD COLUMN tags TEXT NOT NULL DEFAULT '';`,
		`ALTER TABLE posts ADD COLUMN revision INTEGER NOT NULL DEFAULT 1;`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
				continue
			}
			return err
		}
	}
	return nil
}

// List returns every post, newest first.
func (s *SQLStore) List(ctx context.Context) ([]PostRef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, revision FROM posts ORDER BY published_at DESC, id DESC`)
	if err != nil {
		return nil, &StoreError{Kind: ErrRemote, Op: "list", Err: err}
	}
	defer rows.Close()

	refs := []PostRef{}
	for rows.Next() {
		var id, revision int64
		var title string
		if err := rows.Scan(&id, &title, &revision); err != nil {
			return nil, &StoreError{Kind: ErrRemote, Op: "list", Err: err}
		}
		refs = append(refs, PostRef{
			Key:      strconv.FormatInt(id, 10),
			Title:    title,
			Revision: strconv.FormatInt(revision, 10),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Kind: ErrRemote, Op: "list", Err: err}
	}
	return refs, nil
}

// Read returns one post by id.
func (s *SQLStore) Read(ctx context.Context, ref PostRef) (Post, error) {
	id, err := parseRowID("read", ref.Key)
	if err != nil {
		return Post{}, err
	}
	var title, slug, tags, content string
	var revision int64
	err = s.db.QueryRowContext(ctx, `SELECT title, slug, tags, content, revision FROM posts WHERE id = ?`, id).
		Scan(&title, &slug, &tags, &content, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Status: http.StatusNotFound}
	}
	if err != nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Err: err}
	}
	return Post{
		Key:      ref.Key,
		Slug:     slug,
		Title:    title,
		Tags:     ParseTags(tags),
		Body:     content,
		Revision: strconv.FormatInt(revision, 10),
	}, nil
}

// Create inserts a post. A duplicate slug is a conflict.
func (s *SQLStore) Create(ctx context.Context, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	if _, err := newFilename(d.Title); err != nil {
		return Post{}, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO posts (title, slug, tags, content, published_at) VALUES (?, ?, ?, ?, ?)`,
		d.Title, Slugify(d.Title), formatTags(d.Tags()), d.Body, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return Post{}, sqlWriteError("create", "", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "create", Err: err}
	}
	return s.Read(ctx, PostRef{Key: strconv.FormatInt(id, 10)})
}

// Update rewrites a post if its revision still matches.
func (s *SQLStore) Update(ctx context.Context, ref PostRef, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	id, err := parseRowID("update", ref.Key)
	if err != nil {
		return Post{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET title = ?, slug = ?, tags = ?, content = ?, revision = revision + 1 WHERE id = ? AND revision = ?`,
		d.Title, Slugify(d.Title), formatTags(d.Tags()), d.Body, id, ref.Revision)
	if err != nil {
		return Post{}, sqlWriteError("update", ref.Key, err)
	}
	if err := s.checkAffected(ctx, "update", ref.Key, id, res); err != nil {
		return Post{}, err
	}
	return s.Read(ctx, ref)
}

// Delete removes a post if its revision still matches.
func (s *SQLStore) Delete(ctx context.Context, ref PostRef) error {
	id, err := parseRowID("delete", ref.Key)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ? AND revision = ?`, id, ref.Revision)
	if err != nil {
		return sqlWriteError("delete", ref.Key, err)
	}
	return s.checkAffected(ctx, "delete", ref.Key, id, res)
}

// checkAffected tells a stale revision from a missing row when a guarded
// statement changed nothing.
func (s *SQLStore) checkAffected(ctx context.Context, op, key string, id int64, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Kind: ErrRemote, Op: op, Key: key, Err: err}
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &StoreError{Kind: ErrRemote, Op: op, Key: key, Status: http.StatusNotFound}
	}
	if err != nil {
		return &StoreError{Kind: ErrRemote, Op: op, Key: key, Err: err}
	}
	return &StoreError{Kind: ErrConflict, Op: op, Key: key, Message: "the post was changed by someone else"}
}

func parseRowID(op, key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 {
		return 0, &StoreError{Kind: ErrRemote, Op: op, Key: key, Status: http.StatusNotFound}
	}
	return id, nil
}

func sqlWriteError(op, key string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &StoreError{Kind: ErrConflict, Op: op, Key: key, Message: "a post with this slug already exists", Err: err}
	}
	return &StoreError{Kind: ErrRemote, Op: op, Key: key, Err: err}
}

// formatTags stores tags as ",a,b," so a tag can be matched with instr().
func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return []string{}
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
