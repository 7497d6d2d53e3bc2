package pubadmin

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStores builds every local PostStore implementation on fresh storage.
func testStores(t *testing.T) map[string]PostStore {
	t.Helper()
	sqlStore, err := NewSQLStore(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	gitStore, err := OpenGitRepoStore(GitRepoConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	return map[string]PostStore{
		"sqlite": sqlStore,
		"git":    gitStore,
		"memory": NewMemoryStore(),
		"cached": NewCachedStore(NewMemoryStore(), 0),
	}
}

func TestStores(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("EmptyList", func(t *testing.T) { testEmptyList(t, s) })
			t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, s) })
		})
	}
	for name, s := range testStores(t) {
		t.Run(name+"/Validation", func(t *testing.T) { testValidation(t, s) })
	}
	for name, s := range testStores(t) {
		t.Run(name+"/DuplicateCreate", func(t *testing.T) { testDuplicateCreate(t, s) })
	}
	for name, s := range testStores(t) {
		t.Run(name+"/Missing", func(t *testing.T) { testMissing(t, s) })
	}
}

func testEmptyList(t *testing.T, s PostStore) {
	refs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}

func testLifecycle(t *testing.T, s PostStore) {
	ctx := context.Background()

	created, err := s.Create(ctx, Draft{Title: "Hello, World!", Body: "# Hi\n\nBody text\n", TagsText: "go, web"})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", created.Slug)
	assert.NotEmpty(t, created.Key)
	assert.NotEmpty(t, created.Revision)

	refs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, created.Key, refs[0].Key)
	assert.Equal(t, created.Revision, refs[0].Revision)

	got, err := s.Read(ctx, refs[0])
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", got.Title)
	assert.Equal(t, []string{"go", "web"}, got.Tags)
	assert.Equal(t, "# Hi\n\nBody text\n", got.Body)
	assert.Equal(t, created.Revision, got.Revision)

	updated, err := s.Update(ctx, got.Ref(), Draft{Title: "Renamed", Body: "Changed"})
	require.NoError(t, err)
	assert.Equal(t, created.Key, updated.Key, "an update keeps the key")
	assert.NotEqual(t, created.Revision, updated.Revision)
	assert.Empty(t, updated.Tags)

	reread, err := s.Read(ctx, PostRef{Key: created.Key})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reread.Title)
	assert.Equal(t, "Changed", reread.Body)
	assert.Equal(t, []string{}, reread.Tags)
	assert.Equal(t, updated.Revision, reread.Revision)

	// The revision read before the update is stale.
	_, err = s.Update(ctx, got.Ref(), Draft{Title: "Lost", Body: "update"})
	assert.ErrorIs(t, err, ErrConflict)
	err = s.Delete(ctx, got.Ref())
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.Delete(ctx, updated.Ref()))
	refs, err = s.List(ctx)
	require.NoError(t, err)
	for _, r := range refs {
		assert.NotEqual(t, created.Key, r.Key)
	}
	_, err = s.Read(ctx, PostRef{Key: created.Key})
	assert.True(t, IsNotFound(err), "read after delete: %v", err)
}

func testValidation(t *testing.T, s PostStore) {
	ctx := context.Background()
	for _, d := range []Draft{
		{Title: "", Body: "body"},
		{Title: "title", Body: ""},
		{},
		{Title: "!!!", Body: "a title without a slug"},
		{Title: "日本語", Body: "only non-ASCII"},
	} {
		_, err := s.Create(ctx, d)
		assert.ErrorIs(t, err, ErrValidation, "create %+v", d)
	}
	refs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)

	p, err := s.Create(ctx, Draft{Title: "Keep", Body: "body"})
	require.NoError(t, err)
	_, err = s.Update(ctx, p.Ref(), Draft{Title: "Keep", Body: ""})
	assert.ErrorIs(t, err, ErrValidation)
	got, err := s.Read(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, "body", got.Body)
}

func testDuplicateCreate(t *testing.T, s PostStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, Draft{Title: "Same Title", Body: "first"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Draft{Title: "same title!", Body: "second"})
	assert.ErrorIs(t, err, ErrConflict)
}

func testMissing(t *testing.T, s PostStore) {
	ctx := context.Background()
	ref := PostRef{Key: "404", Revision: "1"}
	if _, ok := s.(*SQLStore); !ok {
		ref.Key = "missing.md"
	}
	_, err := s.Read(ctx, ref)
	assert.True(t, IsNotFound(err), "read: %v", err)
	_, err = s.Update(ctx, ref, Draft{Title: "t", Body: "b"})
	assert.True(t, IsNotFound(err), "update: %v", err)
	err = s.Delete(ctx, ref)
	assert.True(t, IsNotFound(err), "delete: %v", err)
}

func TestValidateDraft(t *testing.T) {
	assert.NoError(t, ValidateDraft(Draft{Title: "t", Body: "b"}))
	err := ValidateDraft(Draft{Body: "b"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Title and content required", ErrorMessage(err))
}

func TestStoreErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusConflict, ErrConflict},
		{http.StatusUnprocessableEntity, ErrConflict},
		{http.StatusNotFound, ErrRemote},
		{http.StatusInternalServerError, ErrRemote},
	}
	for _, tt := range tests {
		err := statusError("update", "a.md", tt.status, "msg", http.StatusConflict, http.StatusUnprocessableEntity)
		if !errors.Is(err, tt.want) {
			t.Errorf("statusError(%d) = %v, want kind %v", tt.status, err, tt.want)
		}
	}
	// Outside writes, 409 is just a remote error.
	if err := statusError("read", "a.md", http.StatusConflict, ""); !errors.Is(err, ErrRemote) {
		t.Errorf("statusError(409) without conflict statuses = %v, want ErrRemote", err)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&StoreError{Kind: ErrAuth}, "The credential was rejected. Sign in again."},
		{&StoreError{Kind: ErrConflict}, "The post changed since it was loaded (or already exists). Reload it and retry."},
		{&StoreError{Kind: ErrTransport}, "Could not reach the post store. Check the connection and retry."},
		{&StoreError{Kind: ErrRemote, Status: http.StatusNotFound}, "The post no longer exists."},
		{&StoreError{Kind: ErrRemote, Message: "boom"}, "The post store returned an error: boom"},
		{errors.New("plain"), "The post store returned an error."},
	}
	for _, tt := range tests {
		if got := ErrorMessage(tt.err); got != tt.want {
			t.Errorf("ErrorMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStoreErrorString(t *testing.T) {
	err := &StoreError{Kind: ErrConflict, Op: "update", Key: "a.md", Status: 409, Message: "does not match"}
	assert.Equal(t, "pubadmin: update a.md: revision conflict (409): does not match", err.Error())
}

func TestPasswordBackend(t *testing.T) {
	store := NewMemoryStore()
	b := NewPasswordBackend(BackendMemory, "secret", store)
	assert.Equal(t, BackendMemory, b.Name())

	_, _, err := b.Connect(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrAuth)
	_, _, err = b.Connect(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuth)

	s, id, err := b.Connect(context.Background(), "secret")
	require.NoError(t, err)
	assert.Same(t, store, s)
	assert.Equal(t, "admin", id.Login)

	_, _, err = NewPasswordBackend(BackendMemory, "", store).Connect(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuth, "an empty password never authenticates")
}

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{BackendSQLite, BackendGit, BackendMemory, BackendGitHub} {
		cfg := Config{
			Backend:       name,
			AdminPassword: "pw",
			DatabasePath:  filepath.Join(dir, "blog.db"),
			Git:           GitRepoConfig{Dir: filepath.Join(dir, "repo")},
		}
		cfg.setDefaults()
		b, closeFn, err := NewBackend(cfg)
		require.NoError(t, err, name)
		assert.Equal(t, name, b.Name())
		require.NoError(t, closeFn())
	}
	_, _, err := NewBackend(Config{Backend: "ftp"})
	assert.Error(t, err)
}
