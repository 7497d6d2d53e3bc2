package pubadmin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitMessages(t *testing.T, dir string) []string {
	t.Helper()
	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	require.NoError(t, err)
	var msgs []string
	require.NoError(t, iter.ForEach(func(c *object.Commit) error {
		msgs = append(msgs, c.Message)
		return nil
	}))
	return msgs
}

func TestGitRepoStoreCommitsEachMutation(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenGitRepoStore(GitRepoConfig{Dir: dir, CommitName: "Ada", CommitEmail: "ada@example.com"})
	require.NoError(t, err)
	ctx := context.Background()

	p, err := s.Create(ctx, Draft{Title: "First Post", Body: "hello\n", TagsText: "a"})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "src", "content", "blog", "first-post.md"))
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: 'First Post'\ntags: [a]\n---\nhello\n", string(data))

	p, err = s.Update(ctx, p.Ref(), Draft{Title: "First Post", Body: "edited\n"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, p.Ref()))

	assert.Equal(t, []string{
		"Delete first-post.md",
		"Update first-post.md",
		"Create first-post.md",
	}, commitMessages(t, dir))
	_, err = os.Stat(filepath.Join(dir, "src", "content", "blog", "first-post.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestGitRepoStoreReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenGitRepoStore(GitRepoConfig{Dir: dir})
	require.NoError(t, err)
	p, err := s.Create(context.Background(), Draft{Title: "Persisted", Body: "body"})
	require.NoError(t, err)

	reopened, err := OpenGitRepoStore(GitRepoConfig{Dir: dir})
	require.NoError(t, err)
	got, err := reopened.Read(context.Background(), PostRef{Key: p.Key})
	require.NoError(t, err)
	assert.Equal(t, p.Revision, got.Revision)
	assert.Equal(t, "Persisted", got.Title)
}

func TestGitRepoStoreIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenGitRepoStore(GitRepoConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.writeFile("src/content/blog/notes.txt", []byte("x"), "add notes"))
	require.NoError(t, s.writeFile("src/content/blog/drafts/a.md", []byte("x"), "add nested"))
	_, err = s.Create(context.Background(), Draft{Title: "Listed", Body: "b"})
	require.NoError(t, err)

	refs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "listed.md", refs[0].Key)
}

func TestGitRepoStorePutAsset(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenGitRepoStore(GitRepoConfig{Dir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := s.PutAsset(ctx, "photo.jpg", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "/images/photo.jpg", first)
	second, err := s.PutAsset(ctx, "photo.jpg", []byte{2})
	require.NoError(t, err)
	assert.Equal(t, "/images/photo-2.jpg", second)

	data, err := os.ReadFile(filepath.Join(dir, "public", "images", "photo-2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, data)
}

func TestCheckKey(t *testing.T) {
	for _, key := range []string{"a.md", "with space.md", "..md"} {
		assert.NoError(t, checkKey(key), key)
	}
	for _, key := range []string{"", ".", "..", "a/b.md", `a\b.md`} {
		assert.ErrorIs(t, checkKey(key), ErrValidation, key)
	}
}

func TestGitRepoStoreRestoreAfterFailedWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenGitRepoStore(GitRepoConfig{Dir: dir})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Create(ctx, Draft{Title: "Kept", Body: "original\n"})
	require.NoError(t, err)
	wt, err := s.repo.Worktree()
	require.NoError(t, err)

	// Leave the worktree as a write that failed before its commit would.
	kept := filepath.Join(dir, "src", "content", "blog", "kept.md")
	require.NoError(t, os.WriteFile(kept, []byte("half-written"), 0o644))
	_, err = wt.Add("src/content/blog/kept.md")
	require.NoError(t, err)
	stray := filepath.Join(dir, "src", "content", "blog", "stray.md")
	require.NoError(t, os.WriteFile(stray, []byte("never committed"), 0o644))
	_, err = wt.Add("src/content/blog/stray.md")
	require.NoError(t, err)

	s.restore(wt, "src/content/blog/kept.md")
	s.restore(wt, "src/content/blog/stray.md")

	status, err := wt.Status()
	require.NoError(t, err)
	assert.True(t, status.IsClean(), "worktree after restore: %v", status)
	data, err := os.ReadFile(kept)
	require.NoError(t, err)
	assert.Equal(t, SerializePost("Kept", nil, "original\n"), string(data))
	_, err = os.Stat(stray)
	assert.True(t, os.IsNotExist(err))

	// The next commit carries only its own change.
	_, err = s.Create(ctx, Draft{Title: "Next", Body: "n"})
	require.NoError(t, err)
	refs, err := s.List(ctx)
	require.NoError(t, err)
	var keys []string
	for _, r := range refs {
		keys = append(keys, r.Key)
	}
	assert.ElementsMatch(t, []string{"kept.md", "next.md"}, keys)
	p, err := s.Read(ctx, PostRef{Key: "kept.md"})
	require.NoError(t, err)
	assert.Equal(t, "original\n", p.Body)
}
