package pubadmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitRepoStore keeps posts as frontmatter files in a local git repository.
// The revision handle is the file's blob hash in HEAD, and every mutation is
// one commit.
type GitRepoStore struct {
	cfg  GitRepoConfig
	repo *gogit.Repository
	mu   sync.Mutex
}

// OpenGitRepoStore opens the repository at cfg.Dir, initializing it when the
// directory is not a repository yet.
func OpenGitRepoStore(cfg GitRepoConfig) (*GitRepoStore, error) {
	cfg.setDefaults()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(cfg.Dir)
	if err != nil {
		repo, err = gogit.PlainInit(cfg.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("initialize git repo: %w", err)
		}
	}
	return &GitRepoStore{cfg: cfg, repo: repo}, nil
}

// headTree returns the tree of HEAD, or nil for a repository without commits.
func (s *GitRepoStore) headTree() (*object.Tree, error) {
	ref, err := s.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	c, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	return c.Tree()
}

// blobHash returns the hash of the file at p in HEAD.
func (s *GitRepoStore) blobHash(p string) (plumbing.Hash, bool, error) {
	tree, err := s.headTree()
	if err != nil || tree == nil {
		return plumbing.ZeroHash, false, err
	}
	f, err := tree.File(p)
	if errors.Is(err, object.ErrFileNotFound) {
		return plumbing.ZeroHash, false, nil
	}
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	return f.Hash, true, nil
}

// List returns the post files under the configured directory. A directory
// that does not exist yet lists as empty.
func (s *GitRepoStore) List(_ context.Context) ([]PostRef, error) {
	tree, err := s.headTree()
	if err != nil {
		return nil, &StoreError{Kind: ErrRemote, Op: "list", Err: err}
	}
	refs := []PostRef{}
	if tree == nil {
		return refs, nil
	}
	dir, err := tree.Tree(s.cfg.Path)
	if errors.Is(err, object.ErrDirectoryNotFound) {
		return refs, nil
	}
	if err != nil {
		return nil, &StoreError{Kind: ErrRemote, Op: "list", Err: err}
	}
	for _, e := range dir.Entries {
		if !e.Mode.IsFile() || !IsContentFile(e.Name) {
			continue
		}
		refs = append(refs, PostRef{Key: e.Name, Revision: e.Hash.String()})
	}
	return refs, nil
}

// Read parses the post file at HEAD.
func (s *GitRepoStore) Read(_ context.Context, ref PostRef) (Post, error) {
	if err := checkKey(ref.Key); err != nil {
		return Post{}, err
	}
	tree, err := s.headTree()
	if err != nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Err: err}
	}
	if tree == nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Status: http.StatusNotFound}
	}
	f, err := tree.File(path.Join(s.cfg.Path, ref.Key))
	if errors.Is(err, object.ErrFileNotFound) {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Status: http.StatusNotFound}
	}
	if err != nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Err: err}
	}
	text, err := f.Contents()
	if err != nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Err: err}
	}
	if !utf8.ValidString(text) {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "read", Key: ref.Key, Message: "content is not valid UTF-8"}
	}
	fm := ParseFrontmatter(text)
	return Post{
		Key:      ref.Key,
		Slug:     slugFromFilename(ref.Key),
		Title:    fm.Title,
		Tags:     fm.Tags,
		Body:     fm.Body,
		Revision: f.Hash.String(),
	}, nil
}

// Create commits a new post file named after the title.
func (s *GitRepoStore) Create(_ context.Context, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	filename, err := newFilename(d.Title)
	if err != nil {
		return Post{}, err
	}
	p := path.Join(s.cfg.Path, filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists, err := s.blobHash(p)
	if err != nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: "create", Key: filename, Err: err}
	}
	if exists {
		return Post{}, &StoreError{Kind: ErrConflict, Op: "create", Key: filename, Message: "a post with this filename already exists"}
	}
	return s.writePost("create", filename, d, "Create "+filename)
}

// Update commits new content for ref's file if HEAD still holds ref.Revision.
func (s *GitRepoStore) Update(_ context.Context, ref PostRef, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	if err := checkKey(ref.Key); err != nil {
		return Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRevision("update", ref); err != nil {
		return Post{}, err
	}
	return s.writePost("update", ref.Key, d, "Update "+ref.Key)
}

// Delete removes ref's file if HEAD still holds ref.Revision.
func (s *GitRepoStore) Delete(_ context.Context, ref PostRef) error {
	if err := checkKey(ref.Key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRevision("delete", ref); err != nil {
		return err
	}
	wt, err := s.repo.Worktree()
	if err != nil {
		return &StoreError{Kind: ErrRemote, Op: "delete", Key: ref.Key, Err: err}
	}
	p := path.Join(s.cfg.Path, ref.Key)
	_, err = wt.Remove(p)
	if err == nil {
		err = s.commit(wt, "Delete "+ref.Key)
	}
	if err != nil {
		s.restore(wt, p)
		return &StoreError{Kind: ErrRemote, Op: "delete", Key: ref.Key, Err: err}
	}
	return nil
}

// PutAsset commits data under the asset directory.
func (s *GitRepoStore) PutAsset(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := name
	for i := 2; i < maxAssetAttempts+2; i++ {
		p := path.Join(s.cfg.AssetPath, candidate)
		_, exists, err := s.blobHash(p)
		if err != nil {
			return "", &StoreError{Kind: ErrRemote, Op: "upload", Key: candidate, Err: err}
		}
		if exists {
			candidate = numberedName(name, i)
			continue
		}
		if err := s.writeFile(p, data, "Upload "+candidate); err != nil {
			return "", &StoreError{Kind: ErrRemote, Op: "upload", Key: candidate, Err: err}
		}
		return publicAssetPath(s.cfg.AssetPath, candidate), nil
	}
	return "", &StoreError{Kind: ErrConflict, Op: "upload", Key: name, Message: "no free asset name"}
}

func (s *GitRepoStore) checkRevision(op string, ref PostRef) error {
	h, exists, err := s.blobHash(path.Join(s.cfg.Path, ref.Key))
	if err != nil {
		return &StoreError{Kind: ErrRemote, Op: op, Key: ref.Key, Err: err}
	}
	if !exists {
		return &StoreError{Kind: ErrRemote, Op: op, Key: ref.Key, Status: http.StatusNotFound}
	}
	if h.String() != ref.Revision {
		return &StoreError{Kind: ErrConflict, Op: op, Key: ref.Key, Message: "revision " + ref.Revision + " is stale"}
	}
	return nil
}

// writePost must be called with s.mu held.
func (s *GitRepoStore) writePost(op, filename string, d Draft, msg string) (Post, error) {
	tags := d.Tags()
	data := []byte(SerializePost(d.Title, tags, d.Body))
	if err := s.writeFile(path.Join(s.cfg.Path, filename), data, msg); err != nil {
		return Post{}, &StoreError{Kind: ErrRemote, Op: op, Key: filename, Err: err}
	}
	return Post{
		Key:      filename,
		Slug:     slugFromFilename(filename),
		Title:    d.Title,
		Tags:     tags,
		Body:     d.Body,
		Revision: plumbing.ComputeHash(plumbing.BlobObject, data).String(),
	}, nil
}

func (s *GitRepoStore) writeFile(p string, data []byte, msg string) error {
	abs := filepath.Join(s.cfg.Dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return err
	}
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	if _, err := wt.Add(p); err != nil {
		s.restore(wt, p)
		return fmt.Errorf("stage %s: %w", p, err)
	}
	if err := s.commit(wt, msg); err != nil {
		s.restore(wt, p)
		return err
	}
	return nil
}

// restore puts p back to its HEAD state on disk and in the index after a
// failed write, so the next commit does not pick up the leftover change.
func (s *GitRepoStore) restore(wt *gogit.Worktree, p string) {
	abs := filepath.Join(s.cfg.Dir, filepath.FromSlash(p))
	var head *object.File
	if tree, err := s.headTree(); err == nil && tree != nil {
		head, _ = tree.File(p)
	}
	if head == nil {
		_ = os.Remove(abs)
	} else if text, err := head.Contents(); err == nil {
		_ = os.MkdirAll(filepath.Dir(abs), 0o755)
		_ = os.WriteFile(abs, []byte(text), 0o644)
	}
	// Staging the restored state makes the index match HEAD for p; a file
	// missing on disk is dropped from the index.
	_, _ = wt.Add(p)
}

func (s *GitRepoStore) commit(wt *gogit.Worktree, msg string) error {
	_, err := wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  s.cfg.CommitName,
			Email: s.cfg.CommitEmail,
			When:  time.Now(),
		},
	})
	if errors.Is(err, gogit.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// checkKey rejects keys that would escape the posts directory.
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return &StoreError{Kind: ErrValidation, Op: "key", Key: key, Message: "invalid post key"}
	}
	return nil
}
