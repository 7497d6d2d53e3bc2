package pubadmin

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PostStore is the capability every storage backend provides. Identity
// schemes differ per backend (filenames, row ids) and are carried in PostRef.Key.
type PostStore interface {
	List(ctx context.Context) ([]PostRef, error)
	Read(ctx context.Context, ref PostRef) (Post, error)
	Create(ctx context.Context, d Draft) (Post, error)
	Update(ctx context.Context, ref PostRef, d Draft) (Post, error)
	Delete(ctx context.Context, ref PostRef) error
}

// Backend hands out a PostStore bound to a caller-supplied credential after
// verifying it with a lightweight identity probe.
type Backend interface {
	Name() string
	Connect(ctx context.Context, credential string) (PostStore, Identity, error)
}

// ValidateDraft rejects drafts without a title or body. Stores call it before
// any I/O.
func ValidateDraft(d Draft) error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required.Error("title is required")),
		validation.Field(&d.Body, validation.Required.Error("content is required")),
	)
	if err != nil {
		return &StoreError{Kind: ErrValidation, Op: "validate", Message: "Title and content required", Err: err}
	}
	return nil
}

// passwordBackend guards a shared store with the admin password. It serves
// the stores that have no credential of their own (SQLite, local git, memory).
type passwordBackend struct {
	name     string
	password string
	store    PostStore
}

// NewPasswordBackend returns a Backend that authenticates against password
// and hands every session the same store.
func NewPasswordBackend(name, password string, store PostStore) Backend {
	return &passwordBackend{name: name, password: password, store: store}
}

func (b *passwordBackend) Name() string { return b.name }

func (b *passwordBackend) Connect(_ context.Context, credential string) (PostStore, Identity, error) {
	if b.password == "" || subtle.ConstantTimeCompare([]byte(credential), []byte(b.password)) != 1 {
		return nil, Identity{}, &StoreError{Kind: ErrAuth, Op: "whoami", Status: http.StatusUnauthorized}
	}
	return b.store, Identity{Login: "admin"}, nil
}

// NewBackend builds the backend selected by cfg.Backend. The returned close
// function releases whatever the backend opened.
func NewBackend(cfg Config) (Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case BackendGitHub:
		return NewGitHubBackend(cfg.GitHub, cfg.ListCacheTTL), noop, nil
	case BackendGit:
		repo, err := OpenGitRepoStore(cfg.Git)
		if err != nil {
			return nil, nil, fmt.Errorf("pubadmin: open git store: %w", err)
		}
		return NewPasswordBackend(BackendGit, cfg.AdminPassword, NewCachedStore(repo, cfg.ListCacheTTL)), noop, nil
	case BackendSQLite:
		s, err := NewSQLStore(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("pubadmin: init store: %w", err)
		}
		return NewPasswordBackend(BackendSQLite, cfg.AdminPassword, NewCachedStore(s, cfg.ListCacheTTL)), s.Close, nil
	case BackendMemory:
		return NewPasswordBackend(BackendMemory, cfg.AdminPassword, NewMemoryStore()), noop, nil
	default:
		return nil, nil, fmt.Errorf("pubadmin: unknown backend %q", cfg.Backend)
	}
}
