package pubadmin

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the admin controller state.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Browsing
	Editing
	Creating
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Browsing:
		return "browsing"
	case Editing:
		return "editing"
	case Creating:
		return "creating"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	State    State
	Identity Identity
	Backend  string
	Posts    []PostRef
	Target   PostRef // the post being edited, zero unless State is Editing
	Draft    Draft
	Preview  string // markdown source shown in the preview pane
	Message  string // last error, human readable
	Notice   string // last success, e.g. "saved"
}

// Editing reports whether the snapshot edits an existing post.
func (s Snapshot) Editing() bool { return s.State == Editing }

// Controller drives one admin session. Operations run one at a time: the lock
// is held across store calls, so a second request from the same session waits
// for the first.
type Controller struct {
	mu       sync.Mutex
	backend  Backend
	logger   *slog.Logger
	lastUsed atomic.Int64

	state    State
	store    PostStore
	identity Identity
	posts    []PostRef
	target   PostRef
	draft    Draft
	preview  string
	message  string
	notice   string
}

// NewController returns an unauthenticated controller for backend.
func NewController(backend Backend, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{backend: backend, logger: logger}
	c.touch()
	return c
}

func (c *Controller) touch() { c.lastUsed.Store(time.Now().UnixNano()) }

// idleFor returns how long ago the controller was last used.
func (c *Controller) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastUsed.Load()))
}

// Authenticated reports whether a credential has been accepted.
func (c *Controller) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store != nil
}

// Store returns the store bound to the session credential, or nil.
func (c *Controller) Store() PostStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:    c.state,
		Identity: c.identity,
		Posts:    append([]PostRef(nil), c.posts...),
		Target:   c.target,
		Draft:    c.draft,
		Preview:  c.preview,
		Message:  c.message,
		Notice:   c.notice,
	}
	if c.backend != nil {
		s.Backend = c.backend.Name()
	}
	return s
}

// Lookup returns the listed reference for key. A key missing from the
// listing yields a reference without a revision.
func (c *Controller) Lookup(key string) PostRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Editing && c.target.Key == key {
		return c.target
	}
	for _, r := range c.posts {
		if r.Key == key {
			return r
		}
	}
	return PostRef{Key: key}
}

// Authenticate verifies credential with the backend's identity probe and,
// on success, lists the posts.
func (c *Controller) Authenticate(ctx context.Context, credential string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	c.clearStatus()

	c.state = Authenticating
	store, id, err := c.backend.Connect(ctx, credential)
	if err != nil {
		c.state = Unauthenticated
		c.store = nil
		c.identity = Identity{}
		c.fail("authenticate", "", err)
		return err
	}
	c.store = store
	c.identity = id
	c.state = Browsing
	c.resetDraft()
	c.logger.Info("admin signed in", "login", id.Login, "backend", c.backend.Name())
	return c.refresh(ctx)
}

// Refresh lists the posts again from the store itself, skipping any cached
// listing.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireAuth("list"); err != nil {
		return err
	}
	c.clearStatus()
	if inv, ok := c.store.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	return c.refresh(ctx)
}

// Edit reads ref and opens it in the editor. On failure the state is
// unchanged.
func (c *Controller) Edit(ctx context.Context, ref PostRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireAuth("read"); err != nil {
		return err
	}
	c.clearStatus()

	post, err := c.store.Read(ctx, ref)
	if err != nil {
		c.fail("read", ref.Key, err)
		return err
	}
	c.target = post.Ref()
	c.draft = DraftFromPost(post)
	c.preview = post.Body
	c.state = Editing
	return nil
}

// New opens an empty draft.
func (c *Controller) New() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if c.store == nil {
		return
	}
	c.clearStatus()
	c.resetDraft()
	c.state = Creating
}

// Change sets one draft field. A body change updates the preview text in the
// same step. Typing into the form while browsing starts a new post.
func (c *Controller) Change(field Field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if c.store == nil {
		return
	}
	c.draft = Reduce(c.draft, field, value)
	if field == FieldBody {
		c.preview = value
	}
	if c.state == Browsing {
		c.state = Creating
	}
}

// Save validates the draft and then updates the edited post or creates a new
// one. On success the draft is cleared and the list refreshed; on failure the
// draft and state are kept so the save can be retried.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireAuth("save"); err != nil {
		return err
	}
	c.clearStatus()

	if err := ValidateDraft(c.draft); err != nil {
		c.fail("save", c.target.Key, err)
		return err
	}

	var (
		post Post
		err  error
		op   = "create"
	)
	if c.state == Editing {
		op = "update"
		post, err = c.store.Update(ctx, c.target, c.draft)
	} else {
		post, err = c.store.Create(ctx, c.draft)
	}
	if err != nil {
		c.fail(op, c.target.Key, err)
		return err
	}
	c.logger.Info("post saved", "op", op, "key", post.Key, "revision", post.Revision)
	c.resetDraft()
	c.state = Browsing
	c.notice = "saved"
	return c.refresh(ctx)
}

// Delete removes ref once confirmed. Without confirmation nothing happens.
func (c *Controller) Delete(ctx context.Context, ref PostRef, confirmed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireAuth("delete"); err != nil {
		return err
	}
	if !confirmed {
		return nil
	}
	c.clearStatus()

	if err := c.store.Delete(ctx, ref); err != nil {
		c.fail("delete", ref.Key, err)
		return err
	}
	c.logger.Info("post deleted", "key", ref.Key)
	c.resetDraft()
	c.state = Browsing
	c.notice = "deleted"
	return c.refresh(ctx)
}

// Logout forgets the credential and everything loaded with it.
func (c *Controller) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	c.state = Unauthenticated
	c.store = nil
	c.identity = Identity{}
	c.posts = nil
	c.resetDraft()
	c.clearStatus()
}

// refresh must be called with c.mu held. A failed listing keeps the previous
// list and state.
func (c *Controller) refresh(ctx context.Context) error {
	posts, err := c.store.List(ctx)
	if err != nil {
		c.fail("list", "", err)
		return err
	}
	c.posts = posts
	return nil
}

func (c *Controller) requireAuth(op string) error {
	if c.store == nil {
		err := &StoreError{Kind: ErrAuth, Op: op, Message: "not signed in"}
		c.message = ErrorMessage(err)
		return err
	}
	return nil
}

func (c *Controller) fail(op, key string, err error) {
	c.message = ErrorMessage(err)
	c.logger.Warn("admin operation failed", "op", op, "key", key, "err", err)
}

func (c *Controller) clearStatus() {
	c.message = ""
	c.notice = ""
}

func (c *Controller) resetDraft() {
	c.target = PostRef{}
	c.draft = Draft{}
	c.preview = ""
}
