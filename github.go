package pubadmin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const githubAPIVersion = "2022-11-28"

// GitHubStore keeps posts as frontmatter files in a GitHub repository, using
// the contents API. The blob sha is the revision handle.
type GitHubStore struct {
	cfg    GitHubConfig
	client *http.Client
}

type githubEntry struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	URL      string `json:"url"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

type githubWrite struct {
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type githubWriteResult struct {
	Content githubEntry `json:"content"`
}

// NewGitHubStore returns a store that sends credential as a bearer token on
// every request. The credential is kept in memory only.
func NewGitHubStore(cfg GitHubConfig, credential string) *GitHubStore {
	cfg.setDefaults()
	client := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: credential,
		TokenType:   "Bearer",
	}))
	client.Timeout = 30 * time.Second
	return &GitHubStore{cfg: cfg, client: client}
}

// WhoAmI probes the credential. Any non-2xx answer rejects it; network
// failures stay transport errors.
func (s *GitHubStore) WhoAmI(ctx context.Context) (Identity, error) {
	var user struct {
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := s.do(ctx, "whoami", "", http.MethodGet, BuildURL(s.cfg.APIBaseURL, "user"), nil, &user); err != nil {
		var se *StoreError
		if errors.As(err, &se) && se.Status != 0 && (se.Status < 200 || se.Status > 299) {
			se.Kind = ErrAuth
		}
		return Identity{}, err
	}
	return Identity{Login: user.Login, Name: user.Name}, nil
}

// List returns the post files in the configured directory.
func (s *GitHubStore) List(ctx context.Context) ([]PostRef, error) {
	var entries []githubEntry
	if err := s.do(ctx, "list", s.cfg.Path, http.MethodGet, s.withRef(s.contentsURL(s.cfg.Path)), nil, &entries); err != nil {
		return nil, err
	}
	refs := make([]PostRef, 0, len(entries))
	for _, e := range entries {
		if e.Type != "" && e.Type != "file" {
			continue
		}
		if !IsContentFile(e.Name) {
			continue
		}
		refs = append(refs, PostRef{Key: e.Name, Revision: e.SHA, URL: e.URL})
	}
	return refs, nil
}

// Read fetches and parses one post file.
func (s *GitHubStore) Read(ctx context.Context, ref PostRef) (Post, error) {
	if err := checkKey(ref.Key); err != nil {
		return Post{}, err
	}
	u := ref.URL
	if !strings.HasPrefix(u, s.cfg.APIBaseURL) {
		u = s.withRef(s.contentsURL(s.cfg.Path, ref.Key))
	}
	var e githubEntry
	if err := s.do(ctx, "read", ref.Key, http.MethodGet, u, nil, &e); err != nil {
		return Post{}, err
	}
	text, err := DecodeTransport(e.Content)
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) {
			se.Op, se.Key = "read", ref.Key
		}
		return Post{}, err
	}
	fm := ParseFrontmatter(text)
	return Post{
		Key:      e.Name,
		Slug:     slugFromFilename(e.Name),
		Title:    fm.Title,
		Tags:     fm.Tags,
		Body:     fm.Body,
		Revision: e.SHA,
		URL:      e.URL,
	}, nil
}

// Create writes a new post file named after the title. An existing file at
// that path is a conflict.
func (s *GitHubStore) Create(ctx context.Context, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	filename, err := newFilename(d.Title)
	if err != nil {
		return Post{}, err
	}
	return s.write(ctx, "create", filename, "", d, "Create "+filename)
}

// Update rewrites ref's file. The filename never changes, even when the title
// does.
func (s *GitHubStore) Update(ctx context.Context, ref PostRef, d Draft) (Post, error) {
	if err := ValidateDraft(d); err != nil {
		return Post{}, err
	}
	if err := checkKey(ref.Key); err != nil {
		return Post{}, err
	}
	return s.write(ctx, "update", ref.Key, ref.Revision, d, "Update "+ref.Key)
}

func (s *GitHubStore) write(ctx context.Context, op, filename, sha string, d Draft, message string) (Post, error) {
	tags := d.Tags()
	body := githubWrite{
		Message: message,
		Content: EncodeTransport(SerializePost(d.Title, tags, d.Body)),
		SHA:     sha,
		Branch:  s.cfg.Branch,
	}
	var res githubWriteResult
	u := s.contentsURL(s.cfg.Path, filename)
	if err := s.do(ctx, op, filename, http.MethodPut, u, body, &res, http.StatusConflict, http.StatusUnprocessableEntity); err != nil {
		return Post{}, err
	}
	return Post{
		Key:      filename,
		Slug:     slugFromFilename(filename),
		Title:    d.Title,
		Tags:     tags,
		Body:     d.Body,
		Revision: res.Content.SHA,
		URL:      res.Content.URL,
	}, nil
}

// Delete removes ref's file. A stale revision is a conflict.
func (s *GitHubStore) Delete(ctx context.Context, ref PostRef) error {
	if err := checkKey(ref.Key); err != nil {
		return err
	}
	body := githubWrite{
		Message: "Delete " + ref.Key,
		SHA:     ref.Revision,
		Branch:  s.cfg.Branch,
	}
	u := s.contentsURL(s.cfg.Path, ref.Key)
	return s.do(ctx, "delete", ref.Key, http.MethodDelete, u, body, nil, http.StatusConflict, http.StatusUnprocessableEntity)
}

// Render renders markdown through the /markdown endpoint for the preview pane.
func (s *GitHubStore) Render(ctx context.Context, text string) (string, error) {
	req := map[string]string{"text": text, "mode": s.cfg.PreviewMode}
	if s.cfg.PreviewMode == "gfm" {
		req["context"] = s.cfg.Owner + "/" + s.cfg.Repo
	}
	var html string
	if err := s.do(ctx, "render", "", http.MethodPost, BuildURL(s.cfg.APIBaseURL, "markdown"), req, &html); err != nil {
		return "", err
	}
	return html, nil
}

// PutAsset commits data under the asset directory, suffixing the name until it
// does not collide. It returns the site path of the asset.
func (s *GitHubStore) PutAsset(ctx context.Context, name string, data []byte) (string, error) {
	candidate := name
	for i := 2; i < maxAssetAttempts+2; i++ {
		body := githubWrite{
			Message: "Upload " + candidate,
			Content: base64.StdEncoding.EncodeToString(data),
			Branch:  s.cfg.Branch,
		}
		err := s.do(ctx, "upload", candidate, http.MethodPut, s.contentsURL(s.cfg.AssetPath, candidate), body, nil, http.StatusConflict, http.StatusUnprocessableEntity)
		if err == nil {
			return publicAssetPath(s.cfg.AssetPath, candidate), nil
		}
		if !isConflict(err) {
			return "", err
		}
		candidate = numberedName(name, i)
	}
	return "", &StoreError{Kind: ErrConflict, Op: "upload", Key: name, Message: "no free asset name"}
}

func (s *GitHubStore) contentsURL(p ...string) string {
	segs := append([]string{"repos", s.cfg.Owner, s.cfg.Repo, "contents"}, p...)
	return BuildURL(s.cfg.APIBaseURL, segs...)
}

func (s *GitHubStore) withRef(u string) string {
	if s.cfg.Branch == "" {
		return u
	}
	return u + "?ref=" + url.QueryEscape(s.cfg.Branch)
}

// do sends one API request. conflict lists the statuses meaning the revision
// handle was stale for this operation.
func (s *GitHubStore) do(ctx context.Context, op, key, method, u string, in, out any, conflict ...int) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("pubadmin: encode %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &StoreError{Kind: ErrTransport, Op: op, Key: key, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", "pubadmin")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &StoreError{Kind: ErrTransport, Op: op, Key: key, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, key, resp.StatusCode, githubMessage(resp.Body), conflict...)
	}
	switch out := out.(type) {
	case nil:
		return nil
	case *string:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return &StoreError{Kind: ErrTransport, Op: op, Key: key, Err: err}
		}
		*out = string(b)
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &StoreError{Kind: ErrRemote, Op: op, Key: key, Status: resp.StatusCode, Message: "unexpected response", Err: err}
		}
		return nil
	}
}

// githubMessage extracts the "message" field of an API error body.
func githubMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(b) == 0 {
		return ""
	}
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(b))
}

// GitHubBackend connects admin sessions to a GitHubStore using the admin's
// own token.
type GitHubBackend struct {
	cfg GitHubConfig
	ttl time.Duration
}

// NewGitHubBackend returns a backend for the repository in cfg. Each
// connection gets its own listing cache with the given TTL.
func NewGitHubBackend(cfg GitHubConfig, ttl time.Duration) *GitHubBackend {
	cfg.setDefaults()
	return &GitHubBackend{cfg: cfg, ttl: ttl}
}

func (b *GitHubBackend) Name() string { return BackendGitHub }

// Connect probes the token with GET /user before handing out a store.
func (b *GitHubBackend) Connect(ctx context.Context, credential string) (PostStore, Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, Identity{}, &StoreError{Kind: ErrAuth, Op: "whoami", Message: "a token is required"}
	}
	s := NewGitHubStore(b.cfg, credential)
	id, err := s.WhoAmI(ctx)
	if err != nil {
		return nil, Identity{}, err
	}
	return NewCachedStore(s, b.ttl), id, nil
}

func publicAssetPath(assetPath, name string) string {
	p := strings.Trim(assetPath, "/")
	if p == "public" {
		p = ""
	} else {
		p = strings.TrimPrefix(p, "public/")
	}
	return path.Join("/", p, name)
}
