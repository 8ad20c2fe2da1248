package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// ErrMissingToken is returned when no repository token is configured.
var ErrMissingToken = errors.New("github: token is not configured")

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error %d: %s", e.StatusCode, e.Message)
}

// GitHubStore is a RemoteStore backed by a repository's contents API.
type GitHubStore struct {
	gh     *gh.Client
	owner  string
	repo   string
	branch string
}

// NewGitHubStore authenticates with a static token. repo is "owner/name";
// an empty branch targets the default branch.
func NewGitHubStore(ctx context.Context, token, repo, branch string) (*GitHubStore, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout

	return NewGitHubStoreWithClient(gh.NewClient(tc), repo, branch)
}

// NewGitHubStoreWithClient uses an already configured go-github client.
func NewGitHubStoreWithClient(client *gh.Client, repo, branch string) (*GitHubStore, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("github: repository must be owner/name, got %q", repo)
	}
	return &GitHubStore{
		gh:     client,
		owner:  owner,
		repo:   name,
		branch: branch,
	}, nil
}

// Lookup fetches file metadata; a 404 means the file does not exist yet.
func (s *GitHubStore) Lookup(ctx context.Context, path string) (string, bool, error) {
	var opts *gh.RepositoryContentGetOptions
	if s.branch != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: s.branch}
	}

	file, _, _, err := s.gh.Repositories.GetContents(ctx, s.owner, s.repo, path, opts)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, wrapError(err, "get contents")
	}
	if file == nil {
		return "", false, fmt.Errorf("github: %s is a directory", path)
	}
	return file.GetSHA(), true, nil
}

// Create commits a new file.
func (s *GitHubStore) Create(ctx context.Context, path, message string, content []byte) error {
	_, _, err := s.gh.Repositories.CreateFile(ctx, s.owner, s.repo, path, s.fileOptions(message, content, ""))
	return wrapError(err, "create file")
}

// Update commits a new revision of an existing file. A stale revision is
// rejected by GitHub and reported as an error; there is no retry.
func (s *GitHubStore) Update(ctx context.Context, path, message string, content []byte, revision string) error {
	_, _, err := s.gh.Repositories.UpdateFile(ctx, s.owner, s.repo, path, s.fileOptions(message, content, revision))
	return wrapError(err, "update file")
}

func (s *GitHubStore) fileOptions(message string, content []byte, sha string) *gh.RepositoryContentFileOptions {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		Content: content,
	}
	if sha != "" {
		opts.SHA = gh.Ptr(sha)
	}
	if s.branch != "" {
		opts.Branch = gh.Ptr(s.branch)
	}
	return opts
}

func isNotFound(err error) bool {
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// wrapError converts go-github errors to our error types.
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}
