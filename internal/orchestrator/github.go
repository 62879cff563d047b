package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GitHubClient provides read access to a repository's Contents API, used to
// fetch workspace-member manifests and lockfiles from a mirror repository
// without cloning it.
type GitHubClient struct {
	Token      string
	Owner      string
	Repo       string
	BaseURL    string // defaults to https://api.github.com; overridable in tests
	HTTPClient *http.Client
}

// NewGitHubClient creates a new GitHub API client
func NewGitHubClient(token, owner, repo string) *GitHubClient {
	return &GitHubClient{
		Token:      token,
		Owner:      owner,
		Repo:       repo,
		BaseURL:    "https://api.github.com",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RepositoryEntry represents one entry returned by the Contents API when
// listing a directory.
type RepositoryEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// contentsResponse mirrors the single-file shape of the Contents API. For a
// directory GitHub returns a JSON array instead, which does not decode into
// this struct, so GetRepositoryFile returns an error for it; directories are
// read with ListRepositoryFile.
type contentsResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (c *GitHubClient) do(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.BaseURL, c.Owner, c.Repo, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ListRepositoryFile lists the entries of a directory at path.
func (c *GitHubClient) ListRepositoryFile(ctx context.Context, path string) ([]RepositoryEntry, error) {
	body, err := c.do(ctx, path)
	if err != nil {
		return nil, err
	}

	var entries []RepositoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode directory listing for %s: %w", path, err)
	}

	return entries, nil
}

// GetRepositoryFile fetches and decodes the contents of a single file at path.
func (c *GitHubClient) GetRepositoryFile(ctx context.Context, path string) ([]byte, error) {
	body, err := c.do(ctx, path)
	if err != nil {
		return nil, err
	}

	var file contentsResponse
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("failed to decode file response for %s: %w", path, err)
	}

	if file.Type != "" && file.Type != "file" {
		return nil, fmt.Errorf("%s is a %s, not a file", path, file.Type)
	}

	if file.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q for %s", file.Encoding, path)
	}

	// GitHub wraps base64 payloads at 60 columns with embedded newlines.
	decoded, err := base64.StdEncoding.DecodeString(stripNewlines(file.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 content for %s: %w", path, err)
	}

	return decoded, nil
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' && s[i] != '\r' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
