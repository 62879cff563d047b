package orchestrator

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GitHubClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewGitHubClient("test-token", "owner", "repo")
	client.BaseURL = server.URL
	return client
}

func TestGetRepositoryFileDecodesBase64Content(t *testing.T) {
	content := `{"name": "demo", "version": "1.0.0"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	// GitHub wraps base64 at 60 columns; simulate that with an embedded newline.
	wrapped := encoded[:len(encoded)/2] + "\n" + encoded[len(encoded)/2:]

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/owner/repo/contents/pkg/package.json", r.URL.Path)
		fmt.Fprintf(w, `{"name":"package.json","path":"pkg/package.json","type":"file","encoding":"base64","content":%q}`, wrapped)
	})

	data, err := client.GetRepositoryFile(t.Context(), "pkg/package.json")
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestGetRepositoryFileRejectsDirectory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"pkg","path":"pkg","type":"dir"}`)
	})

	_, err := client.GetRepositoryFile(t.Context(), "pkg")
	assert.Error(t, err)
}

func TestListRepositoryFileDecodesArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"api","path":"packages/api","type":"dir"},{"name":"web","path":"packages/web","type":"dir"}]`)
	})

	entries, err := client.ListRepositoryFile(t.Context(), "packages")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "api", entries[0].Name)
}

func TestGetRepositoryFileSurfacesNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	_, err := client.GetRepositoryFile(t.Context(), "missing.json")
	assert.Error(t, err)
}
