package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkspaceManifest(t *testing.T) {
	data := []byte("members:\n  - packages/api\n  - packages/web\n")

	manifest, err := ParseWorkspaceManifest(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"packages/api", "packages/web"}, manifest.Members)
}

func TestParseWorkspaceManifestRejectsInvalidYAML(t *testing.T) {
	_, err := ParseWorkspaceManifest([]byte("members: [unterminated"))
	assert.Error(t, err)
}

func TestRunWorkspacesRejectsEmptyManifest(t *testing.T) {
	o := NewOrchestrator("", "owner", "repo", 2, time.Second, nil, nil)
	_, err := o.RunWorkspaces(context.Background(), &WorkspaceManifest{})
	assert.Error(t, err)
}

// TestRunWorkspacesAgainstRealGitHub exercises the full fetch-then-process
// path against the real GitHub Contents API. Skipped by default since it
// needs network access and a real, reachable repository.
func TestRunWorkspacesAgainstRealGitHub(t *testing.T) {
	t.Skip("requires network access to a real GitHub repository")

	process := func(ctx context.Context, member string, packageJSON, lockfile []byte) (*WorkspaceResult, error) {
		return &WorkspaceResult{}, nil
	}

	o := NewOrchestrator("", "owner", "repo", 1, time.Second, process, nil)
	_, err := o.RunWorkspaces(context.Background(), &WorkspaceManifest{Members: []string{"packages/api"}})
	require.NoError(t, err)
}
