package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackeurope/nodehoist/pkg/models"
)

const sampleLockfile = `{
	"name": "demo-package",
	"version": "0.0.1",
	"lockfileVersion": 3,
	"packages": {
		"": {
			"name": "demo-package",
			"version": "0.0.1",
			"dependencies": {
				"wrapper": "1.0.0"
			}
		},
		"node_modules/wrapper": {
			"version": "1.0.0",
			"resolved": "https://registry.npmjs.org/wrapper/-/wrapper-1.0.0.tgz",
			"integrity": "sha512-aaaa",
			"dependencies": {
				"plugin": "1.0.0"
			}
		},
		"node_modules/plugin": {
			"version": "1.0.0",
			"resolved": "https://registry.npmjs.org/plugin/-/plugin-1.0.0.tgz",
			"integrity": "sha512-bbbb",
			"peerDependencies": {
				"host": "^2.0.0"
			}
		},
		"node_modules/@scope/pkg": {
			"version": "2.0.0",
			"resolved": "https://registry.npmjs.org/@scope/pkg/-/pkg-2.0.0.tgz",
			"integrity": "sha512-cccc"
		}
	}
}`

func writeSampleLockfile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "package-lock.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleLockfile), 0644))
	return path
}

func TestParseLockfile(t *testing.T) {
	lm := NewLockfileManager()

	rootPackage := &models.Package{
		ID:      "demo-package@0.0.1",
		Name:    "demo-package",
		Version: "0.0.1",
	}

	graph, err := lm.ParseLockfile(writeSampleLockfile(t), rootPackage)
	require.NoError(t, err)
	require.NotNil(t, graph)

	assert.Equal(t, "demo-package", graph.RootPackage.Name)
	assert.Equal(t, "0.0.1", graph.RootPackage.Version)

	assert.Greater(t, len(graph.Nodes), 0, "should have parsed some packages")

	directDeps := graph.GetDirectDependencies()
	require.Len(t, directDeps, 1)
	assert.Equal(t, "wrapper", directDeps[0].Name)

	pluginNode, ok := graph.Nodes["plugin@1.0.0"]
	require.True(t, ok)
	assert.True(t, pluginNode.PeerNames["host"], "peerDependencies should be extracted from the raw lockfile JSON")

	scopedNode, ok := graph.Nodes["@scope/pkg@2.0.0"]
	require.True(t, ok)
	assert.Equal(t, "@scope/pkg", scopedNode.Name)
}

func TestBuildInputTree(t *testing.T) {
	lm := NewLockfileManager()
	rootPackage := &models.Package{
		ID:      "demo-package@0.0.1",
		Name:    "demo-package",
		Version: "0.0.1",
	}

	graph, err := lm.ParseLockfile(writeSampleLockfile(t), rootPackage)
	require.NoError(t, err)

	root, err := BuildInputTree(graph)
	require.NoError(t, err)
	require.NotNil(t, root)

	assert.Equal(t, "demo-package", root.Name)
	require.Len(t, root.Dependencies, 1)

	wrapper := root.Dependencies[0]
	assert.Equal(t, "wrapper", wrapper.Name)
	require.Len(t, wrapper.Dependencies, 1)

	plugin := wrapper.Dependencies[0]
	assert.Equal(t, "plugin", plugin.Name)
	assert.Empty(t, plugin.Dependencies, "plugin's peer dependency has no resolved node in this fixture, so it's simply absent rather than a dangling edge")
}

func TestBuildInputTreeRejectsMissingRoot(t *testing.T) {
	graph := models.NewDependencyGraph()
	_, err := BuildInputTree(graph)
	assert.Error(t, err)
}

func TestExtractPackageName(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"node_modules/lodash", "lodash"},
		{"node_modules/express", "express"},
		{"node_modules/@sveltejs/kit", "@sveltejs/kit"},
		{"node_modules/@types/node", "@types/node"},
		{"node_modules/@tailwindcss/vite", "@tailwindcss/vite"},
		{"node_modules/foo/node_modules/bar", "bar"},
		{"node_modules/lodash/node_modules/@types/node", "@types/node"},
		{"node_modules/@scope/pkg/node_modules/dep", "dep"},
		{"node_modules/@scope/pkg/node_modules/@other/dep", "@other/dep"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			result := extractPackageName(tt.path)
			assert.Equal(t, tt.expected, result)
		})
	}
}
