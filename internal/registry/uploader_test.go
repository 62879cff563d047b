package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePackageNameURLEscaping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"lodash", "lodash"},
		{"@sveltejs/kit", "@sveltejs%2fkit"},
		{"@types/node", "@types%2fnode"},
		{"express", "express"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizePackageName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizePackageNamePathSegment(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"lodash", "lodash"},
		{"@sveltejs/kit", "sveltejs__kit"},
		{"@types/node", "types__node"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePackageName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestArtifactPackageName(t *testing.T) {
	tests := []struct {
		root     string
		expected string
	}{
		{".", "workspace-root"},
		{"", "workspace-root"},
		{"packages/api", "packages__api"},
		{"@scope/pkg", "scope__pkg"},
	}

	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			assert.Equal(t, tt.expected, artifactPackageName(tt.root))
		})
	}
}

func TestUploadHoistArtifactMarshalsJSON(t *testing.T) {
	uploader := NewUploader("http://example.invalid", "owner", "token")
	uploader.HTTPClient = nil // no network call should happen before marshal fails fast on a bad value

	err := uploader.UploadHoistArtifact(nil, "root", "v1", "report.json", make(chan int))
	assert.Error(t, err, "channels aren't JSON-marshalable, so this should fail before any HTTP call")
}
