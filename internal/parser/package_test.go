package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackageJSON(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParsePackageJSON(t *testing.T) {
	path := writePackageJSON(t, `{
		"name": "demo-package",
		"version": "0.0.1",
		"dependencies": {"wrapper": "^1.0.0"},
		"devDependencies": {"tape": "^5.0.0"}
	}`)

	pkg, err := ParsePackageJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "demo-package", pkg.Name)
	assert.Equal(t, "0.0.1", pkg.Version)

	all := pkg.GetAllDependencies()
	assert.Equal(t, "^1.0.0", all["wrapper"])
	assert.Equal(t, "^5.0.0", all["tape"])
}

func TestValidatePackageJSONAcceptsWellFormed(t *testing.T) {
	path := writePackageJSON(t, `{"name": "demo-package", "version": "0.0.1"}`)
	assert.NoError(t, ValidatePackageJSON(path))
}

func TestValidatePackageJSONRejectsMissingName(t *testing.T) {
	path := writePackageJSON(t, `{"version": "0.0.1"}`)
	assert.Error(t, ValidatePackageJSON(path))
}

func TestValidatePackageJSONRejectsMissingFile(t *testing.T) {
	err := ValidatePackageJSON(filepath.Join(t.TempDir(), "package.json"))
	assert.Error(t, err)
}

func TestFindPackageJSON(t *testing.T) {
	dir := filepath.Dir(writePackageJSON(t, `{"name": "demo-package", "version": "0.0.1"}`))
	path, err := FindPackageJSON(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "package.json"), path)
}
