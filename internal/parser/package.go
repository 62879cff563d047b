package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaptinlin/jsonschema"

	"github.com/hackeurope/nodehoist/pkg/models"
)

// PackageJSON represents the structure of package.json
type PackageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Workspaces      []string          `json:"workspaces"`
}

// packageJSONSchema is deliberately loose: it only pins down the fields
// this package actually reads, so a real-world package.json with extra
// tooling-specific keys still validates.
const packageJSONSchema = `{
	"type": "object",
	"required": ["name", "version"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"version": {"type": "string", "minLength": 1},
		"dependencies": {"type": "object"},
		"devDependencies": {"type": "object"},
		"peerDependencies": {"type": "object"},
		"workspaces": {"type": "array", "items": {"type": "string"}}
	}
}`

var packageJSONCompiled = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(packageJSONSchema))
	if err != nil {
		panic(fmt.Sprintf("parser: invalid embedded package.json schema: %v", err))
	}
	return schema
}()

// ParsePackageJSON reads and parses a package.json file
func ParsePackageJSON(path string) (*PackageJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package.json: %w", err)
	}

	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}

	return &pkg, nil
}

// ToPackage converts PackageJSON to models.Package
func (p *PackageJSON) ToPackage() *models.Package {
	return &models.Package{
		ID:      p.Name + "@" + p.Version,
		Name:    p.Name,
		Version: p.Version,
	}
}

// GetAllDependencies returns production + dev dependencies
func (p *PackageJSON) GetAllDependencies() map[string]string {
	all := make(map[string]string)
	for k, v := range p.Dependencies {
		all[k] = v
	}
	for k, v := range p.DevDependencies {
		all[k] = v
	}
	return all
}

// ValidatePackageJSON checks that a package.json file exists, parses, and
// conforms to the schema every downstream reader in this package assumes.
func ValidatePackageJSON(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("package.json not found at %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read package.json: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to parse package.json: %w", err)
	}

	result := packageJSONCompiled.Validate(decoded)
	if !result.IsValid() {
		return fmt.Errorf("package.json failed schema validation: %v", result.Errors)
	}

	return nil
}

// FindPackageJSON searches for package.json in the given directory
func FindPackageJSON(dir string) (string, error) {
	path := filepath.Join(dir, "package.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("package.json not found in %s", dir)
	}
	return path, nil
}
