package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hackeurope/nodehoist/pkg/models"
)

// PackageLockV3 represents package-lock.json version 3 structure
type PackageLockV3 struct {
	LockfileVersion int                           `json:"lockfileVersion"`
	Packages        map[string]PackageLockPackage `json:"packages"`
}

// PackageLockPackage represents a single package entry in lockfile
type PackageLockPackage struct {
	Version         string            `json:"version"`
	Resolved        string            `json:"resolved"`
	Integrity       string            `json:"integrity"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Dev             bool              `json:"dev"`
}

// LockfileManager handles generation and parsing of lockfiles
type LockfileManager struct {
	TempDir string
}

// NewLockfileManager creates a new lockfile manager
func NewLockfileManager() *LockfileManager {
	return &LockfileManager{}
}

// GenerateLockfile creates a package-lock.json from package.json in a temp directory
// Returns the path to the generated lockfile
func (lm *LockfileManager) GenerateLockfile(packageJSONPath string) (string, error) {
	// Check if npm is available
	if _, err := exec.LookPath("npm"); err != nil {
		return "", fmt.Errorf("npm not found in PATH: %w", err)
	}

	// Create temp directory
	tempDir, err := os.MkdirTemp("", "nodehoist-lockfile-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	lm.TempDir = tempDir

	// Copy package.json to temp directory
	data, err := os.ReadFile(packageJSONPath)
	if err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to read package.json: %w", err)
	}

	destPath := filepath.Join(tempDir, "package.json")
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("failed to write package.json to temp: %w", err)
	}

	// Run npm install --package-lock-only
	cmd := exec.Command("npm", "install", "--package-lock-only", "--silent")
	cmd.Dir = tempDir
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("npm install --package-lock-only failed: %w", err)
	}

	lockfilePath := filepath.Join(tempDir, "package-lock.json")
	if _, err := os.Stat(lockfilePath); os.IsNotExist(err) {
		os.RemoveAll(tempDir)
		return "", fmt.Errorf("package-lock.json was not generated")
	}

	return lockfilePath, nil
}

// ExtractRootPackage extracts the root package info from a lockfile
func (lm *LockfileManager) ExtractRootPackage(lockfilePath string) (*models.Package, error) {
	data, err := os.ReadFile(lockfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var lockfile PackageLockV3
	if err := json.Unmarshal(data, &lockfile); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}

	if lockfile.LockfileVersion != 3 {
		return nil, fmt.Errorf("unsupported lockfile version: %d (expected 3)", lockfile.LockfileVersion)
	}

	if rootPkg, exists := lockfile.Packages[""]; exists {
		return &models.Package{
			ID:      "root@" + rootPkg.Version,
			Name:    "root",
			Version: rootPkg.Version,
		}, nil
	}

	return nil, fmt.Errorf("root package not found in lockfile")
}

// ParseLockfile parses a package-lock.json file into a DependencyGraph. Peer
// dependencies aren't part of the struct tags above (npm never emits an
// empty peerDependencies object consistently across versions), so they're
// pulled straight out of the raw JSON with gjson keyed by the same package
// path used for the encoding/json pass.
func (lm *LockfileManager) ParseLockfile(lockfilePath string, rootPackage *models.Package) (*models.DependencyGraph, error) {
	data, err := os.ReadFile(lockfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var lockfile PackageLockV3
	if err := json.Unmarshal(data, &lockfile); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}

	if lockfile.LockfileVersion != 3 {
		return nil, fmt.Errorf("unsupported lockfile version: %d (expected 3)", lockfile.LockfileVersion)
	}

	raw := string(data)

	graph := models.NewDependencyGraph()
	graph.RootPackage = rootPackage

	for path, pkg := range lockfile.Packages {
		if path == "" {
			continue
		}

		name := extractPackageName(path)
		if name == "" {
			continue
		}

		node := &models.PackageNode{
			Package: models.Package{
				ID:      name + "@" + pkg.Version,
				Name:    name,
				Version: pkg.Version,
			},
			ResolvedURL:  pkg.Resolved,
			Integrity:    pkg.Integrity,
			Dependencies: pkg.Dependencies,
			PeerNames:    peerNamesForPath(raw, path),
		}

		graph.AddNode(node)
	}

	if rootPkg, exists := lockfile.Packages[""]; exists {
		allRootDeps := make(map[string]string)
		for name, version := range rootPkg.Dependencies {
			allRootDeps[name] = version
		}
		for name, version := range rootPkg.DevDependencies {
			allRootDeps[name] = version
		}

		rootNode := &models.PackageNode{
			Package:      *rootPackage,
			Dependencies: allRootDeps,
			PeerNames:    peerNamesForPath(raw, ""),
		}
		graph.AddNode(rootNode)
	}

	return graph, nil
}

// peerNamesForPath reads the peerDependencies object at packages["<path>"]
// out of the raw lockfile JSON and returns its keys as a set.
func peerNamesForPath(raw, path string) map[string]bool {
	escaped := gjson.Escape(path)
	result := gjson.Get(raw, "packages."+escaped+".peerDependencies")
	if !result.Exists() || !result.IsObject() {
		return nil
	}

	names := make(map[string]bool)
	result.ForEach(func(key, _ gjson.Result) bool {
		names[key.String()] = true
		return true
	})
	if len(names) == 0 {
		return nil
	}
	return names
}

// Cleanup removes the temporary directory
func (lm *LockfileManager) Cleanup() error {
	if lm.TempDir != "" {
		return os.RemoveAll(lm.TempDir)
	}
	return nil
}

// extractPackageName extracts the package name from a node_modules path
func extractPackageName(path string) string {
	parts := strings.Split(path, "node_modules/")
	if len(parts) < 2 {
		return ""
	}

	name := parts[len(parts)-1]

	if idx := strings.Index(name, "/node_modules/"); idx != -1 {
		name = name[:idx]
	}

	return name
}

// BuildGraphFromPackageJSON is a convenience function that generates lockfile and builds graph
func BuildGraphFromPackageJSON(packageJSONPath string) (*models.DependencyGraph, error) {
	pkgJSON, err := ParsePackageJSON(packageJSONPath)
	if err != nil {
		return nil, err
	}

	rootPackage := pkgJSON.ToPackage()

	dir := filepath.Dir(packageJSONPath)
	existingLockfile := filepath.Join(dir, "package-lock.json")

	lm := NewLockfileManager()
	defer lm.Cleanup()

	var lockfilePath string
	if _, err := os.Stat(existingLockfile); err == nil {
		lockfilePath = existingLockfile
	} else {
		lockfilePath, err = lm.GenerateLockfile(packageJSONPath)
		if err != nil {
			return nil, fmt.Errorf("failed to generate lockfile: %w", err)
		}
	}

	graph, err := lm.ParseLockfile(lockfilePath, rootPackage)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}

	return graph, nil
}

// BuildInputTree bridges a parsed DependencyGraph into the *models.InputNode
// shape the hoist package consumes. Nodes are looked up by "<name>@<version>"
// so that two different versions of the same package become two distinct
// InputNode instances; a node reached twice by the same locator is reused
// as the same pointer, letting the hoist package's own coupling detection
// (which compares *models.InputNode identity) recognize the sharing.
func BuildInputTree(graph *models.DependencyGraph) (*models.InputNode, error) {
	if graph == nil || graph.RootPackage == nil {
		return nil, fmt.Errorf("dependency graph has no root package")
	}

	rootNode, exists := graph.Nodes[graph.RootPackage.ID]
	if !exists {
		return nil, fmt.Errorf("root package %s not found in graph", graph.RootPackage.ID)
	}

	seen := make(map[string]*models.InputNode)
	root := buildInputNode(graph, rootNode, seen)
	return root, nil
}

func buildInputNode(graph *models.DependencyGraph, pkg *models.PackageNode, seen map[string]*models.InputNode) *models.InputNode {
	if existing, ok := seen[pkg.ID]; ok {
		return existing
	}

	node := models.NewInputNode(pkg.Name, pkg.Name, pkg.Version)
	seen[pkg.ID] = node

	for _, depName := range sortedKeys(pkg.Dependencies) {
		depVersion := pkg.Dependencies[depName]
		depID := depName + "@" + depVersion
		depPkg, ok := graph.Nodes[depID]
		if !ok {
			continue
		}
		child := buildInputNode(graph, depPkg, seen)
		node.AddDependency(child, pkg.PeerNames[depName])
	}

	return node
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
