package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hackeurope/nodehoist/internal/aggregate"
	"github.com/hackeurope/nodehoist/internal/hoist"
	"github.com/hackeurope/nodehoist/internal/orchestrator"
	"github.com/hackeurope/nodehoist/internal/parser"
	"github.com/hackeurope/nodehoist/pkg/models"
)

// runWorkspacesCommand fetches every workspace member's package.json and
// package-lock.json from a mirror repository and hoists them concurrently.
func runWorkspacesCommand(args []string) {
	wsFlags := flag.NewFlagSet("workspaces", flag.ExitOnError)

	var (
		manifestPath = wsFlags.String("manifest", "", "Path to a workspace manifest YAML file (required)")
		githubToken  = wsFlags.String("github-token", os.Getenv("GITHUB_TOKEN"), "GitHub token for the mirror repository")
		repoOwner    = wsFlags.String("repo-owner", "", "Mirror repository owner (required)")
		repoName     = wsFlags.String("repo-name", "", "Mirror repository name (required)")
		concurrency  = wsFlags.Int("concurrency", 5, "Max concurrent workspace members")
		timeout      = wsFlags.Duration("timeout", 2*time.Minute, "Per-member fetch+hoist timeout")
		outputDir    = wsFlags.String("output", "", "Directory to write each member's tree.json/report.json (optional)")
	)

	wsFlags.Parse(args)

	if *manifestPath == "" || *repoOwner == "" || *repoName == "" {
		fmt.Fprintln(os.Stderr, "Usage: hoist workspaces --manifest <path> --repo-owner <owner> --repo-name <repo> [options]")
		os.Exit(1)
	}

	manifestData, err := os.ReadFile(*manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading manifest: %v\n", err)
		os.Exit(1)
	}

	manifest, err := orchestrator.ParseWorkspaceManifest(manifestData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing manifest: %v\n", err)
		os.Exit(1)
	}

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
			os.Exit(1)
		}
	}

	process := func(ctx context.Context, member string, packageJSON, lockfile []byte) (*orchestrator.WorkspaceResult, error) {
		return hoistWorkspaceMember(member, packageJSON, lockfile, *outputDir)
	}

	progress := func(member string, namesBlocked int) {
		fmt.Printf("  done: %s (%d names blocked)\n", member, namesBlocked)
	}

	orch := orchestrator.NewOrchestrator(*githubToken, *repoOwner, *repoName, *concurrency, *timeout, process, progress)

	results, err := orch.RunWorkspaces(context.Background(), manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%d workspace members hoisted\n", len(results))
}

// hoistWorkspaceMember parses one member's fetched package.json/lockfile,
// hoists it, and aggregates its trace into a diagnostics report.
func hoistWorkspaceMember(member string, packageJSON, lockfile []byte, outputDir string) (*orchestrator.WorkspaceResult, error) {
	tempDir, err := os.MkdirTemp("", "nodehoist-workspace-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pkgPath := filepath.Join(tempDir, "package.json")
	if err := os.WriteFile(pkgPath, packageJSON, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write package.json: %w", err)
	}
	lockPath := filepath.Join(tempDir, "package-lock.json")
	if err := os.WriteFile(lockPath, lockfile, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write package-lock.json: %w", err)
	}

	pkgJSON, err := parser.ParsePackageJSON(pkgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}

	lm := parser.NewLockfileManager()
	graph, err := lm.ParseLockfile(lockPath, pkgJSON.ToPackage())
	if err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}

	input, err := parser.BuildInputTree(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to build input tree: %w", err)
	}

	var trace bytes.Buffer
	output, err := hoist.Hoist(input, hoist.Options{Trace: &trace})
	if err != nil {
		return nil, fmt.Errorf("hoist failed: %w", err)
	}

	report, err := aggregate.NewAggregator().ProcessReader(bytes.NewReader(trace.Bytes()), member)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate diagnostics: %w", err)
	}

	if outputDir != "" {
		if err := writeWorkspaceArtifacts(outputDir, member, output, report); err != nil {
			return nil, err
		}
	}

	return &orchestrator.WorkspaceResult{
		NamesBlocked:    len(report.NamesBlocked),
		DiagnosticFlags: report.DiagnosticFlags,
	}, nil
}

func writeWorkspaceArtifacts(outputDir, member string, output *models.OutputNode, report *aggregate.Report) error {
	memberDir := filepath.Join(outputDir, filepath.FromSlash(member))
	if err := os.MkdirAll(memberDir, 0o755); err != nil {
		return fmt.Errorf("failed to create member output directory: %w", err)
	}
	writeJSON(filepath.Join(memberDir, "tree.json"), output)
	writeJSON(filepath.Join(memberDir, "report.json"), report)
	return nil
}
