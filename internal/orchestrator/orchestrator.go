package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
)

// WorkspaceManifest lists the member packages of a workspace, mirroring the
// shape of a pnpm-workspace.yaml or npm "workspaces" field pulled out into
// its own file.
type WorkspaceManifest struct {
	Members []string `yaml:"members"`
}

// ParseWorkspaceManifest parses a workspace manifest YAML document.
func ParseWorkspaceManifest(data []byte) (*WorkspaceManifest, error) {
	var manifest WorkspaceManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse workspace manifest: %w", err)
	}
	return &manifest, nil
}

// ProgressCallback is called when a workspace member finishes processing.
type ProgressCallback func(member string, namesBlocked int)

// MemberProcessor hoists a single workspace member's dependency tree and
// reports the outcome. Kept as a caller-supplied function so this package
// doesn't need to import internal/hoist or internal/parser directly.
type MemberProcessor func(ctx context.Context, member string, packageJSON, lockfile []byte) (*WorkspaceResult, error)

// WorkspaceResult holds the result of hoisting a single workspace member.
type WorkspaceResult struct {
	Member          string
	Success         bool
	NamesBlocked    int
	DiagnosticFlags []string
	Error           error
}

// Orchestrator fetches workspace-member manifests from a mirror repository
// and runs them through a hoist pipeline with bounded concurrency.
type Orchestrator struct {
	client      *GitHubClient
	concurrency int
	timeout     time.Duration
	progressCb  ProgressCallback
	process     MemberProcessor
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(token, owner, repo string, concurrency int, timeout time.Duration, process MemberProcessor, progressCb ProgressCallback) *Orchestrator {
	return &Orchestrator{
		client:      NewGitHubClient(token, owner, repo),
		concurrency: concurrency,
		timeout:     timeout,
		process:     process,
		progressCb:  progressCb,
	}
}

// RunWorkspaces fetches every member's package.json and package-lock.json
// from the mirror repository and hoists them, fanning out with a bounded
// worker pool and cancelling the remaining work on the first failure.
func (o *Orchestrator) RunWorkspaces(ctx context.Context, manifest *WorkspaceManifest) ([]WorkspaceResult, error) {
	if manifest == nil || len(manifest.Members) == 0 {
		return nil, fmt.Errorf("workspace manifest has no members")
	}

	fmt.Printf("Starting hoist for %d workspace members (max %d concurrent)\n", len(manifest.Members), o.concurrency)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan string, len(manifest.Members))
	resultChan := make(chan WorkspaceResult, len(manifest.Members))

	for _, member := range manifest.Members {
		workChan <- member
	}
	close(workChan)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.concurrency)

	for i := 0; i < o.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, cancel, workChan, resultChan, semaphore)
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var results []WorkspaceResult
	completed := 0
	failed := 0

	for result := range resultChan {
		completed++
		if result.Error != nil {
			failed++
		}
		results = append(results, result)
		fmt.Printf("  [%d/%d] %s - ", completed, len(manifest.Members), result.Member)
		if result.Error != nil {
			fmt.Printf("FAILED: %v\n", result.Error)
		} else {
			fmt.Printf("SUCCESS (%d names blocked)\n", result.NamesBlocked)
		}
	}

	for _, result := range results {
		if result.Error != nil {
			return results, fmt.Errorf("hoist failed for %s: %w", result.Member, result.Error)
		}
	}

	fmt.Printf("\nCompleted hoist: %d/%d members successful\n", len(manifest.Members)-failed, len(manifest.Members))
	return results, nil
}

// worker processes workspace members from the work channel
func (o *Orchestrator) worker(ctx context.Context, cancel context.CancelFunc, workChan <-chan string, resultChan chan<- WorkspaceResult, semaphore chan struct{}) {
	for member := range workChan {
		select {
		case <-ctx.Done():
			resultChan <- WorkspaceResult{
				Member: member,
				Error:  fmt.Errorf("cancelled due to previous error"),
			}
			continue
		default:
		}

		semaphore <- struct{}{}
		result := o.processMember(ctx, member)
		<-semaphore

		if result.Error != nil {
			cancel()
		}

		resultChan <- result
	}
}

// processMember fetches a workspace member's manifest and lockfile, then
// hoists it via the caller-supplied MemberProcessor.
func (o *Orchestrator) processMember(ctx context.Context, member string) WorkspaceResult {
	timeoutCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	packageJSON, err := o.client.GetRepositoryFile(timeoutCtx, member+"/package.json")
	if err != nil {
		return WorkspaceResult{Member: member, Error: fmt.Errorf("failed to fetch package.json: %w", err)}
	}

	lockfile, err := o.client.GetRepositoryFile(timeoutCtx, member+"/package-lock.json")
	if err != nil {
		return WorkspaceResult{Member: member, Error: fmt.Errorf("failed to fetch package-lock.json: %w", err)}
	}

	result, err := o.process(timeoutCtx, member, packageJSON, lockfile)
	if err != nil {
		return WorkspaceResult{Member: member, Error: err}
	}
	result.Member = member
	result.Success = true

	if o.progressCb != nil {
		o.progressCb(member, result.NamesBlocked)
	}

	return *result
}
