package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hackeurope/nodehoist/internal/aggregate"
	"github.com/hackeurope/nodehoist/internal/analysis"
	"github.com/hackeurope/nodehoist/internal/hoist"
	"github.com/hackeurope/nodehoist/internal/parser"
	"github.com/hackeurope/nodehoist/internal/registry"
	"github.com/hackeurope/nodehoist/pkg/models"
)

// ProgressSender interface for sending progress updates
type ProgressSender interface {
	SendMessage(msg Message)
	SendLog(message, level string)
	SendProgress(percent int, stage, message string)
	SendError(message string, err error)
}

// Pipeline wraps the CLI hoist logic for WebSocket use. Every Run call gets
// its own UUID so a client streaming several runs over one connection can
// tell them apart in the log and in every message it receives.
type Pipeline struct {
	// Registry archival settings (optional — skipped when Token is empty)
	registryURL   string
	registryToken string
	registryOwner string

	// AI explanation settings (optional — skipped when apiKey is empty)
	apiKey string

	// Progress sender
	sender ProgressSender

	// Scratch directory for the current run
	tempDir string

	// runID identifies the in-progress Run call, set at the top of Run.
	runID string

	// LastOutput, LastReport and LastTrace hold the most recent run's
	// results, so a caller (cmd/server's diagnostics endpoints) can serve
	// them after Run returns without re-running the pipeline.
	LastOutput *models.OutputNode
	LastReport *aggregate.Report
	LastTrace  []byte
}

// NewPipeline creates a new pipeline instance
func NewPipeline(registryURL, registryToken, registryOwner, apiKey string, sender ProgressSender) *Pipeline {
	return &Pipeline{
		registryURL:   registryURL,
		registryToken: registryToken,
		registryOwner: registryOwner,
		apiKey:        apiKey,
		sender:        sender,
	}
}

// log sends a log message both to the WebSocket client and to the console,
// tagged with the current run ID so concurrent runs stay distinguishable.
func (p *Pipeline) log(message, level string) {
	p.sender.SendLog(message, level)

	prefix := "[INFO]"
	switch level {
	case "success":
		prefix = "[SUCCESS]"
	case "warning":
		prefix = "[WARN]"
	case "error":
		prefix = "[ERROR]"
	}
	log.Printf("%s [%s] %s", prefix, p.runID, message)
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	p.log(fmt.Sprintf(format, args...), "info")
}

// Run executes the full parse -> hoist -> diagnose -> explain pipeline for
// one package.json (with an optional accompanying lockfile). runID tags
// every message and log line this run produces, so a caller juggling
// several runs over one connection can demultiplex them.
func (p *Pipeline) Run(ctx context.Context, runID, packageJSONContent, lockfileContent string) error {
	p.runID = runID

	tempDir, err := os.MkdirTemp("", "nodehoist-run-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	p.tempDir = tempDir
	defer os.RemoveAll(tempDir)

	p.log(fmt.Sprintf("Starting hoist run %s...", p.runID), "info")

	// Step 1: Parse package.json (+ lockfile) into a dependency graph
	p.sender.SendMessage(NewProgressMessage(p.runID, 0, "dag", "Parsing package.json..."))
	graph, err := p.buildDAG(packageJSONContent, lockfileContent, tempDir)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	p.sender.SendMessage(NewProgressMessage(p.runID, 15, "dag", fmt.Sprintf("Graph built: %d packages", len(graph.Nodes))))

	if err := p.sendDAG(graph); err != nil {
		return fmt.Errorf("failed to send DAG: %w", err)
	}

	// Step 2: Lower the graph into the hoist engine's input shape
	input, err := parser.BuildInputTree(graph)
	if err != nil {
		return fmt.Errorf("failed to build input tree: %w", err)
	}

	// Step 3: Hoist, tracing every planner decision into an in-memory buffer
	p.sender.SendMessage(NewProgressMessage(p.runID, 30, "hoist", "Hoisting dependency tree..."))
	var trace bytes.Buffer
	output, err := hoist.Hoist(input, hoist.Options{Trace: &trace})
	if selfCheckErr, ok := err.(*hoist.SelfCheckError); ok {
		return p.explainSelfCheckFailure(ctx, selfCheckErr)
	}
	if err != nil {
		return fmt.Errorf("hoist failed: %w", err)
	}
	p.sender.SendMessage(NewProgressMessage(p.runID, 60, "hoist", "Hoist complete"))
	p.sender.SendMessage(NewHoistedMessage(p.runID, output))
	p.LastOutput = output
	p.LastTrace = trace.Bytes()

	// Step 4: Aggregate the trace into a diagnostics report
	p.sender.SendMessage(NewProgressMessage(p.runID, 70, "diagnostics", "Aggregating hoist diagnostics..."))
	report, err := aggregate.NewAggregator().ProcessReader(bytes.NewReader(trace.Bytes()), graph.RootPackage.Name)
	if err != nil {
		return fmt.Errorf("failed to aggregate diagnostics: %w", err)
	}
	p.sender.SendMessage(NewDiagnosticsMessage(p.runID, report))
	p.LastReport = report
	if len(report.DiagnosticFlags) > 0 {
		p.log(fmt.Sprintf("Diagnostic flags: %v", report.DiagnosticFlags), "warning")
	} else {
		p.log("No diagnostic flags raised", "success")
	}
	p.sender.SendMessage(NewProgressMessage(p.runID, 80, "diagnostics", "Diagnostics ready"))

	// Step 5: Optional AI explanation
	explanation, err := p.explain(ctx, report)
	if err != nil {
		p.log(fmt.Sprintf("AI explanation skipped: %v", err), "warning")
	} else if explanation != nil {
		p.sender.SendMessage(NewExplanationMessage(p.runID, explanation))
	}
	p.sender.SendMessage(NewProgressMessage(p.runID, 90, "explain", "Explanation stage complete"))

	// Step 6: Optional archival to the registry
	if p.registryToken != "" {
		if err := p.archive(ctx, graph.RootPackage.Name, output, report, explanation); err != nil {
			p.log(fmt.Sprintf("Registry archival failed: %v", err), "warning")
		}
	}

	p.sender.SendMessage(NewProgressMessage(p.runID, 100, "complete", "Run complete"))
	p.sender.SendMessage(NewCompleteMessage(p.runID, true, "Hoist run complete"))
	p.log("Hoist pipeline complete", "success")
	return nil
}

// buildDAG writes package.json (and, when supplied, the lockfile) to a
// scratch directory, generating a lockfile via npm when the client didn't
// send one, then parses both into a dependency graph.
func (p *Pipeline) buildDAG(packageJSONContent, lockfileContent, tempDir string) (*models.DependencyGraph, error) {
	pkgPath := filepath.Join(tempDir, "package.json")
	if err := os.WriteFile(pkgPath, []byte(packageJSONContent), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write package.json: %w", err)
	}

	if err := parser.ValidatePackageJSON(pkgPath); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}

	pkgJSON, err := parser.ParsePackageJSON(pkgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}
	p.logf("Hoisting: %s@%s", pkgJSON.Name, pkgJSON.Version)

	lm := parser.NewLockfileManager()
	defer lm.Cleanup()

	var lockfilePath string
	if lockfileContent != "" {
		lockfilePath = filepath.Join(tempDir, "package-lock.json")
		if err := os.WriteFile(lockfilePath, []byte(lockfileContent), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write package-lock.json: %w", err)
		}
	} else {
		p.log("No lockfile supplied, generating one...", "info")
		lockfilePath, err = lm.GenerateLockfile(pkgPath)
		if err != nil {
			return nil, fmt.Errorf("failed to generate lockfile: %w", err)
		}
	}

	rootPackage, err := lm.ExtractRootPackage(lockfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract root package: %w", err)
	}

	graph, err := lm.ParseLockfile(lockfilePath, rootPackage)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}

	return graph, nil
}

// sendDAG sends the parsed dependency graph to the frontend
func (p *Pipeline) sendDAG(graph *models.DependencyGraph) error {
	var nodes []*models.PackageNode
	for _, node := range graph.Nodes {
		nodes = append(nodes, node)
	}

	edgeCount := 0
	for _, node := range graph.Nodes {
		edgeCount += len(node.Dependencies)
	}

	p.sender.SendMessage(NewDAGMessage(p.runID, graph.RootPackage, nodes, edgeCount))
	p.logf("DAG sent: %d nodes, %d edges", len(nodes), edgeCount)
	return nil
}

// explain runs the AI explainer against the diagnostics report and returns
// its output, or nil if no API key was configured.
func (p *Pipeline) explain(ctx context.Context, report *aggregate.Report) (*analysis.FailureExplanation, error) {
	if p.apiKey == "" {
		return nil, nil
	}

	analyzer, err := analysis.NewAnalyzer(p.apiKey, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	reportPath := filepath.Join(p.tempDir, "report.json")
	reportBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(reportPath, reportBytes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report.json: %w", err)
	}

	rep := analysis.ReportInfo{Root: report.Collection, OutputDir: p.tempDir}
	if err := analyzer.ExplainReports(ctx, []analysis.ReportInfo{rep}); err != nil {
		return nil, err
	}

	explanationPath := filepath.Join(p.tempDir, "ai-explanation.json")
	data, err := os.ReadFile(explanationPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read explanation: %w", err)
	}

	var explanation analysis.FailureExplanation
	if err := json.Unmarshal(data, &explanation); err != nil {
		return nil, fmt.Errorf("failed to parse explanation: %w", err)
	}

	return &explanation, nil
}

// explainSelfCheckFailure surfaces a broken self-check as an error message,
// since a self-check failure means the hoist never produced a usable tree.
// When an API key is configured, it also asks the AI explainer to translate
// the broken-promise list into a plain-language root cause.
func (p *Pipeline) explainSelfCheckFailure(ctx context.Context, selfCheckErr *hoist.SelfCheckError) error {
	p.log(selfCheckErr.Error(), "error")
	p.sender.SendError("hoist self-check failed", selfCheckErr)

	if p.apiKey != "" {
		analyzer, err := analysis.NewAnalyzer(p.apiKey, 1)
		if err != nil {
			p.log(fmt.Sprintf("AI explanation skipped: %v", err), "warning")
		} else if explanation, err := analyzer.ExplainSelfCheck(ctx, selfCheckErr); err != nil {
			p.log(fmt.Sprintf("AI explanation failed: %v", err), "warning")
		} else {
			p.sender.SendMessage(NewExplanationMessage(p.runID, &explanation))
		}
	}

	p.sender.SendMessage(NewCompleteMessage(p.runID, false, "Hoist self-check failed"))
	return selfCheckErr
}

// archive uploads the hoisted tree and its diagnostics (and explanation, if
// one was produced) to the configured registry under this run's UUID.
func (p *Pipeline) archive(ctx context.Context, root string, output *models.OutputNode, report *aggregate.Report, explanation *analysis.FailureExplanation) error {
	uploader := registry.NewUploader(p.registryURL, p.registryOwner, p.registryToken)
	uploader.SetLogCallback(func(message, level string) {
		p.sender.SendLog(message, level)
	})

	var artifacts []registry.Artifact

	treeData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	artifacts = append(artifacts, registry.Artifact{Root: root, Version: p.runID, Filename: "tree.json", Data: treeData})

	reportData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	artifacts = append(artifacts, registry.Artifact{Root: root, Version: p.runID, Filename: "report.json", Data: reportData})

	if explanation != nil {
		explanationData, err := json.MarshalIndent(explanation, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal explanation: %w", err)
		}
		artifacts = append(artifacts, registry.Artifact{Root: root, Version: p.runID, Filename: "ai-explanation.json", Data: explanationData})
	}

	return uploader.UploadArtifacts(ctx, artifacts)
}
