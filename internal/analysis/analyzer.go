package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/openai"

	"github.com/hackeurope/nodehoist/internal/aggregate"
	"github.com/hackeurope/nodehoist/internal/hoist"
)

const systemPrompt = `You are a build engineer specializing in JavaScript package managers. Your task is to explain, in plain language, why a dependency hoist run produced the diagnostics it did.

CONTEXT:
You are analyzing one of two things:
- A hoist diagnostic report: the tree was hoisted as flat as the package graph allows, and names that could not be
  lifted to the workspace root are recorded with the reason the planner rejected them. Diagnostic flags summarize
  recurring patterns across the whole run (peer conflicts, shadowing, unresolved cycles, popularity flapping).
- A self-check failure: the hoisted tree no longer keeps a require or peer promise the input tree made. This is a
  bug in the hoist itself, not an expected tradeoff, and always deserves "error" severity.

WHAT TO LOOK FOR IN A DIAGNOSTIC REPORT:
1. Peer dependency conflicts: a plugin needs a peer that a nearer ancestor already pins to an incompatible version
2. Shadowing: a package settled at one level blocks an identically-named but differently-versioned package below it
3. Unresolved cycles: two or more packages depend on each other as peers and neither can safely hoist
4. Popularity flapping: many packages lost the same popularity tie-break, suggesting the workspace would benefit from aligning versions manually

WHAT TO LOOK FOR IN A SELF-CHECK FAILURE:
1. Which node's require or peer promise broke, and what it wanted versus what it now resolves to
2. Whether the broken promises share a common ancestor or name, pointing at one bad hoist decision

JUDGMENT CRITERIA:
- Prefer the most common failure pattern as the root cause when several reasons appear
- A single blocked name is rarely worth an "error" severity; only mark "error" when it would likely surprise a maintainer, or when explaining a self-check failure
- Suggest a concrete fix (pin a version, use a resolutions/overrides field, split the peer out) when one is apparent

Provide a clear, actionable explanation.`

// Analyzer runs AI-powered explanation of hoist diagnostic reports.
type Analyzer struct {
	model     fantasy.LanguageModel
	semaphore chan struct{} // Limits concurrent analysis
}

// NewAnalyzer creates a new analyzer with the specified concurrency limit
func NewAnalyzer(apiKey string, concurrencyLimit int) (*Analyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for AI analysis")
	}

	provider, err := openai.New(
		openai.WithBaseURL("https://cope.duti.dev"),
		openai.WithAPIKey(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI provider: %w", err)
	}

	ctx := context.Background()
	model, err := provider.LanguageModel(ctx, "gpt-5-mini")
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}

	return &Analyzer{
		model:     model,
		semaphore: make(chan struct{}, concurrencyLimit),
	}, nil
}

// ReportInfo identifies a diagnostic report to explain.
type ReportInfo struct {
	Root      string
	OutputDir string // directory containing report.json
}

// ExplainReports runs AI explanation on multiple diagnostic reports in parallel
func (a *Analyzer) ExplainReports(ctx context.Context, reports []ReportInfo) error {
	if len(reports) == 0 {
		return nil
	}

	log.Printf("Starting AI diagnostic explanation for %d reports (max %d concurrent)", len(reports), cap(a.semaphore))

	var wg sync.WaitGroup
	errChan := make(chan error, len(reports))

	for _, r := range reports {
		wg.Add(1)
		go func(rep ReportInfo) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errChan <- fmt.Errorf("explanation cancelled for %s", rep.Root)
				return
			default:
			}

			select {
			case a.semaphore <- struct{}{}:
			case <-ctx.Done():
				errChan <- fmt.Errorf("explanation cancelled for %s", rep.Root)
				return
			}

			err := a.explainReport(ctx, rep)
			<-a.semaphore

			if err != nil {
				errChan <- fmt.Errorf("AI explanation failed for %s: %w", rep.Root, err)
			}
		}(r)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}

	log.Printf("Completed AI diagnostic explanation for %d reports", len(reports))
	return nil
}

// explainReport performs AI explanation on a single diagnostic report
func (a *Analyzer) explainReport(ctx context.Context, rep ReportInfo) error {
	explanationPath := filepath.Join(rep.OutputDir, "ai-explanation.json")
	if _, err := os.Stat(explanationPath); err == nil {
		log.Printf("  [AI] Using cached explanation for %s", rep.Root)
		return nil
	}

	reportPath := filepath.Join(rep.OutputDir, "report.json")
	reportData, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("failed to read report.json: %w", err)
	}

	var report aggregate.Report
	if err := json.Unmarshal(reportData, &report); err != nil {
		return fmt.Errorf("failed to parse report.json: %w", err)
	}

	if len(report.DiagnosticFlags) == 0 {
		log.Printf("  [AI] No diagnostic flags for %s, skipping explanation", rep.Root)
		explanation := FailureExplanation{
			RootCause:   "none",
			Severity:    "info",
			Explanation: "The hoist run produced no diagnostic flags. Every name that could be lifted to the root was lifted.",
		}
		return a.saveExplanation(rep.OutputDir, explanation)
	}

	prompt := formatExplanationPrompt(rep.Root, &report)

	explanation := FailureExplanation{}
	submitExplanationTool := fantasy.NewAgentTool(
		"submit_explanation",
		"Submit your explanation for this hoist diagnostic report", func(
			_ context.Context,
			input FailureExplanation,
			_ fantasy.ToolCall,
		) (fantasy.ToolResponse, error) {
			explanation = input
			return fantasy.ToolResponse{
				Content: "Command received",
			}, nil
		})

	agent := fantasy.NewAgent(a.model, fantasy.WithSystemPrompt(systemPrompt), fantasy.WithTools(submitExplanationTool))
	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: prompt,
	})
	if err != nil {
		return fmt.Errorf("agent generation failed: %w", err)
	}

	log.Printf("  [AI] Agent response for %s:\n%s", rep.Root, result.Response.Content.Text())

	if err := a.saveExplanation(rep.OutputDir, explanation); err != nil {
		return fmt.Errorf("failed to save explanation: %w", err)
	}

	log.Printf("  [AI] Completed explanation for %s - severity: %s", rep.Root, explanation.Severity)

	return nil
}

// ExplainSelfCheck runs AI explanation directly against a self-check
// failure, the other trigger besides a diagnostics report with at least one
// diagnostic flag. Self-check failures never touch disk, so unlike
// explainReport there is no cached-explanation short circuit.
func (a *Analyzer) ExplainSelfCheck(ctx context.Context, selfCheckErr *hoist.SelfCheckError) (FailureExplanation, error) {
	prompt := formatSelfCheckPrompt(selfCheckErr)

	explanation := FailureExplanation{}
	submitExplanationTool := fantasy.NewAgentTool(
		"submit_explanation",
		"Submit your explanation for this hoist self-check failure", func(
			_ context.Context,
			input FailureExplanation,
			_ fantasy.ToolCall,
		) (fantasy.ToolResponse, error) {
			explanation = input
			return fantasy.ToolResponse{
				Content: "Command received",
			}, nil
		})

	agent := fantasy.NewAgent(a.model, fantasy.WithSystemPrompt(systemPrompt), fantasy.WithTools(submitExplanationTool))
	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: prompt,
	})
	if err != nil {
		return FailureExplanation{}, fmt.Errorf("agent generation failed: %w", err)
	}

	log.Printf("  [AI] Agent response for self-check failure:\n%s", result.Response.Content.Text())

	return explanation, nil
}

// formatSelfCheckPrompt creates a detailed prompt from a self-check failure.
func formatSelfCheckPrompt(selfCheckErr *hoist.SelfCheckError) string {
	var sb strings.Builder

	sb.WriteString("Explain why this hoist run failed its self-check.\n\n")
	sb.WriteString(fmt.Sprintf("Broken promises found: %d\n\n", len(selfCheckErr.Broken)))

	for _, broken := range selfCheckErr.Broken {
		sb.WriteString(fmt.Sprintf("  - %s\n", broken.String()))
	}

	sb.WriteString("\nHoisted tree dump:\n")
	sb.WriteString(selfCheckErr.TreeDump)
	sb.WriteString("\n\nUse the submit_explanation tool to provide your explanation.")

	return sb.String()
}

// formatExplanationPrompt creates a detailed prompt from the diagnostic report
func formatExplanationPrompt(root string, report *aggregate.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Explain the hoist diagnostics for workspace root: %s\n\n", root))
	sb.WriteString(fmt.Sprintf("Total planner decisions recorded: %d\n", report.TotalEvents))

	if len(report.DecisionCounts) > 0 {
		sb.WriteString("\nDecision counts:\n")
		for decision, count := range report.DecisionCounts {
			sb.WriteString(fmt.Sprintf("  - %s: %d\n", decision, count))
		}
	}

	if len(report.ReasonProfile) > 0 {
		sb.WriteString("\nReason profile:\n")
		for reason, count := range report.ReasonProfile {
			sb.WriteString(fmt.Sprintf("  - %s: %d\n", reason, count))
		}
	}

	if len(report.NamesBlocked) > 0 {
		sb.WriteString("\nNames blocked from hoisting to root:\n")
		for name, count := range report.NamesBlocked {
			sb.WriteString(fmt.Sprintf("  - %s: blocked %d time(s)\n", name, count))
		}
	}

	sb.WriteString("\nDiagnostic flags: " + strings.Join(report.DiagnosticFlags, ", ") + "\n")
	sb.WriteString("\nUse the submit_explanation tool to provide your explanation.")

	return sb.String()
}

// saveExplanation saves the explanation to ai-explanation.json
func (a *Analyzer) saveExplanation(outputDir string, explanation FailureExplanation) error {
	explanationPath := filepath.Join(outputDir, "ai-explanation.json")

	jsonBytes, err := json.MarshalIndent(explanation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal explanation: %w", err)
	}

	if err := os.WriteFile(explanationPath, jsonBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write explanation file: %w", err)
	}

	return nil
}
