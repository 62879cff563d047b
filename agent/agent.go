package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/openaicompat"
)

// ---------------- Tool: fetch_diagnostics ----------------

type DiagnosticsInput struct {
	RunID string `json:"run_id"`
}

func fetchDiagnosticsTool(serverURL string) func(context.Context, DiagnosticsInput, fantasy.ToolCall) (fantasy.ToolResponse, error) {
	return func(ctx context.Context, input DiagnosticsInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
		fmt.Println("========================================")
		fmt.Printf("[TOOL CALL] fetch_diagnostics input: %+v\n", input)

		url := fmt.Sprintf("%s/diagnostics/%s", serverURL, input.RunID)
		resp, err := http.Get(url)
		if err != nil {
			return fantasy.ToolResponse{}, err
		}
		defer resp.Body.Close()

		bodyBytes, _ := io.ReadAll(resp.Body)
		output := string(bodyBytes)

		fmt.Println("[TOOL OUTPUT] fetch_diagnostics returned:")
		fmt.Println(output)
		fmt.Println("========================================")

		return fantasy.ToolResponse{
			Type:    string(fantasy.ContentTypeText),
			Content: output,
		}, nil
	}
}

// ---------------- Tool: fetch_reasons ----------------

type ReasonsInput struct {
	RunID string `json:"run_id"`
}

func fetchReasonsTool(serverURL string) func(context.Context, ReasonsInput, fantasy.ToolCall) (fantasy.ToolResponse, error) {
	return func(ctx context.Context, input ReasonsInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
		fmt.Println("========================================")
		fmt.Printf("[TOOL CALL] fetch_reasons input: %+v\n", input)

		url := fmt.Sprintf("%s/reasons/%s", serverURL, input.RunID)
		resp, err := http.Get(url)
		if err != nil {
			return fantasy.ToolResponse{}, err
		}
		defer resp.Body.Close()

		bodyBytes, _ := io.ReadAll(resp.Body)
		output := string(bodyBytes)

		fmt.Println("[TOOL OUTPUT] fetch_reasons returned:")
		fmt.Println(output)
		fmt.Println("========================================")

		return fantasy.ToolResponse{
			Type:    string(fantasy.ContentTypeText),
			Content: output,
		}, nil
	}
}

// ---------------- Tool: fetch_tree ----------------

type TreeInput struct {
	RunID string `json:"run_id"`
}

func fetchTreeTool(serverURL string) func(context.Context, TreeInput, fantasy.ToolCall) (fantasy.ToolResponse, error) {
	return func(ctx context.Context, input TreeInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
		fmt.Println("========================================")
		fmt.Printf("[TOOL CALL] fetch_tree input: %+v\n", input)

		url := fmt.Sprintf("%s/tree/%s", serverURL, input.RunID)
		resp, err := http.Get(url)
		if err != nil {
			return fantasy.ToolResponse{}, err
		}
		defer resp.Body.Close()

		bodyBytes, _ := io.ReadAll(resp.Body)
		output := string(bodyBytes)

		fmt.Println("[TOOL OUTPUT] fetch_tree returned:")
		fmt.Println(output)
		fmt.Println("========================================")

		return fantasy.ToolResponse{
			Type:    string(fantasy.ContentTypeText),
			Content: output,
		}, nil
	}
}

// ---------------- Tool: submit_verdict ----------------

type VerdictInput struct {
	Verdict string `json:"verdict"`
}

func submitVerdictTool(ctx context.Context, input VerdictInput, call fantasy.ToolCall) (fantasy.ToolResponse, error) {
	fmt.Println("========================================")
	fmt.Printf("[TOOL CALL] submit_verdict input: %+v\n", input)

	output := fmt.Sprintf("{verdict: %s}", input.Verdict)

	fmt.Println("[TOOL OUTPUT] submit_verdict returned:")
	fmt.Println(output)
	fmt.Println("========================================")

	return fantasy.ToolResponse{
		Type:    string(fantasy.ContentTypeText),
		Content: output,
	}, nil
}

// AnalyzeRun runs the diagnostics-explanation agent against a completed
// hoist run, identified by its run ID, against a live cmd/server instance
// at serverURL.
func AnalyzeRun(ctx context.Context, serverURL, runID string) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY required")
	}

	provider, err := openaicompat.New(
		openaicompat.WithBaseURL("https://api.synthetic.new/openai/v1"),
		openaicompat.WithAPIKey(apiKey),
	)
	if err != nil {
		return "", err
	}

	model, err := provider.LanguageModel(ctx, "hf:moonshotai/Kimi-K2.5")
	if err != nil {
		return "", err
	}

	// ---- Tools ----

	diagnosticsTool := fantasy.NewAgentTool(
		"fetch_diagnostics",
		`Fetch the aggregated diagnostics report for a hoist run.`,
		fetchDiagnosticsTool(serverURL),
	)

	reasonsTool := fantasy.NewAgentTool(
		"fetch_reasons",
		`Fetch the raw reason trace (one planner decision per line) for a hoist run.`,
		fetchReasonsTool(serverURL),
	)

	treeTool := fantasy.NewAgentTool(
		"fetch_tree",
		`Fetch the hoisted output tree for a hoist run.`,
		fetchTreeTool(serverURL),
	)

	verdictTool := fantasy.NewAgentTool(
		"submit_verdict",
		`Provide the final verdict after analysis is done. EXACTLY ONE OF 'clean', 'needs-attention'`,
		submitVerdictTool,
	)

	systemPrompt := `
You are a build engineer explaining why a Node.js dependency hoist run produced the diagnostics it did.
You will:
1) Fetch the aggregated report with fetch_diagnostics.
2) If diagnostic flags are present, fetch the raw reason trace with fetch_reasons to see exactly which packages were blocked and why.
3) If you need to see the resulting layout, fetch_tree shows where each package actually settled.
4) EXPLAIN your reasoning step by step in your final response, then call submit_verdict.

Peer dependency conflicts, shadowing, and popularity tie-break flapping are normal outcomes of a correct hoist, not bugs.
Only mark 'needs-attention' when a maintainer would likely be surprised by the result, e.g. a name that was blocked at every level or a diagnostic flag repeated across many roots.
`

	agent := fantasy.NewAgent(
		model,
		fantasy.WithSystemPrompt(systemPrompt),
		fantasy.WithTools(verdictTool, diagnosticsTool, reasonsTool, treeTool),
	)

	userPrompt := fmt.Sprintf(`
Analyze hoist run "%s".
1. Call fetch_diagnostics first.
2. If diagnostic flags are non-empty, drill down via fetch_reasons and fetch_tree.
3. Include full reasoning and a summary conclusion, then submit_verdict.
`, runID)

	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: userPrompt,
	})
	if err != nil {
		return "", err
	}

	return result.Response.Content.Text(), nil
}
