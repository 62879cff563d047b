package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hackeurope/nodehoist/internal/analysis"
)

// runExplainCommand re-runs the AI explainer against a saved report.json,
// useful for regenerating ai-explanation.json without re-hoisting.
func runExplainCommand(args []string) {
	explainFlags := flag.NewFlagSet("explain", flag.ExitOnError)

	var (
		reportDir = explainFlags.String("dir", "", "Directory containing report.json (required)")
		root      = explainFlags.String("root", ".", "Hoist root label, used in the prompt")
		apiKey    = explainFlags.String("api-key", os.Getenv("OPENAI_API_KEY"), "API key for the AI explainer")
	)

	explainFlags.Parse(args)

	if *reportDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: hoist explain --dir <directory containing report.json> [options]")
		os.Exit(1)
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: --api-key or OPENAI_API_KEY is required")
		os.Exit(1)
	}

	explanationPath := filepath.Join(*reportDir, "ai-explanation.json")
	os.Remove(explanationPath) // force a fresh explanation instead of using the cache

	analyzer, err := analysis.NewAnalyzer(*apiKey, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating analyzer: %v\n", err)
		os.Exit(1)
	}

	rep := analysis.ReportInfo{Root: *root, OutputDir: *reportDir}
	if err := analyzer.ExplainReports(context.Background(), []analysis.ReportInfo{rep}); err != nil {
		fmt.Fprintf(os.Stderr, "Error explaining report: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(explanationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading explanation: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
