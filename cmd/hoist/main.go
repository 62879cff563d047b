package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hackeurope/nodehoist/internal/aggregate"
	"github.com/hackeurope/nodehoist/internal/analysis"
	"github.com/hackeurope/nodehoist/internal/hoist"
	"github.com/hackeurope/nodehoist/internal/parser"
	"github.com/hackeurope/nodehoist/internal/registry"
	"github.com/hackeurope/nodehoist/pkg/models"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "check":
		runCheckCommand(os.Args[2:])
	case "explain":
		runExplainCommand(os.Args[2:])
	case "workspaces":
		runWorkspacesCommand(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("hoist - dependency hoisting engine")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  hoist check [options]       Parse a package.json (+ lockfile), hoist it, print/upload the result")
	fmt.Println("  hoist explain [options]     Re-run the AI explainer against a saved diagnostics report")
	fmt.Println("  hoist workspaces [options]  Hoist every member of a monorepo workspace concurrently")
	fmt.Println("")
	fmt.Println("Run 'hoist <command> --help' for more information on a command.")
}

func runCheckCommand(args []string) {
	checkFlags := flag.NewFlagSet("check", flag.ExitOnError)

	var (
		packageJSONPath = checkFlags.String("package", "", "Path to package.json")
		lockfilePath    = checkFlags.String("lockfile", "", "Path to package-lock.json (optional; generated via npm when absent)")
		treeOutput      = checkFlags.String("output", "", "Output path for the hoisted tree JSON (optional)")
		tracePath       = checkFlags.String("trace", "", "Output path for the raw reason-trace JSONL (optional)")
		reportOutput    = checkFlags.String("report", "", "Output path for the aggregated diagnostics report JSON (optional)")
		debugLevel      = checkFlags.Int("debug-level", -1, "Self-check verbosity; overrides NM_DEBUG_LEVEL when >= 0")

		uploadRegistry = checkFlags.Bool("upload", false, "Archive the hoisted tree and report to the registry")
		registryURL    = checkFlags.String("registry-url", "https://git.duti.dev", "Gitea registry URL")
		registryOwner  = checkFlags.String("registry-owner", "acheong08", "Gitea registry owner")
		registryToken  = checkFlags.String("registry-token", os.Getenv("REGISTRY_TOKEN"), "Gitea registry token (required when --upload is set)")
		runID          = checkFlags.String("run-id", "cli", "Version/run identifier used when archiving to the registry")

		apiKey = checkFlags.String("api-key", os.Getenv("OPENAI_API_KEY"), "API key for AI explanation of a self-check failure (optional)")
	)

	checkFlags.Parse(args)

	if *packageJSONPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
			os.Exit(1)
		}

		path, err := parser.FindPackageJSON(cwd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		*packageJSONPath = path
	}

	if err := parser.ValidatePackageJSON(*packageJSONPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pkgJSON, err := parser.ParsePackageJSON(*packageJSONPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing package.json: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Hoisting: %s@%s\n", pkgJSON.Name, pkgJSON.Version)

	var graph *models.DependencyGraph

	if *lockfilePath != "" {
		lm := parser.NewLockfileManager()
		graph, err = lm.ParseLockfile(*lockfilePath, pkgJSON.ToPackage())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing lockfile: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Println("Generating lockfile...")
		graph, err = parser.BuildGraphFromPackageJSON(*packageJSONPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building dependency graph: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("\nDependency Graph Summary:\n")
	fmt.Printf("   Root: %s@%s\n", graph.RootPackage.Name, graph.RootPackage.Version)
	fmt.Printf("   Total packages: %d\n", len(graph.Nodes))

	input, err := parser.BuildInputTree(graph)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building input tree: %v\n", err)
		os.Exit(1)
	}

	var trace bytes.Buffer
	opts := hoist.Options{Trace: &trace}
	if *debugLevel >= 0 {
		opts.DebugLevel = *debugLevel
		opts.DebugLevelSet = true
	}

	output, err := hoist.Hoist(input, opts)
	if selfCheckErr, ok := err.(*hoist.SelfCheckError); ok {
		fmt.Fprintf(os.Stderr, "Self-check failed:\n%s\n\n%s\n", selfCheckErr.Error(), selfCheckErr.TreeDump)
		if *apiKey != "" {
			if analyzer, err := analysis.NewAnalyzer(*apiKey, 1); err != nil {
				fmt.Fprintf(os.Stderr, "AI explanation skipped: %v\n", err)
			} else if explanation, err := analyzer.ExplainSelfCheck(context.Background(), selfCheckErr); err != nil {
				fmt.Fprintf(os.Stderr, "AI explanation failed: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "\nAI explanation:\n%s\n", explanation.Explanation)
			}
		}
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hoisting: %v\n", err)
		os.Exit(1)
	}

	report, err := aggregate.NewAggregator().ProcessReader(bytes.NewReader(trace.Bytes()), graph.RootPackage.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error aggregating diagnostics: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("   Names blocked from root: %d\n", len(report.NamesBlocked))
	if len(report.DiagnosticFlags) > 0 {
		fmt.Printf("   Diagnostic flags: %v\n", report.DiagnosticFlags)
	} else {
		fmt.Println("   Diagnostic flags: none")
	}

	if *tracePath != "" {
		if err := os.WriteFile(*tracePath, trace.Bytes(), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing trace: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nTrace written to: %s\n", *tracePath)
	}

	if *reportOutput != "" {
		writeJSON(*reportOutput, report)
		fmt.Printf("Report written to: %s\n", *reportOutput)
	}

	if *treeOutput != "" {
		writeJSON(*treeOutput, output)
		fmt.Printf("Tree written to: %s\n", *treeOutput)
	}

	if *uploadRegistry {
		if *registryToken == "" {
			fmt.Fprintf(os.Stderr, "Error: --registry-token is required for upload\n")
			os.Exit(1)
		}

		fmt.Println("\nUploading to registry...")
		uploader := registry.NewUploader(*registryURL, *registryOwner, *registryToken)

		artifacts := []registry.Artifact{}
		treeData, _ := json.MarshalIndent(output, "", "  ")
		artifacts = append(artifacts, registry.Artifact{Root: ".", Version: *runID, Filename: "tree.json", Data: treeData})
		reportData, _ := json.MarshalIndent(report, "", "  ")
		artifacts = append(artifacts, registry.Artifact{Root: ".", Version: *runID, Filename: "report.json", Data: reportData})

		if err := uploader.UploadArtifacts(context.Background(), artifacts); err != nil {
			fmt.Fprintf(os.Stderr, "Error uploading to registry: %v\n", err)
			os.Exit(1)
		}
	}
}

func writeJSON(path string, value interface{}) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
		os.Exit(1)
	}
}
