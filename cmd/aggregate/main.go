package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hackeurope/nodehoist/internal/aggregate"
)

func main() {
	var (
		inputFile  = flag.String("input", "", "Path to a hoist trace .jsonl file (required)")
		collection = flag.String("collection", "default", "Collection name")
		outputFile = flag.String("output", "", "Output JSON file (optional, defaults to stdout)")
		perRoot    = flag.Bool("per-root", false, "Generate per-root statistics instead of a single run-wide report")
		help       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *help || *inputFile == "" {
		printUsage()
		os.Exit(0)
	}

	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: Input file not found: %s\n", *inputFile)
		os.Exit(1)
	}

	startTime := time.Now()
	fmt.Fprintf(os.Stderr, "Processing %s...\n", *inputFile)

	var result interface{}
	var err error

	if *perRoot {
		aggregator := aggregate.NewPerRootAggregator()
		result, err = aggregator.ProcessFile(*inputFile, *collection)
	} else {
		aggregator := aggregate.NewAggregator()
		result, err = aggregator.ProcessFile(*inputFile, *collection)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	duration := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "Completed in %v\n", duration)

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, jsonBytes, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", *outputFile)
	} else {
		fmt.Println(string(jsonBytes))
	}
}

func printUsage() {
	fmt.Println("Usage: aggregate [options]")
	fmt.Println()
	fmt.Println("Aggregate a hoist run's reason-trace JSONL into a diagnostics report")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -input string       Path to a hoist trace .jsonl file (required)")
	fmt.Println("  -collection string  Collection name (default: \"default\")")
	fmt.Println("  -output string      Output JSON file (optional, defaults to stdout)")
	fmt.Println("  -per-root           Generate per-root statistics")
	fmt.Println("  -help               Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  aggregate -input trace.jsonl")
	fmt.Println("  aggregate -input trace.jsonl -collection monorepo -output report.json")
	fmt.Println("  aggregate -input trace.jsonl -per-root -output per_root.json")
}
