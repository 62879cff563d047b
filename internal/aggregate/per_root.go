package aggregate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// PerRootAggregator aggregates statistics per hoist root.
type PerRootAggregator struct {
	roots map[string]*rootData
}

type rootData struct {
	decisionCounts map[string]int
	reasonProfile  map[string]int
	namesBlocked   map[string]int
}

// NewPerRootAggregator creates a new PerRootAggregator
func NewPerRootAggregator() *PerRootAggregator {
	return &PerRootAggregator{
		roots: make(map[string]*rootData),
	}
}

// ProcessFile reads a JSONL file and aggregates per-root statistics
func (pa *PerRootAggregator) ProcessFile(filename string, collection string) (*PerRootReport, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return pa.ProcessReader(file, collection)
}

// ProcessReader reads from an io.Reader and aggregates per-root statistics
func (pa *PerRootAggregator) ProcessReader(reader io.Reader, collection string) (*PerRootReport, error) {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var event ReasonEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		pa.processEvent(&event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	return pa.buildReport(collection), nil
}

func (pa *PerRootAggregator) processEvent(event *ReasonEvent) {
	data, exists := pa.roots[event.Root]
	if !exists {
		data = &rootData{
			decisionCounts: make(map[string]int),
			reasonProfile:  make(map[string]int),
			namesBlocked:   make(map[string]int),
		}
		pa.roots[event.Root] = data
	}

	data.decisionCounts[event.Decision]++
	if event.Reason != "" {
		data.reasonProfile[reasonBucket(event.Reason)]++
	}
	if event.Decision == "no" {
		data.namesBlocked[event.Name]++
	}
}

func (pa *PerRootAggregator) buildReport(collection string) *PerRootReport {
	perRoot := make(map[string]*RootSummary)

	for root, data := range pa.roots {
		perRoot[root] = &RootSummary{
			DecisionCounts: data.decisionCounts,
			ReasonProfile:  data.reasonProfile,
			NamesBlocked:   data.namesBlocked,
		}
	}

	return &PerRootReport{
		Collection: collection,
		PerRoot:    perRoot,
		CountRoots: len(perRoot),
	}
}
