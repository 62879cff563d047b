package aggregate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Aggregator processes hoist reason-trace events and generates statistics.
type Aggregator struct {
	totalEvents    int
	decisionCounts map[string]int
	reasonProfile  map[string]int
	rootsAffected  map[string]int
	namesBlocked   map[string]int
}

// NewAggregator creates a new Aggregator instance
func NewAggregator() *Aggregator {
	return &Aggregator{
		decisionCounts: make(map[string]int),
		reasonProfile:  make(map[string]int),
		rootsAffected:  make(map[string]int),
		namesBlocked:   make(map[string]int),
	}
}

// ProcessFile reads a JSONL file and aggregates statistics
func (a *Aggregator) ProcessFile(filename string, collection string) (*Report, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return a.ProcessReader(file, collection)
}

// ProcessReader reads from an io.Reader and aggregates statistics
func (a *Aggregator) ProcessReader(reader io.Reader, collection string) (*Report, error) {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var event ReasonEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			// Skip invalid JSON lines
			continue
		}

		a.processEvent(&event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	return a.buildReport(collection), nil
}

func (a *Aggregator) processEvent(event *ReasonEvent) {
	a.totalEvents++
	a.decisionCounts[event.Decision]++
	a.rootsAffected[event.Root]++

	if event.Reason != "" {
		a.reasonProfile[reasonBucket(event.Reason)]++
	}

	if event.Decision == "no" {
		a.namesBlocked[event.Name]++
	}
}

// reasonBucket collapses a free-form planner reason string down to the
// pattern that produced it, so "name foo is won by foo@1.0.0" and
// "name bar is won by bar@2.0.0" land in the same bucket.
func reasonBucket(reason string) string {
	switch {
	case strings.Contains(reason, "self-reference"):
		return "self-reference"
	case strings.Contains(reason, "is won by"):
		return "outranked-by-more-popular"
	case strings.Contains(reason, "already forwarded above"):
		return "already-forwarded"
	case strings.Contains(reason, "shadowed by"):
		return "shadowed-by-ancestor"
	case strings.Contains(reason, "won't follow"):
		return "peer-conflict"
	default:
		return "other"
	}
}

func (a *Aggregator) buildReport(collection string) *Report {
	return &Report{
		Collection:      collection,
		TotalEvents:     a.totalEvents,
		DecisionCounts:  a.decisionCounts,
		ReasonProfile:   a.reasonProfile,
		RootsAffected:   a.rootsAffected,
		NamesBlocked:    a.namesBlocked,
		DiagnosticFlags: a.detectDiagnosticFlags(),
	}
}

// detectDiagnosticFlags evaluates the accumulated reason profile for
// patterns worth calling out in a summary, mirroring the shape of a risk
// scan but over hoist outcomes instead of syscalls.
func (a *Aggregator) detectDiagnosticFlags() []string {
	flags := make(map[string]bool)

	if a.reasonProfile["peer-conflict"] > 0 {
		flags["peer_conflict"] = true
	}
	if a.reasonProfile["shadowed-by-ancestor"] > 0 {
		flags["shadowed"] = true
	}
	// Every DEPENDS classification gets a matching "cycle-yes" follow-up
	// trace once resolveCycles clears it; any DEPENDS left over never
	// cleared, meaning it stayed pinned below its unmet peer forever.
	if a.decisionCounts["depends"] > a.decisionCounts["cycle-yes"] {
		flags["unresolved_cycle"] = true
	}
	if a.reasonProfile["outranked-by-more-popular"] > a.totalEvents/2 && a.totalEvents > 0 {
		flags["popularity_flap"] = true
	}

	result := make([]string, 0, len(flags))
	for flag := range flags {
		result = append(result, flag)
	}
	return result
}
