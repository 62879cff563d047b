package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
)

// DedupedReport represents the result of deduplicating one flat Report
// against a baseline Report from an earlier run over the same tree, e.g.
// comparing a hoist after a dependency bump against the hoist from before
// it. Unlike DedupedRootReport, this operates on a single collection's
// totals rather than a workspace's per-root breakdown.
type DedupedReport struct {
	Collection       string         `json:"collection"`
	BaselineSource   string         `json:"baseline_source"`
	DecisionCounts   map[string]int `json:"decision_counts"`
	ReasonProfile    map[string]int `json:"reason_profile"`
	NamesBlocked     map[string]int `json:"names_blocked"`
	RemovedReasons   int            `json:"removed_reasons"`
	RemovedBlocks    int            `json:"removed_blocks"`
	RemovedDecisions int            `json:"removed_decisions"`
}

// Dedup subtracts baseline data from target data for a single flat Report,
// keeping only the decisions, reasons and blocked names that changed
// between two hoist runs over the same tree.
func Dedup(target, baseline *Report) *DedupedReport {
	result := &DedupedReport{
		Collection:     target.Collection,
		BaselineSource: baseline.Collection,
		DecisionCounts: make(map[string]int),
		ReasonProfile:  make(map[string]int),
		NamesBlocked:   make(map[string]int),
	}

	for decision, count := range target.DecisionCounts {
		if baselineCount, exists := baseline.DecisionCounts[decision]; !exists || count > baselineCount {
			if exists && count > baselineCount {
				result.DecisionCounts[decision] = count - baselineCount
			} else {
				result.DecisionCounts[decision] = count
			}
		} else {
			result.RemovedDecisions++
		}
	}

	for reason, count := range target.ReasonProfile {
		if _, exists := baseline.ReasonProfile[reason]; !exists {
			result.ReasonProfile[reason] = count
		} else {
			result.RemovedReasons++
		}
	}

	for name, count := range target.NamesBlocked {
		if _, exists := baseline.NamesBlocked[name]; !exists {
			result.NamesBlocked[name] = count
		} else {
			result.RemovedBlocks++
		}
	}

	return result
}

// DedupedRootReport represents the result after deduplication against a
// baseline run, e.g. comparing a hoist after a dependency bump against the
// hoist from before it.
type DedupedRootReport struct {
	Collection       string                  `json:"collection"`
	PerRoot          map[string]*RootSummary `json:"per_root"`
	CountRoots       int                     `json:"count_roots"`
	BaselineSource   string                  `json:"baseline_source"`
	RemovedRoots     int                     `json:"removed_roots"`
	RemovedReasons   int                     `json:"removed_reasons"`
	RemovedBlocks    int                     `json:"removed_blocks"`
	RemovedDecisions int                     `json:"removed_decisions"`
}

// LoadPerRootReport loads a per-root report from a JSON file
func LoadPerRootReport(filename string) (*PerRootReport, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var report PerRootReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &report, nil
}

// DedupPerRoot subtracts baseline data from target data, keeping only the
// roots and reasons that changed between two hoist runs over the same
// workspace.
func DedupPerRoot(target *PerRootReport, baseline *PerRootReport) *DedupedRootReport {
	result := &DedupedRootReport{
		Collection:     target.Collection,
		BaselineSource: baseline.Collection,
		PerRoot:        make(map[string]*RootSummary),
	}

	removedRoots := 0
	removedReasons := 0
	removedBlocks := 0
	removedDecisions := 0

	for rootName, targetRoot := range target.PerRoot {
		baselineRoot, exists := baseline.PerRoot[rootName]
		if !exists {
			result.PerRoot[rootName] = targetRoot
			continue
		}

		deduped := &RootSummary{
			DecisionCounts: make(map[string]int),
			ReasonProfile:  make(map[string]int),
			NamesBlocked:   make(map[string]int),
		}

		for decision, count := range targetRoot.DecisionCounts {
			if baselineCount, exists := baselineRoot.DecisionCounts[decision]; !exists || count > baselineCount {
				if exists && count > baselineCount {
					deduped.DecisionCounts[decision] = count - baselineCount
				} else {
					deduped.DecisionCounts[decision] = count
				}
			} else {
				removedDecisions++
			}
		}

		for reason, count := range targetRoot.ReasonProfile {
			if _, exists := baselineRoot.ReasonProfile[reason]; !exists {
				deduped.ReasonProfile[reason] = count
			} else {
				removedReasons++
			}
		}

		for name, count := range targetRoot.NamesBlocked {
			if _, exists := baselineRoot.NamesBlocked[name]; !exists {
				deduped.NamesBlocked[name] = count
			} else {
				removedBlocks++
			}
		}

		if len(deduped.DecisionCounts) > 0 || len(deduped.ReasonProfile) > 0 || len(deduped.NamesBlocked) > 0 {
			result.PerRoot[rootName] = deduped
		} else {
			removedRoots++
		}
	}

	result.CountRoots = len(result.PerRoot)
	result.RemovedRoots = removedRoots
	result.RemovedReasons = removedReasons
	result.RemovedBlocks = removedBlocks
	result.RemovedDecisions = removedDecisions

	return result
}
