package aggregate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = `
{"root":".","parent":"a@1.0.0","name":"b","ident":"b@1.0.0","decision":"yes"}
{"root":".","parent":"c@1.0.0","name":"b","ident":"b@2.0.0","decision":"no","reason":"name b is won by b@1.0.0"}
{"root":".","parent":"mid@1.0.0","name":"plugin","ident":"plugin@1.0.0","decision":"no","reason":"peer host supplied by a won't follow plugin to ."}
`

func TestAggregatorProcessReader(t *testing.T) {
	agg := NewAggregator()
	report, err := agg.ProcessReader(strings.NewReader(sampleTrace), "demo")
	require.NoError(t, err)

	assert.Equal(t, "demo", report.Collection)
	assert.Equal(t, 3, report.TotalEvents)
	assert.Equal(t, 1, report.DecisionCounts["yes"])
	assert.Equal(t, 2, report.DecisionCounts["no"])
	assert.Equal(t, 1, report.ReasonProfile["outranked-by-more-popular"])
	assert.Equal(t, 1, report.ReasonProfile["peer-conflict"])
	assert.Equal(t, 2, report.NamesBlocked["b"]+report.NamesBlocked["plugin"])
	assert.Contains(t, report.DiagnosticFlags, "peer_conflict")
}

func TestAggregatorSkipsBlankAndInvalidLines(t *testing.T) {
	agg := NewAggregator()
	report, err := agg.ProcessReader(strings.NewReader("\n{not json}\n{\"root\":\".\",\"decision\":\"yes\"}\n"), "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalEvents)
}

func TestPerRootAggregatorGroupsByRoot(t *testing.T) {
	trace := `
{"root":"a","name":"x","decision":"yes"}
{"root":"b","name":"y","decision":"no","reason":"name y is won by y@1.0.0"}
`
	agg := NewPerRootAggregator()
	report, err := agg.ProcessReader(strings.NewReader(trace), "demo")
	require.NoError(t, err)

	assert.Equal(t, 2, report.CountRoots)
	require.Contains(t, report.PerRoot, "a")
	require.Contains(t, report.PerRoot, "b")
	assert.Equal(t, 1, report.PerRoot["a"].DecisionCounts["yes"])
	assert.Equal(t, 1, report.PerRoot["b"].NamesBlocked["y"])
}

func TestDedupRemovesUnchangedRoots(t *testing.T) {
	baseline := &PerRootReport{
		Collection: "before",
		PerRoot: map[string]*RootSummary{
			"a": {DecisionCounts: map[string]int{"yes": 3}, ReasonProfile: map[string]int{}, NamesBlocked: map[string]int{}},
		},
	}
	target := &PerRootReport{
		Collection: "after",
		PerRoot: map[string]*RootSummary{
			"a": {DecisionCounts: map[string]int{"yes": 3}, ReasonProfile: map[string]int{}, NamesBlocked: map[string]int{}},
			"b": {DecisionCounts: map[string]int{"no": 1}, ReasonProfile: map[string]int{}, NamesBlocked: map[string]int{"z": 1}},
		},
	}

	deduped := DedupPerRoot(target, baseline)
	assert.Equal(t, "before", deduped.BaselineSource)
	assert.Equal(t, 1, deduped.CountRoots)
	assert.Contains(t, deduped.PerRoot, "b")
	assert.NotContains(t, deduped.PerRoot, "a")
	assert.Equal(t, 1, deduped.RemovedRoots)
}

func TestDedupFlatReportKeepsOnlyNewFindings(t *testing.T) {
	baseline := &Report{
		Collection:     "before",
		DecisionCounts: map[string]int{"yes": 3, "no": 1},
		ReasonProfile:  map[string]int{"name b is won by b@1.0.0": 1},
		NamesBlocked:   map[string]int{"b": 1},
	}
	target := &Report{
		Collection:     "after",
		DecisionCounts: map[string]int{"yes": 3, "no": 2},
		ReasonProfile:  map[string]int{"name b is won by b@1.0.0": 1, "peer host supplied by a won't follow plugin to .": 1},
		NamesBlocked:   map[string]int{"b": 1, "plugin": 1},
	}

	deduped := Dedup(target, baseline)
	assert.Equal(t, "before", deduped.BaselineSource)
	assert.NotContains(t, deduped.DecisionCounts, "yes")
	assert.Equal(t, 1, deduped.DecisionCounts["no"])
	assert.NotContains(t, deduped.ReasonProfile, "name b is won by b@1.0.0")
	assert.Contains(t, deduped.ReasonProfile, "peer host supplied by a won't follow plugin to .")
	assert.NotContains(t, deduped.NamesBlocked, "b")
	assert.Contains(t, deduped.NamesBlocked, "plugin")
}
