package hoist

import (
	"io"
	"os"
	"strconv"

	"github.com/hackeurope/nodehoist/pkg/models"
)

// Options configures a single Hoist call.
type Options struct {
	// Check re-runs the self-check after every executor pass instead of
	// only once at the end. Expensive; intended for debugging a planner
	// change against a known-good fixture.
	Check bool

	// DebugLevel mirrors the NM_DEBUG_LEVEL environment variable: 0 runs
	// with no extra verification, >=1 runs the self-check once against the
	// final tree, >=9 implies Check. Leave DebugLevelSet false to fall back
	// to NM_DEBUG_LEVEL (or no verification if that is unset too).
	DebugLevel    int
	DebugLevelSet bool

	// Trace, if set, receives one JSON line per planner decision as
	// hoisting proceeds. internal/aggregate consumes exactly this shape.
	Trace io.Writer
}

func (o Options) debugLevel() int {
	if o.DebugLevelSet {
		return o.DebugLevel
	}
	if v, ok := os.LookupEnv("NM_DEBUG_LEVEL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return -1
}

// Hoist rewrites input into an equivalent, flatter tree. The input is never
// mutated; a fresh work tree is imported before any hoisting begins.
func Hoist(input *models.InputNode, opts Options) (*models.OutputNode, error) {
	if input == nil {
		return nil, nil
	}

	debugLevel := opts.debugLevel()
	tree := cloneTree(input)

	ctx := &hoistContext{
		root:  tree,
		trace: opts.Trace,
		check: opts.Check || debugLevel >= 9,
	}

	pathSet := map[string]bool{tree.locator: true}
	if err := hoistTo(ctx, tree, pathSet, map[*workNode]bool{}); err != nil {
		return nil, err
	}

	if debugLevel >= 1 {
		if err := selfCheck(tree); err != nil {
			return nil, err
		}
	}

	return shrinkTree(tree), nil
}
