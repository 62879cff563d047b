package hoist

import (
	"fmt"
	"strings"
)

// dumpTree renders the current tree as indented locators, purely for error
// messages; its format carries no compatibility guarantee.
func dumpTree(root *workNode) string {
	var b strings.Builder
	visited := make(map[*workNode]bool)
	var walk func(node *workNode, depth int)
	walk = func(node *workNode, depth int) {
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), node.locator)
		if visited[node] {
			return
		}
		visited[node] = true
		for _, name := range sortedDependencyNames(node) {
			walk(node.dependencies[name], depth+1)
		}
	}
	walk(root, 0)
	return b.String()
}
