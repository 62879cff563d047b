package hoist

import (
	"sort"

	"github.com/hackeurope/nodehoist/pkg/models"
)

// shrinkTree exports the final workNode graph into the public OutputNode
// shape. Peer edges are not exported. A workNode reached from more than one
// parent becomes a single shared OutputNode, so the result can be
// structurally cyclic; the seen map is populated before recursing into a
// node's own dependencies so a dependency edge pointing back at an ancestor
// still under construction resolves to that same in-progress OutputNode
// instead of looping forever.
func shrinkTree(root *workNode) *models.OutputNode {
	seen := make(map[*workNode]*models.OutputNode)
	return exportNode(root, seen)
}

func exportNode(node *workNode, seen map[*workNode]*models.OutputNode) *models.OutputNode {
	if out, ok := seen[node]; ok {
		return out
	}

	identName, _ := models.SplitLocator(node.locator)

	out := &models.OutputNode{
		Name:       node.name,
		IdentName:  identName,
		References: sortedReferences(node),
	}
	seen[node] = out

	for _, name := range sortedDependencyNames(node) {
		if node.peerNames[name] {
			continue
		}
		dep := node.dependencies[name]
		out.Dependencies = append(out.Dependencies, exportNode(dep, seen))
	}
	return out
}

func sortedReferences(node *workNode) []string {
	refs := make([]string, 0, len(node.references))
	for ref := range node.references {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
