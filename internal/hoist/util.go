package hoist

import "sort"

func sortStrings(s []string) {
	sort.Strings(s)
}

// decoupleGraphNode returns a private copy of child that parent's edge to it
// now points at, so mutating the copy never affects any other parent still
// sharing the original. If child is already private, it is returned as-is.
func decoupleGraphNode(parent, child *workNode) *workNode {
	if child.decoupled {
		return child
	}
	clone := child.clone()
	for name, dep := range parent.dependencies {
		if dep == child {
			parent.dependencies[name] = clone
		}
	}
	// A self-dependency (a node depending on an ident equal to its own)
	// must keep pointing at the clone, not the pre-clone original.
	if self, ok := clone.dependencies[clone.name]; ok && self.ident == clone.ident {
		clone.dependencies[clone.name] = clone
	}
	return clone
}

func onChain(ancestors []*workNode, parent *workNode, locator string) bool {
	if parent.locator == locator {
		return true
	}
	for _, a := range ancestors {
		if a.locator == locator {
			return true
		}
	}
	return false
}
