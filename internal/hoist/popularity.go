package hoist

import "sort"

// popKey identifies one candidate ident for a given package name. Using a
// struct instead of a concatenated "name@ident" string sidesteps the
// scoped-package ambiguity of splitting on the first '@' when the name
// itself already contains one (e.g. "@scope/pkg").
type popKey struct {
	name  string
	ident string
}

// buildPopularityMap counts, for every (name, ident) pair reachable from
// root, how many distinct parents currently depend on it. order lists the
// keys in a single deterministic depth-first walk so callers that need to
// break ties by "who was seen first" don't have to range a map.
func buildPopularityMap(root *workNode) (counts map[popKey]int, order []popKey) {
	parents := make(map[popKey]map[string]bool)
	seenOrder := make(map[popKey]bool)
	visited := make(map[*workNode]bool)

	var walk func(node *workNode)
	walk = func(node *workNode) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, name := range sortedDependencyNames(node) {
			dep := node.dependencies[name]
			key := popKey{name: dep.name, ident: dep.ident}
			set, ok := parents[key]
			if !ok {
				set = make(map[string]bool)
				parents[key] = set
			}
			set[node.locator] = true
			if !seenOrder[key] {
				seenOrder[key] = true
				order = append(order, key)
			}
			walk(dep)
		}
	}
	walk(root)

	counts = make(map[popKey]int, len(parents))
	for key, set := range parents {
		counts[key] = len(set)
	}
	return counts, order
}

// headIdents collapses an ident candidate list map into the single ident
// each name currently resolves to (the head of its list).
func headIdents(identMap map[string][]string) map[string]string {
	heads := make(map[string]string, len(identMap))
	for name, idents := range identMap {
		if len(idents) > 0 {
			heads[name] = idents[0]
		}
	}
	return heads
}

func sortedIdentMapNames(identMap map[string][]string) []string {
	names := make([]string, 0, len(identMap))
	for name := range identMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
