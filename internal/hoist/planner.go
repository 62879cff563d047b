package hoist

import "sort"

// getHoistIdentMap implements planner step A: it decides, for every package
// name reachable under root, the ordered list of idents that are allowed to
// claim that name at root, most preferred first. root's own name and the
// names of root's current non-peer children are pinned to their present
// ident; every other ident competes by popularity, ties broken by the
// deterministic DFS order buildPopularityMap already produced.
func getHoistIdentMap(root *workNode, counts map[popKey]int, order []popKey) map[string][]string {
	identMap := make(map[string][]string)
	pinned := make(map[string]bool)

	pin := func(name, ident string) {
		identMap[name] = []string{ident}
		pinned[name] = true
	}

	pin(root.name, root.ident)
	for _, name := range sortedDependencyNames(root) {
		if root.peerNames[name] {
			continue
		}
		pin(name, root.dependencies[name].ident)
	}

	ranked := make([]popKey, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})

	for _, key := range ranked {
		if pinned[key.name] {
			continue
		}
		if root.peerNames[key.name] {
			continue
		}
		already := false
		for _, ident := range identMap[key.name] {
			if ident == key.ident {
				already = true
				break
			}
		}
		if !already {
			identMap[key.name] = append(identMap[key.name], key.ident)
		}
	}

	return identMap
}

type decisionKind int

const (
	decisionYes decisionKind = iota
	decisionNo
	decisionDepends
)

type hoistInfo struct {
	kind      decisionKind
	reason    string
	dependsOn []*workNode
}

// classifyNode implements planner step B for one candidate node reached via
// root -> ancestors... -> parent -> node. ancestors holds every node from
// root (index 0) up to but not including parent.
func classifyNode(root, parent *workNode, ancestors []*workNode, node *workNode, hoistIdents map[string]string) hoistInfo {
	if node.ident == parent.ident {
		return hoistInfo{kind: decisionNo, reason: "would self-reference " + parent.name}
	}

	if want, ok := hoistIdents[node.name]; ok && want != node.ident {
		return hoistInfo{kind: decisionNo, reason: "name " + node.name + " is won by " + want}
	}

	if existing, ok := root.hoistedDependencies[node.name]; ok && existing.ident != node.ident {
		return hoistInfo{kind: decisionNo, reason: node.name + " already forwarded above " + root.name + " as " + existing.ident}
	}

	// Ancestors strictly between root and parent would be shadowed if node
	// settled at root under a different ident than the copy they already
	// hold locally.
	for _, anc := range ancestors[1:] {
		if shadow, ok := anc.dependencies[node.name]; ok && shadow.ident != node.ident {
			return hoistInfo{kind: decisionNo, reason: node.name + " shadowed by " + shadow.ident + " at " + anc.name}
		}
	}

	var dependsOn []*workNode
	for _, peerName := range sortedSet(node.peerNames) {
		peerNode, ok := node.dependencies[peerName]
		if !ok || peerNode == nil {
			continue
		}

		if parentDep, ok := parent.dependencies[peerName]; ok && parentDep.ident == peerNode.ident {
			if parent != root {
				dependsOn = append(dependsOn, parentDep)
			}
			continue
		}

		for i := len(ancestors) - 1; i >= 0; i-- {
			anc := ancestors[i]
			ancDep, ok := anc.dependencies[peerName]
			if !ok {
				ancDep, ok = anc.hoistedDependencies[peerName]
			}
			if !ok || ancDep.ident != peerNode.ident {
				continue
			}
			if want, hasWant := hoistIdents[peerName]; !hasWant || want != peerNode.ident {
				return hoistInfo{kind: decisionNo, reason: "peer " + peerName + " supplied by " + anc.name + " won't follow " + node.name + " to " + root.name}
			}
			break
		}
	}

	if len(dependsOn) > 0 {
		return hoistInfo{kind: decisionDepends, dependsOn: dependsOn}
	}
	return hoistInfo{kind: decisionYes}
}

// resolveCycles implements planner step C over one sibling batch: every node
// classified NO poisons every node whose DEPENDS classification named it,
// transitively. Anything left over (YES, or DEPENDS on a mutually-surviving
// cycle) is hoistable.
func resolveCycles(batch []*workNode, infos map[*workNode]hoistInfo) map[*workNode]bool {
	dependants := make(map[string][]*workNode)
	for _, node := range batch {
		info := infos[node]
		if info.kind != decisionDepends {
			continue
		}
		for _, dep := range info.dependsOn {
			dependants[dep.name] = append(dependants[dep.name], node)
		}
	}

	unhoistable := make(map[*workNode]bool)
	var worklist []*workNode
	for _, node := range batch {
		if infos[node].kind == decisionNo {
			unhoistable[node] = true
			worklist = append(worklist, node)
		}
	}

	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]
		for _, dependent := range dependants[cur.name] {
			if !unhoistable[dependent] {
				unhoistable[dependent] = true
				worklist = append(worklist, dependent)
			}
		}
	}

	return unhoistable
}
