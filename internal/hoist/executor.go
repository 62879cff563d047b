package hoist

// hoistTo runs the fixed-point loop for a single hoist root R: build the
// popularity map and ident map once, then repeatedly run a hoisting pass and
// shift any ident that failed to land at R off the front of its candidate
// list, until a full pass changes nothing. It then recurses into R's own
// remaining children, each becoming the next hoist root in turn.
func hoistTo(ctx *hoistContext, root *workNode, pathSet map[string]bool, visitedRoots map[*workNode]bool) error {
	if visitedRoots[root] {
		return nil
	}
	visitedRoots[root] = true

	counts, order := buildPopularityMap(root)
	identMap := getHoistIdentMap(root, counts, order)

	for {
		hoistIdents := headIdents(identMap)
		if err := hoistGraph(ctx, root, hoistIdents); err != nil {
			return err
		}
		if ctx.check {
			if err := selfCheck(ctx.root); err != nil {
				return err
			}
		}

		changed := false
		for _, name := range sortedIdentMapNames(identMap) {
			list := identMap[name]
			if len(list) <= 1 {
				continue
			}
			if _, hosted := root.dependencies[name]; hosted {
				continue
			}
			identMap[name] = list[1:]
			changed = true
		}
		if !changed {
			break
		}
	}

	for _, name := range sortedDependencyNames(root) {
		if root.peerNames[name] {
			continue
		}
		dep := root.dependencies[name]
		if pathSet[dep.locator] {
			continue
		}
		pathSet[dep.locator] = true
		err := hoistTo(ctx, dep, pathSet, visitedRoots)
		delete(pathSet, dep.locator)
		if err != nil {
			return err
		}
	}
	return nil
}

// hoistGraph performs one pass of lifting nodes from anywhere in root's
// subtree up to root, given a fixed hoistIdents assignment. It seeds a
// worklist with root's current direct (non-peer) children and, whenever a
// child successfully lands at root, adds root's newly-acquired dependencies
// back onto the worklist so their own descendants get a chance too.
func hoistGraph(ctx *hoistContext, root *workNode, hoistIdents map[string]string) error {
	var frontier []*workNode
	for _, name := range sortedDependencyNames(root) {
		if root.peerNames[name] {
			continue
		}
		frontier = append(frontier, root.dependencies[name])
	}

	for len(frontier) > 0 {
		var next []*workNode
		for _, child := range frontier {
			decoupled := decoupleGraphNode(root, child)
			produced, err := hoistNodeDependencies(ctx, root, []*workNode{root}, decoupled, hoistIdents)
			if err != nil {
				return err
			}
			next = append(next, produced...)
		}
		frontier = next
	}
	return nil
}

// hoistNodeDependencies classifies every non-peer dependency of parent
// (reached via root -> ancestors... -> parent), moves everything hoistable
// up onto root, and recurses into whatever remains blocked so deeper
// descendants still get a chance to reach root on a later pass or a later
// hoist root. It returns the nodes that newly landed on root, which the
// caller re-queues.
func hoistNodeDependencies(ctx *hoistContext, root *workNode, ancestors []*workNode, parent *workNode, hoistIdents map[string]string) ([]*workNode, error) {
	names := sortedRegularDependencyNames(parent)
	if len(names) == 0 {
		return nil, nil
	}

	childOf := make(map[string]*workNode, len(names))
	infos := make(map[*workNode]hoistInfo, len(names))
	batch := make([]*workNode, 0, len(names))

	for _, name := range names {
		child := parent.dependencies[name]
		childOf[name] = child
		info := classifyNode(root, parent, ancestors, child, hoistIdents)
		infos[child] = info
		batch = append(batch, child)
		emitTrace(ctx, root, parent, child, name, info.kind.String(), info.reason)
	}

	unhoistable := resolveCycles(batch, infos)

	for _, name := range names {
		child := childOf[name]
		if infos[child].kind == decisionDepends && !unhoistable[child] {
			emitTrace(ctx, root, parent, child, name, "cycle-yes", "")
		}
	}

	var newNodes []*workNode
	for _, name := range names {
		child := childOf[name]
		if unhoistable[child] {
			continue
		}

		delete(parent.dependencies, name)
		parent.hoistedDependencies[name] = child
		delete(parent.reasons, name)

		if existing, ok := root.dependencies[name]; ok {
			for ref := range child.references {
				existing.references[ref] = true
			}
			continue
		}
		if child.ident == root.ident {
			continue
		}
		root.dependencies[name] = child
		newNodes = append(newNodes, child)
	}

	for _, name := range names {
		child := childOf[name]
		if !unhoistable[child] {
			continue
		}
		if onChain(ancestors, parent, child.locator) {
			continue
		}

		parent.reasons[name] = infos[child].reason
		decoupledChild := decoupleGraphNode(parent, child)

		nextAncestors := make([]*workNode, 0, len(ancestors)+1)
		nextAncestors = append(nextAncestors, ancestors...)
		nextAncestors = append(nextAncestors, parent)

		produced, err := hoistNodeDependencies(ctx, root, nextAncestors, decoupledChild, hoistIdents)
		if err != nil {
			return nil, err
		}
		newNodes = append(newNodes, produced...)
	}

	return newNodes, nil
}
