package hoist

// selfCheck walks the fully-hoisted tree and verifies invariants I1 and I2:
// every original dependency still resolves to the ident it originally
// pointed at (the require promise), and every peer name a node declares
// resolves the same way its parent sees it (the peer promise). It walks
// every edge, not just every distinct node, since a shared node's promises
// can only be verified in the context of the path that reaches it.
func selfCheck(root *workNode) error {
	var broken []BrokenPromise

	var walk func(chain []*workNode)
	walk = func(chain []*workNode) {
		node := chain[len(chain)-1]

		origNames := make([]string, 0, len(node.originalDependencies))
		for name := range node.originalDependencies {
			origNames = append(origNames, name)
		}
		sortStrings(origNames)

		for _, name := range origNames {
			origDep := node.originalDependencies[name]

			if node.peerNames[name] {
				if len(chain) < 2 {
					continue
				}
				got := resolveInChain(chain, name)
				want := resolveInChain(chain[:len(chain)-1], name)
				gotIdent, wantIdent := identOf(got), identOf(want)
				if gotIdent != wantIdent {
					broken = append(broken, BrokenPromise{
						Kind:        BrokenPeerPromise,
						NodeLocator: node.locator,
						Name:        name,
						Wanted:      wantIdent,
						Got:         gotIdent,
					})
				}
				continue
			}

			got := resolveInChain(chain, name)
			if identOf(got) != origDep.ident {
				broken = append(broken, BrokenPromise{
					Kind:        BrokenRequirePromise,
					NodeLocator: node.locator,
					Name:        name,
					Wanted:      origDep.ident,
					Got:         identOf(got),
				})
			}
		}

		for _, name := range sortedDependencyNames(node) {
			child := node.dependencies[name]
			if onChain(chain[:len(chain)-1], node, child.locator) {
				continue
			}
			nextChain := make([]*workNode, len(chain)+1)
			copy(nextChain, chain)
			nextChain[len(chain)] = child
			walk(nextChain)
		}
	}

	walk([]*workNode{root})

	if len(broken) == 0 {
		return nil
	}
	return &SelfCheckError{Broken: broken, TreeDump: dumpTree(root)}
}

func identOf(n *workNode) string {
	if n == nil {
		return ""
	}
	return n.ident
}

// resolveInChain resolves name as chain's last node sees it: its own
// dependencies first, then its ancestors' dependencies, nearest first.
func resolveInChain(chain []*workNode, name string) *workNode {
	for i := len(chain) - 1; i >= 0; i-- {
		if dep, ok := chain[i].dependencies[name]; ok {
			return dep
		}
	}
	return nil
}
