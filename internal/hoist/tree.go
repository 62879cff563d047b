// Package hoist implements the node_modules hoisting algorithm: given a tree
// of resolved package dependencies, it rewrites it into an equivalent but
// flatter tree by lifting nodes as close to the root as ident collisions and
// peer-dependency promises allow.
package hoist

import "github.com/hackeurope/nodehoist/pkg/models"

// workNode is the mutable, in-progress counterpart of models.InputNode. The
// importer builds one workNode per distinct InputNode reachable from the
// root; the executor then mutates dependencies in place, cloning a node the
// first time two different parents need to shape it differently.
type workNode struct {
	name      string
	locator   string
	ident     string
	peerNames map[string]bool

	references map[string]bool

	// dependencies is the node's current view of the world; it starts as a
	// copy of originalDependencies and is mutated as hoisting proceeds.
	dependencies map[string]*workNode

	// originalDependencies never changes after import. The self-check walks
	// it to verify every promise the input tree made is still kept.
	originalDependencies map[string]*workNode

	// hoistedDependencies records names that used to live directly on this
	// node but have since been lifted to an ancestor, so nothing tries to
	// resettle the same name here.
	hoistedDependencies map[string]*workNode

	// reasons holds a human-readable explanation for the most recent name
	// that failed to hoist out of this node, keyed by that name.
	reasons map[string]string

	// decoupled is true once this node has its own private maps that no
	// other parent shares. False for nodes still aliased across parents.
	decoupled bool
}

func newWorkNode(in *models.InputNode) *workNode {
	peers := make(map[string]bool, len(in.PeerNames))
	for name := range in.PeerNames {
		peers[name] = true
	}
	return &workNode{
		name:                 in.Name,
		locator:              in.Locator(),
		ident:                in.Ident(),
		peerNames:            peers,
		references:           map[string]bool{in.Reference: true},
		dependencies:         make(map[string]*workNode, len(in.Dependencies)),
		originalDependencies: make(map[string]*workNode, len(in.Dependencies)),
		hoistedDependencies:  make(map[string]*workNode),
		reasons:              make(map[string]string),
		decoupled:            true,
	}
}

// cloneTree imports an InputNode graph into a fresh workNode graph. Nodes
// reachable more than once are imported once and shared; the whole reachable
// subgraph below a shared node is marked coupled so the executor knows it
// must clone before mutating any part of it.
func cloneTree(root *models.InputNode) *workNode {
	seen := make(map[*models.InputNode]*workNode)
	out := importNode(root, seen)
	return out
}

func importNode(in *models.InputNode, seen map[*models.InputNode]*workNode) *workNode {
	if existing, ok := seen[in]; ok {
		markCoupled(existing, make(map[*workNode]bool))
		return existing
	}
	node := newWorkNode(in)
	seen[in] = node
	for _, dep := range in.Dependencies {
		child := importNode(dep, seen)
		node.dependencies[dep.Name] = child
		node.originalDependencies[dep.Name] = child
	}
	return node
}

// markCoupled flags node and everything reachable from it through non-peer
// edges as shared, so a
// later write anywhere in the subgraph clones first rather than mutating a
// node some other parent still relies on.
func markCoupled(node *workNode, visited map[*workNode]bool) {
	if visited[node] {
		return
	}
	visited[node] = true
	node.decoupled = false
	for name, dep := range node.dependencies {
		if node.peerNames[name] {
			continue
		}
		markCoupled(dep, visited)
	}
}

func copyStringSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyNodeMap(m map[string]*workNode) map[string]*workNode {
	out := make(map[string]*workNode, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyReasonMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone produces a private copy of node whose maps no caller else holds.
// originalDependencies is shared by reference (it is read-only for the rest
// of the run, only ever consulted by the self-check).
func (n *workNode) clone() *workNode {
	return &workNode{
		name:                 n.name,
		locator:              n.locator,
		ident:                n.ident,
		peerNames:            copyStringSet(n.peerNames),
		references:           copyStringSet(n.references),
		dependencies:         copyNodeMap(n.dependencies),
		originalDependencies: n.originalDependencies,
		hoistedDependencies:  copyNodeMap(n.hoistedDependencies),
		reasons:              copyReasonMap(n.reasons),
		decoupled:            true,
	}
}

// sortedDependencyNames returns the keys of node.dependencies in a fixed,
// deterministic order so repeated runs over the same tree behave identically
// regardless of Go's randomized map iteration.
func sortedDependencyNames(node *workNode) []string {
	names := make([]string, 0, len(node.dependencies))
	for name := range node.dependencies {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

func sortedSet(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}
