package models

import "strings"

// InputNode is the immutable shape the hoisting engine consumes. Name is the
// alias a parent depends under; it may differ from IdentName when a package
// is imported under an alias.
type InputNode struct {
	Name         string            `json:"name"`
	IdentName    string            `json:"identName"`
	Reference    string            `json:"reference"`
	Dependencies []*InputNode      `json:"dependencies"`
	PeerNames    map[string]bool   `json:"peerNames,omitempty"`
}

// NewInputNode creates a leaf input node with no dependencies yet.
func NewInputNode(name, identName, reference string) *InputNode {
	return &InputNode{
		Name:      name,
		IdentName: identName,
		Reference: reference,
		PeerNames: make(map[string]bool),
	}
}

// AddDependency appends a dependency edge, optionally marking it as a peer.
func (n *InputNode) AddDependency(dep *InputNode, isPeer bool) {
	n.Dependencies = append(n.Dependencies, dep)
	if isPeer {
		if n.PeerNames == nil {
			n.PeerNames = make(map[string]bool)
		}
		n.PeerNames[dep.Name] = true
	}
}

// Locator returns the globally unique instance key "<identName>@<reference>".
func (n *InputNode) Locator() string {
	return Locator(n.IdentName, n.Reference)
}

// Ident returns the identity key with any virtual prefix stripped from the
// reference. Two nodes with equal Ident denote the same resolved package
// version even if wrapped under a different virtual segment.
func (n *InputNode) Ident() string {
	return Locator(n.IdentName, StripVirtual(n.Reference))
}

// Locator builds the raw "<identName>@<reference>" instance key.
func Locator(identName, reference string) string {
	return identName + "@" + reference
}

// StripVirtual removes a virtual prefix (anything up to and including the
// first '#') from a reference string. References without a virtual prefix
// are returned unchanged.
func StripVirtual(reference string) string {
	if idx := strings.IndexByte(reference, '#'); idx >= 0 {
		return reference[idx+1:]
	}
	return reference
}

// SplitLocator splits a locator/ident string into identName and reference,
// locating the first '@' after index 0 so scoped names ("@scope/pkg@1.0.0")
// split correctly.
func SplitLocator(locator string) (identName, reference string) {
	if locator == "" {
		return "", ""
	}
	at := strings.IndexByte(locator[1:], '@')
	if at < 0 {
		return locator, ""
	}
	at++ // account for the offset of locator[1:]
	return locator[:at], locator[at+1:]
}

// OutputNode is the immutable shape the hoisting engine produces. It may be
// structurally cyclic: a dependency edge can point back at an ancestor.
type OutputNode struct {
	Name         string        `json:"name"`
	IdentName    string        `json:"identName"`
	References   []string      `json:"references"`
	Dependencies []*OutputNode `json:"dependencies"`
}
