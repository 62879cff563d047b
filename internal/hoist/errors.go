package hoist

import "fmt"

// PromiseKind distinguishes the two correctness contracts hoisting must
// preserve.
type PromiseKind int

const (
	// BrokenRequirePromise means some node's direct import of a name no
	// longer resolves to the ident the input tree declared for it.
	BrokenRequirePromise PromiseKind = iota
	// BrokenPeerPromise means a node's view of one of its peer names now
	// disagrees with its parent's view of that same name.
	BrokenPeerPromise
)

func (k PromiseKind) String() string {
	if k == BrokenPeerPromise {
		return "broken peer promise"
	}
	return "broken require promise"
}

// BrokenPromise describes one violation the self-check found.
type BrokenPromise struct {
	Kind        PromiseKind
	NodeLocator string
	Name        string
	Wanted      string
	Got         string
}

func (b BrokenPromise) String() string {
	got := b.Got
	if got == "" {
		got = "<missing>"
	}
	return fmt.Sprintf("%s at %s: %s wants %s, resolves to %s", b.Kind, b.NodeLocator, b.Name, b.Wanted, got)
}

// SelfCheckError is returned when Options.Check (or a debug level of at
// least 1) finds the hoisted tree no longer keeps every promise the input
// tree made.
type SelfCheckError struct {
	Broken   []BrokenPromise
	TreeDump string
}

func (e *SelfCheckError) Error() string {
	if len(e.Broken) == 1 {
		return fmt.Sprintf("hoist: %s", e.Broken[0])
	}
	return fmt.Sprintf("hoist: %d broken promises, first: %s", len(e.Broken), e.Broken[0])
}
