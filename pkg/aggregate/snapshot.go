package aggregate

import "iter"

// Snapshot returns a lazy pre-order traversal of every node in the tree,
// paired with its reconstructed path prefix (ancestor labels joined by the
// delimiter, rooted at Config.Root).
//
// Children are visited in ascending label order and parents before children,
// so the ordering is total and deterministic. The traversal is a pure read:
// calling Snapshot repeatedly with no intervening Ingest yields identical
// sequences, and a partially-consumed sequence can simply be restarted.
func (t *Tree) Snapshot() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		t.visit(t.root, t.cfg.Root, yield)
	}
}

func (t *Tree) visit(n *Node, prefix string, yield func(string, *Node) bool) bool {
	if !yield(prefix, n) {
		return false
	}
	for _, label := range n.ChildLabels() {
		child := n.children[label]
		if !t.visit(child, t.childPrefix(n, prefix, label), yield) {
			return false
		}
	}
	return true
}

// childPrefix extends a parent's reconstructed prefix by one label. The root
// prefix is a listing prefix (empty or delimiter-terminated), so the first
// level concatenates directly; deeper levels insert the delimiter.
func (t *Tree) childPrefix(parent *Node, parentPrefix, label string) string {
	if parent.Depth == 0 {
		return parentPrefix + label
	}
	return parentPrefix + t.cfg.Delimiter + label
}
