package aggregate

import "github.com/3leaps/s3du/pkg/tier"

// Merge folds another tree built with an identical configuration into this
// one: totals and counts sum, timestamp ranges widen, tier totals union with
// summation, and missing subtrees are adopted node by node.
//
// The operation is associative and commutative, so trees built over disjoint
// record sets in any order merge to the same result as a single sequential
// pass over the concatenated records. This is what makes sharded parallel
// scans safe: each shard aggregates independently and the shards are merged
// afterwards.
//
// Returns a *ConfigError if the two trees' configurations differ. The other
// tree is not modified.
func (t *Tree) Merge(other *Tree) error {
	if other == nil {
		return nil
	}
	if t.cfg != other.cfg {
		return &ConfigError{Field: "Config", Message: "merge requires identical tree configurations"}
	}
	mergeNode(t.root, other.root, t.cfg.TierBreakdown)
	return nil
}

func mergeNode(dst, src *Node, tiers bool) {
	dst.TotalBytes += src.TotalBytes
	dst.ObjectCount += src.ObjectCount

	if !src.Oldest.IsZero() && (dst.Oldest.IsZero() || src.Oldest.Before(dst.Oldest)) {
		dst.Oldest = src.Oldest
	}
	if src.Newest.After(dst.Newest) {
		dst.Newest = src.Newest
	}

	if tiers {
		for tr, tot := range src.Tiers {
			d, ok := dst.Tiers[tr]
			if !ok {
				d = &tier.Totals{}
				dst.Tiers[tr] = d
			}
			d.Merge(*tot)
		}
	}

	for label, child := range src.children {
		d, ok := dst.children[label]
		if !ok {
			d = newNode(label, child.Depth, tiers)
			dst.children[label] = d
		}
		mergeNode(d, child, tiers)
	}
}
