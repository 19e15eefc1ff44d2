// Package aggregate implements streaming prefix-usage aggregation.
//
// A Tree consumes object records one at a time and maintains a depth-bounded
// prefix tree of running statistics: byte totals, object counts, modification
// time ranges, and optional per-tier breakdowns. Memory grows with the number
// of distinct prefix groups up to the configured depth, never with the number
// of objects ingested.
//
// The tree is built in a single pass and read via Snapshot afterwards. Ingest
// calls must not be interleaved from multiple goroutines; for parallel scans,
// build one tree per shard and combine them with Merge.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/3leaps/s3du/pkg/tier"
)

// Record is one listed object as consumed by Tree.Ingest.
type Record struct {
	// Key is the full object key, delimiter-segmented.
	Key string

	// Size is the object size in bytes. Must be non-negative.
	Size int64

	// LastModified is the object's last-modified timestamp. Must be non-zero.
	LastModified time.Time

	// StorageClass is the provider storage-class label. Optional; absent or
	// unrecognized classes are grouped under the unknown tier.
	StorageClass string
}

// UnboundedDepth disables the depth limit: the tree holds one node per unique
// prefix chain, so memory scales with the number of distinct prefixes in the
// key space. Callers requesting it accept that cost.
const UnboundedDepth = -1

// Config fixes the grouping rules for one aggregation pass.
// Changing any field requires a fresh tree.
type Config struct {
	// Delimiter separates path segments. Required. Default is "/".
	Delimiter string

	// MaxDepth bounds the tree depth. 0 keeps whole-root totals only;
	// UnboundedDepth removes the limit. MaxDepth bounds memory, not listing
	// cost: a scan may still stream arbitrarily many objects per group.
	MaxDepth int

	// TierBreakdown enables per-node storage-tier sub-aggregation.
	TierBreakdown bool

	// Root is the listing prefix the root node represents. It is prepended
	// to reconstructed prefixes in Snapshot and should either be empty or
	// end with Delimiter. Keys passed to Ingest are relative to Root.
	Root string
}

// DefaultDelimiter is the conventional object-store path separator.
const DefaultDelimiter = "/"

// Node is one prefix group's running statistics.
//
// TotalBytes and ObjectCount cover every object rooted at the node: direct
// absorptions plus everything beneath its children. Oldest and Newest are
// zero while ObjectCount is zero.
type Node struct {
	// Label is the path segment this node represents. Empty for the root.
	Label string

	// Depth is the node's distance from the root.
	Depth int

	TotalBytes  int64
	ObjectCount int64
	Oldest      time.Time
	Newest      time.Time

	// Tiers holds per-tier totals. Nil unless the tree was built with
	// TierBreakdown enabled.
	Tiers map[tier.Tier]*tier.Totals

	children map[string]*Node
}

// Child returns the child node with the given label, if present.
func (n *Node) Child(label string) (*Node, bool) {
	c, ok := n.children[label]
	return c, ok
}

// ChildLabels returns the node's child labels in ascending order.
func (n *Node) ChildLabels() []string {
	if len(n.children) == 0 {
		return nil
	}
	labels := make([]string, 0, len(n.children))
	for l := range n.children {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Tree owns the root node plus the configuration fixed at construction.
type Tree struct {
	cfg  Config
	root *Node
}

// NewTree creates an empty aggregation tree.
//
// Returns a *ConfigError if the delimiter is empty or MaxDepth is negative
// (other than UnboundedDepth). The root node exists immediately, with all
// statistics zero.
func NewTree(cfg Config) (*Tree, error) {
	if cfg.Delimiter == "" {
		return nil, &ConfigError{Field: "Delimiter", Message: "delimiter must not be empty"}
	}
	if cfg.MaxDepth < UnboundedDepth {
		return nil, &ConfigError{Field: "MaxDepth", Message: "max depth must be non-negative or UnboundedDepth"}
	}
	return &Tree{
		cfg:  cfg,
		root: newNode("", 0, cfg.TierBreakdown),
	}, nil
}

// Config returns the tree's configuration.
func (t *Tree) Config() Config {
	return t.cfg
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Ingest folds one record into the tree.
//
// The record's key is split on the delimiter and the tree is walked from the
// root, creating child groups until the depth limit is reached; the record's
// size, count, and timestamps are added to every node on the walk, root
// included, so ancestors always reflect the sum of everything beneath them.
//
// A key ending in the delimiter (a directory marker) is absorbed into its
// parent group's own totals and never creates a deeper node. An empty key is
// folded entirely into the root.
//
// Returns a *MalformedRecordError for a negative size or zero timestamp; the
// tree is left exactly as it was before the call.
func (t *Tree) Ingest(rec Record) error {
	if rec.Size < 0 {
		return &MalformedRecordError{Key: rec.Key, Reason: "negative size"}
	}
	if rec.LastModified.IsZero() {
		return &MalformedRecordError{Key: rec.Key, Reason: "missing last-modified timestamp"}
	}

	var tr tier.Tier
	if t.cfg.TierBreakdown {
		tr = tier.FromStorageClass(rec.StorageClass)
	}

	node := t.root
	node.absorb(rec, tr, t.cfg.TierBreakdown)

	for _, segment := range t.splitKey(rec.Key) {
		if t.cfg.MaxDepth != UnboundedDepth && node.Depth >= t.cfg.MaxDepth {
			break
		}
		child, ok := node.children[segment]
		if !ok {
			child = newNode(segment, node.Depth+1, t.cfg.TierBreakdown)
			node.children[segment] = child
		}
		node = child
		node.absorb(rec, tr, t.cfg.TierBreakdown)
	}

	return nil
}

// splitKey splits a key into delimiter segments. A single trailing empty
// segment (key ends in the delimiter) is dropped so directory markers land
// in their parent group; interior empty segments are kept, since "a//b"
// names a genuine group under "a".
func (t *Tree) splitKey(key string) []string {
	if key == "" {
		return nil
	}
	segments := strings.Split(key, t.cfg.Delimiter)
	if last := len(segments) - 1; segments[last] == "" {
		segments = segments[:last]
	}
	return segments
}

func newNode(label string, depth int, tiers bool) *Node {
	n := &Node{
		Label:    label,
		Depth:    depth,
		children: make(map[string]*Node),
	}
	if tiers {
		n.Tiers = make(map[tier.Tier]*tier.Totals)
	}
	return n
}

// absorb adds one record's metadata to the node's running statistics.
func (n *Node) absorb(rec Record, tr tier.Tier, tiers bool) {
	n.TotalBytes += rec.Size
	n.ObjectCount++
	if n.Oldest.IsZero() || rec.LastModified.Before(n.Oldest) {
		n.Oldest = rec.LastModified
	}
	if rec.LastModified.After(n.Newest) {
		n.Newest = rec.LastModified
	}
	if tiers {
		tot, ok := n.Tiers[tr]
		if !ok {
			tot = &tier.Totals{}
			n.Tiers[tr] = tot
		}
		tot.Add(rec.Size)
	}
}
