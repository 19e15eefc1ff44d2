package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapRow struct {
	prefix string
	bytes  int64
	count  int64
}

func collect(tree *Tree) []snapRow {
	var rows []snapRow
	for prefix, node := range tree.Snapshot() {
		rows = append(rows, snapRow{prefix: prefix, bytes: node.TotalBytes, count: node.ObjectCount})
	}
	return rows
}

func TestSnapshotPreOrderLexicographic(t *testing.T) {
	tree := newTestTree(t, Config{Delimiter: "/", MaxDepth: 2})
	ingestAll(t, tree, []Record{
		rec("b/z", 1, 10),
		rec("b/a", 2, 11),
		rec("a/m/deep", 3, 12),
		rec("top", 4, 13),
	})

	rows := collect(tree)
	prefixes := make([]string, len(rows))
	for i, r := range rows {
		prefixes[i] = r.prefix
	}

	assert.Equal(t, []string{"", "a", "a/m", "b", "b/a", "b/z", "top"}, prefixes)
}

func TestSnapshotRootPrefix(t *testing.T) {
	tree := newTestTree(t, Config{Delimiter: "/", MaxDepth: 2, Root: "media/"})
	ingestAll(t, tree, []Record{
		rec("img/a.png", 10, 10),
		rec("readme", 1, 11),
	})

	rows := collect(tree)
	require.Len(t, rows, 4)
	assert.Equal(t, "media/", rows[0].prefix)
	assert.Equal(t, "media/img", rows[1].prefix)
	assert.Equal(t, "media/img/a.png", rows[2].prefix)
	assert.Equal(t, "media/readme", rows[3].prefix)
}

func TestSnapshotIdempotent(t *testing.T) {
	tree := newTestTree(t, Config{Delimiter: "/", MaxDepth: 1})
	ingestAll(t, tree, sampleRecords())

	first := collect(tree)
	second := collect(tree)
	assert.Equal(t, first, second)
}

func TestSnapshotEarlyStop(t *testing.T) {
	tree := newTestTree(t, Config{Delimiter: "/", MaxDepth: 1})
	ingestAll(t, tree, sampleRecords())

	var seen int
	for range tree.Snapshot() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	// Restartable: a fresh traversal still yields everything.
	assert.Len(t, collect(tree), 3)
}

func TestSnapshotScenarioDepthOne(t *testing.T) {
	tree := newTestTree(t, Config{Delimiter: "/", MaxDepth: 1})
	ingestAll(t, tree, sampleRecords())

	rows := collect(tree)
	require.Equal(t, []snapRow{
		{prefix: "", bytes: 229366, count: 3},
		{prefix: "dist", bytes: 228104, count: 2},
		{prefix: "index.html", bytes: 1262, count: 1},
	}, rows)
}
