package rbtree

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/nexuscatalog/core"
)

func newMeta(t *testing.T, path string) *core.FileMetadata {
	t.Helper()
	return core.NewFileMetadata(path, int64(len(path)), time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))
}

func TestInsertSearchDelete(t *testing.T) {
	tree := New()
	keys := []string{"apple", "banana", "cherry", "date", "elderberry"}
	for _, k := range keys {
		tree.Insert(k, newMeta(t, k))
	}
	require.NoError(t, tree.CheckInvariants())
	require.Equal(t, 5, tree.Len())

	require.True(t, tree.Delete("cherry"))
	require.NoError(t, tree.CheckInvariants())
	assert.Equal(t, 4, tree.Len())

	_, found := tree.Search("cherry")
	assert.False(t, found)
	for _, k := range []string{"apple", "banana", "date", "elderberry"} {
		meta, found := tree.Search(k)
		require.True(t, found, "key %q must remain after unrelated delete", k)
		assert.Equal(t, k, meta.Path)
	}
}

func TestInsertOverwritesExistingKey(t *testing.T) {
	tree := New()
	tree.Insert("report.txt", newMeta(t, "old"))
	tree.Insert("report.txt", newMeta(t, "new"))

	require.Equal(t, 1, tree.Len(), "duplicate insert must not add a second entry")
	meta, found := tree.Search("report.txt")
	require.True(t, found)
	assert.Equal(t, "new", meta.Path)
	require.NoError(t, tree.CheckInvariants())
}

func TestDeleteMissingKey(t *testing.T) {
	tree := New()
	assert.False(t, tree.Delete("ghost"), "deleting from an empty tree reports not found")

	tree.Insert("real", newMeta(t, "real"))
	assert.False(t, tree.Delete("ghost"))
	assert.Equal(t, 1, tree.Len())
}

func TestSearchEmptyTree(t *testing.T) {
	tree := New()
	_, found := tree.Search("anything")
	assert.False(t, found)
	assert.Equal(t, 0, tree.Len())
	require.NoError(t, tree.CheckInvariants())
}

func TestItemsSorted(t *testing.T) {
	tree := New()
	keys := []string{"pear", "kiwi", "fig", "apricot", "mango", "lime"}
	for _, k := range keys {
		tree.Insert(k, newMeta(t, k))
	}

	items := tree.Items()
	require.Len(t, items, len(keys))
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for i, e := range items {
		assert.Equal(t, sorted[i], e.Key)
	}
}

func TestRangeScan(t *testing.T) {
	tree := New()
	var all []string
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("file_%03d", i)
		all = append(all, k)
		tree.Insert(k, newMeta(t, k))
	}

	tests := []struct {
		name       string
		start, end string
		expected   []string
	}{
		{"interior", "file_010", "file_020", all[10:21]},
		{"single", "file_042", "file_042", all[42:43]},
		{"full", "file_000", "file_099", all},
		{"beyond both ends", "a", "z", all},
		{"empty interval", "file_050x", "file_050y", nil},
		{"inverted bounds", "file_020", "file_010", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := tree.RangeScan(tt.start, tt.end)
			require.Len(t, entries, len(tt.expected))
			for i, e := range entries {
				assert.Equal(t, tt.expected[i], e.Key)
			}
		})
	}
}

func TestMatchSubstring(t *testing.T) {
	tree := New()
	for _, k := range []string{"Report_Q1.pdf", "report_q2.PDF", "summary.txt", "REPORTS/index.html", "notes.md"} {
		tree.Insert(k, newMeta(t, k))
	}

	matches := tree.MatchSubstring("report")
	require.Len(t, matches, 3, "matching is case-insensitive on both sides")

	matches = tree.MatchSubstring("PDF")
	require.Len(t, matches, 2)

	assert.Empty(t, tree.MatchSubstring("missing"))
	assert.Len(t, tree.MatchSubstring(""), 5, "empty substring matches everything")
}

func TestRandomizedOperationsKeepInvariants(t *testing.T) {
	sizes := []int{100, 1000, 10000}
	for _, size := range sizes {
		size := size
		t.Run(fmt.Sprintf("ops_%d", size), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(size)))
			tree := New()
			reference := make(map[string]string)

			checkEvery := size / 10
			if checkEvery == 0 {
				checkEvery = 1
			}
			for i := 0; i < size; i++ {
				key := fmt.Sprintf("key_%04d", rng.Intn(size/2))
				if rng.Intn(3) == 0 {
					deleted := tree.Delete(key)
					_, inRef := reference[key]
					require.Equal(t, inRef, deleted, "delete result must match reference at op %d", i)
					delete(reference, key)
				} else {
					path := fmt.Sprintf("path_%d", i)
					tree.Insert(key, newMeta(t, path))
					reference[key] = path
				}
				if i%checkEvery == 0 {
					require.NoError(t, tree.CheckInvariants(), "invariants broken at op %d", i)
				}
			}
			require.NoError(t, tree.CheckInvariants())
			require.Equal(t, len(reference), tree.Len())

			items := tree.Items()
			refKeys := make([]string, 0, len(reference))
			for k := range reference {
				refKeys = append(refKeys, k)
			}
			sort.Strings(refKeys)
			require.Len(t, items, len(refKeys))
			for i, e := range items {
				assert.Equal(t, refKeys[i], e.Key)
				assert.Equal(t, reference[e.Key], e.Meta.Path)
			}
		})
	}
}

func TestDeleteEveryKey(t *testing.T) {
	tree := New()
	rng := rand.New(rand.NewSource(5))
	keys := rng.Perm(500)
	for _, k := range keys {
		tree.Insert(fmt.Sprintf("key_%03d", k), newMeta(t, "x"))
	}
	require.Equal(t, 500, tree.Len())

	for i, k := range rng.Perm(500) {
		require.True(t, tree.Delete(fmt.Sprintf("key_%03d", k)))
		if i%50 == 0 {
			require.NoError(t, tree.CheckInvariants())
		}
	}
	assert.Equal(t, 0, tree.Len())
	require.NoError(t, tree.CheckInvariants())
	assert.Empty(t, tree.Items())
}

func TestHeightStaysLogarithmic(t *testing.T) {
	tree := New()
	n := 10000
	for i := 0; i < n; i++ {
		tree.Insert(fmt.Sprintf("key_%05d", i), newMeta(t, "x"))
	}
	// A valid Red-Black Tree is at most 2*lg(n+1) tall.
	assert.LessOrEqual(t, tree.Height(), 28, "sequential inserts must stay balanced")
	require.NoError(t, tree.CheckInvariants())
}

func TestVisualize(t *testing.T) {
	tree := New()
	assert.Equal(t, "(empty)\n", tree.Visualize())

	for _, k := range []string{"b", "a", "c"} {
		tree.Insert(k, newMeta(t, k))
	}
	dump := tree.Visualize()
	assert.Contains(t, dump, "b (BLACK)")
	assert.Contains(t, dump, "a (RED)")
	assert.Contains(t, dump, "c (RED)")
}
