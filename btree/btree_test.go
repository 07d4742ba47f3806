package btree

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
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

func newTree(t *testing.T, degree int) *BTree {
	t.Helper()
	tree, err := NewBTree(degree)
	require.NoError(t, err)
	return tree
}

func TestNewBTreeRejectsInvalidDegree(t *testing.T) {
	for _, degree := range []int{1, 0, -3} {
		_, err := NewBTree(degree)
		require.ErrorIs(t, err, core.ErrInvalidDegree, "degree %d must be rejected", degree)
	}

	tree, err := NewBTree(2)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Degree())
	assert.Equal(t, 0, tree.Len())
}

func TestInsertSearchDelete(t *testing.T) {
	tree := newTree(t, 2)
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
	tree := newTree(t, 2)
	// Fill the root so an upsert at this point would split if it were
	// treated as a fresh insert.
	for _, k := range []string{"a", "b", "c"} {
		tree.Insert(k, newMeta(t, k))
	}
	require.Equal(t, 1, tree.Height())

	tree.Insert("b", newMeta(t, "replaced"))
	require.Equal(t, 3, tree.Len(), "duplicate insert must not add a second entry")
	assert.Equal(t, 1, tree.Height(), "upsert must not split nodes")
	meta, found := tree.Search("b")
	require.True(t, found)
	assert.Equal(t, "replaced", meta.Path)
	require.NoError(t, tree.CheckInvariants())
}

func TestDeleteMissingKey(t *testing.T) {
	tree := newTree(t, 2)
	assert.False(t, tree.Delete("ghost"), "deleting from an empty tree reports not found")

	tree.Insert("real", newMeta(t, "real"))
	assert.False(t, tree.Delete("ghost"))
	assert.Equal(t, 1, tree.Len())
}

func TestSearchEmptyTree(t *testing.T) {
	tree := newTree(t, 3)
	_, found := tree.Search("anything")
	assert.False(t, found)
	assert.Equal(t, 0, tree.Len())
	require.NoError(t, tree.CheckInvariants())
}

func TestSequentialRangeScan(t *testing.T) {
	// Four-digit suffixes keep lexicographic order aligned with numeric
	// order, so the middle half plus both endpoints is exactly 5001 keys.
	tree := newTree(t, 5)
	for i := 0; i < 10000; i++ {
		tree.Insert(fmt.Sprintf("key_%04d", i), nil)
	}
	require.NoError(t, tree.CheckInvariants())
	require.Equal(t, 10000, tree.Len())
	assert.LessOrEqual(t, tree.Height(), 6)

	got := tree.RangeScan("key_2500", "key_7500")
	require.Len(t, got, 5001)
	assert.Equal(t, "key_2500", got[0].Key)
	assert.Equal(t, "key_7500", got[len(got)-1].Key)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].Key, got[i].Key, "range scan output must be strictly ascending")
	}
}

func TestRangeScanMatchesReference(t *testing.T) {
	// Unpadded suffixes interleave lexicographically (key_10 < key_2), so
	// the scan is checked against a filtered sort of the full key set.
	tree := newTree(t, 3)
	keys := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		k := fmt.Sprintf("key_%d", i)
		keys = append(keys, k)
		tree.Insert(k, nil)
	}
	sort.Strings(keys)

	bounds := []struct{ start, end string }{
		{"key_250", "key_750"},
		{"key_0", "key_9999"},
		{"key_13", "key_13"},
		{"a", "z"},
		{"key_999", "key_1"},
	}
	for _, b := range bounds {
		var want []string
		if b.start <= b.end {
			for _, k := range keys {
				if k >= b.start && k <= b.end {
					want = append(want, k)
				}
			}
		}
		got := tree.RangeScan(b.start, b.end)
		require.Len(t, got, len(want), "bounds [%s, %s]", b.start, b.end)
		for i, e := range got {
			assert.Equal(t, want[i], e.Key)
		}
	}
}

func TestRangeScanEdges(t *testing.T) {
	tree := newTree(t, 2)
	for _, k := range []string{"b", "d", "f", "h", "j", "l", "n"} {
		tree.Insert(k, newMeta(t, k))
	}

	cases := []struct {
		name       string
		start, end string
		want       []string
	}{
		{"interior", "d", "j", []string{"d", "f", "h", "j"}},
		{"single", "f", "f", []string{"f"}},
		{"full", "a", "z", []string{"b", "d", "f", "h", "j", "l", "n"}},
		{"beyond both ends", "", "zzz", []string{"b", "d", "f", "h", "j", "l", "n"}},
		{"between keys", "c", "c", nil},
		{"inverted", "j", "d", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tree.RangeScan(tc.start, tc.end)
			require.Len(t, got, len(tc.want))
			for i, e := range got {
				assert.Equal(t, tc.want[i], e.Key)
			}
		})
	}
}

func TestItemsSorted(t *testing.T) {
	tree := newTree(t, 2)
	keys := []string{"pear", "kiwi", "fig", "apricot", "mango", "lime", "plum", "grape"}
	for _, k := range keys {
		tree.Insert(k, newMeta(t, k))
	}

	items := tree.Items()
	require.Len(t, items, len(keys))
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for i, e := range items {
		assert.Equal(t, sorted[i], e.Key)
		require.NotNil(t, e.Meta)
	}
}

func TestMatchSubstring(t *testing.T) {
	tree := newTree(t, 2)
	for _, k := range []string{"annual_report.txt", "photo.png", "report_2024.pdf", "Report_Final.PDF", "notes.md"} {
		tree.Insert(k, newMeta(t, k))
	}

	got := tree.MatchSubstring("report")
	require.Len(t, got, 3)
	assert.Equal(t, "Report_Final.PDF", got[0].Key)
	assert.Equal(t, "annual_report.txt", got[1].Key)
	assert.Equal(t, "report_2024.pdf", got[2].Key)

	got = tree.MatchSubstring("pdf")
	require.Len(t, got, 2)

	got = tree.MatchSubstring("")
	assert.Len(t, got, 5, "empty pattern matches every key")

	got = tree.MatchSubstring("xlsx")
	assert.Empty(t, got)
}

func TestRandomizedInvariants(t *testing.T) {
	degrees := []int{2, 3, 5}
	sizes := []int{100, 1000, 5000}
	for i, degree := range degrees {
		size := sizes[i]
		t.Run(fmt.Sprintf("t%d_n%d", degree, size), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(degree*100000 + size)))
			tree := newTree(t, degree)
			ref := make(map[string]*core.FileMetadata)
			checkEvery := size / 10

			for op := 0; op < size; op++ {
				key := fmt.Sprintf("file_%06d", rng.Intn(size/2))
				if rng.Intn(3) == 0 {
					_, inRef := ref[key]
					assert.Equal(t, inRef, tree.Delete(key))
					delete(ref, key)
				} else {
					meta := newMeta(t, key)
					tree.Insert(key, meta)
					ref[key] = meta
				}
				if op%checkEvery == 0 {
					require.NoError(t, tree.CheckInvariants(), "after %d operations", op+1)
				}
			}

			require.NoError(t, tree.CheckInvariants())
			require.Equal(t, len(ref), tree.Len())

			wantKeys := make([]string, 0, len(ref))
			for k := range ref {
				wantKeys = append(wantKeys, k)
			}
			sort.Strings(wantKeys)
			items := tree.Items()
			require.Len(t, items, len(wantKeys))
			for i, e := range items {
				assert.Equal(t, wantKeys[i], e.Key)
				assert.Same(t, ref[e.Key], e.Meta)
			}
		})
	}
}

func TestDeleteEveryKey(t *testing.T) {
	const n = 500
	rng := rand.New(rand.NewSource(7))
	tree := newTree(t, 3)

	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("file_%04d", i)
	}
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, k := range keys {
		tree.Insert(k, newMeta(t, k))
	}
	require.Equal(t, n, tree.Len())

	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for i, k := range keys {
		require.True(t, tree.Delete(k), "key %q must be deletable", k)
		if i%50 == 0 {
			require.NoError(t, tree.CheckInvariants(), "after deleting %d keys", i+1)
		}
	}

	require.NoError(t, tree.CheckInvariants())
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 1, tree.Height(), "fully drained tree collapses back to a leaf root")
	assert.Empty(t, tree.Items())
}

func TestVisualize(t *testing.T) {
	tree := newTree(t, 2)
	assert.Equal(t, "(empty)\n", tree.Visualize())

	for _, k := range []string{"a", "b", "c", "d"} {
		tree.Insert(k, newMeta(t, k))
	}
	// Inserting d splits the full root [a b c] around b.
	out := tree.Visualize()
	assert.Equal(t, "[b]\n    [a]\n    [c d]\n", out)
	assert.Equal(t, 2, strings.Count(out, "    "), "children indent one level below the root")
}
