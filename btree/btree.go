// Package btree implements a B-Tree keyed by filename with the same
// metadata contract as rbtree. Its high fan-out makes ordered range
// scans over large catalogs cheaper than a binary tree's.
//
// The tree is not safe for concurrent use; callers that share an
// instance across goroutines must serialize access.
package btree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/INLOpen/nexuscatalog/core"
)

type node struct {
	keys     []string
	values   []*core.FileMetadata
	children []*node
	leaf     bool
}

// MinDegree is the smallest legal minimum degree. A degree-1 node could
// hold zero keys, which breaks the split and merge arithmetic.
const MinDegree = 2

// BTree is a B-Tree of minimum degree t: every node except the root
// holds between t-1 and 2t-1 keys, and all leaves sit at the same depth.
type BTree struct {
	root *node
	t    int
	size int
}

// NewBTree creates a B-Tree with minimum degree t. Degrees below
// MinDegree are rejected with core.ErrInvalidDegree.
func NewBTree(t int) (*BTree, error) {
	if t < MinDegree {
		return nil, fmt.Errorf("minimum degree %d: %w", t, core.ErrInvalidDegree)
	}
	return &BTree{root: &node{leaf: true}, t: t}, nil
}

// Degree returns the tree's configured minimum degree.
func (bt *BTree) Degree() int {
	return bt.t
}

// Len returns the number of keys in the tree.
func (bt *BTree) Len() int {
	return bt.size
}

// findKey returns the first index in n.keys whose key is >= key.
func findKey(n *node, key string) int {
	return sort.SearchStrings(n.keys, key)
}

// Search returns the metadata stored for key.
func (bt *BTree) Search(key string) (*core.FileMetadata, bool) {
	n, i, found := bt.lookup(bt.root, key)
	if !found {
		return nil, false
	}
	return n.values[i], true
}

func (bt *BTree) lookup(n *node, key string) (*node, int, bool) {
	for {
		i := findKey(n, key)
		if i < len(n.keys) && n.keys[i] == key {
			return n, i, true
		}
		if n.leaf {
			return nil, 0, false
		}
		n = n.children[i]
	}
}

// Insert adds key with its metadata. Inserting an existing key replaces
// the stored metadata without touching the tree structure.
func (bt *BTree) Insert(key string, meta *core.FileMetadata) {
	if n, i, found := bt.lookup(bt.root, key); found {
		n.values[i] = meta
		return
	}

	if len(bt.root.keys) == 2*bt.t-1 {
		newRoot := &node{children: []*node{bt.root}}
		bt.splitChild(newRoot, 0)
		bt.root = newRoot
	}
	bt.insertNonFull(bt.root, key, meta)
	bt.size++
}

// insertNonFull descends to a leaf, splitting any full child before
// stepping into it so the recursion never has to re-ascend.
func (bt *BTree) insertNonFull(n *node, key string, meta *core.FileMetadata) {
	i := findKey(n, key)
	if n.leaf {
		n.keys = append(n.keys, "")
		copy(n.keys[i+1:], n.keys[i:])
		n.keys[i] = key
		n.values = append(n.values, nil)
		copy(n.values[i+1:], n.values[i:])
		n.values[i] = meta
		return
	}
	if len(n.children[i].keys) == 2*bt.t-1 {
		bt.splitChild(n, i)
		if key > n.keys[i] {
			i++
		}
	}
	bt.insertNonFull(n.children[i], key, meta)
}

// splitChild divides the full child at index i into two t-1 key nodes
// and promotes the middle key into n.
func (bt *BTree) splitChild(n *node, i int) {
	t := bt.t
	child := n.children[i]
	sibling := &node{leaf: child.leaf}

	sibling.keys = append(sibling.keys, child.keys[t:]...)
	sibling.values = append(sibling.values, child.values[t:]...)
	if !child.leaf {
		sibling.children = append(sibling.children, child.children[t:]...)
		child.children = child.children[:t]
	}

	midKey, midVal := child.keys[t-1], child.values[t-1]
	child.keys = child.keys[:t-1]
	child.values = child.values[:t-1]

	n.children = append(n.children, nil)
	copy(n.children[i+2:], n.children[i+1:])
	n.children[i+1] = sibling

	n.keys = append(n.keys, "")
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = midKey
	n.values = append(n.values, nil)
	copy(n.values[i+1:], n.values[i:])
	n.values[i] = midVal
}

// Delete removes key and reports whether it was present. If the root
// empties, its only child becomes the new root and the tree shrinks.
func (bt *BTree) Delete(key string) bool {
	if _, _, found := bt.lookup(bt.root, key); !found {
		return false
	}
	bt.delete(bt.root, key)
	if len(bt.root.keys) == 0 && !bt.root.leaf {
		bt.root = bt.root.children[0]
	}
	bt.size--
	return true
}

func (bt *BTree) delete(n *node, key string) {
	i := findKey(n, key)
	if i < len(n.keys) && n.keys[i] == key {
		if n.leaf {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			n.values = append(n.values[:i], n.values[i+1:]...)
		} else {
			bt.deleteInternal(n, key, i)
		}
		return
	}

	// The key lives in the subtree under children[i]. Top up the child
	// before descending so removal can never underflow it.
	last := i == len(n.keys)
	if len(n.children[i].keys) < bt.t {
		bt.fill(n, i)
	}
	if last && i > len(n.keys) {
		bt.delete(n.children[i-1], key)
	} else {
		bt.delete(n.children[i], key)
	}
}

// deleteInternal removes n.keys[i] from an internal node by swapping in
// the predecessor or successor when a neighbor child can spare a key,
// merging otherwise.
func (bt *BTree) deleteInternal(n *node, key string, i int) {
	left, right := n.children[i], n.children[i+1]
	switch {
	case len(left.keys) >= bt.t:
		predKey, predVal := maxEntry(left)
		n.keys[i], n.values[i] = predKey, predVal
		bt.delete(left, predKey)
	case len(right.keys) >= bt.t:
		succKey, succVal := minEntry(right)
		n.keys[i], n.values[i] = succKey, succVal
		bt.delete(right, succKey)
	default:
		bt.merge(n, i)
		bt.delete(left, key)
	}
}

func maxEntry(n *node) (string, *core.FileMetadata) {
	for !n.leaf {
		n = n.children[len(n.children)-1]
	}
	return n.keys[len(n.keys)-1], n.values[len(n.values)-1]
}

func minEntry(n *node) (string, *core.FileMetadata) {
	for !n.leaf {
		n = n.children[0]
	}
	return n.keys[0], n.values[0]
}

// fill grows children[i] to at least t keys by borrowing from a sibling
// with surplus keys, or merging with one when both are minimal.
func (bt *BTree) fill(n *node, i int) {
	switch {
	case i > 0 && len(n.children[i-1].keys) >= bt.t:
		bt.borrowFromPrev(n, i)
	case i < len(n.keys) && len(n.children[i+1].keys) >= bt.t:
		bt.borrowFromNext(n, i)
	case i == len(n.keys):
		bt.merge(n, i-1)
	default:
		bt.merge(n, i)
	}
}

// borrowFromPrev rotates the left sibling's greatest key through the
// parent into the front of children[i].
func (bt *BTree) borrowFromPrev(n *node, i int) {
	child, sibling := n.children[i], n.children[i-1]

	child.keys = append([]string{n.keys[i-1]}, child.keys...)
	child.values = append([]*core.FileMetadata{n.values[i-1]}, child.values...)
	if !child.leaf {
		last := len(sibling.children) - 1
		child.children = append([]*node{sibling.children[last]}, child.children...)
		sibling.children = sibling.children[:last]
	}

	last := len(sibling.keys) - 1
	n.keys[i-1], n.values[i-1] = sibling.keys[last], sibling.values[last]
	sibling.keys = sibling.keys[:last]
	sibling.values = sibling.values[:last]
}

// borrowFromNext rotates the right sibling's smallest key through the
// parent onto the end of children[i].
func (bt *BTree) borrowFromNext(n *node, i int) {
	child, sibling := n.children[i], n.children[i+1]

	child.keys = append(child.keys, n.keys[i])
	child.values = append(child.values, n.values[i])
	if !child.leaf {
		child.children = append(child.children, sibling.children[0])
		sibling.children = sibling.children[1:]
	}

	n.keys[i], n.values[i] = sibling.keys[0], sibling.values[0]
	sibling.keys = sibling.keys[1:]
	sibling.values = sibling.values[1:]
}

// merge absorbs n.keys[i] and children[i+1] into children[i].
func (bt *BTree) merge(n *node, i int) {
	child, sibling := n.children[i], n.children[i+1]

	child.keys = append(child.keys, n.keys[i])
	child.values = append(child.values, n.values[i])
	child.keys = append(child.keys, sibling.keys...)
	child.values = append(child.values, sibling.values...)
	child.children = append(child.children, sibling.children...)

	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.values = append(n.values[:i], n.values[i+1:]...)
	n.children = append(n.children[:i+1], n.children[i+2:]...)
}

// RangeScan returns entries with start <= key <= end in ascending order,
// descending only into children whose span can intersect the interval.
func (bt *BTree) RangeScan(start, end string) []core.Entry {
	var out []core.Entry
	if start > end {
		return out
	}
	bt.rangeScan(bt.root, start, end, &out)
	return out
}

func (bt *BTree) rangeScan(n *node, start, end string, out *[]core.Entry) {
	for i := 0; i < len(n.keys); i++ {
		if !n.leaf && n.keys[i] > start {
			bt.rangeScan(n.children[i], start, end, out)
		}
		if n.keys[i] > end {
			return
		}
		if n.keys[i] >= start {
			*out = append(*out, core.Entry{Key: n.keys[i], Meta: n.values[i]})
		}
	}
	if !n.leaf && (len(n.keys) == 0 || n.keys[len(n.keys)-1] < end) {
		bt.rangeScan(n.children[len(n.keys)], start, end, out)
	}
}

// Items returns every entry in ascending key order.
func (bt *BTree) Items() []core.Entry {
	out := make([]core.Entry, 0, bt.size)
	bt.walk(bt.root, func(key string, meta *core.FileMetadata) {
		out = append(out, core.Entry{Key: key, Meta: meta})
	})
	return out
}

func (bt *BTree) walk(n *node, visit func(string, *core.FileMetadata)) {
	for i := 0; i < len(n.keys); i++ {
		if !n.leaf {
			bt.walk(n.children[i], visit)
		}
		visit(n.keys[i], n.values[i])
	}
	if !n.leaf {
		bt.walk(n.children[len(n.keys)], visit)
	}
}

// MatchSubstring returns every entry whose key contains sub,
// case-insensitively, in ascending key order.
func (bt *BTree) MatchSubstring(sub string) []core.Entry {
	needle := strings.ToLower(sub)
	var out []core.Entry
	bt.walk(bt.root, func(key string, meta *core.FileMetadata) {
		if strings.Contains(strings.ToLower(key), needle) {
			out = append(out, core.Entry{Key: key, Meta: meta})
		}
	})
	return out
}

// Height returns the number of levels in the tree. All leaves share the
// same depth, so the leftmost spine measures it.
func (bt *BTree) Height() int {
	h := 1
	for n := bt.root; !n.leaf; n = n.children[0] {
		h++
	}
	return h
}

// Visualize renders one node per line as "[k1 k2 ...]", indented by
// depth, children after their parent. An empty tree renders as "(empty)".
func (bt *BTree) Visualize() string {
	if bt.size == 0 {
		return "(empty)\n"
	}
	var sb strings.Builder
	bt.visualize(&sb, bt.root, 0)
	return sb.String()
}

func (bt *BTree) visualize(sb *strings.Builder, n *node, depth int) {
	fmt.Fprintf(sb, "%s[%s]\n", strings.Repeat("    ", depth), strings.Join(n.keys, " "))
	for _, c := range n.children {
		bt.visualize(sb, c, depth+1)
	}
}
