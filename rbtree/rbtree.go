// Package rbtree implements a Red-Black Tree keyed by filename. Each
// node owns one metadata record. The tree maintains the classic color
// invariants after every insert and delete, giving O(log n) lookups.
//
// The tree itself is not safe for concurrent use; callers that share an
// instance across goroutines must serialize access.
package rbtree

import (
	"fmt"
	"strings"

	"github.com/INLOpen/nexuscatalog/core"
)

type color uint8

const (
	red color = iota
	black
)

func (c color) String() string {
	if c == red {
		return "RED"
	}
	return "BLACK"
}

type node struct {
	key    string
	meta   *core.FileMetadata
	color  color
	left   *node
	right  *node
	parent *node
}

// Tree is a Red-Black Tree. All leaves share a single NIL sentinel,
// which is always black.
type Tree struct {
	root *node
	nil_ *node
	size int
}

func New() *Tree {
	sentinel := &node{color: black}
	return &Tree{root: sentinel, nil_: sentinel}
}

// Len returns the number of keys in the tree.
func (t *Tree) Len() int {
	return t.size
}

// Insert adds key with its metadata. Inserting an existing key replaces
// the stored metadata.
func (t *Tree) Insert(key string, meta *core.FileMetadata) {
	parent := t.nil_
	cur := t.root
	for cur != t.nil_ {
		parent = cur
		switch {
		case key < cur.key:
			cur = cur.left
		case key > cur.key:
			cur = cur.right
		default:
			cur.meta = meta
			return
		}
	}

	z := &node{key: key, meta: meta, color: red, left: t.nil_, right: t.nil_, parent: parent}
	switch {
	case parent == t.nil_:
		t.root = z
	case key < parent.key:
		parent.left = z
	default:
		parent.right = z
	}
	t.size++
	t.insertFixup(z)
}

func (t *Tree) insertFixup(z *node) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			uncle := z.parent.parent.right
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			uncle := z.parent.parent.left
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *Tree) leftRotate(x *node) {
	y := x.right
	x.right = y.left
	if y.left != t.nil_ {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil_:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *Tree) rightRotate(x *node) {
	y := x.left
	x.left = y.right
	if y.right != t.nil_ {
		y.right.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil_:
		t.root = y
	case x == x.parent.right:
		x.parent.right = y
	default:
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

// Search returns the metadata stored for key.
func (t *Tree) Search(key string) (*core.FileMetadata, bool) {
	n := t.lookup(key)
	if n == t.nil_ {
		return nil, false
	}
	return n.meta, true
}

func (t *Tree) lookup(key string) *node {
	cur := t.root
	for cur != t.nil_ {
		switch {
		case key < cur.key:
			cur = cur.left
		case key > cur.key:
			cur = cur.right
		default:
			return cur
		}
	}
	return t.nil_
}

// Delete removes key and reports whether it was present.
func (t *Tree) Delete(key string) bool {
	z := t.lookup(key)
	if z == t.nil_ {
		return false
	}

	y := z
	yOriginal := y.color
	var x *node
	switch {
	case z.left == t.nil_:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.nil_:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.minimum(z.right)
		yOriginal = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOriginal == black {
		t.deleteFixup(x)
	}
	t.size--
	return true
}

// transplant replaces the subtree rooted at u with the one rooted at v.
func (t *Tree) transplant(u, v *node) {
	switch {
	case u.parent == t.nil_:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *Tree) minimum(n *node) *node {
	for n.left != t.nil_ {
		n = n.left
	}
	return n
}

func (t *Tree) deleteFixup(x *node) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			sibling := x.parent.right
			if sibling.color == red {
				sibling.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				sibling = x.parent.right
			}
			if sibling.left.color == black && sibling.right.color == black {
				sibling.color = red
				x = x.parent
			} else {
				if sibling.right.color == black {
					sibling.left.color = black
					sibling.color = red
					t.rightRotate(sibling)
					sibling = x.parent.right
				}
				sibling.color = x.parent.color
				x.parent.color = black
				sibling.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			sibling := x.parent.left
			if sibling.color == red {
				sibling.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				sibling = x.parent.left
			}
			if sibling.right.color == black && sibling.left.color == black {
				sibling.color = red
				x = x.parent
			} else {
				if sibling.left.color == black {
					sibling.right.color = black
					sibling.color = red
					t.leftRotate(sibling)
					sibling = x.parent.left
				}
				sibling.color = x.parent.color
				x.parent.color = black
				sibling.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}

// Items returns every entry in ascending key order.
func (t *Tree) Items() []core.Entry {
	out := make([]core.Entry, 0, t.size)
	t.inorder(t.root, func(n *node) {
		out = append(out, core.Entry{Key: n.key, Meta: n.meta})
	})
	return out
}

func (t *Tree) inorder(n *node, visit func(*node)) {
	if n == t.nil_ {
		return
	}
	t.inorder(n.left, visit)
	visit(n)
	t.inorder(n.right, visit)
}

// RangeScan returns entries with start <= key <= end in ascending order.
// Subtrees that cannot contain qualifying keys are not visited.
func (t *Tree) RangeScan(start, end string) []core.Entry {
	var out []core.Entry
	t.rangeScan(t.root, start, end, &out)
	return out
}

func (t *Tree) rangeScan(n *node, start, end string, out *[]core.Entry) {
	if n == t.nil_ {
		return
	}
	if n.key > start {
		t.rangeScan(n.left, start, end, out)
	}
	if n.key >= start && n.key <= end {
		*out = append(*out, core.Entry{Key: n.key, Meta: n.meta})
	}
	if n.key < end {
		t.rangeScan(n.right, start, end, out)
	}
}

// MatchSubstring returns every entry whose key contains sub,
// case-insensitively, in ascending key order. Substring containment is
// not order-preserving, so this walks the whole tree.
func (t *Tree) MatchSubstring(sub string) []core.Entry {
	needle := strings.ToLower(sub)
	var out []core.Entry
	t.inorder(t.root, func(n *node) {
		if strings.Contains(strings.ToLower(n.key), needle) {
			out = append(out, core.Entry{Key: n.key, Meta: n.meta})
		}
	})
	return out
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	return t.height(t.root)
}

func (t *Tree) height(n *node) int {
	if n == t.nil_ {
		return 0
	}
	l := t.height(n.left)
	r := t.height(n.right)
	if l > r {
		return l + 1
	}
	return r + 1
}

// Visualize renders the tree sideways, right subtree first, one node
// per line as "key (COLOR)". An empty tree renders as "(empty)".
func (t *Tree) Visualize() string {
	if t.root == t.nil_ {
		return "(empty)\n"
	}
	var sb strings.Builder
	t.visualize(&sb, t.root, 0)
	return sb.String()
}

func (t *Tree) visualize(sb *strings.Builder, n *node, depth int) {
	if n == t.nil_ {
		return
	}
	t.visualize(sb, n.right, depth+1)
	fmt.Fprintf(sb, "%s%s (%s)\n", strings.Repeat("    ", depth), n.key, n.color)
	t.visualize(sb, n.left, depth+1)
}
