package rbtree

import "fmt"

// CheckInvariants verifies the Red-Black invariants and the BST
// ordering. It returns a descriptive error on the first violation found.
// Intended for tests and debugging; production paths never call it.
func (t *Tree) CheckInvariants() error {
	if t.nil_.color != black {
		return fmt.Errorf("NIL sentinel is %s, must be BLACK", t.nil_.color)
	}
	if t.root.color != black {
		return fmt.Errorf("root %q is %s, must be BLACK", t.root.key, t.root.color)
	}
	count := 0
	if _, err := t.checkNode(t.root, &count); err != nil {
		return err
	}
	if count != t.size {
		return fmt.Errorf("tree reports %d keys but holds %d", t.size, count)
	}
	return nil
}

// checkNode returns the black-height of the subtree rooted at n.
func (t *Tree) checkNode(n *node, count *int) (int, error) {
	if n == t.nil_ {
		return 1, nil
	}
	*count++

	if n.color == red && (n.left.color == red || n.right.color == red) {
		return 0, fmt.Errorf("red node %q has a red child", n.key)
	}
	if n.left != t.nil_ {
		if n.left.key >= n.key {
			return 0, fmt.Errorf("left child %q is not less than %q", n.left.key, n.key)
		}
		if n.left.parent != n {
			return 0, fmt.Errorf("left child %q has a stale parent pointer", n.left.key)
		}
	}
	if n.right != t.nil_ {
		if n.right.key <= n.key {
			return 0, fmt.Errorf("right child %q is not greater than %q", n.right.key, n.key)
		}
		if n.right.parent != n {
			return 0, fmt.Errorf("right child %q has a stale parent pointer", n.right.key)
		}
	}

	leftBH, err := t.checkNode(n.left, count)
	if err != nil {
		return 0, err
	}
	rightBH, err := t.checkNode(n.right, count)
	if err != nil {
		return 0, err
	}
	if leftBH != rightBH {
		return 0, fmt.Errorf("black-height mismatch at %q: left %d, right %d", n.key, leftBH, rightBH)
	}

	bh := leftBH
	if n.color == black {
		bh++
	}
	return bh, nil
}
