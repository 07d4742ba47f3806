package btree

import "fmt"

// CheckInvariants verifies the structural properties of a B-Tree of
// minimum degree t: key-count bounds on every node, sorted keys, child
// fan-out of key count plus one, uniform leaf depth, key ordering across
// levels, and a node count matching Len. It exists for tests and returns
// the first violation found.
func (bt *BTree) CheckInvariants() error {
	if bt.t < 2 {
		return fmt.Errorf("minimum degree is %d, want >= 2", bt.t)
	}
	if bt.root == nil {
		return fmt.Errorf("root is nil")
	}
	if !bt.root.leaf && len(bt.root.keys) == 0 {
		return fmt.Errorf("internal root has no keys")
	}

	leafDepth := -1
	count := 0
	if err := bt.checkNode(bt.root, true, 0, "", "", &leafDepth, &count); err != nil {
		return err
	}
	if count != bt.size {
		return fmt.Errorf("tree holds %d keys but size is %d", count, bt.size)
	}
	return nil
}

// checkNode recursively validates the subtree at n. The open bounds
// low and high carry the separator keys inherited from ancestors; an
// empty string means unbounded on that side.
func (bt *BTree) checkNode(n *node, isRoot bool, depth int, low, high string, leafDepth, count *int) error {
	if !isRoot && len(n.keys) < bt.t-1 {
		return fmt.Errorf("node %v at depth %d holds %d keys, want >= %d", n.keys, depth, len(n.keys), bt.t-1)
	}
	if len(n.keys) > 2*bt.t-1 {
		return fmt.Errorf("node %v at depth %d holds %d keys, want <= %d", n.keys, depth, len(n.keys), 2*bt.t-1)
	}
	if len(n.values) != len(n.keys) {
		return fmt.Errorf("node %v holds %d values for %d keys", n.keys, len(n.values), len(n.keys))
	}

	for i, key := range n.keys {
		if i > 0 && n.keys[i-1] >= key {
			return fmt.Errorf("keys %q and %q out of order at depth %d", n.keys[i-1], key, depth)
		}
		if low != "" && key <= low {
			return fmt.Errorf("key %q at depth %d violates lower bound %q", key, depth, low)
		}
		if high != "" && key >= high {
			return fmt.Errorf("key %q at depth %d violates upper bound %q", key, depth, high)
		}
	}
	*count += len(n.keys)

	if n.leaf {
		if len(n.children) != 0 {
			return fmt.Errorf("leaf %v has %d children", n.keys, len(n.children))
		}
		if *leafDepth == -1 {
			*leafDepth = depth
		} else if depth != *leafDepth {
			return fmt.Errorf("leaf %v at depth %d, other leaves at depth %d", n.keys, depth, *leafDepth)
		}
		return nil
	}

	if len(n.children) != len(n.keys)+1 {
		return fmt.Errorf("node %v has %d children for %d keys", n.keys, len(n.children), len(n.keys))
	}
	for i, child := range n.children {
		childLow, childHigh := low, high
		if i > 0 {
			childLow = n.keys[i-1]
		}
		if i < len(n.keys) {
			childHigh = n.keys[i]
		}
		if err := bt.checkNode(child, false, depth+1, childLow, childHigh, leafDepth, count); err != nil {
			return err
		}
	}
	return nil
}
