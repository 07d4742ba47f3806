// Package huffman implements a canonical-order Huffman codec over byte
// streams. The compressed form is self-describing: it carries the symbol
// frequency table, so decoding rebuilds the exact tree the encoder used.
package huffman

import (
	"container/heap"
	"sort"
)

// Node is a Huffman tree node. Leaves carry exactly one symbol; internal
// nodes carry only the combined frequency of their subtree. A tree built
// from a single distinct symbol has a placeholder right child so the real
// symbol still receives a 1-bit code.
type Node struct {
	Freq   uint64
	Symbol byte
	Leaf   bool
	Left   *Node
	Right  *Node

	// seq pins heap ordering for equal frequencies. Leaves are seeded in
	// ascending symbol order and merges continue the sequence, so two
	// builds from the same frequency table produce identical trees.
	seq uint64
}

type nodeHeap []*Node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].Freq != h[j].Freq {
		return h[i].Freq < h[j].Freq
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*Node)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// BuildFrequencyTable counts per-symbol occurrences. Absent symbols have
// no entry.
func BuildFrequencyTable(data []byte) map[byte]uint64 {
	freqs := make(map[byte]uint64)
	for _, b := range data {
		freqs[b]++
	}
	return freqs
}

// BuildTree constructs the Huffman tree for a frequency table by
// repeatedly merging the two lowest-frequency fragments. An empty table
// yields a nil tree. Exactly one distinct symbol yields a two-leaf tree:
// the real leaf on the left, a placeholder on the right.
func BuildTree(freqs map[byte]uint64) *Node {
	if len(freqs) == 0 {
		return nil
	}

	symbols := make([]int, 0, len(freqs))
	for s := range freqs {
		symbols = append(symbols, int(s))
	}
	sort.Ints(symbols)

	var seq uint64
	h := make(nodeHeap, 0, len(freqs))
	for _, s := range symbols {
		h = append(h, &Node{Freq: freqs[byte(s)], Symbol: byte(s), Leaf: true, seq: seq})
		seq++
	}
	heap.Init(&h)

	if len(h) == 1 {
		leaf := h[0]
		return &Node{Freq: leaf.Freq, Left: leaf, Right: &Node{}, seq: seq}
	}

	for len(h) > 1 {
		left := heap.Pop(&h).(*Node)
		right := heap.Pop(&h).(*Node)
		heap.Push(&h, &Node{Freq: left.Freq + right.Freq, Left: left, Right: right, seq: seq})
		seq++
	}
	return h[0]
}

// placeholder reports whether n is the filler child of a single-symbol
// tree. It is never a valid decode destination.
func (n *Node) placeholder() bool {
	return !n.Leaf && n.Left == nil && n.Right == nil
}
