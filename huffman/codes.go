package huffman

import "fmt"

// maxCodeBits bounds code length to what fits in Code.Bits. Reaching it
// requires a frequency table with near-Fibonacci counts summing past
// 2^64, which no real input produces.
const maxCodeBits = 64

// Code is one symbol's prefix code: the low Len bits of Bits, most
// significant bit first on the wire.
type Code struct {
	Bits uint64
	Len  int
}

func (c Code) String() string {
	s := make([]byte, c.Len)
	for i := 0; i < c.Len; i++ {
		if c.Bits>>(uint(c.Len-1-i))&1 == 1 {
			s[i] = '1'
		} else {
			s[i] = '0'
		}
	}
	return string(s)
}

// BuildCodes derives the code table from a Huffman tree by walking it
// once, appending 0 for left and 1 for right. A nil tree yields an empty
// table.
func BuildCodes(root *Node) (map[byte]Code, error) {
	codes := make(map[byte]Code)
	if root == nil {
		return codes, nil
	}
	if err := walkCodes(root, 0, 0, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func walkCodes(n *Node, bits uint64, depth int, codes map[byte]Code) error {
	if n.Leaf {
		codes[n.Symbol] = Code{Bits: bits, Len: depth}
		return nil
	}
	if depth >= maxCodeBits {
		return fmt.Errorf("frequency table produces a code longer than %d bits", maxCodeBits)
	}
	if n.Left != nil && !n.Left.placeholder() {
		if err := walkCodes(n.Left, bits<<1, depth+1, codes); err != nil {
			return err
		}
	}
	if n.Right != nil && !n.Right.placeholder() {
		if err := walkCodes(n.Right, bits<<1|1, depth+1, codes); err != nil {
			return err
		}
	}
	return nil
}

// payloadBits is the exact bit length of the encoded payload for a
// frequency table and its code table.
func payloadBits(freqs map[byte]uint64, codes map[byte]Code) uint64 {
	var total uint64
	for s, f := range freqs {
		total += f * uint64(codes[s].Len)
	}
	return total
}
