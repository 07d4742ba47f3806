package huffman

import (
	"io"

	"github.com/INLOpen/nexuscatalog/core"
)

// bitWriter packs codes MSB-first into bytes and hands full bytes to w.
type bitWriter struct {
	w   io.ByteWriter
	cur byte
	n   uint8
}

func (bw *bitWriter) writeCode(c Code) error {
	for i := c.Len - 1; i >= 0; i-- {
		bw.cur = bw.cur<<1 | byte(c.Bits>>uint(i)&1)
		bw.n++
		if bw.n == 8 {
			if err := bw.w.WriteByte(bw.cur); err != nil {
				return err
			}
			bw.cur, bw.n = 0, 0
		}
	}
	return nil
}

// flush zero-pads the pending partial byte to a byte boundary and
// reports how many padding bits were appended (0..7).
func (bw *bitWriter) flush() (uint8, error) {
	if bw.n == 0 {
		return 0, nil
	}
	padding := 8 - bw.n
	bw.cur <<= padding
	if err := bw.w.WriteByte(bw.cur); err != nil {
		return 0, err
	}
	bw.cur, bw.n = 0, 0
	return padding, nil
}

// bitDecoder walks payload bits through a Huffman tree, emitting a
// symbol at every leaf. The caller feeds whole bytes and trims the
// final byte's padding via the nbits argument.
type bitDecoder struct {
	root      *Node
	cursor    *Node
	remaining uint64 // symbols still owed per the stream header
	offset    int64  // payload bytes consumed, for error reporting
}

func newBitDecoder(root *Node, total uint64) *bitDecoder {
	return &bitDecoder{root: root, cursor: root, remaining: total}
}

func (d *bitDecoder) feed(b byte, nbits uint8, out io.ByteWriter) error {
	for i := uint8(0); i < nbits; i++ {
		if d.remaining == 0 {
			return core.NewCorruptStreamError(d.offset, "trailing data after final symbol")
		}
		var next *Node
		if b>>(7-i)&1 == 0 {
			next = d.cursor.Left
		} else {
			next = d.cursor.Right
		}
		if next == nil || next.placeholder() {
			return core.NewCorruptStreamError(d.offset, "bit sequence matches no code")
		}
		if next.Leaf {
			if err := out.WriteByte(next.Symbol); err != nil {
				return err
			}
			d.remaining--
			d.cursor = d.root
		} else {
			d.cursor = next
		}
	}
	d.offset++
	return nil
}

// finish verifies the stream ended exactly at a symbol boundary with the
// declared number of symbols emitted.
func (d *bitDecoder) finish() error {
	if d.cursor != d.root {
		return core.NewCorruptStreamError(d.offset, "bit payload ends mid-code")
	}
	if d.remaining != 0 {
		return core.NewCorruptStreamError(d.offset, "payload ends with %d symbols missing", d.remaining)
	}
	return nil
}
