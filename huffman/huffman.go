package huffman

import (
	"bytes"
	"encoding/binary"

	"github.com/INLOpen/nexuscatalog/core"
)

// Encode compresses data into a self-describing stream. Output for
// identical input is byte-identical across runs.
func Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo compresses data and appends the stream to dst.
func EncodeTo(dst *bytes.Buffer, data []byte) error {
	freqs := BuildFrequencyTable(data)
	root := BuildTree(freqs)
	codes, err := BuildCodes(root)
	if err != nil {
		return err
	}

	bits := payloadBits(freqs, codes)
	padding := uint8((8 - bits%8) % 8)
	dst.Grow(headerSizeHint(len(freqs)) + int(bits/8) + 1)
	if err := writeHeader(dst, freqs, uint64(len(data)), padding); err != nil {
		return err
	}

	bw := &bitWriter{w: dst}
	for _, b := range data {
		if err := bw.writeCode(codes[b]); err != nil {
			return err
		}
	}
	_, err = bw.flush()
	return err
}

// Decode reverses Encode. It rebuilds the Huffman tree from the stream's
// frequency table, strips the declared padding and walks the bit payload
// back into the original bytes. Any structural or integrity violation is
// reported as a core.CorruptStreamError.
func Decode(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	payload := data[len(data)-r.Len():]

	if h.total == 0 {
		if len(payload) > 0 {
			return nil, core.NewCorruptStreamError(int64(len(data)-r.Len()), "trailing data after final symbol")
		}
		return []byte{}, nil
	}
	if len(payload) == 0 {
		return nil, core.NewCorruptStreamError(int64(len(data)), "missing bit payload for %d symbols", h.total)
	}

	root := BuildTree(h.freqs)
	out := bytes.Buffer{}
	out.Grow(int(min64(h.total, 1<<20)))

	d := newBitDecoder(root, h.total)
	last := len(payload) - 1
	for i, b := range payload {
		nbits := uint8(8)
		if i == last {
			nbits = 8 - h.padding
		}
		if err := d.feed(b, nbits, &out); err != nil {
			return nil, err
		}
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// headerSizeHint estimates the header size for a table of n symbols.
func headerSizeHint(n int) int {
	return 4 + 1 + 2 + n*(1+binary.MaxVarintLen64) + 8 + 1 + core.ChecksumSize
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
