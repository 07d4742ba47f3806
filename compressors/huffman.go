package compressors

import (
	"bytes"
	"io"

	"github.com/INLOpen/nexuscatalog/core"
	"github.com/INLOpen/nexuscatalog/huffman"
)

// HuffmanCompressor adapts the huffman codec to the Compressor interface.
// Its output is the self-describing stream format, so it round-trips
// through files written by other tools using the same format.
type HuffmanCompressor struct{}

var _ core.Compressor = (*HuffmanCompressor)(nil)

func (c *HuffmanCompressor) Compress(data []byte) ([]byte, error) {
	return huffman.Encode(data)
}

// CompressTo compresses src into dst, replacing its contents.
func (c *HuffmanCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	return huffman.EncodeTo(dst, src)
}

func (c *HuffmanCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	decoded, err := huffman.Decode(data)
	if err != nil {
		return nil, err
	}
	return newMemReader(decoded), nil
}

func (c *HuffmanCompressor) Type() core.CompressionType {
	return core.CompressionHuffman
}
