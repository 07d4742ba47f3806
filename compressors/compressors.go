// Package compressors provides core.Compressor implementations for every
// supported algorithm. All of them work on whole in-memory blocks; the
// stream returned by Decompress reads from an already-inflated buffer.
package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/nexuscatalog/core"
)

// memReader adapts an in-memory buffer to the io.ReadCloser the
// Compressor interface promises. Close is a no-op.
type memReader struct {
	*bytes.Reader
}

func (memReader) Close() error { return nil }

func newMemReader(data []byte) io.ReadCloser {
	return memReader{bytes.NewReader(data)}
}

// NewCompressor returns the Compressor for a CompressionType.
func NewCompressor(t core.CompressionType) (core.Compressor, error) {
	switch t {
	case core.CompressionNone:
		return &NoCompressionCompressor{}, nil
	case core.CompressionSnappy:
		return &SnappyCompressor{}, nil
	case core.CompressionLZ4:
		return NewLZ4Compressor(), nil
	case core.CompressionZSTD:
		return NewZstdCompressor(), nil
	case core.CompressionHuffman:
		return &HuffmanCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression type %d", t)
	}
}
