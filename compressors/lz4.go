package compressors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/INLOpen/nexuscatalog/core"
	lz4 "github.com/pierrec/lz4/v4"
)

// LZ4Compressor implements the Compressor interface using the lz4 block
// format. The raw block does not record the original size, so every
// output carries a 5-byte prefix: a flag byte (raw or lz4) followed by
// the original length as uint32 LE. Incompressible inputs are stored raw
// instead of failing.
type LZ4Compressor struct{}

const (
	lz4FlagRaw   byte = 0
	lz4FlagBlock byte = 1
	lz4HeaderLen      = 5
)

var _ core.Compressor = (*LZ4Compressor)(nil)

func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) > math.MaxUint32 {
		return nil, fmt.Errorf("lz4 block too large: %d bytes", len(data))
	}
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, lz4HeaderLen+bound)
	binary.LittleEndian.PutUint32(dst[1:lz4HeaderLen], uint32(len(data)))

	n, err := lz4.CompressBlock(data, dst[lz4HeaderLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress error: %w", err)
	}
	// n == 0 means the block is not compressible; store it raw.
	if n == 0 || n >= len(data) {
		dst[0] = lz4FlagRaw
		dst = append(dst[:lz4HeaderLen], data...)
		return dst, nil
	}
	dst[0] = lz4FlagBlock
	return dst[:lz4HeaderLen+n], nil
}

// CompressTo compresses src into dst, replacing its contents.
func (c *LZ4Compressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	out, err := c.Compress(src)
	if err != nil {
		return err
	}
	dst.Reset()
	dst.Write(out)
	return nil
}

func (c *LZ4Compressor) Decompress(data []byte) (io.ReadCloser, error) {
	if len(data) < lz4HeaderLen {
		return nil, fmt.Errorf("lz4 stream too short: %d bytes", len(data))
	}
	originalLen := binary.LittleEndian.Uint32(data[1:lz4HeaderLen])
	payload := data[lz4HeaderLen:]

	switch data[0] {
	case lz4FlagRaw:
		if uint32(len(payload)) != originalLen {
			return nil, fmt.Errorf("lz4 raw block length %d does not match declared %d", len(payload), originalLen)
		}
		return newMemReader(payload), nil
	case lz4FlagBlock:
		out := make([]byte, originalLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress error: %w", err)
		}
		if uint32(n) != originalLen {
			return nil, fmt.Errorf("lz4 decompressed %d bytes, declared %d", n, originalLen)
		}
		return newMemReader(out[:n]), nil
	default:
		return nil, fmt.Errorf("lz4 stream has unknown flag 0x%02x", data[0])
	}
}

func (c *LZ4Compressor) Type() core.CompressionType {
	return core.CompressionLZ4
}
