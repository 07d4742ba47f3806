package core

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// CompressionType identifies the compression algorithm used.
// This is stored in compressed output so readers know how to decompress.
type CompressionType byte

const (
	CompressionNone    CompressionType = 0
	CompressionSnappy  CompressionType = 1
	CompressionLZ4     CompressionType = 2
	CompressionZSTD    CompressionType = 3
	CompressionHuffman CompressionType = 4
)

// Compressor defines the interface for compression and decompression algorithms.
type Compressor interface {
	// Compress compresses the input data.
	Compress(data []byte) ([]byte, error)
	// CompressTo compresses src and appends the result to dst.
	CompressTo(dst *bytes.Buffer, src []byte) error
	// Decompress decompresses the input data.
	Decompress(data []byte) (io.ReadCloser, error)
	// Type returns the CompressionType identifier for this compressor.
	Type() CompressionType
}

// String returns the string representation of the CompressionType.
func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	case CompressionHuffman:
		return "huffman"
	default:
		return "unknown"
	}
}

// CompressionTypeFromString parses a case-insensitive algorithm name.
func CompressionTypeFromString(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	case "huffman":
		return CompressionHuffman, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression type %q", s)
	}
}

const (
	ChecksumSize = 4 // uint32 for CRC32 checksum
)
