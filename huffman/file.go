package huffman

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/INLOpen/nexuscatalog/core"
)

// fileChunkSize bounds how much of a file is held in memory per read
// while streaming.
const fileChunkSize = 64 * 1024

// CompressFile encodes srcPath into dstPath without loading the whole
// file. It reads the source twice: once to build the frequency table,
// once to emit the bit payload. Returns the original and compressed
// sizes in bytes.
func CompressFile(srcPath, dstPath string) (originalSize, compressedSize int64, err error) {
	freqs, total, err := fileFrequencies(srcPath)
	if err != nil {
		return 0, 0, err
	}

	root := BuildTree(freqs)
	codes, err := BuildCodes(root)
	if err != nil {
		return 0, 0, fmt.Errorf("compress %s: %w", srcPath, err)
	}
	bits := payloadBits(freqs, codes)
	padding := uint8((8 - bits%8) % 8)

	var headerBuf bytes.Buffer
	if err := writeHeader(&headerBuf, freqs, total, padding); err != nil {
		return 0, 0, fmt.Errorf("compress %s: %w", srcPath, err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open source file %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create output file %s: %w", dstPath, err)
	}

	w := bufio.NewWriterSize(dst, fileChunkSize)
	if _, err := w.Write(headerBuf.Bytes()); err != nil {
		dst.Close()
		return 0, 0, fmt.Errorf("failed to write header to %s: %w", dstPath, err)
	}

	bw := &bitWriter{w: w}
	var seen uint64
	chunk := make([]byte, fileChunkSize)
	reader := bufio.NewReaderSize(src, fileChunkSize)
	for {
		n, rerr := reader.Read(chunk)
		for _, b := range chunk[:n] {
			c, ok := codes[b]
			if !ok {
				dst.Close()
				return 0, 0, fmt.Errorf("source file %s changed during compression: byte 0x%02x missing from frequency table", srcPath, b)
			}
			if err := bw.writeCode(c); err != nil {
				dst.Close()
				return 0, 0, fmt.Errorf("failed to write payload to %s: %w", dstPath, err)
			}
		}
		seen += uint64(n)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			dst.Close()
			return 0, 0, fmt.Errorf("failed to read source file %s: %w", srcPath, rerr)
		}
	}
	if seen != total {
		dst.Close()
		return 0, 0, fmt.Errorf("source file %s changed during compression: counted %d bytes, then read %d", srcPath, total, seen)
	}

	if _, err := bw.flush(); err != nil {
		dst.Close()
		return 0, 0, fmt.Errorf("failed to write payload to %s: %w", dstPath, err)
	}
	if err := w.Flush(); err != nil {
		dst.Close()
		return 0, 0, fmt.Errorf("failed to flush output file %s: %w", dstPath, err)
	}
	if err := dst.Close(); err != nil {
		return 0, 0, fmt.Errorf("failed to close output file %s: %w", dstPath, err)
	}

	compressedSize = int64(headerBuf.Len()) + int64(bits/8)
	if bits%8 != 0 {
		compressedSize++
	}
	return int64(total), compressedSize, nil
}

// DecompressFile decodes srcPath into dstPath, streaming the payload
// with one byte of lookahead so the final byte's padding can be trimmed.
// Returns the number of decoded bytes.
func DecompressFile(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open compressed file %s: %w", srcPath, err)
	}
	defer src.Close()

	reader := bufio.NewReaderSize(src, fileChunkSize)
	h, err := readHeader(reader)
	if err != nil {
		return 0, fmt.Errorf("decompress %s: %w", srcPath, err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file %s: %w", dstPath, err)
	}
	w := bufio.NewWriterSize(dst, fileChunkSize)

	fail := func(err error) (int64, error) {
		dst.Close()
		return 0, err
	}

	if h.total == 0 {
		if _, err := reader.ReadByte(); err == nil {
			return fail(fmt.Errorf("decompress %s: %w", srcPath, core.NewCorruptStreamError(-1, "trailing data after final symbol")))
		} else if !errors.Is(err, io.EOF) {
			return fail(fmt.Errorf("failed to read compressed file %s: %w", srcPath, err))
		}
		if err := w.Flush(); err != nil {
			return fail(fmt.Errorf("failed to flush output file %s: %w", dstPath, err))
		}
		if err := dst.Close(); err != nil {
			return 0, fmt.Errorf("failed to close output file %s: %w", dstPath, err)
		}
		return 0, nil
	}

	cur, err := reader.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fail(fmt.Errorf("decompress %s: %w", srcPath, core.NewCorruptStreamError(-1, "missing bit payload for %d symbols", h.total)))
		}
		return fail(fmt.Errorf("failed to read compressed file %s: %w", srcPath, err))
	}

	d := newBitDecoder(BuildTree(h.freqs), h.total)
	for {
		next, rerr := reader.ReadByte()
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				return fail(fmt.Errorf("failed to read compressed file %s: %w", srcPath, rerr))
			}
			if err := d.feed(cur, 8-h.padding, w); err != nil {
				return fail(fmt.Errorf("decompress %s: %w", srcPath, err))
			}
			break
		}
		if err := d.feed(cur, 8, w); err != nil {
			return fail(fmt.Errorf("decompress %s: %w", srcPath, err))
		}
		cur = next
	}
	if err := d.finish(); err != nil {
		return fail(fmt.Errorf("decompress %s: %w", srcPath, err))
	}

	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("failed to flush output file %s: %w", dstPath, err))
	}
	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("failed to close output file %s: %w", dstPath, err)
	}
	return int64(h.total), nil
}

// fileFrequencies streams srcPath once, returning its frequency table
// and byte count.
func fileFrequencies(srcPath string) (map[byte]uint64, uint64, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open source file %s: %w", srcPath, err)
	}
	defer f.Close()

	freqs := make(map[byte]uint64)
	var total uint64
	chunk := make([]byte, fileChunkSize)
	reader := bufio.NewReaderSize(f, fileChunkSize)
	for {
		n, err := reader.Read(chunk)
		for _, b := range chunk[:n] {
			freqs[b]++
		}
		total += uint64(n)
		if err == io.EOF {
			return freqs, total, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read source file %s: %w", srcPath, err)
		}
	}
}
