package huffman

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/nexuscatalog/core"
)

func TestCompressDecompressFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "input.log")
	compressedPath := filepath.Join(dir, "input.log.huf")
	restoredPath := filepath.Join(dir, "restored.log")

	original := bytes.Repeat([]byte("2024-05-10T12:00:00Z INFO request served path=/api/files status=200\n"), 500)
	require.NoError(t, os.WriteFile(srcPath, original, 0o644))

	originalSize, compressedSize, err := CompressFile(srcPath, compressedPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(original)), originalSize)

	stat, err := os.Stat(compressedPath)
	require.NoError(t, err)
	assert.Equal(t, stat.Size(), compressedSize, "reported compressed size must match the file on disk")
	assert.Less(t, compressedSize, originalSize, "repetitive logs must shrink")

	written, err := DecompressFile(compressedPath, restoredPath)
	require.NoError(t, err)
	assert.Equal(t, originalSize, written)

	restored, err := os.ReadFile(restoredPath)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestCompressFileEmpty(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "empty")
	compressedPath := filepath.Join(dir, "empty.huf")
	restoredPath := filepath.Join(dir, "empty.out")

	require.NoError(t, os.WriteFile(srcPath, nil, 0o644))

	originalSize, compressedSize, err := CompressFile(srcPath, compressedPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), originalSize)
	assert.Greater(t, compressedSize, int64(0), "even an empty input carries the stream header")

	written, err := DecompressFile(compressedPath, restoredPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), written)

	restored, err := os.ReadFile(restoredPath)
	require.NoError(t, err)
	assert.Empty(t, restored)
}

func TestCompressFileLargerThanChunk(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "big.bin")
	compressedPath := filepath.Join(dir, "big.huf")
	restoredPath := filepath.Join(dir, "big.out")

	data := make([]byte, fileChunkSize*3+777)
	for i := range data {
		data[i] = byte(i % 97)
	}
	require.NoError(t, os.WriteFile(srcPath, data, 0o644))

	_, _, err := CompressFile(srcPath, compressedPath)
	require.NoError(t, err)

	written, err := DecompressFile(compressedPath, restoredPath)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), written)

	restored, err := os.ReadFile(restoredPath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, restored))
}

func TestCompressFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, _, err := CompressFile(filepath.Join(dir, "absent"), filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "absent", "error must carry the offending path")
}

func TestDecompressFileCorrupt(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "bogus.huf")
	require.NoError(t, os.WriteFile(srcPath, []byte("this is not a huffman stream"), 0o644))

	_, err := DecompressFile(srcPath, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, core.IsCorruptStream(err))
}

func TestDecompressFileTruncatedPayload(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "input.txt")
	compressedPath := filepath.Join(dir, "input.huf")

	require.NoError(t, os.WriteFile(srcPath, bytes.Repeat([]byte("abcdef"), 100), 0o644))
	_, _, err := CompressFile(srcPath, compressedPath)
	require.NoError(t, err)

	full, err := os.ReadFile(compressedPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(compressedPath, full[:len(full)-2], 0o644))

	_, err = DecompressFile(compressedPath, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, core.IsCorruptStream(err))
}
