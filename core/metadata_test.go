package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMetadataCategories(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	meta := NewFileMetadata("/data/report.txt", 2048, now)

	require.Equal(t, "/data/report.txt", meta.Path)
	require.Equal(t, int64(2048), meta.Size)
	require.Equal(t, now, meta.CreatedAt)
	require.Equal(t, now, meta.ModifiedAt)
	require.False(t, meta.Compressed)
	require.Empty(t, meta.Categories)

	assert.True(t, meta.AddCategory("logs"))
	assert.True(t, meta.AddCategory("archive"))
	assert.True(t, meta.AddCategory("text"))
	assert.False(t, meta.AddCategory("logs"), "duplicate add must be a no-op")

	assert.Equal(t, []string{"archive", "logs", "text"}, meta.Categories, "categories stay sorted and unique")
	assert.True(t, meta.HasCategory("logs"))
	assert.False(t, meta.HasCategory("video"))

	assert.True(t, meta.RemoveCategory("logs"))
	assert.False(t, meta.RemoveCategory("logs"), "removing an absent category reports false")
	assert.Equal(t, []string{"archive", "text"}, meta.Categories)
}

func TestFileMetadataNegativeSizeClamped(t *testing.T) {
	meta := NewFileMetadata("x", -5, time.Now())
	assert.Equal(t, int64(0), meta.Size)
}

func TestFileMetadataTouch(t *testing.T) {
	created := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	modified := created.Add(90 * time.Minute)

	meta := NewFileMetadata("a.bin", 1, created)
	meta.Touch(modified)

	assert.Equal(t, created, meta.CreatedAt, "Touch must not change the creation timestamp")
	assert.Equal(t, modified, meta.ModifiedAt)
}

func TestFileMetadataClone(t *testing.T) {
	meta := NewFileMetadata("a.bin", 10, time.Now())
	meta.AddCategory("one")

	cp := meta.Clone()
	require.NotSame(t, meta, cp)
	assert.Equal(t, meta, cp)

	cp.AddCategory("two")
	assert.False(t, meta.HasCategory("two"), "mutating the clone must not touch the original")

	var nilMeta *FileMetadata
	assert.Nil(t, nilMeta.Clone())
}
