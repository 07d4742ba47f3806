package core

import (
	"sort"
	"time"
)

// FileMetadata is the record attached to every indexed file. Category
// membership has set semantics: the slice is kept sorted and free of
// duplicates.
type FileMetadata struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Compressed bool      `json:"compressed"`
	Categories []string  `json:"categories,omitempty"`
}

// NewFileMetadata creates a record for path with both timestamps set to now.
func NewFileMetadata(path string, size int64, now time.Time) *FileMetadata {
	if size < 0 {
		size = 0
	}
	return &FileMetadata{
		Path:       path,
		Size:       size,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// Touch refreshes the modification timestamp.
func (m *FileMetadata) Touch(now time.Time) {
	m.ModifiedAt = now
}

// AddCategory inserts category keeping the slice sorted. It reports
// whether the category was newly added.
func (m *FileMetadata) AddCategory(category string) bool {
	i := sort.SearchStrings(m.Categories, category)
	if i < len(m.Categories) && m.Categories[i] == category {
		return false
	}
	m.Categories = append(m.Categories, "")
	copy(m.Categories[i+1:], m.Categories[i:])
	m.Categories[i] = category
	return true
}

// RemoveCategory deletes category if present and reports whether it was removed.
func (m *FileMetadata) RemoveCategory(category string) bool {
	i := sort.SearchStrings(m.Categories, category)
	if i >= len(m.Categories) || m.Categories[i] != category {
		return false
	}
	m.Categories = append(m.Categories[:i], m.Categories[i+1:]...)
	return true
}

// HasCategory reports whether category is present.
func (m *FileMetadata) HasCategory(category string) bool {
	i := sort.SearchStrings(m.Categories, category)
	return i < len(m.Categories) && m.Categories[i] == category
}

// Clone returns a deep copy. The category slice is never shared.
func (m *FileMetadata) Clone() *FileMetadata {
	if m == nil {
		return nil
	}
	cp := *m
	if len(m.Categories) > 0 {
		cp.Categories = append([]string(nil), m.Categories...)
	}
	return &cp
}
