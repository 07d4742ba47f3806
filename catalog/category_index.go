package catalog

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// stringStore manages the mapping between strings (file paths, category
// names) and the integer IDs used by the bitmap index. IDs are never
// reused, so a path removed and re-added keeps its old ID.
type stringStore struct {
	nextID atomic.Uint64
	mu     sync.RWMutex

	stringToID map[string]uint64
	idToString map[uint64]string
}

func newStringStore() *stringStore {
	s := &stringStore{
		stringToID: make(map[string]uint64),
		idToString: make(map[uint64]string),
	}
	s.nextID.Store(1)
	return s
}

// getOrCreateID retrieves the ID for a string, creating one if it doesn't exist.
func (s *stringStore) getOrCreateID(str string) uint64 {
	s.mu.RLock()
	id, ok := s.stringToID[str]
	s.mu.RUnlock()
	if ok {
		return id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.stringToID[str]; ok {
		return id
	}

	newID := s.nextID.Load()
	s.nextID.Add(1)

	s.stringToID[str] = newID
	s.idToString[newID] = str
	return newID
}

// getString retrieves the string for an ID.
func (s *stringStore) getString(id uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	str, ok := s.idToString[id]
	return str, ok
}

// getID retrieves the ID for a string.
func (s *stringStore) getID(str string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.stringToID[str]
	return id, ok
}

// categoryIndex maps category IDs to roaring bitmaps of file IDs. It is
// safe for concurrent use.
type categoryIndex struct {
	mu    sync.RWMutex
	index map[uint64]*roaring64.Bitmap
}

func newCategoryIndex() *categoryIndex {
	return &categoryIndex{
		index: make(map[uint64]*roaring64.Bitmap),
	}
}

// add records fileID under the given category.
func (ci *categoryIndex) add(categoryID, fileID uint64) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	bm, ok := ci.index[categoryID]
	if !ok {
		bm = roaring64.New()
		ci.index[categoryID] = bm
	}
	bm.Add(fileID)
}

// remove drops fileID from the category's bitmap. A bitmap that empties
// is deleted so drained categories stop being reported.
func (ci *categoryIndex) remove(categoryID, fileID uint64) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	bm, ok := ci.index[categoryID]
	if !ok {
		return
	}
	bm.Remove(fileID)
	if bm.IsEmpty() {
		delete(ci.index, categoryID)
	}
}

// bitmap returns a clone of the bitmap for a category, or a new empty
// bitmap if the category is not indexed. Cloning keeps readers isolated
// from concurrent mutation.
func (ci *categoryIndex) bitmap(categoryID uint64) *roaring64.Bitmap {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	if bm, ok := ci.index[categoryID]; ok {
		return bm.Clone()
	}
	return roaring64.New()
}

// categoryIDs returns the IDs of every category holding at least one file.
func (ci *categoryIndex) categoryIDs() []uint64 {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	ids := make([]uint64, 0, len(ci.index))
	for id := range ci.index {
		ids = append(ids, id)
	}
	return ids
}

// size returns the number of non-empty categories.
func (ci *categoryIndex) size() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.index)
}
