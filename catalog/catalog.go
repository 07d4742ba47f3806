// Package catalog provides the file catalogue facade: an ordered index
// (Red-Black Tree or B-Tree) holding file metadata keyed by path, plus a
// roaring-bitmap category index for tag-style lookups. A Catalog
// serializes access to the underlying tree, so it is safe for concurrent
// use even though the trees themselves are not.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/INLOpen/nexuscatalog/btree"
	"github.com/INLOpen/nexuscatalog/core"
	"github.com/INLOpen/nexuscatalog/internal/clock"
	"github.com/INLOpen/nexuscatalog/rbtree"
)

const (
	TreeTypeRBTree = "rbtree"
	TreeTypeBTree  = "btree"

	// DefaultBTreeDegree is the minimum degree used when Options does not
	// specify one.
	DefaultBTreeDegree = 5
)

// Index is the ordered key index backing a Catalog. Both tree packages
// satisfy it.
type Index interface {
	Insert(key string, meta *core.FileMetadata)
	Search(key string) (*core.FileMetadata, bool)
	Delete(key string) bool
	RangeScan(start, end string) []core.Entry
	MatchSubstring(sub string) []core.Entry
	Items() []core.Entry
	Len() int
	Height() int
	Visualize() string
}

// Options holds configuration for a Catalog.
type Options struct {
	TreeType       string // "rbtree" (default) or "btree"
	BTreeDegree    int    // minimum degree when TreeType is "btree"
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	Clock          clock.Clock // allows mocking time in tests
	Metrics        *Metrics    // injected metrics; created internally when nil
	PublishMetrics bool        // publish metrics to the global expvar namespace
	MetricsPrefix  string
}

// Catalog is the in-memory file catalogue.
type Catalog struct {
	mu     sync.RWMutex
	index  Index
	closed bool

	treeType   string
	strings    *stringStore
	categories *categoryIndex

	logger  *slog.Logger
	tracer  trace.Tracer
	clock   clock.Clock
	metrics *Metrics
}

// NewCatalog creates a Catalog backed by the tree type named in opts.
func NewCatalog(opts Options) (*Catalog, error) {
	treeType := opts.TreeType
	if treeType == "" {
		treeType = TreeTypeRBTree
	}

	var index Index
	switch treeType {
	case TreeTypeRBTree:
		index = rbtree.New()
	case TreeTypeBTree:
		degree := opts.BTreeDegree
		if degree <= 0 {
			degree = DefaultBTreeDegree
		}
		bt, err := btree.NewBTree(degree)
		if err != nil {
			return nil, fmt.Errorf("failed to create b-tree index: %w", err)
		}
		index = bt
	default:
		return nil, fmt.Errorf("unknown tree type %q", opts.TreeType)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.SystemClockDefault
	}

	metrics := opts.Metrics
	if metrics == nil {
		prefix := opts.MetricsPrefix
		if prefix == "" {
			prefix = "catalog_"
		}
		metrics = NewMetrics(opts.PublishMetrics, prefix)
	}

	c := &Catalog{
		index:      index,
		treeType:   treeType,
		strings:    newStringStore(),
		categories: newCategoryIndex(),
		logger:     logger.With("component", "Catalog"),
		clock:      clk,
		metrics:    metrics,
	}

	if opts.TracerProvider != nil {
		c.tracer = opts.TracerProvider.Tracer("github.com/INLOpen/nexuscatalog/catalog")
	} else {
		c.tracer = noop.NewTracerProvider().Tracer("")
	}

	c.logger.Info("Catalog created.", "tree_type", treeType)
	return c, nil
}

// TreeType returns the name of the backing tree implementation.
func (c *Catalog) TreeType() string {
	return c.treeType
}

// Len returns the number of indexed files.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Len()
}

// Height returns the current height of the backing tree.
func (c *Catalog) Height() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Height()
}

// Metrics returns the catalog's metrics set.
func (c *Catalog) Metrics() *Metrics {
	return c.metrics
}

// AddFile stamps fresh metadata for path and indexes it. An existing path
// is overwritten and its category memberships reconciled. Empty category
// names are ignored. The returned metadata is a copy the caller owns.
func (c *Catalog) AddFile(ctx context.Context, path string, size int64, categories ...string) (*core.FileMetadata, error) {
	_, span := c.tracer.Start(ctx, "Catalog.AddFile")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.InsertLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	if path == "" {
		span.SetStatus(codes.Error, "empty_path")
		return nil, core.ErrEmptyKey
	}

	meta := core.NewFileMetadata(path, size, c.clock.Now())
	for _, cat := range categories {
		if cat != "" {
			meta.AddCategory(cat)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return nil, core.ErrCatalogClosed
	}
	c.upsertLocked(meta)
	return meta.Clone(), nil
}

// AddFileInfo indexes caller-built metadata. The record is normalized and
// copied on the way in, so later mutation of meta does not leak into the
// catalog. An existing path is overwritten.
func (c *Catalog) AddFileInfo(ctx context.Context, meta *core.FileMetadata) error {
	_, span := c.tracer.Start(ctx, "Catalog.AddFileInfo")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.InsertLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	if meta == nil {
		span.SetStatus(codes.Error, "nil_metadata")
		return errors.New("nil file metadata")
	}
	if meta.Path == "" {
		span.SetStatus(codes.Error, "empty_path")
		return core.ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return core.ErrCatalogClosed
	}
	c.upsertLocked(normalizeMetadata(meta))
	return nil
}

// UpdateMetadata replaces the record for an already indexed path. Unknown
// paths are rejected with core.ErrNotFound.
func (c *Catalog) UpdateMetadata(ctx context.Context, meta *core.FileMetadata) error {
	_, span := c.tracer.Start(ctx, "Catalog.UpdateMetadata")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.InsertLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	if meta == nil {
		span.SetStatus(codes.Error, "nil_metadata")
		return errors.New("nil file metadata")
	}
	if meta.Path == "" {
		span.SetStatus(codes.Error, "empty_path")
		return core.ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return core.ErrCatalogClosed
	}
	if _, ok := c.index.Search(meta.Path); !ok {
		c.metrics.NotFoundTotal.Add(1)
		span.SetAttributes(attribute.Bool("file.found", false))
		return fmt.Errorf("file %q: %w", meta.Path, core.ErrNotFound)
	}
	c.upsertLocked(normalizeMetadata(meta))
	return nil
}

// upsertLocked installs meta as the canonical record for its path and
// reconciles the category bitmaps against the previous record. The caller
// holds mu.
func (c *Catalog) upsertLocked(meta *core.FileMetadata) {
	fileID := c.strings.getOrCreateID(meta.Path)

	if old, ok := c.index.Search(meta.Path); ok {
		for _, cat := range old.Categories {
			if !meta.HasCategory(cat) {
				if catID, found := c.strings.getID(cat); found {
					c.categories.remove(catID, fileID)
				}
			}
		}
		c.metrics.UpdateTotal.Add(1)
		c.logger.Debug("File record replaced.", "path", meta.Path)
	} else {
		c.metrics.InsertTotal.Add(1)
	}
	for _, cat := range meta.Categories {
		c.categories.add(c.strings.getOrCreateID(cat), fileID)
	}

	c.index.Insert(meta.Path, meta)
	c.metrics.FilesIndexed.Set(int64(c.index.Len()))
	c.metrics.CategoriesTracked.Set(int64(c.categories.size()))
}

// normalizeMetadata rebuilds a caller-supplied record so the stored copy
// has a clamped size and a sorted, deduplicated category set.
func normalizeMetadata(meta *core.FileMetadata) *core.FileMetadata {
	stored := core.NewFileMetadata(meta.Path, meta.Size, meta.CreatedAt)
	stored.ModifiedAt = meta.ModifiedAt
	stored.Compressed = meta.Compressed
	for _, cat := range meta.Categories {
		if cat != "" {
			stored.AddCategory(cat)
		}
	}
	return stored
}

// GetFile returns a copy of the metadata stored for path.
func (c *Catalog) GetFile(ctx context.Context, path string) (*core.FileMetadata, error) {
	_, span := c.tracer.Start(ctx, "Catalog.GetFile")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.GetLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	if path == "" {
		span.SetStatus(codes.Error, "empty_path")
		return nil, core.ErrEmptyKey
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return nil, core.ErrCatalogClosed
	}

	c.metrics.GetTotal.Add(1)
	meta, ok := c.index.Search(path)
	span.SetAttributes(attribute.Bool("file.found", ok))
	if !ok {
		c.metrics.NotFoundTotal.Add(1)
		return nil, fmt.Errorf("file %q: %w", path, core.ErrNotFound)
	}
	return meta.Clone(), nil
}

// RemoveFile deletes the record for path and clears its category
// memberships. Unknown paths are rejected with core.ErrNotFound.
func (c *Catalog) RemoveFile(ctx context.Context, path string) error {
	_, span := c.tracer.Start(ctx, "Catalog.RemoveFile")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.DeleteLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	if path == "" {
		span.SetStatus(codes.Error, "empty_path")
		return core.ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return core.ErrCatalogClosed
	}

	meta, ok := c.index.Search(path)
	if !ok {
		c.metrics.NotFoundTotal.Add(1)
		span.SetAttributes(attribute.Bool("file.found", false))
		return fmt.Errorf("file %q: %w", path, core.ErrNotFound)
	}

	if fileID, found := c.strings.getID(path); found {
		for _, cat := range meta.Categories {
			if catID, ok := c.strings.getID(cat); ok {
				c.categories.remove(catID, fileID)
			}
		}
	}
	c.index.Delete(path)

	c.metrics.DeleteTotal.Add(1)
	c.metrics.FilesIndexed.Set(int64(c.index.Len()))
	c.metrics.CategoriesTracked.Set(int64(c.categories.size()))
	return nil
}

// AddCategory tags an indexed file with a category.
func (c *Catalog) AddCategory(ctx context.Context, path, category string) error {
	_, span := c.tracer.Start(ctx, "Catalog.AddCategory")
	defer span.End()

	if path == "" || category == "" {
		span.SetStatus(codes.Error, "empty_argument")
		return core.ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return core.ErrCatalogClosed
	}

	meta, ok := c.index.Search(path)
	if !ok {
		c.metrics.NotFoundTotal.Add(1)
		return fmt.Errorf("file %q: %w", path, core.ErrNotFound)
	}
	if meta.AddCategory(category) {
		meta.Touch(c.clock.Now())
		c.categories.add(c.strings.getOrCreateID(category), c.strings.getOrCreateID(path))
		c.metrics.CategoriesTracked.Set(int64(c.categories.size()))
	}
	return nil
}

// RemoveCategory removes a category tag from an indexed file. Removing a
// tag the file does not carry is a no-op.
func (c *Catalog) RemoveCategory(ctx context.Context, path, category string) error {
	_, span := c.tracer.Start(ctx, "Catalog.RemoveCategory")
	defer span.End()

	if path == "" || category == "" {
		span.SetStatus(codes.Error, "empty_argument")
		return core.ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return core.ErrCatalogClosed
	}

	meta, ok := c.index.Search(path)
	if !ok {
		c.metrics.NotFoundTotal.Add(1)
		return fmt.Errorf("file %q: %w", path, core.ErrNotFound)
	}
	if meta.RemoveCategory(category) {
		meta.Touch(c.clock.Now())
		if catID, found := c.strings.getID(category); found {
			if fileID, ok := c.strings.getID(path); ok {
				c.categories.remove(catID, fileID)
			}
		}
		c.metrics.CategoriesTracked.Set(int64(c.categories.size()))
	}
	return nil
}

// FilesByCategory returns copies of every record tagged with category, in
// ascending path order. An unknown category yields an empty result.
func (c *Catalog) FilesByCategory(ctx context.Context, category string) ([]core.Entry, error) {
	_, span := c.tracer.Start(ctx, "Catalog.FilesByCategory")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.QueryLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	if category == "" {
		span.SetStatus(codes.Error, "empty_argument")
		return nil, core.ErrEmptyKey
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return nil, core.ErrCatalogClosed
	}

	c.metrics.CategoryQueryTotal.Add(1)
	catID, found := c.strings.getID(category)
	if !found {
		span.SetAttributes(attribute.Int("result.count", 0))
		return nil, nil
	}

	bm := c.categories.bitmap(catID)
	out := make([]core.Entry, 0, bm.GetCardinality())
	iter := bm.Iterator()
	for iter.HasNext() {
		fileID := iter.Next()
		path, ok := c.strings.getString(fileID)
		if !ok {
			continue
		}
		if meta, ok := c.index.Search(path); ok {
			out = append(out, core.Entry{Key: path, Meta: meta.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// Categories returns the sorted names of every category holding at least
// one file.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	_, span := c.tracer.Start(ctx, "Catalog.Categories")
	defer span.End()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return nil, core.ErrCatalogClosed
	}

	ids := c.categories.categoryIDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := c.strings.getString(id); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	span.SetAttributes(attribute.Int("result.count", len(names)))
	return names, nil
}

// SearchSubstring returns copies of every record whose path contains sub,
// case-insensitively, in ascending path order.
func (c *Catalog) SearchSubstring(ctx context.Context, sub string) ([]core.Entry, error) {
	_, span := c.tracer.Start(ctx, "Catalog.SearchSubstring")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.QueryLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return nil, core.ErrCatalogClosed
	}

	c.metrics.QueryTotal.Add(1)
	out := cloneEntries(c.index.MatchSubstring(sub))
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// Range returns copies of every record with start <= path <= end, in
// ascending path order. An inverted interval yields an empty result.
func (c *Catalog) Range(ctx context.Context, start, end string) ([]core.Entry, error) {
	_, span := c.tracer.Start(ctx, "Catalog.Range")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.QueryLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return nil, core.ErrCatalogClosed
	}

	c.metrics.QueryTotal.Add(1)
	out := cloneEntries(c.index.RangeScan(start, end))
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// ListAll returns copies of every record in ascending path order.
func (c *Catalog) ListAll(ctx context.Context) ([]core.Entry, error) {
	_, span := c.tracer.Start(ctx, "Catalog.ListAll")
	startTime := c.clock.Now()
	defer func() {
		duration := c.clock.Now().Sub(startTime).Seconds()
		observeLatency(c.metrics.QueryLatencyHist, duration)
		span.SetAttributes(attribute.Float64("duration_seconds", duration))
		span.End()
	}()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		span.SetStatus(codes.Error, "catalog_closed")
		return nil, core.ErrCatalogClosed
	}

	c.metrics.QueryTotal.Add(1)
	out := cloneEntries(c.index.Items())
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// Visualize renders the backing tree's structure for debugging.
func (c *Catalog) Visualize() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Visualize()
}

// Close marks the catalog closed; subsequent operations fail with
// core.ErrCatalogClosed. Closing twice is a no-op.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("Catalog closed.", "files", c.index.Len())
	return nil
}

func cloneEntries(in []core.Entry) []core.Entry {
	out := make([]core.Entry, len(in))
	for i, e := range in {
		out[i] = core.Entry{Key: e.Key, Meta: e.Meta.Clone()}
	}
	return out
}
