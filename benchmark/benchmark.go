// Package benchmark measures insert and lookup performance of the
// catalogue's index structures over synthetic workloads. A skip list
// runs alongside the trees as the ordered-map baseline they are judged
// against. Latency distributions are captured with t-digests so the
// reported quantiles stay accurate without storing every sample.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/INLOpen/skiplist"
	"github.com/caio/go-tdigest/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/INLOpen/nexuscatalog/btree"
	"github.com/INLOpen/nexuscatalog/core"
	"github.com/INLOpen/nexuscatalog/internal/clock"
	"github.com/INLOpen/nexuscatalog/rbtree"
)

// Options configures a benchmark run.
type Options struct {
	// Items is the number of keys inserted into each contender.
	Items int
	// SearchSamples is the number of random lookups after the insert
	// phase. Zero or negative defaults to a tenth of Items.
	SearchSamples int
	// BTreeDegree is the minimum degree for the B-Tree contender.
	// Zero or negative defaults to 5.
	BTreeDegree int
	// OutputDir receives one JSON result file per contender. Empty
	// disables writing.
	OutputDir string
	// Seed fixes the shuffle and sampling order. Zero derives a seed
	// from the clock.
	Seed int64
	// Logger for progress. Defaults to a discarding logger.
	Logger *slog.Logger
	// Clock drives timestamps. Defaults to the system clock.
	Clock clock.Clock
}

// LatencyStats summarizes one operation's latency distribution in
// microseconds.
type LatencyStats struct {
	OpsPerSec float64 `json:"ops_per_sec"`
	P50Micros float64 `json:"p50_micros"`
	P95Micros float64 `json:"p95_micros"`
	P99Micros float64 `json:"p99_micros"`
}

// HostInfo is a snapshot of the machine the benchmark ran on.
type HostInfo struct {
	LogicalCores     int    `json:"logical_cores"`
	TotalMemoryBytes uint64 `json:"total_memory_bytes"`
	GoVersion        string `json:"go_version"`
}

// Result is the measured outcome for a single contender.
type Result struct {
	Tree        string       `json:"tree"`
	Items       int          `json:"items"`
	Searches    int          `json:"searches"`
	BTreeDegree int          `json:"btree_degree,omitempty"`
	Insert      LatencyStats `json:"insert"`
	Search      LatencyStats `json:"search"`
	Host        HostInfo     `json:"host"`
	StartedAt   time.Time    `json:"started_at"`
}

// contender is one index implementation under measurement.
type contender interface {
	name() string
	insert(key string, meta *core.FileMetadata)
	search(key string) bool
}

type rbtreeContender struct{ tree *rbtree.Tree }

func (c *rbtreeContender) name() string { return "rbtree" }

func (c *rbtreeContender) insert(key string, meta *core.FileMetadata) {
	c.tree.Insert(key, meta)
}

func (c *rbtreeContender) search(key string) bool {
	_, ok := c.tree.Search(key)
	return ok
}

type btreeContender struct{ tree *btree.BTree }

func (c *btreeContender) name() string { return "btree" }

func (c *btreeContender) insert(key string, meta *core.FileMetadata) {
	c.tree.Insert(key, meta)
}

func (c *btreeContender) search(key string) bool {
	_, ok := c.tree.Search(key)
	return ok
}

type skiplistContender struct {
	list *skiplist.SkipList[string, *core.FileMetadata]
}

func newSkiplistContender() *skiplistContender {
	return &skiplistContender{
		list: skiplist.NewWithComparator[string, *core.FileMetadata](strings.Compare),
	}
}

func (c *skiplistContender) name() string { return "skiplist" }

func (c *skiplistContender) insert(key string, meta *core.FileMetadata) {
	c.list.Insert(key, meta)
}

func (c *skiplistContender) search(key string) bool {
	// Seek returns the first node at or after key.
	node, ok := c.list.Seek(key)
	return ok && node.Key() == key
}

// Runner executes the benchmark suite.
type Runner struct {
	items         int
	searchSamples int
	degree        int
	outputDir     string
	seed          int64
	logger        *slog.Logger
	clock         clock.Clock
}

// NewRunner validates opts and builds a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Items <= 0 {
		return nil, fmt.Errorf("benchmark: item count must be positive, got %d", opts.Items)
	}
	searchSamples := opts.SearchSamples
	if searchSamples <= 0 {
		searchSamples = opts.Items / 10
		if searchSamples == 0 {
			searchSamples = 1
		}
	}
	degree := opts.BTreeDegree
	if degree <= 0 {
		degree = 5
	}
	if degree < btree.MinDegree {
		return nil, fmt.Errorf("benchmark: b-tree degree %d: %w", degree, core.ErrInvalidDegree)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.SystemClockDefault
	}
	seed := opts.Seed
	if seed == 0 {
		seed = clk.Now().UnixNano()
	}

	return &Runner{
		items:         opts.Items,
		searchSamples: searchSamples,
		degree:        degree,
		outputDir:     opts.OutputDir,
		seed:          seed,
		logger:        logger.With("component", "Benchmark"),
		clock:         clk,
	}, nil
}

// Run measures every contender over the same shuffled workload and
// returns the results in contender order. When OutputDir is set, each
// result is also written as JSON.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	host := r.hostInfo()
	keys := benchmarkKeys(r.items)
	metas := make([]*core.FileMetadata, r.items)
	now := r.clock.Now()
	for i, key := range keys {
		metas[i] = core.NewFileMetadata(key, int64(i), now)
	}

	rng := rand.New(rand.NewSource(r.seed))
	order := rng.Perm(r.items)
	samples := make([]int, r.searchSamples)
	for i := range samples {
		samples[i] = rng.Intn(r.items)
	}

	bt, err := btree.NewBTree(r.degree)
	if err != nil {
		return nil, fmt.Errorf("failed to create b-tree contender: %w", err)
	}
	contenders := []contender{
		&rbtreeContender{tree: rbtree.New()},
		&btreeContender{tree: bt},
		newSkiplistContender(),
	}

	r.logger.Info("Starting benchmark.",
		"items", r.items, "searches", r.searchSamples, "btree_degree", r.degree, "seed", r.seed)

	results := make([]Result, 0, len(contenders))
	for _, c := range contenders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.measure(c, keys, metas, order, samples, host)
		if err != nil {
			return nil, err
		}
		r.logger.Info("Contender finished.",
			"tree", res.Tree,
			"insert_ops_per_sec", res.Insert.OpsPerSec,
			"search_ops_per_sec", res.Search.OpsPerSec,
			"search_p99_micros", res.Search.P99Micros)
		results = append(results, res)
	}

	if r.outputDir != "" {
		if err := r.writeResults(results); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) measure(c contender, keys []string, metas []*core.FileMetadata, order, samples []int, host HostInfo) (Result, error) {
	insertTD, err := tdigest.New()
	if err != nil {
		return Result{}, fmt.Errorf("tdigest.New failed: %w", err)
	}
	searchTD, err := tdigest.New()
	if err != nil {
		return Result{}, fmt.Errorf("tdigest.New failed: %w", err)
	}
	started := r.clock.Now()

	var insertTotal time.Duration
	for _, idx := range order {
		begin := time.Now()
		c.insert(keys[idx], metas[idx])
		elapsed := time.Since(begin)
		insertTotal += elapsed
		if err := insertTD.AddWeighted(float64(elapsed.Nanoseconds())/1e3, 1); err != nil {
			return Result{}, fmt.Errorf("tdigest AddWeighted failed: %w", err)
		}
	}

	var searchTotal time.Duration
	for _, idx := range samples {
		begin := time.Now()
		found := c.search(keys[idx])
		elapsed := time.Since(begin)
		searchTotal += elapsed
		if !found {
			return Result{}, fmt.Errorf("%s lost key %q after insert", c.name(), keys[idx])
		}
		if err := searchTD.AddWeighted(float64(elapsed.Nanoseconds())/1e3, 1); err != nil {
			return Result{}, fmt.Errorf("tdigest AddWeighted failed: %w", err)
		}
	}

	res := Result{
		Tree:      c.name(),
		Items:     len(order),
		Searches:  len(samples),
		Insert:    summarize(insertTD, len(order), insertTotal),
		Search:    summarize(searchTD, len(samples), searchTotal),
		Host:      host,
		StartedAt: started,
	}
	if c.name() == "btree" {
		res.BTreeDegree = r.degree
	}
	return res, nil
}

func summarize(td *tdigest.TDigest, ops int, total time.Duration) LatencyStats {
	stats := LatencyStats{
		P50Micros: td.Quantile(0.50),
		P95Micros: td.Quantile(0.95),
		P99Micros: td.Quantile(0.99),
	}
	if total > 0 {
		stats.OpsPerSec = float64(ops) / total.Seconds()
	}
	return stats
}

func (r *Runner) hostInfo() HostInfo {
	info := HostInfo{GoVersion: runtime.Version()}
	if cores, err := cpu.Counts(true); err == nil {
		info.LogicalCores = cores
	} else {
		r.logger.Warn("Could not read CPU count, falling back to GOMAXPROCS view.", "error", err)
		info.LogicalCores = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemoryBytes = vm.Total
	} else {
		r.logger.Warn("Could not read memory stats.", "error", err)
	}
	return info
}

func (r *Runner) writeResults(results []Result) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create benchmark output directory %s: %w", r.outputDir, err)
	}
	stamp := r.clock.Now().UTC().Format("20060102_150405")
	for _, res := range results {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result for %s: %w", res.Tree, err)
		}
		path := filepath.Join(r.outputDir, fmt.Sprintf("benchmark_%s_%s.json", res.Tree, stamp))
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write benchmark result %s: %w", path, err)
		}
		r.logger.Info("Benchmark result written.", "path", path)
	}
	return nil
}

// benchmarkKeys builds the synthetic key space key_0 .. key_{n-1}.
func benchmarkKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key_%d", i)
	}
	return keys
}
