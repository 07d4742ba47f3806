// Package batch compresses whole directory trees. A Processor walks a
// source directory, encodes every matching file with a configurable
// codec, mirrors the results under an output directory and optionally
// records them in a catalogue. Files are processed concurrently with a
// bounded worker count; one file failing does not stop the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/INLOpen/nexuscatalog/catalog"
	"github.com/INLOpen/nexuscatalog/core"
	"github.com/INLOpen/nexuscatalog/internal/clock"
	"github.com/INLOpen/nexuscatalog/sys"
)

// Options configures a Processor.
type Options struct {
	// Compressor encodes each file. Required.
	Compressor core.Compressor
	// OutputDir receives the compressed files, mirroring the source
	// layout. Required; created if absent.
	OutputDir string
	// OutputSuffix is appended to each output file name. Defaults to
	// "." plus the compressor's codec name.
	OutputSuffix string
	// Extensions restricts the run to files with these extensions
	// (case-insensitive, with or without the leading dot). Empty means
	// every regular file.
	Extensions []string
	// MaxParallel bounds the number of files being compressed at once.
	// Zero or negative means runtime.NumCPU().
	MaxParallel int
	// Preallocate reserves space for each output file before writing.
	Preallocate bool
	// BufferSize pre-grows the per-file compression buffer. Zero keeps
	// the pool's default.
	BufferSize int
	// Catalog, when set, is updated with metadata for every output
	// file.
	Catalog *catalog.Catalog
	// Logger for progress and per-file warnings. Defaults to a
	// discarding logger.
	Logger *slog.Logger
	// Clock drives timestamps. Defaults to the system clock.
	Clock clock.Clock
}

// FileResult is the outcome for a single source file.
type FileResult struct {
	Source   string
	Output   string
	InBytes  int64
	OutBytes int64
	Err      error
}

// Summary aggregates a whole run. Files is sorted by source path.
type Summary struct {
	Processed int
	Failed    int
	Skipped   int
	InBytes   int64
	OutBytes  int64
	Elapsed   time.Duration
	Files     []FileResult
}

// SpaceSaving returns the percentage of input bytes the run saved
// across all successfully compressed files.
func (s *Summary) SpaceSaving() float64 {
	if s.InBytes == 0 {
		return 0
	}
	return (1 - float64(s.OutBytes)/float64(s.InBytes)) * 100
}

// Processor runs batch compression jobs. It is safe for a single Run at
// a time; construct one per concurrent job.
type Processor struct {
	compressor  core.Compressor
	outputDir   string
	suffix      string
	extensions  map[string]bool
	maxParallel int
	preallocate bool
	bufferSize  int
	catalog     *catalog.Catalog
	logger      *slog.Logger
	clock       clock.Clock
}

// NewProcessor validates opts and builds a Processor.
func NewProcessor(opts Options) (*Processor, error) {
	if opts.Compressor == nil {
		return nil, errors.New("batch: compressor is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("batch: output directory is required")
	}

	suffix := opts.OutputSuffix
	if suffix == "" {
		suffix = "." + opts.Compressor.Type().String()
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}

	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.SystemClockDefault
	}

	return &Processor{
		compressor:  opts.Compressor,
		outputDir:   opts.OutputDir,
		suffix:      suffix,
		extensions:  exts,
		maxParallel: maxParallel,
		preallocate: opts.Preallocate,
		bufferSize:  opts.BufferSize,
		catalog:     opts.Catalog,
		logger:      logger.With("component", "BatchProcessor"),
		clock:       clk,
	}, nil
}

// Run compresses every matching file under srcDir. Per-file failures
// are recorded in the summary and logged; only setup problems and
// context cancellation abort the run.
func (p *Processor) Run(ctx context.Context, srcDir string) (*Summary, error) {
	start := p.clock.Now()

	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source directory %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", srcDir)
	}
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", p.outputDir, err)
	}

	p.logger.Info("Starting batch compression.",
		"source", srcDir, "output", p.outputDir, "codec", p.compressor.Type().String(), "parallel", p.maxParallel)

	summary := &Summary{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() || strings.HasSuffix(d.Name(), p.suffix) || !p.wantsFile(path) {
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		g.Go(func() error {
			res := p.processFile(gctx, path, rel)
			mu.Lock()
			defer mu.Unlock()
			if res.Err != nil {
				summary.Failed++
			} else {
				summary.Processed++
				summary.InBytes += res.InBytes
				summary.OutBytes += res.OutBytes
			}
			summary.Files = append(summary.Files, res)
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk source directory %s: %w", srcDir, walkErr)
	}

	sort.Slice(summary.Files, func(i, j int) bool {
		return summary.Files[i].Source < summary.Files[j].Source
	})
	summary.Elapsed = p.clock.Now().Sub(start)

	p.logger.Info("Batch compression finished.",
		"processed", summary.Processed, "failed", summary.Failed, "skipped", summary.Skipped,
		"in_bytes", summary.InBytes, "out_bytes", summary.OutBytes, "elapsed", summary.Elapsed.String())
	return summary, nil
}

func (p *Processor) wantsFile(path string) bool {
	if len(p.extensions) == 0 {
		return true
	}
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

func (p *Processor) processFile(ctx context.Context, srcPath, rel string) FileResult {
	res := FileResult{Source: srcPath}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		res.Err = fmt.Errorf("failed to read source file %s: %w", srcPath, err)
		p.logger.Warn("Skipping unreadable file.", "path", srcPath, "error", err)
		return res
	}
	res.InBytes = int64(len(data))

	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	if p.bufferSize > buf.Cap() {
		buf.Grow(p.bufferSize - buf.Len())
	}
	if err := p.compressor.CompressTo(buf, data); err != nil {
		res.Err = fmt.Errorf("failed to compress %s: %w", srcPath, err)
		p.logger.Warn("Compression failed for file.", "path", srcPath, "error", err)
		return res
	}
	res.OutBytes = int64(buf.Len())

	outPath := filepath.Join(p.outputDir, rel+p.suffix)
	if err := p.writeOutput(outPath, buf.Bytes()); err != nil {
		res.Err = err
		p.logger.Warn("Writing output failed for file.", "path", outPath, "error", err)
		return res
	}
	res.Output = outPath

	if p.catalog != nil {
		if err := p.indexOutput(ctx, srcPath, outPath, res.OutBytes); err != nil {
			res.Err = err
			p.logger.Warn("Indexing output failed for file.", "path", outPath, "error", err)
			return res
		}
	}

	p.logger.Debug("Compressed file.",
		"source", srcPath, "output", outPath, "in_bytes", res.InBytes, "out_bytes", res.OutBytes)
	return res
}

func (p *Processor) writeOutput(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", outPath, err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outPath, err)
	}

	if p.preallocate {
		if err := sys.Preallocate(out, int64(len(data))); err != nil && !errors.Is(err, sys.ErrPreallocNotSupported) {
			p.logger.Warn("Preallocation failed, writing without it.", "path", outPath, "error", err)
		}
	}

	if _, err := out.Write(data); err != nil {
		out.Close()
		return fmt.Errorf("failed to write output file %s: %w", outPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", outPath, err)
	}
	return nil
}

// indexOutput records the compressed file in the catalogue, categorized
// by the source file's extension and by the codec that produced it.
func (p *Processor) indexOutput(ctx context.Context, srcPath, outPath string, size int64) error {
	meta := core.NewFileMetadata(outPath, size, p.clock.Now())
	meta.Compressed = p.compressor.Type() != core.CompressionNone
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(srcPath)), "."); ext != "" {
		meta.AddCategory(ext)
	}
	meta.AddCategory(p.compressor.Type().String())

	if err := p.catalog.AddFileInfo(ctx, meta); err != nil {
		return fmt.Errorf("failed to index output %s: %w", outPath, err)
	}
	return nil
}
