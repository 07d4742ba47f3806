package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/term"

	"github.com/INLOpen/nexuscatalog/batch"
	"github.com/INLOpen/nexuscatalog/benchmark"
	"github.com/INLOpen/nexuscatalog/catalog"
	"github.com/INLOpen/nexuscatalog/compressors"
	"github.com/INLOpen/nexuscatalog/config"
	"github.com/INLOpen/nexuscatalog/core"
	"github.com/INLOpen/nexuscatalog/huffman"
	"github.com/INLOpen/nexuscatalog/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compress":
		handleCompress(os.Args[2:])
	case "decompress":
		handleDecompress(os.Args[2:])
	case "analyze":
		handleAnalyze(os.Args[2:])
	case "batch":
		handleBatch(os.Args[2:])
	case "bench":
		handleBench(os.Args[2:])
	case "serve":
		handleServe(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: nexuscatalog <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  compress   - Compress a single file")
	fmt.Println("  decompress - Decompress a single file")
	fmt.Println("  analyze    - Report the entropy profile of a file")
	fmt.Println("  batch      - Compress a directory tree and index the results")
	fmt.Println("  bench      - Benchmark the index tree implementations")
	fmt.Println("  serve      - Run the debug/metrics HTTP server")
	fmt.Println("\nUse 'nexuscatalog <command> -h' for more information on a specific command.")
}

// createLogger creates a slog.Logger based on the provided configuration.
func createLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// initTracerProvider configures an OpenTelemetry TracerProvider that
// exports spans to an OTLP collector, or a no-op provider when tracing
// is disabled.
func initTracerProvider(cfg config.TracingConfig, logger *slog.Logger) (*sdktrace.TracerProvider, func(), error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), func() {}, nil
	}

	logger.Info("Initializing distributed tracing...", "protocol", cfg.Protocol, "endpoint", cfg.Endpoint)

	ctx := context.Background()
	var exporter sdktrace.SpanExporter
	var err error
	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()))
	case "grpc":
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()))
	default:
		return nil, nil, fmt.Errorf("unsupported tracing protocol: %q", cfg.Protocol)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("nexuscatalog")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	cleanup := func() {
		logger.Info("Shutting down tracer provider...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracer provider", "error", err)
		}
	}
	return tp, cleanup, nil
}

// loadEnvironment loads the configuration file and builds the logger
// every subcommand starts from.
func loadEnvironment(configPath string) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, closer, err := createLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, closer, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// confirmOverwrite guards destructive writes. Without -force it asks on
// a terminal and refuses everywhere else.
func confirmOverwrite(path string, force bool) bool {
	if force {
		return true
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Error: %s already exists; use -force to overwrite.\n", path)
		return false
	}
	fmt.Printf("%s already exists. Overwrite? [y/N]: ", path)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func newCompressor(name string) (core.Compressor, error) {
	ctype, err := core.CompressionTypeFromString(name)
	if err != nil {
		return nil, err
	}
	return compressors.NewCompressor(ctype)
}

func handleCompress(args []string) {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file.")
	in := fs.String("in", "", "Source file to compress.")
	out := fs.String("out", "", "Destination file. Defaults to the source path plus the output suffix.")
	algorithm := fs.String("algorithm", "", "Codec: none, snappy, lz4, zstd, huffman. Defaults to compression.default_codec.")
	force := fs.Bool("force", false, "Overwrite the destination without asking.")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("Error: -in is required.")
		fs.Usage()
		os.Exit(1)
	}

	cfg, _, logCloser, err := loadEnvironment(*configPath)
	if err != nil {
		fatal("%v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	codecName := *algorithm
	if codecName == "" {
		codecName = cfg.Compression.DefaultCodec
	}
	ctype, err := core.CompressionTypeFromString(codecName)
	if err != nil {
		fatal("%v", err)
	}

	dst := *out
	if dst == "" {
		dst = *in + cfg.Batch.OutputSuffix
	}
	if !confirmOverwrite(dst, *force) {
		os.Exit(1)
	}

	start := time.Now()
	var originalSize, compressedSize int64
	if ctype == core.CompressionHuffman {
		// The Huffman path streams the file in two passes instead of
		// loading it whole.
		originalSize, compressedSize, err = huffman.CompressFile(*in, dst)
		if err != nil {
			fatal("%v", err)
		}
	} else {
		comp, err := compressors.NewCompressor(ctype)
		if err != nil {
			fatal("%v", err)
		}
		data, err := os.ReadFile(*in)
		if err != nil {
			fatal("failed to read source file %s: %v", *in, err)
		}
		buf := core.BufferPool.Get()
		defer core.BufferPool.Put(buf)
		if err := comp.CompressTo(buf, data); err != nil {
			fatal("failed to compress %s: %v", *in, err)
		}
		if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
			fatal("failed to write destination file %s: %v", dst, err)
		}
		originalSize = int64(len(data))
		compressedSize = int64(buf.Len())
	}

	fmt.Printf("Compressed %s -> %s (%s)\n", *in, dst, codecName)
	fmt.Printf("  %d bytes -> %d bytes, saved %.2f%% in %s\n",
		originalSize, compressedSize,
		huffman.CompressionRatio(originalSize, compressedSize),
		time.Since(start).Round(time.Millisecond))
}

func handleDecompress(args []string) {
	fs := flag.NewFlagSet("decompress", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file.")
	in := fs.String("in", "", "Compressed file to restore.")
	out := fs.String("out", "", "Destination file. Defaults to the source path minus the output suffix.")
	algorithm := fs.String("algorithm", "", "Codec the file was compressed with. Defaults to compression.default_codec.")
	force := fs.Bool("force", false, "Overwrite the destination without asking.")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("Error: -in is required.")
		fs.Usage()
		os.Exit(1)
	}

	cfg, _, logCloser, err := loadEnvironment(*configPath)
	if err != nil {
		fatal("%v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	codecName := *algorithm
	if codecName == "" {
		codecName = cfg.Compression.DefaultCodec
	}
	ctype, err := core.CompressionTypeFromString(codecName)
	if err != nil {
		fatal("%v", err)
	}

	dst := *out
	if dst == "" {
		if !strings.HasSuffix(*in, cfg.Batch.OutputSuffix) {
			fatal("cannot derive an output name from %s; pass -out", *in)
		}
		dst = strings.TrimSuffix(*in, cfg.Batch.OutputSuffix)
	}
	if !confirmOverwrite(dst, *force) {
		os.Exit(1)
	}

	start := time.Now()
	var restoredSize int64
	if ctype == core.CompressionHuffman {
		restoredSize, err = huffman.DecompressFile(*in, dst)
		if err != nil {
			fatal("%v", err)
		}
	} else {
		comp, err := compressors.NewCompressor(ctype)
		if err != nil {
			fatal("%v", err)
		}
		data, err := os.ReadFile(*in)
		if err != nil {
			fatal("failed to read compressed file %s: %v", *in, err)
		}
		rc, err := comp.Decompress(data)
		if err != nil {
			fatal("failed to decompress %s: %v", *in, err)
		}
		restored, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			fatal("failed to decompress %s: %v", *in, err)
		}
		if err := os.WriteFile(dst, restored, 0o644); err != nil {
			fatal("failed to write destination file %s: %v", dst, err)
		}
		restoredSize = int64(len(restored))
	}

	fmt.Printf("Decompressed %s -> %s (%s)\n", *in, dst, codecName)
	fmt.Printf("  restored %d bytes in %s\n", restoredSize, time.Since(start).Round(time.Millisecond))
}

func handleAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	in := fs.String("in", "", "File to analyze.")
	top := fs.Int("top", 10, "Number of most frequent symbols to list.")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("Error: -in is required.")
		fs.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fatal("failed to read file %s: %v", *in, err)
	}

	a := huffman.Analyze(data)
	fmt.Printf("Analysis of %s\n", *in)
	fmt.Printf("  total bytes:       %d\n", a.TotalBytes)
	fmt.Printf("  distinct symbols:  %d\n", a.DistinctSymbols)
	fmt.Printf("  entropy:           %.4f bits/symbol\n", a.EntropyBits)
	fmt.Printf("  estimated saving:  %.2f%%\n", a.EstimatedRatio)

	symbols := a.TopSymbols(*top)
	if len(symbols) == 0 {
		return
	}
	fmt.Printf("  top %d symbols:\n", len(symbols))
	for _, sc := range symbols {
		fmt.Printf("    %-6s %10d  (%.2f%%)\n",
			renderSymbol(sc.Symbol), sc.Count, float64(sc.Count)*100/float64(a.TotalBytes))
	}
}

// renderSymbol shows printable bytes as characters and the rest as hex.
func renderSymbol(b byte) string {
	if b >= 0x21 && b <= 0x7e {
		return fmt.Sprintf("%q", string(b))
	}
	switch b {
	case ' ':
		return "SP"
	case '\n':
		return "LF"
	case '\t':
		return "TAB"
	case '\r':
		return "CR"
	}
	return fmt.Sprintf("0x%02x", b)
}

func handleBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file.")
	src := fs.String("src", "", "Source directory to compress.")
	dst := fs.String("dst", "", "Output directory. Defaults to batch.output_dir.")
	algorithm := fs.String("algorithm", "", "Codec: none, snappy, lz4, zstd, huffman. Defaults to compression.default_codec.")
	parallel := fs.Int("parallel", 0, "Concurrent workers. Defaults to batch.max_parallel, 0 meaning one per CPU.")
	fs.Parse(args)

	if *src == "" {
		fmt.Println("Error: -src is required.")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger, logCloser, err := loadEnvironment(*configPath)
	if err != nil {
		fatal("%v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	tp, tracerCleanup, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		fatal("%v", err)
	}
	defer tracerCleanup()

	codecName := *algorithm
	if codecName == "" {
		codecName = cfg.Compression.DefaultCodec
	}
	comp, err := newCompressor(codecName)
	if err != nil {
		fatal("%v", err)
	}

	var cat *catalog.Catalog
	if cfg.Batch.IndexResults {
		cat, err = catalog.NewCatalog(catalog.Options{
			TreeType:       cfg.Catalog.TreeType,
			BTreeDegree:    cfg.Catalog.BTreeDegree,
			Logger:         logger,
			TracerProvider: tp,
			PublishMetrics: true,
		})
		if err != nil {
			fatal("failed to create catalog: %v", err)
		}
		defer cat.Close()
	}

	outputDir := *dst
	if outputDir == "" {
		outputDir = cfg.Batch.OutputDir
	}
	maxParallel := *parallel
	if maxParallel == 0 {
		maxParallel = cfg.Batch.MaxParallel
	}

	proc, err := batch.NewProcessor(batch.Options{
		Compressor:   comp,
		OutputDir:    outputDir,
		OutputSuffix: cfg.Batch.OutputSuffix,
		Extensions:   cfg.Batch.Extensions,
		MaxParallel:  maxParallel,
		Preallocate:  cfg.Batch.Preallocate,
		BufferSize:   cfg.Compression.BufferSizeBytes,
		Catalog:      cat,
		Logger:       logger,
	})
	if err != nil {
		fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := proc.Run(ctx, *src)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fatal("batch run interrupted")
		}
		fatal("%v", err)
	}

	fmt.Printf("Batch compression of %s finished in %s\n", *src, summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("  processed: %d  failed: %d  skipped: %d\n", summary.Processed, summary.Failed, summary.Skipped)
	fmt.Printf("  %d bytes -> %d bytes, saved %.2f%%\n", summary.InBytes, summary.OutBytes, summary.SpaceSaving())
	if cat != nil {
		fmt.Printf("  indexed %d files in a %s of height %d\n", cat.Len(), cat.TreeType(), cat.Height())
	}
	if summary.Failed > 0 {
		for _, res := range summary.Files {
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", res.Source, res.Err)
			}
		}
		os.Exit(1)
	}
}

func handleBench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file.")
	items := fs.Int("items", 0, "Keys per contender. Defaults to benchmark.items.")
	searches := fs.Int("searches", 0, "Random lookups per contender. Defaults to benchmark.search_samples.")
	degree := fs.Int("degree", 0, "B-Tree minimum degree. Defaults to benchmark.btree_degree.")
	out := fs.String("out", "", "Directory for JSON results. Defaults to benchmark.output_dir; \"none\" disables writing.")
	seed := fs.Int64("seed", 0, "Workload shuffle seed. 0 derives one from the current time.")
	fs.Parse(args)

	cfg, logger, logCloser, err := loadEnvironment(*configPath)
	if err != nil {
		fatal("%v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	opts := benchmark.Options{
		Items:         cfg.Benchmark.Items,
		SearchSamples: cfg.Benchmark.SearchSamples,
		BTreeDegree:   cfg.Benchmark.BTreeDegree,
		OutputDir:     cfg.Benchmark.OutputDir,
		Seed:          *seed,
		Logger:        logger,
	}
	if *items > 0 {
		opts.Items = *items
	}
	if *searches > 0 {
		opts.SearchSamples = *searches
	}
	if *degree > 0 {
		opts.BTreeDegree = *degree
	}
	if *out != "" {
		opts.OutputDir = *out
	}
	if opts.OutputDir == "none" {
		opts.OutputDir = ""
	}

	runner, err := benchmark.NewRunner(opts)
	if err != nil {
		fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := runner.Run(ctx)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Benchmark over %d items, %d searches\n", opts.Items, opts.SearchSamples)
	for _, res := range results {
		fmt.Printf("  %-9s insert %9.0f ops/s (p50 %6.2fus, p99 %6.2fus)  search %9.0f ops/s (p50 %6.2fus, p99 %6.2fus)\n",
			res.Tree,
			res.Insert.OpsPerSec, res.Insert.P50Micros, res.Insert.P99Micros,
			res.Search.OpsPerSec, res.Search.P50Micros, res.Search.P99Micros)
	}
	if opts.OutputDir != "" {
		fmt.Printf("Results written to %s\n", opts.OutputDir)
	}
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to the configuration file.")
	listen := fs.String("listen", "", "Listen address. Overrides debug.listen_address.")
	fs.Parse(args)

	cfg, logger, logCloser, err := loadEnvironment(*configPath)
	if err != nil {
		fatal("%v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	if *listen != "" {
		cfg.Debug.ListenAddress = *listen
		cfg.Debug.Enabled = true
	}
	if !cfg.Debug.Enabled {
		fatal("debug server is disabled in the configuration; enable debug.enabled or pass -listen")
	}

	metricSrv := server.NewMetricsServer(&cfg.Debug, logger)

	var collector *server.SystemCollector
	if cfg.SelfMonitoring.Enabled {
		interval := config.ParseDuration(cfg.SelfMonitoring.Interval, 15*time.Second, logger)
		diskPath := cfg.Batch.OutputDir
		if diskPath == "" {
			diskPath = "."
		}
		collector = server.NewSystemCollector(diskPath, interval, cfg.SelfMonitoring.MetricPrefix, logger)
		collector.Start()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- metricSrv.Start()
	}()

	logger.Info("Debug server running. Press Ctrl+C to exit.")

	select {
	case err := <-serverErrChan:
		if collector != nil {
			collector.Stop()
		}
		if err != nil {
			logger.Error("Debug server exited with an error.", "error", err)
			os.Exit(1)
		}
	case <-quit:
		logger.Info("Shutdown signal received. Stopping...")
		metricSrv.Stop()
		<-serverErrChan
		if collector != nil {
			collector.Stop()
		}
		logger.Info("Exited gracefully.")
	}
}
