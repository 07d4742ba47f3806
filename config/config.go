package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/nexuscatalog/core"
)

// CatalogConfig holds catalogue index configurations.
type CatalogConfig struct {
	TreeType    string `yaml:"tree_type"`    // "rbtree" or "btree"
	BTreeDegree int    `yaml:"btree_degree"` // minimum degree when tree_type is "btree"
}

// CompressionConfig holds codec configurations.
type CompressionConfig struct {
	DefaultCodec    string `yaml:"default_codec"` // none, snappy, lz4, zstd, huffman
	BufferSizeBytes int    `yaml:"buffer_size_bytes"`
}

// BatchConfig holds batch compression run configurations.
type BatchConfig struct {
	MaxParallel  int      `yaml:"max_parallel"` // 0 means one worker per CPU
	Extensions   []string `yaml:"extensions"`   // file extensions to pick up, e.g. ".log"
	OutputDir    string   `yaml:"output_dir"`
	OutputSuffix string   `yaml:"output_suffix"`
	Preallocate  bool     `yaml:"preallocate"`
	IndexResults bool     `yaml:"index_results"` // record outputs in the catalogue
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// DebugConfig holds debugging-related configurations.
type DebugConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ListenAddress    string `yaml:"listen_address"`
	PProfEnabled     bool   `yaml:"pprof_enabled"`
	MetricsEnabled   bool   `yaml:"metrics_enabled"`
	MonitorUIEnabled bool   `yaml:"monitor_ui_enabled"`
}

// SelfMonitoringConfig holds the system stats collector configuration.
type SelfMonitoringConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Interval     string `yaml:"interval"`
	MetricPrefix string `yaml:"metric_prefix"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// BenchmarkConfig holds tree benchmark run configurations.
type BenchmarkConfig struct {
	Items         int    `yaml:"items"`
	SearchSamples int    `yaml:"search_samples"`
	BTreeDegree   int    `yaml:"btree_degree"`
	OutputDir     string `yaml:"output_dir"`
}

// Config is the top-level configuration struct.
type Config struct {
	Catalog        CatalogConfig        `yaml:"catalog"`
	Compression    CompressionConfig    `yaml:"compression"`
	Batch          BatchConfig          `yaml:"batch"`
	Logging        LoggingConfig        `yaml:"logging"`
	Debug          DebugConfig          `yaml:"debug"`
	SelfMonitoring SelfMonitoringConfig `yaml:"self_monitoring"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Benchmark      BenchmarkConfig      `yaml:"benchmark"`
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// Load reads configuration from an io.Reader.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	// Set default values
	cfg := &Config{
		Catalog: CatalogConfig{
			TreeType:    "rbtree",
			BTreeDegree: 5,
		},
		Compression: CompressionConfig{
			DefaultCodec:    "huffman",
			BufferSizeBytes: 32 * 1024, // 32 KiB
		},
		Batch: BatchConfig{
			MaxParallel:  0,
			Extensions:   []string{".log", ".txt", ".csv"},
			OutputDir:    "./compressed",
			OutputSuffix: ".huf",
			Preallocate:  true,
			IndexResults: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "nexuscatalog.log",
		},
		Debug: DebugConfig{
			Enabled:          true,
			ListenAddress:    "0.0.0.0:6060",
			PProfEnabled:     true,
			MetricsEnabled:   true,
			MonitorUIEnabled: true,
		},
		SelfMonitoring: SelfMonitoringConfig{
			Enabled:      true,
			Interval:     "15s",
			MetricPrefix: "__",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
		Benchmark: BenchmarkConfig{
			Items:         10000,
			SearchSamples: 1000,
			BTreeDegree:   5,
			OutputDir:     "./benchmarks",
		},
	}

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	// Read all data from the reader
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}

	// If data is empty, return defaults.
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}

// Validate checks cross-field constraints that yaml decoding cannot express.
func (c *Config) Validate() error {
	switch c.Catalog.TreeType {
	case "rbtree":
	case "btree":
		if c.Catalog.BTreeDegree < 2 {
			return fmt.Errorf("catalog.btree_degree must be >= 2, got %d: %w", c.Catalog.BTreeDegree, core.ErrInvalidDegree)
		}
	default:
		return fmt.Errorf("catalog.tree_type must be \"rbtree\" or \"btree\", got %q", c.Catalog.TreeType)
	}

	if _, err := core.CompressionTypeFromString(c.Compression.DefaultCodec); err != nil {
		return fmt.Errorf("compression.default_codec: %w", err)
	}
	if c.Compression.BufferSizeBytes < 0 {
		return fmt.Errorf("compression.buffer_size_bytes must not be negative, got %d", c.Compression.BufferSizeBytes)
	}

	if c.Batch.MaxParallel < 0 {
		return fmt.Errorf("batch.max_parallel must not be negative, got %d", c.Batch.MaxParallel)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Output {
	case "stdout", "file", "none":
	default:
		return fmt.Errorf("logging.output must be one of stdout, file, none; got %q", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.File == "" {
		return fmt.Errorf("logging.file is required when logging.output is \"file\"")
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("tracing.protocol must be \"grpc\" or \"http\", got %q", c.Tracing.Protocol)
		}
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
		}
	}

	if c.Benchmark.Items <= 0 {
		return fmt.Errorf("benchmark.items must be positive, got %d", c.Benchmark.Items)
	}
	if c.Benchmark.BTreeDegree < 2 {
		return fmt.Errorf("benchmark.btree_degree must be >= 2, got %d: %w", c.Benchmark.BTreeDegree, core.ErrInvalidDegree)
	}
	return nil
}
