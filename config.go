package memtbx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/memtbx/heap"
	"github.com/hupe1980/memtbx/internal/conv"
	"github.com/hupe1980/memtbx/mempool"
)

// Config is the file form of a Toolbox configuration.
//
// Example:
//
//	heap_capacity: 4096
//	off_heap: false
//	list_growth: 16
//	pools:
//	  - {blocks: 8, block_size: 16}
//	  - {blocks: 4, block_size: 64}
//	log:
//	  level: info
//	  format: json
//	  assert_interval: 1s
type Config struct {
	HeapCapacity int        `yaml:"heap_capacity" json:"heap_capacity"`
	OffHeap      bool       `yaml:"off_heap" json:"off_heap"`
	ListGrowth   int        `yaml:"list_growth" json:"list_growth"`
	Pools        []PoolSpec `yaml:"pools" json:"pools"`
	Log          LogConfig  `yaml:"log" json:"log"`
}

// LogConfig configures logging. An empty Level disables the Toolbox logger.
type LogConfig struct {
	Level          string        `yaml:"level" json:"level"`
	Format         string        `yaml:"format" json:"format"` // "text" (default) or "json"
	AssertInterval time.Duration `yaml:"assert_interval" json:"assert_interval"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("memtbx: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration. Unknown fields are
// rejected. An empty document yields the defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.HeapCapacity == 0 {
		cfg.HeapCapacity = DefaultHeapCapacity
	}
	if cfg.ListGrowth == 0 {
		cfg.ListGrowth = DefaultListGrowth
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges. It does not check that the pools fit the
// heap; see HeapRequired.
func (c Config) Validate() error {
	if c.HeapCapacity < 0 {
		return &ConfigError{Field: "heap_capacity", Reason: "must not be negative"}
	}
	if c.HeapCapacity%heap.AddressSize != 0 {
		return &ConfigError{Field: "heap_capacity", Reason: fmt.Sprintf("must be a multiple of %d", heap.AddressSize)}
	}
	if c.ListGrowth < 0 {
		return &ConfigError{Field: "list_growth", Reason: "must not be negative"}
	}
	for i, p := range c.Pools {
		if p.Blocks <= 0 {
			return &ConfigError{Field: fmt.Sprintf("pools[%d].blocks", i), Reason: "must be positive"}
		}
		if p.BlockSize <= 0 {
			return &ConfigError{Field: fmt.Sprintf("pools[%d].block_size", i), Reason: "must be positive"}
		}
	}
	if _, err := c.Log.level(); err != nil {
		return &ConfigError{Field: "log.level", Reason: err.Error()}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return &ConfigError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}

// HeapRequired returns the heap bytes provisioning Pools consumes, following
// the MemPool rules: the first entry of a block size pays the descriptor,
// later entries of the same size only pay for their blocks.
func (c Config) HeapRequired() (int, error) {
	seen := make(map[int]bool, len(c.Pools))
	total := 0
	for _, p := range c.Pools {
		cost, err := mempool.Cost(p.Blocks, p.BlockSize, seen[p.BlockSize])
		if err != nil {
			return 0, fmt.Errorf("memtbx: pool %d x %d: %w", p.Blocks, p.BlockSize, err)
		}
		seen[p.BlockSize] = true

		if total, err = conv.AddInt(total, cost); err != nil {
			return 0, fmt.Errorf("memtbx: %w", err)
		}
	}
	return total, nil
}

// Options converts the configuration into Toolbox options. Logs are written
// to w (os.Stderr when nil).
func (c Config) Options(w io.Writer) []Option {
	opts := []Option{
		WithHeapCapacity(c.HeapCapacity),
		WithListGrowth(c.ListGrowth),
		WithPools(c.Pools...),
	}
	if c.OffHeap {
		opts = append(opts, WithOffHeap())
	}
	if c.Log.AssertInterval > 0 {
		opts = append(opts, WithAssertInterval(c.Log.AssertInterval))
	}
	if l := c.Log.Logger(w); l != nil {
		opts = append(opts, WithLogger(l))
	}
	return opts
}

// Logger builds the configured Logger, or nil when logging is disabled.
func (lc LogConfig) Logger(w io.Writer) *Logger {
	if lc.Level == "" {
		return nil
	}
	if w == nil {
		w = os.Stderr
	}
	level, _ := lc.level()
	ho := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(lc.Format, "json") {
		return NewLogger(slog.NewJSONHandler(w, ho))
	}
	return NewLogger(slog.NewTextHandler(w, ho))
}

func (lc LogConfig) level() (slog.Level, error) {
	var l slog.Level
	if lc.Level == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(lc.Level))
	return l, err
}
