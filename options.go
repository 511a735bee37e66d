package memtbx

import (
	"time"

	"github.com/hupe1980/memtbx/contract"
)

type options struct {
	heapCapacity  int
	heapBuffer    []byte
	offHeap       bool
	assertHandler contract.Handler
	assertEvery   time.Duration
	logger        *Logger
	metrics       MetricsCollector
	pools         []PoolSpec
	listGrowth    int
}

// Option configures Toolbox construction.
type Option func(*options)

// PoolSpec describes one MemPool.Create call.
type PoolSpec struct {
	Blocks    int `yaml:"blocks" json:"blocks"`
	BlockSize int `yaml:"block_size" json:"block_size"`
}

// WithHeapCapacity sets the arena size in bytes. Default: DefaultHeapCapacity.
func WithHeapCapacity(n int) Option {
	return func(o *options) {
		o.heapCapacity = n
	}
}

// WithHeapBuffer uses buf as the arena. The heap capacity is len(buf) minus
// any bytes skipped to align its start.
func WithHeapBuffer(buf []byte) Option {
	return func(o *options) {
		o.heapBuffer = buf
	}
}

// WithOffHeap places the arena in an anonymous memory mapping that is
// released by Close.
func WithOffHeap() Option {
	return func(o *options) {
		o.offHeap = true
	}
}

// WithAssertHandler installs the contract violation handler.
//
// If unset, violations are logged through the configured Logger (rate
// limited), or through slog.Default() when no Logger is configured.
func WithAssertHandler(h contract.Handler) Option {
	return func(o *options) {
		o.assertHandler = h
	}
}

// WithAssertInterval limits logged contract violations to one per interval.
// It has no effect when WithAssertHandler is used. Default: one second.
func WithAssertInterval(every time.Duration) Option {
	return func(o *options) {
		o.assertEvery = every
	}
}

// WithLogger enables structured logging for all components.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsCollector sets a metrics collector for observability.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithPools provisions pools during New, in the given order.
func WithPools(specs ...PoolSpec) Option {
	return func(o *options) {
		o.pools = append(o.pools, specs...)
	}
}

// WithListGrowth sets how many node slots a list store adds per growth step.
// Default: DefaultListGrowth.
func WithListGrowth(nodes int) Option {
	return func(o *options) {
		o.listGrowth = nodes
	}
}
