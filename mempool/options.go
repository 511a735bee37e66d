package mempool

import (
	"log/slog"

	"github.com/hupe1980/memtbx/contract"
	"github.com/hupe1980/memtbx/critsect"
)

type options struct {
	gate     critsect.Gate
	hook     *contract.Hook
	logger   *slog.Logger
	observer Observer
}

// Option configures a MemPool.
type Option func(*options)

// WithGate sets the critical section that serialises every mutating call.
// If unset, the registry creates its own critsect.Section. It must not be the
// gate of the Source.
func WithGate(g critsect.Gate) Option {
	return func(o *options) {
		o.gate = g
	}
}

// WithHook sets the contract hook used to report invalid arguments and
// unrecognised blocks.
func WithHook(h *contract.Hook) Option {
	return func(o *options) {
		o.hook = h
	}
}

// WithLogger enables structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver registers a pool event observer (for metrics).
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}
