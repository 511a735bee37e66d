package heap

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
	buffer   []byte
	offHeap  bool
}

// Option configures a Heap.
type Option func(*options)

// WithGate sets the critical section that serialises Allocate.
// If unset, the heap creates its own critsect.Section.
func WithGate(g critsect.Gate) Option {
	return func(o *options) {
		o.gate = g
	}
}

// WithHook sets the contract hook used to report invalid arguments.
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

// WithObserver registers an allocation observer (for metrics).
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithBuffer uses buf as the arena instead of allocating one.
// The start of buf is aligned to AddressSize; the capacity argument of New is
// ignored and the heap capacity is whatever remains after alignment.
func WithBuffer(buf []byte) Option {
	return func(o *options) {
		o.buffer = buf
	}
}

// WithOffHeap places the arena in an anonymous memory mapping outside the Go
// heap. The mapping is released by Close.
func WithOffHeap() Option {
	return func(o *options) {
		o.offHeap = true
	}
}
