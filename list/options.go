package list

import (
	"github.com/hupe1980/memtbx/contract"
	"github.com/hupe1980/memtbx/critsect"
)

type storeOptions struct {
	nodes int
	lists int
	grow  GrowFunc
	step  int
	gate  critsect.Gate
	hook  *contract.Hook
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

// WithCapacity sets the number of node and list header slots provisioned at
// construction. Negative values are treated as zero.
func WithCapacity(nodes, lists int) StoreOption {
	return func(o *storeOptions) {
		o.nodes = max(0, nodes)
		o.lists = max(0, lists)
	}
}

// WithGrowth enables on-demand growth. When the store runs out of node slots
// it asks fn for step more; list headers grow by step/16 (at least one).
func WithGrowth(fn GrowFunc, step int) StoreOption {
	return func(o *storeOptions) {
		o.grow = fn
		o.step = step
	}
}

// WithGate sets the critical section protecting the free chains.
// Required when lists of one store are used from several goroutines.
func WithGate(g critsect.Gate) StoreOption {
	return func(o *storeOptions) {
		o.gate = g
	}
}

// WithHook sets the contract hook used to report invalid handles.
func WithHook(h *contract.Hook) StoreOption {
	return func(o *storeOptions) {
		o.hook = h
	}
}
