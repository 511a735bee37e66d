// Package heap implements a monotonic arena allocator.
//
// # Memory Model
//
// A Heap owns one fixed-capacity byte arena and a cursor marking the next free
// byte. Allocate advances the cursor by the request rounded up to the address
// size; nothing is ever given back. The free byte count therefore only
// decreases and fragmentation cannot occur.
//
// The heap is meant to feed a small number of long-lived bulk requests, such
// as pool growth in package mempool, not per-object allocation.
//
// # Failure Classes
//
//   - Allocate(0) is a contract violation: reported through the hook, nil returned.
//   - A request larger than GetFree() is exhaustion: nil returned, no report.
//
// Neither path changes the cursor.
//
// # Thread Safety
//
// Allocate runs inside the heap's critical-section gate. GetFree is lock-free.
package heap

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/memtbx/contract"
	"github.com/hupe1980/memtbx/critsect"
	"github.com/hupe1980/memtbx/internal/mem"
	"github.com/hupe1980/memtbx/internal/mmap"
)

// AddressSize is the allocation alignment in bytes (the width of a pointer).
const AddressSize = mem.AddressSize

// ErrInvalidCapacity is returned by New when the arena capacity is not a
// positive multiple of AddressSize.
var ErrInvalidCapacity = errors.New("heap: capacity must be a positive multiple of the address size")

// Observer receives heap allocation events.
type Observer interface {
	// HeapAllocated is called after every Allocate call that passed argument
	// validation. consumed is the aligned size, or 0 when ok is false.
	HeapAllocated(requested, consumed int, ok bool)
}

// Stats is a snapshot of heap usage.
type Stats struct {
	Capacity    int    // Arena size in bytes
	Used        int    // Bytes consumed, including alignment padding
	Free        int    // Capacity - Used
	Wasted      int    // Alignment padding included in Used
	Allocations uint64 // Successful allocations
	Failures    uint64 // Allocations refused for lack of space
}

// Heap is a bump-pointer allocator over a single arena.
type Heap struct {
	buf      []byte
	capacity int
	cursor   atomic.Int64

	gate     critsect.Gate
	hook     *contract.Hook
	logger   *slog.Logger
	observer Observer
	mapping  *mmap.Mapping

	wasted      atomic.Int64
	allocations atomic.Uint64
	failures    atomic.Uint64
}

// New creates a Heap with an arena of capacity bytes. capacity must be a
// multiple of AddressSize so every request up to GetFree can be served.
//
// With WithBuffer the capacity argument is ignored and the arena is the
// buffer trimmed to an aligned start and an aligned length.
func New(capacity int, opts ...Option) (*Heap, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Heap{
		gate:     o.gate,
		hook:     o.hook,
		logger:   o.logger,
		observer: o.observer,
	}

	switch {
	case o.buffer != nil:
		h.buf = mem.AlignBuffer(o.buffer)
	case capacity <= 0 || capacity%AddressSize != 0:
		return nil, ErrInvalidCapacity
	case o.offHeap:
		m, err := mmap.MapAnon(capacity)
		if err != nil {
			return nil, fmt.Errorf("heap: map off-heap arena: %w", err)
		}
		h.mapping = m
		h.buf = m.Bytes()
	default:
		h.buf = make([]byte, capacity)
	}

	if len(h.buf) == 0 {
		return nil, ErrInvalidCapacity
	}
	h.capacity = len(h.buf)

	if h.gate == nil {
		h.gate = critsect.New(h.hook)
	}

	if h.logger != nil {
		h.logger.Info("heap arena ready", "capacity", h.capacity, "off_heap", h.mapping != nil)
	}

	return h, nil
}

// Capacity returns the arena size in bytes.
func (h *Heap) Capacity() int {
	return h.capacity
}

// GetFree returns the number of bytes still available for allocation.
func (h *Heap) GetFree() int {
	return h.capacity - int(h.cursor.Load())
}

// Allocate reserves size bytes rounded up to AddressSize and returns them.
// The returned slice has length size and capacity equal to the aligned size.
//
// It returns nil when size is not positive (a contract violation) or when the
// arena cannot supply the aligned size (exhaustion). In both cases the arena
// is left unchanged.
func (h *Heap) Allocate(size int) []byte {
	if !h.hook.Check(size > 0) {
		return nil
	}

	h.gate.Enter()
	defer h.gate.Exit()

	cursor := int(h.cursor.Load())
	free := h.capacity - cursor

	// Compare before aligning so huge requests cannot overflow.
	if size > free || mem.AlignUp(size) > free {
		h.failures.Add(1)
		if h.observer != nil {
			h.observer.HeapAllocated(size, 0, false)
		}
		if h.logger != nil {
			h.logger.Debug("heap exhausted", "requested", size, "free", free)
		}
		return nil
	}

	aligned := mem.AlignUp(size)
	end := cursor + aligned
	h.cursor.Store(int64(end))

	h.allocations.Add(1)
	h.wasted.Add(int64(aligned - size))
	if h.observer != nil {
		h.observer.HeapAllocated(size, aligned, true)
	}

	return h.buf[cursor : cursor+size : end]
}

// Contains reports whether p points into memory handed out by this heap.
func (h *Heap) Contains(p []byte) bool {
	if cap(p) == 0 || len(h.buf) == 0 {
		return false
	}
	start := uintptr(unsafe.Pointer(&h.buf[0]))          //nolint:gosec // address comparison only
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(p))) //nolint:gosec // address comparison only
	return addr >= start && addr < start+uintptr(h.cursor.Load())
}

// Stats returns a snapshot of heap usage.
func (h *Heap) Stats() Stats {
	used := int(h.cursor.Load())
	return Stats{
		Capacity:    h.capacity,
		Used:        used,
		Free:        h.capacity - used,
		Wasted:      int(h.wasted.Load()),
		Allocations: h.allocations.Load(),
		Failures:    h.failures.Load(),
	}
}

// Close releases an off-heap arena. A Go-backed arena is left to the garbage
// collector. Slices returned by Allocate must not be used after Close.
func (h *Heap) Close() error {
	if h.mapping == nil {
		return nil
	}
	return h.mapping.Close()
}

func (h *Heap) String() string {
	s := h.Stats()
	return fmt.Sprintf(
		"Heap{capacity: %d, used: %d, free: %d, wasted: %d, allocs: %d, failures: %d}",
		s.Capacity, s.Used, s.Free, s.Wasted, s.Allocations, s.Failures,
	)
}
