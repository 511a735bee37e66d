// Package memtbx provides a deterministic, fragmentation-bounded memory layer
// for constrained targets: a monotonic heap, a segregated fixed-block pool
// allocator layered on it, and an intrusive list container whose node storage
// is charged to the pools.
//
// # Quick Start
//
//	tb, _ := memtbx.New(
//	    memtbx.WithHeapCapacity(4096),
//	    memtbx.WithPools(
//	        memtbx.PoolSpec{Blocks: 8, BlockSize: 16},
//	        memtbx.PoolSpec{Blocks: 4, BlockSize: 64},
//	    ),
//	)
//	defer tb.Close()
//
//	b := tb.MemPoolAllocate(12)   // served by the 16-byte pool
//	copy(b.Bytes(), msg)
//	tb.MemPoolRelease(b)
//
// # Failure Model
//
// Two failure classes are kept apart:
//
//   - Contract violations (zero sizes, nil or foreign handles, unbalanced
//     critical sections) are reported to the assert handler. The call then
//     returns its documented failure value; it never panics.
//   - Exhaustion (heap full, no fitting pool with a free block) is an expected
//     outcome and is reported only through the return value.
//
// Neither class leaves partial state behind.
//
// # Components
//
//   - heap: bump allocator over one arena; memory is never returned.
//   - mempool: pools ascending by block size; Allocate picks the smallest
//     fitting pool with a free block and never creates pools.
//   - list: doubly-linked list of caller-owned items with self-hosted nodes.
//   - contract, critsect: the assert hook and the critical-section gate.
//
// A Toolbox wires one independent instance of each. Several Toolboxes can
// coexist; nothing is global.
//
// # Lists
//
//	l := memtbx.CreateList[Message](tb)
//	l.InsertItemBack(&m)
//	for m := range l.Items() { ... }
//
// # Observability
//
// Logging uses log/slog through Logger. Allocator events reach a
// MetricsCollector; package promcollector exports them to Prometheus.
package memtbx
