package memtbx

import (
	"sync/atomic"

	"github.com/hupe1980/memtbx/heap"
	"github.com/hupe1980/memtbx/mempool"
)

// MetricsCollector defines an interface for collecting allocator metrics.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see package promcollector).
//
// Every method is called synchronously from inside the allocator's critical
// section and must not call back into the Toolbox.
type MetricsCollector interface {
	// RecordHeapAllocate is called after each heap allocation with a valid
	// size. consumed is the aligned size, or 0 when ok is false.
	RecordHeapAllocate(requested, consumed int, ok bool)

	// RecordPoolCreate is called after each MemPool create request that
	// passed argument validation. err is nil if successful.
	RecordPoolCreate(blockSize, numBlocks, heapBytes int, err error)

	// RecordBlockAllocate is called after each MemPool allocation with a
	// valid size. blockSize is the serving pool, or 0 when ok is false.
	RecordBlockAllocate(requested, blockSize int, ok bool)

	// RecordBlockRelease is called after each accepted MemPool release.
	RecordBlockRelease(blockSize int)

	// RecordViolation is called for every contract violation.
	RecordViolation(file string, line int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordHeapAllocate(int, int, bool)     {}
func (NoopMetricsCollector) RecordPoolCreate(int, int, int, error) {}
func (NoopMetricsCollector) RecordBlockAllocate(int, int, bool)    {}
func (NoopMetricsCollector) RecordBlockRelease(int)                {}
func (NoopMetricsCollector) RecordViolation(string, int)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	HeapAllocCount    atomic.Int64
	HeapAllocFailures atomic.Int64
	HeapBytes         atomic.Int64
	PoolCreateCount   atomic.Int64
	PoolCreateErrors  atomic.Int64
	PoolBlocks        atomic.Int64
	BlockAllocCount   atomic.Int64
	BlockAllocMisses  atomic.Int64
	BlockReleaseCount atomic.Int64
	ViolationCount    atomic.Int64
}

// RecordHeapAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHeapAllocate(_, consumed int, ok bool) {
	if !ok {
		b.HeapAllocFailures.Add(1)
		return
	}
	b.HeapAllocCount.Add(1)
	b.HeapBytes.Add(int64(consumed))
}

// RecordPoolCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPoolCreate(_, numBlocks, _ int, err error) {
	b.PoolCreateCount.Add(1)
	if err != nil {
		b.PoolCreateErrors.Add(1)
		return
	}
	b.PoolBlocks.Add(int64(numBlocks))
}

// RecordBlockAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlockAllocate(_, _ int, ok bool) {
	if !ok {
		b.BlockAllocMisses.Add(1)
		return
	}
	b.BlockAllocCount.Add(1)
}

// RecordBlockRelease implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlockRelease(int) {
	b.BlockReleaseCount.Add(1)
}

// RecordViolation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordViolation(string, int) {
	b.ViolationCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		HeapAllocCount:    b.HeapAllocCount.Load(),
		HeapAllocFailures: b.HeapAllocFailures.Load(),
		HeapBytes:         b.HeapBytes.Load(),
		PoolCreateCount:   b.PoolCreateCount.Load(),
		PoolCreateErrors:  b.PoolCreateErrors.Load(),
		PoolBlocks:        b.PoolBlocks.Load(),
		BlockAllocCount:   b.BlockAllocCount.Load(),
		BlockAllocMisses:  b.BlockAllocMisses.Load(),
		BlockReleaseCount: b.BlockReleaseCount.Load(),
		BlocksInUse:       b.BlockAllocCount.Load() - b.BlockReleaseCount.Load(),
		ViolationCount:    b.ViolationCount.Load(),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	HeapAllocCount    int64
	HeapAllocFailures int64
	HeapBytes         int64
	PoolCreateCount   int64
	PoolCreateErrors  int64
	PoolBlocks        int64
	BlockAllocCount   int64
	BlockAllocMisses  int64
	BlockReleaseCount int64
	BlocksInUse       int64
	ViolationCount    int64
}

// metricsObserver adapts a MetricsCollector to the heap and mempool observer
// interfaces.
type metricsObserver struct {
	mc MetricsCollector
}

func (o metricsObserver) HeapAllocated(requested, consumed int, ok bool) {
	o.mc.RecordHeapAllocate(requested, consumed, ok)
}

func (o metricsObserver) PoolCreated(blockSize, numBlocks, heapBytes int, _ bool) {
	o.mc.RecordPoolCreate(blockSize, numBlocks, heapBytes, nil)
}

func (o metricsObserver) PoolCreateFailed(blockSize, numBlocks, _ int) {
	o.mc.RecordPoolCreate(blockSize, numBlocks, 0, mempool.ErrOutOfMemory)
}

func (o metricsObserver) BlockAllocated(requested, blockSize int, ok bool) {
	o.mc.RecordBlockAllocate(requested, blockSize, ok)
}

func (o metricsObserver) BlockReleased(blockSize int) {
	o.mc.RecordBlockRelease(blockSize)
}

var (
	_ MetricsCollector = NoopMetricsCollector{}
	_ MetricsCollector = (*BasicMetricsCollector)(nil)
	_ heap.Observer    = metricsObserver{}
	_ mempool.Observer = metricsObserver{}
)
