package memtbx

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/memtbx/contract"
	"github.com/hupe1980/memtbx/critsect"
	"github.com/hupe1980/memtbx/heap"
	"github.com/hupe1980/memtbx/internal/mem"
	"github.com/hupe1980/memtbx/list"
	"github.com/hupe1980/memtbx/mempool"
)

const (
	// DefaultHeapCapacity is the arena size used when WithHeapCapacity is not set.
	DefaultHeapCapacity = 2048

	// DefaultListGrowth is the number of node slots a list store adds per
	// growth step.
	DefaultListGrowth = 16

	// NodeSlotSize is the heap bytes charged per list node slot.
	NodeSlotSize = 6 * mem.AddressSize

	// ListSlotSize is the heap bytes charged per list header slot.
	ListSlotSize = 4 * mem.AddressSize

	defaultAssertInterval = time.Second
)

// Toolbox is one independent allocator context: an assert hook, a heap, a
// pool registry layered on it, and list stores charged to the same heap.
//
// List storage is drawn from a second registry that callers never see, so
// its size classes do not appear in Pools, Stats().Pools or MemPoolAllocate.
//
// All methods are safe for concurrent use.
type Toolbox struct {
	hook    *contract.Hook
	section *critsect.Section
	heap    *heap.Heap
	pools   *mempool.MemPool
	lists   *mempool.MemPool
	logger  *Logger
	metrics MetricsCollector

	listGrowth  int
	nodeChunk   int
	headerChunk int

	stores sync.Map // reflect.Type -> *list.Store[T]

	chunkMu sync.Mutex
	chunks  []*mempool.Block

	closed atomic.Bool
}

// New builds a Toolbox and provisions the configured pools.
func New(opts ...Option) (*Toolbox, error) {
	o := options{
		heapCapacity: DefaultHeapCapacity,
		assertEvery:  defaultAssertInterval,
		metrics:      NoopMetricsCollector{},
		listGrowth:   DefaultListGrowth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.listGrowth <= 0 {
		o.listGrowth = DefaultListGrowth
	}

	tb := &Toolbox{
		logger:      o.logger,
		metrics:     o.metrics,
		listGrowth:  o.listGrowth,
		nodeChunk:   mem.AlignUp(o.listGrowth * NodeSlotSize),
		headerChunk: mem.AlignUp(list.HeaderGrowth(o.listGrowth) * ListSlotSize),
	}

	tb.hook = contract.New(contract.Chain(tb.assertHandler(o), o.metrics.RecordViolation))
	tb.section = critsect.New(tb.hook)

	observer := metricsObserver{mc: o.metrics}

	heapOpts := []heap.Option{
		heap.WithHook(tb.hook),
		heap.WithGate(critsect.New(tb.hook)),
		heap.WithObserver(observer),
	}
	poolOpts := []mempool.Option{
		mempool.WithHook(tb.hook),
		mempool.WithGate(critsect.New(tb.hook)),
		mempool.WithObserver(observer),
	}
	listOpts := []mempool.Option{
		mempool.WithHook(tb.hook),
		mempool.WithGate(critsect.New(tb.hook)),
	}
	if o.logger != nil {
		heapOpts = append(heapOpts, heap.WithLogger(o.logger.WithComponent("heap").Logger))
		poolOpts = append(poolOpts, mempool.WithLogger(o.logger.WithComponent("mempool").Logger))
		listOpts = append(listOpts, mempool.WithLogger(o.logger.WithComponent("lists").Logger))
	}
	if o.heapBuffer != nil {
		heapOpts = append(heapOpts, heap.WithBuffer(o.heapBuffer))
	}
	if o.offHeap {
		heapOpts = append(heapOpts, heap.WithOffHeap())
	}

	h, err := heap.New(o.heapCapacity, heapOpts...)
	if err != nil {
		return nil, fmt.Errorf("memtbx: %w", err)
	}
	tb.heap = h
	tb.pools = mempool.New(h, poolOpts...)
	tb.lists = mempool.New(h, listOpts...)

	for _, spec := range o.pools {
		if err := tb.pools.Create(spec.Blocks, spec.BlockSize); err != nil {
			_ = h.Close()
			return nil, &ProvisionError{Pool: spec, cause: err}
		}
	}

	if tb.logger != nil {
		tb.logger.Info("toolbox ready",
			"heap_capacity", h.Capacity(),
			"heap_free", h.GetFree(),
			"pools", tb.pools.PoolCount(),
		)
	}

	return tb, nil
}

func (tb *Toolbox) assertHandler(o options) contract.Handler {
	switch {
	case o.assertHandler != nil:
		return o.assertHandler
	case o.logger != nil:
		return o.logger.AssertHandler(o.assertEvery)
	default:
		return contract.DefaultHandler
	}
}

// Heap returns the underlying heap.
func (tb *Toolbox) Heap() *heap.Heap { return tb.heap }

// Pools returns the underlying pool registry.
func (tb *Toolbox) Pools() *mempool.MemPool { return tb.pools }

// Hook returns the contract hook shared by every component.
func (tb *Toolbox) Hook() *contract.Hook { return tb.hook }

// NodeChunkSize returns the block size one node growth step of a list store
// is charged as.
func (tb *Toolbox) NodeChunkSize() int { return tb.nodeChunk }

// HeaderChunkSize returns the block size one header growth step of a list
// store is charged as.
func (tb *Toolbox) HeaderChunkSize() int { return tb.headerChunk }

// HeapGetFree returns the free heap bytes.
func (tb *Toolbox) HeapGetFree() int {
	return tb.heap.GetFree()
}

// HeapAllocate allocates size bytes from the heap. See heap.Heap.Allocate.
func (tb *Toolbox) HeapAllocate(size int) []byte {
	return tb.heap.Allocate(size)
}

// MemPoolCreate creates or grows a pool. See mempool.MemPool.Create.
func (tb *Toolbox) MemPoolCreate(numBlocks, blockSize int) error {
	return tb.pools.Create(numBlocks, blockSize)
}

// MemPoolAllocate returns a block of at least size bytes, or nil.
// See mempool.MemPool.Allocate.
func (tb *Toolbox) MemPoolAllocate(size int) *mempool.Block {
	return tb.pools.Allocate(size)
}

// MemPoolRelease returns b to its pool. See mempool.MemPool.Release.
func (tb *Toolbox) MemPoolRelease(b *mempool.Block) {
	tb.pools.Release(b)
}

// SetAssertHandler replaces the contract violation handler. Installing nil is
// itself a violation: it is reported through the active handler, which stays
// installed.
func (tb *Toolbox) SetAssertHandler(h contract.Handler) {
	if h == nil {
		tb.hook.SetHandler(nil)
		return
	}
	tb.hook.SetHandler(contract.Chain(h, tb.metrics.RecordViolation))
}

// CriticalSectionEnter enters the application critical section of this
// Toolbox. It is independent of the sections guarding the heap and pools.
func (tb *Toolbox) CriticalSectionEnter() {
	tb.section.Enter()
}

// CriticalSectionExit leaves the application critical section. Exiting
// without a matching enter is a contract violation.
func (tb *Toolbox) CriticalSectionExit() {
	tb.section.Exit()
}

// NewListStore returns a new list store whose slots are charged to the
// Toolbox heap. A node growth step draws one NodeChunkSize block and a
// header growth step one HeaderChunkSize block; when the heap is exhausted
// the growth is refused and the list operation fails.
func NewListStore[T any](tb *Toolbox) *list.Store[T] {
	return list.NewStore[T](
		list.WithCapacity(0, 0),
		list.WithGate(critsect.New(tb.hook)),
		list.WithHook(tb.hook),
		list.WithGrowth(tb.chargeListGrowth, tb.listGrowth),
	)
}

// CreateList returns a new list from the store the Toolbox keeps for item
// type T, so lists of one type share node and header slots.
// It returns nil when the heap cannot supply the list header.
func CreateList[T any](tb *Toolbox) *list.List[T] {
	key := reflect.TypeFor[T]()
	s, ok := tb.stores.Load(key)
	if !ok {
		s, _ = tb.stores.LoadOrStore(key, NewListStore[T](tb))
	}
	return s.(*list.Store[T]).Create()
}

func (tb *Toolbox) chargeListGrowth(kind list.Kind, count int) bool {
	size := mem.AlignUp(count * NodeSlotSize)
	if kind == list.KindList {
		size = mem.AlignUp(count * ListSlotSize)
	}

	b := tb.lists.Reserve(size)
	if b == nil {
		return false
	}

	tb.chunkMu.Lock()
	tb.chunks = append(tb.chunks, b)
	tb.chunkMu.Unlock()

	if tb.logger != nil {
		tb.logger.Debug("list store grown", "kind", kind.String(), "slots", count)
	}
	return true
}

// Stats is a snapshot of a Toolbox.
type Stats struct {
	Heap        heap.Stats
	Pools       []mempool.PoolStats // Caller-created pools only
	Violations  uint64
	ListChunks  int                 // Growth steps charged by list stores
	ListStorage []mempool.PoolStats // Internal size classes backing list stores
}

// Stats returns a snapshot of heap, pool and contract state.
func (tb *Toolbox) Stats() Stats {
	tb.chunkMu.Lock()
	chunks := len(tb.chunks)
	tb.chunkMu.Unlock()

	return Stats{
		Heap:        tb.heap.Stats(),
		Pools:       tb.pools.Stats(),
		Violations:  tb.hook.Violations(),
		ListChunks:  chunks,
		ListStorage: tb.lists.Stats(),
	}
}

// Close releases an off-heap arena. Blocks, lists and heap slices obtained
// from this Toolbox must not be used afterwards. Close is idempotent.
func (tb *Toolbox) Close() error {
	if tb == nil || tb.closed.Swap(true) {
		return nil
	}
	if tb.logger != nil {
		tb.logger.Info("toolbox closed", "heap_used", tb.heap.Stats().Used)
	}
	return tb.heap.Close()
}
