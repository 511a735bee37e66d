// Package mempool implements a segregated fixed-block allocator on top of a
// monotonic heap.
//
// # Pools
//
// A MemPool is a registry of pools kept in ascending block-size order, with
// at most one pool per block size. Create either adds a pool or, when a pool
// of that exact size exists, grows it. Every Create draws its storage from
// the Source in one request, so it succeeds completely or not at all.
//
// # Allocation
//
// Allocate picks the first pool whose block size fits the request and still
// has a free block. It never creates pools; when nothing fits, it returns nil.
// Released blocks return to the front of their pool's free list and are never
// given back to the heap.
//
// # Block Layout
//
//	+-------------------+----------------------------+---------+
//	| header (8 bytes)  | payload (blockSize bytes)  | padding |
//	| pool id | magic   |                            |         |
//	+-------------------+----------------------------+---------+
//	|<------------------------ Stride(blockSize) ------------->|
//
// Release validates a block through its back-reference and header before
// touching any list, so foreign, forged and double-released blocks are
// reported through the contract hook and ignored.
package mempool

import (
	"log/slog"
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/memtbx/contract"
	"github.com/hupe1980/memtbx/critsect"
	"github.com/hupe1980/memtbx/internal/conv"
	"github.com/hupe1980/memtbx/list"
)

// Source supplies pool storage. *heap.Heap satisfies it.
type Source interface {
	Allocate(size int) []byte
	GetFree() int
}

// Observer receives pool events.
type Observer interface {
	// PoolCreated is called after a successful Create. grown is true when an
	// existing pool was enlarged.
	PoolCreated(blockSize, numBlocks, heapBytes int, grown bool)
	// PoolCreateFailed is called when the Source could not supply a Create.
	PoolCreateFailed(blockSize, numBlocks, requested int)
	// BlockAllocated is called after every Allocate with a valid size.
	// blockSize is the size of the serving pool, or 0 when ok is false.
	BlockAllocated(requested, blockSize int, ok bool)
	// BlockReleased is called after every accepted Release.
	BlockReleased(blockSize int)
}

type pool struct {
	id        uint32
	blockSize int
	owner     *MemPool
	free      *list.List[Block]
	used      *list.List[Block]
	blocks    int
	heapBytes int
	occupancy *bitset.BitSet
}

// MemPool is a registry of fixed-block pools.
type MemPool struct {
	src      Source
	gate     critsect.Gate
	hook     *contract.Hook
	logger   *slog.Logger
	observer Observer

	nodes  *list.Store[Block]
	pools  []*pool // ascending blockSize
	nextID uint32
}

// New creates an empty registry drawing storage from src.
func New(src Source, opts ...Option) *MemPool {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	m := &MemPool{
		src:      src,
		gate:     o.gate,
		hook:     o.hook,
		logger:   o.logger,
		observer: o.observer,
		nextID:   1,
	}
	if m.gate == nil {
		m.gate = critsect.New(m.hook)
	}

	// The registry gate covers the node store; lists are provisioned with
	// their pools.
	m.nodes = list.NewStore[Block](
		list.WithCapacity(0, 0),
		list.WithHook(m.hook),
	)

	return m
}

// Cost returns the heap bytes Create(numBlocks, blockSize) consumes for a new
// pool, or for growing an existing one when grow is true.
func Cost(numBlocks, blockSize int, grow bool) (int, error) {
	if numBlocks <= 0 || blockSize <= 0 {
		return 0, ErrInvalidArgument
	}
	if blockSize > math.MaxInt-2*HeaderSize {
		return 0, ErrOutOfMemory
	}
	cost, err := conv.MulInt(numBlocks, Stride(blockSize))
	if err != nil {
		return 0, ErrOutOfMemory
	}
	if !grow {
		if cost, err = conv.AddInt(cost, DescriptorSize); err != nil {
			return 0, ErrOutOfMemory
		}
	}
	return cost, nil
}

// Create provisions numBlocks blocks of blockSize bytes.
//
// If a pool of exactly blockSize exists it is grown; otherwise a new pool is
// inserted in ascending size order. A non-positive argument is a contract
// violation and returns ErrInvalidArgument. When the Source cannot supply the
// storage, Create returns an *InsufficientHeapError and changes nothing.
func (m *MemPool) Create(numBlocks, blockSize int) error {
	if !m.hook.Check(numBlocks > 0 && blockSize > 0) {
		return ErrInvalidArgument
	}

	m.gate.Enter()
	defer m.gate.Exit()

	_, err := m.provision(numBlocks, blockSize)
	return err
}

// Reserve adds one block of exactly blockSize, creating the pool if needed,
// and hands it out in the same critical section, so no concurrent Allocate
// can take it first. It returns nil when the Source cannot supply the block.
// A non-positive blockSize is a contract violation.
func (m *MemPool) Reserve(blockSize int) *Block {
	if !m.hook.Check(blockSize > 0) {
		return nil
	}

	m.gate.Enter()
	defer m.gate.Exit()

	p, err := m.provision(1, blockSize)
	if err != nil {
		return nil
	}
	return m.take(p, p.free.Back(), blockSize)
}

// provision grows or inserts the pool of blockSize. Caller holds the gate.
func (m *MemPool) provision(numBlocks, blockSize int) (*pool, error) {
	idx, found := m.search(blockSize)

	cost, err := Cost(numBlocks, blockSize, found)
	if err != nil {
		return nil, m.insufficient(numBlocks, blockSize, math.MaxInt)
	}

	buf := m.src.Allocate(cost)
	if buf == nil {
		return nil, m.insufficient(numBlocks, blockSize, cost)
	}

	var p *pool
	if found {
		p = m.pools[idx]
	} else {
		p = m.newPool(blockSize, buf[:DescriptorSize])
		buf = buf[DescriptorSize:]
		m.pools = slices.Insert(m.pools, idx, p)
	}

	m.nodes.Grow(numBlocks, 0)

	stride := Stride(blockSize)
	blocks := make([]Block, numBlocks)
	for i := range blocks {
		off := i * stride
		b := &blocks[i]
		b.pool = p
		b.header = buf[off : off+HeaderSize : off+HeaderSize]
		b.data = buf[off+HeaderSize : off+HeaderSize+blockSize : off+stride]
		b.index = uint(p.blocks + i) //nolint:gosec // non-negative
		writeHeader(b.header, p.id)
		b.node = p.free.PushBack(b)
	}
	p.blocks += numBlocks
	p.heapBytes += cost

	if m.observer != nil {
		m.observer.PoolCreated(blockSize, numBlocks, cost, found)
	}
	if m.logger != nil {
		m.logger.Info("pool provisioned",
			"block_size", blockSize,
			"added", numBlocks,
			"blocks", p.blocks,
			"heap_bytes", cost,
			"grown", found,
		)
	}

	return p, nil
}

// Allocate returns a free block from the smallest pool whose block size is at
// least size, or nil when none has a free block. A non-positive size is a
// contract violation.
func (m *MemPool) Allocate(size int) *Block {
	if !m.hook.Check(size > 0) {
		return nil
	}

	m.gate.Enter()
	defer m.gate.Exit()

	idx, _ := m.search(size)
	for _, p := range m.pools[idx:] {
		if n := p.free.Front(); n != nil {
			return m.take(p, n, size)
		}
	}

	if m.observer != nil {
		m.observer.BlockAllocated(size, 0, false)
	}
	if m.logger != nil {
		m.logger.Debug("no free block", "requested", size)
	}
	return nil
}

// take moves the free node n of p to the used list. Caller holds the gate.
func (m *MemPool) take(p *pool, n *list.Node[Block], requested int) *Block {
	p.used.MoveToFront(n)
	b := n.Item()
	p.occupancy.Set(b.index)

	if m.observer != nil {
		m.observer.BlockAllocated(requested, p.blockSize, true)
	}
	return b
}

// Release returns b to the free list of its pool.
//
// A nil block, a block this registry did not hand out, a block with a
// damaged header, or a block that is already free is a contract violation and
// nothing changes.
func (m *MemPool) Release(b *Block) {
	if !m.hook.Check(b != nil) {
		return
	}

	m.gate.Enter()
	defer m.gate.Exit()

	p := m.owner(b)
	if !m.hook.Check(p != nil) {
		return
	}

	p.free.MoveToFront(b.node)
	p.occupancy.Clear(b.index)

	if m.observer != nil {
		m.observer.BlockReleased(p.blockSize)
	}
}

// owner validates b and returns its pool, or nil when b is not a used block
// of this registry.
func (m *MemPool) owner(b *Block) *pool {
	p := b.pool
	if p == nil || p.owner != m {
		return nil
	}
	id, ok := readHeader(b.header)
	if !ok || id != p.id || m.poolByID(id) != p {
		return nil
	}
	if b.node == nil || b.node.Item() != b || b.node.List() != p.used {
		return nil
	}
	return p
}

// search returns the index of the first pool with blockSize >= size and
// whether that pool's size is exactly size.
func (m *MemPool) search(size int) (int, bool) {
	return slices.BinarySearchFunc(m.pools, size, func(p *pool, size int) int {
		switch {
		case p.blockSize < size:
			return -1
		case p.blockSize > size:
			return 1
		default:
			return 0
		}
	})
}

func (m *MemPool) poolByID(id uint32) *pool {
	for _, p := range m.pools {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (m *MemPool) newPool(blockSize int, desc []byte) *pool {
	p := &pool{
		id:        m.nextID,
		blockSize: blockSize,
		owner:     m,
		occupancy: bitset.New(0),
	}
	m.nextID++

	writeDescriptor(desc, p.id, blockSize)

	m.nodes.Grow(0, 2)
	p.free = m.nodes.Create()
	p.used = m.nodes.Create()

	return p
}

func (m *MemPool) insufficient(numBlocks, blockSize, requested int) error {
	free := m.src.GetFree()
	if m.observer != nil {
		m.observer.PoolCreateFailed(blockSize, numBlocks, requested)
	}
	if m.logger != nil {
		m.logger.Debug("heap cannot supply pool",
			"block_size", blockSize,
			"blocks", numBlocks,
			"requested", requested,
			"free", free,
		)
	}
	return &InsufficientHeapError{
		BlockSize: blockSize,
		NumBlocks: numBlocks,
		Requested: requested,
		Free:      free,
	}
}
