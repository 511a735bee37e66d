package mempool

import (
	"fmt"
	"strings"
)

// PoolStats is a snapshot of one pool.
type PoolStats struct {
	ID        uint32
	BlockSize int
	Blocks    int // Total blocks provisioned
	Free      int
	Used      int
	HeapBytes int // Heap bytes consumed, descriptor included
}

// Stats returns one entry per pool in ascending block-size order.
func (m *MemPool) Stats() []PoolStats {
	m.gate.Enter()
	defer m.gate.Exit()

	out := make([]PoolStats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, PoolStats{
			ID:        p.id,
			BlockSize: p.blockSize,
			Blocks:    p.blocks,
			Free:      p.free.GetSize(),
			Used:      p.used.GetSize(),
			HeapBytes: p.heapBytes,
		})
	}
	return out
}

// PoolCount returns the number of pools in the registry.
func (m *MemPool) PoolCount() int {
	m.gate.Enter()
	defer m.gate.Exit()

	return len(m.pools)
}

// Occupancy returns the set of used block indices of the pool with exactly
// blockSize, formatted as "{0,3,4}". It returns "" when no such pool exists.
func (m *MemPool) Occupancy(blockSize int) string {
	m.gate.Enter()
	defer m.gate.Exit()

	idx, found := m.search(blockSize)
	if !found {
		return ""
	}
	return m.pools[idx].occupancy.String()
}

func (m *MemPool) String() string {
	var sb strings.Builder
	sb.WriteString("MemPool{")
	for i, s := range m.Stats() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d: %d/%d used", s.BlockSize, s.Used, s.Blocks)
	}
	sb.WriteString("}")
	return sb.String()
}
