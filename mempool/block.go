package mempool

import (
	"encoding/binary"

	"github.com/hupe1980/memtbx/internal/mem"
	"github.com/hupe1980/memtbx/list"
)

const (
	// HeaderSize is the hidden per-block header: owner pool id and magic.
	HeaderSize = 8

	// DescriptorSize is the heap cost of a pool's own bookkeeping record.
	DescriptorSize = 4 * mem.AddressSize

	blockMagic      uint32 = 0x4B4C4250 // "PBLK"
	descriptorMagic uint32 = 0x4C4F4F50 // "POOL"
)

// Stride returns the arena bytes one block of blockSize occupies.
func Stride(blockSize int) int {
	return mem.AlignUp(HeaderSize + blockSize)
}

// Block is a fixed-size memory unit handed out by a MemPool.
//
// The caller owns the payload returned by Bytes until the block is released.
// The Block value itself must not be copied; Release only accepts the pointer
// Allocate returned.
type Block struct {
	pool   *pool
	header []byte
	data   []byte
	node   *list.Node[Block]
	index  uint
}

// Bytes returns the caller-usable payload. Its length is the pool block size.
func (b *Block) Bytes() []byte {
	return b.data
}

// Size returns the block size of the owning pool.
func (b *Block) Size() int {
	return len(b.data)
}

// PoolID returns the id of the owning pool.
func (b *Block) PoolID() uint32 {
	if b.pool == nil {
		return 0
	}
	return b.pool.id
}

func writeHeader(hdr []byte, poolID uint32) {
	binary.LittleEndian.PutUint32(hdr[0:4], poolID)
	binary.LittleEndian.PutUint32(hdr[4:8], blockMagic)
}

// readHeader returns the owner pool id stored in hdr, or false when hdr is
// not a block header.
func readHeader(hdr []byte) (uint32, bool) {
	if len(hdr) != HeaderSize || binary.LittleEndian.Uint32(hdr[4:8]) != blockMagic {
		return 0, false
	}
	return binary.LittleEndian.Uint32(hdr[0:4]), true
}

// writeDescriptor records the pool identity at the start of its first
// heap allocation.
func writeDescriptor(desc []byte, poolID uint32, blockSize int) {
	binary.LittleEndian.PutUint32(desc[0:4], descriptorMagic)
	binary.LittleEndian.PutUint32(desc[4:8], poolID)
	binary.LittleEndian.PutUint64(desc[8:16], uint64(blockSize)) //nolint:gosec // blockSize is positive
}
