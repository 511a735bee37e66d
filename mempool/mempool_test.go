package mempool

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/memtbx/heap"
	"github.com/hupe1980/memtbx/testutil"
)

const testHeapCapacity = 2048

type fixture struct {
	heap *heap.Heap
	pool *MemPool
	ac   *testutil.AssertCounter
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	ac := testutil.NewAssertCounter()
	hook := ac.Hook()

	h, err := heap.New(capacity, heap.WithHook(hook))
	require.NoError(t, err)

	return &fixture{
		heap: h,
		pool: New(h, WithHook(hook)),
		ac:   ac,
	}
}

func TestStride(t *testing.T) {
	assert.Equal(t, 0, Stride(16)%heap.AddressSize)
	assert.GreaterOrEqual(t, Stride(1), HeaderSize+1)
	assert.Equal(t, 24, Stride(16))
}

func TestCost(t *testing.T) {
	c, err := Cost(2, 16, false)
	require.NoError(t, err)
	assert.Equal(t, DescriptorSize+2*Stride(16), c)

	c, err = Cost(2, 16, true)
	require.NoError(t, err)
	assert.Equal(t, 2*Stride(16), c)

	_, err = Cost(0, 16, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Cost(math.MaxInt/2, 1<<20, false)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestCreate_InvalidArgs(t *testing.T) {
	tests := []struct {
		name      string
		numBlocks int
		blockSize int
	}{
		{"zero blocks", 0, 16},
		{"zero size", 2, 0},
		{"both zero", 0, 0},
		{"negative", -1, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testHeapCapacity)

			err := f.pool.Create(tt.numBlocks, tt.blockSize)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, 1, f.ac.Count())
			assert.Equal(t, testHeapCapacity, f.heap.GetFree())
			assert.Equal(t, 0, f.pool.PoolCount())
		})
	}
}

func TestCreate_ConsumesHeap(t *testing.T) {
	f := newFixture(t, testHeapCapacity)

	require.NoError(t, f.pool.Create(2, 16))

	assert.Equal(t, testHeapCapacity-DescriptorSize-2*Stride(16), f.heap.GetFree())
	assert.Equal(t, 1, f.pool.PoolCount())
	assert.Equal(t, 0, f.ac.Count())
}

func TestCreate_HeapTooSmall(t *testing.T) {
	f := newFixture(t, testHeapCapacity)

	err := f.pool.Create(1000, 64)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	var ih *InsufficientHeapError
	require.True(t, errors.As(err, &ih))
	assert.Equal(t, testHeapCapacity, ih.Free)
	assert.Equal(t, DescriptorSize+1000*Stride(64), ih.Requested)

	assert.Equal(t, 0, f.ac.Count(), "exhaustion is not a contract violation")
	assert.Equal(t, testHeapCapacity, f.heap.GetFree())
	assert.Equal(t, 0, f.pool.PoolCount())
}

func TestCreate_GrowFailureLeavesPoolUntouched(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(2, 16))
	free := f.heap.GetFree()

	err := f.pool.Create(1000, 16)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	st := f.pool.Stats()
	require.Len(t, st, 1)
	assert.Equal(t, 2, st[0].Blocks)
	assert.Equal(t, 2, st[0].Free)
	assert.Equal(t, free, f.heap.GetFree())
}

func TestCreate_GrowsExistingPool(t *testing.T) {
	f := newFixture(t, testHeapCapacity)

	require.NoError(t, f.pool.Create(2, 16))
	afterFirst := f.heap.GetFree()

	require.NoError(t, f.pool.Create(3, 16))
	assert.Equal(t, afterFirst-3*Stride(16), f.heap.GetFree(), "growth costs only the new blocks")

	st := f.pool.Stats()
	require.Len(t, st, 1)
	assert.Equal(t, 5, st[0].Blocks)
	assert.Equal(t, 5, st[0].Free)
	assert.Equal(t, testHeapCapacity-f.heap.GetFree(), st[0].HeapBytes)

	for range 5 {
		require.NotNil(t, f.pool.Allocate(16))
	}
	assert.Nil(t, f.pool.Allocate(16))
	assert.Equal(t, 0, f.ac.Count())
}

func TestCreate_RegistryAscending(t *testing.T) {
	f := newFixture(t, testHeapCapacity)

	for _, size := range []int{64, 8, 32, 16, 8} {
		require.NoError(t, f.pool.Create(1, size))
	}

	var sizes []int
	for _, s := range f.pool.Stats() {
		sizes = append(sizes, s.BlockSize)
	}
	assert.Equal(t, []int{8, 16, 32, 64}, sizes)
	assert.Equal(t, 4, f.pool.PoolCount())
}

func TestAllocate_ZeroAsserts(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(2, 16))

	assert.Nil(t, f.pool.Allocate(0))
	assert.Equal(t, 1, f.ac.Count())
	assert.Equal(t, 2, f.pool.Stats()[0].Free)
}

func TestAllocate_NoPool(t *testing.T) {
	f := newFixture(t, testHeapCapacity)

	assert.Nil(t, f.pool.Allocate(16))
	assert.Equal(t, 0, f.ac.Count())
	assert.Equal(t, 0, f.pool.PoolCount(), "allocate never creates pools")
}

func TestAllocate_ExhaustAndReuse(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(2, 16))
	free := f.heap.GetFree()

	a := f.pool.Allocate(16)
	b := f.pool.Allocate(16)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)
	assert.Nil(t, f.pool.Allocate(16))

	f.pool.Release(a)
	c := f.pool.Allocate(16)
	require.NotNil(t, c)
	assert.Same(t, a, c, "the released block is reused")
	assert.Same(t, &a.Bytes()[0], &c.Bytes()[0])

	assert.Equal(t, free, f.heap.GetFree(), "release and reallocate never touch the heap")
	assert.Equal(t, 0, f.ac.Count())
}

func TestAllocate_NoUpsizing(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(4, 16))

	assert.Nil(t, f.pool.Allocate(17))

	b := f.pool.Allocate(15)
	require.NotNil(t, b)
	assert.Equal(t, 16, b.Size())
	assert.Equal(t, 0, f.ac.Count())
}

func TestAllocate_BestFit(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(2, 32))
	require.NoError(t, f.pool.Create(2, 16))

	for range 2 {
		b := f.pool.Allocate(10)
		require.NotNil(t, b)
		assert.Equal(t, 16, b.Size(), "smallest fitting pool serves while it has free blocks")
	}

	// The 16-byte pool is exhausted; the next fitting pool serves.
	b := f.pool.Allocate(10)
	require.NotNil(t, b)
	assert.Equal(t, 32, b.Size())

	b = f.pool.Allocate(20)
	require.NotNil(t, b)
	assert.Equal(t, 32, b.Size())

	assert.Nil(t, f.pool.Allocate(1))
}

func TestReserve(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(1, 16))
	free := f.heap.GetFree()

	r := f.pool.Reserve(16)
	require.NotNil(t, r)
	assert.Equal(t, 16, r.Size())
	assert.Equal(t, free-Stride(16), f.heap.GetFree(), "growing only pays for the block")

	st := f.pool.Stats()[0]
	assert.Equal(t, 2, st.Blocks)
	assert.Equal(t, 1, st.Used)
	assert.Equal(t, "{1}", f.pool.Occupancy(16), "the reserved block is the new one")

	// The block provisioned earlier is still free for Allocate.
	b := f.pool.Allocate(16)
	require.NotNil(t, b)
	assert.NotSame(t, r, b)

	f.pool.Release(r)
	assert.Equal(t, 0, f.ac.Count())
}

func TestReserve_CreatesPool(t *testing.T) {
	f := newFixture(t, testHeapCapacity)

	r := f.pool.Reserve(40)
	require.NotNil(t, r)
	assert.Equal(t, testHeapCapacity-DescriptorSize-Stride(40), f.heap.GetFree())
	assert.Equal(t, 1, f.pool.PoolCount())
	assert.Nil(t, f.pool.Allocate(40))
}

func TestReserve_Failures(t *testing.T) {
	f := newFixture(t, DescriptorSize+Stride(16))

	assert.Nil(t, f.pool.Reserve(0))
	assert.Equal(t, 1, f.ac.Count())

	require.NotNil(t, f.pool.Reserve(16))
	assert.Nil(t, f.pool.Reserve(16), "heap exhausted")
	assert.Equal(t, 1, f.ac.Count(), "exhaustion is not a contract violation")
	assert.Equal(t, 1, f.pool.Stats()[0].Blocks)
}

func TestReserve_ConcurrentWithAllocate(t *testing.T) {
	f := newFixture(t, 64*1024)

	var g errgroup.Group
	reserved := make([][]*Block, 4)
	for w := range 4 {
		g.Go(func() error {
			for range 50 {
				if b := f.pool.Reserve(32); b != nil {
					reserved[w] = append(reserved[w], b)
				}
			}
			return nil
		})
	}
	for range 4 {
		g.Go(func() error {
			for range 50 {
				if b := f.pool.Allocate(32); b != nil {
					f.pool.Release(b)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[*Block]bool)
	for _, rs := range reserved {
		for _, b := range rs {
			assert.False(t, seen[b], "a reserved block is handed out once")
			seen[b] = true
		}
	}
	assert.Len(t, seen, 200)
	assert.Equal(t, 200, f.pool.Stats()[0].Used)
	assert.Equal(t, 0, f.ac.Count())
}

func TestBlock_Payload(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(2, 24))

	a := f.pool.Allocate(24)
	b := f.pool.Allocate(24)
	require.NotNil(t, a)
	require.NotNil(t, b)

	assert.Len(t, a.Bytes(), 24)
	assert.NotZero(t, a.PoolID())
	assert.Equal(t, a.PoolID(), b.PoolID())
	assert.True(t, f.heap.Contains(a.Bytes()))

	// Filling the payload must not damage the hidden header.
	for i := range a.Bytes() {
		a.Bytes()[i] = 0xFF
	}
	for i := range b.Bytes() {
		b.Bytes()[i] = 0xFF
	}
	f.pool.Release(a)
	f.pool.Release(b)
	assert.Equal(t, 0, f.ac.Count())
	assert.Equal(t, 2, f.pool.Stats()[0].Free)
}

func TestRelease_RejectsInvalidBlocks(t *testing.T) {
	other := newFixture(t, testHeapCapacity)
	require.NoError(t, other.pool.Create(1, 16))
	foreign := other.pool.Allocate(16)
	require.NotNil(t, foreign)

	tests := []struct {
		name  string
		block func(f *fixture) *Block
	}{
		{"nil", func(*fixture) *Block { return nil }},
		{"forged", func(*fixture) *Block { return &Block{} }},
		{"foreign registry", func(*fixture) *Block { return foreign }},
		{"copied struct", func(f *fixture) *Block {
			b := f.pool.Allocate(16)
			c := *b
			return &c
		}},
		{"corrupted header", func(f *fixture) *Block {
			b := f.pool.Allocate(16)
			b.header[5] ^= 0xFF
			return b
		}},
		{"foreign id in header", func(f *fixture) *Block {
			b := f.pool.Allocate(16)
			writeHeader(b.header, b.pool.id+100)
			return b
		}},
		{"already free", func(f *fixture) *Block {
			b := f.pool.Allocate(16)
			f.pool.Release(b)
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testHeapCapacity)
			require.NoError(t, f.pool.Create(2, 16))

			b := tt.block(f)
			before := f.pool.Stats()
			free := f.heap.GetFree()

			f.pool.Release(b)

			assert.Equal(t, 1, f.ac.Count())
			assert.Equal(t, before, f.pool.Stats(), "no list mutation")
			assert.Equal(t, free, f.heap.GetFree())
		})
	}

	assert.Equal(t, 0, other.ac.Count())
}

func TestOccupancy(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(3, 16))

	a := f.pool.Allocate(16)
	b := f.pool.Allocate(16)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, "{0,1}", f.pool.Occupancy(16))

	f.pool.Release(a)
	assert.Equal(t, "{1}", f.pool.Occupancy(16))
	assert.Equal(t, "", f.pool.Occupancy(32))
}

func TestString(t *testing.T) {
	f := newFixture(t, testHeapCapacity)
	require.NoError(t, f.pool.Create(2, 8))
	require.NoError(t, f.pool.Create(1, 32))
	f.pool.Allocate(8)

	assert.Equal(t, "MemPool{8: 1/2 used, 32: 0/1 used}", f.pool.String())
}

type recordingObserver struct {
	created, grown, failed int
	allocated, missed      int
	released               int
}

func (r *recordingObserver) PoolCreated(_, _, _ int, grown bool) {
	if grown {
		r.grown++
		return
	}
	r.created++
}

func (r *recordingObserver) PoolCreateFailed(int, int, int) { r.failed++ }

func (r *recordingObserver) BlockAllocated(_, _ int, ok bool) {
	if ok {
		r.allocated++
		return
	}
	r.missed++
}

func (r *recordingObserver) BlockReleased(int) { r.released++ }

func TestObserver(t *testing.T) {
	h, err := heap.New(testHeapCapacity)
	require.NoError(t, err)
	obs := &recordingObserver{}
	m := New(h, WithObserver(obs))

	require.NoError(t, m.Create(1, 16))
	require.NoError(t, m.Create(1, 16))
	require.Error(t, m.Create(10000, 16))

	b := m.Allocate(16)
	m.Allocate(16)
	m.Allocate(16)
	m.Release(b)

	assert.Equal(t, &recordingObserver{
		created: 1, grown: 1, failed: 1,
		allocated: 2, missed: 1, released: 1,
	}, obs)
}

func TestConcurrentAllocateRelease(t *testing.T) {
	f := newFixture(t, 16*1024)
	require.NoError(t, f.pool.Create(64, 32))
	free := f.heap.GetFree()

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for range 500 {
				b := f.pool.Allocate(32)
				if b == nil {
					continue
				}
				b.Bytes()[0] = 1
				f.pool.Release(b)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	st := f.pool.Stats()
	require.Len(t, st, 1)
	assert.Equal(t, 64, st[0].Free)
	assert.Equal(t, 0, st[0].Used)
	assert.Equal(t, free, f.heap.GetFree())
	assert.Equal(t, 0, f.ac.Count())
}

func TestRandomWorkloadInvariants(t *testing.T) {
	f := newFixture(t, 8*1024)
	for _, size := range []int{8, 16, 32, 64} {
		require.NoError(t, f.pool.Create(8, size))
	}
	free := f.heap.GetFree()

	rng := testutil.NewRNG(4711)
	var live []*Block
	for range 5000 {
		if len(live) > 0 && rng.Bool(0.45) {
			i := rng.Intn(len(live))
			f.pool.Release(live[i])
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		size := 1 + rng.Intn(64)
		if b := f.pool.Allocate(size); b != nil {
			assert.GreaterOrEqual(t, b.Size(), size)
			live = append(live, b)
		}
	}

	used := 0
	for _, s := range f.pool.Stats() {
		assert.Equal(t, s.Blocks, s.Free+s.Used)
		used += s.Used
	}
	assert.Equal(t, len(live), used)
	assert.Equal(t, free, f.heap.GetFree())
	assert.Equal(t, 0, f.ac.Count())
}

func BenchmarkAllocateRelease(b *testing.B) {
	h, err := heap.New(64 * 1024)
	require.NoError(b, err)
	m := New(h)
	for _, size := range []int{16, 32, 64, 128} {
		require.NoError(b, m.Create(32, size))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		blk := m.Allocate(48)
		m.Release(blk)
	}
}
