package list

import (
	"bytes"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memtbx/testutil"
)

type msg struct {
	id   uint32
	data [8]byte
}

func newTestList(t *testing.T, opts ...StoreOption) (*List[msg], *testutil.AssertCounter) {
	t.Helper()
	ac := testutil.NewAssertCounter()
	s := NewStore[msg](append([]StoreOption{WithHook(ac.Hook())}, opts...)...)
	l := s.Create()
	require.NotNil(t, l)
	return l, ac
}

func ids(l *List[msg]) []uint32 {
	var out []uint32
	for m := range l.Items() {
		out = append(out, m.id)
	}
	return out
}

// assertLinks walks the list in both directions and checks the cached size.
func assertLinks[T any](t *testing.T, l *List[T]) {
	t.Helper()

	forward := 0
	var last *Node[T]
	for n := l.head; n != nil; n = n.next {
		forward++
		last = n
	}
	assert.Equal(t, l.tail, last)

	backward := 0
	for n := l.tail; n != nil; n = n.prev {
		backward++
	}

	assert.Equal(t, l.size, forward)
	assert.Equal(t, l.size, backward)
	if l.head != nil {
		assert.Nil(t, l.head.prev)
		assert.Nil(t, l.tail.next)
	}
}

func TestStore_CreateReturnsValidList(t *testing.T) {
	l, ac := newTestList(t)

	assert.Equal(t, 0, l.GetSize())
	assert.Nil(t, l.GetFirstItem())
	assert.Nil(t, l.GetLastItem())
	assert.Equal(t, 0, ac.Count())
}

func TestStore_CreateExhausted(t *testing.T) {
	ac := testutil.NewAssertCounter()
	s := NewStore[msg](WithCapacity(4, 1), WithHook(ac.Hook()))

	require.NotNil(t, s.Create())
	assert.Nil(t, s.Create())
	assert.Equal(t, 0, ac.Count(), "header exhaustion is not a contract violation")
}

func TestList_DeleteInvalid(t *testing.T) {
	l, ac := newTestList(t)

	l.Delete()
	assert.Equal(t, 0, ac.Count())

	l.Delete()
	assert.Equal(t, 1, ac.Count())
}

func TestList_NilHandleUsesDefaultHandler(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var l *List[msg]
	l.Delete()
	assert.Equal(t, 0, l.GetSize())
	assert.False(t, l.InsertItemBack(&msg{}))

	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("contract violation")))
}

func TestList_DeleteRecyclesSlots(t *testing.T) {
	s := NewStore[msg](WithCapacity(2, 1))

	l := s.Create()
	require.NotNil(t, l)
	require.True(t, l.InsertItemBack(&msg{id: 1}))
	require.True(t, l.InsertItemBack(&msg{id: 2}))
	assert.False(t, l.InsertItemBack(&msg{id: 3}))

	l.Delete()

	st := s.Stats()
	assert.Equal(t, 2, st.FreeNodes)
	assert.Equal(t, 1, st.FreeLists)

	l2 := s.Create()
	require.NotNil(t, l2)
	assert.True(t, l2.InsertItemBack(&msg{id: 4}))
	assert.True(t, l2.InsertItemBack(&msg{id: 5}))
}

func TestList_DeletedHandleStaysInvalid(t *testing.T) {
	ac := testutil.NewAssertCounter()
	s := NewStore[msg](WithCapacity(4, 1), WithHook(ac.Hook()))

	old := s.Create()
	require.NotNil(t, old)
	old.Delete()

	fresh := s.Create()
	require.NotNil(t, fresh)
	require.Same(t, old.header, fresh.header, "the header slot is reused")
	require.True(t, fresh.InsertItemBack(&msg{id: 1}))
	require.Equal(t, 0, ac.Count())

	assert.Equal(t, 0, old.GetSize())
	assert.Equal(t, 1, ac.Count())
	assert.Nil(t, old.GetFirstItem())
	assert.False(t, old.InsertItemBack(&msg{id: 2}))
	old.Clear()
	old.Delete()
	assert.Equal(t, 5, ac.Count())

	assert.Equal(t, 1, fresh.GetSize())
	assert.Equal(t, []uint32{1}, ids(fresh))
	assert.Equal(t, 5, ac.Count())
}

func TestList_StaleNodeAfterRecreate(t *testing.T) {
	ac := testutil.NewAssertCounter()
	s := NewStore[msg](WithCapacity(4, 2), WithHook(ac.Hook()))

	src := s.Create()
	dst := s.Create()
	n := src.PushBack(&msg{id: 1})
	require.NotNil(t, n)
	src.Delete()

	again := s.Create()
	require.NotNil(t, again)

	assert.False(t, dst.MoveToFront(n), "a node of a deleted list is gone")
	assert.Equal(t, 1, ac.Count())
	assert.Equal(t, 0, dst.GetSize())
	assert.Equal(t, 0, again.GetSize())
}

func TestList_Clear(t *testing.T) {
	l, ac := newTestList(t)
	a, b := &msg{id: 1}, &msg{id: 2}

	require.True(t, l.InsertItemBack(a))
	require.True(t, l.InsertItemBack(b))
	assert.Equal(t, 2, l.GetSize())

	l.Clear()
	assert.Equal(t, 0, l.GetSize())
	assert.Equal(t, uint32(1), a.id, "items are untouched")

	require.True(t, l.InsertItemBack(a))
	require.True(t, l.InsertItemBack(b))
	assert.Equal(t, 2, l.GetSize())
	assertLinks(t, l)

	l.Delete()
	assert.Equal(t, 0, ac.Count())
}

func TestList_ClearInvalid(t *testing.T) {
	l, ac := newTestList(t)
	l.Delete()

	l.Clear()
	assert.Equal(t, 1, ac.Count())
}

func TestList_GetSizeInvalid(t *testing.T) {
	l, ac := newTestList(t)
	require.True(t, l.InsertItemBack(&msg{}))
	l.Delete()

	assert.Equal(t, 0, l.GetSize())
	assert.Equal(t, 1, ac.Count())
}

func TestList_InsertInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		insert func(*List[msg], *msg) bool
	}{
		{"front", (*List[msg]).InsertItemFront},
		{"back", (*List[msg]).InsertItemBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ac := newTestList(t)

			assert.False(t, tt.insert(l, nil))
			assert.Equal(t, 1, ac.Count())
			assert.Equal(t, 0, l.GetSize())

			l.Delete()
			assert.False(t, tt.insert(l, &msg{}))
			assert.Equal(t, 2, ac.Count())
		})
	}
}

func TestList_InsertFrontAndBack(t *testing.T) {
	l, ac := newTestList(t)
	a, b, c := &msg{id: 1}, &msg{id: 2}, &msg{id: 3}

	require.True(t, l.InsertItemFront(a))
	assert.Same(t, a, l.GetFirstItem())
	assert.Same(t, a, l.GetLastItem())

	require.True(t, l.InsertItemFront(b))
	require.True(t, l.InsertItemBack(c))

	assert.Equal(t, []uint32{2, 1, 3}, ids(l))
	assert.Same(t, b, l.GetFirstItem())
	assert.Same(t, c, l.GetLastItem())
	assert.Equal(t, 3, l.GetSize())
	assertLinks(t, l)
	assert.Equal(t, 0, ac.Count())
}

func TestList_NoDuplicateDetection(t *testing.T) {
	l, _ := newTestList(t)
	a := &msg{id: 7}

	require.True(t, l.InsertItemBack(a))
	require.True(t, l.InsertItemBack(a))

	assert.Equal(t, 2, l.GetSize())
}

func TestList_NodeExhaustionDoesNotAssert(t *testing.T) {
	l, ac := newTestList(t, WithCapacity(1, 1))

	require.True(t, l.InsertItemBack(&msg{}))
	assert.False(t, l.InsertItemFront(&msg{}))
	assert.Equal(t, 1, l.GetSize())
	assert.Equal(t, 0, ac.Count())
}

func TestList_InsertBeforeAfter(t *testing.T) {
	l, ac := newTestList(t)
	a, b, c, d := &msg{id: 1}, &msg{id: 2}, &msg{id: 3}, &msg{id: 4}

	require.True(t, l.InsertItemBack(b))
	require.True(t, l.InsertItemBefore(a, b))
	require.True(t, l.InsertItemAfter(d, b))
	require.True(t, l.InsertItemBefore(c, d))

	assert.Equal(t, []uint32{1, 2, 3, 4}, ids(l))
	assertLinks(t, l)
	assert.Equal(t, 0, ac.Count())

	assert.False(t, l.InsertItemAfter(&msg{}, &msg{}), "unknown ref")
	assert.False(t, l.InsertItemBefore(nil, a), "nil item")
	assert.Equal(t, 2, ac.Count())
	assert.Equal(t, 4, l.GetSize())
}

func TestList_Neighbours(t *testing.T) {
	l, ac := newTestList(t)
	a, b, c := &msg{id: 1}, &msg{id: 2}, &msg{id: 3}
	for _, m := range []*msg{a, b, c} {
		require.True(t, l.InsertItemBack(m))
	}

	assert.Same(t, b, l.GetNextItem(a))
	assert.Same(t, b, l.GetPreviousItem(c))
	assert.Nil(t, l.GetNextItem(c))
	assert.Nil(t, l.GetPreviousItem(a))
	assert.Equal(t, 0, ac.Count())

	assert.Nil(t, l.GetNextItem(&msg{}))
	assert.Equal(t, 1, ac.Count())
}

func TestList_RemoveItem(t *testing.T) {
	l, ac := newTestList(t, WithCapacity(3, 1))
	a, b, c := &msg{id: 1}, &msg{id: 2}, &msg{id: 3}
	for _, m := range []*msg{a, b, c} {
		require.True(t, l.InsertItemBack(m))
	}

	require.True(t, l.RemoveItem(b))
	assert.Equal(t, []uint32{1, 3}, ids(l))
	assertLinks(t, l)

	require.True(t, l.RemoveItem(a))
	require.True(t, l.RemoveItem(c))
	assert.Equal(t, 0, l.GetSize())
	assert.Nil(t, l.GetFirstItem())
	assert.Equal(t, 0, ac.Count())

	assert.False(t, l.RemoveItem(a))
	assert.Equal(t, 1, ac.Count())

	// Removed slots are reusable.
	for _, m := range []*msg{a, b, c} {
		require.True(t, l.InsertItemBack(m))
	}
}

func TestList_SwapItems(t *testing.T) {
	l, ac := newTestList(t)
	a, b, c := &msg{id: 1}, &msg{id: 2}, &msg{id: 3}
	for _, m := range []*msg{a, b, c} {
		require.True(t, l.InsertItemBack(m))
	}

	require.True(t, l.SwapItems(a, c))
	assert.Equal(t, []uint32{3, 2, 1}, ids(l))
	assert.Same(t, c, l.GetFirstItem())
	assert.Same(t, a, l.GetLastItem())

	assert.False(t, l.SwapItems(a, &msg{}))
	assert.Equal(t, 1, ac.Count())
}

func TestList_SortItemsStable(t *testing.T) {
	l, ac := newTestList(t, WithCapacity(256, 1))
	rng := testutil.NewRNG(4711)

	items := make([]*msg, 200)
	for i := range items {
		items[i] = &msg{id: uint32(i)}
		items[i].data[0] = byte(rng.Intn(10))
		require.True(t, l.InsertItemBack(items[i]))
	}

	l.SortItems(func(a, b *msg) bool { return a.data[0] < b.data[0] })

	var got []*msg
	for m := range l.Items() {
		got = append(got, m)
	}

	want := slices.Clone(items)
	slices.SortStableFunc(want, func(a, b *msg) int { return int(a.data[0]) - int(b.data[0]) })

	assert.Equal(t, want, got)
	assertLinks(t, l)
	assert.Equal(t, 0, ac.Count())

	l.SortItems(nil)
	assert.Equal(t, 1, ac.Count())
}

func TestList_ItemsEarlyStop(t *testing.T) {
	l, _ := newTestList(t)
	for i := range 5 {
		require.True(t, l.InsertItemBack(&msg{id: uint32(i)}))
	}

	var seen int
	for range l.Items() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestList_SizeInvariantRandomOps(t *testing.T) {
	l, ac := newTestList(t, WithCapacity(1024, 1))
	rng := testutil.NewRNG(42)
	want := 0

	for range 2000 {
		switch rng.Intn(10) {
		case 0:
			l.Clear()
			want = 0
		case 1, 2, 3, 4:
			if l.InsertItemFront(&msg{}) {
				want++
			}
		default:
			if l.InsertItemBack(&msg{}) {
				want++
			}
		}
		require.Equal(t, want, l.GetSize())
	}
	assertLinks(t, l)
	assert.Equal(t, 0, ac.Count())
}

func BenchmarkList_InsertClear(b *testing.B) {
	s := NewStore[msg](WithCapacity(64, 1))
	l := s.Create()
	item := &msg{}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range 64 {
			l.InsertItemBack(item)
		}
		l.Clear()
	}
}
