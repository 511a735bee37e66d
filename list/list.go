// Package list implements an intrusive doubly-linked list whose node storage
// is self-hosted in a Store.
//
// A list chains references to caller-owned items; it never copies or frees
// the items themselves. Node and header slots come from the Store's slabs and
// return to it on Clear and Delete, so steady-state inserts and removals
// perform no allocation.
//
// Invalid handles (nil, deleted, or belonging to another store) and nil items
// are contract violations: they are reported through the store's hook and the
// operation returns its failure value. Running out of slots is not a
// violation; the operation simply fails.
//
// Lists are not safe for concurrent mutation. The store gate only protects
// the shared free chains.
package list

import (
	"iter"

	"github.com/hupe1980/memtbx/contract"
)

// Node is the link cell holding one item reference.
type Node[T any] struct {
	item  *T
	prev  *Node[T]
	next  *Node[T]
	list  *List[T]
	store *Store[T]
	live  bool
}

// Item returns the referenced item.
func (n *Node[T]) Item() *T {
	return n.item
}

// List returns the list currently holding n, or nil for a released node.
func (n *Node[T]) List() *List[T] {
	return n.list
}

// Next returns the following node, or nil at the tail.
func (n *Node[T]) Next() *Node[T] {
	return n.next
}

// Prev returns the preceding node, or nil at the head.
func (n *Node[T]) Prev() *Node[T] {
	return n.prev
}

// List is a handle to a doubly-linked sequence of item references.
//
// A handle is bound to one Create of its header slot. Once the list is
// deleted the handle stays invalid, even after the store hands the slot out
// again.
type List[T any] struct {
	*header[T]
	gen uint32
}

// header is the recyclable list header slot.
type header[T any] struct {
	head     *Node[T]
	tail     *Node[T]
	size     int
	store    *Store[T]
	live     bool
	gen      uint32
	nextFree *header[T]
}

func (l *List[T]) valid() bool {
	return l != nil && l.header != nil && l.live && l.header.gen == l.gen
}

// check reports an invalid list through the store hook (or the default
// handler when l is nil) and returns whether l is usable.
func (l *List[T]) check() bool {
	if l.valid() {
		return true
	}
	if l != nil && l.header != nil && l.store != nil {
		l.store.hook.Fail()
	} else {
		(*contract.Hook)(nil).Fail()
	}
	return false
}

// Delete releases every node and the header back to the store. The handle
// must not be used afterwards.
func (l *List[T]) Delete() {
	if !l.check() {
		return
	}
	l.store.releaseChain(l.head, l.size)
	l.store.releaseList(l)
}

// Clear detaches every item. The list stays valid and empty.
func (l *List[T]) Clear() {
	if !l.check() {
		return
	}
	l.store.releaseChain(l.head, l.size)
	l.head, l.tail, l.size = nil, nil, 0
}

// GetSize returns the number of items. It returns 0 for an invalid list.
func (l *List[T]) GetSize() int {
	if !l.check() {
		return 0
	}
	return l.size
}

// InsertItemFront links item at the head.
// It returns false for an invalid list or nil item (contract violation) and
// when no node slot is obtainable.
func (l *List[T]) InsertItemFront(item *T) bool {
	return l.PushFront(item) != nil
}

// InsertItemBack links item at the tail.
// Failure values follow InsertItemFront.
func (l *List[T]) InsertItemBack(item *T) bool {
	return l.PushBack(item) != nil
}

// InsertItemBefore links item directly before the first occurrence of ref.
// A ref that is not in the list is a contract violation.
func (l *List[T]) InsertItemBefore(item, ref *T) bool {
	at := l.findRef(item, ref)
	if at == nil {
		return false
	}
	n := l.store.takeNode(l, item)
	if n == nil {
		return false
	}
	l.linkBefore(n, at)
	return true
}

// InsertItemAfter links item directly after the first occurrence of ref.
// A ref that is not in the list is a contract violation.
func (l *List[T]) InsertItemAfter(item, ref *T) bool {
	at := l.findRef(item, ref)
	if at == nil {
		return false
	}
	n := l.store.takeNode(l, item)
	if n == nil {
		return false
	}
	l.linkAfter(n, at)
	return true
}

// GetFirstItem returns the head item, or nil for an empty or invalid list.
func (l *List[T]) GetFirstItem() *T {
	if !l.check() || l.head == nil {
		return nil
	}
	return l.head.item
}

// GetLastItem returns the tail item, or nil for an empty or invalid list.
func (l *List[T]) GetLastItem() *T {
	if !l.check() || l.tail == nil {
		return nil
	}
	return l.tail.item
}

// GetNextItem returns the item following ref, or nil when ref is the tail.
func (l *List[T]) GetNextItem(ref *T) *T {
	n := l.findItem(ref)
	if n == nil || n.next == nil {
		return nil
	}
	return n.next.item
}

// GetPreviousItem returns the item preceding ref, or nil when ref is the head.
func (l *List[T]) GetPreviousItem(ref *T) *T {
	n := l.findItem(ref)
	if n == nil || n.prev == nil {
		return nil
	}
	return n.prev.item
}

// RemoveItem unlinks the first occurrence of item and reports whether it did.
func (l *List[T]) RemoveItem(item *T) bool {
	n := l.findItem(item)
	if n == nil {
		return false
	}
	l.unlink(n)
	l.store.releaseChain(n, 1)
	return true
}

// SwapItems exchanges the positions of a and b.
func (l *List[T]) SwapItems(a, b *T) bool {
	na := l.findItem(a)
	if na == nil {
		return false
	}
	nb := l.findItem(b)
	if nb == nil {
		return false
	}
	na.item, nb.item = nb.item, na.item
	return true
}

// SortItems orders the list by less. The sort is stable and allocation-free.
func (l *List[T]) SortItems(less func(a, b *T) bool) {
	if !l.check() || !l.store.hook.Check(less != nil) || l.size < 2 {
		return
	}

	l.head = sortChain(l.head, l.size, less)

	var prev *Node[T]
	for n := l.head; n != nil; n = n.next {
		n.prev = prev
		prev = n
	}
	l.tail = prev
}

// Items returns an iterator over the items from head to tail.
func (l *List[T]) Items() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		if !l.check() {
			return
		}
		for n := l.head; n != nil; {
			next := n.next
			if !yield(n.item) {
				return
			}
			n = next
		}
	}
}

// findItem locates the first node referencing item. A missing item is a
// contract violation.
func (l *List[T]) findItem(item *T) *Node[T] {
	if !l.check() || !l.store.hook.Check(item != nil) {
		return nil
	}
	for n := l.head; n != nil; n = n.next {
		if n.item == item {
			return n
		}
	}
	l.store.hook.Fail()
	return nil
}

func (l *List[T]) findRef(item, ref *T) *Node[T] {
	if !l.check() || !l.store.hook.Check(item != nil) {
		return nil
	}
	return l.findItem(ref)
}

func (l *List[T]) linkFront(n *Node[T]) {
	n.list = l
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.size++
}

func (l *List[T]) linkBack(n *Node[T]) {
	n.list = l
	n.next = nil
	n.prev = l.tail
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.size++
}

func (l *List[T]) linkBefore(n, at *Node[T]) {
	if at.prev == nil {
		l.linkFront(n)
		return
	}
	n.list = l
	n.prev = at.prev
	n.next = at
	at.prev.next = n
	at.prev = n
	l.size++
}

func (l *List[T]) linkAfter(n, at *Node[T]) {
	if at.next == nil {
		l.linkBack(n)
		return
	}
	n.list = l
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
	l.size++
}

func (l *List[T]) unlink(n *Node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next, n.list = nil, nil, nil
	l.size--
}

// sortChain merge-sorts the n-node chain starting at head by next links only.
func sortChain[T any](head *Node[T], n int, less func(a, b *T) bool) *Node[T] {
	if n < 2 {
		return head
	}

	mid := n / 2
	cut := head
	for i := 1; i < mid; i++ {
		cut = cut.next
	}
	right := cut.next
	cut.next = nil

	return mergeChains(sortChain(head, mid, less), sortChain(right, n-mid, less), less)
}

func mergeChains[T any](a, b *Node[T], less func(a, b *T) bool) *Node[T] {
	var head Node[T]
	tail := &head
	for a != nil && b != nil {
		// Take from b only when strictly smaller to keep equal items in order.
		if less(b.item, a.item) {
			tail.next, b = b, b.next
		} else {
			tail.next, a = a, a.next
		}
		tail = tail.next
	}
	if a != nil {
		tail.next = a
	} else {
		tail.next = b
	}
	return head.next
}
