package list

// PushFront links item at the head and returns its node.
// It returns nil for an invalid list or nil item (contract violation) and when
// no node slot is obtainable.
func (l *List[T]) PushFront(item *T) *Node[T] {
	if !l.check() || !l.store.hook.Check(item != nil) {
		return nil
	}
	n := l.store.takeNode(l, item)
	if n == nil {
		return nil
	}
	l.linkFront(n)
	return n
}

// PushBack links item at the tail and returns its node.
func (l *List[T]) PushBack(item *T) *Node[T] {
	if !l.check() || !l.store.hook.Check(item != nil) {
		return nil
	}
	n := l.store.takeNode(l, item)
	if n == nil {
		return nil
	}
	l.linkBack(n)
	return n
}

// Front returns the head node, or nil for an empty or invalid list.
func (l *List[T]) Front() *Node[T] {
	if !l.check() {
		return nil
	}
	return l.head
}

// Back returns the tail node, or nil for an empty or invalid list.
func (l *List[T]) Back() *Node[T] {
	if !l.check() {
		return nil
	}
	return l.tail
}

// MoveToFront relinks n at the head of l, taking it from whichever list of
// the same store currently holds it. O(1).
func (l *List[T]) MoveToFront(n *Node[T]) bool {
	if !l.checkNode(n) {
		return false
	}
	n.list.unlink(n)
	l.linkFront(n)
	return true
}

// MoveToBack relinks n at the tail of l. See MoveToFront.
func (l *List[T]) MoveToBack(n *Node[T]) bool {
	if !l.checkNode(n) {
		return false
	}
	n.list.unlink(n)
	l.linkBack(n)
	return true
}

// Remove unlinks n from l and returns its slot to the store.
func (l *List[T]) Remove(n *Node[T]) bool {
	if !l.checkNode(n) || !l.store.hook.Check(n.list == l) {
		return false
	}
	l.unlink(n)
	l.store.releaseChain(n, 1)
	return true
}

func (l *List[T]) checkNode(n *Node[T]) bool {
	if !l.check() {
		return false
	}
	return l.store.hook.Check(n != nil && n.live && n.store == l.store && n.list.valid())
}
