package list

import (
	"github.com/hupe1980/memtbx/contract"
	"github.com/hupe1980/memtbx/critsect"
)

// Default slot counts used when NewStore is called without WithCapacity.
const (
	DefaultNodeSlots = 64
	DefaultListSlots = 4
)

// Kind identifies which slot type a store is asking to grow.
type Kind int

const (
	// KindNode is a node slot.
	KindNode Kind = iota
	// KindList is a list header slot.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// GrowFunc authorises on-demand growth of a store by count slots of kind.
// Returning false refuses the growth and the triggering operation fails
// with its exhaustion value.
type GrowFunc func(kind Kind, count int) bool

// HeaderGrowth returns the number of list header slots one on-demand growth
// step adds for a store whose node step is step.
func HeaderGrowth(step int) int {
	return max(1, step/16)
}

// StoreStats is a snapshot of slot usage.
type StoreStats struct {
	Nodes     int // Node slots ever provisioned
	FreeNodes int
	Lists     int // List header slots ever provisioned
	FreeLists int
	Slabs     int // Slabs allocated (node and header)
	Refused   int // Growth requests refused by the GrowFunc
}

// Store owns the node and list header slots of every list created from it.
//
// Slots live in slabs that are never moved or freed; unused slots are kept on
// free chains and recycled. A Store never shrinks.
type Store[T any] struct {
	gate critsect.Gate
	hook *contract.Hook
	grow GrowFunc
	step int

	freeNodes *Node[T]
	freeLists *header[T]

	stats StoreStats
}

// NewStore creates a store with the configured number of preallocated slots.
func NewStore[T any](opts ...StoreOption) *Store[T] {
	o := storeOptions{
		nodes: DefaultNodeSlots,
		lists: DefaultListSlots,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[T]{
		gate: o.gate,
		hook: o.hook,
		grow: o.grow,
		step: o.step,
	}
	if s.gate == nil {
		s.gate = critsect.Nop{}
	}
	if s.step <= 0 {
		s.step = DefaultNodeSlots
	}

	s.growLocked(o.nodes, o.lists)

	return s
}

// Grow provisions additional node and list header slots.
// Negative counts are a contract violation and nothing is provisioned.
func (s *Store[T]) Grow(nodes, lists int) {
	if !s.hook.Check(nodes >= 0 && lists >= 0) {
		return
	}

	s.gate.Enter()
	defer s.gate.Exit()

	s.growLocked(nodes, lists)
}

// Stats returns a snapshot of slot usage.
func (s *Store[T]) Stats() StoreStats {
	s.gate.Enter()
	defer s.gate.Exit()

	return s.stats
}

// Create returns a new empty list, or nil when no header slot is obtainable.
func (s *Store[T]) Create() *List[T] {
	s.gate.Enter()
	defer s.gate.Exit()

	if s.freeLists == nil && !s.growOnDemand(KindList) {
		return nil
	}

	h := s.freeLists
	s.freeLists = h.nextFree
	s.stats.FreeLists--

	*h = header[T]{store: s, live: true, gen: h.gen + 1}
	return &List[T]{header: h, gen: h.gen}
}

func (s *Store[T]) growLocked(nodes, lists int) {
	if nodes > 0 {
		slab := make([]Node[T], nodes)
		for i := len(slab) - 1; i >= 0; i-- {
			slab[i].store = s
			slab[i].next = s.freeNodes
			s.freeNodes = &slab[i]
		}
		s.stats.Nodes += nodes
		s.stats.FreeNodes += nodes
		s.stats.Slabs++
	}

	if lists > 0 {
		slab := make([]header[T], lists)
		for i := len(slab) - 1; i >= 0; i-- {
			slab[i].store = s
			slab[i].nextFree = s.freeLists
			s.freeLists = &slab[i]
		}
		s.stats.Lists += lists
		s.stats.FreeLists += lists
		s.stats.Slabs++
	}
}

// growOnDemand asks the GrowFunc for one step of kind. Caller holds the gate.
func (s *Store[T]) growOnDemand(kind Kind) bool {
	if s.grow == nil {
		return false
	}

	count := s.step
	if kind == KindList {
		count = HeaderGrowth(s.step)
	}

	if !s.grow(kind, count) {
		s.stats.Refused++
		return false
	}

	if kind == KindNode {
		s.growLocked(count, 0)
	} else {
		s.growLocked(0, count)
	}
	return true
}

func (s *Store[T]) takeNode(l *List[T], item *T) *Node[T] {
	s.gate.Enter()
	defer s.gate.Exit()

	if s.freeNodes == nil && !s.growOnDemand(KindNode) {
		return nil
	}

	n := s.freeNodes
	s.freeNodes = n.next
	s.stats.FreeNodes--

	*n = Node[T]{item: item, list: l, store: s, live: true}
	return n
}

// releaseChain returns count nodes starting at head to the free chain.
func (s *Store[T]) releaseChain(head *Node[T], count int) {
	s.gate.Enter()
	defer s.gate.Exit()

	for n := head; n != nil && count > 0; count-- {
		next := n.next
		*n = Node[T]{store: s, next: s.freeNodes}
		s.freeNodes = n
		s.stats.FreeNodes++
		n = next
	}
}

// releaseList returns the header of l to the free chain. The generation is
// kept so handles from earlier Creates never match the slot again.
func (s *Store[T]) releaseList(l *List[T]) {
	s.gate.Enter()
	defer s.gate.Exit()

	h := l.header
	*h = header[T]{store: s, gen: h.gen, nextFree: s.freeLists}
	s.freeLists = h
	s.stats.FreeLists++
}
