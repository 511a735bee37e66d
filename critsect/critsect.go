// Package critsect provides the critical-section gate that protects shared
// allocator state.
//
// On a bare-metal target a critical section masks interrupts; here it is a
// binary semaphore. Enter and Exit must be strictly paired and are not
// re-entrant: entering a section that the same caller already holds blocks
// forever. Components that call into each other therefore each own a
// separate Section.
package critsect

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/memtbx/contract"
)

// Gate is the mutual-exclusion contract consumed by the heap and the pools.
type Gate interface {
	Enter()
	Exit()
}

// Section is a non-reentrant critical section.
type Section struct {
	sem  *semaphore.Weighted
	held atomic.Bool
	hook *contract.Hook
}

// New creates a Section that reports unbalanced exits through hook.
func New(hook *contract.Hook) *Section {
	return &Section{
		sem:  semaphore.NewWeighted(1),
		hook: hook,
	}
}

// Enter blocks until the section is free and takes it.
func (s *Section) Enter() {
	// Acquire only fails on context cancellation; Background is never cancelled.
	_ = s.sem.Acquire(context.Background(), 1)
	s.held.Store(true)
}

// TryEnter takes the section if it is free and reports whether it did.
func (s *Section) TryEnter() bool {
	if !s.sem.TryAcquire(1) {
		return false
	}
	s.held.Store(true)
	return true
}

// Exit leaves the section. Exiting a section that is not held is a contract
// violation; it is reported and nothing is released.
func (s *Section) Exit() {
	if !s.held.CompareAndSwap(true, false) {
		s.hook.Fail()
		return
	}
	s.sem.Release(1)
}

// Held reports whether the section is currently entered.
func (s *Section) Held() bool {
	return s.held.Load()
}

// Nop is a Gate that performs no locking. Use it when a single goroutine owns
// the allocator, or when an outer gate already serialises access.
type Nop struct{}

func (Nop) Enter() {}
func (Nop) Exit()  {}

var (
	_ Gate = (*Section)(nil)
	_ Gate = Nop{}
)
