package testutil

import (
	"sync"

	"github.com/hupe1980/memtbx/contract"
)

// Location is the source position of a reported contract violation.
type Location struct {
	File string
	Line int
}

// AssertCounter records every contract violation it is handed.
// It is safe for concurrent use.
type AssertCounter struct {
	mu   sync.Mutex
	seen []Location
}

// NewAssertCounter creates an empty counter.
func NewAssertCounter() *AssertCounter {
	return &AssertCounter{}
}

// Handler returns the contract.Handler that feeds this counter.
func (c *AssertCounter) Handler() contract.Handler {
	return func(file string, line int) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.seen = append(c.seen, Location{File: file, Line: line})
	}
}

// Hook returns a new contract.Hook that reports into this counter.
func (c *AssertCounter) Hook() *contract.Hook {
	return contract.New(c.Handler())
}

// Count returns the number of violations recorded so far.
func (c *AssertCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Last returns the most recent violation, or false if none was recorded.
func (c *AssertCounter) Last() (Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) == 0 {
		return Location{}, false
	}
	return c.seen[len(c.seen)-1], true
}

// Reset forgets all recorded violations.
func (c *AssertCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = c.seen[:0]
}
