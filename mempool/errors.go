package mempool

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned by Create when numBlocks or blockSize is
	// not positive.
	ErrInvalidArgument = errors.New("mempool: block count and size must be positive")

	// ErrOutOfMemory is returned when the heap cannot supply a pool's storage.
	ErrOutOfMemory = errors.New("mempool: out of memory")
)

// InsufficientHeapError reports a Create request the heap could not satisfy.
//
// It unwraps to ErrOutOfMemory.
type InsufficientHeapError struct {
	BlockSize int
	NumBlocks int
	Requested int // Heap bytes the request needed
	Free      int // Heap bytes available at the time
}

func (e *InsufficientHeapError) Error() string {
	return fmt.Sprintf("mempool: insufficient heap for %d blocks of %d bytes: requested %d, free %d",
		e.NumBlocks, e.BlockSize, e.Requested, e.Free)
}

func (e *InsufficientHeapError) Unwrap() error { return ErrOutOfMemory }
