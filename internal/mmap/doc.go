// Package mmap provides anonymous memory mappings for off-heap arenas.
//
// # Overview
//
// An anonymous mapping is a read-write region obtained directly from the
// operating system. Memory inside it is invisible to the Go garbage collector,
// which makes it a close stand-in for the static arena of a bare-metal target:
// the region has a fixed size, is never moved, and lives until Close.
//
// # Usage
//
//	m, err := mmap.MapAnon(64 * 1024)
//	if err != nil { ... }
//	defer m.Close()
//
//	arena := m.Bytes()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE
//   - Windows: VirtualAlloc with MEM_RESERVE|MEM_COMMIT
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure no
// goroutine touches Bytes() after Close returns.
package mmap
