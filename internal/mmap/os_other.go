//go:build !unix && !windows

package mmap

// Platforms without virtual memory fall back to a Go-managed buffer.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}
