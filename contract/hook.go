package contract

import (
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
)

// Handler receives the location of a detected contract violation.
type Handler func(file string, line int)

// DefaultHandler logs the violation at error level through slog.Default().
func DefaultHandler(file string, line int) {
	slog.Default().Error("contract violation", "file", file, "line", line)
}

// Hook dispatches contract violations to the active Handler.
// It is safe for concurrent use.
type Hook struct {
	mu         sync.RWMutex
	handler    Handler
	violations atomic.Uint64
}

// New creates a Hook with the given handler.
// A nil handler installs DefaultHandler.
func New(h Handler) *Hook {
	if h == nil {
		h = DefaultHandler
	}
	return &Hook{handler: h}
}

// SetHandler replaces the active handler.
//
// Passing nil is a violation: the active handler is invoked with the location
// of the SetHandler call and stays installed.
func (h *Hook) SetHandler(fn Handler) {
	if fn == nil {
		h.report(2)
		return
	}
	if h == nil {
		return
	}
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

// Check reports a violation at the caller's location when cond is false.
// It returns cond so call sites can bail out with their failure value:
//
//	if !hook.Check(list != nil) {
//	    return 0
//	}
func (h *Hook) Check(cond bool) bool {
	if !cond {
		h.report(2)
	}
	return cond
}

// Fail reports a violation at the caller's location unconditionally.
func (h *Hook) Fail() {
	h.report(2)
}

// Trigger reports a violation at an explicit location.
func (h *Hook) Trigger(file string, line int) {
	if h == nil {
		DefaultHandler(file, line)
		return
	}
	h.violations.Add(1)
	h.mu.RLock()
	fn := h.handler
	h.mu.RUnlock()
	fn(file, line)
}

// Violations returns the number of violations reported so far.
func (h *Hook) Violations() uint64 {
	if h == nil {
		return 0
	}
	return h.violations.Load()
}

// report resolves the caller skip frames above itself and triggers the handler.
func (h *Hook) report(skip int) {
	file, line := caller(skip + 1)
	h.Trigger(file, line)
}

func caller(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", 0
	}
	return filepath.Base(file), line
}
