package contract

import (
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// NewLogHandler returns a Handler that logs violations through logger at
// error level, emitting at most one record per interval with the given burst.
//
// Reports dropped by the limiter are counted; the next emitted record carries
// the count in its "suppressed" attribute. A nil logger uses slog.Default().
// An interval <= 0 disables rate limiting.
func NewLogHandler(logger *slog.Logger, every time.Duration, burst int) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	limiter := rate.NewLimiter(limit, burst)

	var suppressed atomic.Uint64

	return func(file string, line int) {
		if !limiter.Allow() {
			suppressed.Add(1)
			return
		}
		logger.Error("contract violation",
			slog.String("file", file),
			slog.Int("line", line),
			slog.Uint64("suppressed", suppressed.Swap(0)),
		)
	}
}

// Chain returns a Handler that invokes every non-nil handler in order.
func Chain(handlers ...Handler) Handler {
	active := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	return func(file string, line int) {
		for _, h := range active {
			h(file, line)
		}
	}
}
