package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/organizerlabs/smart-search-organizer/pkg/logger"
)

// Timeout returns middleware that bounds each request to limit. The handler
// runs with a deadline-carrying context; when the deadline fires before the
// handler has written anything, the client gets a JSON 504 and the late
// handler's writes are suppressed. A handler that already started its
// response is left to finish it.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	log := logger.WithComponent("middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if dw.expire() {
					log.Warn("request deadline exceeded",
						"method", r.Method,
						"path", r.URL.Path,
						"limit", limit,
						"request_id", GetRequestID(r.Context()),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timed out"}`))
				}
			}
		})
	}
}

// deadlineWriter gates the underlying writer so that exactly one party
// produces the response: the handler if it writes in time, the timeout
// branch otherwise. Late handler writes after expiry are dropped.
type deadlineWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	started bool
	expired bool
}

// expire marks the response as taken over by the timeout branch. It reports
// false when the handler already started writing.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.started {
		return false
	}
	dw.expired = true
	return true
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return
	}
	dw.started = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return len(b), nil
	}
	dw.started = true
	return dw.ResponseWriter.Write(b)
}
