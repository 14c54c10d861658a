package http

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/yanqian/fittrack/internal/infra/config"
)

// withRetry replays idempotent GET requests that failed with a 5xx, typically a dropped
// database connection. Auth mutations are never replayed: a second attempt at a refresh
// would present an already rotated token.
func withRetry(handler http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return handler
	}
	exclusions := make(map[string]struct{}, len(cfg.Exclude))
	for _, path := range cfg.Exclude {
		exclusions[path] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !retryable(r, exclusions) {
			handler.ServeHTTP(w, r)
			return
		}

		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			if attempt > 1 {
				delay := cfg.BaseBackoff * time.Duration(1<<(attempt-2))
				select {
				case <-r.Context().Done():
					http.Error(w, r.Context().Err().Error(), http.StatusServiceUnavailable)
					return
				case <-time.After(delay):
				}
			}

			recorder := newRetryResponseRecorder(w)
			handler.ServeHTTP(recorder, r.Clone(r.Context()))
			if !recorder.retryable() || attempt == cfg.MaxAttempts {
				recorder.Commit()
				return
			}

			logger.Warn("transient failure, retrying request", "path", r.URL.Path, "status", recorder.statusCode, "attempt", attempt)
		}
	})
}

func retryable(r *http.Request, exclusions map[string]struct{}) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if _, skip := exclusions[r.URL.Path]; skip {
		return false
	}
	return !strings.HasPrefix(r.URL.Path, "/metrics")
}

type retryResponseRecorder struct {
	dst        http.ResponseWriter
	header     http.Header
	body       bytes.Buffer
	statusCode int
	wroteHead  bool
}

func newRetryResponseRecorder(dst http.ResponseWriter) *retryResponseRecorder {
	return &retryResponseRecorder{
		dst:        dst,
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (r *retryResponseRecorder) Header() http.Header {
	return r.header
}

func (r *retryResponseRecorder) WriteHeader(status int) {
	if r.wroteHead {
		return
	}
	r.statusCode = status
	r.wroteHead = true
}

func (r *retryResponseRecorder) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

func (r *retryResponseRecorder) Commit() {
	dstHeader := r.dst.Header()
	for k, values := range r.header {
		dstHeader[k] = append([]string(nil), values...)
	}
	r.dst.WriteHeader(r.statusCode)
	if r.body.Len() > 0 {
		_, _ = r.dst.Write(r.body.Bytes())
	}
}

func (r *retryResponseRecorder) retryable() bool {
	return r.statusCode >= http.StatusInternalServerError
}

func (r *retryResponseRecorder) Flush() {}
