package http

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/fittrack/internal/infra/config"
	"github.com/yanqian/fittrack/pkg/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// errorHandlingMiddleware renders the last gin error as the failure envelope. Internal
// details reach the client only when exposeInternal is set.
func errorHandlingMiddleware(logger *slog.Logger, exposeInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, logger, exposeInternal, asHTTPError(c.Errors.Last().Err))
	}
}

// recoveryMiddleware turns a panic into the INTERNAL_ERROR envelope. It sits outside every
// other middleware, so it renders the response itself.
func recoveryMiddleware(logger *slog.Logger, exposeInternal bool) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		httpErr := NewHTTPError(http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage, fmt.Errorf("panic: %v", recovered))
		abortWithError(c, httpErr)
		if c.Writer.Written() {
			logger.Error("panic after response was written", "error", httpErr.Err, "path", c.Request.URL.Path)
			return
		}
		writeError(c, logger, exposeInternal, httpErr)
	})
}

func writeError(c *gin.Context, logger *slog.Logger, exposeInternal bool, httpErr *HTTPError) {
	message := httpErr.Message
	if message == "" {
		message = http.StatusText(httpErr.Status)
	}

	attrs := []any{"code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey)}
	if httpErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", append(attrs, "error", httpErr.Err)...)
		if exposeInternal && httpErr.Err != nil {
			message = httpErr.Err.Error()
		} else {
			message = internalErrorMessage
		}
	} else {
		logger.Warn("request failed", append(attrs, "error", httpErr.Err)...)
	}

	c.JSON(httpErr.Status, gin.H{
		"success": false,
		"message": message,
		"error":   httpErr.Code,
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// metricsMiddleware labels by route template so ids in paths do not explode cardinality.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func rateLimitMiddleware(cfg config.RateLimitConfig, logger *slog.Logger) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPRateLimiter(cfg)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if limiter.allow(ip) {
			c.Next()
			return
		}
		logger.Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
		abortWithError(c, NewHTTPError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests, please try again later", nil))
	}
}

type ipRateLimiter struct {
	visitors      map[string]*visitor
	mu            sync.Mutex
	ratePerMinute float64
	burst         float64
	ttl           time.Duration
	now           func() time.Time
}

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

func newIPRateLimiter(cfg config.RateLimitConfig) *ipRateLimiter {
	return &ipRateLimiter{
		visitors:      make(map[string]*visitor),
		ratePerMinute: float64(cfg.RequestsPerMinute),
		burst:         float64(cfg.Burst),
		ttl:           5 * time.Minute,
		now:           time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: l.burst, lastSeen: now}
		l.visitors[ip] = v
	} else {
		elapsed := now.Sub(v.lastSeen).Minutes()
		if elapsed > 0 {
			v.tokens = math.Min(l.burst, v.tokens+elapsed*l.ratePerMinute)
		}
		v.lastSeen = now
	}
	l.cleanupLocked(now)
	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

func (l *ipRateLimiter) cleanupLocked(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
		}
	}
}
