package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/okian/resumerank/pkg/logger"
	"github.com/okian/resumerank/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// MetricsMiddleware records Prometheus metrics for one endpoint.
func MetricsMiddleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		durationMs := float64(time.Since(start).Milliseconds())
		status := c.Writer.Status()
		statusCodeStr := strconv.Itoa(status)
		method := c.Request.Method

		metrics.RecordHTTPRequest(endpoint, method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, method, statusCodeStr, durationMs)
		if status >= statusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, method, getErrorType(status))
		}
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// RequestID reuses the caller's X-Request-ID or generates one, echoes it back and
// puts it on the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(requestIDKey, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Recovery turns a handler panic into a 500 response.
func Recovery(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l.Error(c.Request.Context(), "panic recovered",
					logger.String("panic", fmt.Sprint(rec)),
					logger.String("method", c.Request.Method),
					logger.String("path", c.Request.URL.Path),
					logger.String("stack", string(debug.Stack())))
				metrics.RecordErrorByComponent("api", "panic")
				writeError(c, http.StatusInternalServerError, "internal", nil)
			}
		}()
		c.Next()
	}
}

// RequestLogger logs every request at a level chosen by its status code.
func RequestLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.Int("status", status),
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int64("latency_ms", time.Since(start).Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, logger.String("query", query))
		}

		ctx := c.Request.Context()
		switch {
		case status >= statusInternalError:
			l.Error(ctx, "request completed", fields...)
		case status >= statusBadRequest:
			l.Warn(ctx, "request completed", fields...)
		default:
			l.Info(ctx, "request completed", fields...)
		}
	}
}

// rateLimiter counts requests per client IP in fixed windows.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	rate      int
	window    time.Duration
}

func (r *rateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastReset) > r.window {
		r.tokens = make(map[string]int)
		r.lastReset = now
	}
	if r.tokens[key] >= r.rate {
		return false
	}
	r.tokens[key]++
	return true
}

// RateLimit allows rate requests per client IP per window.
func RateLimit(rate int, window time.Duration, l logger.Logger) gin.HandlerFunc {
	limiter := &rateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
	}
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP(), time.Now()) {
			l.Warn(c.Request.Context(), "rate limit exceeded", logger.String("client_ip", c.ClientIP()))
			writeError(c, http.StatusTooManyRequests, "rate_limit", ErrBackpressure)
			return
		}
		c.Next()
	}
}
