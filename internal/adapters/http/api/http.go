// Package api exposes the resume pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	service "github.com/okian/resumerank/internal/app"
	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/domain/ranking"
	"github.com/okian/resumerank/internal/pipeline"
	"github.com/okian/resumerank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	BatchDependencies
	ResumeDependencies
	AnalyticsDependencies
	AvailabilityProvider
	StatsProvider
}

// Default server configuration constants.
const (
	defaultMaxUploadBytes = 64 << 20
	defaultRateLimit      = 30
	defaultRateWindow     = time.Minute
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	batchesHandler   *BatchesHandler
	resumesHandler   *ResumesHandler
	analyticsHandler *AnalyticsHandler

	jwtSecret  string
	maxUpload  int64
	rateLimit  int
	rateWindow time.Duration
	logger     logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithJWTSecret sets the HMAC secret bearer tokens are verified with.
func WithJWTSecret(secret string) Option {
	return func(s *Server) { s.jwtSecret = secret }
}

// WithMaxUploadBytes caps the body of a batch submission.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithRateLimit limits batch submissions per client IP. A zero rate disables the limit.
func WithRateLimit(rate int, window time.Duration) Option {
	return func(s *Server) {
		if rate >= 0 {
			s.rateLimit = rate
		}
		if window > 0 {
			s.rateWindow = window
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxUpload:  defaultMaxUploadBytes,
		rateLimit:  defaultRateLimit,
		rateWindow: defaultRateWindow,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.batchesHandler = NewBatchesHandler(deps, s.maxUpload, s.logger)
	s.resumesHandler = NewResumesHandler(deps, s.logger)
	s.analyticsHandler = NewAnalyticsHandler(deps)
	return s
}

// Register attaches middleware and all routes to r.
func (s *Server) Register(_ context.Context, r *gin.Engine) {
	r.Use(RequestID(), Recovery(s.logger), RequestLogger(s.logger))

	r.GET("/healthz", MetricsMiddleware("healthz"), s.healthHandler.HandleHealth)
	r.GET("/readyz", MetricsMiddleware("readyz"), s.healthHandler.HandleReady)
	r.GET("/stats", MetricsMiddleware("stats"), s.statsHandler.HandleStats)

	api := r.Group("/api")
	api.GET("/availability", MetricsMiddleware("availability"), s.healthHandler.HandleAvailability)

	authed := api.Group("", AuthMiddleware(s.jwtSecret))
	submit := []gin.HandlerFunc{MetricsMiddleware("batches_submit")}
	if s.rateLimit > 0 {
		submit = append(submit, RateLimit(s.rateLimit, s.rateWindow, s.logger))
	}
	authed.POST("/batches", append(submit, s.batchesHandler.HandleSubmit)...)
	authed.GET("/batches/:id", MetricsMiddleware("batches_get"), s.batchesHandler.HandleGet)
	authed.POST("/batches/:id/cancel", MetricsMiddleware("batches_cancel"), s.batchesHandler.HandleCancel)

	authed.GET("/resumes", MetricsMiddleware("resumes_list"), s.resumesHandler.HandleList)
	authed.GET("/resumes/:id", MetricsMiddleware("resumes_get"), s.resumesHandler.HandleGet)
	authed.DELETE("/resumes/:id", MetricsMiddleware("resumes_delete"), s.resumesHandler.HandleDelete)
	authed.GET("/resumes/:id/download", MetricsMiddleware("resumes_download"), s.resumesHandler.HandleDownload)
	authed.GET("/resumes/:id/file", MetricsMiddleware("resumes_file"), s.resumesHandler.HandleFile)

	authed.GET("/analytics", MetricsMiddleware("analytics"), s.analyticsHandler.HandleAnalytics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and pipeline errors onto HTTP responses. Only
// user-safe messages reach the client; the raw error is logged by the caller.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrServiceUnavailable):
		writeError(c, http.StatusServiceUnavailable, "service_unavailable", errors.New(pipeline.UserMessage(err)))
	case errors.Is(err, pipeline.ErrPrecondition):
		writeError(c, http.StatusBadRequest, "invalid_batch", errors.New(pipeline.UserMessage(err)))
	case errors.Is(err, service.ErrQueueFull):
		writeError(c, http.StatusTooManyRequests, "backpressure", service.ErrQueueFull)
	case errors.Is(err, service.ErrNotStarted):
		writeError(c, http.StatusServiceUnavailable, "not_ready", service.ErrNotStarted)
	case errors.Is(err, service.ErrBatchNotFound):
		writeError(c, http.StatusNotFound, "not_found", service.ErrBatchNotFound)
	case errors.Is(err, service.ErrResumeNotFound):
		writeError(c, http.StatusNotFound, "not_found", service.ErrResumeNotFound)
	case errors.Is(err, service.ErrBatchFinished):
		writeError(c, http.StatusConflict, "conflict", service.ErrBatchFinished)
	case errors.Is(err, ranking.ErrUnknownBand):
		writeError(c, http.StatusBadRequest, "bad_request", errors.New(msgUnknownBand))
	default:
		writeError(c, http.StatusInternalServerError, "internal", nil)
	}
}

// ownerContext returns the request context tagged with the authenticated owner.
func ownerContext(c *gin.Context) (context.Context, string) {
	owner := OwnerID(c)
	return logger.WithOwnerID(c.Request.Context(), owner), owner
}

func formatAvailability(a model.Availability) availabilityResponse {
	resp := availabilityResponse{State: a.State.String(), Online: a.Online()}
	if !a.CheckedAt.IsZero() {
		at := a.CheckedAt.UTC().Format(time.RFC3339)
		resp.CheckedAt = &at
	}
	return resp
}

type availabilityResponse struct {
	State     string  `json:"state"`
	Online    bool    `json:"online"`
	CheckedAt *string `json:"checked_at,omitempty"`
}

func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Fixed messages for malformed requests. The cause is logged, never returned.
const (
	msgUnreadableUpload = "The upload could not be read."
	msgUnknownBand      = "Unknown band. Use high, mid or low."
	msgUnknownStatus    = "Unknown status. Use processing, analyzed or error."
)

func badRequest(c *gin.Context, ctx context.Context, l logger.Logger, op, msg string, err error) {
	l.Warn(ctx, "bad request", logger.Error(wrapKind(op, ErrBadRequest, err)))
	writeError(c, http.StatusBadRequest, "bad_request", errors.New(msg))
}
