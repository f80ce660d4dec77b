package middleware

import (
	"net/http"
	"strings"

	"github.com/radiusdt/sponsor-engine/internal/config"
	"github.com/radiusdt/sponsor-engine/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware implements token bucket rate limiting with separate
// buckets for the serving path and the operator surface.
type RateLimitMiddleware struct {
	cfg          config.RateLimitConfig
	logger       *zap.Logger
	metrics      *metrics.Metrics
	serveLimiter *rate.Limiter
	adminLimiter *rate.Limiter
}

// NewRateLimitMiddleware creates a new rate limiting middleware.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:          cfg,
		logger:       logger,
		serveLimiter: rate.NewLimiter(rate.Limit(cfg.ServeRPS), cfg.ServeBurst),
		adminLimiter: rate.NewLimiter(rate.Limit(cfg.AdminRPS), cfg.AdminBurst),
	}
}

// SetMetrics attaches the metrics instance. May be left unset.
func (rl *RateLimitMiddleware) SetMetrics(m *metrics.Metrics) {
	rl.metrics = m
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		limiter := rl.adminLimiter
		if rl.isServeEndpoint(r.URL.Path) {
			limiter = rl.serveLimiter
		}

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			rl.metrics.RecordRateLimitHit(r.URL.Path)
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isServeEndpoint returns true for the high-volume serving paths.
func (rl *RateLimitMiddleware) isServeEndpoint(path string) bool {
	return path == "/serve" ||
		strings.HasPrefix(path, "/click/") ||
		strings.HasPrefix(path, "/preview/")
}

// tooManyRequests sends a 429 response.
func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded"}`))
}
