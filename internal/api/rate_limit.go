package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelgrade/internal/ratelimit"
	"go.uber.org/zap"
)

type RateLimiter interface {
	AllowN(ctx context.Context, subject string, cost int) (ratelimit.Decision, error)
	Refund(ctx context.Context, subject string, cost int) error
}

// allowExport charges one token per asset in the batch. It writes the
// rejection response itself and reports whether the caller may proceed.
// Other limiter errors fail open.
func (s *Server) allowExport(w http.ResponseWriter, r *http.Request, cost int) bool {
	if s.rateLimiter == nil {
		return true
	}

	subject := s.exportSubject(r)
	decision, err := s.rateLimiter.AllowN(r.Context(), subject, cost)
	if errors.Is(err, ratelimit.ErrCostExceedsCapacity) {
		s.metrics.rateLimitRejected.WithLabelValues("/v1/exports").Inc()
		writeError(w, http.StatusRequestEntityTooLarge, "batch is larger than the export rate limit allows")
		return false
	}
	if err != nil {
		s.logger.Warn("rate limiter check failed", zap.String("subject", subject), zap.Error(err))
		return true
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	if decision.Allowed {
		return true
	}

	retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	s.metrics.rateLimitRejected.WithLabelValues("/v1/exports").Inc()
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

// refundExport returns tokens for an export that was charged but never
// queued.
func (s *Server) refundExport(r *http.Request, cost int) {
	if s.rateLimiter == nil {
		return
	}
	subject := s.exportSubject(r)
	if err := s.rateLimiter.Refund(r.Context(), subject, cost); err != nil {
		s.logger.Warn("rate limit refund failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *Server) exportSubject(r *http.Request) string {
	subject := strings.TrimSpace(r.Header.Get(s.subjectHeader))
	if subject == "" {
		subject = "anonymous"
	}
	return subject + ":exports"
}
