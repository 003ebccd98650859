package microsoft

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/onenote-explorer/internal/logger"
)

// ServiceType identifies a Microsoft Graph API service for rate limiting purposes.
type ServiceType string

const (
	// ServiceOneNote is the OneNote API under /me/onenote.
	ServiceOneNote ServiceType = "onenote"
	// ServiceGraph is any other Microsoft Graph endpoint, e.g. /me.
	ServiceGraph ServiceType = "graph"
)

// RateLimitConfig holds rate limiting configuration for a service.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimits provides conservative defaults for each Microsoft service.
// Microsoft Graph allows ~10,000 requests per 10 minutes (~16.67/sec);
// OneNote allows about 120 requests per minute per user.
var DefaultRateLimits = map[ServiceType]RateLimitConfig{
	ServiceOneNote: {RequestsPerSecond: 2.0, BurstSize: 10},
	ServiceGraph:   {RequestsPerSecond: 10.0, BurstSize: 15},
}

// RateLimiter provides rate limiting for Microsoft Graph API requests.
// It uses a token bucket algorithm with optional backoff for 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	service ServiceType
}

// NewRateLimiter creates a new rate limiter for the specified service.
func NewRateLimiter(service ServiceType) *RateLimiter {
	cfg, ok := DefaultRateLimits[service]
	if !ok {
		// Default fallback
		cfg = RateLimitConfig{RequestsPerSecond: 10.0, BurstSize: 15}
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		service: service,
	}
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		service: ServiceOneNote,
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// A Retry-After backoff recorded by RecordRateLimitError is served first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if delay := time.Until(retryAt); delay > 0 {
		logger.Debug("%s: throttled, waiting %s before the next request", r.service, delay.Round(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError records a rate limit error and sets a backoff period.
// Call this when receiving a 429 response from Microsoft Graph APIs.
// The retryAfterSeconds parameter should come from the Retry-After header.
// The backoff applies to the next request; nothing is retried here.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfterSeconds <= 0 {
		// Default backoff: 60 seconds
		retryAfterSeconds = 60
	}

	r.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
}

// RetryAfterSeconds parses a Retry-After header value in seconds.
// Returns 0 for empty or unparsable values (HTTP dates are not used by Graph).
func RetryAfterSeconds(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
