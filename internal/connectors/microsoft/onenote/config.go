package onenote

import (
	"time"

	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
)

// Config holds dispatcher configuration.
type Config struct {
	// BaseURL is prefixed to every relative path.
	BaseURL string
	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration
	// RateLimit overrides the default OneNote limits when non-zero.
	RateLimit microsoft.RateLimitConfig
	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   microsoft.OneNoteBaseURL,
		Timeout:   60 * time.Second,
		RateLimit: microsoft.DefaultRateLimits[microsoft.ServiceOneNote],
		UserAgent: "onenote-explorer",
	}
}
