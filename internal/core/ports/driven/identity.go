package driven

import (
	"context"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

// IdentityProvider wraps an external OAuth library.
type IdentityProvider interface {
	// Acquire runs the interactive sign-in flow and returns a fresh token.
	Acquire(ctx context.Context) (*domain.AuthToken, error)

	// Refresh exchanges a refresh token for a new access token without UI.
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthToken, error)

	// Reset drops any session state the library keeps in process, so the
	// next Acquire cannot complete silently.
	Reset() error
}

// TokenCache stores the current token between runs.
type TokenCache interface {
	// Load returns the cached token, or nil when the cache is empty.
	Load(ctx context.Context) (*domain.AuthToken, error)
	Save(ctx context.Context, token *domain.AuthToken) error
	Clear(ctx context.Context) error
}

// AuthDelegate receives the outcome of token acquisition or refresh.
// Exactly one method is called per operation.
type AuthDelegate interface {
	AuthSucceeded(token *domain.AuthToken)
	AuthFailed(err error)
}
