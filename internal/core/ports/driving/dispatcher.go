package driving

import (
	"context"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
)

// Dispatcher issues OneNote REST requests. Every method returns immediately;
// the returned channel yields exactly one Result and is then closed.
type Dispatcher interface {
	Get(ctx context.Context, path string, query map[string]string, responseAsHTML bool) <-chan domain.Result
	Post(ctx context.Context, path string, params map[string]string) <-chan domain.Result
	PostCustom(ctx context.Context, path string, header map[string]string, body string) <-chan domain.Result
	Delete(ctx context.Context, path string, query map[string]string) <-chan domain.Result
	Patch(ctx context.Context, path string, query map[string]string) <-chan domain.Result
	PostMultipart(ctx context.Context, path string, query map[string]string, items []domain.MultiFormItem) <-chan domain.Result
}

// AuthService acquires and clears bearer tokens. Outcomes of acquire and
// refresh are reported to the registered delegate.
type AuthService interface {
	// SetDelegate registers the receiver of auth outcomes; nil unregisters.
	SetDelegate(d driven.AuthDelegate)

	// AcquireAuthToken signs in, silently when a cached token is still valid.
	AcquireAuthToken(ctx context.Context) <-chan struct{}

	// RefreshToken renews the access token without user interaction.
	RefreshToken(ctx context.Context, refreshToken string) <-chan struct{}

	// ClearCredentials purges cached tokens and session state.
	ClearCredentials() error

	// State reports whether a token is held.
	State() domain.AuthState

	// Token returns the held token, or nil when signed out.
	Token() *domain.AuthToken
}
