// Package auth acquires, refreshes and clears the bearer token used for
// OneNote requests. Outcomes are reported to a registered delegate rather
// than returned, so callers can fire an operation and render its result when
// the delegate is called.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driving"
	"github.com/custodia-labs/onenote-explorer/internal/logger"
)

// Ensure Client implements the interface.
var _ driving.AuthService = (*Client)(nil)

// TokenSink receives every newly held token, and nil after credentials are
// cleared. The dispatcher's SetAuthorization is the usual sink.
type TokenSink func(token *domain.AuthToken)

// UserInfoFunc looks up the account behind an access token.
type UserInfoFunc func(ctx context.Context, accessToken string) (*microsoft.UserInfo, error)

// Client wraps an IdentityProvider and a TokenCache.
//
// Overlapping AcquireAuthToken and RefreshToken calls are not serialised:
// each runs its own flow and the last one to finish determines the held token.
type Client struct {
	provider driven.IdentityProvider
	cache    driven.TokenCache
	sink     TokenSink
	userInfo UserInfoFunc

	mu       sync.Mutex
	delegate driven.AuthDelegate
	token    *domain.AuthToken
	// cleared forces the next acquire through the interactive flow.
	cleared bool
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSink sets the sink notified of token changes.
func WithTokenSink(sink TokenSink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithUserInfo replaces the account lookup, mostly for tests.
func WithUserInfo(fn UserInfoFunc) Option {
	return func(c *Client) {
		c.userInfo = fn
	}
}

// New creates an auth client.
func New(provider driven.IdentityProvider, cache driven.TokenCache, options ...Option) *Client {
	c := &Client{
		provider: provider,
		cache:    cache,
		userInfo: microsoft.GetUserInfo,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// SetDelegate registers the receiver of auth outcomes. The client does not
// own the delegate; pass nil to unregister.
func (c *Client) SetDelegate(d driven.AuthDelegate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate = d
}

// State reports whether a token is held.
func (c *Client) State() domain.AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return domain.SignedOut
	}
	return domain.SignedIn
}

// Token returns a copy of the held token, or nil when signed out.
func (c *Client) Token() *domain.AuthToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return nil
	}
	cp := *c.token
	return &cp
}

// AcquireAuthToken signs in. A valid cached token is reused silently unless
// credentials were cleared since it was stored. The returned channel closes
// after the delegate has been called.
func (c *Client) AcquireAuthToken(ctx context.Context) <-chan struct{} {
	return c.run(func() (*domain.AuthToken, error) {
		return c.acquire(ctx)
	})
}

// RefreshToken renews the access token without user interaction.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) <-chan struct{} {
	return c.run(func() (*domain.AuthToken, error) {
		return c.refresh(ctx, refreshToken)
	})
}

// ClearCredentials purges the token cache and the provider session.
// The next AcquireAuthToken always runs the interactive flow.
func (c *Client) ClearCredentials() error {
	c.mu.Lock()
	c.token = nil
	c.cleared = true
	c.mu.Unlock()

	if c.sink != nil {
		c.sink(nil)
	}

	var errs []error
	if err := c.cache.Clear(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("clear token cache: %w", err))
	}
	if err := c.provider.Reset(); err != nil {
		errs = append(errs, fmt.Errorf("reset identity provider: %w", err))
	}
	return errors.Join(errs...)
}

// Restore holds a still-valid cached token without contacting the network
// and reports whether one was found. The delegate is not called; the sink is.
func (c *Client) Restore(ctx context.Context) bool {
	token, err := c.cache.Load(ctx)
	if err != nil {
		logger.Warn("auth: read token cache: %v", err)
		return false
	}
	if !token.Valid() {
		return false
	}

	c.mu.Lock()
	if c.cleared {
		c.mu.Unlock()
		return false
	}
	c.token = token
	c.mu.Unlock()

	if c.sink != nil {
		c.sink(token)
	}
	return true
}

func (c *Client) run(op func() (*domain.AuthToken, error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		token, err := op()
		c.report(token, err)
	}()
	return done
}

func (c *Client) acquire(ctx context.Context) (*domain.AuthToken, error) {
	c.mu.Lock()
	cleared := c.cleared
	c.mu.Unlock()

	if !cleared {
		if token, renewed := c.cached(ctx); token != nil {
			return c.hold(ctx, token, renewed)
		}
	}

	token, err := c.provider.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire token: %w", domain.ErrAuth, err)
	}

	return c.hold(ctx, token, true)
}

// cached returns a usable token from the cache, renewing an expired one
// silently when it carries a refresh token. renewed reports whether the
// token came from a refresh and still needs to be stored.
func (c *Client) cached(ctx context.Context) (token *domain.AuthToken, renewed bool) {
	token, err := c.cache.Load(ctx)
	if err != nil {
		logger.Warn("auth: read token cache: %v", err)
		return nil, false
	}
	if token.Valid() {
		logger.Debug("auth: using cached token for %s", token.Account.Username)
		return token, false
	}
	if token == nil || token.RefreshToken == "" {
		return nil, false
	}

	fresh, err := c.provider.Refresh(ctx, token.RefreshToken)
	if err != nil {
		logger.Debug("auth: silent refresh failed, falling back to sign-in: %v", err)
		return nil, false
	}
	if fresh.Account == (domain.Account{}) {
		fresh.Account = token.Account
	}
	return fresh, true
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*domain.AuthToken, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is empty", domain.ErrAuth)
	}

	token, err := c.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token: %w", domain.ErrAuth, err)
	}

	if token.Account == (domain.Account{}) {
		if held := c.Token(); held != nil {
			token.Account = held.Account
		}
	}

	return c.hold(ctx, token, true)
}

// hold makes token the current one, filling in account details and caching
// it when store is set.
func (c *Client) hold(ctx context.Context, token *domain.AuthToken, store bool) (*domain.AuthToken, error) {
	if token.Account.Username == "" && c.userInfo != nil {
		info, err := c.userInfo(ctx, token.AccessToken)
		if err != nil {
			logger.Debug("auth: account lookup failed: %v", err)
		} else {
			account := info.Account()
			account.TenantID = token.Account.TenantID
			token.Account = account
		}
	}

	if store {
		if err := c.cache.Save(ctx, token); err != nil {
			logger.Warn("auth: write token cache: %v", err)
		}
	}

	c.mu.Lock()
	c.token = token
	c.cleared = false
	c.mu.Unlock()

	return token, nil
}

func (c *Client) report(token *domain.AuthToken, err error) {
	c.mu.Lock()
	delegate := c.delegate
	c.mu.Unlock()

	if err != nil {
		if delegate != nil {
			delegate.AuthFailed(err)
		}
		return
	}

	if c.sink != nil {
		c.sink(token)
	}
	if delegate != nil {
		delegate.AuthSucceeded(token)
	}
}
