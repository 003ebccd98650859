package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
)

// Ensure BrowserProvider implements the interface.
var _ driven.IdentityProvider = (*BrowserProvider)(nil)

// ErrNoSession is returned by BrowserProvider.Refresh before any sign-in.
var ErrNoSession = errors.New("no browser session")

// browserCredential is the subset of azidentity.InteractiveBrowserCredential
// the provider uses.
type browserCredential interface {
	Authenticate(ctx context.Context, opts *policy.TokenRequestOptions) (azidentity.AuthenticationRecord, error)
	GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error)
}

// BrowserProvider signs in through the system browser with a loopback
// redirect. The session lives inside the azidentity credential, so Refresh
// ignores the refresh token and asks the credential for a silent token.
type BrowserProvider struct {
	scopes        []string
	newCredential func() (browserCredential, error)

	mu     sync.Mutex
	cred   browserCredential
	record azidentity.AuthenticationRecord
}

// NewBrowserProvider creates a browser provider. redirectURL may be empty to
// let azidentity pick a loopback port.
func NewBrowserProvider(provider *domain.AuthProvider, redirectURL string) (*BrowserProvider, error) {
	if provider == nil || provider.OAuth == nil || provider.OAuth.ClientID == "" {
		return nil, errors.New("browser sign-in requires a client id")
	}
	cfg := provider.OAuth

	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "common"
	}
	opts := azidentity.InteractiveBrowserCredentialOptions{
		ClientID:    cfg.ClientID,
		TenantID:    tenant,
		RedirectURL: redirectURL,
		// Refresh must never pop a browser window.
		DisableAutomaticAuthentication: true,
	}

	return newBrowserProvider(browserScopes(cfg.Scopes), func() (browserCredential, error) {
		return azidentity.NewInteractiveBrowserCredential(&opts)
	}), nil
}

func newBrowserProvider(scopes []string, factory func() (browserCredential, error)) *BrowserProvider {
	return &BrowserProvider{scopes: scopes, newCredential: factory}
}

// Acquire returns a silent token when a session exists, otherwise opens the
// browser.
func (p *BrowserProvider) Acquire(ctx context.Context) (*domain.AuthToken, error) {
	cred, err := p.credential()
	if err != nil {
		return nil, err
	}

	if p.hasSession() {
		if token, err := p.token(ctx, cred); err == nil {
			return token, nil
		}
	}

	record, err := cred.Authenticate(ctx, &policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		return nil, fmt.Errorf("browser sign-in: %w", err)
	}

	p.mu.Lock()
	p.record = record
	p.mu.Unlock()

	return p.token(ctx, cred)
}

// Refresh asks the credential for a token without user interaction.
func (p *BrowserProvider) Refresh(ctx context.Context, _ string) (*domain.AuthToken, error) {
	if !p.hasSession() {
		return nil, ErrNoSession
	}
	cred, err := p.credential()
	if err != nil {
		return nil, err
	}
	return p.token(ctx, cred)
}

// Reset drops the credential and its cached account.
func (p *BrowserProvider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cred = nil
	p.record = azidentity.AuthenticationRecord{}
	return nil
}

func (p *BrowserProvider) credential() (browserCredential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cred != nil {
		return p.cred, nil
	}
	cred, err := p.newCredential()
	if err != nil {
		return nil, fmt.Errorf("create browser credential: %w", err)
	}
	p.cred = cred
	return cred, nil
}

func (p *BrowserProvider) hasSession() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record.HomeAccountID != ""
}

func (p *BrowserProvider) token(ctx context.Context, cred browserCredential) (*domain.AuthToken, error) {
	tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	p.mu.Lock()
	record := p.record
	p.mu.Unlock()

	return &domain.AuthToken{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		Expiry:      tok.ExpiresOn,
		Account: domain.Account{
			ID:       record.HomeAccountID,
			Username: record.Username,
			TenantID: record.TenantID,
		},
	}, nil
}

// browserScopes drops the OpenID scopes MSAL always adds itself.
func browserScopes(configured []string) []string {
	scopes := configured
	if len(scopes) == 0 {
		scopes = microsoft.DefaultScopes()
	}
	return slices.DeleteFunc(slices.Clone(scopes), func(s string) bool {
		return s == "openid" || s == "offline_access" || s == "profile"
	})
}
