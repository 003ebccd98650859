package microsoft

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	azuread "golang.org/x/oauth2/microsoft"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

// OAuthHandler implements OAuth operations for the Microsoft identity platform.
// Handles Microsoft-specific requirements like offline_access for refresh tokens.
type OAuthHandler struct{}

// NewOAuthHandler creates a new Microsoft OAuth handler.
func NewOAuthHandler() *OAuthHandler {
	return &OAuthHandler{}
}

// Config builds the oauth2 configuration for an auth provider.
func (h *OAuthHandler) Config(authProvider *domain.AuthProvider, redirectURI string) *oauth2.Config {
	cfg := authProvider.OAuth
	if cfg == nil {
		cfg = &domain.OAuthProviderConfig{}
	}

	endpoint := azuread.AzureADEndpoint(tenantOrDefault(cfg.TenantID))
	// Public clients must send client_id in the form body.
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.DeviceAuthURL != "" {
		endpoint.DeviceAuthURL = cfg.DeviceAuthURL
	}

	// Use default scopes if none configured
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}
}

// RefreshToken refreshes an expired access token using a refresh token.
func (h *OAuthHandler) RefreshToken(
	ctx context.Context,
	authProvider *domain.AuthProvider,
	refreshToken string,
) (*domain.AuthToken, error) {
	src := h.Config(authProvider, "").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}

	token := tokenFromOAuth2(tok)
	// Microsoft may omit the refresh token on renewal
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

// DeviceAuth starts the device authorization grant.
func (h *OAuthHandler) DeviceAuth(
	ctx context.Context, authProvider *domain.AuthProvider,
) (*oauth2.DeviceAuthResponse, error) {
	resp, err := h.Config(authProvider, "").DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization: %w", err)
	}
	return resp, nil
}

// PollDeviceToken polls until the user completes the device flow, the code
// expires or ctx is done.
func (h *OAuthHandler) PollDeviceToken(
	ctx context.Context, authProvider *domain.AuthProvider, da *oauth2.DeviceAuthResponse,
) (*domain.AuthToken, error) {
	tok, err := h.Config(authProvider, "").DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device token: %w", err)
	}
	return tokenFromOAuth2(tok), nil
}

// SetupHint returns guidance for setting up a Microsoft OAuth app.
func (h *OAuthHandler) SetupHint() string {
	return "Create an app at portal.azure.com > App registrations, allow public client flows " +
		"and grant the Notes.ReadWrite.All delegated permission"
}

// DefaultScopes returns a copy of the scopes requested when none are configured.
func DefaultScopes() []string {
	return append([]string(nil), defaultScopes...)
}

const defaultTenant = "common"

// defaultScopes are the default OAuth scopes for OneNote access.
var defaultScopes = []string{
	"openid",
	"offline_access",      // Required for refresh tokens
	"User.Read",           // User profile
	"Notes.ReadWrite.All", // OneNote notebooks, sections and pages
}

func tenantOrDefault(tenant string) string {
	if tenant == "" {
		return defaultTenant
	}
	return tenant
}

func tokenFromOAuth2(tok *oauth2.Token) *domain.AuthToken {
	return &domain.AuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
	}
}
