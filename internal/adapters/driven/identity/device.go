// Package identity implements IdentityProvider on top of the Microsoft
// identity platform: an OAuth2 device code flow for terminals and an
// interactive browser flow backed by azidentity.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
	"github.com/custodia-labs/onenote-explorer/internal/logger"
)

// Ensure DeviceCodeProvider implements the interface.
var _ driven.IdentityProvider = (*DeviceCodeProvider)(nil)

// DeviceCodeProvider signs in with the OAuth2 device authorization grant.
// It prints the verification URL and user code to prompt and polls until the
// user completes sign-in elsewhere.
type DeviceCodeProvider struct {
	handler  *microsoft.OAuthHandler
	provider *domain.AuthProvider
	prompt   io.Writer
}

// NewDeviceCodeProvider creates a device code provider.
func NewDeviceCodeProvider(provider *domain.AuthProvider, prompt io.Writer) (*DeviceCodeProvider, error) {
	if provider == nil || provider.OAuth == nil || provider.OAuth.ClientID == "" {
		return nil, errors.New("device code sign-in requires a client id")
	}
	if prompt == nil {
		prompt = io.Discard
	}
	return &DeviceCodeProvider{
		handler:  microsoft.NewOAuthHandler(),
		provider: provider,
		prompt:   prompt,
	}, nil
}

// Acquire runs the device code flow.
func (p *DeviceCodeProvider) Acquire(ctx context.Context) (*domain.AuthToken, error) {
	da, err := p.handler.DeviceAuth(ctx, p.provider)
	if err != nil {
		return nil, err
	}

	if da.VerificationURIComplete != "" {
		fmt.Fprintf(p.prompt, "To sign in, open %s\n", da.VerificationURIComplete)
	} else {
		fmt.Fprintf(p.prompt, "To sign in, open %s and enter the code %s\n", da.VerificationURI, da.UserCode)
	}
	logger.Debug("identity: polling for device code completion (expires %s)", da.Expiry)

	return p.handler.PollDeviceToken(ctx, p.provider, da)
}

// Refresh redeems refreshToken at the token endpoint.
func (p *DeviceCodeProvider) Refresh(ctx context.Context, refreshToken string) (*domain.AuthToken, error) {
	return p.handler.RefreshToken(ctx, p.provider, refreshToken)
}

// Reset is a no-op: the device flow keeps no session in process.
func (p *DeviceCodeProvider) Reset() error {
	return nil
}
