package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

func TestAuthLogin(t *testing.T) {
	auth := &mockAuthService{acquireTok: signedInToken()}
	withServices(t, &Services{Auth: auth})

	stdout, _, err := runCommand(t, "auth", "login")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in as Ada <ada@example.com>")
	assert.Nil(t, auth.delegate, "temporary delegate is removed")
}

func TestAuthLogin_Failure(t *testing.T) {
	auth := &mockAuthService{acquireErr: errors.New("device code expired")}
	withServices(t, &Services{Auth: auth})

	_, _, err := runCommand(t, "auth", "login")

	assert.ErrorContains(t, err, "device code expired")
}

func TestAuthRefresh(t *testing.T) {
	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	auth := &mockAuthService{
		token:      signedInToken(),
		refreshTok: &domain.AuthToken{AccessToken: "new", Expiry: expiry},
	}
	withServices(t, &Services{Auth: auth})

	stdout, _, err := runCommand(t, "auth", "refresh")

	require.NoError(t, err)
	assert.Equal(t, []string{"refresh"}, auth.refreshed)
	assert.Contains(t, stdout, "Token refreshed")
}

func TestAuthRefresh_NoRefreshToken(t *testing.T) {
	auth := &mockAuthService{token: &domain.AuthToken{AccessToken: "a"}}
	withServices(t, &Services{Auth: auth})

	_, _, err := runCommand(t, "auth", "refresh")

	assert.ErrorContains(t, err, "no refresh token")
	assert.Empty(t, auth.refreshed)
}

func TestAuthLogout(t *testing.T) {
	auth := &mockAuthService{token: signedInToken()}
	withServices(t, &Services{Auth: auth})

	stdout, _, err := runCommand(t, "auth", "logout")

	require.NoError(t, err)
	assert.True(t, auth.cleared)
	assert.Equal(t, domain.SignedOut, auth.State())
	assert.Contains(t, stdout, "Signed out.")
}

func TestAuthStatus(t *testing.T) {
	tests := []struct {
		name  string
		token *domain.AuthToken
		want  string
	}{
		{"signed out", nil, "Signed out."},
		{"signed in", signedInToken(), "Signed in as Ada <ada@example.com>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withServices(t, &Services{Auth: &mockAuthService{token: tt.token}})

			stdout, _, err := runCommand(t, "auth", "status")

			require.NoError(t, err)
			assert.Contains(t, stdout, tt.want)
		})
	}
}

func TestAuth_NotConfigured(t *testing.T) {
	withServices(t, &Services{})
	authService = nil

	_, _, err := runCommand(t, "auth", "status")

	assert.ErrorContains(t, err, "not configured")
}

func TestAccountLabel(t *testing.T) {
	assert.Equal(t, "unknown account", accountLabel(nil))
	assert.Equal(t, "unknown account", accountLabel(&domain.AuthToken{}))
	assert.Equal(t, "a@b.c", accountLabel(&domain.AuthToken{Account: domain.Account{Username: "a@b.c"}}))
	assert.Equal(t, "unknown", expiryLabel(&domain.AuthToken{}))
}

func TestEnsureSignedIn_RenewsExpiredToken(t *testing.T) {
	// Given a held token that has expired
	expired := signedInToken()
	expired.Expiry = time.Now().Add(-time.Minute)
	renewed := signedInToken()
	renewed.AccessToken = "renewed"
	renewed.Expiry = time.Now().Add(time.Hour)
	auth := &mockAuthService{token: expired, acquireTok: renewed}
	withServices(t, &Services{Auth: auth})

	// When
	err := ensureSignedIn(context.Background(), authStatusCmd)

	// Then
	require.NoError(t, err)
	assert.Equal(t, 1, auth.acquires)
	assert.Equal(t, "renewed", auth.Token().AccessToken)
	assert.True(t, auth.Token().Valid())
}

func TestEnsureSignedIn_KeepsValidToken(t *testing.T) {
	valid := signedInToken()
	valid.Expiry = time.Now().Add(time.Hour)
	auth := &mockAuthService{token: valid}
	withServices(t, &Services{Auth: auth})

	require.NoError(t, ensureSignedIn(context.Background(), authStatusCmd))

	assert.Equal(t, 0, auth.acquires)
}
