package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage sign-in",
	Long:  `Sign in to your Microsoft account, refresh the token or sign out.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in, reusing a cached token when it is still valid",
	RunE:  runAuthLogin,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the access token without signing in again",
	RunE:  runAuthRefresh,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear cached credentials",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sign-in state",
	RunE:  runAuthStatus,
}

var errNoAuth = errors.New("sign-in not configured: set auth.client_id with 'onenote-explorer config init --client-id <id>'")

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

// authWaiter collects the single outcome of an auth operation.
type authWaiter struct {
	mu    sync.Mutex
	token *domain.AuthToken
	err   error
}

func (w *authWaiter) AuthSucceeded(token *domain.AuthToken) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.token = token
}

func (w *authWaiter) AuthFailed(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

func (w *authWaiter) result() (*domain.AuthToken, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil && w.token == nil {
		return nil, fmt.Errorf("%w: no outcome reported", domain.ErrAuth)
	}
	return w.token, w.err
}

// awaitAuth runs op with a temporary delegate and returns its outcome.
func awaitAuth(ctx context.Context, op func() <-chan struct{}) (*domain.AuthToken, error) {
	w := &authWaiter{}
	authService.SetDelegate(w)
	defer authService.SetDelegate(nil)

	select {
	case <-op():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return w.result()
}

// signInMu keeps concurrent callers from swapping each other's delegate.
var signInMu sync.Mutex

// ensureSignedIn acquires a token if none is held or the held one expired.
// Acquire renews an expired token silently when it can.
func ensureSignedIn(ctx context.Context, cmd *cobra.Command) error {
	if authService == nil {
		return errNoAuth
	}
	signInMu.Lock()
	defer signInMu.Unlock()

	if authService.State() == domain.SignedIn && authService.Token().Valid() {
		return nil
	}
	token, err := awaitAuth(ctx, func() <-chan struct{} { return authService.AcquireAuthToken(ctx) })
	if err != nil {
		return err
	}
	if verbose {
		cmd.PrintErrf("Signed in as %s\n", accountLabel(token))
	}
	return nil
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNoAuth
	}
	ctx := cmdContext(cmd)

	token, err := awaitAuth(ctx, func() <-chan struct{} { return authService.AcquireAuthToken(ctx) })
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cmd.Printf("%s Signed in as %s\n", paint(out, okStyle, "✓"), accountLabel(token))
	return nil
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNoAuth
	}
	ctx := cmdContext(cmd)

	if err := ensureSignedIn(ctx, cmd); err != nil {
		return err
	}
	current := authService.Token()
	if current == nil || current.RefreshToken == "" {
		return errors.New("the current sign-in has no refresh token; run 'onenote-explorer auth login'")
	}

	token, err := awaitAuth(ctx, func() <-chan struct{} {
		return authService.RefreshToken(ctx, current.RefreshToken)
	})
	if err != nil {
		return err
	}

	cmd.Printf("%s Token refreshed, expires %s\n", paint(cmd.OutOrStdout(), okStyle, "✓"), expiryLabel(token))
	return nil
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNoAuth
	}
	if err := authService.ClearCredentials(); err != nil {
		return err
	}
	cmd.Println("Signed out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNoAuth
	}

	token := authService.Token()
	if authService.State() != domain.SignedIn || token == nil {
		cmd.Println("Signed out.")
		return nil
	}

	cmd.Printf("Signed in as %s\n", accountLabel(token))
	cmd.Printf("  Token expires: %s\n", expiryLabel(token))
	if token.Account.TenantID != "" {
		cmd.Printf("  Tenant: %s\n", token.Account.TenantID)
	}
	return nil
}

func accountLabel(token *domain.AuthToken) string {
	if token == nil {
		return "unknown account"
	}
	switch {
	case token.Account.DisplayName != "" && token.Account.Username != "":
		return fmt.Sprintf("%s <%s>", token.Account.DisplayName, token.Account.Username)
	case token.Account.Username != "":
		return token.Account.Username
	default:
		return "unknown account"
	}
}

func expiryLabel(token *domain.AuthToken) string {
	if token == nil || token.Expiry.IsZero() {
		return "unknown"
	}
	return token.Expiry.Local().Format(time.RFC1123)
}
