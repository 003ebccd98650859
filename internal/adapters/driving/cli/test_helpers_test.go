package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driving"
	"github.com/custodia-labs/onenote-explorer/internal/core/services"
)

// mockAuthService implements driving.AuthService for testing.
type mockAuthService struct {
	mu         sync.Mutex
	delegate   driven.AuthDelegate
	token      *domain.AuthToken
	acquireTok *domain.AuthToken
	acquireErr error
	refreshTok *domain.AuthToken
	refreshed  []string
	acquires   int
	cleared    bool
}

func (m *mockAuthService) SetDelegate(d driven.AuthDelegate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegate = d
}

func (m *mockAuthService) report(token *domain.AuthToken, err error) <-chan struct{} {
	m.mu.Lock()
	d := m.delegate
	if err == nil {
		m.token = token
	}
	m.mu.Unlock()

	if d != nil {
		if err != nil {
			d.AuthFailed(err)
		} else {
			d.AuthSucceeded(token)
		}
	}
	done := make(chan struct{})
	close(done)
	return done
}

func (m *mockAuthService) AcquireAuthToken(_ context.Context) <-chan struct{} {
	m.mu.Lock()
	m.acquires++
	m.mu.Unlock()
	return m.report(m.acquireTok, m.acquireErr)
}

func (m *mockAuthService) RefreshToken(_ context.Context, refreshToken string) <-chan struct{} {
	m.mu.Lock()
	m.refreshed = append(m.refreshed, refreshToken)
	m.mu.Unlock()
	return m.report(m.refreshTok, nil)
}

func (m *mockAuthService) ClearCredentials() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	m.cleared = true
	return nil
}

func (m *mockAuthService) State() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return domain.SignedOut
	}
	return domain.SignedIn
}

func (m *mockAuthService) Token() *domain.AuthToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// mockInvoker implements driving.Invoker for testing.
type mockInvoker struct {
	mu      sync.Mutex
	ops     []string
	values  []map[string]string
	result  domain.Result
	choices []driving.Choice
}

func (m *mockInvoker) Invoke(_ context.Context, op *domain.Operation, values map[string]string) <-chan domain.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op.Name())
	m.values = append(m.values, values)
	if m.result.Err != nil {
		return domain.Fail(m.result.Err)
	}
	return domain.Succeed(m.result.Response)
}

func (m *mockInvoker) ListChoices(_ context.Context, _ domain.ParamsSource) ([]driving.Choice, error) {
	return m.choices, nil
}

func signedInToken() *domain.AuthToken {
	return &domain.AuthToken{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Account:      domain.Account{Username: "ada@example.com", DisplayName: "Ada"},
	}
}

// withServices installs s for the duration of the test.
func withServices(t *testing.T, s *Services) {
	t.Helper()
	oldCatalog, oldInvoker, oldAuth := catalogService, invokerService, authService
	oldStore, oldSettings := configStore, settings
	t.Cleanup(func() {
		catalogService, invokerService, authService = oldCatalog, oldInvoker, oldAuth
		configStore, settings = oldStore, oldSettings
	})

	if s.Catalog == nil {
		catalog, err := services.NewOperationCatalog()
		if err != nil {
			t.Fatal(err)
		}
		s.Catalog = catalog
	}
	SetServices(s)
}

// runCommand executes the root command with args and captures its output.
func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
