package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/onenote-explorer/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

type fakeProvider struct {
	mu           sync.Mutex
	acquireCalls int
	refreshCalls int
	resets       int
	acquireToken *domain.AuthToken
	acquireErr   error
	refreshToken *domain.AuthToken
	refreshErr   error
}

func (p *fakeProvider) Acquire(_ context.Context) (*domain.AuthToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireCalls++
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	cp := *p.acquireToken
	return &cp, nil
}

func (p *fakeProvider) Refresh(_ context.Context, _ string) (*domain.AuthToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	cp := *p.refreshToken
	return &cp, nil
}

func (p *fakeProvider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return nil
}

type recordingDelegate struct {
	mu        sync.Mutex
	succeeded []*domain.AuthToken
	failed    []error
}

func (d *recordingDelegate) AuthSucceeded(token *domain.AuthToken) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.succeeded = append(d.succeeded, token)
}

func (d *recordingDelegate) AuthFailed(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, err)
}

func noUserInfo(context.Context, string) (*microsoft.UserInfo, error) {
	return nil, errors.New("offline")
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("auth operation did not finish")
	}
}

func freshToken(access string) *domain.AuthToken {
	return &domain.AuthToken{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		Expiry:       time.Now().Add(time.Hour),
		Account:      domain.Account{Username: "ada@example.com"},
	}
}

func TestAcquireAuthToken_Interactive(t *testing.T) {
	provider := &fakeProvider{acquireToken: freshToken("a1")}
	cache := memory.NewTokenCache()
	delegate := &recordingDelegate{}
	var sunk []*domain.AuthToken
	client := New(provider, cache,
		WithUserInfo(noUserInfo),
		WithTokenSink(func(tok *domain.AuthToken) { sunk = append(sunk, tok) }),
	)
	client.SetDelegate(delegate)

	assert.Equal(t, domain.SignedOut, client.State())
	wait(t, client.AcquireAuthToken(context.Background()))

	require.Len(t, delegate.succeeded, 1)
	assert.Empty(t, delegate.failed)
	assert.Equal(t, "a1", delegate.succeeded[0].AccessToken)
	assert.Equal(t, domain.SignedIn, client.State())
	assert.Equal(t, "a1", client.Token().AccessToken)
	require.Len(t, sunk, 1)
	assert.Equal(t, "a1", sunk[0].AccessToken)

	cached, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", cached.AccessToken)
}

func TestAcquireAuthToken_SilentFromCache(t *testing.T) {
	provider := &fakeProvider{acquireToken: freshToken("interactive")}
	cache := memory.NewTokenCache()
	require.NoError(t, cache.Save(context.Background(), freshToken("cached")))
	delegate := &recordingDelegate{}
	client := New(provider, cache, WithUserInfo(noUserInfo))
	client.SetDelegate(delegate)

	wait(t, client.AcquireAuthToken(context.Background()))

	require.Len(t, delegate.succeeded, 1)
	assert.Equal(t, "cached", delegate.succeeded[0].AccessToken)
	assert.Equal(t, 0, provider.acquireCalls)
}

func TestAcquireAuthToken_RefreshesExpiredCache(t *testing.T) {
	provider := &fakeProvider{refreshToken: &domain.AuthToken{AccessToken: "renewed", Expiry: time.Now().Add(time.Hour)}}
	cache := memory.NewTokenCache()
	expired := freshToken("old")
	expired.Expiry = time.Now().Add(-time.Minute)
	require.NoError(t, cache.Save(context.Background(), expired))
	delegate := &recordingDelegate{}
	client := New(provider, cache, WithUserInfo(noUserInfo))
	client.SetDelegate(delegate)

	wait(t, client.AcquireAuthToken(context.Background()))

	require.Len(t, delegate.succeeded, 1)
	assert.Equal(t, "renewed", delegate.succeeded[0].AccessToken)
	assert.Equal(t, "ada@example.com", delegate.succeeded[0].Account.Username)
	assert.Equal(t, 1, provider.refreshCalls)
	assert.Equal(t, 0, provider.acquireCalls)

	stored, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", stored.AccessToken, "renewed token is written back")
}

func TestAcquireAuthToken_Failure(t *testing.T) {
	provider := &fakeProvider{acquireErr: errors.New("user cancelled")}
	delegate := &recordingDelegate{}
	var sinkCalls int
	client := New(provider, memory.NewTokenCache(),
		WithUserInfo(noUserInfo),
		WithTokenSink(func(*domain.AuthToken) { sinkCalls++ }),
	)
	client.SetDelegate(delegate)

	wait(t, client.AcquireAuthToken(context.Background()))

	assert.Empty(t, delegate.succeeded)
	require.Len(t, delegate.failed, 1)
	assert.ErrorIs(t, delegate.failed[0], domain.ErrAuth)
	assert.Contains(t, delegate.failed[0].Error(), "user cancelled")
	assert.Equal(t, domain.SignedOut, client.State())
	assert.Equal(t, 0, sinkCalls)
}

func TestAcquireAuthToken_FillsAccount(t *testing.T) {
	token := freshToken("a")
	token.Account = domain.Account{TenantID: "t1"}
	provider := &fakeProvider{acquireToken: token}
	delegate := &recordingDelegate{}
	client := New(provider, memory.NewTokenCache(), WithUserInfo(
		func(_ context.Context, access string) (*microsoft.UserInfo, error) {
			assert.Equal(t, "a", access)
			return &microsoft.UserInfo{ID: "u1", DisplayName: "Ada", Mail: "ada@example.com"}, nil
		}))
	client.SetDelegate(delegate)

	wait(t, client.AcquireAuthToken(context.Background()))

	require.Len(t, delegate.succeeded, 1)
	account := delegate.succeeded[0].Account
	assert.Equal(t, "u1", account.ID)
	assert.Equal(t, "ada@example.com", account.Username)
	assert.Equal(t, "t1", account.TenantID)
}

func TestRefreshToken(t *testing.T) {
	provider := &fakeProvider{refreshToken: &domain.AuthToken{AccessToken: "r2", Expiry: time.Now().Add(time.Hour)}}
	cache := memory.NewTokenCache()
	delegate := &recordingDelegate{}
	client := New(provider, cache, WithUserInfo(noUserInfo))
	client.SetDelegate(delegate)

	wait(t, client.RefreshToken(context.Background(), "refresh-token"))

	require.Len(t, delegate.succeeded, 1)
	assert.Equal(t, "r2", delegate.succeeded[0].AccessToken)
	assert.Equal(t, domain.SignedIn, client.State())
	cached, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r2", cached.AccessToken)
}

func TestRefreshToken_Failures(t *testing.T) {
	provider := &fakeProvider{refreshErr: errors.New("invalid_grant")}
	delegate := &recordingDelegate{}
	client := New(provider, memory.NewTokenCache(), WithUserInfo(noUserInfo))
	client.SetDelegate(delegate)

	wait(t, client.RefreshToken(context.Background(), ""))
	wait(t, client.RefreshToken(context.Background(), "rt"))

	require.Len(t, delegate.failed, 2)
	for _, err := range delegate.failed {
		assert.ErrorIs(t, err, domain.ErrAuth)
	}
	assert.Equal(t, 1, provider.refreshCalls, "empty refresh token never reaches the provider")
	assert.Equal(t, domain.SignedOut, client.State())
}

func TestClearCredentials(t *testing.T) {
	provider := &fakeProvider{acquireToken: freshToken("first")}
	cache := memory.NewTokenCache()
	delegate := &recordingDelegate{}
	var last *domain.AuthToken
	client := New(provider, cache,
		WithUserInfo(noUserInfo),
		WithTokenSink(func(tok *domain.AuthToken) { last = tok }),
	)
	client.SetDelegate(delegate)
	wait(t, client.AcquireAuthToken(context.Background()))
	require.NotNil(t, last)

	require.NoError(t, client.ClearCredentials())

	assert.Nil(t, last)
	assert.Equal(t, domain.SignedOut, client.State())
	assert.Nil(t, client.Token())
	assert.Equal(t, 1, provider.resets)
	cached, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cached)

	// A token slipped back into the cache must not be picked up silently.
	require.NoError(t, cache.Save(context.Background(), freshToken("stale")))
	provider.acquireToken = freshToken("second")
	wait(t, client.AcquireAuthToken(context.Background()))

	assert.Equal(t, 2, provider.acquireCalls)
	assert.Equal(t, "second", client.Token().AccessToken)
}

func TestNoDelegate(t *testing.T) {
	client := New(&fakeProvider{acquireErr: errors.New("x")}, memory.NewTokenCache(), WithUserInfo(noUserInfo))

	wait(t, client.AcquireAuthToken(context.Background()))

	assert.Equal(t, domain.SignedOut, client.State())
}

func TestSetDelegate_Unregister(t *testing.T) {
	delegate := &recordingDelegate{}
	client := New(&fakeProvider{acquireToken: freshToken("a")}, memory.NewTokenCache(), WithUserInfo(noUserInfo))
	client.SetDelegate(delegate)
	client.SetDelegate(nil)

	wait(t, client.AcquireAuthToken(context.Background()))

	assert.Empty(t, delegate.succeeded)
	assert.Equal(t, domain.SignedIn, client.State())
}

func TestRestore(t *testing.T) {
	cache := memory.NewTokenCache()
	require.NoError(t, cache.Save(context.Background(), freshToken("cached")))
	provider := &fakeProvider{}
	delegate := &recordingDelegate{}
	var sunk *domain.AuthToken
	client := New(provider, cache, WithTokenSink(func(tok *domain.AuthToken) { sunk = tok }))
	client.SetDelegate(delegate)

	assert.True(t, client.Restore(context.Background()))

	assert.Equal(t, domain.SignedIn, client.State())
	require.NotNil(t, sunk)
	assert.Equal(t, "cached", sunk.AccessToken)
	assert.Empty(t, delegate.succeeded)
	assert.Equal(t, 0, provider.acquireCalls+provider.refreshCalls)
}

func TestRestore_NothingUsable(t *testing.T) {
	cache := memory.NewTokenCache()
	client := New(&fakeProvider{}, cache)
	assert.False(t, client.Restore(context.Background()))

	expired := freshToken("old")
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, cache.Save(context.Background(), expired))

	assert.False(t, client.Restore(context.Background()))
	assert.Equal(t, domain.SignedOut, client.State())
}
