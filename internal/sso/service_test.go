package sso

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*model.LoginToken // keyed by token value
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]*model.LoginToken{}}
}

func (f *fakeTokenStore) InvalidateLoginTokens(_ context.Context, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TenantID == tenantID && !t.Used {
			t.Used = true
		}
	}
	return nil
}

func (f *fakeTokenStore) InsertLoginToken(_ context.Context, token *model.LoginToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *token
	f.tokens[token.Token] = &cp
	return nil
}

func (f *fakeTokenStore) LoginTokenByValue(_ context.Context, value string) (*model.LoginToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[value]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// MarkLoginTokenUsed mirrors the store's conditional UPDATE: only an unused
// row is consumed, and the caller learns whether it won.
func (f *fakeTokenStore) MarkLoginTokenUsed(_ context.Context, id string, usedAt time.Time, ip, ua string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.ID == id && !t.Used {
			t.Used = true
			t.UsedAt = &usedAt
			t.IPAddress = ip
			t.UserAgent = ua
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokenStore) DeleteLoginTokensBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for value, t := range f.tokens {
		if t.CreatedAt.Before(cutoff) {
			delete(f.tokens, value)
			n++
		}
	}
	return n, nil
}

// gatedTokenStore holds every reader at the lookup until all expected
// readers have arrived, forcing concurrent redeems to race on the consume
// step instead of serializing at the read.
type gatedTokenStore struct {
	*fakeTokenStore
	reads sync.WaitGroup
}

func (g *gatedTokenStore) LoginTokenByValue(ctx context.Context, value string) (*model.LoginToken, error) {
	t, err := g.fakeTokenStore.LoginTokenByValue(ctx, value)
	g.reads.Done()
	g.reads.Wait()
	return t, err
}

func provisionedTenant() *model.Tenant {
	instanceID := "inst-1"
	remoteID := "alice_a1b2c3"
	return &model.Tenant{ID: "t-1", Email: "alice@example.com", InstanceID: &instanceID, RemoteUserID: &remoteID}
}

func TestIssue(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store, zerolog.Nop())

	token, err := svc.Issue(context.Background(), provisionedTenant())
	require.NoError(t, err)
	assert.Len(t, token.Token, 64)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), token.ExpiresAt, 2*time.Second)
}

func TestIssue_RequiresProvisionedTenant(t *testing.T) {
	svc := NewService(newFakeTokenStore(), zerolog.Nop())
	_, err := svc.Issue(context.Background(), &model.Tenant{ID: "t-1"})
	assert.ErrorIs(t, err, ErrNotProvisioned)
}

func TestIssue_InvalidatesPreviousToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store, zerolog.Nop())
	tenant := provisionedTenant()

	first, err := svc.Issue(context.Background(), tenant)
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), tenant)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), first.Token, "", "")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	redeemed, err := svc.Redeem(context.Background(), second.Token, "10.0.0.1", "curl")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, redeemed.TenantID)
}

func TestRedeem_SingleUse(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store, zerolog.Nop())

	token, err := svc.Issue(context.Background(), provisionedTenant())
	require.NoError(t, err)

	redeemed, err := svc.Redeem(context.Background(), token.Token, "10.0.0.1", "curl")
	require.NoError(t, err)
	assert.True(t, redeemed.Used)
	assert.Equal(t, "10.0.0.1", redeemed.IPAddress)

	_, err = svc.Redeem(context.Background(), token.Token, "10.0.0.1", "curl")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedeem_ConcurrentRedeemsConsumeOnce(t *testing.T) {
	store := &gatedTokenStore{fakeTokenStore: newFakeTokenStore()}
	svc := NewService(store, zerolog.Nop())

	token, err := svc.Issue(context.Background(), provisionedTenant())
	require.NoError(t, err)

	// Both redeems read the token as unused before either marks it.
	store.reads.Add(2)
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Redeem(context.Background(), token.Token, "10.0.0.1", "curl")
			results <- err
		}()
	}

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrTokenInvalid):
			rejected++
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
}

func TestRedeem_Expired(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store, zerolog.Nop())

	token, err := svc.Issue(context.Background(), provisionedTenant())
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(TokenTTL + time.Second) }
	_, err = svc.Redeem(context.Background(), token.Token, "", "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedeem_Unknown(t *testing.T) {
	svc := NewService(newFakeTokenStore(), zerolog.Nop())
	_, err := svc.Redeem(context.Background(), "nope", "", "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestPurgeExpired(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewService(store, zerolog.Nop())

	stale := &model.LoginToken{ID: "old", TenantID: "t-1", Token: "old-token", CreatedAt: time.Now().Add(-25 * time.Hour)}
	require.NoError(t, store.InsertLoginToken(context.Background(), stale))
	_, err := svc.Issue(context.Background(), provisionedTenant())
	require.NoError(t, err)

	deleted, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, store.tokens, 1)
}
