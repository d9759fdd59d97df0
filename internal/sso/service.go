// Package sso issues and redeems the single-use login tokens that let a
// tenant jump from the billing portal into their remote Nextcloud account.
package sso

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/platform"
)

const (
	// TokenTTL is how long an issued token stays redeemable.
	TokenTTL = 5 * time.Minute
	// purgeAge keeps redeemed and expired tokens around for a day of audit
	// before the daily sweep deletes them.
	purgeAge = 24 * time.Hour

	tokenLength = 64
)

var (
	ErrTokenInvalid   = errors.New("login token invalid, expired or already used")
	ErrNotProvisioned = errors.New("tenant has no remote account")
)

// TokenStore is the persistence surface for login tokens.
type TokenStore interface {
	InvalidateLoginTokens(ctx context.Context, tenantID string) error
	InsertLoginToken(ctx context.Context, token *model.LoginToken) error
	LoginTokenByValue(ctx context.Context, token string) (*model.LoginToken, error)
	// MarkLoginTokenUsed consumes the token and reports whether this call
	// was the one that consumed it.
	MarkLoginTokenUsed(ctx context.Context, id string, usedAt time.Time, ip, userAgent string) (bool, error)
	DeleteLoginTokensBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	store  TokenStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store TokenStore, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Issue creates a fresh token for the tenant. Any unredeemed predecessors
// are invalidated first, so at most one live token exists per tenant.
func (s *Service) Issue(ctx context.Context, tenant *model.Tenant) (*model.LoginToken, error) {
	if !tenant.Provisioned() {
		return nil, ErrNotProvisioned
	}
	if err := s.store.InvalidateLoginTokens(ctx, tenant.ID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	token := &model.LoginToken{
		ID:        platform.NewID(),
		TenantID:  tenant.ID,
		Token:     platform.NewToken(tokenLength),
		ExpiresAt: now.Add(TokenTTL),
		CreatedAt: now,
	}
	if err := s.store.InsertLoginToken(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", tenant.ID).
		Time("expires_at", token.ExpiresAt).
		Msg("login token issued")
	return token, nil
}

// Redeem looks up and consumes a token. A token redeems at most once;
// unknown, expired and already-used tokens all map to ErrTokenInvalid so the
// caller leaks nothing about which case occurred.
func (s *Service) Redeem(ctx context.Context, value, ip, userAgent string) (*model.LoginToken, error) {
	token, err := s.store.LoginTokenByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if token == nil || !token.Valid(now) {
		return nil, ErrTokenInvalid
	}
	// The store consumes the token atomically; losing the race to a
	// concurrent redeem is the same as finding it already used.
	consumed, err := s.store.MarkLoginTokenUsed(ctx, token.ID, now, ip, userAgent)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrTokenInvalid
	}
	token.Used = true
	token.UsedAt = &now
	token.IPAddress = ip
	token.UserAgent = userAgent
	return token, nil
}

// PurgeExpired deletes tokens older than a day. Run daily.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-purgeAge)
	deleted, err := s.store.DeleteLoginTokensBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("purged stale login tokens")
	}
	return deleted, nil
}
