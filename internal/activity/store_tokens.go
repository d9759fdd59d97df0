package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// Login token queries. Store satisfies sso.TokenStore, so the API layer
// reuses these outside Temporal.

func (a *Store) InvalidateLoginTokens(ctx context.Context, tenantID string) error {
	_, err := a.db.Exec(ctx,
		`UPDATE login_tokens SET used = TRUE, used_at = now()
		 WHERE tenant_id = $1 AND used = FALSE`, tenantID)
	return err
}

func (a *Store) InsertLoginToken(ctx context.Context, token *model.LoginToken) error {
	_, err := a.db.Exec(ctx,
		`INSERT INTO login_tokens (id, tenant_id, token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.TenantID, token.Token, token.ExpiresAt, token.CreatedAt)
	return err
}

func (a *Store) LoginTokenByValue(ctx context.Context, value string) (*model.LoginToken, error) {
	var t model.LoginToken
	err := a.db.QueryRow(ctx,
		`SELECT id, tenant_id, token, expires_at, used, used_at, ip_address, user_agent, created_at
		 FROM login_tokens WHERE token = $1`, value,
	).Scan(&t.ID, &t.TenantID, &t.Token, &t.ExpiresAt, &t.Used, &t.UsedAt, &t.IPAddress, &t.UserAgent, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get login token: %w", err)
	}
	return &t, nil
}

// MarkLoginTokenUsed consumes a token. The used = FALSE guard makes the
// consume atomic, so concurrent redeems of the same token race on this
// statement and exactly one of them wins.
func (a *Store) MarkLoginTokenUsed(ctx context.Context, id string, usedAt time.Time, ip, userAgent string) (bool, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE login_tokens SET used = TRUE, used_at = $1, ip_address = $2, user_agent = $3
		 WHERE id = $4 AND used = FALSE`, usedAt, ip, userAgent, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (a *Store) DeleteLoginTokensBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := a.db.Exec(ctx,
		`DELETE FROM login_tokens WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeLoginTokens deletes tokens older than 24 hours; the daily cron
// workflow calls this as an activity.
func (a *Store) PurgeLoginTokens(ctx context.Context) (int64, error) {
	return a.DeleteLoginTokensBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
}
