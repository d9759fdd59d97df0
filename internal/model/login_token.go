package model

import "time"

// LoginToken is a single-use SSO token letting a tenant jump into their
// remote account without re-authenticating. Issuing a new token invalidates
// any unused predecessors.
type LoginToken struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	Token     string     `json:"token" db:"token"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	IPAddress string     `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string     `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Valid reports whether the token can still be redeemed at the given time.
func (t *LoginToken) Valid(now time.Time) bool {
	return !t.Used && t.ExpiresAt.After(now)
}
