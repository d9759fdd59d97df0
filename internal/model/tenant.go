package model

import "time"

// Tenant is a SaaS customer account mapped to at most one remote account on
// one Instance. The instance linkage is set only when provisioning succeeds.
type Tenant struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	Company  string `json:"company,omitempty" db:"company"`
	PlanType string `json:"plan_type" db:"plan_type"`

	InstanceID   *string `json:"instance_id,omitempty" db:"instance_id"`
	RemoteUserID *string `json:"remote_user_id,omitempty" db:"remote_user_id"`
	PlatformURL  *string `json:"platform_url,omitempty" db:"platform_url"`

	ProvisionStatus string     `json:"provision_status" db:"provision_status"`
	ProvisionError  *string    `json:"provision_error,omitempty" db:"provision_error"`
	ProvisionedAt   *time.Time `json:"provisioned_at,omitempty" db:"provisioned_at"`

	StorageUsedBytes  int64      `json:"storage_used_bytes" db:"storage_used_bytes"`
	StorageQuotaBytes *int64     `json:"storage_quota_bytes,omitempty" db:"storage_quota_bytes"`
	FileCount         int        `json:"file_count" db:"file_count"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	MetricsSyncedAt   *time.Time `json:"metrics_synced_at,omitempty" db:"metrics_synced_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Provisioned reports whether the tenant has a linked remote account.
func (t *Tenant) Provisioned() bool {
	return t.InstanceID != nil && t.RemoteUserID != nil
}
