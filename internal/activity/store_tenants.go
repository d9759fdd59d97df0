package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LibreCodeCoop/libresign-saas/internal/metrics"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/plan"
)

const tenantColumns = `id, name, email, company, plan_type,
	instance_id, remote_user_id, platform_url,
	provision_status, provision_error, provisioned_at,
	storage_used_bytes, storage_quota_bytes, file_count, last_login_at, metrics_synced_at,
	created_at, updated_at`

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var t model.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Company, &t.PlanType,
		&t.InstanceID, &t.RemoteUserID, &t.PlatformURL,
		&t.ProvisionStatus, &t.ProvisionError, &t.ProvisionedAt,
		&t.StorageUsedBytes, &t.StorageQuotaBytes, &t.FileCount, &t.LastLoginAt, &t.MetricsSyncedAt,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTenantByID retrieves a tenant by its ID.
func (a *Store) GetTenantByID(ctx context.Context, id string) (*model.Tenant, error) {
	t, err := scanTenant(a.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get tenant by id: %w", err)
	}
	return t, nil
}

// GetTenantByEmail retrieves a tenant by email, or nil when none exists.
func (a *Store) GetTenantByEmail(ctx context.Context, email string) (*model.Tenant, error) {
	t, err := scanTenant(a.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE email = $1`, email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant by email: %w", err)
	}
	return t, nil
}

// InsertTenant creates a tenant row in the pending status.
func (a *Store) InsertTenant(ctx context.Context, t *model.Tenant) error {
	_, err := a.db.Exec(ctx,
		`INSERT INTO tenants (id, name, email, company, plan_type, provision_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		t.ID, t.Name, t.Email, t.Company, t.PlanType, t.ProvisionStatus)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// ListProvisionedTenantIDs returns the ids of all tenants with a linked
// remote account, for the daily metrics sweep.
func (a *Store) ListProvisionedTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id FROM tenants
		 WHERE provision_status = $1 AND instance_id IS NOT NULL
		 ORDER BY created_at`, model.TenantActive)
	if err != nil {
		return nil, fmt.Errorf("list provisioned tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountTenantsByStatus returns tenant counts grouped by provisioning status.
func (a *Store) CountTenantsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.Query(ctx,
		`SELECT provision_status, count(*) FROM tenants GROUP BY provision_status`)
	if err != nil {
		return nil, fmt.Errorf("count tenants by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// UpdateTenantStatusParams holds the parameters for UpdateTenantStatus.
type UpdateTenantStatusParams struct {
	ID            string
	Status        string
	StatusMessage *string
}

// UpdateTenantStatus sets the provisioning status of a tenant, replacing the
// stored error message (nil clears it).
func (a *Store) UpdateTenantStatus(ctx context.Context, params UpdateTenantStatusParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE tenants SET provision_status = $1, provision_error = $2, updated_at = now()
		 WHERE id = $3`,
		params.Status, params.StatusMessage, params.ID)
	if err == nil && params.Status == model.TenantFailed {
		metrics.ProvisioningTotal.WithLabelValues("failure").Inc()
	}
	return err
}

// RecordProvisionedParams holds the parameters for RecordProvisioned.
type RecordProvisionedParams struct {
	TenantID     string
	InstanceID   string
	RemoteUserID string
	PlatformURL  string
}

// RecordProvisioned links a tenant to its freshly created remote account and
// marks it active in one statement, so a crash cannot leave the link half
// written.
func (a *Store) RecordProvisioned(ctx context.Context, params RecordProvisionedParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE tenants
		 SET instance_id = $1, remote_user_id = $2, platform_url = $3,
		     provision_status = $4, provision_error = NULL, provisioned_at = now(), updated_at = now()
		 WHERE id = $5`,
		params.InstanceID, params.RemoteUserID, params.PlatformURL,
		model.TenantActive, params.TenantID)
	if err == nil {
		metrics.ProvisioningTotal.WithLabelValues("success").Inc()
	}
	return err
}

// ClearTenantLink detaches a deprovisioned tenant from its instance.
func (a *Store) ClearTenantLink(ctx context.Context, tenantID string) error {
	_, err := a.db.Exec(ctx,
		`UPDATE tenants
		 SET instance_id = NULL, remote_user_id = NULL, platform_url = NULL,
		     provision_status = $1, updated_at = now()
		 WHERE id = $2`,
		model.TenantPending, tenantID)
	return err
}

// UpdateTenantUsageParams holds the parameters for UpdateTenantUsage.
type UpdateTenantUsageParams struct {
	TenantID          string
	StorageUsedBytes  int64
	StorageQuotaBytes *int64
	FileCount         int
	LastLoginAt       *time.Time
}

// UpdateTenantUsage writes the usage gauges collected by the metrics sync.
// Only usage fields are touched; provisioning fields stay untouched.
func (a *Store) UpdateTenantUsage(ctx context.Context, params UpdateTenantUsageParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE tenants
		 SET storage_used_bytes = $1, storage_quota_bytes = $2, file_count = $3,
		     last_login_at = COALESCE($4, last_login_at), metrics_synced_at = now(), updated_at = now()
		 WHERE id = $5`,
		params.StorageUsedBytes, params.StorageQuotaBytes, params.FileCount,
		params.LastLoginAt, params.TenantID)
	return err
}

// PlanBySlug reads a plan row, or nil when the slug has no row. The catalog
// layers the built-in defaults on top of this.
func (a *Store) PlanBySlug(ctx context.Context, slug string) (*model.Plan, error) {
	var p model.Plan
	err := a.db.QueryRow(ctx,
		`SELECT slug, name, price, documents_limit, storage_gb, users_limit, trial_days
		 FROM plans WHERE slug = $1`, slug,
	).Scan(&p.Slug, &p.Name, &p.Price, &p.DocumentsLimit, &p.StorageGB, &p.UsersLimit, &p.TrialDays)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan by slug: %w", err)
	}
	return &p, nil
}

// GetPlanBySlug resolves a plan through the catalog, falling back to the
// built-in defaults when the database has no row. Returns nil for unknown
// slugs.
func (a *Store) GetPlanBySlug(ctx context.Context, slug string) (*model.Plan, error) {
	return plan.NewCatalog(a).Resolve(ctx, slug)
}
