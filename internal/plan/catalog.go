// Package plan resolves tenant plan slugs to their limits. Plans are
// read-only reference data: the catalog is consulted by provisioning and
// billing but never mutated by them.
package plan

import (
	"context"
	"fmt"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// DefaultQuota is applied when a tenant has no resolvable plan.
const DefaultQuota = "5GB"

// Store is the optional database lookup behind the catalog.
type Store interface {
	PlanBySlug(ctx context.Context, slug string) (*model.Plan, error)
}

// Defaults is the built-in catalog, used when the store has no row for a
// slug (or when no store is configured at all).
var Defaults = map[string]model.Plan{
	"trial": {
		Slug: "trial", Name: "Trial",
		Price: 0, DocumentsLimit: 50, StorageGB: 5, UsersLimit: 1, TrialDays: 14,
	},
	"basico": {
		Slug: "basico", Name: "Básico",
		Price: 49, DocumentsLimit: 200, StorageGB: 10, UsersLimit: 3,
	},
	"profissional": {
		Slug: "profissional", Name: "Profissional",
		Price: 149, DocumentsLimit: 500, StorageGB: 50, UsersLimit: 10,
	},
	"empresarial": {
		Slug: "empresarial", Name: "Empresarial",
		Price: 499, DocumentsLimit: 2000, StorageGB: 200, UsersLimit: 50,
	},
}

// Catalog resolves plan slugs, preferring the store and falling back to the
// built-in defaults.
type Catalog struct {
	store Store
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store}
}

// Resolve returns the plan for a slug, or nil when the slug is unknown to
// both the store and the defaults.
func (c *Catalog) Resolve(ctx context.Context, slug string) (*model.Plan, error) {
	if c.store != nil {
		p, err := c.store.PlanBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	if p, ok := Defaults[slug]; ok {
		return &p, nil
	}
	return nil, nil
}

// QuotaString maps a plan's storage limit to the quota string the remote
// instance understands. A missing plan yields the default quota.
func QuotaString(p *model.Plan) string {
	if p == nil || p.StorageGB <= 0 {
		return DefaultQuota
	}
	return fmt.Sprintf("%dGB", p.StorageGB)
}
