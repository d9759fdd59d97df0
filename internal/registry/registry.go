// Package registry decides which Nextcloud instance a new tenant lands on
// and guards the per-instance occupancy counter.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// ErrNoCapacity means no active instance has spare capacity. Provisioning
// treats this as a fatal precondition.
var ErrNoCapacity = errors.New("registry: no nextcloud instance available")

// Store is the durable view of instances the registry works against.
// TryReserve must be a conditional increment (succeeds only while
// current_users < max_users) and Release must clamp at zero, so the counter
// can never over-allocate persistently or go negative.
type Store interface {
	ListActiveInstances(ctx context.Context) ([]model.Instance, error)
	TryReserve(ctx context.Context, instanceID string) (bool, error)
	Release(ctx context.Context, instanceID string) error
}

// Select returns the qualifying instance with the fewest current users.
// Qualifying means active with spare capacity. Ties resolve to input order,
// which keeps selection deterministic for a deterministic instance list.
// Placement is by lowest occupancy, not by remaining headroom.
func Select(instances []model.Instance) *model.Instance {
	var candidates []*model.Instance
	for i := range instances {
		if instances[i].IsAvailable() {
			candidates = append(candidates, &instances[i])
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].CurrentUsers < candidates[b].CurrentUsers
	})
	return candidates[0]
}

// Registry combines the selection policy with atomic occupancy updates.
type Registry struct {
	store Store
}

func New(store Store) *Registry {
	return &Registry{store: store}
}

// Acquire picks the least-occupied available instance and reserves one seat
// on it. Selection and increment are not one atomic step, so the reserve is
// conditional: if a concurrent caller took the last seat first, the next
// candidate is tried. Returns ErrNoCapacity when every candidate is full.
func (r *Registry) Acquire(ctx context.Context) (*model.Instance, error) {
	instances, err := r.store.ListActiveInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active instances: %w", err)
	}

	for len(instances) > 0 {
		selected := Select(instances)
		if selected == nil {
			break
		}
		ok, err := r.store.TryReserve(ctx, selected.ID)
		if err != nil {
			return nil, fmt.Errorf("reserve instance %s: %w", selected.ID, err)
		}
		if ok {
			selected.CurrentUsers++
			return selected, nil
		}
		// Lost the race on this instance; drop it from the candidate
		// list and try the next one.
		lostID := selected.ID
		kept := make([]model.Instance, 0, len(instances)-1)
		for _, inst := range instances {
			if inst.ID != lostID {
				kept = append(kept, inst)
			}
		}
		instances = kept
	}
	return nil, ErrNoCapacity
}

// Release gives a seat back, e.g. after a failed provisioning attempt that
// had already reserved capacity, or when a tenant is deprovisioned.
func (r *Registry) Release(ctx context.Context, instanceID string) error {
	if err := r.store.Release(ctx, instanceID); err != nil {
		return fmt.Errorf("release instance %s: %w", instanceID, err)
	}
	return nil
}
