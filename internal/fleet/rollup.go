package fleet

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// TenantCounter supplies tenant totals for the dashboard overview.
type TenantCounter interface {
	CountTenantsByStatus(ctx context.Context) (map[string]int, error)
}

// Overview is the fleet-wide dashboard rollup.
type Overview struct {
	Instances       int              `json:"instances"`
	ActiveInstances int              `json:"active_instances"`
	TotalUsers      int              `json:"total_users"`
	ActiveUsers     int              `json:"active_users"`
	TotalCapacity   int              `json:"total_capacity"`
	StorageUsed     int64            `json:"storage_used"`
	StorageTotal    int64            `json:"storage_total"`
	AvgCPU          float64          `json:"avg_cpu"`
	AvgMemory       float64          `json:"avg_memory"`
	TenantsByStatus map[string]int   `json:"tenants_by_status"`
	Alerts          []InstanceAlert  `json:"alerts"`
	Top             map[string][]Top `json:"top"`
}

// InstanceAlert is one per-instance alert flattened into the fleet view.
type InstanceAlert struct {
	InstanceID   string `json:"instance_id"`
	InstanceName string `json:"instance_name"`
	model.Alert
}

// Top is one ranked entry in a top-N listing.
type Top struct {
	InstanceID   string  `json:"instance_id"`
	InstanceName string  `json:"instance_name"`
	Value        float64 `json:"value"`
}

// Rollup metrics accepted by TopBy.
const (
	TopCPU     = "cpu"
	TopMemory  = "memory"
	TopStorage = "storage"
)

const topN = 5

// Rollup fetches instances and tenant counts concurrently and builds the
// dashboard overview.
func (a *Aggregator) Rollup(ctx context.Context, tenants TenantCounter) (Overview, error) {
	var (
		instances []model.Instance
		byStatus  map[string]int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		instances, err = a.store.ListInstances(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		byStatus, err = tenants.CountTenantsByStatus(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	ov := Overview{
		Instances:       len(instances),
		TenantsByStatus: byStatus,
		Top: map[string][]Top{
			TopCPU:     TopBy(instances, TopCPU, topN),
			TopMemory:  TopBy(instances, TopMemory, topN),
			TopStorage: TopBy(instances, TopStorage, topN),
		},
	}

	for i := range instances {
		inst := &instances[i]
		if inst.Status == model.InstanceActive {
			ov.ActiveInstances++
		}
		ov.TotalUsers += inst.CurrentUsers
		ov.ActiveUsers += inst.ActiveUsers
		ov.TotalCapacity += inst.MaxUsers
		ov.StorageUsed += inst.StorageUsed
		ov.StorageTotal += inst.StorageAllocated
		ov.AvgCPU += inst.CPUUsage
		ov.AvgMemory += inst.MemoryUsage

		for _, alert := range inst.Alerts {
			ov.Alerts = append(ov.Alerts, InstanceAlert{
				InstanceID:   inst.ID,
				InstanceName: inst.Name,
				Alert:        alert,
			})
		}
	}
	if n := len(instances); n > 0 {
		ov.AvgCPU /= float64(n)
		ov.AvgMemory /= float64(n)
	}
	return ov, nil
}

// TopBy ranks instances by the given metric, descending, and returns the
// first n. Storage ranks by utilization percentage so small instances near
// capacity outrank big half-empty ones.
func TopBy(instances []model.Instance, metric string, n int) []Top {
	entries := make([]Top, 0, len(instances))
	for i := range instances {
		inst := &instances[i]
		var value float64
		switch metric {
		case TopCPU:
			value = inst.CPUUsage
		case TopMemory:
			value = inst.MemoryUsage
		case TopStorage:
			value = storagePct(inst)
		default:
			return nil
		}
		entries = append(entries, Top{
			InstanceID:   inst.ID,
			InstanceName: inst.Name,
			Value:        value,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func storagePct(inst *model.Instance) float64 {
	if inst.StorageAllocated <= 0 {
		return 0
	}
	return float64(inst.StorageUsed) / float64(inst.StorageAllocated) * 100
}
