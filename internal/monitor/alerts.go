package monitor

import (
	"fmt"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// Alert thresholds. Fixed, not configurable.
const (
	storageWarningPct  = 80
	storageCriticalPct = 90
	cpuCriticalPct     = 90
	memoryCriticalPct  = 90
	userWarningPct     = 95
)

// EvaluateAlerts derives the alert list for one snapshot. It is a pure
// function: the same snapshot always yields the same alerts, and the result
// replaces the instance's previous alert list wholesale.
func EvaluateAlerts(snapshot model.MetricsSnapshot) []model.Alert {
	var alerts []model.Alert

	switch pct := snapshot.Storage.UsagePct; {
	case pct >= storageCriticalPct:
		alerts = append(alerts, model.Alert{
			Level:   model.AlertCritical,
			Type:    model.AlertStorage,
			Message: fmt.Sprintf("Storage critical: %d%% used", pct),
		})
	case pct >= storageWarningPct:
		alerts = append(alerts, model.Alert{
			Level:   model.AlertWarning,
			Type:    model.AlertStorage,
			Message: fmt.Sprintf("Storage high: %d%% used", pct),
		})
	}

	if snapshot.System.CPUUsage >= cpuCriticalPct {
		alerts = append(alerts, model.Alert{
			Level:   model.AlertCritical,
			Type:    model.AlertCPU,
			Message: fmt.Sprintf("CPU critical: %.1f%%", snapshot.System.CPUUsage),
		})
	}

	if snapshot.System.MemoryUsage >= memoryCriticalPct {
		alerts = append(alerts, model.Alert{
			Level:   model.AlertCritical,
			Type:    model.AlertMemory,
			Message: fmt.Sprintf("Memory critical: %.1f%%", snapshot.System.MemoryUsage),
		})
	}

	if pct := userOccupancyPct(snapshot.Users); pct >= userWarningPct {
		alerts = append(alerts, model.Alert{
			Level:   model.AlertWarning,
			Type:    model.AlertUsers,
			Message: fmt.Sprintf("User capacity nearly reached: %.1f%%", pct),
		})
	}

	return alerts
}

// userOccupancyPct guards against max_users being zero.
func userOccupancyPct(users model.UserMetrics) float64 {
	if users.Max <= 0 {
		return 0
	}
	return float64(users.Total) / float64(users.Max) * 100
}
