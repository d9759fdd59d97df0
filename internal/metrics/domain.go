package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Control-plane counters and gauges, labelled so dashboards can split by
// instance and outcome.
var (
	ProvisioningTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisioning_total",
		Help: "Tenant provisioning outcomes",
	}, []string{"outcome"})

	RemoteOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_operations_total",
		Help: "Remote transport operations by op and result",
	}, []string{"op", "result"})

	CollectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metrics_collection_seconds",
		Help:    "Duration of one instance metrics collection",
		Buckets: prometheus.DefBuckets,
	}, []string{"instance"})

	ActiveAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "instance_active_alerts",
		Help: "Active alerts per instance and level",
	}, []string{"instance", "level"})

	InstanceUsers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "instance_current_users",
		Help: "Current tenant accounts per instance",
	}, []string{"instance"})
)
