package model

// MetricsSnapshot is one point-in-time measurement of an instance. It is
// produced fresh each collection cycle and folded into the instance's gauges
// and history buffers; the snapshot itself is never persisted.
type MetricsSnapshot struct {
	Storage StorageMetrics `json:"storage"`
	Users   UserMetrics    `json:"users"`
	Apps    AppMetrics     `json:"apps"`
	System  SystemMetrics  `json:"system"`
}

type StorageMetrics struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	UsagePct  int   `json:"usage_percentage"`
}

// UserMetrics carries the user counts for one collection cycle. Live reports
// whether Total came from an actual remote user listing; when the listing
// fails the collector falls back to the last persisted count and Live stays
// false, so consumers know not to write Total back.
type UserMetrics struct {
	Total  int  `json:"total"`
	Active int  `json:"active"`
	Max    int  `json:"max"`
	Live   bool `json:"live"`
}

type AppMetrics struct {
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
	Total    int `json:"total"`
}

type SystemMetrics struct {
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryUsage   float64 `json:"memory_usage"`
	DiskIO        float64 `json:"disk_io"`
	NetThroughput float64 `json:"network_throughput"`
}

// Alert levels and types.
const (
	AlertWarning  = "warning"
	AlertCritical = "critical"

	AlertStorage = "storage"
	AlertCPU     = "cpu"
	AlertMemory  = "memory"
	AlertUsers   = "users"
)

// Alert is an operator-facing computed warning. The per-instance alert list
// is recomputed fully on each collection cycle.
type Alert struct {
	Level   string `json:"level"`
	Type    string `json:"type"`
	Message string `json:"message"`
}
