package model

import (
	"encoding/json"
	"time"
)

// Transport kind constants for Instance.ManagementMethod.
const (
	ManagementSSH = "ssh"
	ManagementAPI = "api"
)

// Instance is one externally hosted Nextcloud deployment administered by
// this control plane.
type Instance struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	URL     string `json:"url" db:"url"`
	Version string `json:"version,omitempty" db:"version"`

	// ManagementMethod selects the transport: "ssh" or "api".
	ManagementMethod string `json:"management_method" db:"management_method"`

	SSHHost             string `json:"ssh_host,omitempty" db:"ssh_host"`
	SSHPort             int    `json:"ssh_port,omitempty" db:"ssh_port"`
	SSHUser             string `json:"ssh_user,omitempty" db:"ssh_user"`
	SSHPrivateKey       string `json:"-" db:"ssh_private_key"`
	DockerContainerName string `json:"docker_container_name,omitempty" db:"docker_container_name"`

	APIUsername string `json:"api_username,omitempty" db:"api_username"`
	APIPassword string `json:"-" db:"api_password"`

	Status       string `json:"status" db:"status"`
	MaxUsers     int    `json:"max_users" db:"max_users"`
	CurrentUsers int    `json:"current_users" db:"current_users"`
	ActiveUsers  int    `json:"active_users" db:"active_users"`

	StorageUsed      int64   `json:"storage_used" db:"storage_used"`
	StorageAllocated int64   `json:"storage_allocated" db:"storage_allocated"`
	CPUUsage         float64 `json:"cpu_usage" db:"cpu_usage"`
	MemoryUsage      float64 `json:"memory_usage" db:"memory_usage"`
	DiskIO           float64 `json:"disk_io" db:"disk_io"`
	NetThroughput    float64 `json:"network_throughput" db:"network_throughput"`

	StorageGrowth []StoragePoint  `json:"storage_growth,omitempty" db:"storage_growth"`
	UserActivity  []ActivityPoint `json:"user_activity,omitempty" db:"user_activity"`
	ResponseTimes []StoragePoint  `json:"response_times,omitempty" db:"response_times"`
	Alerts        []Alert         `json:"alerts,omitempty" db:"alerts"`

	HealthCheckResults json.RawMessage `json:"health_check_results,omitempty" db:"health_check_results"`
	LastHealthCheck    *time.Time      `json:"last_health_check,omitempty" db:"last_health_check"`

	Notes     string    `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasCapacity reports whether the instance can take another tenant. This is
// a soft constraint checked at selection time; concurrent provisioning may
// transiently overshoot it.
func (i *Instance) HasCapacity() bool {
	return i.CurrentUsers < i.MaxUsers
}

// IsAvailable reports whether the instance qualifies for new tenant
// placement.
func (i *Instance) IsAvailable() bool {
	return i.Status == InstanceActive && i.HasCapacity()
}

// UsesSSH reports whether the instance is managed over SSH rather than the
// OCS API.
func (i *Instance) UsesSSH() bool {
	return i.ManagementMethod == ManagementSSH
}

// StoragePoint is one {timestamp, value} entry in a bounded history series.
type StoragePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ActivityPoint is one user-activity history entry.
type ActivityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Total     int       `json:"total"`
	Active    int       `json:"active"`
}
