package model

// Instance lifecycle status constants.
const (
	InstanceActive      = "active"
	InstanceInactive    = "inactive"
	InstanceMaintenance = "maintenance"
	InstanceError       = "error"
)

// Tenant provisioning status constants.
const (
	TenantPending  = "pending"
	TenantCreating = "creating"
	TenantActive   = "active"
	TenantFailed   = "failed"
)
