package nextcloud

import (
	"context"
	"time"
)

// Operation is one entry in the fixed vocabulary of administrative
// operations a transport can execute against an instance.
type Operation string

const (
	OpCreateUser      Operation = "create_user"
	OpDeleteUser      Operation = "delete_user"
	OpCreateGroup     Operation = "create_group"
	OpDeleteGroup     Operation = "delete_group"
	OpAddToGroup      Operation = "add_to_group"
	OpRemoveFromGroup Operation = "remove_from_group"
	OpSetQuota        Operation = "set_quota"
	OpSetGroupQuota   Operation = "set_group_quota"
	OpListUsers       Operation = "list_users"
	OpListGroups      Operation = "list_groups"
	OpUserInfo        Operation = "user_info"
	OpLastSeen        Operation = "last_seen"
	OpResendWelcome   Operation = "resend_welcome"
	OpListApps        Operation = "list_apps"
	OpTestConnection  Operation = "test_connection"

	// Metric probes, shell-managed instances only. The REST transport
	// returns ErrUnsupported for these.
	OpDiskUsage Operation = "disk_usage"
	OpCPUStats  Operation = "cpu_stats"
	OpMemStats  Operation = "mem_stats"
)

// Argument conventions per operation:
//
//	create_user        userID, displayName, email, password
//	delete_user        userID
//	create_group       groupID
//	delete_group       groupID
//	add_to_group       userID, groupID
//	remove_from_group  userID, groupID
//	set_quota          userID, quota
//	set_group_quota    groupID, quota
//	user_info          userID
//	last_seen          userID
//	resend_welcome     userID
//
// The remaining operations take no arguments.
type Command struct {
	Op   Operation
	Args []string
}

// Transport executes a named administrative operation against one instance
// and returns the trimmed raw output. Implementations are safe for use by
// one caller at a time per instance; ShellTransport serializes internally.
type Transport interface {
	Execute(ctx context.Context, cmd Command) (string, error)
	Close() error
}

// Default per-call timeouts. Connection probes are kept short so health
// checks and version fetches fail fast; commands get more room.
const (
	connectTimeout = 10 * time.Second
	commandTimeout = 30 * time.Second
)
