package nextcloud

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

// Client is the typed surface over a Transport. The transport variant is
// chosen once, from the instance's management method, instead of branching
// inside every operation.
type Client struct {
	transport Transport
	shell     bool
}

// NewClient builds the transport for an instance and wraps it. A fatal
// ConfigError here means the instance record is missing credentials.
func NewClient(inst *model.Instance) (*Client, error) {
	if inst.UsesSSH() {
		t, err := NewShellTransport(ShellConfig{
			Host:          inst.SSHHost,
			Port:          inst.SSHPort,
			User:          inst.SSHUser,
			PrivateKeyPEM: inst.SSHPrivateKey,
			ContainerName: inst.DockerContainerName,
		})
		if err != nil {
			return nil, err
		}
		return &Client{transport: t, shell: true}, nil
	}

	t, err := NewRestTransport(RestConfig{
		URL:      inst.URL,
		Username: inst.APIUsername,
		Password: inst.APIPassword,
	})
	if err != nil {
		return nil, err
	}
	return &Client{transport: t}, nil
}

// NewClientWithTransport wraps an existing transport; used by tests and by
// callers that pool transports per instance.
func NewClientWithTransport(t Transport, shell bool) *Client {
	return &Client{transport: t, shell: shell}
}

func (c *Client) Close() error { return c.transport.Close() }

func (c *Client) exec(ctx context.Context, op Operation, args ...string) (string, error) {
	return c.transport.Execute(ctx, Command{Op: op, Args: args})
}

// CreateUser creates the remote account. Not idempotent: re-creating an
// existing account fails with an "already exists" remote error.
func (c *Client) CreateUser(ctx context.Context, userID, displayName, email, password string) error {
	_, err := c.exec(ctx, OpCreateUser, userID, displayName, email, password)
	return err
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.exec(ctx, OpDeleteUser, userID)
	return err
}

func (c *Client) CreateGroup(ctx context.Context, groupID string) error {
	_, err := c.exec(ctx, OpCreateGroup, groupID)
	return err
}

func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	_, err := c.exec(ctx, OpDeleteGroup, groupID)
	return err
}

func (c *Client) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	_, err := c.exec(ctx, OpAddToGroup, userID, groupID)
	return err
}

func (c *Client) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	_, err := c.exec(ctx, OpRemoveFromGroup, userID, groupID)
	return err
}

// SetUserQuota applies a quota string such as "5GB" or "unlimited".
func (c *Client) SetUserQuota(ctx context.Context, userID, quota string) error {
	_, err := c.exec(ctx, OpSetQuota, userID, quota)
	return err
}

func (c *Client) SetGroupQuota(ctx context.Context, groupID, quota string) error {
	_, err := c.exec(ctx, OpSetGroupQuota, groupID, quota)
	return err
}

// ResendWelcome triggers the welcome/password email for the account.
func (c *Client) ResendWelcome(ctx context.Context, userID string) error {
	_, err := c.exec(ctx, OpResendWelcome, userID)
	return err
}

// ListUsers returns the remote user ids. The shell transport emits the occ
// JSON map {uid: displayName}; the REST transport emits {"users": [...]}.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	out, err := c.exec(ctx, OpListUsers)
	if err != nil {
		return nil, err
	}
	if c.shell {
		var m map[string]any
		if err := json.Unmarshal([]byte(out), &m); err != nil {
			return nil, &ParseError{Op: OpListUsers, Err: err}
		}
		users := make([]string, 0, len(m))
		for uid := range m {
			users = append(users, uid)
		}
		return users, nil
	}
	var data struct {
		Users []string `json:"users"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return nil, &ParseError{Op: OpListUsers, Err: err}
	}
	return data.Users, nil
}

// ListGroups returns the remote group ids.
func (c *Client) ListGroups(ctx context.Context) ([]string, error) {
	out, err := c.exec(ctx, OpListGroups)
	if err != nil {
		return nil, err
	}
	if c.shell {
		var m map[string]any
		if err := json.Unmarshal([]byte(out), &m); err != nil {
			return nil, &ParseError{Op: OpListGroups, Err: err}
		}
		groups := make([]string, 0, len(m))
		for gid := range m {
			groups = append(groups, gid)
		}
		return groups, nil
	}
	var data struct {
		Groups []string `json:"groups"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return nil, &ParseError{Op: OpListGroups, Err: err}
	}
	return data.Groups, nil
}

// AppCounts are the enabled/disabled app totals from `occ app:list` or the
// OCS apps endpoint.
type AppCounts struct {
	Enabled  int
	Disabled int
}

func (c *Client) ListApps(ctx context.Context) (AppCounts, error) {
	out, err := c.exec(ctx, OpListApps)
	if err != nil {
		return AppCounts{}, err
	}
	if c.shell {
		var data struct {
			Enabled  map[string]any `json:"enabled"`
			Disabled map[string]any `json:"disabled"`
		}
		if err := json.Unmarshal([]byte(out), &data); err != nil {
			return AppCounts{}, &ParseError{Op: OpListApps, Err: err}
		}
		return AppCounts{Enabled: len(data.Enabled), Disabled: len(data.Disabled)}, nil
	}
	var data struct {
		Apps []string `json:"apps"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return AppCounts{}, &ParseError{Op: OpListApps, Err: err}
	}
	return AppCounts{Enabled: len(data.Apps)}, nil
}

// UserInfo fetches quota, usage, last login and groups for a remote user.
func (c *Client) UserInfo(ctx context.Context, userID string) (UserInfo, error) {
	out, err := c.exec(ctx, OpUserInfo, userID)
	if err != nil {
		return UserInfo{}, err
	}
	if !c.shell || strings.HasPrefix(out, "{") {
		return parseUserInfoJSON(out)
	}
	return parseUserInfoText(out), nil
}

// LastSeen returns the user's last login time, or nil if the user never
// logged in.
func (c *Client) LastSeen(ctx context.Context, userID string) (*time.Time, error) {
	out, err := c.exec(ctx, OpLastSeen, userID)
	if err != nil {
		return nil, err
	}
	if !c.shell || strings.HasPrefix(out, "{") {
		info, err := parseUserInfoJSON(out)
		if err != nil {
			return nil, err
		}
		return info.LastLogin, nil
	}
	return parseLastSeenText(out), nil
}

// TestConnection verifies the transport can reach the instance and execute
// a trivial operation.
func (c *Client) TestConnection(ctx context.Context) error {
	out, err := c.exec(ctx, OpTestConnection)
	if err != nil {
		return err
	}
	if c.shell && strings.TrimSpace(out) != "test" {
		return &CommandError{Op: OpTestConnection, Stdout: out}
	}
	return nil
}

// DiskUsage probes the data mount of a shell-managed instance.
func (c *Client) DiskUsage(ctx context.Context) (DiskUsage, error) {
	out, err := c.exec(ctx, OpDiskUsage)
	if err != nil {
		return DiskUsage{}, err
	}
	du, err := parseDFLine(out)
	if err != nil {
		return DiskUsage{}, &ParseError{Op: OpDiskUsage, Err: err}
	}
	return du, nil
}

// CPUPercent reads the container's CPU usage percentage.
func (c *Client) CPUPercent(ctx context.Context) (float64, error) {
	out, err := c.exec(ctx, OpCPUStats)
	if err != nil {
		return 0, err
	}
	pct, err := parsePercent(out)
	if err != nil {
		return 0, &ParseError{Op: OpCPUStats, Err: err}
	}
	return pct, nil
}

// MemoryPercent reads the container's memory usage percentage.
func (c *Client) MemoryPercent(ctx context.Context) (float64, error) {
	out, err := c.exec(ctx, OpMemStats)
	if err != nil {
		return 0, err
	}
	pct, err := parsePercent(out)
	if err != nil {
		return 0, &ParseError{Op: OpMemStats, Err: err}
	}
	return pct, nil
}

// parseUserInfoJSON maps the OCS user record onto UserInfo. lastLogin is
// milliseconds since epoch; quota -3 means unlimited.
func parseUserInfoJSON(out string) (UserInfo, error) {
	var data struct {
		Quota struct {
			Quota int64 `json:"quota"`
			Used  int64 `json:"used"`
		} `json:"quota"`
		LastLogin int64    `json:"lastLogin"`
		Groups    []string `json:"groups"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return UserInfo{}, &ParseError{Op: OpUserInfo, Err: err}
	}
	info := UserInfo{UsedBytes: data.Quota.Used, Groups: data.Groups}
	if data.Quota.Quota > 0 {
		q := data.Quota.Quota
		info.QuotaBytes = &q
	}
	if data.LastLogin > 0 {
		ts := time.UnixMilli(data.LastLogin).UTC()
		info.LastLogin = &ts
	}
	return info, nil
}
