package activity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"

	"github.com/LibreCodeCoop/libresign-saas/internal/metrics"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/nextcloud"
)

// Remote contains activities that execute operations on Nextcloud instances
// over the shell or REST transport. Shell clients are pooled per instance
// because each one holds a live SSH connection.
type Remote struct {
	logger zerolog.Logger

	// defaultGroup is added to every provisioned account when configured.
	defaultGroup string

	mu      sync.Mutex
	clients map[string]*nextcloud.Client
}

// NewRemote creates a new Remote activity struct.
func NewRemote(logger zerolog.Logger, defaultGroup string) *Remote {
	return &Remote{
		logger:       logger,
		defaultGroup: defaultGroup,
		clients:      make(map[string]*nextcloud.Client),
	}
}

// Close tears down all pooled transports.
func (a *Remote) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, c := range a.clients {
		if err := c.Close(); err != nil {
			a.logger.Warn().Str("instance_id", id).Err(err).Msg("close transport")
		}
		delete(a.clients, id)
	}
}

func (a *Remote) client(inst *model.Instance) (*nextcloud.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[inst.ID]; ok {
		return c, nil
	}
	c, err := nextcloud.NewClient(inst)
	if err != nil {
		return nil, err
	}
	a.clients[inst.ID] = c
	return c, nil
}

// remoteErr maps a transport error onto Temporal retry semantics: fatal
// configuration and auth errors become non-retryable application errors so
// the retry budget is not burned on them.
func remoteErr(op nextcloud.Operation, err error) error {
	if err == nil {
		metrics.RemoteOperations.WithLabelValues(string(op), "ok").Inc()
		return nil
	}
	metrics.RemoteOperations.WithLabelValues(string(op), "error").Inc()
	if nextcloud.IsFatal(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "FatalTransportError", err)
	}
	return err
}

// CreateRemoteUserParams holds the parameters for CreateRemoteUser.
type CreateRemoteUserParams struct {
	Instance    model.Instance
	UserID      string
	DisplayName string
	Email       string
	Password    string
}

// CreateRemoteUser creates the tenant's account on the instance. Remote
// creation is not idempotent: re-creating an existing account fails with an
// "already exists" error rather than succeeding silently.
func (a *Remote) CreateRemoteUser(ctx context.Context, params CreateRemoteUserParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpCreateUser, err)
	}
	return remoteErr(nextcloud.OpCreateUser,
		c.CreateUser(ctx, params.UserID, params.DisplayName, params.Email, params.Password))
}

// RemoteUserParams holds the parameters for activities addressing one
// remote user.
type RemoteUserParams struct {
	Instance model.Instance
	UserID   string
}

// DeleteRemoteUser removes the remote account, including its files.
func (a *Remote) DeleteRemoteUser(ctx context.Context, params RemoteUserParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpDeleteUser, err)
	}
	return remoteErr(nextcloud.OpDeleteUser, c.DeleteUser(ctx, params.UserID))
}

// RemoteGroupParams holds the parameters for group activities.
type RemoteGroupParams struct {
	Instance model.Instance
	GroupID  string
}

// CreateRemoteGroup creates a group. An already-existing group counts as
// success; the callers of this step treat the group as shared state.
func (a *Remote) CreateRemoteGroup(ctx context.Context, params RemoteGroupParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpCreateGroup, err)
	}
	err = c.CreateGroup(ctx, params.GroupID)
	if nextcloud.IsAlreadyExists(err) {
		a.logger.Debug().Str("group", params.GroupID).Msg("remote group already exists")
		err = nil
	}
	return remoteErr(nextcloud.OpCreateGroup, err)
}

// DeleteRemoteGroup removes a group.
func (a *Remote) DeleteRemoteGroup(ctx context.Context, params RemoteGroupParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpDeleteGroup, err)
	}
	return remoteErr(nextcloud.OpDeleteGroup, c.DeleteGroup(ctx, params.GroupID))
}

// GroupMemberParams holds the parameters for membership activities.
type GroupMemberParams struct {
	Instance model.Instance
	UserID   string
	GroupID  string
}

// AddUserToRemoteGroup adds the user to a group; already-a-member counts as
// success.
func (a *Remote) AddUserToRemoteGroup(ctx context.Context, params GroupMemberParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpAddToGroup, err)
	}
	err = c.AddUserToGroup(ctx, params.UserID, params.GroupID)
	if nextcloud.IsAlreadyExists(err) {
		err = nil
	}
	return remoteErr(nextcloud.OpAddToGroup, err)
}

// RemoveUserFromRemoteGroup removes the user from a group.
func (a *Remote) RemoveUserFromRemoteGroup(ctx context.Context, params GroupMemberParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpRemoveFromGroup, err)
	}
	return remoteErr(nextcloud.OpRemoveFromGroup, c.RemoveUserFromGroup(ctx, params.UserID, params.GroupID))
}

// AddUserToDefaultGroup adds the user to the configured fleet-wide default
// group. A no-op when no default group is configured.
func (a *Remote) AddUserToDefaultGroup(ctx context.Context, params RemoteUserParams) error {
	if a.defaultGroup == "" {
		return nil
	}
	if err := a.CreateRemoteGroup(ctx, RemoteGroupParams{Instance: params.Instance, GroupID: a.defaultGroup}); err != nil {
		return err
	}
	return a.AddUserToRemoteGroup(ctx, GroupMemberParams{
		Instance: params.Instance,
		UserID:   params.UserID,
		GroupID:  a.defaultGroup,
	})
}

// SetRemoteQuotaParams holds the parameters for SetRemoteQuota.
type SetRemoteQuotaParams struct {
	Instance model.Instance
	UserID   string
	Quota    string
}

// SetRemoteQuota applies a quota string such as "5GB" to the remote user.
func (a *Remote) SetRemoteQuota(ctx context.Context, params SetRemoteQuotaParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpSetQuota, err)
	}
	return remoteErr(nextcloud.OpSetQuota, c.SetUserQuota(ctx, params.UserID, params.Quota))
}

// SendWelcomeEmail triggers the instance's welcome email for the account.
func (a *Remote) SendWelcomeEmail(ctx context.Context, params RemoteUserParams) error {
	c, err := a.client(&params.Instance)
	if err != nil {
		return remoteErr(nextcloud.OpResendWelcome, err)
	}
	return remoteErr(nextcloud.OpResendWelcome, c.ResendWelcome(ctx, params.UserID))
}

// RemoteUserUsage is what the tenant metrics sync reads back per account.
type RemoteUserUsage struct {
	StorageUsedBytes  int64
	StorageQuotaBytes *int64
	LastLoginAt       *time.Time
}

// GetRemoteUserUsage reads storage usage, quota and last login for one
// remote account.
func (a *Remote) GetRemoteUserUsage(ctx context.Context, params RemoteUserParams) (*RemoteUserUsage, error) {
	c, err := a.client(&params.Instance)
	if err != nil {
		return nil, remoteErr(nextcloud.OpUserInfo, err)
	}
	info, err := c.UserInfo(ctx, params.UserID)
	if err != nil {
		return nil, remoteErr(nextcloud.OpUserInfo, err)
	}
	metrics.RemoteOperations.WithLabelValues(string(nextcloud.OpUserInfo), "ok").Inc()
	return &RemoteUserUsage{
		StorageUsedBytes:  info.UsedBytes,
		StorageQuotaBytes: info.QuotaBytes,
		LastLoginAt:       info.LastLogin,
	}, nil
}
