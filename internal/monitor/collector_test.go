package monitor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/nextcloud"
)

// fakeTransport answers each operation from a canned table.
type fakeTransport struct {
	outputs map[nextcloud.Operation]string
	errs    map[nextcloud.Operation]error
	calls   []nextcloud.Operation
}

func (f *fakeTransport) Execute(_ context.Context, cmd nextcloud.Command) (string, error) {
	f.calls = append(f.calls, cmd.Op)
	if err, ok := f.errs[cmd.Op]; ok {
		return "", err
	}
	return f.outputs[cmd.Op], nil
}

func (f *fakeTransport) Close() error { return nil }

func testInstance() *model.Instance {
	return &model.Instance{
		Name:             "nc-01",
		MaxUsers:         50,
		CurrentUsers:     12,
		ActiveUsers:      7,
		StorageAllocated: 100 << 30,
		StorageUsed:      40 << 30,
		CPUUsage:         33.3,
		MemoryUsage:      44.4,
	}
}

func TestCollect_AllProbesSucceed(t *testing.T) {
	ft := &fakeTransport{outputs: map[nextcloud.Operation]string{
		nextcloud.OpDiskUsage: "/dev/sda1  100G  52G  48G  52% /var/www/html/data",
		nextcloud.OpListUsers: `{"alice":"Alice","bob":"Bob","carol":"Carol"}`,
		nextcloud.OpListApps:  `{"enabled":{"files":"1.0","mail":"2.0"},"disabled":{"survey":null}}`,
		nextcloud.OpCPUStats:  "12.5%",
		nextcloud.OpMemStats:  "61.0%",
	}}
	client := nextcloud.NewClientWithTransport(ft, true)
	inst := testInstance()

	snap := NewCollector(zerolog.Nop()).Collect(context.Background(), client, inst)

	assert.Equal(t, 52, snap.Storage.UsagePct)
	assert.Equal(t, 3, snap.Users.Total)
	assert.True(t, snap.Users.Live)
	assert.Equal(t, 50, snap.Users.Max)
	assert.Equal(t, 2, snap.Apps.Enabled)
	assert.Equal(t, 1, snap.Apps.Disabled)
	assert.Equal(t, 3, snap.Apps.Total)
	assert.Equal(t, 12.5, snap.System.CPUUsage)
	assert.Equal(t, 61.0, snap.System.MemoryUsage)
}

func TestCollect_FallsBackPerProbe(t *testing.T) {
	// Every probe fails; the snapshot degrades to the stored gauges instead
	// of failing collection.
	boom := &nextcloud.UnreachableError{Op: nextcloud.OpDiskUsage}
	ft := &fakeTransport{errs: map[nextcloud.Operation]error{
		nextcloud.OpDiskUsage: boom,
		nextcloud.OpListUsers: boom,
		nextcloud.OpListApps:  boom,
		nextcloud.OpCPUStats:  boom,
		nextcloud.OpMemStats:  boom,
	}}
	client := nextcloud.NewClientWithTransport(ft, true)
	inst := testInstance()

	snap := NewCollector(zerolog.Nop()).Collect(context.Background(), client, inst)

	assert.Equal(t, inst.StorageAllocated, snap.Storage.Total)
	assert.Equal(t, inst.StorageUsed, snap.Storage.Used)
	assert.Equal(t, inst.CurrentUsers, snap.Users.Total)
	assert.False(t, snap.Users.Live)
	assert.Equal(t, inst.ActiveUsers, snap.Users.Active)
	assert.Equal(t, model.AppMetrics{}, snap.Apps)
	assert.Equal(t, inst.CPUUsage, snap.System.CPUUsage)
	assert.Equal(t, inst.MemoryUsage, snap.System.MemoryUsage)
}

func TestCollect_PartialFailureKeepsLiveProbes(t *testing.T) {
	// Storage probe unsupported (REST-managed instance) while users still
	// resolve over the API.
	ft := &fakeTransport{
		outputs: map[nextcloud.Operation]string{
			nextcloud.OpListUsers: `{"users":["alice","bob"]}`,
		},
		errs: map[nextcloud.Operation]error{
			nextcloud.OpDiskUsage: nextcloud.ErrUnsupported,
			nextcloud.OpListApps:  nextcloud.ErrUnsupported,
			nextcloud.OpCPUStats:  nextcloud.ErrUnsupported,
			nextcloud.OpMemStats:  nextcloud.ErrUnsupported,
		},
	}
	client := nextcloud.NewClientWithTransport(ft, false)
	inst := testInstance()

	snap := NewCollector(zerolog.Nop()).Collect(context.Background(), client, inst)

	require.Equal(t, 2, snap.Users.Total)
	assert.True(t, snap.Users.Live)
	assert.Equal(t, inst.StorageUsed, snap.Storage.Used)
	assert.Equal(t, inst.CPUUsage, snap.System.CPUUsage)
}
