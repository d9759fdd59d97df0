package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/LibreCodeCoop/libresign-saas/internal/config"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
)

type fakeStore struct {
	tenants   map[string]*model.Tenant
	instances []model.Instance
	tokens    map[string]*model.LoginToken
	statuses  map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:  make(map[string]*model.Tenant),
		tokens:   make(map[string]*model.LoginToken),
		statuses: make(map[string]int),
	}
}

func (f *fakeStore) GetTenantByID(_ context.Context, id string) (*model.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return t, nil
}

func (f *fakeStore) GetTenantByEmail(_ context.Context, email string) (*model.Tenant, error) {
	for _, t := range f.tenants {
		if t.Email == email {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertTenant(_ context.Context, t *model.Tenant) error {
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeStore) CountTenantsByStatus(_ context.Context) (map[string]int, error) {
	return f.statuses, nil
}

func (f *fakeStore) GetInstanceByID(_ context.Context, id string) (*model.Instance, error) {
	for i := range f.instances {
		if f.instances[i].ID == id {
			return &f.instances[i], nil
		}
	}
	return nil, errors.New("no rows in result set")
}

func (f *fakeStore) ListInstances(_ context.Context) ([]model.Instance, error) {
	return f.instances, nil
}

func (f *fakeStore) UpdateInstanceMetrics(_ context.Context, _ *model.Instance, _ bool) error {
	return nil
}

func (f *fakeStore) InvalidateLoginTokens(_ context.Context, tenantID string) error {
	for v, tok := range f.tokens {
		if tok.TenantID == tenantID && !tok.Used {
			delete(f.tokens, v)
		}
	}
	return nil
}

func (f *fakeStore) InsertLoginToken(_ context.Context, token *model.LoginToken) error {
	cp := *token
	f.tokens[token.Token] = &cp
	return nil
}

func (f *fakeStore) LoginTokenByValue(_ context.Context, value string) (*model.LoginToken, error) {
	tok, ok := f.tokens[value]
	if !ok {
		return nil, nil
	}
	cp := *tok
	return &cp, nil
}

func (f *fakeStore) MarkLoginTokenUsed(_ context.Context, id string, usedAt time.Time, ip, userAgent string) (bool, error) {
	for _, tok := range f.tokens {
		if tok.ID == id && !tok.Used {
			tok.Used = true
			tok.UsedAt = &usedAt
			tok.IPAddress = ip
			tok.UserAgent = userAgent
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) DeleteLoginTokensBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for v, tok := range f.tokens {
		if tok.ExpiresAt.Before(cutoff) {
			delete(f.tokens, v)
			n++
		}
	}
	return n, nil
}

type startedWorkflow struct {
	Name string
	ID   string
	Args []any
}

type fakeStarter struct {
	started []startedWorkflow
	err     error
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, options temporalclient.StartWorkflowOptions, workflow any, args ...any) (temporalclient.WorkflowRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, startedWorkflow{
		Name: workflow.(string),
		ID:   options.ID,
		Args: args,
	})
	return nil, nil
}

const testToken = "test-api-token"

func newTestServer() (*Server, *fakeStore, *fakeStarter) {
	store := newFakeStore()
	starter := &fakeStarter{}
	cfg := &config.Config{
		APIToken:      testToken,
		PortalBaseURL: "https://portal.example.com",
	}
	return NewServer(zerolog.Nop(), store, starter, cfg), store, starter
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func provisionedTenant(id string) *model.Tenant {
	instanceID := "inst-1"
	remoteID := "alice"
	platformURL := "https://nc1.example.com"
	return &model.Tenant{
		ID:              id,
		Name:            "Alice",
		Email:           "alice@example.com",
		PlanType:        "basico",
		InstanceID:      &instanceID,
		RemoteUserID:    &remoteID,
		PlatformURL:     &platformURL,
		ProvisionStatus: model.TenantActive,
	}
}

func TestCreateTenant_StartsProvisioning(t *testing.T) {
	s, store, starter := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants", map[string]string{
		"name":      "Alice",
		"email":     "Alice@Example.com",
		"plan_type": "basico",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var tenant model.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, "alice@example.com", tenant.Email)
	assert.Equal(t, model.TenantPending, tenant.ProvisionStatus)

	require.Contains(t, store.tenants, tenant.ID)

	require.Len(t, starter.started, 1)
	assert.Equal(t, "ProvisionTenantWorkflow", starter.started[0].Name)
	assert.Equal(t, "provision-tenant-"+tenant.ID, starter.started[0].ID)
}

func TestCreateTenant_DuplicateEmail(t *testing.T) {
	s, store, starter := newTestServer()
	store.tenants["t1"] = &model.Tenant{ID: "t1", Name: "Alice", Email: "alice@example.com"}

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants", map[string]string{
		"name":  "Alice Again",
		"email": "alice@example.com",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, starter.started)
}

func TestCreateTenant_RejectsInvalidBody(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants", map[string]string{"name": "No Email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/v1/tenants", map[string]string{
		"name":  "Bad Email",
		"email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProvisionTenant_AlreadyProvisioned(t *testing.T) {
	s, store, starter := newTestServer()
	store.tenants["t1"] = provisionedTenant("t1")

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants/t1/provision", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, starter.started)
}

func TestDeprovisionTenant(t *testing.T) {
	s, store, starter := newTestServer()
	store.tenants["t1"] = provisionedTenant("t1")

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants/t1/deprovision", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, starter.started, 1)
	assert.Equal(t, "DeprovisionTenantWorkflow", starter.started[0].Name)
}

func TestSyncTenantQuota_NotProvisioned(t *testing.T) {
	s, store, starter := newTestServer()
	store.tenants["t1"] = &model.Tenant{ID: "t1", Email: "alice@example.com", ProvisionStatus: model.TenantPending}

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants/t1/sync-quota", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, starter.started)
}

func TestSyncTenantMetrics(t *testing.T) {
	s, store, starter := newTestServer()
	store.tenants["t1"] = provisionedTenant("t1")

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants/t1/sync-metrics", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, starter.started, 1)
	assert.Equal(t, "SyncTenantMetricsWorkflow", starter.started[0].Name)
	assert.Equal(t, "sync-tenant-metrics-t1", starter.started[0].ID)
}

func TestIssueAndRedeemLoginToken(t *testing.T) {
	s, store, _ := newTestServer()
	store.tenants["t1"] = provisionedTenant("t1")

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants/t1/login-token", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued struct {
		Token    string `json:"token"`
		LoginURL string `json:"login_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)
	assert.Equal(t, "https://portal.example.com/sso/"+issued.Token, issued.LoginURL)

	// Redemption is unauthenticated and redirects to the tenant's platform.
	req := httptest.NewRequest(http.MethodGet, "/sso/"+issued.Token, nil)
	redeem := httptest.NewRecorder()
	s.ServeHTTP(redeem, req)

	require.Equal(t, http.StatusFound, redeem.Code)
	assert.Equal(t, "https://nc1.example.com", redeem.Header().Get("Location"))

	// Tokens are single use.
	req = httptest.NewRequest(http.MethodGet, "/sso/"+issued.Token, nil)
	again := httptest.NewRecorder()
	s.ServeHTTP(again, req)
	assert.Equal(t, http.StatusUnauthorized, again.Code)
}

func TestIssueLoginToken_NotProvisioned(t *testing.T) {
	s, store, _ := newTestServer()
	store.tenants["t1"] = &model.Tenant{ID: "t1", Email: "alice@example.com"}

	rec := doRequest(s, http.MethodPost, "/api/v1/tenants/t1/login-token", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInstanceHealthCheck(t *testing.T) {
	s, store, starter := newTestServer()
	store.instances = []model.Instance{{ID: "inst-1", Name: "nc1", Status: model.InstanceActive}}

	rec := doRequest(s, http.MethodPost, "/api/v1/instances/inst-1/health-check", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, starter.started, 1)
	assert.Equal(t, "InstanceHealthCheckWorkflow", starter.started[0].Name)
	assert.Equal(t, "health-check-inst-1", starter.started[0].ID)
}

func TestGetInstance_NotFound(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/v1/instances/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	s, store, _ := newTestServer()
	store.instances = []model.Instance{
		{ID: "a", Name: "nc1", Status: model.InstanceActive, CurrentUsers: 10, ActiveUsers: 4, MaxUsers: 50, StorageUsed: 100, StorageAllocated: 1000},
	}
	store.statuses = map[string]int{"active": 10, "pending": 2}

	rec := doRequest(s, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var overview struct {
		Instances       int            `json:"instances"`
		ActiveInstances int            `json:"active_instances"`
		TotalUsers      int            `json:"total_users"`
		TenantsByStatus map[string]int `json:"tenants_by_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, 1, overview.Instances)
	assert.Equal(t, 1, overview.ActiveInstances)
	assert.Equal(t, 10, overview.TotalUsers)
	assert.Equal(t, 10, overview.TenantsByStatus["active"])
}
