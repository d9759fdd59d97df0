package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/platform"
	"github.com/LibreCodeCoop/libresign-saas/internal/sso"
)

var validate = validator.New()

// createTenantRequest is the body of POST /api/v1/tenants.
type createTenantRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Company  string `json:"company"`
	PlanType string `json:"plan_type"`
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "name and a valid email are required")
		return
	}
	if req.PlanType == "" {
		req.PlanType = "trial"
	}

	existing, err := s.store.GetTenantByEmail(r.Context(), req.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("tenant lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "a tenant with this email already exists")
		return
	}

	tenant := &model.Tenant{
		ID:              platform.NewID(),
		Name:            req.Name,
		Email:           req.Email,
		Company:         req.Company,
		PlanType:        req.PlanType,
		ProvisionStatus: model.TenantPending,
	}
	if err := s.store.InsertTenant(r.Context(), tenant); err != nil {
		s.logger.Error().Err(err).Msg("tenant insert failed")
		writeError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}

	if err := s.startProvision(r, tenant.ID); err != nil {
		// The tenant row exists; provisioning can be retried via the
		// explicit endpoint.
		s.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("failed to start provisioning")
	}

	writeJSON(w, http.StatusCreated, tenant)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.store.GetTenantByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (s *Server) handleProvisionTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.store.GetTenantByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if tenant.Provisioned() {
		writeError(w, http.StatusConflict, "tenant is already provisioned")
		return
	}

	if err := s.startProvision(r, tenant.ID); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("failed to start provisioning")
		writeError(w, http.StatusInternalServerError, "failed to start provisioning")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "provisioning"})
}

func (s *Server) handleDeprovisionTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.store.GetTenantByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	if err := s.startWorkflow(r, "DeprovisionTenantWorkflow", "deprovision-tenant-"+tenant.ID, tenant.ID); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("failed to start deprovisioning")
		writeError(w, http.StatusInternalServerError, "failed to start deprovisioning")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "deprovisioning"})
}

func (s *Server) handleSyncTenantQuota(w http.ResponseWriter, r *http.Request) {
	s.startTenantSync(w, r, "SyncTenantQuotaWorkflow", "sync-tenant-quota-")
}

func (s *Server) handleSyncTenantMetrics(w http.ResponseWriter, r *http.Request) {
	s.startTenantSync(w, r, "SyncTenantMetricsWorkflow", "sync-tenant-metrics-")
}

func (s *Server) startTenantSync(w http.ResponseWriter, r *http.Request, workflowName, idPrefix string) {
	tenant, err := s.store.GetTenantByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if !tenant.Provisioned() {
		writeError(w, http.StatusConflict, "tenant is not provisioned")
		return
	}

	if err := s.startWorkflow(r, workflowName, idPrefix+tenant.ID, tenant.ID); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("failed to start sync")
		writeError(w, http.StatusInternalServerError, "failed to start sync")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "syncing"})
}

func (s *Server) handleIssueLoginToken(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.store.GetTenantByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	token, err := s.sso.Issue(r.Context(), tenant)
	if err != nil {
		if errors.Is(err, sso.ErrNotProvisioned) {
			writeError(w, http.StatusConflict, "tenant is not provisioned")
			return
		}
		s.logger.Error().Err(err).Str("tenant_id", tenant.ID).Msg("failed to issue login token")
		writeError(w, http.StatusInternalServerError, "failed to issue login token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token.Token,
		"login_url":  s.cfg.PortalBaseURL + "/sso/" + token.Token,
		"expires_at": token.ExpiresAt,
	})
}

func (s *Server) handleRedeemLoginToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.sso.Redeem(r.Context(), chi.URLParam(r, "token"), r.RemoteAddr, r.UserAgent())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired login token")
		return
	}

	tenant, err := s.store.GetTenantByID(r.Context(), token.TenantID)
	if err != nil || tenant.PlatformURL == nil {
		writeError(w, http.StatusNotFound, "tenant platform is unavailable")
		return
	}

	http.Redirect(w, r, *tenant.PlatformURL, http.StatusFound)
}

func (s *Server) startProvision(r *http.Request, tenantID string) error {
	return s.startWorkflow(r, "ProvisionTenantWorkflow", "provision-tenant-"+tenantID, tenantID)
}

func (s *Server) startWorkflow(r *http.Request, workflowName, workflowID string, args ...any) error {
	_, err := s.temporal.ExecuteWorkflow(r.Context(), temporalclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: TaskQueue,
	}, workflowName, args...)
	return err
}
