package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/LibreCodeCoop/libresign-saas/internal/config"
	"github.com/LibreCodeCoop/libresign-saas/internal/fleet"
	"github.com/LibreCodeCoop/libresign-saas/internal/model"
	"github.com/LibreCodeCoop/libresign-saas/internal/sso"
)

// TaskQueue is the Temporal task queue shared by the API and the worker.
const TaskQueue = "saas-tasks"

// Store is the persistence surface the API needs. *activity.Store satisfies
// it.
type Store interface {
	GetTenantByID(ctx context.Context, id string) (*model.Tenant, error)
	GetTenantByEmail(ctx context.Context, email string) (*model.Tenant, error)
	InsertTenant(ctx context.Context, t *model.Tenant) error
	CountTenantsByStatus(ctx context.Context) (map[string]int, error)

	GetInstanceByID(ctx context.Context, id string) (*model.Instance, error)
	ListInstances(ctx context.Context) ([]model.Instance, error)
	UpdateInstanceMetrics(ctx context.Context, inst *model.Instance, syncUsers bool) error

	sso.TokenStore
}

// Starter starts Temporal workflows. temporalclient.Client satisfies it.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options temporalclient.StartWorkflowOptions, workflow any, args ...any) (temporalclient.WorkflowRun, error)
}

type Server struct {
	router     chi.Router
	logger     zerolog.Logger
	store      Store
	temporal   Starter
	sso        *sso.Service
	aggregator *fleet.Aggregator
	cfg        *config.Config
}

func NewServer(logger zerolog.Logger, store Store, temporal Starter, cfg *config.Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		logger:     logger,
		store:      store,
		temporal:   temporal,
		sso:        sso.NewService(store, logger),
		aggregator: fleet.NewAggregator(store, logger),
		cfg:        cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(metricsMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// SSO redemption is hit by tenant browsers; the token itself is the
	// credential.
	s.router.Get("/sso/{token}", s.handleRedeemLoginToken)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.APIToken))

		r.Post("/tenants", s.handleCreateTenant)
		r.Get("/tenants/{id}", s.handleGetTenant)
		r.Post("/tenants/{id}/provision", s.handleProvisionTenant)
		r.Post("/tenants/{id}/deprovision", s.handleDeprovisionTenant)
		r.Post("/tenants/{id}/sync-quota", s.handleSyncTenantQuota)
		r.Post("/tenants/{id}/sync-metrics", s.handleSyncTenantMetrics)
		r.Post("/tenants/{id}/login-token", s.handleIssueLoginToken)

		r.Get("/instances", s.handleListInstances)
		r.Get("/instances/{id}", s.handleGetInstance)
		r.Post("/instances/{id}/health-check", s.handleInstanceHealthCheck)

		r.Get("/dashboard", s.handleDashboard)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountTenantsByStatus(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
