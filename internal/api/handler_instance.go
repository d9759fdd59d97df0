package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.store.ListInstances(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("instance list failed")
		writeError(w, http.StatusInternalServerError, "failed to list instances")
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := s.store.GetInstanceByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleInstanceHealthCheck(w http.ResponseWriter, r *http.Request) {
	inst, err := s.store.GetInstanceByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}

	if err := s.startWorkflow(r, "InstanceHealthCheckWorkflow", "health-check-"+inst.ID, inst.ID); err != nil {
		s.logger.Error().Err(err).Str("instance_id", inst.ID).Msg("failed to start health check")
		writeError(w, http.StatusInternalServerError, "failed to start health check")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "checking"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	overview, err := s.aggregator.Rollup(r.Context(), s.store)
	if err != nil {
		s.logger.Error().Err(err).Msg("dashboard rollup failed")
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
