package handlers

import (
	"net/http"

	"fanwiki/internal/logger"
	"fanwiki/internal/models"
)

type HealthResponse struct {
	Status string                `json:"status"`
	Tables int                   `json:"tables"`
	Posts  map[models.Kind]int64 `json:"posts"`
}

type HomePage struct {
	Counts map[models.Kind]int64
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Ping != nil {
		if err := h.Ping(ctx); err != nil {
			clog := logger.Component("health")
			clog.Error().Err(err).Msg("database ping failed")
			WriteError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	status, err := h.TablesService.Status(ctx)
	if err != nil {
		clog := logger.Component("health")
		clog.Error().Err(err).Msg("status query failed")
		WriteError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeSuccess(w, HealthResponse{Status: "ok", Tables: status.Tables, Posts: status.Posts}, http.StatusOK)
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	status, err := h.TablesService.Status(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.page(w, r, http.StatusOK, "home", "", HomePage{Counts: status.Posts})
}
