package handlers

import (
	"encoding/json"
	"net/http"

	"fanwiki/internal/models"
)

type SetValueRequest struct {
	Value string `json:"value" validate:"required"`
	SetTo string `json:"set_to"`
}

type SetPinRequest struct {
	UpdatedPin string      `json:"updated_pin" validate:"required"`
	Link       string      `json:"link" validate:"omitempty,url"`
	Date       models.Date `json:"date"`
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		WriteError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := h.Validate.Struct(v); err != nil {
		WriteError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handlers) ValuesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	values, err := h.AdminService.Values(ctx, UserFromContext(ctx))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.page(w, r, http.StatusOK, "values", "Site values", values)
}

func (h *Handlers) SetValue(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req SetValueRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.AdminService.SetValue(r.Context(), user, req.Value, req.SetTo); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ArchivalPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	progress, err := h.AdminService.Progress(ctx, UserFromContext(ctx))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.page(w, r, http.StatusOK, "archival", "Art archival", progress)
}

func (h *Handlers) SetPin(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req SetPinRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pin := models.Pin{Link: req.Link, Date: req.Date}
	if err := h.AdminService.SetPin(r.Context(), user, req.UpdatedPin, pin); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
