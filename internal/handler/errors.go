package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"fanwiki/internal/logger"
	"fanwiki/internal/service"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ErrorPage struct {
	Status  int
	Message string
}

func WriteError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func writeSuccess(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func StatusOf(code service.Code) int {
	switch code {
	case service.CodeBadRequest:
		return http.StatusBadRequest
	case service.CodeUnauthorized:
		return http.StatusUnauthorized
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeConflict:
		return http.StatusConflict
	case service.CodeRequestTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// wantsHTML reports whether the error should be shown as a page rather than JSON.
func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return !strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeServiceError maps a service failure to a response. Internal errors are
// logged with their cause and shown with a generic message.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := service.CodeOf(err)
	status := StatusOf(code)
	if status == http.StatusInternalServerError {
		clog := logger.Component("http")
		clog.Error().Err(err).
			Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}

	message := service.Message(err)
	if wantsHTML(r) && h.Renderer != nil {
		h.page(w, r, status, "error", code.String(), ErrorPage{Status: status, Message: message})
		return
	}
	WriteError(w, message, status)
}

// NotFound is the router fallback.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeServiceError(w, r, service.NotFound("page"))
}
