package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const kindPath = "/{kind:art|stories|characters}"

// NewRouter registers every route. Router level middleware (metrics, rate
// limits) is added by the caller with Use, after routes are matched.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/", h.Home).Methods(http.MethodGet)
	r.HandleFunc("/misc/tierlist", h.Tierlist).Methods(http.MethodGet)

	user := r.PathPrefix("/user").Subrouter()
	user.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	user.HandleFunc("/import-token", h.IssueImportToken).Methods(http.MethodPost)
	user.HandleFunc("/oauth2/{provider}", h.BeginOAuth).Methods(http.MethodGet)
	user.HandleFunc("/oauth2/{provider}/callback", h.CompleteOAuth).Methods(http.MethodGet)
	user.HandleFunc("/{id:[0-9]+}", h.GetUser).Methods(http.MethodGet)
	user.HandleFunc("/{id:[0-9]+}", h.ModifyUser).Methods(http.MethodPut)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/values", h.ValuesPage).Methods(http.MethodGet)
	admin.HandleFunc("/values", h.SetValue).Methods(http.MethodPatch)
	admin.HandleFunc("/art-archival-pins", h.ArchivalPage).Methods(http.MethodGet)
	admin.HandleFunc("/art-archival-pins", h.SetPin).Methods(http.MethodPatch)

	r.HandleFunc(kindPath, h.Index).Methods(http.MethodGet)
	r.HandleFunc(kindPath+"/new", h.NewPostPage).Methods(http.MethodGet)
	r.HandleFunc(kindPath+"/new", h.CreatePost).Methods(http.MethodPost)
	r.HandleFunc(kindPath+"/{slug}", h.PostPage).Methods(http.MethodGet)
	r.HandleFunc(kindPath+"/{slug}", h.EditPost).Methods(http.MethodPut)
	r.HandleFunc(kindPath+"/{slug}", h.DeletePost).Methods(http.MethodDelete)
	r.HandleFunc(kindPath+"/{slug}/edit", h.EditPostPage).Methods(http.MethodGet)
	r.HandleFunc(kindPath+"/{slug}/comments", h.AddComment).Methods(http.MethodPost)

	return r
}
