package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"

	"fanwiki/internal/config"
	"fanwiki/internal/logger"
	"fanwiki/internal/render"
	"fanwiki/internal/service"
)

type Handlers struct {
	UserService    service.UserService
	AuthService    service.AuthService
	PostService    service.PostService
	UploadService  service.UploadService
	CommentService service.CommentService
	AdminService   service.AdminService
	TablesService  service.TablesService
	Renderer       *render.Renderer
	Cfg            *config.Config
	Validate       *validator.Validate
	// Ping checks the database for /health. Nil skips the check.
	Ping func(ctx context.Context) error

	providers []string
}

func NewHandlers(services *service.Service, renderer *render.Renderer, cfg *config.Config) *Handlers {
	var providers []string
	for name := range cfg.OAuth.Providers() {
		providers = append(providers, name)
	}
	slices.Sort(providers)

	return &Handlers{
		UserService:    services.User,
		AuthService:    services.Auth,
		PostService:    services.Post,
		UploadService:  services.Upload,
		CommentService: services.Comment,
		AdminService:   services.Admin,
		TablesService:  services.Tables,
		Renderer:       renderer,
		Cfg:            cfg,
		Validate:       validator.New(),
		providers:      providers,
	}
}

// page renders an HTML page wrapped in the site layout.
func (h *Handlers) page(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	log := logger.Component("render")

	invite, err := h.AdminService.DiscordInvite(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("could not load discord invite")
	}

	err = h.Renderer.Render(w, status, name, render.Page{
		Title:         title,
		User:          UserFromContext(r.Context()),
		Path:          r.URL.Path,
		DiscordInvite: invite,
		Providers:     h.providers,
		Data:          data,
	})
	if err != nil {
		log.Error().Err(err).Str("page", name).Msg("render failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
