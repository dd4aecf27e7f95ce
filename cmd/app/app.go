package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/github"
	"github.com/markbates/goth/providers/google"

	"fanwiki/internal/config"
	"fanwiki/internal/database"
	handlers "fanwiki/internal/handler"
	"fanwiki/internal/media"
	"fanwiki/internal/middleware"
	"fanwiki/internal/models"
	"fanwiki/internal/render"
	"fanwiki/internal/repository"
	"fanwiki/internal/scheduler"
	"fanwiki/internal/service"
	"fanwiki/internal/storage"
)

const markdownCacheSize = 512

type App struct {
	DB        *database.DB
	Repo      *repository.Repository
	Services  *service.Service
	Scheduler *scheduler.Scheduler
	Handler   http.Handler
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// connection DB
	db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// connection MinIO
	minioClient, err := storage.NewMinIOClient(ctx, cfg)
	if err != nil {
		db.CloseDB()
		return nil, err
	}

	// enabling dependencies
	repo := repository.NewRepository(db.DB)
	services := service.NewService(repo, cfg, minioClient, media.NewBimgCodec())

	md, err := render.NewMarkdown(markdownCacheSize)
	if err != nil {
		db.CloseDB()
		return nil, err
	}
	renderer, err := render.New(md, minioClient.PublicURL)
	if err != nil {
		db.CloseDB()
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	if err := setupOAuth(cfg); err != nil {
		db.CloseDB()
		return nil, err
	}

	h := handlers.NewHandlers(services, renderer, cfg)
	h.Ping = db.HealthCheck

	router := handlers.NewRouter(h)
	router.Use(middleware.Metrics, middleware.RateLimit(20, time.Minute))

	handlerChain := middleware.Chain(
		router,
		middleware.Session(services.Auth),
		middleware.RequestLog,
		middleware.Recoverer,
		middleware.RealIP,
		middleware.RequestID,
	)

	return &App{
		DB:        db,
		Repo:      repo,
		Services:  services,
		Scheduler: scheduler.New(repo, minioClient, scheduler.NewPgDump(cfg), cfg),
		Handler:   handlerChain,
	}, nil
}

func setupOAuth(cfg *config.Config) error {
	secret := cfg.SessionSecret
	if secret == "" {
		var err error
		if secret, err = storage.RandomString(32); err != nil {
			return err
		}
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(int(models.SessionTTL / time.Second))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = !cfg.Debug
	gothic.Store = store

	var providers []goth.Provider
	for name, p := range cfg.OAuth.Providers() {
		callback := cfg.OAuthCallbackURL(name)
		switch name {
		case "discord":
			providers = append(providers, discord.New(p.ClientID, p.ClientSecret, callback, discord.ScopeIdentify))
		case "google":
			providers = append(providers, google.New(p.ClientID, p.ClientSecret, callback, "openid", "profile"))
		case "github":
			providers = append(providers, github.New(p.ClientID, p.ClientSecret, callback, "read:user"))
		}
	}
	goth.UseProviders(providers...)
	return nil
}
