package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fanwiki/internal/config"
	"fanwiki/internal/models"
	"fanwiki/internal/render"
	"fanwiki/internal/service"
)

type testDeps struct {
	posts    *MockPostService
	uploads  *MockUploadService
	users    *MockUserService
	auth     *MockAuthService
	comments *MockCommentService
	admin    *MockAdminService
	tables   *MockTablesService
}

var (
	uploader = &models.User{ID: 7, DisplayName: "uploader", UserType: models.UserUploader}
	admin    = &models.User{ID: 1, DisplayName: "admin", UserType: models.UserAdmin}
)

func newTestHandlers(t *testing.T) (*Handlers, *testDeps) {
	t.Helper()

	md, err := render.NewMarkdown(16)
	require.NoError(t, err)
	renderer, err := render.New(md, func(key string) string { return "https://cdn.test/" + key })
	require.NoError(t, err)

	deps := &testDeps{
		posts:    new(MockPostService),
		uploads:  new(MockUploadService),
		users:    new(MockUserService),
		auth:     new(MockAuthService),
		comments: new(MockCommentService),
		admin:    new(MockAdminService),
		tables:   new(MockTablesService),
	}
	deps.admin.On("DiscordInvite", mock.Anything).Return(nil, nil).Maybe()

	services := &service.Service{
		User:    deps.users,
		Post:    deps.posts,
		Upload:  deps.uploads,
		Auth:    deps.auth,
		Comment: deps.comments,
		Admin:   deps.admin,
		Tables:  deps.tables,
	}
	cfg := &config.Config{OAuth: config.OAuth{DiscordClientID: "id", DiscordClientSecret: "secret"}}
	return NewHandlers(services, renderer, cfg), deps
}

// serve routes req as user (nil for a guest).
func serve(h *Handlers, user *models.User, req *http.Request) *httptest.ResponseRecorder {
	ctx := WithUser(req.Context(), user)
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestNewHandlers(t *testing.T) {
	h, _ := newTestHandlers(t)

	assert.NotNil(t, h.PostService)
	assert.NotNil(t, h.UploadService)
	assert.NotNil(t, h.AuthService)
	assert.NotNil(t, h.Renderer)
	assert.NotNil(t, h.Validate)
	assert.Equal(t, []string{"discord"}, h.providers)
}

func TestStatusOf(t *testing.T) {
	tests := map[service.Code]int{
		service.CodeBadRequest:     http.StatusBadRequest,
		service.CodeUnauthorized:   http.StatusUnauthorized,
		service.CodeForbidden:      http.StatusForbidden,
		service.CodeNotFound:       http.StatusNotFound,
		service.CodeConflict:       http.StatusConflict,
		service.CodeRequestTimeout: http.StatusRequestTimeout,
		service.CodeInternal:       http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusOf(code), code.String())
	}
}

func TestUnknownPathRendersNotFoundPage(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := serve(h, nil, httptest.NewRequest(http.MethodGet, "/videos", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/videos")
}

func TestInternalErrorsHideTheCause(t *testing.T) {
	h, deps := newTestHandlers(t)
	deps.uploads.On("Delete", mock.Anything, uploader, models.KindArt, "x").
		Return(service.Internal(errors.New("pq: connection refused")))

	rec := serve(h, uploader, httptest.NewRequest(http.MethodDelete, "/art/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h, deps := newTestHandlers(t)
	deps.tables.On("Status", mock.Anything).Return(&service.Status{
		Tables: 9,
		Posts:  map[models.Kind]int64{models.KindArt: 3},
	}, nil)

	h.Ping = func(context.Context) error { return nil }
	rec := serve(h, nil, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","tables":9,"posts":{"art":3}}`, rec.Body.String())

	h.Ping = func(context.Context) error { return errors.New("down") }
	rec = serve(h, nil, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHomePage(t *testing.T) {
	h, deps := newTestHandlers(t)
	deps.tables.On("Status", mock.Anything).Return(&service.Status{
		Posts: map[models.Kind]int64{models.KindArt: 12, models.KindStories: 4},
	}, nil)

	rec := serve(h, nil, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "12 pages")
	assert.Contains(t, body, "Log in with discord")
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := serve(h, nil, httptest.NewRequest(http.MethodPatch, "/art/new", strings.NewReader("{}")))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
