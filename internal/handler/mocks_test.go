package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/service"
)

type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) List(ctx context.Context, kind models.Kind, page int, filter repository.Filter) (*service.PostPage, error) {
	args := m.Called(ctx, kind, page, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PostPage), args.Error(1)
}

func (m *MockPostService) Characters(ctx context.Context) ([]*models.Post, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostService) Get(ctx context.Context, viewer *models.User, kind models.Kind, slug string, filter repository.Filter) (*service.PostView, error) {
	args := m.Called(ctx, viewer, kind, slug, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PostView), args.Error(1)
}

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) PresignCreate(ctx context.Context, requester *models.User, kind models.Kind, fileAmount int) ([]string, error) {
	args := m.Called(ctx, requester, kind, fileAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUploadService) PresignEdit(ctx context.Context, requester *models.User, kind models.Kind, slug string, fileAmount int) ([]string, error) {
	args := m.Called(ctx, requester, kind, slug, fileAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUploadService) Create(ctx context.Context, requester *models.User, kind models.Kind, input models.PostInput) (*models.Post, error) {
	args := m.Called(ctx, requester, kind, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockUploadService) Edit(ctx context.Context, requester *models.User, kind models.Kind, slug string, input models.PostInput) (*models.Post, error) {
	args := m.Called(ctx, requester, kind, slug, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockUploadService) Delete(ctx context.Context, requester *models.User, kind models.Kind, slug string) error {
	args := m.Called(ctx, requester, kind, slug)
	return args.Error(0)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Get(ctx context.Context, id int32) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) PresignProfilePicture(ctx context.Context, requester *models.User, targetID int32, fileAmount int) ([]string, error) {
	args := m.Called(ctx, requester, targetID, fileAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUserService) Modify(ctx context.Context, requester *models.User, targetID int32, info models.ModifiableUserInfo) (*models.User, error) {
	args := m.Called(ctx, requester, targetID, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SessionFromCookie(ctx context.Context, sessionID string) (*models.User, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) CreateSession(ctx context.Context, user *models.User) (*http.Cookie, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Cookie), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, sessionID string) *http.Cookie {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(*http.Cookie)
}

func (m *MockAuthService) BindOpenID(ctx context.Context, userID int32, provider, subject string) error {
	args := m.Called(ctx, userID, provider, subject)
	return args.Error(0)
}

func (m *MockAuthService) LoginWithOpenID(ctx context.Context, provider, subject, displayName string) (*models.User, error) {
	args := m.Called(ctx, provider, subject, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) IssueImportToken(ctx context.Context, requester *models.User, ttl time.Duration) (string, error) {
	args := m.Called(ctx, requester, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) UserFromImportToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockCommentService struct {
	mock.Mock
}

func (m *MockCommentService) Add(ctx context.Context, requester *models.User, kind models.Kind, slug, text string) (*models.Comment, error) {
	args := m.Called(ctx, requester, kind, slug, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) DiscordInvite(ctx context.Context) (*string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *MockAdminService) Values(ctx context.Context, requester *models.User) (map[string]string, error) {
	args := m.Called(ctx, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockAdminService) SetValue(ctx context.Context, requester *models.User, name, value string) error {
	args := m.Called(ctx, requester, name, value)
	return args.Error(0)
}

func (m *MockAdminService) Progress(ctx context.Context, requester *models.User) (*service.ArchivalProgress, error) {
	args := m.Called(ctx, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ArchivalProgress), args.Error(1)
}

func (m *MockAdminService) SetPin(ctx context.Context, requester *models.User, name string, pin models.Pin) error {
	args := m.Called(ctx, requester, name, pin)
	return args.Error(0)
}

type MockTablesService struct {
	mock.Mock
}

func (m *MockTablesService) Status(ctx context.Context) (*service.Status, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Status), args.Error(1)
}
