package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/storage"
)

type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) GetBySlug(ctx context.Context, kind models.Kind, slug string) (*models.Post, error) {
	args := m.Called(ctx, kind, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id int32) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) List(ctx context.Context, kind models.Kind, offset, limit int, filter repository.Filter) ([]*models.Post, error) {
	args := m.Called(ctx, kind, offset, limit, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) Count(ctx context.Context, kind models.Kind, filter repository.Filter) (int64, error) {
	args := m.Called(ctx, kind, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) Neighbours(ctx context.Context, kind models.Kind, slug string, filter repository.Filter) (*models.Post, *models.Post, error) {
	args := m.Called(ctx, kind, slug, filter)
	older, _ := args.Get(0).(*models.Post)
	newer, _ := args.Get(1).(*models.Post)
	return older, newer, args.Error(2)
}

func (m *MockPostRepository) SlugExists(ctx context.Context, kind models.Kind, slug string) (bool, error) {
	args := m.Called(ctx, kind, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostRepository) Insert(ctx context.Context, post *models.Post) (int32, error) {
	args := m.Called(ctx, post)
	return args.Get(0).(int32), args.Error(1)
}

func (m *MockPostRepository) UpdateFields(ctx context.Context, id int32, changes []repository.Change) error {
	args := m.Called(ctx, id, changes)
	return args.Error(0)
}

func (m *MockPostRepository) SetThumbnail(ctx context.Context, id int32, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

func (m *MockPostRepository) SetState(ctx context.Context, id int32, state models.PostState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockPostRepository) Delete(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) DeleteStaleProcessing(ctx context.Context, olderThan time.Duration) ([]repository.StaleRef, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StaleRef), args.Error(1)
}

func (m *MockPostRepository) RestoreStaleEdits(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type MockAttachmentRepository struct {
	mock.Mock
}

func (m *MockAttachmentRepository) AttachedFiles(ctx context.Context, postID int32) ([]string, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAttachmentRepository) Put(ctx context.Context, postID int32, position int, key string) error {
	args := m.Called(ctx, postID, position, key)
	return args.Error(0)
}

func (m *MockAttachmentRepository) Rewrite(ctx context.Context, postID int32, updates []models.Attachment, length int) error {
	args := m.Called(ctx, postID, updates, length)
	return args.Error(0)
}

type MockDetailsRepository struct {
	mock.Mock
}

func (m *MockDetailsRepository) GetStory(ctx context.Context, postID int32) (*models.StoryDetails, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoryDetails), args.Error(1)
}

func (m *MockDetailsRepository) SaveStory(ctx context.Context, postID int32, story *models.StoryDetails) error {
	args := m.Called(ctx, postID, story)
	return args.Error(0)
}

func (m *MockDetailsRepository) GetCharacter(ctx context.Context, postID int32) (*models.CharacterDetails, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CharacterDetails), args.Error(1)
}

func (m *MockDetailsRepository) SaveCharacter(ctx context.Context, postID int32, character *models.CharacterDetails) error {
	args := m.Called(ctx, postID, character)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int32) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockUserRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, *models.User, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*models.Session)
	user, _ := args.Get(1).(*models.User)
	return session, user, args.Error(2)
}

func (m *MockUserRepository) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockUserRepository) DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) GetOpenIDUser(ctx context.Context, provider, subject string) (int32, error) {
	args := m.Called(ctx, provider, subject)
	return args.Get(0).(int32), args.Error(1)
}

func (m *MockUserRepository) BindOpenID(ctx context.Context, provider, subject string, userID int32) (int32, error) {
	args := m.Called(ctx, provider, subject, userID)
	if fn, ok := args.Get(0).(func(context.Context, string, string, int32) int32); ok {
		return fn(ctx, provider, subject, userID), args.Error(1)
	}
	return args.Get(0).(int32), args.Error(1)
}

type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Add(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) ListByPost(ctx context.Context, postID int32) ([]*models.Comment, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Comment), args.Error(1)
}

type MockKeyValueRepository struct {
	mock.Mock
}

func (m *MockKeyValueRepository) Get(ctx context.Context, key string) (*string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *MockKeyValueRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) PresignPut(ctx context.Context, folder string) (string, error) {
	args := m.Called(ctx, folder)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Get(ctx context.Context, bucket storage.Bucket, key string) ([]byte, string, error) {
	args := m.Called(ctx, bucket, key)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}

func (m *MockStorage) Put(ctx context.Context, bucket storage.Bucket, key string, data []byte, mime string) error {
	args := m.Called(ctx, bucket, key, data, mime)
	return args.Error(0)
}

func (m *MockStorage) DeleteMany(ctx context.Context, bucket storage.Bucket, keys []string) error {
	args := m.Called(ctx, bucket, keys)
	return args.Error(0)
}

func (m *MockStorage) ListOlderThan(ctx context.Context, bucket storage.Bucket, prefix string, age time.Duration) ([]string, error) {
	args := m.Called(ctx, bucket, prefix, age)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

type MockCodec struct {
	mock.Mock
}

func (m *MockCodec) CompressLossless(data []byte, mime string) ([]byte, string) {
	args := m.Called(data, mime)
	return args.Get(0).([]byte), args.String(1)
}

func (m *MockCodec) CompressLossy(data []byte, mime string, settings models.LossySettings) ([]byte, string, bool) {
	args := m.Called(data, mime, settings)
	out, _ := args.Get(0).([]byte)
	return out, args.String(1), args.Bool(2)
}
