package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestUserService() (*userService, *MockUserRepository, *MockStorage, *MockCodec) {
	repo := new(MockUserRepository)
	store := new(MockStorage)
	codec := new(MockCodec)
	return &userService{userRepo: repo, storage: store, codec: codec, bucket: "fanwiki"}, repo, store, codec
}

func TestModifyUserRules(t *testing.T) {
	member := &models.User{ID: 1, DisplayName: "member", UserType: models.UserMember}
	uploader := &models.User{ID: 2, DisplayName: "uploader", UserType: models.UserUploader}
	admin := &models.User{ID: 3, DisplayName: "admin", UserType: models.UserAdmin}
	otherAdmin := &models.User{ID: 4, DisplayName: "admin two", UserType: models.UserAdmin}
	superadmin := &models.User{ID: 5, DisplayName: "root", UserType: models.UserSuperadmin}

	tests := []struct {
		name      string
		requester *models.User
		target    *models.User
		info      models.ModifiableUserInfo
		wantCode  Code
		check     func(t *testing.T, u *models.User)
	}{
		{
			name:      "rename self",
			requester: member,
			target:    member,
			info:      models.ModifiableUserInfo{DisplayName: ptr("  new   name ")},
			check: func(t *testing.T, u *models.User) {
				assert.Equal(t, "new name", u.DisplayName)
			},
		},
		{
			name:      "invalid display name",
			requester: member,
			target:    member,
			info:      models.ModifiableUserInfo{DisplayName: ptr("<script>")},
			wantCode:  CodeBadRequest,
		},
		{
			name:      "member edits someone else",
			requester: member,
			target:    uploader,
			info:      models.ModifiableUserInfo{DisplayName: ptr("x")},
			wantCode:  CodeForbidden,
		},
		{
			name:      "own user type",
			requester: admin,
			target:    admin,
			info:      models.ModifiableUserInfo{UserType: ptr(models.UserSuperadmin)},
			wantCode:  CodeBadRequest,
		},
		{
			name:      "own creator name",
			requester: uploader,
			target:    uploader,
			info:      models.ModifiableUserInfo{CreatorName: ptr("me")},
			wantCode:  CodeBadRequest,
		},
		{
			name:      "admin promotes member to uploader",
			requester: admin,
			target:    member,
			info:      models.ModifiableUserInfo{UserType: ptr(models.UserUploader), CreatorName: ptr(" artist ")},
			check: func(t *testing.T, u *models.User) {
				assert.Equal(t, models.UserUploader, u.UserType)
				assert.Equal(t, "artist", *u.CreatorName)
			},
		},
		{
			name:      "admin promotes to admin",
			requester: admin,
			target:    uploader,
			info:      models.ModifiableUserInfo{UserType: ptr(models.UserAdmin)},
			check: func(t *testing.T, u *models.User) {
				assert.Equal(t, models.UserAdmin, u.UserType)
			},
		},
		{
			name:      "nobody promotes to superadmin",
			requester: superadmin,
			target:    member,
			info:      models.ModifiableUserInfo{UserType: ptr(models.UserSuperadmin)},
			wantCode:  CodeForbidden,
		},
		{
			name:      "admin edits an equal",
			requester: admin,
			target:    otherAdmin,
			info:      models.ModifiableUserInfo{DisplayName: ptr("demoted")},
			wantCode:  CodeForbidden,
		},
		{
			name:      "unknown user type",
			requester: superadmin,
			target:    member,
			info:      models.ModifiableUserInfo{UserType: ptr(models.UserType("wizard"))},
			wantCode:  CodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _ := newTestUserService()
			target := *tt.target
			repo.On("GetUserByID", mock.Anything, target.ID).Return(&target, nil).Maybe()
			repo.On("UpdateUser", mock.Anything, mock.Anything).Return(nil).Maybe()

			got, err := svc.Modify(context.Background(), tt.requester, target.ID, tt.info)

			if tt.wantCode != CodeInternal {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, CodeOf(err))
				repo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
			repo.AssertCalled(t, "UpdateUser", mock.Anything, got)
		})
	}
}

func TestModifyUserNotFound(t *testing.T) {
	svc, repo, _, _ := newTestUserService()
	admin := &models.User{ID: 3, UserType: models.UserAdmin}
	repo.On("GetUserByID", mock.Anything, int32(99)).Return(nil, repository.ErrNotFound)

	_, err := svc.Modify(context.Background(), admin, 99, models.ModifiableUserInfo{})
	assert.Equal(t, CodeNotFound, CodeOf(err))

	_, err = svc.Modify(context.Background(), nil, 99, models.ModifiableUserInfo{})
	assert.Equal(t, CodeUnauthorized, CodeOf(err))
}

func TestModifyProfilePicture(t *testing.T) {
	svc, repo, store, codec := newTestUserService()
	user := &models.User{ID: 8, DisplayName: "pic", UserType: models.UserMember, ProfilePictureKey: ptr("user/8/profile_picture_old.webp")}
	repo.On("GetUserByID", mock.Anything, int32(8)).Return(user, nil)

	store.On("Get", mock.Anything, storage.BucketPublic, "temp/user/abc").Return(pngData, "image/png", nil)
	codec.On("CompressLossy", pngData, "image/png", models.ProfilePictureSettings).Return([]byte("pfp"), "image/webp", true)

	var newKey string
	store.On("Put", mock.Anything, storage.BucketPublic, mock.MatchedBy(func(key string) bool {
		newKey = key
		return len(key) == len("user/8/profile_picture_XXXXXX.webp")
	}), []byte("pfp"), "image/webp").Return(nil)
	repo.On("UpdateUser", mock.Anything, mock.Anything).Return(nil)
	store.On("DeleteMany", mock.Anything, storage.BucketPublic, []string{"user/8/profile_picture_old.webp"}).Return(errors.New("gone"))

	got, err := svc.Modify(context.Background(), user, 8, models.ModifiableUserInfo{
		PfpTempKey: ptr("https://s3.example/fanwiki/temp/user/abc"),
	})

	require.NoError(t, err)
	assert.Equal(t, newKey, *got.ProfilePictureKey)
	assert.Contains(t, newKey, "user/8/profile_picture_")
	store.AssertExpectations(t)
	codec.AssertExpectations(t)
}

func TestModifyProfilePictureMustBeTemp(t *testing.T) {
	svc, repo, _, _ := newTestUserService()
	user := &models.User{ID: 8, UserType: models.UserMember}
	repo.On("GetUserByID", mock.Anything, int32(8)).Return(user, nil)

	_, err := svc.Modify(context.Background(), user, 8, models.ModifiableUserInfo{PfpTempKey: ptr("art/1/thumbnail.webp")})

	assert.Equal(t, CodeBadRequest, CodeOf(err))
}
