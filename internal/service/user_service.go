package service

import (
	"context"
	"errors"
	"fmt"

	"fanwiki/internal/config"
	"fanwiki/internal/logger"
	"fanwiki/internal/media"
	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/storage"
)

type UserService interface {
	Get(ctx context.Context, id int32) (*models.User, error)
	PresignProfilePicture(ctx context.Context, requester *models.User, targetID int32, fileAmount int) ([]string, error)
	Modify(ctx context.Context, requester *models.User, targetID int32, info models.ModifiableUserInfo) (*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	storage  storage.Storage
	codec    media.Codec
	bucket   string
}

func NewUserService(userRepo repository.UserRepository, store storage.Storage, codec media.Codec, cfg *config.Config) UserService {
	return &userService{
		userRepo: userRepo,
		storage:  store,
		codec:    codec,
		bucket:   cfg.S3.PublicBucket,
	}
}

func (s *userService) Get(ctx context.Context, id int32) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("user")
		}
		return nil, Internal(err)
	}
	return user, nil
}

// authorize returns the target user when requester may modify it.
func (s *userService) authorize(ctx context.Context, requester *models.User, targetID int32) (*models.User, error) {
	if requester == nil {
		return nil, Unauthorized()
	}
	self := requester.ID == targetID
	if !self && !requester.Permissions().CanModifyUsers {
		return nil, Forbidden()
	}

	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !self && target.UserType.Rank() >= requester.UserType.Rank() {
		return nil, Forbidden()
	}
	return target, nil
}

func (s *userService) PresignProfilePicture(ctx context.Context, requester *models.User, targetID int32, fileAmount int) ([]string, error) {
	if _, err := s.authorize(ctx, requester, targetID); err != nil {
		return nil, err
	}
	if fileAmount > 1 {
		return nil, BadRequest("only one profile picture can be uploaded")
	}

	u, err := s.storage.PresignPut(ctx, "user")
	if err != nil {
		return nil, Internal(fmt.Errorf("presign profile picture: %w", err))
	}
	return []string{u}, nil
}

func (s *userService) Modify(ctx context.Context, requester *models.User, targetID int32, info models.ModifiableUserInfo) (*models.User, error) {
	target, err := s.authorize(ctx, requester, targetID)
	if err != nil {
		return nil, err
	}
	self := requester.ID == target.ID
	updated := *target

	if info.DisplayName != nil {
		name, ok := SanitizeDisplayName(*info.DisplayName)
		if !ok {
			return nil, BadRequest("display name must be 1 to 36 letters, digits or common symbols")
		}
		updated.DisplayName = name
	}

	if info.UserType != nil && *info.UserType != target.UserType {
		newType := *info.UserType
		switch {
		case self:
			return nil, BadRequest("you cannot change your own user type")
		case !newType.Valid():
			return nil, BadRequest("unknown user type")
		case newType == models.UserSuperadmin:
			return nil, Forbidden()
		case newType == models.UserAdmin && !requester.Permissions().CanPromoteToAdmin:
			return nil, Forbidden()
		}
		updated.UserType = newType
	}

	if info.CreatorName != nil {
		if self {
			return nil, BadRequest("you cannot change your own creator name")
		}
		updated.CreatorName = trimOptional(info.CreatorName)
	}

	var newPicture string
	if info.PfpTempKey != nil {
		key, ok := storage.CleanUserKey(*info.PfpTempKey, s.bucket)
		if !ok || !storage.IsTempKey(key) {
			return nil, BadRequest("profile picture must come from a presigned url")
		}
		if newPicture, err = s.promoteProfilePicture(ctx, target.ID, key); err != nil {
			return nil, promotionError(err)
		}
		updated.ProfilePictureKey = &newPicture
	}

	log := logger.Component("user")
	if err := s.userRepo.UpdateUser(ctx, &updated); err != nil {
		if newPicture != "" {
			if err := s.storage.DeleteMany(context.WithoutCancel(ctx), storage.BucketPublic, []string{newPicture}); err != nil {
				log.Warn().Err(err).Str("key", newPicture).Msg("could not delete unused profile picture")
			}
		}
		return nil, Internal(err)
	}

	if newPicture != "" && target.ProfilePictureKey != nil {
		if err := s.storage.DeleteMany(ctx, storage.BucketPublic, []string{*target.ProfilePictureKey}); err != nil {
			log.Warn().Err(err).Str("key", *target.ProfilePictureKey).Msg("could not delete old profile picture")
		}
	}

	log.Info().Int32("user_id", target.ID).Int32("by", requester.ID).Msg("user modified")
	return &updated, nil
}

func (s *userService) promoteProfilePicture(ctx context.Context, userID int32, tempKey string) (string, error) {
	data, _, err := s.storage.Get(ctx, storage.BucketPublic, tempKey)
	if err != nil {
		return "", err
	}
	mime, err := media.DetectMIME(data)
	if err != nil {
		return "", err
	}
	out, outMime, ok := s.codec.CompressLossy(data, mime, models.ProfilePictureSettings)
	if !ok {
		return "", fmt.Errorf("profile picture (%s): %w", mime, errUndecodable)
	}

	suffix, err := storage.RandomString(6)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("user/%d/profile_picture_%s.%s", userID, suffix, media.Extension(outMime))
	if err := s.storage.Put(ctx, storage.BucketPublic, key, out, outMime); err != nil {
		return "", err
	}
	return key, nil
}
