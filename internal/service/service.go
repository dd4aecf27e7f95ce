package service

import (
	"fanwiki/internal/config"
	"fanwiki/internal/media"
	"fanwiki/internal/repository"
	"fanwiki/internal/storage"
)

type Service struct {
	User    UserService
	Post    PostService
	Upload  UploadService
	Auth    AuthService
	Comment CommentService
	Admin   AdminService
	Tables  TablesService
}

func NewService(rep *repository.Repository, cfg *config.Config, storage storage.Storage, codec media.Codec) *Service {
	return &Service{
		User:    NewUserService(rep.User, storage, codec, cfg),
		Post:    NewPostService(rep),
		Upload:  NewUploadService(rep, storage, codec, cfg),
		Auth:    NewAuthService(rep.User, cfg),
		Comment: NewCommentService(rep.Post, rep.Comment),
		Admin:   NewAdminService(rep.KeyValue),
		Tables:  NewTablesService(rep.Tables),
	}
}
