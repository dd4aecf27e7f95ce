package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fanwiki/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Filter narrows listing, counting and neighbour lookups.
// NSFW is exclusive: only posts whose is_nsfw equals it are returned.
type Filter struct {
	NSFW bool
	Tags []string
}

// Change is one column assignment of a partial post update.
type Change struct {
	Column string
	Value  any
}

// StaleRef identifies a Processing post removed by the reaper.
type StaleRef struct {
	ID   int32       `db:"id"`
	Kind models.Kind `db:"kind"`
}

type PostRepository interface {
	GetBySlug(ctx context.Context, kind models.Kind, slug string) (*models.Post, error)
	GetByID(ctx context.Context, id int32) (*models.Post, error)
	List(ctx context.Context, kind models.Kind, offset, limit int, filter Filter) ([]*models.Post, error)
	Count(ctx context.Context, kind models.Kind, filter Filter) (int64, error)
	Neighbours(ctx context.Context, kind models.Kind, slug string, filter Filter) (older, newer *models.Post, err error)
	SlugExists(ctx context.Context, kind models.Kind, slug string) (bool, error)
	Insert(ctx context.Context, post *models.Post) (int32, error)
	UpdateFields(ctx context.Context, id int32, changes []Change) error
	SetThumbnail(ctx context.Context, id int32, key string) error
	SetState(ctx context.Context, id int32, state models.PostState) error
	Delete(ctx context.Context, id int32) error
	DeleteStaleProcessing(ctx context.Context, olderThan time.Duration) ([]StaleRef, error)
	RestoreStaleEdits(ctx context.Context, olderThan time.Duration) (int64, error)
}

type AttachmentRepository interface {
	AttachedFiles(ctx context.Context, postID int32) ([]string, error)
	Put(ctx context.Context, postID int32, position int, key string) error
	Rewrite(ctx context.Context, postID int32, updates []models.Attachment, length int) error
}

type DetailsRepository interface {
	GetStory(ctx context.Context, postID int32) (*models.StoryDetails, error)
	SaveStory(ctx context.Context, postID int32, story *models.StoryDetails) error
	GetCharacter(ctx context.Context, postID int32) (*models.CharacterDetails, error)
	SaveCharacter(ctx context.Context, postID int32, character *models.CharacterDetails) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int32) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, *models.User, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
	GetOpenIDUser(ctx context.Context, provider, subject string) (int32, error)
	BindOpenID(ctx context.Context, provider, subject string, userID int32) (int32, error)
}

type CommentRepository interface {
	Add(ctx context.Context, comment *models.Comment) error
	ListByPost(ctx context.Context, postID int32) ([]*models.Comment, error)
}

type KeyValueRepository interface {
	Get(ctx context.Context, key string) (*string, error)
	Set(ctx context.Context, key, value string) error
}

type TablesRepository interface {
	CountTablesDB(ctx context.Context) (int, error)
	CountPublicPosts(ctx context.Context) (map[models.Kind]int64, error)
}

type Repository struct {
	Post       PostRepository
	Attachment AttachmentRepository
	Details    DetailsRepository
	User       UserRepository
	Comment    CommentRepository
	KeyValue   KeyValueRepository
	Tables     TablesRepository
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		Post:       NewPostRepository(db),
		Attachment: NewAttachmentRepository(db),
		Details:    NewDetailsRepository(db),
		User:       NewUserRepository(db),
		Comment:    NewCommentRepository(db),
		KeyValue:   NewKeyValueRepository(db),
		Tables:     NewTablesRepository(db),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
