package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fanwiki/internal/models"
)

type CommentRepositoryImpl struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) *CommentRepositoryImpl {
	return &CommentRepositoryImpl{db: db}
}

func (r *CommentRepositoryImpl) Add(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO post_comment (post_id, author_id, contents)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	row := r.db.QueryRowxContext(ctx, query, comment.PostID, comment.AuthorID, comment.Contents)
	if err := row.Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func (r *CommentRepositoryImpl) ListByPost(ctx context.Context, postID int32) ([]*models.Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, u.display_name AS author, c.contents, c.created_at
		FROM post_comment c
		JOIN site_user u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created_at, c.id`

	comments := []*models.Comment{}
	if err := r.db.SelectContext(ctx, &comments, query, postID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
