package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fanwiki/internal/models"
)

type AttachmentRepositoryImpl struct {
	db *sqlx.DB
}

func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepositoryImpl {
	return &AttachmentRepositoryImpl{db: db}
}

func (r *AttachmentRepositoryImpl) AttachedFiles(ctx context.Context, postID int32) ([]string, error) {
	keys := []string{}
	err := r.db.SelectContext(ctx, &keys, `SELECT file_key FROM post_attachment WHERE post_id = $1 ORDER BY position`, postID)
	if err != nil {
		return nil, fmt.Errorf("get attached files: %w", err)
	}
	return keys, nil
}

// Put records key at a 1-based position, replacing whatever was there.
func (r *AttachmentRepositoryImpl) Put(ctx context.Context, postID int32, position int, key string) error {
	query := `
		INSERT INTO post_attachment (post_id, position, file_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, position) DO UPDATE SET file_key = EXCLUDED.file_key`

	if _, err := r.db.ExecContext(ctx, query, postID, position, key); err != nil {
		return fmt.Errorf("put attachment %d of post %d: %w", position, postID, err)
	}
	return nil
}

// Rewrite applies positional updates and drops every row past length, in one transaction.
func (r *AttachmentRepositoryImpl) Rewrite(ctx context.Context, postID int32, updates []models.Attachment, length int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attachment rewrite: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsert := `
		INSERT INTO post_attachment (post_id, position, file_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, position) DO UPDATE SET file_key = EXCLUDED.file_key`
	for _, a := range updates {
		if _, err = tx.ExecContext(ctx, upsert, postID, a.Position, a.FileKey); err != nil {
			return fmt.Errorf("rewrite attachment %d: %w", a.Position, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM post_attachment WHERE post_id = $1 AND position > $2`, postID, length); err != nil {
		return fmt.Errorf("trim attachments: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attachment rewrite: %w", err)
	}
	return nil
}
