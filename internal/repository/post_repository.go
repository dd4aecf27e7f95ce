package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fanwiki/internal/models"
)

const postColumns = `id, kind, slug, title, creators, creation_date, tags, is_nsfw, description,
	thumbnail_key, post_state, owner_id, last_modified, published_at`

// updatableColumns guards UpdateFields against arbitrary column names.
var updatableColumns = map[string]bool{
	"slug":          true,
	"title":         true,
	"creators":      true,
	"creation_date": true,
	"tags":          true,
	"is_nsfw":       true,
	"description":   true,
}

type PostRepositoryImpl struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) *PostRepositoryImpl {
	return &PostRepositoryImpl{db: db}
}

func (r *PostRepositoryImpl) GetBySlug(ctx context.Context, kind models.Kind, slug string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM post WHERE kind = $1 AND slug = $2`

	var post models.Post
	err := r.db.GetContext(ctx, &post, query, kind, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", kind, slug, ErrNotFound)
		}
		return nil, fmt.Errorf("get post by slug: %w", err)
	}
	return &post, nil
}

func (r *PostRepositoryImpl) GetByID(ctx context.Context, id int32) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM post WHERE id = $1`

	var post models.Post
	err := r.db.GetContext(ctx, &post, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get post by id: %w", err)
	}
	return &post, nil
}

// publicFilter renders the WHERE clause shared by List, Count and Neighbours.
func publicFilter(kind models.Kind, filter Filter) (string, []any) {
	clause := `kind = $1 AND post_state = 'public' AND is_nsfw = $2`
	args := []any{kind, filter.NSFW}
	if len(filter.Tags) > 0 {
		args = append(args, pq.Array(filter.Tags))
		clause += fmt.Sprintf(` AND tags @> $%d`, len(args))
	}
	return clause, args
}

func (r *PostRepositoryImpl) List(ctx context.Context, kind models.Kind, offset, limit int, filter Filter) ([]*models.Post, error) {
	where, args := publicFilter(kind, filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM post WHERE %s
		ORDER BY creation_date DESC, slug ASC
		LIMIT $%d OFFSET $%d`, postColumns, where, len(args)-1, len(args))

	posts := []*models.Post{}
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepositoryImpl) Count(ctx context.Context, kind models.Kind, filter Filter) (int64, error) {
	where, args := publicFilter(kind, filter)

	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM post WHERE `+where, args...); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

type neighbourRow struct {
	OlderSlug      sql.NullString `db:"older_slug"`
	OlderTitle     sql.NullString `db:"older_title"`
	OlderThumbnail sql.NullString `db:"older_thumbnail"`
	NewerSlug      sql.NullString `db:"newer_slug"`
	NewerTitle     sql.NullString `db:"newer_title"`
	NewerThumbnail sql.NullString `db:"newer_thumbnail"`
}

// Neighbours returns the entries adjacent to slug under the listing order.
// A slug outside the filtered sequence yields (nil, nil).
func (r *PostRepositoryImpl) Neighbours(ctx context.Context, kind models.Kind, slug string, filter Filter) (*models.Post, *models.Post, error) {
	where, args := publicFilter(kind, filter)
	args = append(args, slug)
	query := fmt.Sprintf(`SELECT older_slug, older_title, older_thumbnail, newer_slug, newer_title, newer_thumbnail
		FROM (
			SELECT slug,
				LEAD(slug) OVER w AS older_slug,
				LEAD(title) OVER w AS older_title,
				LEAD(thumbnail_key) OVER w AS older_thumbnail,
				LAG(slug) OVER w AS newer_slug,
				LAG(title) OVER w AS newer_title,
				LAG(thumbnail_key) OVER w AS newer_thumbnail
			FROM post
			WHERE %s
			WINDOW w AS (ORDER BY creation_date DESC, slug ASC)
		) ordered
		WHERE slug = $%d`, where, len(args))

	var row neighbourRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("neighbours of %s/%s: %w", kind, slug, err)
	}

	var older, newer *models.Post
	if row.OlderSlug.Valid {
		older = &models.Post{Kind: kind, Slug: row.OlderSlug.String, Title: row.OlderTitle.String, ThumbnailKey: row.OlderThumbnail.String}
	}
	if row.NewerSlug.Valid {
		newer = &models.Post{Kind: kind, Slug: row.NewerSlug.String, Title: row.NewerTitle.String, ThumbnailKey: row.NewerThumbnail.String}
	}
	return older, newer, nil
}

func (r *PostRepositoryImpl) SlugExists(ctx context.Context, kind models.Kind, slug string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM post WHERE kind = $1 AND slug = $2)`, kind, slug)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// Insert stores a Processing row with a placeholder thumbnail and returns its id.
func (r *PostRepositoryImpl) Insert(ctx context.Context, post *models.Post) (int32, error) {
	query := `
		INSERT INTO post
		(kind, slug, title, creators, creation_date, tags, is_nsfw, description, thumbnail_key, post_state, owner_id)
		VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, 'processing', $10)
		RETURNING id`

	var id int32
	err := r.db.GetContext(ctx, &id, query,
		post.Kind,
		post.Slug,
		post.Title,
		pq.StringArray(post.Creators),
		post.CreationDate,
		pq.StringArray(post.Tags),
		post.IsNSFW,
		post.Description,
		models.PlaceholderThumbnail,
		post.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("slug %q: %w", post.Slug, ErrConflict)
		}
		return 0, fmt.Errorf("insert post: %w", err)
	}

	post.ID = id
	post.State = models.StateProcessing
	post.ThumbnailKey = models.PlaceholderThumbnail
	return id, nil
}

// UpdateFields writes only the given columns and marks the post Processing.
func (r *PostRepositoryImpl) UpdateFields(ctx context.Context, id int32, changes []Change) error {
	sets := make([]string, 0, len(changes)+2)
	args := make([]any, 0, len(changes)+1)
	for _, c := range changes {
		if !updatableColumns[c.Column] {
			return fmt.Errorf("column %q cannot be updated", c.Column)
		}
		args = append(args, c.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sets = append(sets, "post_state = 'processing'", "last_modified = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE post SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update post %d: %w", id, ErrConflict)
		}
		return fmt.Errorf("update post: %w", err)
	}
	return expectRow(result, id)
}

func (r *PostRepositoryImpl) SetThumbnail(ctx context.Context, id int32, key string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE post SET thumbnail_key = $1, last_modified = NOW() WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	return expectRow(result, id)
}

func (r *PostRepositoryImpl) SetState(ctx context.Context, id int32, state models.PostState) error {
	query := `UPDATE post SET post_state = $1, last_modified = NOW() WHERE id = $2`
	if state == models.StatePublic {
		query = `UPDATE post SET post_state = $1, last_modified = NOW(), published_at = COALESCE(published_at, NOW()) WHERE id = $2`
	}

	result, err := r.db.ExecContext(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("set post state: %w", err)
	}
	return expectRow(result, id)
}

func (r *PostRepositoryImpl) Delete(ctx context.Context, id int32) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM post WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return expectRow(result, id)
}

// DeleteStaleProcessing removes posts that never became Public.
func (r *PostRepositoryImpl) DeleteStaleProcessing(ctx context.Context, olderThan time.Duration) ([]StaleRef, error) {
	query := `
		DELETE FROM post
		WHERE post_state = 'processing'
			AND published_at IS NULL
			AND last_modified < NOW() - make_interval(secs => $1)
		RETURNING id, kind`

	refs := []StaleRef{}
	if err := r.db.SelectContext(ctx, &refs, query, olderThan.Seconds()); err != nil {
		return nil, fmt.Errorf("delete stale processing posts: %w", err)
	}
	return refs, nil
}

// RestoreStaleEdits makes posts stuck in an interrupted edit visible again.
func (r *PostRepositoryImpl) RestoreStaleEdits(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE post SET post_state = 'public'
		WHERE post_state = 'processing'
			AND published_at IS NOT NULL
			AND last_modified < NOW() - make_interval(secs => $1)`

	result, err := r.db.ExecContext(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("restore stale edits: %w", err)
	}
	return result.RowsAffected()
}

func expectRow(result sql.Result, id int32) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return nil
}
