package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fanwiki/internal/models"
)

type tablesRepository struct {
	db *sqlx.DB
}

func NewTablesRepository(db *sqlx.DB) TablesRepository {
	return &tablesRepository{db: db}
}

func (r *tablesRepository) CountTablesDB(ctx context.Context) (int, error) {
	var count int

	err := r.db.GetContext(ctx, &count, `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = 'public'
		`)
	if err != nil {
		return 0, fmt.Errorf("count database tables: %w", err)
	}

	return count, nil
}

func (r *tablesRepository) CountPublicPosts(ctx context.Context) (map[models.Kind]int64, error) {
	rows := []struct {
		Kind  models.Kind `db:"kind"`
		Total int64       `db:"total"`
	}{}

	err := r.db.SelectContext(ctx, &rows, `
		SELECT kind, COUNT(*) AS total
		FROM post
		WHERE post_state = 'public'
		GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count public posts: %w", err)
	}

	counts := make(map[models.Kind]int64, len(models.Kinds))
	for _, k := range models.Kinds {
		counts[k] = 0
	}
	for _, row := range rows {
		counts[row.Kind] = row.Total
	}
	return counts, nil
}
