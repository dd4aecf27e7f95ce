package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type KeyValueRepositoryImpl struct {
	db *sqlx.DB
}

func NewKeyValueRepository(db *sqlx.DB) *KeyValueRepositoryImpl {
	return &KeyValueRepositoryImpl{db: db}
}

// Get returns nil when the key has never been set.
func (r *KeyValueRepositoryImpl) Get(ctx context.Context, key string) (*string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT item_value FROM key_value WHERE item_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get value %q: %w", key, err)
	}
	return &value, nil
}

func (r *KeyValueRepositoryImpl) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO key_value (item_key, item_value) VALUES ($1, $2)
		ON CONFLICT (item_key) DO UPDATE SET item_value = EXCLUDED.item_value`

	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set value %q: %w", key, err)
	}
	return nil
}
