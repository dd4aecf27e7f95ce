package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanwiki/internal/models"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDB.Close() })

	return sqlxDB, mock
}

var postRowColumns = []string{
	"id", "kind", "slug", "title", "creators", "creation_date", "tags", "is_nsfw", "description",
	"thumbnail_key", "post_state", "owner_id", "last_modified", "published_at",
}

func TestPostRepositoryImpl_GetBySlug(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		slug        string
		setupMock   func(mock sqlmock.Sqlmock)
		expectError error
		check       func(t *testing.T, post *models.Post)
	}{
		{
			name: "post found",
			slug: "hello-world",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(postRowColumns).AddRow(
					int64(3), "art", "hello-world", "Hi", "{A,B}", created, "{fun}", false, nil,
					"art/3/thumbnail.webp", "public", int64(7), modified, modified,
				)
				mock.ExpectQuery(`SELECT .* FROM post WHERE kind = \$1 AND slug = \$2`).
					WithArgs("art", "hello-world").
					WillReturnRows(rows)
			},
			check: func(t *testing.T, post *models.Post) {
				assert.Equal(t, int32(3), post.ID)
				assert.Equal(t, models.KindArt, post.Kind)
				assert.Equal(t, pq.StringArray{"A", "B"}, post.Creators)
				assert.Equal(t, "2024-05-01", post.CreationDate.String())
				assert.Equal(t, pq.StringArray{"fun"}, post.Tags)
				assert.Nil(t, post.Description)
				assert.Equal(t, models.StatePublic, post.State)
				require.NotNil(t, post.OwnerID)
				assert.Equal(t, int32(7), *post.OwnerID)
				assert.Equal(t, "/art/hello-world", post.URL())
			},
		},
		{
			name: "post missing",
			slug: "nope",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM post`).
					WithArgs("art", "nope").
					WillReturnRows(sqlmock.NewRows(postRowColumns))
			},
			expectError: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewPostRepository(db)
			tt.setupMock(mock)

			post, err := repo.GetBySlug(context.Background(), models.KindArt, tt.slug)

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, post)
			} else {
				require.NoError(t, err)
				tt.check(t, post)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostRepositoryImpl_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(postRowColumns).AddRow(
		int64(2), "art", "p2", "P2", "{A}", created, "{a,b}", true, nil,
		"art/2/thumbnail.webp", "public", nil, created, created,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`post_state = 'public' AND is_nsfw = $2 AND tags @> $3`) + `.*ORDER BY creation_date DESC, slug ASC.*LIMIT \$4 OFFSET \$5`).
		WithArgs("art", true, sqlmock.AnyArg(), 24, 48).
		WillReturnRows(rows)

	posts, err := repo.List(context.Background(), models.KindArt, 48, 24, Filter{NSFW: true, Tags: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p2", posts[0].Slug)
	assert.True(t, posts[0].IsNSFW)
	assert.Nil(t, posts[0].OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryImpl_Count(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM post WHERE kind = \$1 AND post_state = 'public' AND is_nsfw = \$2$`).
		WithArgs("stories", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(25)))

	count, err := repo.Count(context.Background(), models.KindStories, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryImpl_Neighbours(t *testing.T) {
	columns := []string{"older_slug", "older_title", "older_thumbnail", "newer_slug", "newer_title", "newer_thumbnail"}

	t.Run("oldest entry under a tag filter has no older neighbour", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectQuery(`LEAD\(slug\) OVER w.*WINDOW w AS \(ORDER BY creation_date DESC, slug ASC\)`).
			WithArgs("art", false, sqlmock.AnyArg(), "p2").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("p1", "P1", "art/1/thumbnail.webp", nil, nil, nil))

		older, newer, err := repo.Neighbours(context.Background(), models.KindArt, "p2", Filter{Tags: []string{"a"}})
		require.NoError(t, err)
		require.NotNil(t, older)
		assert.Equal(t, "p1", older.Slug)
		assert.Equal(t, "P1", older.Title)
		assert.Nil(t, newer)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("slug outside the filter yields no neighbours", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectQuery(`WINDOW w`).
			WithArgs("art", true, "p3").
			WillReturnRows(sqlmock.NewRows(columns))

		older, newer, err := repo.Neighbours(context.Background(), models.KindArt, "p3", Filter{NSFW: true})
		require.NoError(t, err)
		assert.Nil(t, older)
		assert.Nil(t, newer)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostRepositoryImpl_Insert(t *testing.T) {
	owner := int32(4)
	post := &models.Post{
		Kind:         models.KindArt,
		Slug:         "hello-world",
		Title:        "Hi",
		Creators:     pq.StringArray{"A"},
		CreationDate: models.NewDate(2024, time.May, 1),
		Tags:         pq.StringArray{"fun"},
		OwnerID:      &owner,
	}

	t.Run("returns generated id", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectQuery(`INSERT INTO post`).
			WithArgs("art", "hello-world", "Hi", sqlmock.AnyArg(), "2024-05-01", sqlmock.AnyArg(), false, nil, models.PlaceholderThumbnail, int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

		id, err := repo.Insert(context.Background(), post)
		require.NoError(t, err)
		assert.Equal(t, int32(11), id)
		assert.Equal(t, models.StateProcessing, post.State)
		assert.Equal(t, "art/11/", post.Folder())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate slug is a conflict", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectQuery(`INSERT INTO post`).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		_, err := repo.Insert(context.Background(), post)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestPostRepositoryImpl_UpdateFields(t *testing.T) {
	t.Run("only changed columns are written", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE post SET title = $1, is_nsfw = $2, post_state = 'processing', last_modified = NOW() WHERE id = $3`)).
			WithArgs("New", true, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateFields(context.Background(), 5, []Change{{"title", "New"}, {"is_nsfw", true}})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown column is refused", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		err := repo.UpdateFields(context.Background(), 5, []Change{{"owner_id", 1}})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing post", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectExec(`UPDATE post SET`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateFields(context.Background(), 5, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostRepositoryImpl_SetState(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`published_at = COALESCE(published_at, NOW())`)).
		WithArgs("public", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE post SET post_state = \$1, last_modified = NOW\(\) WHERE id = \$2`).
		WithArgs("processing", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetState(context.Background(), 9, models.StatePublic))
	require.NoError(t, repo.SetState(context.Background(), 9, models.StateProcessing))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryImpl_Delete(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectExec(`DELETE FROM post WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM post WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM post WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnError(errors.New("connection reset"))

	assert.NoError(t, repo.Delete(context.Background(), 1))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrNotFound)
	assert.Error(t, repo.Delete(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryImpl_StaleProcessing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(`DELETE FROM post.*published_at IS NULL.*RETURNING id, kind`).
		WithArgs(float64(600)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind"}).AddRow(int64(4), "art").AddRow(int64(8), "stories"))
	mock.ExpectExec(`UPDATE post SET post_state = 'public'.*published_at IS NOT NULL`).
		WithArgs(float64(600)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	refs, err := repo.DeleteStaleProcessing(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []StaleRef{{ID: 4, Kind: models.KindArt}, {ID: 8, Kind: models.KindStories}}, refs)

	restored, err := repo.RestoreStaleEdits(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), restored)
	assert.NoError(t, mock.ExpectationsWereMet())
}
