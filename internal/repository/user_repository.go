package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"fanwiki/internal/models"
)

const userColumns = `id, display_name, user_type, profile_picture_key, creator_name, creation_date`

type UserRepositoryImpl struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// CreateUser inserts user with its preassigned id. A taken id yields ErrConflict.
func (r *UserRepositoryImpl) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO site_user (id, display_name, user_type, profile_picture_key, creator_name)
		VALUES (:id, :display_name, :user_type, :profile_picture_key, :creator_name)`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user id %d: %w", user.ID, ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepositoryImpl) GetUserByID(ctx context.Context, id int32) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM site_user WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepositoryImpl) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE site_user SET
			display_name = :display_name,
			user_type = :user_type,
			profile_picture_key = :profile_picture_key,
			creator_name = :creator_name
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}
	return nil
}

func (r *UserRepositoryImpl) CreateSession(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO user_session (id, user_id, created_at) VALUES (:id, :user_id, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session id: %w", ErrConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

type sessionRow struct {
	SessionID        string    `db:"session_id"`
	SessionCreatedAt time.Time `db:"session_created_at"`
	models.User
}

func (r *UserRepositoryImpl) GetSession(ctx context.Context, sessionID string) (*models.Session, *models.User, error) {
	query := `
		SELECT s.id AS session_id, s.created_at AS session_created_at,
			u.id, u.display_name, u.user_type, u.profile_picture_key, u.creator_name, u.creation_date
		FROM user_session s
		JOIN site_user u ON u.id = s.user_id
		WHERE s.id = $1`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	session := &models.Session{ID: row.SessionID, UserID: row.User.ID, CreatedAt: row.SessionCreatedAt}
	user := row.User
	return session, &user, nil
}

func (r *UserRepositoryImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_session WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *UserRepositoryImpl) DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_session WHERE created_at + make_interval(secs => $1) <= NOW()`, ttl.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func (r *UserRepositoryImpl) GetOpenIDUser(ctx context.Context, provider, subject string) (int32, error) {
	var userID int32
	err := r.db.GetContext(ctx, &userID,
		`SELECT user_id FROM user_openid WHERE provider = $1 AND subject = $2`, provider, subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("openid %s: %w", provider, ErrNotFound)
		}
		return 0, fmt.Errorf("get openid binding: %w", err)
	}
	return userID, nil
}

// BindOpenID binds (provider, subject) to userID unless it is already bound,
// and returns the user the pair is bound to afterwards.
func (r *UserRepositoryImpl) BindOpenID(ctx context.Context, provider, subject string, userID int32) (int32, error) {
	query := `
		INSERT INTO user_openid (provider, subject, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, subject) DO NOTHING
		RETURNING user_id`

	var bound int32
	err := r.db.GetContext(ctx, &bound, query, provider, subject, userID)
	if err == nil {
		return bound, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("bind openid: %w", err)
	}
	return r.GetOpenIDUser(ctx, provider, subject)
}
