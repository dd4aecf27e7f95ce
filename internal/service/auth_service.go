package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fanwiki/internal/config"
	"fanwiki/internal/logger"
	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/storage"
)

const (
	SessionCookie   = "USER_SESSION_ID"
	sessionIDLength = 64
	importIssuer    = "fanwiki"
	maxIDAttempts   = 5
)

type AuthService interface {
	SessionFromCookie(ctx context.Context, sessionID string) (*models.User, error)
	CreateSession(ctx context.Context, user *models.User) (*http.Cookie, error)
	Logout(ctx context.Context, sessionID string) *http.Cookie
	BindOpenID(ctx context.Context, userID int32, provider, subject string) error
	LoginWithOpenID(ctx context.Context, provider, subject, displayName string) (*models.User, error)
	IssueImportToken(ctx context.Context, requester *models.User, ttl time.Duration) (string, error)
	UserFromImportToken(ctx context.Context, token string) (*models.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	cfg      *config.Config
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SessionFromCookie resolves a session id to its user. Unknown and expired
// sessions yield a nil user; expired ones are deleted on the way.
func (s *authService) SessionFromCookie(ctx context.Context, sessionID string) (*models.User, error) {
	if len(sessionID) != sessionIDLength {
		return nil, nil
	}

	session, user, err := s.userRepo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.userRepo.DeleteSession(ctx, sessionID); err != nil {
			clog := logger.Component("session")
			clog.Warn().Err(err).Int32("user_id", session.UserID).Msg("could not delete expired session")
		}
		return nil, nil
	}
	return user, nil
}

func (s *authService) CreateSession(ctx context.Context, user *models.User) (*http.Cookie, error) {
	id, err := storage.RandomString(sessionIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	session := &models.Session{ID: id, UserID: user.ID, CreatedAt: s.now().UTC()}
	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return s.cookie(id, int(models.SessionTTL.Seconds())), nil
}

func (s *authService) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !s.cfg.Debug,
		SameSite: http.SameSiteStrictMode,
	}
}

// Logout deletes the session and returns a cookie that clears it in the browser.
func (s *authService) Logout(ctx context.Context, sessionID string) *http.Cookie {
	if sessionID != "" {
		if err := s.userRepo.DeleteSession(ctx, sessionID); err != nil {
			clog := logger.Component("session")
			clog.Warn().Err(err).Msg("could not delete session on logout")
		}
	}
	return s.cookie("", -1)
}

func (s *authService) BindOpenID(ctx context.Context, userID int32, provider, subject string) error {
	bound, err := s.userRepo.BindOpenID(ctx, provider, subject, userID)
	if err != nil {
		return Internal(err)
	}
	if bound != userID {
		return Conflict("this " + provider + " account is already linked to another user")
	}
	return nil
}

// LoginWithOpenID returns the user bound to (provider, subject), creating a
// Member for first-time logins.
func (s *authService) LoginWithOpenID(ctx context.Context, provider, subject, displayName string) (*models.User, error) {
	log := logger.Component("openid")

	userID, err := s.userRepo.GetOpenIDUser(ctx, provider, subject)
	switch {
	case err == nil:
		user, err := s.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			return nil, Internal(err)
		}
		return user, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, Internal(err)
	}

	name, ok := SanitizeDisplayName(displayName)
	if !ok {
		name = "user"
	}

	user := &models.User{DisplayName: name, UserType: models.UserMember}
	for attempt := 0; ; attempt++ {
		if user.ID, err = randomUserID(); err != nil {
			return nil, Internal(err)
		}
		err = s.userRepo.CreateUser(ctx, user)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || attempt+1 >= maxIDAttempts {
			return nil, Internal(err)
		}
	}

	bound, err := s.userRepo.BindOpenID(ctx, provider, subject, user.ID)
	if err != nil {
		return nil, Internal(err)
	}
	if bound != user.ID {
		// a concurrent login for the same identity won the race
		log.Warn().Str("provider", provider).Int32("orphan_user", user.ID).Msg("openid bound concurrently")
		existing, err := s.userRepo.GetUserByID(ctx, bound)
		if err != nil {
			return nil, Internal(err)
		}
		return existing, nil
	}

	log.Info().Str("provider", provider).Int32("user_id", user.ID).Msg("new user registered")
	return user, nil
}

func randomUserID() (int32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	id := int32(binary.BigEndian.Uint32(buf[:]) & 0x7fffffff)
	if id == 0 {
		id = 1
	}
	return id, nil
}

// IssueImportToken signs a bearer token that lets the batch importer act as requester.
func (s *authService) IssueImportToken(ctx context.Context, requester *models.User, ttl time.Duration) (string, error) {
	if requester == nil {
		return "", Unauthorized()
	}
	if requester.UserType.Rank() < models.UserAdmin.Rank() {
		return "", Forbidden()
	}
	if s.cfg.ImportTokenSecret == "" {
		return "", BadRequest("importer tokens are disabled on this server")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    importIssuer,
		Subject:   strconv.Itoa(int(requester.ID)),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.ImportTokenSecret))
	if err != nil {
		return "", Internal(fmt.Errorf("sign import token: %w", err))
	}
	return signed, nil
}

func (s *authService) UserFromImportToken(ctx context.Context, tokenString string) (*models.User, error) {
	if s.cfg.ImportTokenSecret == "" {
		return nil, Unauthorized()
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.ImportTokenSecret), nil
	}, jwt.WithIssuer(importIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, &Error{Code: CodeUnauthorized, Message: "invalid import token", Err: err}
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil {
		return nil, &Error{Code: CodeUnauthorized, Message: "invalid import token", Err: err}
	}

	user, err := s.userRepo.GetUserByID(ctx, int32(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Unauthorized()
		}
		return nil, Internal(err)
	}
	return user, nil
}
