package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/pkg/logger"
	"github.com/fastygo/taskdash/pkg/token"
	"github.com/fastygo/taskdash/repository"
)

const minPasswordLength = 6

// TokenIssuer signs access tokens. *token.Manager satisfies it.
type TokenIssuer interface {
	Issue(userID, sessionID string) (string, time.Time, error)
}

type UseCase struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	tokens     TokenIssuer
	sessionTTL time.Duration
	hashCost   int
	logger     *zap.Logger

	Now func() time.Time
}

func New(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens TokenIssuer,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &UseCase{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		logger:     logger,
		Now:        time.Now,
	}
}

// SetHashCost lowers bcrypt work, for tests.
func (uc *UseCase) SetHashCost(cost int) {
	uc.hashCost = cost
}

// SignUp registers an email/password account and signs it in.
func (uc *UseCase) SignUp(ctx context.Context, email, password, displayName string) (*domain.Credentials, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, domain.NewError(domain.ErrCodeInvalid, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.hashCost)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "password cannot be hashed", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		Status:       domain.UserStatusActive,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.WithRequestID(ctx, uc.logger).Info("user registered", zap.String("user_id", user.ID))
	return uc.issue(ctx, user)
}

// SignIn checks the password and opens a new session.
func (uc *UseCase) SignIn(ctx context.Context, email, password string) (*domain.Credentials, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "password check failed", err)
	}
	if !user.IsActive() {
		return nil, domain.NewError(domain.ErrCodeForbidden, "account is disabled")
	}
	return uc.issue(ctx, user)
}

// RefreshSession extends a live session and hands out a fresh access token.
func (uc *UseCase) RefreshSession(ctx context.Context, sessionID string) (*domain.Credentials, error) {
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.NewError(domain.ErrCodeForbidden, "account is disabled")
	}

	if err := uc.sessions.Extend(ctx, sessionID, int(uc.sessionTTL.Seconds())); err != nil {
		return nil, err
	}
	session.ExpiresAt = uc.Now().Add(uc.sessionTTL)
	return uc.credentials(session, user)
}

// GetSession returns a live session. Expired ones are deleted on sight.
func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrUnauthorized
	}
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(uc.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrUnauthorized
	}
	return uc.sessions.Delete(ctx, sessionID)
}

func (uc *UseCase) issue(ctx context.Context, user *domain.User) (*domain.Credentials, error) {
	now := uc.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.sessionTTL),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return uc.credentials(session, user)
}

func (uc *UseCase) credentials(session *domain.Session, user *domain.User) (*domain.Credentials, error) {
	signed, expires, err := uc.tokens.Issue(user.ID, session.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Credentials{
		AccessToken: signed,
		TokenType:   token.Type,
		ExpiresAt:   expires,
		Session:     session,
		User:        user,
	}, nil
}
