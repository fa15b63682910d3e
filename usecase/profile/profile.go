package profile

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/pkg/logger"
	"github.com/fastygo/taskdash/repository"
	"github.com/fastygo/taskdash/usecase"
)

const maxDisplayName = 80

// Patch lists the profile fields a user may change. Nil means unchanged.
type Patch struct {
	DisplayName *string
	Metadata    map[string]string
}

type UseCase struct {
	users  repository.UserRepository
	buffer usecase.OperationBuffer
	logger *zap.Logger

	Now func() time.Time
}

func New(users repository.UserRepository, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		buffer: buffer,
		logger: logger,
		Now:    time.Now,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.users.GetByID(ctx, userID)
}

func (uc *UseCase) UpdateProfile(ctx context.Context, userID string, patch Patch) (*domain.User, error) {
	user, err := uc.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if len([]rune(name)) > maxDisplayName {
			return nil, domain.NewError(domain.ErrCodeInvalid, "display name is too long")
		}
		user.DisplayName = name
	}
	if patch.Metadata != nil {
		if user.Metadata == nil {
			user.Metadata = make(map[string]string, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			if v == "" {
				delete(user.Metadata, k)
				continue
			}
			user.Metadata[k] = v
		}
	}
	user.UpdatedAt = uc.Now()

	if err := uc.users.Upsert(ctx, user); err != nil {
		if uc.buffer == nil {
			return nil, err
		}
		log := logger.WithRequestID(ctx, uc.logger)
		if bufErr := uc.buffer.BufferProfile(ctx, usecase.OperationUpdate, user); bufErr != nil {
			log.Error("failed to buffer profile update", zap.Error(bufErr))
			return nil, err
		}
		log.Warn("profile update buffered due to repository error", zap.Error(err))
	}
	return user, nil
}
