package repository

import (
	"context"

	"github.com/fastygo/taskdash/domain"
)

type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttlSeconds int) error
}

// TaskFeed carries "task list changed" notifications between instances.
type TaskFeed interface {
	Publish(ctx context.Context, userID string) error
	Subscribe(ctx context.Context) (<-chan string, error)
}
