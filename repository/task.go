package repository

import (
	"context"

	"github.com/fastygo/taskdash/domain"
)

type TaskFilter struct {
	UserID    string
	Completed *bool
	Priority  domain.Priority
	Limit     int
	Offset    int
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	// ListByUser returns every task of the user, unpaged.
	ListByUser(ctx context.Context, userID string) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
}

type TaskEventRepository interface {
	Append(ctx context.Context, event domain.TaskEvent) error
	ListByTask(ctx context.Context, taskID string, limit int) ([]domain.TaskEvent, error)
}
