package usecase

import (
	"context"

	"github.com/fastygo/taskdash/domain"
)

// Buffered operation kinds.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer abstracts the buffer processor so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferProfile(ctx context.Context, operation string, user *domain.User) error
	BufferTask(ctx context.Context, operation string, task *domain.Task) error
}

// ChangeNotifier is told whenever a user's task list has changed so derived
// views can be rebuilt from a fresh snapshot.
type ChangeNotifier interface {
	TasksChanged(ctx context.Context, userID string)
}
