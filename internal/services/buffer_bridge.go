package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/internal/infrastructure/buffer"
	"github.com/fastygo/taskdash/usecase"
)

// BufferBridge turns use-case writes into buffer items.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferProfile(ctx context.Context, operation string, user *domain.User) error {
	if b.processor == nil || user == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    user.ID,
		Entity:    buffer.EntityProfile,
		EntityID:  user.ID,
		Operation: operation,
		Data:      payload,
		Priority:  buffer.PriorityProfile,
	})
}

func (b *BufferBridge) BufferTask(ctx context.Context, operation string, task *domain.Task) error {
	if b.processor == nil || task == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    task.UserID,
		Entity:    buffer.EntityTask,
		EntityID:  task.ID,
		Operation: operation,
		Data:      payload,
		Priority:  buffer.PriorityTask,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
