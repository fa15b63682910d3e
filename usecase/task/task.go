package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/pkg/logger"
	"github.com/fastygo/taskdash/repository"
	"github.com/fastygo/taskdash/usecase"
)

type UseCase struct {
	tasks    repository.TaskRepository
	events   repository.TaskEventRepository
	buffer   usecase.OperationBuffer
	notifier usecase.ChangeNotifier
	logger   *zap.Logger

	Now func() time.Time
}

func New(
	tasks repository.TaskRepository,
	events repository.TaskEventRepository,
	buffer usecase.OperationBuffer,
	notifier usecase.ChangeNotifier,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		events:   events,
		buffer:   buffer,
		notifier: notifier,
		logger:   logger,
		Now:      time.Now,
	}
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	if filter.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	return uc.owned(ctx, userID, id)
}

func (uc *UseCase) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.UserID == "" {
		return nil, domain.ErrInvalidPayload
	}
	task.Title = strings.TrimSpace(task.Title)
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := uc.Now()
	task.Completed = false
	task.CompletedAt = nil
	task.CreatedAt = now
	task.UpdatedAt = now

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if !uc.shouldBuffer(ctx, usecase.OperationCreate, task) {
			return nil, err
		}
		created = task
	}

	uc.record(ctx, domain.EventTaskCreated, created)
	uc.changed(ctx, created.UserID)
	return created, nil
}

func (uc *UseCase) UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	current, err := uc.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	patch.Apply(current, uc.Now())
	if err := current.Validate(); err != nil {
		return nil, err
	}
	return uc.save(ctx, domain.EventTaskUpdated, current)
}

// ToggleTask flips completion. UpdatedAt moves with it.
func (uc *UseCase) ToggleTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	current, err := uc.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	current.Toggle(uc.Now())
	return uc.save(ctx, domain.EventTaskToggled, current)
}

func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	current, err := uc.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := uc.tasks.Delete(ctx, id); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return err
		}
		if !uc.shouldBuffer(ctx, usecase.OperationDelete, current) {
			return err
		}
	}
	uc.record(ctx, domain.EventTaskDeleted, current)
	uc.changed(ctx, userID)
	return nil
}

// History returns the newest audit events of a task.
func (uc *UseCase) History(ctx context.Context, userID, id string, limit int) ([]domain.TaskEvent, error) {
	if _, err := uc.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if uc.events == nil {
		return nil, nil
	}
	return uc.events.ListByTask(ctx, id, limit)
}

func (uc *UseCase) save(ctx context.Context, event string, task *domain.Task) (*domain.Task, error) {
	if err := uc.tasks.Update(ctx, task); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, err
		}
		if !uc.shouldBuffer(ctx, usecase.OperationUpdate, task) {
			return nil, err
		}
	}
	uc.record(ctx, event, task)
	uc.changed(ctx, task.UserID)
	return task, nil
}

func (uc *UseCase) owned(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if id == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "missing task id")
	}
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return task, nil
}

func (uc *UseCase) record(ctx context.Context, name string, task *domain.Task) {
	if uc.events == nil || task == nil {
		return
	}
	err := uc.appendEvent(ctx, name, task)
	if err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("failed to record task event",
			zap.String("event", name), zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (uc *UseCase) appendEvent(ctx context.Context, name string, task *domain.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return uc.events.Append(ctx, domain.TaskEvent{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		UserID:    task.UserID,
		Name:      name,
		Payload:   payload,
		CreatedAt: uc.Now(),
	})
}

func (uc *UseCase) changed(ctx context.Context, userID string) {
	if uc.notifier != nil {
		uc.notifier.TasksChanged(ctx, userID)
	}
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, task *domain.Task) bool {
	if uc.buffer == nil {
		return false
	}
	log := logger.WithRequestID(ctx, uc.logger)
	if err := uc.buffer.BufferTask(ctx, operation, task); err != nil {
		log.Error("failed to buffer task operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	log.Warn("task operation buffered", zap.String("operation", operation), zap.String("task_id", task.ID))
	return true
}
