package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/internal/infrastructure/buffer"
	"github.com/fastygo/taskdash/repository"
	"github.com/fastygo/taskdash/usecase"
)

// ConnectionHealth abstracts the connection monitor.
type ConnectionHealth interface {
	IsOnline() bool
}

// BufferStore is the persistence the processor drains. *buffer.Store satisfies it.
type BufferStore interface {
	Enqueue(item buffer.Item) error
	GetBatch(limit int) ([]buffer.Item, error)
	Remove(item buffer.Item) error
	Requeue(item buffer.Item) error
	Size() (int, error)
	Cleanup(olderThan time.Time) (int, error)
}

// ProcessorConfig controls how frequently the buffer is drained and pruned.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered writes once Postgres is reachable again.
type BufferProcessor struct {
	store    BufferStore
	monitor  ConnectionHealth
	userRepo repository.UserRepository
	taskRepo repository.TaskRepository
	notifier usecase.ChangeNotifier
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store BufferStore,
	monitor ConnectionHealth,
	userRepo repository.UserRepository,
	taskRepo repository.TaskRepository,
	notifier usecase.ChangeNotifier,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		userRepo: userRepo,
		taskRepo: taskRepo,
		notifier: notifier,
		logger:   logger.Named("buffer"),
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	drainEvery := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(drainEvery, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})
	_, _ = bp.cron.AddFunc("@every 1h", func() {
		if _, err := bp.Cleanup(time.Now()); err != nil {
			bp.logger.Error("buffer cleanup failed", zap.Error(err))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for running jobs or ctx, whichever ends first.
func (bp *BufferProcessor) Stop(ctx context.Context) error {
	if bp == nil || bp.cron == nil {
		return nil
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	bp.logger.Info("buffer processor stopped")
	return nil
}

// Drain replays one batch of buffered items. Items of an entity whose earlier
// write failed are left for the next run so replay order is kept.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	blocked := make(map[string]bool)
	changed := make(map[string]bool)
	for _, item := range items {
		key := item.Entity + ":" + item.EntityID
		if item.EntityID != "" && blocked[key] {
			continue
		}

		if err := bp.processItem(ctx, item); err != nil {
			bp.logger.Error("failed to process buffer item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.String("operation", item.Operation),
				zap.Error(err))

			item.Retries++
			if item.Retries >= bp.cfg.MaxRetries {
				bp.logger.Warn("dropping buffer item (max retries reached)", zap.String("item_id", item.ID))
				_ = bp.store.Remove(item)
				continue
			}
			blocked[key] = true
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue buffer item", zap.Error(err))
			}
			continue
		}

		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to purge processed buffer item", zap.Error(err))
		}
		if item.Entity == buffer.EntityTask && item.UserID != "" {
			changed[item.UserID] = true
		}
	}

	if bp.notifier != nil {
		for userID := range changed {
			bp.notifier.TasksChanged(ctx, userID)
		}
	}
	return nil
}

// Cleanup drops items older than the retention window.
func (bp *BufferProcessor) Cleanup(now time.Time) (int, error) {
	if bp == nil || bp.store == nil {
		return 0, nil
	}
	removed, err := bp.store.Cleanup(now.Add(-bp.cfg.Retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		bp.logger.Warn("expired buffer items dropped", zap.Int("count", removed))
	}
	return removed, nil
}

// BufferOperation retries the write once when storage looks reachable and persists it otherwise.
func (bp *BufferProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}

	if bp.monitor != nil && bp.monitor.IsOnline() {
		err := bp.processItem(ctx, item)
		if err == nil {
			return nil
		}
		bp.logger.Warn("immediate processing failed, buffering", zap.Error(err))
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

// processItem applies one item. Outcomes that show the write already landed count as success.
func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	switch item.Entity {
	case buffer.EntityProfile:
		var user domain.User
		if err := json.Unmarshal(item.Data, &user); err != nil {
			return err
		}
		return bp.userRepo.Upsert(ctx, &user)

	case buffer.EntityTask:
		var task domain.Task
		if err := json.Unmarshal(item.Data, &task); err != nil {
			return err
		}
		switch item.Operation {
		case buffer.OperationCreate:
			_, err := bp.taskRepo.Create(ctx, &task)
			if domain.IsDomainError(err, domain.ErrCodeConflict) {
				return nil
			}
			return err
		case buffer.OperationUpdate:
			err := bp.taskRepo.Update(ctx, &task)
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				bp.logger.Warn("buffered update targets a deleted task", zap.String("task_id", task.ID))
				return nil
			}
			return err
		case buffer.OperationDelete:
			err := bp.taskRepo.Delete(ctx, task.ID)
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				return nil
			}
			return err
		default:
			return fmt.Errorf("unsupported operation %s", item.Operation)
		}
	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}
