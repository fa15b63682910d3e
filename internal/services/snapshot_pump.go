package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskdash/repository"
	"github.com/fastygo/taskdash/usecase/dashboard"
)

// SnapshotPump turns task feed notifications into full task-list snapshots.
type SnapshotPump struct {
	feed    repository.TaskFeed
	tasks   dashboard.TaskLister
	wants   func(userID string) bool
	timeout time.Duration
	out     chan dashboard.Snapshot
	logger  *zap.Logger

	Now func() time.Time
}

// NewSnapshotPump builds a pump. wants filters which users are worth loading;
// nil loads every notified user.
func NewSnapshotPump(
	feed repository.TaskFeed,
	tasks dashboard.TaskLister,
	wants func(userID string) bool,
	timeout time.Duration,
	logger *zap.Logger,
) *SnapshotPump {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotPump{
		feed:    feed,
		tasks:   tasks,
		wants:   wants,
		timeout: timeout,
		out:     make(chan dashboard.Snapshot, 64),
		logger:  logger.Named("snapshot_pump"),
		Now:     time.Now,
	}
}

// Snapshots is the stream a dashboard.Watcher consumes. It closes when Run returns.
func (p *SnapshotPump) Snapshots() <-chan dashboard.Snapshot {
	return p.out
}

// Run blocks until ctx ends or the feed closes. Call it once.
func (p *SnapshotPump) Run(ctx context.Context) error {
	defer close(p.out)

	userIDs, err := p.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("snapshot pump subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case userID, ok := <-userIDs:
			if !ok {
				return nil
			}
			if userID == "" || (p.wants != nil && !p.wants(userID)) {
				continue
			}
			snap, err := p.load(ctx, userID)
			if err != nil {
				p.logger.Warn("snapshot load failed", zap.String("user_id", userID), zap.Error(err))
				continue
			}
			select {
			case p.out <- snap:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *SnapshotPump) load(ctx context.Context, userID string) (dashboard.Snapshot, error) {
	loadCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tasks, err := p.tasks.ListByUser(loadCtx, userID)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	return dashboard.Snapshot{UserID: userID, Tasks: tasks, ReceivedAt: p.Now()}, nil
}
