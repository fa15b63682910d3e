package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskdash/pkg/logger"
	"github.com/fastygo/taskdash/repository"
	"github.com/fastygo/taskdash/usecase"
)

// Invalidator drops a user's in-memory dashboard snapshot.
type Invalidator interface {
	Invalidate(userID string)
}

// FeedNotifier forgets the local snapshot and announces the change on the
// task feed so every instance rebuilds its dashboard.
type FeedNotifier struct {
	feed   repository.TaskFeed
	local  Invalidator
	logger *zap.Logger
}

func NewFeedNotifier(feed repository.TaskFeed, local Invalidator, logger *zap.Logger) *FeedNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedNotifier{feed: feed, local: local, logger: logger}
}

func (n *FeedNotifier) TasksChanged(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if n.local != nil {
		n.local.Invalidate(userID)
	}
	if n.feed == nil {
		return
	}
	if err := n.feed.Publish(ctx, userID); err != nil {
		logger.WithRequestID(ctx, n.logger).Warn("task change not published", zap.Error(err))
	}
}

var _ usecase.ChangeNotifier = (*FeedNotifier)(nil)
