package redis

import (
	"context"
	"fmt"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskdash/repository"
)

const DefaultFeedChannel = "taskdash:tasks:changed"

type taskFeed struct {
	client  *redislib.Client
	channel string
	buffer  int
	logger  *zap.Logger
}

// NewTaskFeed publishes and receives task-list change notifications over
// Redis pub/sub. The message payload is the owning user id.
func NewTaskFeed(client *redislib.Client, channel string, logger *zap.Logger) repository.TaskFeed {
	if channel == "" {
		channel = DefaultFeedChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &taskFeed{
		client:  client,
		channel: channel,
		buffer:  64,
		logger:  logger,
	}
}

func (f *taskFeed) Publish(ctx context.Context, userID string) error {
	if err := f.client.Publish(ctx, f.channel, userID).Err(); err != nil {
		return fmt.Errorf("publish task change: %w", err)
	}
	return nil
}

// Subscribe delivers user ids until ctx is cancelled.
func (f *taskFeed) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	out := make(chan string, f.buffer)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					f.logger.Warn("task feed subscription closed", zap.String("channel", f.channel))
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
