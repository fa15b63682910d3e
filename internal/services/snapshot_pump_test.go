package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastygo/taskdash/domain"
)

func TestSnapshotPumpLoadsNotifiedUsers(t *testing.T) {
	tasks := newMemTasks()
	tasks.tasks["a"] = domain.Task{ID: "a", UserID: "u1"}
	tasks.tasks["b"] = domain.Task{ID: "b", UserID: "u1"}
	feed := &chanFeed{ch: make(chan string, 4)}

	pump := NewSnapshotPump(feed, tasks, func(userID string) bool { return userID != "skip" }, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- pump.Run(ctx) }()

	feed.ch <- "skip"
	feed.ch <- "u1"

	select {
	case snap := <-pump.Snapshots():
		if snap.UserID != "u1" || len(snap.Tasks) != 2 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}

	close(feed.ch)
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := <-pump.Snapshots(); ok {
		t.Fatal("expected snapshot stream to close")
	}
}

func TestSnapshotPumpReportsSubscribeError(t *testing.T) {
	feed := &chanFeed{err: errors.New("redis down")}
	pump := NewSnapshotPump(feed, newMemTasks(), nil, 0, nil)
	if err := pump.Run(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
}

func TestSnapshotPumpSkipsFailedLoads(t *testing.T) {
	tasks := newMemTasks()
	tasks.err = errors.New("timeout")
	feed := &chanFeed{ch: make(chan string, 1)}
	pump := NewSnapshotPump(feed, tasks, nil, time.Second, nil)

	feed.ch <- "u1"
	close(feed.ch)
	if err := pump.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-pump.Snapshots(); ok {
		t.Fatal("expected no snapshot for a failed load")
	}
}

type invalidations []string

func (i *invalidations) Invalidate(userID string) { *i = append(*i, userID) }

func TestFeedNotifierInvalidatesAndPublishes(t *testing.T) {
	feed := &chanFeed{}
	var local invalidations
	n := NewFeedNotifier(feed, &local, nil)

	n.TasksChanged(context.Background(), "u1")
	n.TasksChanged(context.Background(), "")

	if len(local) != 1 || local[0] != "u1" {
		t.Fatalf("unexpected invalidations: %v", local)
	}
	if len(feed.published) != 1 || feed.published[0] != "u1" {
		t.Fatalf("unexpected publications: %v", feed.published)
	}

	feed.err = errors.New("redis down")
	n.TasksChanged(context.Background(), "u2")
	if len(local) != 2 {
		t.Fatal("expected local invalidation even when publish fails")
	}
}
