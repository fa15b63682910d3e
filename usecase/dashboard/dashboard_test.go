package dashboard

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fastygo/taskdash/domain"
)

type fakeLister struct {
	tasks map[string][]domain.Task
	err   error
	calls int
}

func (f *fakeLister) ListByUser(_ context.Context, userID string) ([]domain.Task, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks[userID], nil
}

func newTestUseCase(t *testing.T, lister TaskLister) *UseCase {
	t.Helper()
	board, err := NewBoard(8)
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	uc := New(board, lister, Config{Location: time.UTC}, nil)
	uc.Now = func() time.Time { return refNow }
	return uc
}

func TestStatsPrimesBoardOnce(t *testing.T) {
	lister := &fakeLister{tasks: map[string][]domain.Task{
		"u1": {completedAt(refNow, 2*day), completedAt(refNow, 4*day)},
	}}
	uc := newTestUseCase(t, lister)

	view, err := uc.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if view.Loading {
		t.Fatal("expected loaded view")
	}
	if view.Stats.TotalTasks != 2 || view.Stats.AverageCompletionTime != 3 {
		t.Fatalf("unexpected stats: %+v", view.Stats)
	}
	if view.SnapshotAt == nil || !view.ComputedAt.Equal(refNow) {
		t.Fatalf("unexpected timestamps: %+v", view)
	}

	if _, err := uc.Stats(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if lister.calls != 1 {
		t.Fatalf("expected storage to be read once, got %d", lister.calls)
	}
}

func TestStatsReportsLoadingWhenStorageFails(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	uc := newTestUseCase(t, lister)

	view, err := uc.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected degraded view, got error %v", err)
	}
	if !view.Loading {
		t.Fatal("expected loading view")
	}
	if len(view.Stats.WeeklyTrend) != 7 || len(view.Stats.MonthlyTrend) != 30 {
		t.Fatalf("expected zero-filled trends, got %+v", view.Stats)
	}
}

func TestStatsRequiresUser(t *testing.T) {
	uc := newTestUseCase(t, &fakeLister{})
	if _, err := uc.Stats(context.Background(), ""); !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := uc.Refresh(context.Background(), ""); !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRefreshNeverReadsStorage(t *testing.T) {
	lister := &fakeLister{tasks: map[string][]domain.Task{"u1": {completedAt(refNow, day)}}}
	uc := newTestUseCase(t, lister)

	view, err := uc.Refresh(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !view.Loading || lister.calls != 0 {
		t.Fatalf("expected loading view without storage access, got loading=%v calls=%d", view.Loading, lister.calls)
	}

	primed, _ := uc.Stats(context.Background(), "u1")
	refreshed, _ := uc.Refresh(context.Background(), "u1")
	if !reflect.DeepEqual(primed, refreshed) {
		t.Fatalf("refresh changed the result:\n%+v\n%+v", primed, refreshed)
	}
	if lister.calls != 1 {
		t.Fatalf("expected a single storage read, got %d", lister.calls)
	}
}

func TestPushedSnapshotReplacesWholeList(t *testing.T) {
	lister := &fakeLister{tasks: map[string][]domain.Task{"u1": {completedAt(refNow, day)}}}
	uc := newTestUseCase(t, lister)
	if _, err := uc.Stats(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}

	uc.board.Replace(Snapshot{UserID: "u1", Tasks: []domain.Task{
		{ID: "a", Title: "a", Priority: domain.PriorityHigh, CreatedAt: refNow},
		{ID: "b", Title: "b", Priority: domain.PriorityHigh, CreatedAt: refNow},
	}})
	view, _ := uc.Stats(context.Background(), "u1")
	if view.Stats.TotalTasks != 2 || view.Stats.CompletedTasks != 0 || view.Stats.HighPriorityTasks != 2 {
		t.Fatalf("expected the pushed list to replace the old one, got %+v", view.Stats)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	lister := &fakeLister{tasks: map[string][]domain.Task{"u1": {completedAt(refNow, day)}}}
	uc := newTestUseCase(t, lister)
	_, _ = uc.Stats(context.Background(), "u1")
	uc.Invalidate("u1")
	_, _ = uc.Stats(context.Background(), "u1")
	if lister.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d reads", lister.calls)
	}
}

func TestStatsFollowsClock(t *testing.T) {
	lister := &fakeLister{tasks: map[string][]domain.Task{"u1": {completedAt(refNow, day)}}}
	uc := newTestUseCase(t, lister)

	view, _ := uc.Stats(context.Background(), "u1")
	if view.Stats.TodayCompleted != 1 {
		t.Fatalf("expected completion today, got %d", view.Stats.TodayCompleted)
	}
	uc.Now = func() time.Time { return refNow.Add(2 * day) }
	view, _ = uc.Stats(context.Background(), "u1")
	if view.Stats.TodayCompleted != 0 || view.Stats.WeekCompleted != 1 {
		t.Fatalf("expected stats recomputed against the new day, got %+v", view.Stats)
	}
}

type gatedLister struct {
	tasks   []domain.Task
	started chan struct{}
	release chan struct{}
}

func (g *gatedLister) ListByUser(_ context.Context, _ string) ([]domain.Task, error) {
	close(g.started)
	<-g.release
	return g.tasks, nil
}

func TestSlowPrimeDoesNotOverwriteNewerSnapshot(t *testing.T) {
	lister := &gatedLister{
		tasks:   []domain.Task{completedAt(refNow, day)},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	uc := newTestUseCase(t, lister)

	views := make(chan View, 1)
	go func() {
		view, _ := uc.Stats(context.Background(), "u1")
		views <- view
	}()
	<-lister.started

	if !uc.board.Wants("u1") {
		t.Fatal("expected an in-flight load to make the user wanted")
	}
	uc.Invalidate("u1")
	uc.board.Replace(Snapshot{UserID: "u1", ReceivedAt: refNow, Tasks: []domain.Task{
		{ID: "a", Title: "a", Priority: domain.PriorityLow, CreatedAt: refNow},
		{ID: "b", Title: "b", Priority: domain.PriorityLow, CreatedAt: refNow},
	}})
	close(lister.release)

	view := <-views
	if view.Stats.TotalTasks != 2 {
		t.Fatalf("expected the newer snapshot to be served, got total=%d", view.Stats.TotalTasks)
	}
	snap, ok := uc.board.Get("u1")
	if !ok || len(snap.Tasks) != 2 {
		t.Fatalf("board lost the newer snapshot: %+v", snap)
	}
	if uc.board.Wants("u2") {
		t.Fatal("unexpected interest in a user with no snapshot or load")
	}
}

func TestSlowPrimeAfterInvalidateIsNotKept(t *testing.T) {
	lister := &gatedLister{
		tasks:   []domain.Task{completedAt(refNow, day)},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	uc := newTestUseCase(t, lister)

	done := make(chan struct{})
	go func() {
		_, _ = uc.Stats(context.Background(), "u1")
		close(done)
	}()
	<-lister.started
	uc.Invalidate("u1")
	close(lister.release)
	<-done

	if _, ok := uc.board.Get("u1"); ok {
		t.Fatal("a read started before the invalidation must not be cached")
	}
	if uc.board.Wants("u1") {
		t.Fatal("expected the finished load to be released")
	}
}
