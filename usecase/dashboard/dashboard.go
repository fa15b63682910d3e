package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/pkg/logger"
)

// TaskLister loads the complete task list of one user.
type TaskLister interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Task, error)
}

// View is what the presentation layer reads: the current stats plus whether
// the first snapshot for the user has arrived yet.
type View struct {
	Stats      domain.DashboardStats `json:"stats"`
	Loading    bool                  `json:"loading"`
	SnapshotAt *time.Time            `json:"snapshot_at,omitempty"`
	ComputedAt time.Time             `json:"computed_at"`
}

type Config struct {
	Location *time.Location
	Options  Options
}

type UseCase struct {
	board  *Board
	tasks  TaskLister
	cfg    Config
	logger *zap.Logger

	// Now is the wall clock; tests pin it.
	Now func() time.Time
}

func New(board *Board, tasks TaskLister, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &UseCase{
		board:  board,
		tasks:  tasks,
		cfg:    cfg,
		logger: logger,
		Now:    time.Now,
	}
}

// Stats returns the dashboard for userID, priming the board from storage when
// no snapshot has been received yet.
func (uc *UseCase) Stats(ctx context.Context, userID string) (View, error) {
	if userID == "" {
		return View{}, domain.ErrUnauthorized
	}

	snap, ok := uc.board.Get(userID)
	if !ok {
		primed, err := uc.prime(ctx, userID)
		if err != nil {
			logger.WithRequestID(ctx, uc.logger).Warn("dashboard snapshot unavailable",
				zap.String("user_id", userID), zap.Error(err))
			return uc.loadingView(), nil
		}
		snap = primed
	}
	return uc.render(snap), nil
}

// prime loads the user's tasks from storage. When a newer snapshot lands on
// the board during the read, that snapshot is returned and the read is
// discarded.
func (uc *UseCase) prime(ctx context.Context, userID string) (Snapshot, error) {
	token := uc.board.BeginLoad(userID)
	tasks, err := uc.tasks.ListByUser(ctx, userID)
	if err != nil {
		uc.board.EndLoad(userID)
		return Snapshot{}, err
	}

	loaded := Snapshot{UserID: userID, Tasks: tasks, ReceivedAt: uc.now()}
	if stored, ok := uc.board.ReplaceIfUnchanged(token, loaded); ok {
		return stored, nil
	}
	logger.WithRequestID(ctx, uc.logger).Debug("discarding stale dashboard load", zap.String("user_id", userID))
	if newer, ok := uc.board.Get(userID); ok {
		return newer, nil
	}
	return loaded, nil
}

// Refresh is a feedback hint for clients. Stats are already recomputed on
// every snapshot, so it never goes back to storage.
func (uc *UseCase) Refresh(ctx context.Context, userID string) (View, error) {
	if userID == "" {
		return View{}, domain.ErrUnauthorized
	}
	logger.WithRequestID(ctx, uc.logger).Debug("dashboard refresh requested", zap.String("user_id", userID))

	snap, ok := uc.board.Get(userID)
	if !ok {
		return uc.loadingView(), nil
	}
	return uc.render(snap), nil
}

// Invalidate drops the cached snapshot so the next read goes to storage.
func (uc *UseCase) Invalidate(userID string) {
	uc.board.Forget(userID)
}

func (uc *UseCase) render(snap Snapshot) View {
	now := uc.now()
	received := snap.ReceivedAt
	return View{
		Stats:      Aggregate(snap.Tasks, now, uc.cfg.Options),
		SnapshotAt: &received,
		ComputedAt: now,
	}
}

func (uc *UseCase) loadingView() View {
	now := uc.now()
	return View{
		Stats:      domain.EmptyDashboardStats(),
		Loading:    true,
		ComputedAt: now,
	}
}

func (uc *UseCase) now() time.Time {
	return uc.Now().In(uc.cfg.Location)
}
