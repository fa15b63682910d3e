package dashboard

import (
	"sync"

	"go.uber.org/zap"
)

// Watcher applies pushed snapshots to a Board as they arrive.
type Watcher struct {
	board  *Board
	source <-chan Snapshot
	logger *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewWatcher(board *Board, source <-chan Snapshot, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		board:  board,
		source: source,
		logger: logger,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (w *Watcher) Start() {
	go w.loop()
}

// Stop ends the loop and waits for it to return.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case snap, ok := <-w.source:
			if !ok {
				w.logger.Info("snapshot source closed")
				return
			}
			if snap.UserID == "" {
				w.logger.Warn("dropping snapshot without user id")
				continue
			}
			w.board.Replace(snap)
			w.logger.Debug("snapshot applied",
				zap.String("user_id", snap.UserID),
				zap.Int("tasks", len(snap.Tasks)))
		case <-w.stopCh:
			return
		}
	}
}
