package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc stops one component. It should return once the component has
// released its resources or ctx expires, whichever comes first.
type ShutdownFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager owns the shutdown sequence of the taskdash process. Components
// register a hook as they start; Shutdown runs the hooks in reverse order so
// the HTTP server stops before the dashboard watcher, the buffer processor
// and finally the storage clients. Shutdown runs at most once.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook
	done  bool
}

// New creates a manager whose Shutdown is bounded by timeout. A non-positive
// timeout falls back to 15 seconds.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger.Named("lifecycle"),
	}
}

// Register adds a shutdown hook. Components started later are stopped first.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// RegisterFunc registers a hook that cannot fail, such as a ticker Stop.
func (m *Manager) RegisterFunc(name string, fn func()) {
	if fn == nil {
		return
	}
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Shutdown runs every hook, even after one fails, and returns their errors
// joined and prefixed with the component name. All hooks share one deadline;
// a hook that finishes after it is logged so slow components can be found.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}
	m.done = true

	var result error
	for i := len(m.hooks) - 1; i >= 0; i-- {
		h := m.hooks[i]
		started, live := time.Now(), ctx.Err() == nil
		err := h.fn(ctx)
		elapsed := time.Since(started)

		if err != nil {
			m.logger.Error("shutdown hook failed",
				zap.String("component", h.name), zap.Duration("elapsed", elapsed), zap.Error(err))
			result = errors.Join(result, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		if live && ctx.Err() != nil {
			m.logger.Warn("shutdown hook overran deadline",
				zap.String("component", h.name), zap.Duration("elapsed", elapsed))
			continue
		}
		m.logger.Info("component stopped", zap.String("component", h.name), zap.Duration("elapsed", elapsed))
	}
	return result
}

// Listen calls cancel on the first SIGINT or SIGTERM. The caller then runs
// Shutdown; a second signal is left to the default handler.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		signal.Stop(sigCh)
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}
