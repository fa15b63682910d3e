package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer reports how many operations wait in the offline buffer.
type Sizer interface {
	Size() (int, error)
}

// Counter reports how many users have a dashboard snapshot in memory.
type Counter interface {
	Len() int
}

// Targets lists what the monitor checks. Nil targets report as down.
type Targets struct {
	Postgres  Pinger
	Redis     Pinger
	Buffer    Sizer
	Dashboard Counter
}

type Monitor struct {
	targets Targets

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(targets Targets, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		targets:  targets,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// RedisPinger adapts a go-redis client to Pinger.
func RedisPinger(client *redislib.Client) Pinger {
	if client == nil {
		return nil
	}
	return redisPinger{client: client}
}

type redisPinger struct {
	client *redislib.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether primary storage is reachable.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Ready()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh pings every target once and stores the result.
func (m *Monitor) Refresh() Status {
	bufferOK, bufferSize := m.checkBuffer()
	status := Status{
		PostgreSQL: m.ping(m.targets.Postgres, 3*time.Second),
		Redis:      m.ping(m.targets.Redis, 2*time.Second),
		Buffer:     bufferOK,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}
	if m.targets.Dashboard != nil {
		status.DashboardEntries = m.targets.Dashboard.Len()
	}

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	if prev.connectivityChanged(status) {
		m.logger.Info("connection status changed",
			zap.Bool("postgresql", status.PostgreSQL),
			zap.Bool("redis", status.Redis),
			zap.Strings("down", status.Down()),
			zap.Int("buffer_size", status.BufferSize),
		)
	}
	return status
}

func (m *Monitor) ping(target Pinger, timeout time.Duration) bool {
	if target == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return target.Ping(ctx) == nil
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.targets.Buffer == nil {
		return false, 0
	}
	size, err := m.targets.Buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
