package services

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/internal/infrastructure/buffer"
	"github.com/fastygo/taskdash/repository"
)

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	err   error
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[string]domain.Task)}
}

func (m *memTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &task, nil
}

func (m *memTasks) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return m.ListByUser(ctx, filter.UserID)
}

func (m *memTasks) ListByUser(_ context.Context, userID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Task
	for _, task := range m.tasks {
		if task.UserID == userID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (m *memTasks) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.tasks[task.ID]; ok {
		return nil, domain.ErrTaskExists
	}
	m.tasks[task.ID] = *task
	return task, nil
}

func (m *memTasks) Update(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	m.tasks[task.ID] = *task
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

type memUsers struct {
	upserts []domain.User
}

func (m *memUsers) GetByID(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) Create(context.Context, *domain.User) error { return nil }

func (m *memUsers) Upsert(_ context.Context, user *domain.User) error {
	m.upserts = append(m.upserts, *user)
	return nil
}

// memStore keeps items in enqueue order.
type memStore struct {
	items []buffer.Item
}

func (s *memStore) Enqueue(item buffer.Item) error {
	if item.ID == "" {
		item.ID = item.EntityID + "-" + item.Operation
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	s.items = append(s.items, item)
	return nil
}

func (s *memStore) GetBatch(limit int) ([]buffer.Item, error) {
	if limit > len(s.items) {
		limit = len(s.items)
	}
	return append([]buffer.Item(nil), s.items[:limit]...), nil
}

func (s *memStore) Remove(item buffer.Item) error {
	for i, it := range s.items {
		if it.ID == item.ID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) Requeue(item buffer.Item) error {
	for i, it := range s.items {
		if it.ID == item.ID {
			s.items[i] = item
			return nil
		}
	}
	return nil
}

func (s *memStore) Size() (int, error) { return len(s.items), nil }

func (s *memStore) Cleanup(olderThan time.Time) (int, error) {
	kept := s.items[:0]
	removed := 0
	for _, it := range s.items {
		if it.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	return removed, nil
}

type onlineFlag bool

func (o onlineFlag) IsOnline() bool { return bool(o) }

type recordingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingNotifier) TasksChanged(_ context.Context, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

type chanFeed struct {
	ch        chan string
	published []string
	err       error
}

func (f *chanFeed) Publish(_ context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, userID)
	return nil
}

func (f *chanFeed) Subscribe(context.Context) (<-chan string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ch, nil
}
