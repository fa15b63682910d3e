package dashboard

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fastygo/taskdash/domain"
)

const defaultBoardSize = 10_000

// Snapshot is a full replacement of one user's task list.
type Snapshot struct {
	UserID     string
	Tasks      []domain.Task
	ReceivedAt time.Time
}

// Board keeps the latest snapshot per user. Least recently read users are
// evicted once the board is full; they are re-primed on their next read.
//
// A storage read that primes the board runs outside any lock, so it is
// bracketed by BeginLoad and ReplaceIfUnchanged: a Replace or Forget for the
// same user in between wins over the slower read.
type Board struct {
	entries *lru.Cache[string, Snapshot]

	mu      sync.Mutex
	version uint64
	loads   map[string]*pendingLoad

	// Now stamps snapshots that arrive without ReceivedAt.
	Now func() time.Time
}

type pendingLoad struct {
	count   int
	changed uint64
}

func NewBoard(size int) (*Board, error) {
	if size <= 0 {
		size = defaultBoardSize
	}
	cache, err := lru.New[string, Snapshot](size)
	if err != nil {
		return nil, err
	}
	return &Board{
		entries: cache,
		loads:   make(map[string]*pendingLoad),
		Now:     time.Now,
	}, nil
}

// Replace stores a private copy of the snapshot and returns it.
func (b *Board) Replace(s Snapshot) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.touch(s.UserID)
	return b.store(s)
}

// BeginLoad registers a storage read for userID and returns the token to
// hand back to ReplaceIfUnchanged or EndLoad.
func (b *Board) BeginLoad(userID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	load, ok := b.loads[userID]
	if !ok {
		load = &pendingLoad{}
		b.loads[userID] = load
	}
	load.count++
	return b.version
}

// ReplaceIfUnchanged stores s unless userID was replaced or forgotten since
// BeginLoad returned token. It ends the load either way.
func (b *Board) ReplaceIfUnchanged(token uint64, s Snapshot) (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stale := b.release(s.UserID) > token
	if stale {
		return s, false
	}
	return b.store(s), true
}

// EndLoad abandons a load that produced nothing.
func (b *Board) EndLoad(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.release(userID)
}

func (b *Board) Get(userID string) (Snapshot, bool) {
	return b.entries.Get(userID)
}

// Wants reports whether a fresh snapshot for userID would be used: the user
// is on the board or a priming read is in flight. It leaves recency alone.
func (b *Board) Wants(userID string) bool {
	if b.entries.Contains(userID) {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, loading := b.loads[userID]
	return loading
}

func (b *Board) Forget(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.touch(userID)
	b.entries.Remove(userID)
}

func (b *Board) Len() int {
	return b.entries.Len()
}

// touch records a change for userID. Callers hold mu.
func (b *Board) touch(userID string) {
	b.version++
	if load, ok := b.loads[userID]; ok {
		load.changed = b.version
	}
}

// release drops one pending load and returns the version of the last change
// seen while loads were open. Callers hold mu.
func (b *Board) release(userID string) uint64 {
	load, ok := b.loads[userID]
	if !ok {
		return 0
	}
	changed := load.changed
	load.count--
	if load.count <= 0 {
		delete(b.loads, userID)
	}
	return changed
}

// store copies the task slice and stamps the arrival time. Callers hold mu.
func (b *Board) store(s Snapshot) Snapshot {
	tasks := make([]domain.Task, len(s.Tasks))
	copy(tasks, s.Tasks)
	s.Tasks = tasks
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = b.Now()
	}
	b.entries.Add(s.UserID, s)
	return s
}
