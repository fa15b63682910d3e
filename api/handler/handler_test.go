package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/internal/infrastructure/monitor"
	"github.com/fastygo/taskdash/pkg/httpcontext"
	"github.com/fastygo/taskdash/repository"
	dashboardUC "github.com/fastygo/taskdash/usecase/dashboard"
	taskUC "github.com/fastygo/taskdash/usecase/task"
)

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
}

func (m *memTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &task, nil
}

func (m *memTasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, task := range m.tasks {
		if task.UserID == filter.UserID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (m *memTasks) ListByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	return m.List(ctx, repository.TaskFilter{UserID: userID})
}

func (m *memTasks) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return task, nil
}

func (m *memTasks) Update(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	m.tasks[task.ID] = *task
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

type invalidatingNotifier struct {
	dashboard *dashboardUC.UseCase
}

func (n invalidatingNotifier) TasksChanged(_ context.Context, userID string) {
	n.dashboard.Invalidate(userID)
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Meta   json.RawMessage `json:"meta"`
}

func newRequest(method, body, userID string, params map[string]string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	if userID != "" {
		ctx.SetUserValue(httpcontext.UserValueUserID, userID)
	}
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	return &ctx
}

func readEnvelope(t *testing.T, ctx *fasthttp.RequestCtx, wantStatus int) envelope {
	t.Helper()
	if ctx.Response.StatusCode() != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var env envelope
	if len(ctx.Response.Body()) == 0 {
		return env
	}
	if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return env
}

func newHandlers(t *testing.T) (*TaskHandler, *DashboardHandler, *memTasks) {
	t.Helper()
	repo := &memTasks{tasks: make(map[string]domain.Task)}
	board, err := dashboardUC.NewBoard(16)
	if err != nil {
		t.Fatal(err)
	}
	dash := dashboardUC.New(board, repo, dashboardUC.Config{Location: time.UTC}, nil)
	tasks := taskUC.New(repo, nil, nil, invalidatingNotifier{dashboard: dash}, nil)
	return NewTaskHandler(tasks, nil, nil), NewDashboardHandler(dash, nil, nil), repo
}

func TestTaskLifecycleUpdatesDashboard(t *testing.T) {
	tasks, dashboard, _ := newHandlers(t)

	ctx := newRequest("POST", `{"title":"write report","priority":"High"}`, "u1", nil)
	tasks.CreateTask(ctx)
	env := readEnvelope(t, ctx, http.StatusCreated)
	var created domain.Task
	_ = json.Unmarshal(env.Data, &created)
	if created.ID == "" || created.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected task: %+v", created)
	}

	ctx = newRequest("GET", "", "u1", nil)
	dashboard.GetDashboard(ctx)
	var view dashboardUC.View
	_ = json.Unmarshal(readEnvelope(t, ctx, http.StatusOK).Data, &view)
	if view.Loading || view.Stats.TotalTasks != 1 || view.Stats.CompletedTasks != 0 || view.Stats.HighPriorityTasks != 1 {
		t.Fatalf("unexpected dashboard: %+v", view)
	}

	ctx = newRequest("POST", "", "u1", map[string]string{"id": created.ID})
	tasks.ToggleTask(ctx)
	readEnvelope(t, ctx, http.StatusOK)

	ctx = newRequest("POST", "", "u1", nil)
	dashboard.Refresh(ctx)
	_ = json.Unmarshal(readEnvelope(t, ctx, http.StatusOK).Data, &view)
	if !view.Loading {
		t.Fatal("refresh right after a change reports loading until the next read primes the board")
	}

	ctx = newRequest("GET", "", "u1", nil)
	dashboard.GetDashboard(ctx)
	_ = json.Unmarshal(readEnvelope(t, ctx, http.StatusOK).Data, &view)
	if view.Stats.CompletedTasks != 1 || view.Stats.CompletionRate != 100 || view.Stats.TodayCompleted != 1 {
		t.Fatalf("expected completion reflected, got %+v", view.Stats)
	}

	ctx = newRequest("DELETE", "", "u1", map[string]string{"id": created.ID})
	tasks.DeleteTask(ctx)
	if ctx.Response.StatusCode() != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", ctx.Response.StatusCode())
	}
}

func TestListTasksReturnsPage(t *testing.T) {
	tasks, _, repo := newHandlers(t)
	repo.tasks["a"] = domain.Task{ID: "a", UserID: "u1", Title: "a", Priority: domain.PriorityLow}

	ctx := newRequest("GET", "", "u1", nil)
	ctx.QueryArgs().Set("limit", "10")
	tasks.GetTasks(ctx)
	env := readEnvelope(t, ctx, http.StatusOK)

	var page struct {
		Limit int `json:"limit"`
		Count int `json:"count"`
	}
	_ = json.Unmarshal(env.Meta, &page)
	if page.Limit != 10 || page.Count != 1 {
		t.Fatalf("unexpected page meta: %s", env.Meta)
	}

	ctx = newRequest("GET", "", "u1", nil)
	ctx.QueryArgs().Set("completed", "maybe")
	tasks.GetTasks(ctx)
	readEnvelope(t, ctx, http.StatusBadRequest)
}

func TestTaskHandlerErrors(t *testing.T) {
	tasks, _, repo := newHandlers(t)
	repo.tasks["theirs"] = domain.Task{ID: "theirs", UserID: "u2", Title: "x", Priority: domain.PriorityLow}

	ctx := newRequest("POST", `{"title":"x","priority":"urgent"}`, "u1", nil)
	tasks.CreateTask(ctx)
	if env := readEnvelope(t, ctx, http.StatusBadRequest); env.Code != "INVALID" {
		t.Fatalf("expected INVALID, got %s", env.Code)
	}

	ctx = newRequest("POST", `{not json`, "u1", nil)
	tasks.CreateTask(ctx)
	readEnvelope(t, ctx, http.StatusBadRequest)

	ctx = newRequest("GET", "", "u1", map[string]string{"id": "theirs"})
	tasks.GetTask(ctx)
	if env := readEnvelope(t, ctx, http.StatusForbidden); env.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", env.Code)
	}

	ctx = newRequest("GET", "", "u1", map[string]string{"id": "missing"})
	tasks.GetTask(ctx)
	readEnvelope(t, ctx, http.StatusNotFound)

	ctx = newRequest("GET", "", "", nil)
	tasks.GetTasks(ctx)
	readEnvelope(t, ctx, http.StatusUnauthorized)
}

func TestUpdateTaskClearsDueDate(t *testing.T) {
	tasks, _, repo := newHandlers(t)
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	repo.tasks["a"] = domain.Task{ID: "a", UserID: "u1", Title: "a", Priority: domain.PriorityLow, DueDate: &due}

	ctx := newRequest("PATCH", `{"due_date":"","title":"renamed"}`, "u1", map[string]string{"id": "a"})
	tasks.UpdateTask(ctx)
	readEnvelope(t, ctx, http.StatusOK)

	stored := repo.tasks["a"]
	if stored.DueDate != nil || stored.Title != "renamed" {
		t.Fatalf("unexpected stored task: %+v", stored)
	}
}

func TestParseDueDate(t *testing.T) {
	got, err := parseDueDate("2026-04-01")
	if err != nil || !got.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %v %v", got, err)
	}
	if got, err := parseDueDate(" "); err != nil || got != nil {
		t.Fatalf("expected no due date, got %v %v", got, err)
	}
	if _, err := parseDueDate("next tuesday"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrEmailTaken, http.StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrTaskNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if status, _ := mapError(tc.err); status != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, status)
		}
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	h := newBaseHandler(nil, nil)
	ctx := newRequest("GET", "", "", nil)
	h.respondError(ctx, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(ctx.Response.Body(), &body)
	if body.Error != "internal error" {
		t.Fatalf("expected masked message, got %q", body.Error)
	}
}

type staticStatus monitor.Status

func (s staticStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func TestHealth(t *testing.T) {
	ctx := newRequest("GET", "", "", nil)
	NewHealthHandler(staticStatus{PostgreSQL: true}, nil, nil).Check(ctx)
	readEnvelope(t, ctx, http.StatusOK)

	ctx = newRequest("GET", "", "", nil)
	NewHealthHandler(staticStatus{Redis: true}, nil, nil).Check(ctx)
	env := readEnvelope(t, ctx, http.StatusServiceUnavailable)
	if env.Code != "DEGRADED" {
		t.Fatalf("expected DEGRADED, got %s", env.Code)
	}
	var meta struct {
		Down []string `json:"down"`
	}
	if err := json.Unmarshal(env.Meta, &meta); err != nil || len(meta.Down) == 0 || meta.Down[0] != "postgresql" {
		t.Fatalf("expected postgresql listed as down, got %s (%v)", env.Meta, err)
	}
}
