package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/repository"
)

type taskEventRepository struct {
	pool *pgxpool.Pool
}

// NewTaskEventRepository creates the Postgres-backed task audit trail.
func NewTaskEventRepository(pool *pgxpool.Pool) repository.TaskEventRepository {
	return &taskEventRepository{pool: pool}
}

func (r *taskEventRepository) Append(ctx context.Context, event domain.TaskEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO task_events (id, task_id, user_id, name, payload, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	`

	var payload []byte
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TaskID,
		event.UserID,
		event.Name,
		payload,
		marshalMap(event.Metadata),
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *taskEventRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]domain.TaskEvent, error) {
	const query = `
	SELECT id, task_id, user_id, name, payload, metadata, created_at
	FROM task_events
	WHERE task_id = $1
	ORDER BY created_at DESC
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, taskID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TaskEvent
	for rows.Next() {
		var (
			event    domain.TaskEvent
			payload  []byte
			metadata []byte
		)
		if err := rows.Scan(&event.ID, &event.TaskID, &event.UserID, &event.Name, &payload, &metadata, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			event.Payload = append(json.RawMessage(nil), payload...)
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &event.Metadata)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
