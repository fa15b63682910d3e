package domain

import (
	"encoding/json"
	"time"
)

// Task event names recorded in the audit trail.
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskToggled = "task.toggled"
	EventTaskDeleted = "task.deleted"
)

// TaskEvent represents a change applied to a task.
type TaskEvent struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"task_id"`
	UserID    string            `json:"user_id"`
	Name      string            `json:"name"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
