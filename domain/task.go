package domain

import (
	"strings"
	"time"
)

// Priority ranks a task. Every task carries exactly one.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority accepts any casing and surrounding whitespace.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", NewError(ErrCodeInvalid, "priority must be one of low, medium, high")
	}
	return p, nil
}

// Task represents a user-owned todo item.
//
// UpdatedAt moves on every mutation, including the completion toggle, so it
// doubles as the completion time unless CompletedAt is populated.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks the fields a client controls.
func (t *Task) Validate() error {
	if t == nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewError(ErrCodeInvalid, "title is required")
	}
	if !t.Priority.Valid() {
		return NewError(ErrCodeInvalid, "priority must be one of low, medium, high")
	}
	return nil
}

// IsOverdue reports whether an open task is past its due date at now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t != nil && !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

// Toggle flips the completion flag and stamps the mutation.
func (t *Task) Toggle(now time.Time) {
	if t == nil {
		return
	}
	t.Completed = !t.Completed
	t.UpdatedAt = now
	if t.Completed {
		stamp := now
		t.CompletedAt = &stamp
	} else {
		t.CompletedAt = nil
	}
}

// TaskPatch carries a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
	DueDate     *time.Time
	ClearDue    bool
}

// Apply merges the patch into t. The completion stamp follows the flag.
func (p TaskPatch) Apply(t *Task, now time.Time) {
	if t == nil {
		return
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDue {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.Completed != nil && *p.Completed != t.Completed {
		t.Toggle(now)
	}
	t.UpdatedAt = now
}
