package domain

import (
	"testing"
	"time"
)

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{"high": PriorityHigh, " Medium ": PriorityMedium, "LOW": PriorityLow}
	for raw, want := range cases {
		got, err := ParsePriority(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePriority(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParsePriority("urgent"); !IsDomainError(err, ErrCodeInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestToggleKeepsCompletionStamp(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	task := Task{Title: "x", Priority: PriorityLow}

	task.Toggle(now)
	if !task.Completed || task.CompletedAt == nil || !task.CompletedAt.Equal(now) || !task.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected state after completing: %+v", task)
	}
	later := now.Add(time.Hour)
	task.Toggle(later)
	if task.Completed || task.CompletedAt != nil || !task.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected state after reopening: %+v", task)
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if !(&Task{DueDate: &past}).IsOverdue(now) {
		t.Fatal("expected overdue")
	}
	if (&Task{DueDate: &future}).IsOverdue(now) {
		t.Fatal("future due date is not overdue")
	}
	if (&Task{DueDate: &past, Completed: true}).IsOverdue(now) {
		t.Fatal("completed task is not overdue")
	}
	if (&Task{}).IsOverdue(now) {
		t.Fatal("task without due date is not overdue")
	}
}

func TestTaskPatchApply(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	due := now.Add(24 * time.Hour)
	task := Task{Title: "old", Priority: PriorityLow, DueDate: &due}

	done := true
	TaskPatch{Completed: &done, ClearDue: true}.Apply(&task, now)
	if !task.Completed || task.CompletedAt == nil || task.DueDate != nil || !task.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected task: %+v", task)
	}

	stamp := *task.CompletedAt
	TaskPatch{Completed: &done}.Apply(&task, now.Add(time.Hour))
	if !task.CompletedAt.Equal(stamp) {
		t.Fatal("re-completing must not move the completion stamp")
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Ada@Example.COM ")
	if err != nil || got != "ada@example.com" {
		t.Fatalf("unexpected %q %v", got, err)
	}
	for _, raw := range []string{"", "ada", "Ada <ada@example.com>"} {
		if _, err := NormalizeEmail(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(ErrForbidden) != ErrCodeForbidden {
		t.Fatal("expected forbidden code")
	}
	if CodeOf(WrapError(ErrCodeConflict, "x", ErrTaskNotFound)) != ErrCodeConflict {
		t.Fatal("expected outer code to win")
	}
	if CodeOf(nil) != ErrCodeInternal {
		t.Fatal("expected internal for plain errors")
	}
}
