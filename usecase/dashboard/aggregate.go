package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fastygo/taskdash/domain"
)

const day = 24 * time.Hour

// CompletionSource selects the timestamp treated as "time of completion".
type CompletionSource string

const (
	// CompletionFromUpdatedAt uses the last-edit stamp. An edit made after
	// completion moves the attributed completion day.
	CompletionFromUpdatedAt CompletionSource = "updated_at"
	// CompletionFromCompletedAt uses the dedicated completion stamp and falls
	// back to UpdatedAt for records written before it existed.
	CompletionFromCompletedAt CompletionSource = "completed_at"
)

// ParseCompletionSource maps a config value onto a CompletionSource.
func ParseCompletionSource(raw string) (CompletionSource, error) {
	switch src := CompletionSource(strings.ToLower(strings.TrimSpace(raw))); src {
	case "", CompletionFromUpdatedAt:
		return CompletionFromUpdatedAt, nil
	case CompletionFromCompletedAt:
		return src, nil
	default:
		return "", fmt.Errorf("unknown completion source %q", raw)
	}
}

// Options tunes Aggregate. The zero value reproduces the UpdatedAt behavior.
type Options struct {
	CompletionSource CompletionSource
}

func (o Options) completionTime(t *domain.Task) time.Time {
	if o.CompletionSource == CompletionFromCompletedAt && t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.UpdatedAt
}

// Aggregate derives dashboard figures from one user's task list as seen at now.
// Day boundaries use now's location. tasks is never modified.
func Aggregate(tasks []domain.Task, now time.Time, opts Options) domain.DashboardStats {
	if len(tasks) == 0 {
		return domain.EmptyDashboardStats()
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := today.Add(-7 * day)
	monthAgo := today.Add(-30 * day)

	stats := domain.DashboardStats{TotalTasks: len(tasks)}

	var (
		durationSum float64
		durationN   int
	)
	for i := range tasks {
		t := &tasks[i]

		switch t.Priority {
		case domain.PriorityHigh:
			stats.HighPriorityTasks++
		case domain.PriorityMedium:
			stats.MediumPriorityTasks++
		case domain.PriorityLow:
			stats.LowPriorityTasks++
		}

		if !t.CreatedAt.IsZero() {
			stats.TodayCreated += countSince(t.CreatedAt, today)
			stats.WeekCreated += countSince(t.CreatedAt, weekAgo)
			stats.MonthCreated += countSince(t.CreatedAt, monthAgo)
		}

		if !t.Completed {
			if t.IsOverdue(now) {
				stats.OverdueTasks++
			}
			continue
		}

		stats.CompletedTasks++
		done := opts.completionTime(t)
		if done.IsZero() {
			continue
		}
		stats.TodayCompleted += countSince(done, today)
		stats.WeekCompleted += countSince(done, weekAgo)
		stats.MonthCompleted += countSince(done, monthAgo)

		if !t.CreatedAt.IsZero() {
			durationSum += done.Sub(t.CreatedAt).Hours() / 24
			durationN++
		}
	}
	stats.PendingTasks = stats.TotalTasks - stats.CompletedTasks

	stats.CompletionRate = percent(stats.CompletedTasks, stats.TotalTasks)
	stats.PriorityDistribution = domain.PriorityDistribution{
		High:   percent(stats.HighPriorityTasks, stats.TotalTasks),
		Medium: percent(stats.MediumPriorityTasks, stats.TotalTasks),
		Low:    percent(stats.LowPriorityTasks, stats.TotalTasks),
	}

	stats.WeeklyTrend = completionTrend(tasks, today, domain.WeeklyTrendDays, opts)
	stats.MonthlyTrend = completionTrend(tasks, today, domain.MonthlyTrendDays, opts)

	if durationN > 0 {
		stats.AverageCompletionTime = durationSum / float64(durationN)
	}

	stats.ProductivityScore = productivityScore(stats)
	return stats
}

// completionTrend buckets completions into days half-open [d, d+24h), oldest
// first, with the last bucket starting at today.
func completionTrend(tasks []domain.Task, today time.Time, days int, opts Options) []int {
	trend := make([]int, days)
	for idx := range trend {
		start := today.Add(-time.Duration(days-1-idx) * day)
		end := start.Add(day)
		for i := range tasks {
			t := &tasks[i]
			if !t.Completed {
				continue
			}
			done := opts.completionTime(t)
			if done.IsZero() {
				continue
			}
			if !done.Before(start) && done.Before(end) {
				trend[idx]++
			}
		}
	}
	return trend
}

// productivityScore weighs completion rate (up to 40), each completion this
// week (5), each completion today (10) and a 20 point allowance eroded by 5
// per overdue task. Only the sum is clamped.
func productivityScore(s domain.DashboardStats) int {
	raw := s.CompletionRate*0.4 +
		float64(s.WeekCompleted)*5 +
		float64(s.TodayCompleted)*10 +
		math.Max(0, 20-float64(s.OverdueTasks)*5)
	return int(math.Min(100, math.Round(raw)))
}

func countSince(ts, threshold time.Time) int {
	if ts.Before(threshold) {
		return 0
	}
	return 1
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
