package domain

// Trend window lengths in calendar days.
const (
	WeeklyTrendDays  = 7
	MonthlyTrendDays = 30
)

// PriorityDistribution holds the share of tasks per priority, in percent.
type PriorityDistribution struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// DashboardStats is the derived summary of one user's task list. It has no
// identity of its own and is rebuilt from scratch on every input change.
type DashboardStats struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	PendingTasks   int `json:"pending_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`

	CompletionRate float64 `json:"completion_rate"`

	HighPriorityTasks   int `json:"high_priority_tasks"`
	MediumPriorityTasks int `json:"medium_priority_tasks"`
	LowPriorityTasks    int `json:"low_priority_tasks"`

	// Cumulative windows: month includes week includes today.
	TodayCompleted int `json:"today_completed"`
	WeekCompleted  int `json:"week_completed"`
	MonthCompleted int `json:"month_completed"`
	TodayCreated   int `json:"today_created"`
	WeekCreated    int `json:"week_created"`
	MonthCreated   int `json:"month_created"`

	ProductivityScore     int     `json:"productivity_score"`
	AverageCompletionTime float64 `json:"average_completion_time"` // days

	// Disjoint per-day completion counts, oldest first, ending today.
	WeeklyTrend  []int `json:"weekly_trend"`
	MonthlyTrend []int `json:"monthly_trend"`

	PriorityDistribution PriorityDistribution `json:"priority_distribution"`
}

// EmptyDashboardStats is the value reported for a user without tasks.
func EmptyDashboardStats() DashboardStats {
	return DashboardStats{
		WeeklyTrend:  make([]int, WeeklyTrendDays),
		MonthlyTrend: make([]int, MonthlyTrendDays),
	}
}
