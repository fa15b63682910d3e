package monitor

import "time"

// Status is the outcome of one health check round. Postgres is the only dependency
// the API cannot serve without; the other fields are informational.
type Status struct {
	PostgreSQL       bool      `json:"postgresql"`
	Redis            bool      `json:"redis"`
	Buffer           bool      `json:"buffer"`
	BufferSize       int       `json:"buffer_size"`
	DashboardEntries int       `json:"dashboard_entries"`
	LastCheck        time.Time `json:"last_check"`
}

// Ready reports whether task reads and writes can reach storage.
func (s Status) Ready() bool {
	return s.PostgreSQL
}

// Down lists the unreachable components in a fixed order.
func (s Status) Down() []string {
	var down []string
	if !s.PostgreSQL {
		down = append(down, "postgresql")
	}
	if !s.Redis {
		down = append(down, "redis")
	}
	if !s.Buffer {
		down = append(down, "buffer")
	}
	return down
}

// connectivityChanged ignores sizes, which move on every check.
func (s Status) connectivityChanged(next Status) bool {
	if s.LastCheck.IsZero() {
		return false
	}
	return s.PostgreSQL != next.PostgreSQL || s.Redis != next.Redis || s.Buffer != next.Buffer
}
