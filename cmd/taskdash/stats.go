package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fastygo/taskdash/domain"
	pgInfra "github.com/fastygo/taskdash/internal/infrastructure/postgres"
	"github.com/fastygo/taskdash/repository/postgres"
	dashboardUC "github.com/fastygo/taskdash/usecase/dashboard"
)

func statsCmd() *cobra.Command {
	var (
		userID  string
		email   string
		asJSON  bool
		atRaw   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics for one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" && email == "" {
				return errors.New("either --user or --email is required")
			}
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			location, err := cfg.Stats.Location()
			if err != nil {
				return err
			}
			source, err := dashboardUC.ParseCompletionSource(cfg.Stats.CompletionSource)
			if err != nil {
				return err
			}
			now := time.Now()
			if atRaw != "" {
				if now, err = time.Parse(time.RFC3339, atRaw); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := pgInfra.NewPool(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if userID == "" {
				email, err = domain.NormalizeEmail(email)
				if err != nil {
					return err
				}
				user, err := postgres.NewUserRepository(pool).GetByEmail(ctx, email)
				if err != nil {
					return err
				}
				userID = user.ID
			}

			tasks, err := postgres.NewTaskRepository(pool).ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			stats := dashboardUC.Aggregate(tasks, now.In(location), dashboardUC.Options{CompletionSource: source})
			return renderStats(cmd.OutOrStdout(), stats, asJSON)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email (alternative to --user)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().StringVar(&atRaw, "at", "", "evaluate as of this RFC 3339 time")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "database timeout")
	return cmd
}

func renderStats(w io.Writer, stats domain.DashboardStats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Total tasks", stats.TotalTasks},
		{"Completed", stats.CompletedTasks},
		{"Pending", stats.PendingTasks},
		{"Overdue", stats.OverdueTasks},
		{"Completion rate", fmt.Sprintf("%.1f%%", stats.CompletionRate)},
		{"Productivity score", stats.ProductivityScore},
		{"Avg completion (days)", fmt.Sprintf("%.1f", stats.AverageCompletionTime)},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Completed today / week / month", fmt.Sprintf("%d / %d / %d", stats.TodayCompleted, stats.WeekCompleted, stats.MonthCompleted)},
		{"Created today / week / month", fmt.Sprintf("%d / %d / %d", stats.TodayCreated, stats.WeekCreated, stats.MonthCreated)},
		{"Priority high / medium / low", fmt.Sprintf("%d / %d / %d", stats.HighPriorityTasks, stats.MediumPriorityTasks, stats.LowPriorityTasks)},
		{"Weekly trend", joinInts(stats.WeeklyTrend)},
	})
	tw.Render()
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
