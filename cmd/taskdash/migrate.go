package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pgInfra "github.com/fastygo/taskdash/internal/infrastructure/postgres"
)

func migrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pgInfra.Up), string(pgInfra.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			direction := pgInfra.Up
			if len(args) == 1 {
				direction = pgInfra.Direction(args[0])
			}
			if direction == pgInfra.Down && steps <= 0 {
				return fmt.Errorf("migrate down needs --steps")
			}
			return pgInfra.Migrate(cfg, direction, steps, log)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 = all, up only)")
	return cmd
}
