package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dbconn "github.com/chepyr/organism/internal/db"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Create the users and tasks tables if they do not exist",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	cfg, conn, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
	defer cancel()

	if err := dbconn.Migrate(ctx, conn, cfg.DBDriver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"driver": cfg.DBDriver, "status": "migrated"})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema applied (%s)\n", cfg.DBDriver)
	return nil
}
