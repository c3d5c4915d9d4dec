// Package cli implements organismctl, the operator command line for the organism services.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/chepyr/organism/internal/config"
	dbconn "github.com/chepyr/organism/internal/db"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"

	// Now is the clock used when a command is not given an explicit instant.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for organismctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Now: time.Now}

	cmd := &cobra.Command{
		Use:   "organismctl",
		Short: "Operator tools for the organism task services",
		Long: `Operator tools for the organism task services.

Reads the same .env, CONFIG_FILE and environment variables as auth-service
and tasks-service, and talks to their database directly.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewBucketsCommand(opts))
	cmd.AddCommand(NewPurgeTokensCommand(opts))

	return cmd
}

func (o *RootOptions) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o *RootOptions) logf(w io.Writer, format string, args ...any) {
	if o.Verbose {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// open loads the shared configuration and connects to its database.
func (o *RootOptions) open(cmd *cobra.Command) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	o.logf(cmd.ErrOrStderr(), "Connecting to %s database", cfg.DBDriver)
	conn, err := dbconn.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, conn, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
