package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	authdb "github.com/chepyr/organism/auth-service/db"
	"github.com/chepyr/organism/internal/scheduler"
)

// NewPurgeTokensCommand creates the purge-tokens command.
func NewPurgeTokensCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Clear expired verification and restoration tokens once",
		Long: `Clear verification and restoration tokens older than TOKEN_TTL_HOURS.

auth-service runs the same job hourly; this runs it once, now.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurgeTokens(rootOpts, cmd)
		},
	}
}

func runPurgeTokens(opts *RootOptions, cmd *cobra.Command) error {
	cfg, conn, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
	defer cancel()

	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	opts.logf(cmd.ErrOrStderr(), "Purging tokens older than %s", ttl)

	n, err := scheduler.PurgeTokens(ctx, authdb.NewUserRepository(conn), ttl, opts.now().UTC())
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]int64{"purged": n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged expired tokens for %d users\n", n)
	return nil
}
