package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chepyr/organism/internal/bucket"
	"github.com/chepyr/organism/shared/models"
	taskdb "github.com/chepyr/organism/tasks-service/db"
)

const taskTimeLayout = "2006-01-02 15:04"

// BucketsOptions holds flags for the buckets command.
type BucketsOptions struct {
	Email     string
	Now       string
	Timezone  string
	WeekStart string
}

// NewBucketsCommand creates the buckets command.
func NewBucketsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BucketsOptions{}

	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Print a user's tasks grouped into time buckets",
		Long: `Print a user's tasks grouped into time buckets, the way GET /tasks does.

The calendar defaults to TIMEZONE and WEEK_START from the configuration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuckets(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "owner email (required)")
	cmd.Flags().StringVar(&opts.Now, "now", "", "reference instant, RFC3339 (default: current time)")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA zone for day boundaries")
	cmd.Flags().StringVar(&opts.WeekStart, "week-start", "", "first day of the week")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runBuckets(rootOpts *RootOptions, opts *BucketsOptions, cmd *cobra.Command) error {
	now := rootOpts.now()
	if opts.Now != "" {
		parsed, err := time.Parse(time.RFC3339, opts.Now)
		if err != nil {
			return fmt.Errorf("invalid --now %q: %w", opts.Now, err)
		}
		now = parsed
	}

	cfg, conn, err := rootOpts.open(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	timezone, weekStart := cfg.Timezone, cfg.WeekStart
	if opts.Timezone != "" {
		timezone = opts.Timezone
	}
	if opts.WeekStart != "" {
		weekStart = opts.WeekStart
	}
	cal, err := bucket.NewCalendar(timezone, weekStart)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(opts.Email))
	ownerID, err := taskdb.NewUserRepository(conn).IDByEmail(ctx, email)
	if errors.Is(err, taskdb.ErrUserNotFound) {
		return fmt.Errorf("no user with email %q", email)
	}
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}

	tasks, err := taskdb.NewTaskRepository(conn).ListByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	rootOpts.logf(cmd.ErrOrStderr(), "Loaded %d tasks for %s", len(tasks), email)

	set := bucket.Classify(tasks, now, cal)
	if rootOpts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), bucketsJSON(email, now, cal, set))
	}
	writeBucketsText(cmd.OutOrStdout(), email, now, cal, set)
	return nil
}

type jsonBucket struct {
	Name  bucket.Name    `json:"name"`
	Title string         `json:"title"`
	Tasks []*models.Task `json:"tasks"`
}

type jsonBuckets struct {
	Email     string       `json:"email"`
	Now       time.Time    `json:"now"`
	Timezone  string       `json:"timezone"`
	WeekStart string       `json:"week_start"`
	Buckets   []jsonBucket `json:"buckets"`
}

func bucketsJSON(email string, now time.Time, cal bucket.Calendar, set bucket.Set[*models.Task]) jsonBuckets {
	loc := calendarLocation(cal)
	out := jsonBuckets{
		Email:     email,
		Now:       now.In(loc),
		Timezone:  loc.String(),
		WeekStart: cal.WeekStart.String(),
		Buckets:   []jsonBucket{},
	}
	for _, name := range set.NonEmpty() {
		out.Buckets = append(out.Buckets, jsonBucket{Name: name, Title: name.Title(), Tasks: set.Get(name)})
	}
	return out
}

// writeBucketsText prints one block per non-empty bucket, in display order.
func writeBucketsText(w io.Writer, email string, now time.Time, cal bucket.Calendar, set bucket.Set[*models.Task]) {
	loc := calendarLocation(cal)
	fmt.Fprintf(w, "Tasks for %s at %s (%s, weeks start on %s)\n",
		email, now.In(loc).Format(time.RFC3339), loc, cal.WeekStart)

	names := set.NonEmpty()
	if len(names) == 0 {
		fmt.Fprintln(w, "\nNo tasks.")
		return
	}
	for _, name := range names {
		tasks := set.Get(name)
		fmt.Fprintf(w, "\n%s (%d)\n", name.Title(), len(tasks))
		for _, t := range tasks {
			fmt.Fprintf(w, "  %s %s%s\n", checkbox(t.Completed), t.Title, window(t, loc))
		}
	}
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func window(t *models.Task, loc *time.Location) string {
	switch {
	case t.From != nil && t.To != nil:
		return fmt.Sprintf(", from %s to %s", t.From.In(loc).Format(taskTimeLayout), t.To.In(loc).Format(taskTimeLayout))
	case t.From != nil:
		return ", from " + t.From.In(loc).Format(taskTimeLayout)
	case t.To != nil:
		return ", to " + t.To.In(loc).Format(taskTimeLayout)
	}
	return ""
}

func calendarLocation(cal bucket.Calendar) *time.Location {
	if cal.Location == nil {
		return time.UTC
	}
	return cal.Location
}
