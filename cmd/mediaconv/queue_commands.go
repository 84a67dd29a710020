package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaconv/internal/config"
	"mediaconv/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var stateFilters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			states := make([]queue.State, 0, len(stateFilters))
			for _, raw := range stateFilters {
				state, ok := queue.ParseState(raw)
				if !ok {
					return fmt.Errorf("unknown state %q", raw)
				}
				states = append(states, state)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]jobView, 0, len(jobs))
					for _, job := range jobs {
						views = append(views, newJobView(job, nil))
					}
					return writeJSON(cmd, views)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable("",
					[]string{"ID", "Title", "Type", "State", "Attempts", "Last error", "Updated"},
					buildJobListRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&stateFilters, "state", "s", nil, "Filter by job state (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job with its attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				attempts, err := store.Attempts(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, newJobView(job, attempts))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %d: %s\n", job.ID, job.Title)
				fmt.Fprintf(out, "  State:      %s\n", stateLabel(job))
				fmt.Fprintf(out, "  Type:       %s\n", job.MediaType)
				if job.Series != nil {
					fmt.Fprintf(out, "  Series:     %s S%02dE%02d\n", job.Series.SeriesName, job.Series.Season, job.Series.Episode)
				}
				fmt.Fprintf(out, "  Source:     %s\n", job.SourcePath)
				if job.OutputPath != "" {
					fmt.Fprintf(out, "  Output:     %s\n", job.OutputPath)
				}
				fmt.Fprintf(out, "  Params:     %s\n", formatParams(job.Params))
				if job.Probe != nil {
					fmt.Fprintf(out, "  Source:     %dx%d %s %d-bit hdr=%s\n",
						job.Probe.Width, job.Probe.Height, job.Probe.VideoCodec, job.Probe.BitDepth, yesNo(job.Probe.HDR))
				}
				if job.LastError != nil {
					fmt.Fprintf(out, "  Last error: %s (%s) %s\n", job.LastError.Reason, job.LastError.Kind, job.LastError.Message)
				}
				if job.ClaimedBy != "" {
					fmt.Fprintf(out, "  Claimed by: %s until %s\n", job.ClaimedBy, formatTimestamp(job.ClaimExpiry))
				}
				if len(attempts) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(attempts))
				for _, a := range newJobView(job, attempts).Attempts {
					rows = append(rows, []string{
						strconv.Itoa(a.Number), a.Outcome, a.Reason,
						strconv.Itoa(a.FrameBufs), strconv.Itoa(a.BFrames), a.PaddingMode,
						a.Duration, a.Timestamp,
					})
				}
				fmt.Fprint(out, renderTable("Attempts",
					[]string{"#", "Outcome", "Reason", "Frame buffers", "B-frames", "Padding", "Duration", "When"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable("",
					[]string{"State", "Count"},
					buildStatsRows(stats),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Database: %s\n", health.DBPath)
				fmt.Fprintln(out, renderStatusLine("Readable", boolKind(health.DatabaseReadable), "", colorize))
				schema := strconv.Itoa(health.SchemaVersion)
				if health.SchemaVersion != queue.SchemaVersion {
					schema += fmt.Sprintf(" (expected %d)", queue.SchemaVersion)
				}
				fmt.Fprintln(out, renderStatusLine("Schema version", boolKind(health.SchemaVersion == queue.SchemaVersion), schema, colorize))
				missing := ""
				if len(health.MissingTables) > 0 {
					missing = "missing " + strings.Join(health.MissingTables, ", ")
				}
				fmt.Fprintln(out, renderStatusLine("Tables", boolKind(len(health.MissingTables) == 0), missing, colorize))
				fmt.Fprintln(out, renderStatusLine("Integrity", boolKind(health.IntegrityCheck), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Jobs", statusOK, strconv.Itoa(health.TotalJobs), colorize))
				fmt.Fprintln(out, renderStatusLine("Attempts", statusOK, strconv.Itoa(health.TotalAttempts), colorize))
				if health.Error != "" {
					return fmt.Errorf("queue database unhealthy: %s", health.Error)
				}
				return nil
			})
		},
	}
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete terminal jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				window := cfg.Retention()
				if cmd.Flags().Changed("older-than-days") {
					window = time.Duration(days) * 24 * time.Hour
				}
				if window <= 0 {
					return fmt.Errorf("retention disabled; pass --older-than-days")
				}
				removed, err := store.Purge(cmd.Context(), time.Now().Add(-window))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d jobs\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "older-than-days", 0, "Override workflow.retention_days")
	return cmd
}
