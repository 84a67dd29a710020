package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mediaconv/internal/config"
	"mediaconv/internal/ingest"
	"mediaconv/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <path>...",
		Short: "Classify paths and queue the resulting jobs",
		Long: "Classify each path as a movie or a TV series according to the root it lives under\n" +
			"and queue one job per video file. Already queued files are reported as duplicates.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				ingester, err := ctx.newIngester(cfg, store)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				failed := 0
				for _, path := range args {
					outcome := ingester.IngestPath(cmd.Context(), path)
					printOutcome(out, outcome)
					if outcome.Disposition != ingest.DispositionQueued {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d paths not queued", failed, len(args))
				}
				return nil
			})
		},
	}
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Consume the ingestion file once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				target := strings.TrimSpace(file)
				if target == "" {
					target = cfg.Paths.QueueFile
				}
				ingester, err := ctx.newIngester(cfg, store)
				if err != nil {
					return err
				}
				report, err := ingester.ConsumeFile(cmd.Context(), target)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(report.Outcomes) == 0 {
					fmt.Fprintf(out, "Nothing to ingest in %s\n", target)
					return nil
				}
				for _, outcome := range report.Outcomes {
					printOutcome(out, outcome)
				}
				fmt.Fprintf(out, "%d new jobs, %d lines kept for the next pass\n", report.Enqueued(), len(report.Kept))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Ingestion file (defaults to paths.queue_file)")
	return cmd
}

func printOutcome(out io.Writer, outcome ingest.Outcome) {
	switch outcome.Disposition {
	case ingest.DispositionQueued:
		fmt.Fprintf(out, "queued    %s (%d new, %d duplicate)\n", outcome.Path, len(outcome.Enqueued), outcome.Duplicates)
	case ingest.DispositionDeferred:
		fmt.Fprintf(out, "deferred  %s: %v\n", outcome.Path, outcome.Err)
	default:
		reason := "no video files found"
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		fmt.Fprintf(out, "rejected  %s: %s\n", outcome.Path, reason)
	}
	for _, classErr := range outcome.Errors {
		fmt.Fprintf(out, "          skipped %s: %s\n", classErr.Path, classErr.Reason)
	}
}
