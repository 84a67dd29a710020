package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mediaconv/internal/config"
	"mediaconv/internal/logging"
	"mediaconv/internal/notifications"
	"mediaconv/internal/queue"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or running job",
		Long: "Cancel a job. Pending jobs fail immediately; a running job is stopped by its\n" +
			"worker at the next checkpoint.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				accepted, err := store.RequestCancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !accepted {
					fmt.Fprintf(out, "Job %d already finished\n", id)
					return nil
				}
				job, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job != nil && job.State == queue.StateFailed {
					fmt.Fprintf(out, "Job %d cancelled\n", id)
					notifyCancelled(cmd.Context(), cfg, store, job, ctx.logger())
					return nil
				}
				fmt.Fprintf(out, "Cancellation requested for job %d\n", id)
				return nil
			})
		},
	}
}

func newRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Queue a failed job again as a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				newID, err := store.Requeue(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d requeued as job %d\n", id, newID)
				return nil
			})
		},
	}
}

// notifyCancelled reports a job the store failed on the spot. No worker sees
// it again, so the CLI sends the failure notification itself.
func notifyCancelled(ctx context.Context, cfg *config.Config, store *queue.Store, job *queue.Job, logger *slog.Logger) {
	attempts, err := store.Attempts(ctx, job.ID)
	if err != nil {
		logger.Warn("attempt history unavailable for cancel notification", logging.Error(err))
	}
	failure := notifications.Failure{
		Job:      job,
		Reason:   queue.ReasonCancelled,
		Attempts: attempts,
	}
	if job.LastError != nil {
		failure.Message = job.LastError.Message
	}
	if err := notifications.NewService(cfg, logger).NotifyFailure(ctx, failure); err != nil {
		logger.Warn("cancel notification failed", logging.Error(err))
	}
}
