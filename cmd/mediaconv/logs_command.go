package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediaconv/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines   int
		follow  bool
		jobID   int64
		attempt int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log or a job's transcoder log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.DaemonLogPath()
			if jobID > 0 {
				if attempt <= 0 {
					attempt = 1
				}
				path = cfg.AttemptLogPath(jobID, attempt)
			} else if cmd.Flags().Changed("attempt") {
				return fmt.Errorf("--attempt requires --job")
			}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(tail) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No log output at %s\n", path)
				}
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, offset, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new lines")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Show the transcoder log of this job")
	cmd.Flags().IntVar(&attempt, "attempt", 1, "Attempt number for --job")
	return cmd
}
