package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"plantit/internal/app"
)

func serveCommand(e *env) *cobra.Command {
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reminder service until interrupted",
		Long:  "Serve arms a reminder for every schedule, sends a daily digest of overdue care and, when Telegram is configured, answers bot commands and reminder buttons.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.NewApp(e.cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
				defer cancel()
				_ = a.Stop(stopCtx, app.StopFatalError)
				return err
			}

			select {
			case <-ctx.Done():
			case <-a.Done():
			}
			reason := app.StopSignal
			if ctx.Err() == nil {
				reason = app.StopFatalError
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			_ = a.Stop(stopCtx, reason)
			return a.Err()
		},
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "Upper bound for graceful shutdown")
	return cmd
}
