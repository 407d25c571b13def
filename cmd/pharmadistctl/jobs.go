package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/pharmadist/pharmadist-erp/internal/app"
	"github.com/pharmadist/pharmadist-erp/jobs"
)

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(newJobsTriggerCommand())
	cmd.AddCommand(newJobsStatsCommand())
	return cmd
}

func newJobsTriggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "trigger <name>",
		Short:     "Enqueue a job with its default payload (" + strings.Join(jobs.TaskNames, ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TaskNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := jobs.NewTask(args[0]); err != nil {
				return err
			}
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer func() { _ = client.Close() }()

			info, err := client.Trigger(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
}

func newJobsStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the default queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer func() { _ = inspector.Close() }()

			stats, err := jobs.InspectQueue(inspector)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
