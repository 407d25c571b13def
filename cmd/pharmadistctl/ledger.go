package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/app"
	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
	"github.com/pharmadist/pharmadist-erp/jobs"
)

var errLedgerUnhealthy = errors.New("ledger integrity: discrepancies found")

func newLedgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger maintenance",
	}
	cmd.AddCommand(newLedgerCheckCommand())
	return cmd
}

func newLedgerCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the ledger integrity check and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			ctx := cmd.Context()
			pool, err := db.New(ctx, cfg.PGDSN, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := app.NewLogger(cfg)
			job := jobs.NewLedgerIntegrityJob(accounting.NewService(accounting.NewRepository(pool), nil, logger), logger, nil)
			return runLedgerCheck(cmd, job)
		},
	}
}

type integrityRunner interface {
	Run(ctx context.Context) (accounting.IntegrityReport, error)
}

func runLedgerCheck(cmd *cobra.Command, runner integrityRunner) error {
	report, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Healthy() {
		return errLedgerUnhealthy
	}
	return nil
}
