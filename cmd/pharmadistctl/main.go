package main

import (
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pharmadistctl",
		Short: "Operator tooling for the PharmaDist ERP",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newJobsCommand())
	rootCmd.AddCommand(newLedgerCommand())

	return rootCmd
}
