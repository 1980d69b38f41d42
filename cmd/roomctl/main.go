package main

import (
	"fmt"
	"os"

	"github.com/AdamBeresnev/op-booking-app/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var dbPath string

	rootCmd := &cobra.Command{
		Use:   "roomctl",
		Short: "Maintenance commands for the booking database",
		Long: `roomctl works directly on the booking database: apply migrations,
preview join codes and fixture lists, and print league tables.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.FromEnv(os.LookupEnv).DBPath, "Path of the SQLite database")

	rootCmd.AddCommand(
		newMigrateCmd(&dbPath),
		newCodeCmd(),
		newFixturesCmd(),
		newStandingsCmd(&dbPath),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "roomctl: %s\n", err)
		os.Exit(1)
	}
}
