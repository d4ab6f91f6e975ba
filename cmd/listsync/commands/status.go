package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"membership_sync/internal/app"

	"github.com/spf13/cobra"
)

var statusLogLimit *int

func init() {
	statusLogLimit = statusCmd.Flags().IntP("log", "n", 10, "Number of log entries to show.")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [-n <entries>]",
	Short: "Shows snapshot sizes, last-updated markers and the latest log entries.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setupLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		// Status only reads the ledger.
		svc := app.NewSyncService(e.ledger, nil, nil, nil, app.MailingListCredentials{}, nil, e.log)
		snapshots, entries, err := svc.Status(cmd.Context(), *statusLogLimit)
		if err != nil {
			return err
		}

		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(out, "SNAPSHOT\tSIZE\tUPDATED")
		for _, s := range snapshots {
			updated := "never"
			if !s.UpdatedAt.IsZero() {
				updated = s.UpdatedAt.Local().Format(time.RFC3339)
			}
			fmt.Fprintf(out, "%s\t%d\t%s\n", s.Name, s.Size, updated)
		}
		if err := out.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout())
		for _, entry := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", entry.LoggedAt.Local().Format(time.RFC3339), entry.Message)
		}
		return nil
	},
}
