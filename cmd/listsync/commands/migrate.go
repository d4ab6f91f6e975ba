package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the ledger tables if they do not exist.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// setupLedger already applies the schema.
		e, err := setupLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		e.log.Info("Ledger schema is up to date.")
		return nil
	},
}
