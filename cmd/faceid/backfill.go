package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill-timestamps",
	Short: "Store default registered_at and updated_at on identities missing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := db.BackfillTimestamps(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Printf("Migration completed. Updated %d identities.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
