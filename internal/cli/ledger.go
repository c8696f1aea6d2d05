package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"studybuddy/internal/rewards"
	"studybuddy/internal/storage"
)

// NewLedgerCommand gibt den Punktestand eines Nutzers als JSON aus
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Punktestand eines Nutzers aus der Datenbank berechnen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("datenbank öffnen: %w", err)
			}
			defer store.Close()

			sessions, err := store.GetStudySessions(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("sitzungen laden: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rewards.Recompute(sessions))
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Nutzer-ID")
	cmd.MarkFlagRequired("user")

	return cmd
}
