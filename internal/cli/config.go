package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCommand erstellt "config" mit dem Unterbefehl "check"
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Konfiguration prüfen",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Konfiguration und Pflicht-Umgebungsvariablen prüfen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Konfiguration gültig")
			fmt.Fprintf(cmd.OutOrStdout(), "   Datenbank: %s\n", cfg.DatabasePath)
			fmt.Fprintf(cmd.OutOrStdout(), "   Materialien: %s\n", cfg.StoragePath)
			fmt.Fprintf(cmd.OutOrStdout(), "   Timer: %d/%d/%d Minuten\n",
				cfg.Timer.StudyMinutes, cfg.Timer.ShortBreakMinutes, cfg.Timer.LongBreakMinutes)
			return nil
		},
	})

	return cmd
}
