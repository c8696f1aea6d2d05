package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/cobra"

	"studybuddy/internal/config"
)

// RootOptions enthält die globalen Flags aller Befehle
type RootOptions struct {
	ConfigPath string

	// LookupEnv liest Umgebungsvariablen (Standard: os.LookupEnv)
	LookupEnv func(string) (string, bool)
}

// NewRootCommand erstellt den Wurzelbefehl "studybuddy"
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LookupEnv: os.LookupEnv})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "studybuddy",
		Short:         "StudyBuddy - Lernbegleiter-Backend",
		Long:          "Backend für Fächer, Lern-Timer, Kalender, Materialien, Lernpartner und Chat.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.yaml", "Pfad zur Konfigurationsdatei (JSON oder YAML)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// Execute startet die Kommandozeile
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

// loadConfig lädt Datei und Umgebung. Eine fehlende Datei ist kein Fehler.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("⚠️  Keine Konfigurationsdatei %s, verwende Standardwerte", opts.ConfigPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("konfiguration laden: %w", err)
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg.ApplyEnv(lookup)
	return cfg, nil
}
