package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "spellbook",
	Short: "Prompt formula composer backed by a tagged snippet catalog",
	Long: `Spellbook composes image-generation prompts from formulas.

A formula is a template such as "A #{color} cat". Each #{tag} placeholder
is filled by picking snippets from the catalog, and the finished prompt can
be handed off to a companion image app.

The server owns:
  - The model, formula, tag and snippet catalog (memory, file, sqlite or DefraDB)
  - Composition sessions and the formula editor
  - Seed import and catalog maintenance`,
	Version:      version.GitRelease,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.spellbook/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "spellbook home directory (default: ~/.spellbook)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
