package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/spellbook/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Work with seed catalog files",
}

var seedValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a seed file against the seed schema",
	Long: `Check a seed file against the seed schema without starting a server.

A file that passes is safe to drop in as init.json or to serve from seed.url.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		s, err := seed.Parse(data)
		if err != nil {
			return err
		}

		fmt.Printf("%s: ok (version %v)\n", args[0], s.Version)
		fmt.Printf("  models:   %d\n", len(s.Models))
		fmt.Printf("  tags:     %d\n", len(s.Tags))
		fmt.Printf("  snippets: %d\n", len(s.Snippets))
		fmt.Printf("  formulas: %d\n", len(s.Formulas))
		fmt.Printf("  settings: %d\n", len(s.Settings))
		return nil
	},
}

func init() {
	seedCmd.AddCommand(seedValidateCmd)
	rootCmd.AddCommand(seedCmd)
}
