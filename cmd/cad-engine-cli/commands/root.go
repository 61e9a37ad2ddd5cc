// Package commands wires up the cad-engine-cli command tree.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "cad-engine-cli",
	Short: "CAD Conversion Engine - STEP and IGES models to STL meshes",
	Long: `cad-engine-cli drives the CAD conversion engine from the terminal.
Convert STEP/IGES exchange files to STL locally, run batches across many
files, inspect finished meshes, browse conversion history, render HTML
reports, or serve the HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Local overrides come from .env when present
		_ = godotenv.Load()
		ui.InitUI(noColor)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
