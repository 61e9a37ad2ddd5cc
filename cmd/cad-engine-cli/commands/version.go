package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/kernel"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and configured backends",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("cad-engine-cli v%s\n", config.Version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.KeyValue("Kernel backend", cfg.Kernel.Backend)
	ui.KeyValue("Engine", kernel.EngineName(cfg.Kernel.Backend))
	ui.KeyValue("Database driver", cfg.Database.Driver)
	return nil
}
