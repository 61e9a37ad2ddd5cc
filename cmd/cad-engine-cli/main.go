package main

import (
	"os"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/commands"
	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
