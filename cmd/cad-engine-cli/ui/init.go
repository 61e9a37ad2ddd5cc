// Package ui renders terminal output for the CAD engine CLI: sections,
// tables, status lines and progress displays.
package ui

import (
	"os"

	"github.com/fatih/color"
)

// InitUI applies global presentation settings before any command output.
func InitUI(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
