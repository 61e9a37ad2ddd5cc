package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
)

var (
	convertOutput  string
	convertASCII   bool
	convertLinear  float64
	convertAngular float64
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a STEP/IGES file to STL",
	Long: `Convert runs one exchange file through the local conversion pipeline
and writes the STL mesh next to the input, or to --output.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output STL path (default: <input stem>.stl)")
	convertCmd.Flags().BoolVar(&convertASCII, "ascii", false, "write ASCII STL instead of binary")
	convertCmd.Flags().Float64Var(&convertLinear, "linear", 0, "linear deflection override, absolute model units")
	convertCmd.Flags().Float64Var(&convertAngular, "angular", 0, "angular deflection override, radians")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyDeflectionOverrides(cmd, cfg, convertLinear, convertAngular); err != nil {
		return err
	}
	logger := newLogger()

	inputPath := args[0]
	outputPath := convertOutput
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath)
	}

	ui.Section("CAD Conversion")
	ui.Info("Input: %s", inputPath)
	ui.Info("Output: %s", outputPath)
	ui.Newline()

	svc, cleanup, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	spinner := ui.NewSpinner(fmt.Sprintf("Converting %s...", filepath.Base(inputPath)))
	spinner.Start()
	result, err := convertPath(ctx, svc, inputPath, outputPath, convertASCII)
	spinner.Stop()
	if err != nil {
		return err
	}

	ui.Success("Conversion completed")
	ui.Newline()
	ui.Section("Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Output", outputPath},
		{"Format", string(result.Format)},
		{"Engine", svc.Engine()},
		{"Triangles", fmt.Sprintf("%d", result.TriangleCount)},
		{"STL size", ui.FormatBytes(result.SizeBytes)},
		{"Validate", ui.FormatDuration(result.Timings.Validate)},
		{"Read", ui.FormatDuration(result.Timings.Read)},
		{"Mesh", ui.FormatDuration(result.Timings.Mesh)},
		{"Write", ui.FormatDuration(result.Timings.Write)},
		{"Total", ui.FormatDuration(result.Duration)},
	})

	return nil
}
