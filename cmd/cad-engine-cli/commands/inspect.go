package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
	"github.com/meshforge/cad-engine/internal/stl"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.stl>",
	Short: "Decode a binary STL and print mesh statistics",
	Long: `Inspect decodes a binary STL file and prints its triangle count,
bounding box, and facet area statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open stl: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat stl: %w", err)
	}

	probe := make([]byte, 512)
	n, err := io.ReadFull(f, probe)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("read stl: %w", err)
	}
	if stl.IsASCII(probe[:n]) {
		return fmt.Errorf("%s looks like ASCII STL; inspect reads binary STL only", filepath.Base(path))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind stl: %w", err)
	}

	bar := ui.NewByteBar(fi.Size(), fmt.Sprintf("reading %s", filepath.Base(path)))
	mesh, err := stl.Decode(io.TeeReader(f, bar))
	bar.Finish()
	if err != nil {
		return fmt.Errorf("decode stl: %w", err)
	}

	stats := stl.ComputeStats(mesh)

	ui.Section("Mesh")
	ui.KeyValue("File", path)
	ui.KeyValue("Size", ui.FormatBytes(fi.Size()))
	ui.KeyValue("Triangles", stats.TriangleCount)
	if mesh.Header != "" {
		ui.KeyValue("Header", mesh.Header)
	}

	ui.Section("Bounding Box")
	axes := []string{"X", "Y", "Z"}
	rows := make([][]string, 0, len(axes))
	for i, axis := range axes {
		rows = append(rows, []string{
			axis,
			fmt.Sprintf("%.4f", stats.BBoxMin[i]),
			fmt.Sprintf("%.4f", stats.BBoxMax[i]),
			fmt.Sprintf("%.4f", stats.BBoxMax[i]-stats.BBoxMin[i]),
		})
	}
	ui.Table([]string{"Axis", "Min", "Max", "Extent"}, rows)

	ui.Section("Facet Areas")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Surface area", fmt.Sprintf("%.4f", stats.SurfaceArea)},
		{"Mean", fmt.Sprintf("%.6f", stats.AreaMean)},
		{"Median", fmt.Sprintf("%.6f", stats.AreaMedian)},
		{"P95", fmt.Sprintf("%.6f", stats.AreaP95)},
		{"Std dev", fmt.Sprintf("%.6f", stats.AreaStdDev)},
	})

	return nil
}
