package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
	"github.com/meshforge/cad-engine/internal/domain"
)

var (
	batchWorkers   int
	batchOutputDir string
	batchASCII     bool
	batchLinear    float64
	batchAngular   float64
)

var batchCmd = &cobra.Command{
	Use:   "batch <glob>...",
	Short: "Convert many STEP/IGES files concurrently",
	Long: `Batch expands the given paths or glob patterns and converts every match
through a bounded worker pool, writing each STL next to its input or
into --output-dir.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 4, "concurrent conversions")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output-dir", "o", "", "directory for STL outputs (default: next to each input)")
	batchCmd.Flags().BoolVar(&batchASCII, "ascii", false, "write ASCII STL instead of binary")
	batchCmd.Flags().Float64Var(&batchLinear, "linear", 0, "linear deflection override, absolute model units")
	batchCmd.Flags().Float64Var(&batchAngular, "angular", 0, "angular deflection override, radians")
	rootCmd.AddCommand(batchCmd)
}

type batchResult struct {
	input     string
	output    string
	triangles int
	duration  time.Duration
	err       error
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyDeflectionOverrides(cmd, cfg, batchLinear, batchAngular); err != nil {
		return err
	}
	logger := newLogger()

	files, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no input files match %v", args)
	}
	if batchWorkers < 1 {
		batchWorkers = 1
	}

	outputs, err := planOutputs(files, batchOutputDir)
	if err != nil {
		return err
	}

	ui.Section("Batch Conversion")
	ui.Info("Files: %d", len(files))
	ui.Info("Workers: %d", batchWorkers)
	ui.Newline()

	svc, cleanup, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	mp := ui.NewMultiProgress()
	g := new(errgroup.Group)
	g.SetLimit(batchWorkers)

	results := make([]batchResult, len(files))
	for i, file := range files {
		g.Go(func() error {
			bar := mp.AddTask(filepath.Base(file))
			start := time.Now()
			res, err := convertPath(ctx, svc, file, outputs[i], batchASCII)
			bar.Increment()

			r := batchResult{input: file, output: outputs[i], duration: time.Since(start), err: err}
			if res != nil {
				r.triangles = res.TriangleCount
			}
			results[i] = r
			return nil
		})
	}
	// Workers record failures in results; the pool itself never errors.
	_ = g.Wait()
	mp.Wait()

	ui.Newline()
	ui.Section("Summary")
	rows := make([][]string, 0, len(results))
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			rows = append(rows, []string{filepath.Base(r.input), "failed", "-", ui.FormatDuration(r.duration), r.err.Error()})
			continue
		}
		rows = append(rows, []string{filepath.Base(r.input), "ok", fmt.Sprintf("%d", r.triangles), ui.FormatDuration(r.duration), r.output})
	}
	ui.Table([]string{"File", "Status", "Triangles", "Duration", "Result"}, rows)
	ui.Newline()

	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(files))
	}
	ui.Success("Converted %d files", len(files))
	return nil
}

// expandInputs resolves glob patterns to a sorted, deduplicated file list.
func expandInputs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			ui.Warning("No files match %s", pattern)
			continue
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// planOutputs maps each input to its STL path up front so filename
// collisions surface before any work runs.
func planOutputs(files []string, outputDir string) ([]string, error) {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	outputs := make([]string, len(files))
	byPath := make(map[string]string, len(files))
	for i, f := range files {
		out := defaultOutputPath(f)
		if outputDir != "" {
			out = filepath.Join(outputDir, domain.StlFilename(f))
		}
		if prev, ok := byPath[out]; ok {
			return nil, fmt.Errorf("%s and %s both map to %s", prev, f, out)
		}
		byPath[out] = f
		outputs[i] = out
	}
	return outputs, nil
}
