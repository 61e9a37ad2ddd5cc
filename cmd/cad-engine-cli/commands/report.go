package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
	"github.com/meshforge/cad-engine/internal/storage"
)

var (
	reportDays   int
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an HTML report of conversion history",
	Long: `Report aggregates the job store by day and renders an HTML page with
outcome, duration, and mesh size charts.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 14, "days of history to include")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "conversion-report.html", "report file path")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, repo, err := openJobs(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ui.Step("Aggregating %d days of conversion history", reportDays)
	stats, err := repo.DailyStats(ctx, reportDays)
	if err != nil {
		return fmt.Errorf("aggregate history: %w", err)
	}
	if len(stats) == 0 {
		ui.Info("No conversions recorded in the last %d days", reportDays)
		return nil
	}

	page := components.NewPage()
	page.AddCharts(
		outcomesChart(stats, reportDays),
		durationChart(stats),
		trianglesChart(stats),
	)

	f, err := os.Create(reportOutput)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	ui.Success("Report written to %s", reportOutput)
	ui.KeyValue("Days", reportDays)
	ui.KeyValue("Days with activity", len(stats))
	return nil
}

func outcomesChart(stats []storage.DailyStat, days int) *charts.Bar {
	succeeded := make([]opts.BarData, 0, len(stats))
	failed := make([]opts.BarData, 0, len(stats))
	for _, s := range stats {
		succeeded = append(succeeded, opts.BarData{Value: s.Succeeded})
		failed = append(failed, opts.BarData{Value: s.Failed})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "CAD Engine Report", Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Conversions per day", Subtitle: fmt.Sprintf("last %d days", days)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(dayLabels(stats)).
		AddSeries("succeeded", succeeded).
		AddSeries("failed", failed)
	return bar
}

func durationChart(stats []storage.DailyStat) *charts.Line {
	data := make([]opts.LineData, 0, len(stats))
	for _, s := range stats {
		data = append(data, opts.LineData{Value: s.AvgDurationMS})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Average conversion duration", Subtitle: "milliseconds"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(dayLabels(stats)).
		AddSeries("avg duration", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

func trianglesChart(stats []storage.DailyStat) *charts.Line {
	data := make([]opts.LineData, 0, len(stats))
	for _, s := range stats {
		data = append(data, opts.LineData{Value: s.AvgTriangles})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Average mesh size", Subtitle: "triangles per conversion"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(dayLabels(stats)).
		AddSeries("avg triangles", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

func dayLabels(stats []storage.DailyStat) []string {
	labels := make([]string, 0, len(stats))
	for _, s := range stats {
		labels = append(labels, s.Day)
	}
	return labels
}
