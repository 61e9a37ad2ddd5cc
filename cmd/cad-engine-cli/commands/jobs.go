package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshforge/cad-engine/cmd/cad-engine-cli/ui"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent conversion jobs",
	Long:  "Jobs lists the most recent conversion jobs recorded in the job store.",
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum jobs to list")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
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

	jobs, err := repo.ListRecent(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		ui.Info("No conversions recorded yet")
		return nil
	}

	ui.Section("Recent Conversions")
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID.String()[:8],
			job.Filename,
			string(job.Status),
			job.Stage,
			fmt.Sprintf("%d", job.TriangleCount),
			ui.FormatDuration(time.Duration(job.DurationMS) * time.Millisecond),
			job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	ui.Table([]string{"ID", "File", "Status", "Stage", "Triangles", "Duration", "Created"}, rows)

	return nil
}
