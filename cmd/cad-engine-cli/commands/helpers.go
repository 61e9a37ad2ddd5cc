package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/convert"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/observability"
	"github.com/meshforge/cad-engine/internal/storage"
)

// loadConfig reads configuration from --config, CONFIG_PATH, or defaults.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a console logger for interactive commands. The default
// level keeps pipeline chatter out of command output; --verbose lowers it
// to debug.
func newLogger() *observability.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: "cad-engine-cli",
	})
}

// applyDeflectionOverrides folds --linear/--angular flag values into the
// loaded configuration, revalidating so flag values face the same range
// checks as config values.
func applyDeflectionOverrides(cmd *cobra.Command, cfg *config.Config, linear, angular float64) error {
	if cmd.Flags().Changed("linear") {
		cfg.Conversion.LinearDeflection = linear
	}
	if cmd.Flags().Changed("angular") {
		cfg.Conversion.AngularDeflection = angular
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// openJobs connects to the configured job store and applies migrations.
func openJobs(cfg *config.Config) (*sql.DB, *storage.JobRepository, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open job store: %w", err)
	}
	if err := storage.RunMigrations(db, cfg.Database.Driver); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate job store: %w", err)
	}
	return db, storage.NewJobRepository(db), nil
}

// buildService assembles a conversion service for local one-shot commands.
// The job store is best effort here: conversions still run when it is
// unreachable, they just go unrecorded. The returned cleanup releases the
// kernel session and the store connection.
func buildService(cfg *config.Config, logger *observability.Logger) (*convert.Service, func(), error) {
	k, err := kernel.New(cfg.Kernel, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("start kernel: %w", err)
	}

	pipeline := convert.NewPipeline(convert.PipelineConfig{
		WorkDir:           cfg.Conversion.WorkDir,
		MaxFileSizeBytes:  cfg.MaxFileSizeBytes(),
		LinearDeflection:  cfg.Conversion.LinearDeflection,
		AngularDeflection: cfg.Conversion.AngularDeflection,
	}, k, logger)

	var opts convert.ServiceOptions
	var db *sql.DB
	if jobsDB, jobs, err := openJobs(cfg); err != nil {
		logger.Warn().Err(err).Msg("Job store unavailable, conversions will not be recorded")
	} else {
		db = jobsDB
		opts.Jobs = jobs
	}

	svc := convert.NewService(pipeline, opts, logger)
	cleanup := func() {
		if db != nil {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("Job store close failed")
			}
		}
		if err := k.Close(); err != nil {
			logger.Warn().Err(err).Msg("Kernel close failed")
		}
	}
	return svc, cleanup, nil
}

// convertPath runs one file through the conversion service and writes the
// STL artifact next to it or wherever outPath points.
func convertPath(ctx context.Context, svc *convert.Service, path, outPath string, ascii bool) (*domain.ConversionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	outcome, err := svc.Convert(ctx, domain.ConversionRequest{
		Filename:    filepath.Base(path),
		Data:        data,
		ASCIIOutput: ascii,
	})
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outPath, outcome.Result.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	return outcome.Result, nil
}

// defaultOutputPath derives the STL path for an input file, keeping it in
// the input's directory.
func defaultOutputPath(inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), domain.StlFilename(inputPath))
}
