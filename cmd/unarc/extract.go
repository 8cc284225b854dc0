package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	v1 "github.com/unarc/unarc/apis/v1"
	"github.com/unarc/unarc/internal/runner"
)

var extractCommand = &cli.Command{
	Name:  "extract",
	Usage: "Discover and extract archives under a directory",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "Optional job file; flags override its settings",
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"C"},
			Value:   ".",
			Usage:   "Directory to scan for archives",
		},
		&cli.BoolFlag{
			Name:    "recursive",
			Aliases: []string{"r"},
			Usage:   "Scan subdirectories too",
		},
		&cli.StringSliceFlag{
			Name:  "include",
			Usage: "Only scan paths matching this glob (can be repeated)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Skip paths matching this glob (can be repeated)",
		},
		&cli.StringFlag{
			Name:  "password-mode",
			Usage: "Encrypted archive handling: per-archive, shared or skip",
			Value: "skip",
		},
		&cli.StringFlag{
			Name:  "password",
			Usage: "Preset the shared password (implies --password-mode shared)",
		},
		&cli.StringFlag{
			Name:  "consolidate",
			Usage: "Merge extracted output: none, all or selective",
			Value: "none",
		},
		&cli.StringFlag{
			Name:  "consolidate-dir",
			Usage: "Directory to merge extracted files into",
		},
		&cli.StringSliceFlag{
			Name:  "select",
			Usage: "Archive to consolidate in selective mode (can be repeated)",
		},
		&cli.StringFlag{
			Name:  "select-expr",
			Usage: "CEL expression selecting archives to consolidate",
		},
		&cli.StringFlag{
			Name:  "sevenzip-binary",
			Usage: "Path to the 7z executable",
		},
		&cli.StringFlag{
			Name:  "sevenzip-timeout",
			Usage: "Timeout for one 7z invocation (e.g. 5m)",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		job, err := loadJob(command)
		if err != nil {
			return err
		}

		r, err := runner.New(logger.Named("runner"), job, runner.Options{
			Prompter: buildPrompter(ctx),
		})
		if err != nil {
			return fmt.Errorf("failed to create runner: %w", err)
		}

		rep, runErr := r.Run(ctx)

		// The report is the sole surface for per-archive outcomes, so it is
		// rendered whenever the run got far enough to produce one, even if a
		// later stage failed.
		if rep != nil {
			if err := rep.Render(os.Stdout); err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}

			summary := rep.Summary()
			logger.Info("run complete",
				zap.Int("archives", summary.Archives),
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("failed", summary.Failed),
				zap.Int("skipped", summary.Skipped),
			)
		}

		if runErr != nil {
			return fmt.Errorf("failed to run job: %w", runErr)
		}
		return nil
	},
}

// loadJob builds the job from the optional job file, then lets explicitly
// set flags override it. A flag-only invocation is a complete job too.
func loadJob(command *cli.Command) (v1.ExtractJob, error) {
	job := v1.ExtractJob{
		Kind:     "ExtractJob",
		Metadata: v1.Metadata{Name: "cli"},
		Spec: v1.ExtractJobSpec{
			Scan: v1.ScanSpec{Root: "."},
		},
	}

	if jobFilename := command.StringArg("job"); jobFilename != "" {
		data, err := os.ReadFile(jobFilename)
		if err != nil {
			return v1.ExtractJob{}, fmt.Errorf("failed to read job file: %w", err)
		}
		job, err = runner.ParseExtractJob(data)
		if err != nil {
			return v1.ExtractJob{}, fmt.Errorf("failed to parse job: %w", err)
		}
	}

	if command.IsSet("root") {
		job.Spec.Scan.Root = command.String("root")
	}
	if command.IsSet("recursive") {
		job.Spec.Scan.Recursive = command.Bool("recursive")
	}
	if command.IsSet("include") {
		job.Spec.Scan.Include = command.StringSlice("include")
	}
	if command.IsSet("exclude") {
		job.Spec.Scan.Exclude = command.StringSlice("exclude")
	}

	if command.IsSet("password-mode") || command.IsSet("password") {
		if job.Spec.Password == nil {
			job.Spec.Password = &v1.PasswordSpec{}
		}
		if command.IsSet("password-mode") {
			job.Spec.Password.Mode = command.String("password-mode")
		}
		if command.IsSet("password") {
			job.Spec.Password.Secret = command.String("password")
			if job.Spec.Password.Mode == "" || job.Spec.Password.Mode == "skip" {
				job.Spec.Password.Mode = "shared"
			}
		}
	}

	if command.IsSet("sevenzip-binary") || command.IsSet("sevenzip-timeout") {
		if job.Spec.Engines == nil {
			job.Spec.Engines = &v1.EnginesSpec{}
		}
		if job.Spec.Engines.SevenZip == nil {
			job.Spec.Engines.SevenZip = &v1.SevenZipSpec{}
		}
		if command.IsSet("sevenzip-binary") {
			job.Spec.Engines.SevenZip.Binary = command.String("sevenzip-binary")
		}
		if command.IsSet("sevenzip-timeout") {
			job.Spec.Engines.SevenZip.Timeout = command.String("sevenzip-timeout")
		}
	}

	if command.IsSet("consolidate") || command.IsSet("consolidate-dir") ||
		command.IsSet("select") || command.IsSet("select-expr") {
		if job.Spec.Consolidate == nil {
			job.Spec.Consolidate = &v1.ConsolidateSpec{}
		}
		if command.IsSet("consolidate") {
			job.Spec.Consolidate.Mode = command.String("consolidate")
		}
		if command.IsSet("consolidate-dir") {
			job.Spec.Consolidate.Dir = command.String("consolidate-dir")
		}
		if command.IsSet("select") {
			job.Spec.Consolidate.Select = command.StringSlice("select")
			job.Spec.Consolidate.Mode = "selective"
		}
		if command.IsSet("select-expr") {
			job.Spec.Consolidate.Expr = command.String("select-expr")
			if len(job.Spec.Consolidate.Select) == 0 {
				job.Spec.Consolidate.Mode = "selective"
			}
		}
	}

	return job, nil
}
