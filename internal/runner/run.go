package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	v1 "github.com/unarc/unarc/apis/v1"
	"github.com/unarc/unarc/internal/consolidate"
	"github.com/unarc/unarc/internal/engine"
	"github.com/unarc/unarc/internal/engine/engines"
	"github.com/unarc/unarc/internal/password"
	"github.com/unarc/unarc/internal/report"
	"github.com/unarc/unarc/internal/scanner"
	"go.uber.org/zap"
)

// Options overrides the components Runner builds from the job by default.
// Zero fields keep the defaults; tests inject fakes here.
type Options struct {
	FS       afero.Fs
	Engine   engine.Engine
	Prompter password.Prompter
}

// Runner drives one extraction run: scan, per-archive extraction with
// password escalation, optional consolidation, final report. Archives are
// processed strictly one at a time in scan order; the shared-password cache
// and the scanner's self-exclusion set both rely on that ordering.
type Runner struct {
	logger       *zap.Logger
	job          v1.ExtractJob
	fs           afero.Fs
	scanner      *scanner.Scanner
	engine       engine.Engine
	policy       *password.Policy
	consolidator *consolidate.Consolidator

	// claimed keeps every destination folder handed out this run, so the
	// archive-to-destination mapping stays injective even after a failed
	// archive's empty folder is cleaned up.
	claimed map[string]struct{}
}

func New(logger *zap.Logger, job v1.ExtractJob, opts Options) (*Runner, error) {
	logger.Info("creating runner", zap.String("job_name", job.Metadata.Name))

	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	mode := scanner.ModeCurrentDir
	if job.Spec.Scan.Recursive {
		mode = scanner.ModeRecursive
	}
	sc, err := scanner.New(logger.Named("scanner"), fs, scanner.Config{
		Root:    job.Spec.Scan.Root,
		Mode:    mode,
		Include: job.Spec.Scan.Include,
		Exclude: job.Spec.Scan.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	policy, err := buildPolicy(logger, job, opts.Prompter)
	if err != nil {
		return nil, err
	}

	eng := opts.Engine
	if eng == nil {
		eng, err = buildEngine(logger, job)
		if err != nil {
			return nil, err
		}
	}

	consolidator, err := buildConsolidator(logger, fs, job)
	if err != nil {
		return nil, err
	}

	return &Runner{
		logger:       logger,
		job:          job,
		fs:           fs,
		scanner:      sc,
		engine:       eng,
		policy:       policy,
		consolidator: consolidator,
		claimed:      make(map[string]struct{}),
	}, nil
}

func buildPolicy(logger *zap.Logger, job v1.ExtractJob, prompter password.Prompter) (*password.Policy, error) {
	spec := job.Spec.Password
	if spec == nil {
		spec = &v1.PasswordSpec{}
	}
	mode, err := password.ParseMode(spec.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build password policy: %w", err)
	}
	return password.NewPolicy(logger.Named("password"), mode, spec.Secret, prompter), nil
}

func buildEngine(logger *zap.Logger, job v1.ExtractJob) (engine.Engine, error) {
	cfg := engines.SevenZipConfig{}
	if job.Spec.Engines != nil && job.Spec.Engines.SevenZip != nil {
		cfg.Binary = job.Spec.Engines.SevenZip.Binary
		if raw := job.Spec.Engines.SevenZip.Timeout; raw != "" {
			timeout, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid sevenzip timeout %q: %w", raw, err)
			}
			cfg.Timeout = timeout
		}
	}
	primary := engines.NewSevenZip(logger.Named("7zip"), cfg)
	secondary := engines.NewNative(logger.Named("native"))
	return engines.NewFallback(logger.Named("fallback"), primary, secondary), nil
}

func buildConsolidator(logger *zap.Logger, fs afero.Fs, job v1.ExtractJob) (*consolidate.Consolidator, error) {
	cfg := consolidate.Config{}
	if spec := job.Spec.Consolidate; spec != nil {
		mode, err := consolidate.ParseMode(spec.Mode)
		if err != nil {
			return nil, fmt.Errorf("failed to build consolidator: %w", err)
		}
		cfg = consolidate.Config{
			Mode:   mode,
			Dir:    spec.Dir,
			Select: spec.Select,
			Expr:   spec.Expr,
		}
	}
	consolidator, err := consolidate.New(logger.Named("consolidate"), fs, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build consolidator: %w", err)
	}
	return consolidator, nil
}

// Run executes the job and returns the finalized report. Per-archive
// failures never abort the run; only a scan-root failure or cancellation
// does.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	rep := report.New()

	entries, warnings, err := r.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	rep.AddWarnings(warnings...)
	r.logger.Info("scan complete",
		zap.Int("archives", len(entries)),
		zap.Int("warnings", len(warnings)),
	)

	var sources []consolidate.Source
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled at archive %s: %w", entry.Path, err)
		}
		r.logger.Info("extracting archive",
			zap.Int("index", i+1),
			zap.Int("total", len(entries)),
			zap.String("archive", entry.Path),
			zap.String("size", report.HumanSize(entry.Size)),
		)

		outcome, dest := r.processArchive(ctx, entry)
		if addErr := rep.Add(entry, outcome); addErr != nil {
			return nil, addErr
		}
		if outcome.Status == engine.StatusSuccess {
			sources = append(sources, consolidate.Source{
				Entry: entry,
				Dir:   dest,
				Files: outcome.Files,
				Bytes: outcome.Bytes,
			})
		}
	}

	// The report is complete at this point; a consolidation failure must not
	// discard it, so it is finalized and returned alongside the error.
	if _, err := r.consolidator.Run(ctx, sources); err != nil {
		rep.Finalize()
		return rep, fmt.Errorf("failed to consolidate: %w", err)
	}

	rep.Finalize()
	return rep, nil
}

// processArchive walks one archive through its state machine:
// probe without a password, escalate to the password policy when the engine
// reports a password failure, then retry exactly once with the supplied
// secret. Every path ends in exactly one terminal outcome.
func (r *Runner) processArchive(ctx context.Context, entry scanner.Entry) (engine.Outcome, string) {
	dest, err := r.destinationFor(entry)
	if err != nil {
		return engine.Failed(err), ""
	}
	r.scanner.Exclude(dest)

	probeErr := r.engine.Extract(ctx, engine.Request{Archive: entry.Path, Dest: dest})
	if probeErr == nil {
		return r.success(entry, dest), dest
	}
	if !engine.IsWrongPassword(probeErr) {
		r.cleanupFailed(dest)
		return engine.Failed(probeErr), dest
	}

	decision, err := r.policy.Resolve(ctx, filepath.Base(entry.Path))
	if err != nil {
		r.cleanupFailed(dest)
		return engine.Skipped(fmt.Sprintf("password unavailable: %v", err)), dest
	}
	if !decision.Supplied {
		r.logger.Info("skipping encrypted archive",
			zap.String("archive", entry.Path),
			zap.String("reason", decision.Reason),
		)
		r.cleanupFailed(dest)
		return engine.Skipped(decision.Reason), dest
	}

	// The probe may have left partial output; the retry starts clean.
	if err := r.resetDest(dest); err != nil {
		return engine.Failed(engine.NewError(engine.ClassOther, "runner", err)), dest
	}
	retryErr := r.engine.Extract(ctx, engine.Request{Archive: entry.Path, Dest: dest, Password: decision.Secret})
	if retryErr != nil {
		// Wrong password here is terminal: no re-prompt for this archive.
		r.cleanupFailed(dest)
		return engine.Failed(retryErr), dest
	}
	return r.success(entry, dest), dest
}

func (r *Runner) success(entry scanner.Entry, dest string) engine.Outcome {
	files, bytes := r.census(dest)
	r.logger.Info("extraction succeeded",
		zap.String("archive", entry.Path),
		zap.String("dest", dest),
		zap.Int("files", files),
		zap.String("size", report.HumanSize(bytes)),
	)
	return engine.Succeeded(files, bytes)
}

// census counts the files written under dest. The engines' own numbers are
// ignored so every success is measured the same way.
func (r *Runner) census(dest string) (int, int64) {
	var files int
	var bytes int64
	_ = afero.Walk(r.fs, dest, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		files++
		bytes += info.Size()
		return nil
	})
	return files, bytes
}

func (r *Runner) resetDest(dest string) error {
	if err := r.fs.RemoveAll(dest); err != nil {
		return fmt.Errorf("reset destination %s: %w", dest, err)
	}
	if err := r.fs.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("recreate destination %s: %w", dest, err)
	}
	return nil
}

// cleanupFailed removes the destination folder of a failed or skipped
// archive when nothing was written into it. Partial output is left in place
// for the operator to inspect.
func (r *Runner) cleanupFailed(dest string) {
	infos, err := afero.ReadDir(r.fs, dest)
	if err != nil || len(infos) > 0 {
		return
	}
	if err := r.fs.Remove(dest); err != nil {
		r.logger.Debug("could not remove empty destination", zap.String("dest", dest), zap.Error(err))
	}
}
