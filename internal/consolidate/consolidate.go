package consolidate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/unarc/unarc/internal/engine"
	"github.com/unarc/unarc/internal/scanner"
	"go.uber.org/zap"
)

// Mode selects which extracted archives are merged after a run.
type Mode string

const (
	ModeNone      Mode = "none"
	ModeAll       Mode = "all"
	ModeSelective Mode = "selective"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeAll, ModeSelective:
		return Mode(s), nil
	case "":
		return ModeNone, nil
	default:
		return "", fmt.Errorf("unknown consolidation mode %q", s)
	}
}

// Source is one successfully extracted archive offered for consolidation.
type Source struct {
	Entry scanner.Entry
	Dir   string
	Files int
	Bytes int64
}

// Summary reports what one consolidation pass copied.
type Summary struct {
	Archives int
	Copied   int
	Renamed  int
	Failed   int
	Bytes    int64
}

type Config struct {
	Mode Mode

	// Dir is the merged output directory.
	Dir string

	// Select names archives to merge in selective mode, by path or base
	// name. When set, Expr is ignored.
	Select []string

	// Expr is a CEL expression selecting archives in selective mode.
	Expr string
}

// Consolidator copies extracted files from per-archive folders into one
// merged directory. It only ever copies: per-archive folders are left
// untouched, and a name collision renames the later file instead of
// overwriting the earlier one.
type Consolidator struct {
	logger *zap.Logger
	fs     afero.Fs
	cfg    Config
	filter *filter
}

func New(logger *zap.Logger, fs afero.Fs, cfg Config) (*Consolidator, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeNone
	}
	c := &Consolidator{logger: logger, fs: fs, cfg: cfg}
	if cfg.Mode == ModeNone {
		return c, nil
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("consolidation directory is required for mode %q", cfg.Mode)
	}
	if cfg.Mode == ModeSelective {
		if len(cfg.Select) == 0 && cfg.Expr == "" {
			return nil, fmt.Errorf("selective consolidation needs a selection list or expression")
		}
		f, err := newFilter(cfg.Select, cfg.Expr)
		if err != nil {
			return nil, err
		}
		c.filter = f
	}
	return c, nil
}

// Run merges the selected sources, in the order given, into the configured
// directory. Copy failures are counted and logged, never fatal.
func (c *Consolidator) Run(ctx context.Context, sources []Source) (Summary, error) {
	var summary Summary
	if c.cfg.Mode == ModeNone {
		return summary, nil
	}

	if err := c.fs.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return summary, fmt.Errorf("create consolidation directory %s: %w", c.cfg.Dir, err)
	}

	taken := make(map[string]struct{})
	for _, source := range sources {
		if c.cfg.Mode == ModeSelective {
			selected, err := c.filter.matches(source)
			if err != nil {
				return summary, fmt.Errorf("evaluate selection for %s: %w", source.Entry.Path, err)
			}
			if !selected {
				continue
			}
		}
		summary.Archives++

		walkErr := afero.Walk(c.fs, source.Dir, func(path string, info os.FileInfo, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil || info.IsDir() {
				return err
			}
			target, renamed := c.targetName(taken, filepath.Base(path), source.Entry)
			n, copyErr := c.copyFile(path, filepath.Join(c.cfg.Dir, target))
			if copyErr != nil {
				summary.Failed++
				c.logger.Warn("failed to copy extracted file",
					zap.String("source", path),
					zap.String("target", target),
					zap.Error(copyErr),
				)
				return nil
			}
			taken[target] = struct{}{}
			summary.Copied++
			summary.Bytes += n
			if renamed {
				summary.Renamed++
			}
			return nil
		})
		if walkErr != nil {
			return summary, fmt.Errorf("walk %s: %w", source.Dir, walkErr)
		}
	}

	c.logger.Info("consolidation complete",
		zap.String("dir", c.cfg.Dir),
		zap.Int("archives", summary.Archives),
		zap.Int("copied", summary.Copied),
		zap.Int("renamed", summary.Renamed),
		zap.Int("failed", summary.Failed),
		zap.Int64("bytes", summary.Bytes),
	)
	return summary, nil
}

// targetName picks a free file name in the merged directory. The first
// archive to claim a name keeps it; later colliders get a suffix derived
// from their source archive, then a counter.
func (c *Consolidator) targetName(taken map[string]struct{}, base string, entry scanner.Entry) (string, bool) {
	if c.free(taken, base) {
		return base, false
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	candidate := fmt.Sprintf("%s_%s%s", stem, engine.ArchiveStem(entry.Path), ext)
	for i := 1; !c.free(taken, candidate); i++ {
		candidate = fmt.Sprintf("%s_%s_%d%s", stem, engine.ArchiveStem(entry.Path), i, ext)
	}
	return candidate, true
}

func (c *Consolidator) free(taken map[string]struct{}, name string) bool {
	if _, ok := taken[name]; ok {
		return false
	}
	exists, err := afero.Exists(c.fs, filepath.Join(c.cfg.Dir, name))
	return err == nil && !exists
}

func (c *Consolidator) copyFile(src, dst string) (n int64, err error) {
	in, err := c.fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, in.Close())
	}()

	out, err := c.fs.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	n, err = io.Copy(out, in)
	return n, err
}
