package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"github.com/unarc/unarc/internal/engine"
	"go.uber.org/zap"
)

// Mode selects how far discovery descends.
type Mode string

const (
	ModeCurrentDir Mode = "current-dir"
	ModeRecursive  Mode = "recursive"
)

type Config struct {
	// Root is the directory to search.
	Root string

	Mode Mode

	// Include and Exclude are doublestar glob patterns applied to paths
	// relative to Root (and to base names).
	Include []string
	Exclude []string
}

// Entry is a discovered archive. Immutable once yielded.
type Entry struct {
	Path   string
	Format engine.Format
	Size   int64
}

// Warning records a directory the scan could not read. Warnings never abort
// the scan.
type Warning struct {
	Path string
	Err  error
}

type Scanner struct {
	logger   *zap.Logger
	fs       afero.Fs
	cfg      Config
	excluded map[string]struct{}
}

// New validates the configuration and the scan root. A missing or unreadable
// root is the one fatal condition of a run, so it surfaces here.
func New(logger *zap.Logger, fs afero.Fs, cfg Config) (*Scanner, error) {
	cfg.Root = filepath.Clean(cfg.Root)
	if cfg.Mode == "" {
		cfg.Mode = ModeCurrentDir
	}

	info, err := fs.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", cfg.Root)
	}

	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}

	return &Scanner{
		logger:   logger,
		fs:       fs,
		cfg:      cfg,
		excluded: make(map[string]struct{}),
	}, nil
}

// Exclude marks a directory so the scan never enters it. The orchestrator
// registers every destination folder it creates, so a scan during the same
// run cannot re-process freshly extracted content.
func (s *Scanner) Exclude(dir string) {
	s.excluded[filepath.Clean(dir)] = struct{}{}
}

// Scan walks the root and returns discovered archives in lexicographic path
// order. It may be called again; later calls honor directories excluded in
// the meantime.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, []Warning, error) {
	var entries []Entry
	var warnings []Warning

	switch s.cfg.Mode {
	case ModeCurrentDir:
		infos, err := afero.ReadDir(s.fs, s.cfg.Root)
		if err != nil {
			return nil, nil, fmt.Errorf("read scan root %s: %w", s.cfg.Root, err)
		}
		for _, info := range infos {
			if info.IsDir() {
				continue
			}
			path := filepath.Join(s.cfg.Root, info.Name())
			if entry, ok := s.candidate(path, info.Size()); ok {
				entries = append(entries, entry)
			}
		}

	case ModeRecursive:
		walkErr := afero.Walk(s.fs, s.cfg.Root, func(path string, info os.FileInfo, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				s.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
				warnings = append(warnings, Warning{Path: path, Err: err})
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.IsDir() {
				if path != s.cfg.Root && s.isExcluded(path) {
					s.logger.Debug("skipping excluded directory", zap.String("path", path))
					return filepath.SkipDir
				}
				return nil
			}
			if entry, ok := s.candidate(path, info.Size()); ok {
				entries = append(entries, entry)
			}
			return nil
		})
		if walkErr != nil {
			return nil, warnings, fmt.Errorf("walk scan root %s: %w", s.cfg.Root, walkErr)
		}

	default:
		return nil, nil, fmt.Errorf("unknown scan mode %q", s.cfg.Mode)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, warnings, nil
}

func (s *Scanner) candidate(path string, size int64) (Entry, bool) {
	format := engine.DetectFormat(path)
	if format == engine.FormatUnknown {
		return Entry{}, false
	}
	rel, err := filepath.Rel(s.cfg.Root, path)
	if err != nil {
		rel = path
	}
	if !s.allowedByGlobs(rel) {
		return Entry{}, false
	}
	return Entry{Path: path, Format: format, Size: size}, true
}

func (s *Scanner) allowedByGlobs(rel string) bool {
	rel = filepath.ToSlash(rel)
	if len(s.cfg.Include) > 0 {
		included := false
		for _, pattern := range s.cfg.Include {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				included = true
				break
			}
			if ok, _ := doublestar.Match(pattern, filepath.Base(rel)); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pattern := range s.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
		if ok, _ := doublestar.Match(pattern, filepath.Base(rel)); ok {
			return false
		}
	}
	return true
}

func (s *Scanner) isExcluded(path string) bool {
	path = filepath.Clean(path)
	for dir := range s.excluded {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
