package runner

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/unarc/unarc/internal/engine"
	"github.com/unarc/unarc/internal/scanner"
)

// destinationFor derives the per-archive extraction folder: the archive's
// directory plus its stem, with a numeric suffix probed until the name is
// free. A name is taken if it exists on disk or was handed out earlier this
// run, so no two archives ever share a destination.
func (r *Runner) destinationFor(entry scanner.Entry) (string, error) {
	base := filepath.Join(filepath.Dir(entry.Path), engine.ArchiveStem(entry.Path))

	dest := base
	for i := 1; ; i++ {
		free, err := r.destFree(dest)
		if err != nil {
			return "", fmt.Errorf("probe destination %s: %w", dest, err)
		}
		if free {
			break
		}
		dest = fmt.Sprintf("%s_%d", base, i)
	}

	if err := r.fs.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create destination %s: %w", dest, err)
	}
	r.claimed[dest] = struct{}{}
	return dest, nil
}

func (r *Runner) destFree(dest string) (bool, error) {
	if _, ok := r.claimed[dest]; ok {
		return false, nil
	}
	exists, err := afero.Exists(r.fs, dest)
	if err != nil {
		return false, err
	}
	return !exists, nil
}
