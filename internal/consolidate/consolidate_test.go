package consolidate

import (
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unarc/unarc/internal/engine"
	"github.com/unarc/unarc/internal/scanner"
	"go.uber.org/zap"
)

func sourceFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func source(path, dir string, files int, bytes int64) Source {
	return Source{
		Entry: scanner.Entry{Path: path, Format: engine.DetectFormat(path)},
		Dir:   dir,
		Files: files,
		Bytes: bytes,
	}
}

func mergedNames(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names
}

// Two archives both produce readme.txt: the merged directory must hold both,
// with the later one renamed, and nothing overwritten.
func TestConsolidator_CollisionRenames(t *testing.T) {
	fs := sourceFs(t, map[string]string{
		"/out/a/readme.txt": "from a",
		"/out/b/readme.txt": "from b",
	})

	c, err := New(zap.NewNop(), fs, Config{Mode: ModeAll, Dir: "/merged"})
	require.NoError(t, err)

	summary, err := c.Run(t.Context(), []Source{
		source("/data/a.zip", "/out/a", 1, 6),
		source("/data/b.zip", "/out/b", 1, 6),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Archives)
	assert.Equal(t, 2, summary.Copied)
	assert.Equal(t, 1, summary.Renamed)
	assert.Equal(t, 0, summary.Failed)

	assert.Equal(t, []string{"readme.txt", "readme_b.txt"}, mergedNames(t, fs, "/merged"))

	content, err := afero.ReadFile(fs, "/merged/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "from a", string(content), "first writer keeps the plain name")

	content, err = afero.ReadFile(fs, "/merged/readme_b.txt")
	require.NoError(t, err)
	assert.Equal(t, "from b", string(content))
}

func TestConsolidator_SourceFoldersUntouched(t *testing.T) {
	fs := sourceFs(t, map[string]string{
		"/out/a/file.txt": "keep me",
	})

	c, err := New(zap.NewNop(), fs, Config{Mode: ModeAll, Dir: "/merged"})
	require.NoError(t, err)

	_, err = c.Run(t.Context(), []Source{source("/data/a.zip", "/out/a", 1, 7)})
	require.NoError(t, err)

	content, err := afero.ReadFile(fs, "/out/a/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(content))
}

func TestConsolidator_NoneModeIsNoOp(t *testing.T) {
	fs := sourceFs(t, map[string]string{"/out/a/file.txt": "x"})

	c, err := New(zap.NewNop(), fs, Config{Mode: ModeNone})
	require.NoError(t, err)

	summary, err := c.Run(t.Context(), []Source{source("/data/a.zip", "/out/a", 1, 1)})
	require.NoError(t, err)
	assert.Zero(t, summary.Copied)

	exists, err := afero.DirExists(fs, "/merged")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConsolidator_SelectiveByName(t *testing.T) {
	fs := sourceFs(t, map[string]string{
		"/out/a/a.txt": "a",
		"/out/b/b.txt": "b",
	})

	c, err := New(zap.NewNop(), fs, Config{
		Mode:   ModeSelective,
		Dir:    "/merged",
		Select: []string{"a.zip"},
	})
	require.NoError(t, err)

	summary, err := c.Run(t.Context(), []Source{
		source("/data/a.zip", "/out/a", 1, 1),
		source("/data/b.zip", "/out/b", 1, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Archives)
	assert.Equal(t, []string{"a.txt"}, mergedNames(t, fs, "/merged"))
}

func TestConsolidator_SelectiveByExpression(t *testing.T) {
	fs := sourceFs(t, map[string]string{
		"/out/a/a.txt": "a",
		"/out/b/b.txt": "b",
		"/out/c/c.txt": "c",
	})

	c, err := New(zap.NewNop(), fs, Config{
		Mode: ModeSelective,
		Dir:  "/merged",
		Expr: `format == "zip" && bytes >= 10`,
	})
	require.NoError(t, err)

	summary, err := c.Run(t.Context(), []Source{
		source("/data/a.zip", "/out/a", 1, 50),
		source("/data/b.zip", "/out/b", 1, 5),
		source("/data/c.rar", "/out/c", 1, 50),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Archives)
	assert.Equal(t, []string{"a.txt"}, mergedNames(t, fs, "/merged"))
}

func TestConsolidator_InvalidExpression(t *testing.T) {
	_, err := New(zap.NewNop(), afero.NewMemMapFs(), Config{
		Mode: ModeSelective,
		Dir:  "/merged",
		Expr: `format ==`,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "compile selection expression")
}

// An expression that compiles but yields a non-bool must be rejected when the
// consolidator is built, not midway through a run.
func TestConsolidator_NonBoolExpression(t *testing.T) {
	_, err := New(zap.NewNop(), afero.NewMemMapFs(), Config{
		Mode: ModeSelective,
		Dir:  "/merged",
		Expr: `files`,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "must evaluate to bool")
}

func TestConsolidator_ConfigValidation(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := New(zap.NewNop(), fs, Config{Mode: ModeAll})
	require.Error(t, err)
	assert.ErrorContains(t, err, "directory is required")

	_, err = New(zap.NewNop(), fs, Config{Mode: ModeSelective, Dir: "/merged"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "selection list or expression")
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, mode)

	_, err = ParseMode("everything")
	require.Error(t, err)
}
