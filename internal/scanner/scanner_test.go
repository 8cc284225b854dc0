package scanner

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unarc/unarc/internal/engine"
	"go.uber.org/zap"
)

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestScanner_CurrentDirOnly(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/data/a.zip":        "zip",
		"/data/b.tar.gz":     "targz",
		"/data/readme.txt":   "text",
		"/data/sub/c.rar":    "rar",
		"/data/sub/deep.zip": "zip",
	})

	s, err := New(zap.NewNop(), fs, Config{Root: "/data", Mode: ModeCurrentDir})
	require.NoError(t, err)

	entries, warnings, err := s.Scan(t.Context())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, entries, 2)
	assert.Equal(t, "/data/a.zip", entries[0].Path)
	assert.Equal(t, engine.FormatZip, entries[0].Format)
	assert.Equal(t, "/data/b.tar.gz", entries[1].Path)
	assert.Equal(t, engine.FormatTarGz, entries[1].Format)
}

func TestScanner_Recursive(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/data/a.zip":     "zip",
		"/data/sub/c.rar": "rar",
		"/data/sub/d.txt": "text",
	})

	s, err := New(zap.NewNop(), fs, Config{Root: "/data", Mode: ModeRecursive})
	require.NoError(t, err)

	entries, _, err := s.Scan(t.Context())
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "/data/a.zip", entries[0].Path)
	assert.Equal(t, "/data/sub/c.rar", entries[1].Path)
}

func TestScanner_DeterministicOrder(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/data/z.zip":     "z",
		"/data/a.zip":     "a",
		"/data/m/m.7z":    "m",
		"/data/b.tar.bz2": "b",
	})

	s, err := New(zap.NewNop(), fs, Config{Root: "/data", Mode: ModeRecursive})
	require.NoError(t, err)

	first, _, err := s.Scan(t.Context())
	require.NoError(t, err)
	second, _, err := s.Scan(t.Context())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	paths := make([]string, 0, len(first))
	for _, e := range first {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/data/a.zip", "/data/b.tar.bz2", "/data/m/m.7z", "/data/z.zip"}, paths)
}

// A destination folder registered during the run must never be re-entered,
// even when nested under the scan root.
func TestScanner_ExcludesRegisteredDestinations(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/data/a.zip":              "zip",
		"/data/a/extracted.zip":    "zip",
		"/data/a/nested/inner.rar": "rar",
	})

	s, err := New(zap.NewNop(), fs, Config{Root: "/data", Mode: ModeRecursive})
	require.NoError(t, err)
	s.Exclude("/data/a")

	entries, _, err := s.Scan(t.Context())
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "/data/a.zip", entries[0].Path)
}

func TestScanner_Globs(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/data/keep.zip":     "zip",
		"/data/drop.zip":     "zip",
		"/data/sub/keep.rar": "rar",
	})

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{
			name:    "include by extension",
			include: []string{"**/*.zip"},
			want:    []string{"/data/drop.zip", "/data/keep.zip"},
		},
		{
			name:    "exclude by base name",
			exclude: []string{"drop.*"},
			want:    []string{"/data/keep.zip", "/data/sub/keep.rar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(zap.NewNop(), fs, Config{
				Root:    "/data",
				Mode:    ModeRecursive,
				Include: tt.include,
				Exclude: tt.exclude,
			})
			require.NoError(t, err)

			entries, _, err := s.Scan(t.Context())
			require.NoError(t, err)

			paths := make([]string, 0, len(entries))
			for _, e := range entries {
				paths = append(paths, e.Path)
			}
			assert.Equal(t, tt.want, paths)
		})
	}
}

func TestScanner_InvalidGlob(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/data/a.zip": "zip"})
	_, err := New(zap.NewNop(), fs, Config{Root: "/data", Include: []string{"[bad"}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid glob pattern")
}

func TestScanner_MissingRootIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := New(zap.NewNop(), fs, Config{Root: "/nowhere"})
	require.Error(t, err)
}

func TestScanner_RootIsFile(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/data/a.zip": "zip"})
	_, err := New(zap.NewNop(), fs, Config{Root: "/data/a.zip"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "not a directory")
}

// failingFs denies opening one directory so the walk has to skip it.
type failingFs struct {
	afero.Fs
	deny string
}

func (f *failingFs) Open(name string) (afero.File, error) {
	if name == f.deny {
		return nil, fmt.Errorf("open %s: permission denied", name)
	}
	return f.Fs.Open(name)
}

func TestScanner_UnreadableDirIsWarningNotFatal(t *testing.T) {
	base := newTestFs(t, map[string]string{
		"/data/a.zip":          "zip",
		"/data/secret/b.zip":   "zip",
		"/data/visible/c.7z":   "7z",
		"/data/visible/d.text": "text",
	})
	fs := &failingFs{Fs: base, deny: "/data/secret"}

	s, err := New(zap.NewNop(), fs, Config{Root: "/data", Mode: ModeRecursive})
	require.NoError(t, err)

	entries, warnings, err := s.Scan(t.Context())
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, "/data/secret", warnings[0].Path)

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/data/a.zip", "/data/visible/c.7z"}, paths)
}
