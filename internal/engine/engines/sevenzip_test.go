package engines

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unarc/unarc/internal/engine"
	"go.uber.org/zap"
)

// fakeBinary writes an executable shell script standing in for 7z.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake7z")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestSevenZip_ConfiguredBinaryMissing(t *testing.T) {
	e := NewSevenZip(zap.NewNop(), SevenZipConfig{Binary: "unarc-test-no-such-binary"})
	err := e.Extract(t.Context(), engine.Request{Archive: "a.zip", Dest: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, engine.ClassEngineUnavailable, engine.ClassOf(err))
}

func TestSevenZip_NoBinaryOnPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	e := NewSevenZip(zap.NewNop(), SevenZipConfig{})
	err := e.Extract(t.Context(), engine.Request{Archive: "a.zip", Dest: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, engine.ClassEngineUnavailable, engine.ClassOf(err))
	assert.ErrorContains(t, err, "no 7-Zip binary found")
}

func TestSevenZip_SuccessExitCode(t *testing.T) {
	e := NewSevenZip(zap.NewNop(), SevenZipConfig{Binary: fakeBinary(t, "exit 0")})
	err := e.Extract(t.Context(), engine.Request{Archive: "a.zip", Dest: t.TempDir()})
	require.NoError(t, err)
}

func TestSevenZip_ClassifiesProcessFailure(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   engine.FailureClass
	}{
		{
			name:   "wrong password",
			script: `echo "ERROR: Wrong password : secret.txt" >&2; exit 2`,
			want:   engine.ClassWrongPassword,
		},
		{
			name:   "unsupported method",
			script: `echo "ERROR: Unsupported Method" >&2; exit 2`,
			want:   engine.ClassUnsupportedFormat,
		},
		{
			name:   "corrupt data",
			script: `echo "ERROR: CRC Failed : data.bin" >&2; exit 2`,
			want:   engine.ClassCorruptArchive,
		},
		{
			name:   "unclassified",
			script: `echo "something exploded" >&2; exit 2`,
			want:   engine.ClassOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewSevenZip(zap.NewNop(), SevenZipConfig{Binary: fakeBinary(t, tt.script)})
			err := e.Extract(t.Context(), engine.Request{Archive: "a.zip", Dest: t.TempDir()})
			require.Error(t, err)
			assert.Equal(t, tt.want, engine.ClassOf(err))
		})
	}
}

func TestSevenZip_Timeout(t *testing.T) {
	e := NewSevenZip(zap.NewNop(), SevenZipConfig{
		Binary:  fakeBinary(t, "sleep 5"),
		Timeout: 50 * time.Millisecond,
	})
	err := e.Extract(t.Context(), engine.Request{Archive: "a.zip", Dest: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, engine.ClassOther, engine.ClassOf(err))
	assert.ErrorContains(t, err, "timed out")
}

func TestClassifyDiagnostics(t *testing.T) {
	tests := []struct {
		diag string
		want engine.FailureClass
	}{
		{"ERROR: Wrong password", engine.ClassWrongPassword},
		{"Enter password (will not be echoed):", engine.ClassWrongPassword},
		{"ERROR: Cannot open encrypted archive. Wrong password?", engine.ClassWrongPassword},
		{"ERROR: Unsupported Method", engine.ClassUnsupportedFormat},
		{"Cannot open the file as archive", engine.ClassUnsupportedFormat},
		{"ERROR: CRC Failed", engine.ClassCorruptArchive},
		{"ERROR: Data Error : foo.txt", engine.ClassCorruptArchive},
		{"Unexpected end of archive", engine.ClassCorruptArchive},
		{"disk full", engine.ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.diag, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDiagnostics(tt.diag))
		})
	}
}

func TestFirstDiagnosticLine(t *testing.T) {
	diag := fmt.Sprintf("7-Zip 23.01 (x64)\n\n%s\n%s", "ERROR: CRC Failed", "more context")
	assert.Equal(t, "ERROR: CRC Failed", firstDiagnosticLine(diag))
	assert.Equal(t, "no diagnostic output", firstDiagnosticLine(""))
}
