package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractJob(t *testing.T) {
	data := []byte(`
kind: ExtractJob
metadata:
  name: nightly-drop
spec:
  scan:
    root: /srv/incoming
    recursive: true
    include:
      - "**/*.zip"
  password:
    mode: shared
  engines:
    sevenzip:
      binary: 7zz
      timeout: 2m
  consolidate:
    mode: selective
    dir: /srv/merged
    expr: 'format == "zip"'
`)

	job, err := ParseExtractJob(data)
	require.NoError(t, err)

	assert.Equal(t, "ExtractJob", job.Kind)
	assert.Equal(t, "nightly-drop", job.Metadata.Name)
	assert.Equal(t, "/srv/incoming", job.Spec.Scan.Root)
	assert.True(t, job.Spec.Scan.Recursive)
	assert.Equal(t, []string{"**/*.zip"}, job.Spec.Scan.Include)
	require.NotNil(t, job.Spec.Password)
	assert.Equal(t, "shared", job.Spec.Password.Mode)
	require.NotNil(t, job.Spec.Engines)
	assert.Equal(t, "7zz", job.Spec.Engines.SevenZip.Binary)
	require.NotNil(t, job.Spec.Consolidate)
	assert.Equal(t, "selective", job.Spec.Consolidate.Mode)
}

func TestParseExtractJob_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "wrong kind",
			data: "kind: CollectJob\nspec:\n  scan:\n    root: /srv\n",
		},
		{
			name: "missing scan root",
			data: "kind: ExtractJob\nspec:\n  scan: {}\n",
		},
		{
			name: "bad password mode",
			data: "kind: ExtractJob\nspec:\n  scan:\n    root: /srv\n  password:\n    mode: maybe\n",
		},
		{
			name: "bad consolidate mode",
			data: "kind: ExtractJob\nspec:\n  scan:\n    root: /srv\n  consolidate:\n    mode: sometimes\n",
		},
		{
			name: "not yaml",
			data: "{kind: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExtractJob([]byte(tt.data))
			require.Error(t, err)
		})
	}
}
