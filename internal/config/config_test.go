package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 100, cfg.MaxFileSizeMB)
	assert.Equal(t, 50, cfg.MaxFailures)
	assert.Equal(t, "annotation", cfg.OutputFormat)
	assert.Equal(t, "bazel-failures", cfg.Context)
	assert.False(t, cfg.SkipIfAbsent)
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin.yml")
	content := `
bep_file: /tmp/events.pb
skip_if_absent: true
max_failures: 10
job_name: integration-tests
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/events.pb", cfg.BEPFile)
	assert.True(t, cfg.SkipIfAbsent)
	assert.Equal(t, 10, cfg.MaxFailures)
	assert.Equal(t, "integration-tests", cfg.JobName)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.MaxFileSizeMB)
	assert.Equal(t, "annotation", cfg.OutputFormat)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("max_failures: [not an int"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
