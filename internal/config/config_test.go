package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "conf.yaml", `
detectors:
  UseEnumCollections: false
classpath:
  - lib/deps.jar
  - build/classes
output:
  format: json
workers: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled("UseEnumCollections"))
	assert.Equal(t, []string{"lib/deps.jar", "build/classes"}, cfg.Classpath)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "conf.json", `{"output": {"format": "table"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "table", cfg.Output.Format)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.True(t, cfg.Enabled("UseEnumCollections"))
}

func TestLoad_DefaultFilePickedUp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("workers: 2\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoad_RejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, "conf.yaml", "output:\n  format: xml\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestLoad_RejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "conf.toml", "workers = 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Enabled(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Enabled("UseEnumCollections"), "detectors default to on")

	cfg.Detectors["UseEnumCollections"] = false
	assert.False(t, cfg.Enabled("UseEnumCollections"))

	cfg.Detectors["UseEnumCollections"] = true
	assert.True(t, cfg.Enabled("UseEnumCollections"))
}
