package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600))
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, time.Second, cfg.AutosaveDebounce())
	assert.Equal(t, 24*time.Hour, cfg.SandboxTTL())
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval())
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"autosave_debounce_ms": 250, "sandbox_domain": "preview.local"}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.AutosaveDebounce())
	assert.Equal(t, "preview.local", cfg.SandboxDomain)
	// untouched keys keep defaults
	assert.Equal(t, 24, cfg.SandboxTTLHours)
	assert.Equal(t, "/main.js", cfg.DefaultFilePath)
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	_, err := Load(tmpDir)
	assert.Error(t, err)
}

func TestLoad_NegativeSweepDisables(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"sweep_interval_seconds": -1}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval())
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"disabled_tools": ["sandbox_sweep", " code_list ", "sandbox_sweep"]}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"sandbox_sweep", "code_list"}, cfg.DisabledTools)
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"sandbox_ttl_hours": 12, "disabled_tools": ["sandbox_sweep"]}`)
	writeConfig(t, filepath.Join(repoRoot, DirName), `{"sandbox_ttl_hours": 2, "disabled_tools": ["code_list"]}`)

	nested := filepath.Join(repoRoot, "src", "app")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := LoadWithRepo(globalDir, nested)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.SandboxTTLHours, "repo config overrides scalar")
	assert.Equal(t, []string{"sandbox_sweep", "code_list"}, cfg.DisabledTools)
	assert.Equal(t, 1000, cfg.AutosaveDebounceMS, "defaults survive both layers")
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestFindRepoConfig(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "", FindRepoConfig(root))
	assert.Equal(t, "", FindRepoConfig(""))

	writeConfig(t, filepath.Join(root, DirName), `{}`)
	assert.Equal(t, filepath.Join(root, DirName, "config.json"), FindRepoConfig(root))
}

func TestMerge_ScalarsAndArrays(t *testing.T) {
	base := &Config{AutosaveDebounceMS: 1000, SandboxDomain: "vercel.app", DisabledTools: []string{"a"}}
	overlay := &Config{AutosaveDebounceMS: 500, SandboxDomain: "  ", DisabledTools: []string{"b", "a"}}

	got := Merge(base, overlay)
	assert.Equal(t, 500, got.AutosaveDebounceMS)
	assert.Equal(t, "vercel.app", got.SandboxDomain, "blank overlay string keeps base")
	assert.Equal(t, []string{"a", "b"}, got.DisabledTools)
}

func TestMerge_AllowedPaths(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/srv/backups"}}
	overlay := &Config{AllowedPaths: []string{" /tmp/exports ", "/srv/backups"}}

	got := Merge(base, overlay)
	assert.Equal(t, []string{"/srv/backups", "/tmp/exports"}, got.AllowedPaths)
	assert.Nil(t, Merge(&Config{}, &Config{}).AllowedPaths)
}
