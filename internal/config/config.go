package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirName is the name of the per-user and per-project config directory.
const DirName = ".boltdiy"

// Config holds application configuration.
type Config struct {
	// AutosaveDebounceMS is the quiet period after the last edit before an autosave fires.
	AutosaveDebounceMS int `json:"autosave_debounce_ms"`

	// SandboxTTLHours is how long a newly created sandbox stays live.
	SandboxTTLHours int `json:"sandbox_ttl_hours"`

	// SandboxDomain is the host suffix used when synthesizing sandbox URLs,
	// e.g. "vercel.app" gives https://sandbox-<id>.vercel.app.
	SandboxDomain string `json:"sandbox_domain"`

	// SweepIntervalSeconds is how often `serve` reconciles expired sandboxes.
	// 0 keeps the default; a negative value disables the sweeper.
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`

	// CodeMaxBytes is the largest code buffer a save accepts.
	CodeMaxBytes int `json:"code_max_bytes"`

	// DefaultFilePath is used when a save or load names no path.
	DefaultFilePath string `json:"default_file_path,omitempty"`

	// DefaultLanguage is used when a save names no language.
	DefaultLanguage string `json:"default_language,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// AllowedPaths lists extra directories code exports may be written to or
	// imported from, besides ~/.boltdiy/exports. Only absolute paths count.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AutosaveDebounceMS:   1000,
		SandboxTTLHours:      24,
		SandboxDomain:        "vercel.app",
		SweepIntervalSeconds: 300,
		CodeMaxBytes:         1 << 20,
		DefaultFilePath:      "/main.js",
		DefaultLanguage:      "javascript",
	}
}

// AutosaveDebounce returns the debounce window as a duration.
func (c *Config) AutosaveDebounce() time.Duration {
	return time.Duration(c.AutosaveDebounceMS) * time.Millisecond
}

// SandboxTTL returns the sandbox lifetime as a duration.
func (c *Config) SandboxTTL() time.Duration {
	return time.Duration(c.SandboxTTLHours) * time.Hour
}

// SweepInterval returns the sweeper period; zero or less means disabled.
func (c *Config) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.boltdiy.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global dir and the nearest
// project .boltdiy/config.json found by walking upward from startDir.
// Project config takes precedence for scalar values; arrays are merged.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .boltdiy/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		AutosaveDebounceMS:   pickInt(overlay.AutosaveDebounceMS, base.AutosaveDebounceMS),
		SandboxTTLHours:      pickInt(overlay.SandboxTTLHours, base.SandboxTTLHours),
		SandboxDomain:        pickString(overlay.SandboxDomain, base.SandboxDomain),
		SweepIntervalSeconds: pickInt(overlay.SweepIntervalSeconds, base.SweepIntervalSeconds),
		CodeMaxBytes:         pickInt(overlay.CodeMaxBytes, base.CodeMaxBytes),
		DefaultFilePath:      pickString(overlay.DefaultFilePath, base.DefaultFilePath),
		DefaultLanguage:      pickString(overlay.DefaultLanguage, base.DefaultLanguage),
		DBMaxOpenConns:       pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:       pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
