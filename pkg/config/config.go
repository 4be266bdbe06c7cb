// Package config handles loading and managing deptree project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/deptree/deptree/pkg/extract"
)

// Environment variables that override file values.
const (
	EnvDatabaseURL   = "DEPTREE_DATABASE_URL"
	EnvStorageBucket = "DEPTREE_STORAGE_BUCKET"
)

// Config is the top-level configuration for deptree.
type Config struct {
	Resolution ResolutionConfig `yaml:"resolution"`
	Extraction extract.Config   `yaml:"extraction"`
	Filter     FilterConfig     `yaml:"filter"`
	Cache      CacheConfig      `yaml:"cache"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ResolutionConfig controls how specifiers map to files. Relative paths
// are relative to the project directory.
type ResolutionConfig struct {
	RequireConfig         string `yaml:"require_config"`
	AliasConfig           string `yaml:"alias_config"`
	TSConfig              string `yaml:"tsconfig"`
	NodeModulesEntryField string `yaml:"node_modules_entry_field"`
	IncludeDynamicImports bool   `yaml:"include_dynamic_imports"`
}

// FilterConfig controls which resolved files enter the graph.
type FilterConfig struct {
	Exclude            []string `yaml:"exclude"` // glob patterns
	ExcludeNodeModules bool     `yaml:"exclude_node_modules"`
}

// CacheConfig controls file and visited caches.
type CacheConfig struct {
	Size        int    `yaml:"size"`         // file cache entries
	DatabaseURL string `yaml:"database_url"` // persistent visited cache, empty disables
}

// StorageConfig selects where snapshots are stored.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // local, s3, gcs
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Resolution: ResolutionConfig{
			NodeModulesEntryField: "main",
		},
		Cache: CacheConfig{
			Size: 4096,
		},
		Storage: StorageConfig{
			Backend: "local",
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with DEPTREE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Cache.DatabaseURL = v
	}
	if v := os.Getenv(EnvStorageBucket); v != "" {
		c.Storage.Bucket = v
	}
}

// Resolve makes the resolution config paths absolute against dir.
func (c *Config) Resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Resolution.RequireConfig = abs(c.Resolution.RequireConfig)
	c.Resolution.AliasConfig = abs(c.Resolution.AliasConfig)
	c.Resolution.TSConfig = abs(c.Resolution.TSConfig)
}

// FindConfigFile looks for .deptree/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".deptree", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the cache directory for a given project path.
// Uses ~/.cache/deptree/<repo-slug>/ to avoid polluting the repo.
func CacheDir(projectPath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	slug := repoSlug(projectPath)
	return filepath.Join(home, ".cache", "deptree", slug)
}

// SnapshotDir returns the snapshot storage directory for a project.
func SnapshotDir(projectPath string) string {
	return filepath.Join(CacheDir(projectPath), "snapshots")
}

// DeltaDir returns the delta storage directory for a project.
func DeltaDir(projectPath string) string {
	return filepath.Join(CacheDir(projectPath), "deltas")
}

// ProjectSlug returns the filesystem-safe name used to namespace a
// project's cached snapshots, stored blobs and visited entries.
func ProjectSlug(projectPath string) string {
	return repoSlug(projectPath)
}

// repoSlug creates a filesystem-safe identifier from a project path.
// Uses the last two path components (e.g., "user/myrepo" from "/home/user/workspace/myrepo").
func repoSlug(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	dir := filepath.Base(filepath.Dir(abs))
	base := filepath.Base(abs)
	return dir + "_" + base
}

// FindProjectRoot walks up from dir looking for package.json, tsconfig.json
// or a .git directory.
func FindProjectRoot(dir string) (string, error) {
	for {
		for _, marker := range []string{"package.json", "tsconfig.json", ".git"} {
			candidate := filepath.Join(dir, marker)
			if _, err := os.Stat(candidate); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no project root found (looked for package.json, tsconfig.json or .git)")
}
