package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Resolution.NodeModulesEntryField != "main" {
		t.Errorf("expected default entry field 'main', got %q", cfg.Resolution.NodeModulesEntryField)
	}
	if cfg.Cache.Size != 4096 {
		t.Errorf("expected default cache size 4096, got %d", cfg.Cache.Size)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("expected default backend 'local', got %q", cfg.Storage.Backend)
	}
	if cfg.Resolution.IncludeDynamicImports {
		t.Error("expected dynamic imports excluded by default")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "non-existent file returns defaults",
			yaml: "", // signal: don't create a file
			check: func(t *testing.T, cfg *Config) {
				if cfg.Cache.Size != 4096 {
					t.Errorf("expected default cache size 4096, got %d", cfg.Cache.Size)
				}
				if cfg.Resolution.NodeModulesEntryField != "main" {
					t.Errorf("expected default entry field, got %q", cfg.Resolution.NodeModulesEntryField)
				}
			},
		},
		{
			name: "valid YAML overrides defaults",
			yaml: `
resolution:
  require_config: config/require.js
  tsconfig: tsconfig.json
  node_modules_entry_field: module
  include_dynamic_imports: true
extraction:
  amd:
    skip_lazy_loaded: true
  ts:
    skip_type_imports: true
filter:
  exclude:
    - "*.spec.js"
    - vendor/*
  exclude_node_modules: true
storage:
  backend: s3
  bucket: graphs
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Resolution.RequireConfig != "config/require.js" {
					t.Errorf("expected require config path, got %q", cfg.Resolution.RequireConfig)
				}
				if cfg.Resolution.NodeModulesEntryField != "module" {
					t.Errorf("expected entry field 'module', got %q", cfg.Resolution.NodeModulesEntryField)
				}
				if !cfg.Resolution.IncludeDynamicImports {
					t.Error("expected IncludeDynamicImports true")
				}
				if !cfg.Extraction.AMD.SkipLazyLoaded {
					t.Error("expected AMD.SkipLazyLoaded true")
				}
				if !cfg.Extraction.TS.SkipTypeImports {
					t.Error("expected TS.SkipTypeImports true")
				}
				if len(cfg.Filter.Exclude) != 2 {
					t.Errorf("expected 2 exclude patterns, got %d", len(cfg.Filter.Exclude))
				}
				if !cfg.Filter.ExcludeNodeModules {
					t.Error("expected ExcludeNodeModules true")
				}
				if cfg.Storage.Backend != "s3" || cfg.Storage.Bucket != "graphs" {
					t.Errorf("unexpected storage config %+v", cfg.Storage)
				}
				if cfg.Cache.Size != 4096 {
					t.Errorf("expected untouched cache size 4096, got %d", cfg.Cache.Size)
				}
			},
		},
		{
			name:    "invalid YAML returns error",
			yaml:    "{{invalid yaml",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")

			if tc.yaml == "" && tc.name == "non-existent file returns defaults" {
				// Don't create file - test loading non-existent path
				cfg, err := Load(path)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				tc.check(t, cfg)
				return
			}

			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatalf("write test config: %v", err)
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestDirectoryFunctions(t *testing.T) {
	// repoSlug is unexported, but we can test it indirectly via the
	// public Dir functions which all use CacheDir -> repoSlug.
	project := "/home/alice/repos/myproject"

	snap := SnapshotDir(project)
	delta := DeltaDir(project)

	// All should contain the slug "repos_myproject"
	slug := "repos_myproject"

	if !strings.Contains(snap, slug) {
		t.Errorf("SnapshotDir should contain slug %q, got %q", slug, snap)
	}
	if !strings.Contains(delta, slug) {
		t.Errorf("DeltaDir should contain slug %q, got %q", slug, delta)
	}

	// Verify subdirectory names
	if !strings.HasSuffix(snap, filepath.Join("deptree", slug, "snapshots")) {
		t.Errorf("SnapshotDir should end with %q, got %q", filepath.Join(slug, "snapshots"), snap)
	}
	if !strings.HasSuffix(delta, filepath.Join("deptree", slug, "deltas")) {
		t.Errorf("DeltaDir should end with %q, got %q", filepath.Join(slug, "deltas"), delta)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://localhost/deptree")
	t.Setenv(EnvStorageBucket, "")

	cfg := DefaultConfig()
	cfg.Storage.Bucket = "from-file"
	cfg.ApplyEnv()

	if cfg.Cache.DatabaseURL != "postgres://localhost/deptree" {
		t.Errorf("expected database URL from env, got %q", cfg.Cache.DatabaseURL)
	}
	if cfg.Storage.Bucket != "from-file" {
		t.Errorf("empty env should not override bucket, got %q", cfg.Storage.Bucket)
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolution.RequireConfig = "config.js"
	cfg.Resolution.TSConfig = "/abs/tsconfig.json"

	cfg.Resolve("/project")

	if cfg.Resolution.RequireConfig != filepath.Join("/project", "config.js") {
		t.Errorf("expected joined path, got %q", cfg.Resolution.RequireConfig)
	}
	if cfg.Resolution.TSConfig != "/abs/tsconfig.json" {
		t.Errorf("absolute path should be kept, got %q", cfg.Resolution.TSConfig)
	}
	if cfg.Resolution.AliasConfig != "" {
		t.Errorf("empty path should stay empty, got %q", cfg.Resolution.AliasConfig)
	}
}

func TestRepoSlug(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "normal path",
			path: "/home/user/workspace/myrepo",
			want: "workspace_myrepo",
		},
		{
			name: "short path",
			path: "/myrepo",
			want: "/_myrepo", // filepath.Base of "/" depends on OS, test via Dir funcs
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := repoSlug(tc.path)
			if got != tc.want {
				t.Errorf("repoSlug(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	tests := []struct {
		name    string
		marker  string
		wantErr bool
	}{
		{name: "package.json", marker: "package.json"},
		{name: "tsconfig.json", marker: "tsconfig.json"},
		{name: ".git", marker: ".git"},
		{name: "no marker", marker: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()

			if tc.marker != "" {
				markerPath := filepath.Join(root, tc.marker)
				if err := os.WriteFile(markerPath, nil, 0o644); err != nil {
					t.Fatalf("create marker: %v", err)
				}
			}

			// Create a subdirectory and search from there
			sub := filepath.Join(root, "src", "pkg")
			if err := os.MkdirAll(sub, 0o755); err != nil {
				t.Fatalf("create subdirectory: %v", err)
			}

			got, err := FindProjectRoot(sub)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != root {
				t.Errorf("FindProjectRoot = %q, want %q", got, root)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Run("found in current directory", func(t *testing.T) {
		root := t.TempDir()
		configDir := filepath.Join(root, ".deptree")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		got := FindConfigFile(root)
		if got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("found in parent directory", func(t *testing.T) {
		root := t.TempDir()
		configDir := filepath.Join(root, ".deptree")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		sub := filepath.Join(root, "a", "b", "c")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("create sub: %v", err)
		}

		got := FindConfigFile(sub)
		if got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("not found", func(t *testing.T) {
		root := t.TempDir()
		got := FindConfigFile(root)
		if got != "" {
			t.Errorf("FindConfigFile = %q, want empty", got)
		}
	})
}
