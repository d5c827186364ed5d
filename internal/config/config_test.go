package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostfold.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Listen != ":3000" {
		t.Errorf("expected default listen :3000, got %q", cfg.Listen)
	}
	if cfg.Database.Path != "./hostfold.db" {
		t.Errorf("expected default db path, got %q", cfg.Database.Path)
	}
	if cfg.Scoring.AutoMergeThreshold != 0.75 || cfg.Scoring.ReviewThreshold != 0.50 {
		t.Errorf("unexpected default thresholds: %+v", cfg.Scoring)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `listen: ":8080"
database:
  path: /var/lib/hostfold/hosts.db
watch:
  dir: /srv/drops
scoring:
  auto_merge_threshold: 0.9
  review_threshold: 0.6
nmap:
  targets:
    - 192.168.1.0/24
  port_range: "22,80,443"
  os_detection: true
`)
		cfg, loadedPath, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("LoadFromPath failed: %v", err)
		}
		if loadedPath != path {
			t.Errorf("expected path %q, got %q", path, loadedPath)
		}
		if cfg.Listen != ":8080" {
			t.Errorf("expected listen :8080, got %q", cfg.Listen)
		}
		if cfg.Watch.Dir != "/srv/drops" {
			t.Errorf("expected watch dir, got %q", cfg.Watch.Dir)
		}
		if cfg.Scoring.AutoMergeThreshold != 0.9 || cfg.Scoring.ReviewThreshold != 0.6 {
			t.Errorf("unexpected thresholds: %+v", cfg.Scoring)
		}
		// Unset weights still come from defaults
		if cfg.Scoring.WeightHostname != 0.40 {
			t.Errorf("expected default hostname weight, got %v", cfg.Scoring.WeightHostname)
		}
		if len(cfg.Nmap.Targets) != 1 || !cfg.Nmap.OSDetection {
			t.Errorf("unexpected nmap config: %+v", cfg.Nmap)
		}
	})

	t.Run("partial config gets defaults", func(t *testing.T) {
		path := writeConfig(t, `listen: ":9090"`)
		cfg, _, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("LoadFromPath failed: %v", err)
		}
		if cfg.Database.Path != "./hostfold.db" {
			t.Errorf("expected default db path, got %q", cfg.Database.Path)
		}
		if cfg.Scoring.ReviewThreshold != 0.50 {
			t.Errorf("expected default review threshold, got %v", cfg.Scoring.ReviewThreshold)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "listen: [unclosed")
		if _, _, err := LoadFromPath(path); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("review above auto threshold rejected", func(t *testing.T) {
		path := writeConfig(t, `scoring:
  auto_merge_threshold: 0.5
  review_threshold: 0.8
`)
		if _, _, err := LoadFromPath(path); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := LoadFromPath("/nonexistent/hostfold.yaml"); err == nil {
			t.Fatal("expected read error")
		}
	})
}

func TestFindConfigPath(t *testing.T) {
	t.Run("env var wins", func(t *testing.T) {
		path := writeConfig(t, "listen: \":7000\"")
		t.Setenv(EnvConfigPath, path)
		if got := FindConfigPath(); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("env var pointing nowhere is skipped", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/nonexistent/hostfold.yaml")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		if got := FindConfigPath(); got != "" {
			t.Errorf("expected no config found, got %q", got)
		}
	})

	t.Run("xdg config home", func(t *testing.T) {
		xdg := t.TempDir()
		dir := filepath.Join(xdg, ConfigDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(path, []byte("listen: \":7000\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(EnvConfigPath, "")
		t.Setenv("XDG_CONFIG_HOME", xdg)
		if got := FindConfigPath(); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hostfold.yaml")
	cfg := DefaultConfig()
	cfg.Listen = ":4444"
	cfg.Watch.Dir = "/tmp/drops"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Listen != ":4444" || loaded.Watch.Dir != "/tmp/drops" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}
