package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}

	// No explicit path and no file present falls back to defaults.
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.AppPrefix != "atlas" {
		t.Errorf("AppPrefix = %q, want atlas", cfg.AppPrefix)
	}
	if cfg.Root != "." {
		t.Errorf("Root = %q, want .", cfg.Root)
	}
	if cfg.Project == "" {
		t.Error("expected Project derived from root dir name")
	}
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codeatlas.yaml")
	content := "app_prefix: cg\nproject: demo\nbranch: main\nmax_file_size: 1024\ntx_timeout: 45s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODEATLAS_PROJECT", "overridden")
	t.Setenv("CODEATLAS_MAX_FILE_SIZE", "2048")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.AppPrefix != "cg" {
		t.Errorf("AppPrefix = %q, want cg", cfg.AppPrefix)
	}
	if cfg.Project != "overridden" {
		t.Errorf("Project = %q, env override should win", cfg.Project)
	}
	if cfg.Branch != "main" {
		t.Errorf("Branch = %q, want main", cfg.Branch)
	}
	if cfg.MaxFileSize != 2048 {
		t.Errorf("MaxFileSize = %d, want 2048", cfg.MaxFileSize)
	}
	if got := cfg.graphID(); got != "cg_project_overridden" {
		t.Errorf("graphID = %q", got)
	}
	if time.Duration(cfg.TxTimeout) != 45*time.Second {
		t.Errorf("TxTimeout = %v, want 45s", time.Duration(cfg.TxTimeout))
	}
}

func TestTxTimeoutEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CODEATLAS_TX_TIMEOUT", "2m")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if time.Duration(cfg.TxTimeout) != 2*time.Minute {
		t.Errorf("TxTimeout = %v, want 2m", time.Duration(cfg.TxTimeout))
	}
}
