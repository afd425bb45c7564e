package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// A missing file yields the normal operating configuration
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.ini"))
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.InputdataRoot != DefaultInputdataRoot {
		t.Errorf("Expected default inputdata root, got %q", cfg.InputdataRoot)
	}
	if cfg.StagingRoot != DefaultStagingRoot {
		t.Errorf("Expected default staging root, got %q", cfg.StagingRoot)
	}
	if cfg.SharedUser != DefaultSharedUser {
		t.Errorf("Expected default shared user, got %q", cfg.SharedUser)
	}
	if cfg.LedgerDir != filepath.Join(DefaultInputdataRoot, ".publication-ledger") {
		t.Errorf("Expected ledger dir beside the archive, got %q", cfg.LedgerDir)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputdata.ini")
	content := `[paths]
inputdata_root = /data/inputdata
staging_root = /data/collection
ledger_dir = /data/ledger

[import]
shared_user = importbot
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.InputdataRoot != "/data/inputdata" {
		t.Errorf("Unexpected inputdata root %q", cfg.InputdataRoot)
	}
	if cfg.StagingRoot != "/data/collection" {
		t.Errorf("Unexpected staging root %q", cfg.StagingRoot)
	}
	if cfg.LedgerDir != "/data/ledger" {
		t.Errorf("Unexpected ledger dir %q", cfg.LedgerDir)
	}
	if cfg.SharedUser != "importbot" {
		t.Errorf("Unexpected shared user %q", cfg.SharedUser)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputdata.ini")
	content := "[paths]\nstaging_root = /data/collection\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.StagingRoot != "/data/collection" {
		t.Errorf("Unexpected staging root %q", cfg.StagingRoot)
	}
	if cfg.InputdataRoot != DefaultInputdataRoot {
		t.Errorf("Expected default inputdata root, got %q", cfg.InputdataRoot)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputdata.ini")
	if err := os.WriteFile(path, []byte("[paths\nbroken"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputdata.ini")
	content := "[paths]\ninputdata_root = /from/file\nstaging_root = /from/file/staging\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv(EnvInputdataRoot, "/from/env")
	t.Setenv(EnvStagingRoot, "/from/env/staging")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.InputdataRoot != "/from/env" {
		t.Errorf("Environment should win over file, got %q", cfg.InputdataRoot)
	}
	if cfg.StagingRoot != "/from/env/staging" {
		t.Errorf("Environment should win over file, got %q", cfg.StagingRoot)
	}
	if cfg.LedgerDir != "/from/env/.publication-ledger" {
		t.Errorf("Ledger dir should follow the overridden root, got %q", cfg.LedgerDir)
	}
}
