// Package config loads tool configuration from an INI file with
// environment-variable overrides
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	// DefaultInputdataRoot is the canonical shared archive tree
	DefaultInputdataRoot = "/glade/campaign/cesm/cesmdata/cseg/inputdata"

	// DefaultStagingRoot is the long-term storage collection the archive
	// copies are relinked into
	DefaultStagingRoot = "/glade/campaign/collections/gdex/data/d651077/cesmdata/inputdata"

	// DefaultSharedUser is the shared account imports must run as
	DefaultSharedUser = "cesmdata"

	// DefaultConfigPath is consulted when --config is not given
	DefaultConfigPath = "/etc/inputdata.ini"

	// EnvStagingRoot overrides the staging root when set
	EnvStagingRoot = "RIMPORT_STAGING"

	// EnvInputdataRoot overrides the inputdata root when set
	EnvInputdataRoot = "RIMPORT_INPUTDATA"
)

// Config holds resolved tool configuration
type Config struct {
	InputdataRoot string // root of the shared archive tree
	StagingRoot   string // root of the long-term storage collection
	LedgerDir     string // directory holding publication ledger segments
	SharedUser    string // account the import step must run as
}

// Load reads configuration from the given INI file, falling back to
// defaults for anything unset. A missing file is not an error; the
// defaults are the normal operating configuration on the shared system.
func Load(path string) (*Config, error) {
	cfg := &Config{
		InputdataRoot: DefaultInputdataRoot,
		StagingRoot:   DefaultStagingRoot,
		SharedUser:    DefaultSharedUser,
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		f, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}

		paths := f.Section("paths")
		cfg.InputdataRoot = paths.Key("inputdata_root").MustString(cfg.InputdataRoot)
		cfg.StagingRoot = paths.Key("staging_root").MustString(cfg.StagingRoot)
		cfg.LedgerDir = paths.Key("ledger_dir").MustString(cfg.LedgerDir)

		imp := f.Section("import")
		cfg.SharedUser = imp.Key("shared_user").MustString(cfg.SharedUser)
	}

	// Environment overrides win over both file and defaults
	if v := os.Getenv(EnvInputdataRoot); v != "" {
		cfg.InputdataRoot = expandPath(v)
	}
	if v := os.Getenv(EnvStagingRoot); v != "" {
		cfg.StagingRoot = expandPath(v)
	}

	cfg.InputdataRoot = expandPath(cfg.InputdataRoot)
	cfg.StagingRoot = expandPath(cfg.StagingRoot)

	// The ledger lives beside the archive unless placed elsewhere
	if cfg.LedgerDir == "" {
		cfg.LedgerDir = filepath.Join(cfg.InputdataRoot, ".publication-ledger")
	} else {
		cfg.LedgerDir = expandPath(cfg.LedgerDir)
	}

	return cfg, nil
}

// expandPath expands a leading ~ and resolves the path to absolute form
func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
