package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeatlas-dev/codeatlas/internal/discover"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// Config is the CLI configuration, loaded from a YAML file and then
// overridden by CODEATLAS_* environment variables and flags.
type Config struct {
	// AppPrefix namespaces graph identifiers; all data written under one
	// prefix is invisible to another.
	AppPrefix string `yaml:"app_prefix"`
	// Project identifies the indexed project. Defaults to the base name
	// of the root directory.
	Project string `yaml:"project"`
	Branch  string `yaml:"branch"`
	Root    string `yaml:"root"`
	// DBPath overrides the default per-project database location under
	// ~/.cache/codeatlas.
	DBPath      string `yaml:"db_path"`
	IgnoreFile  string `yaml:"ignore_file"`
	MaxFileSize int64  `yaml:"max_file_size"`
	// TxTimeout bounds each store transaction group (e.g. "30s").
	// Empty means unbounded.
	TxTimeout duration `yaml:"tx_timeout"`
}

// duration accepts Go duration syntax ("30s", "2m") in YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("duration %q: %w", value.Value, err)
	}
	*d = duration(parsed)
	return nil
}

const defaultConfigFile = "codeatlas.yaml"

func loadConfig(path string) (*Config, error) {
	cfg := &Config{AppPrefix: "atlas", Root: "."}

	explicit := path != ""
	if path == "" {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; defaults plus env apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Project == "" {
		abs, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, err
		}
		cfg.Project = filepath.Base(abs)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CODEATLAS_APP_PREFIX"); v != "" {
		cfg.AppPrefix = v
	}
	if v := os.Getenv("CODEATLAS_PROJECT"); v != "" {
		cfg.Project = v
	}
	if v := os.Getenv("CODEATLAS_BRANCH"); v != "" {
		cfg.Branch = v
	}
	if v := os.Getenv("CODEATLAS_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("CODEATLAS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CODEATLAS_IGNORE_FILE"); v != "" {
		cfg.IgnoreFile = v
	}
	if v := os.Getenv("CODEATLAS_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxFileSize = n
		}
	}
	if v := os.Getenv("CODEATLAS_TX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TxTimeout = duration(d)
		}
	}
}

func (c *Config) graphID() string {
	return schema.GraphID(c.AppPrefix, c.Project)
}

func (c *Config) openStore() (*store.Store, error) {
	var (
		s   *store.Store
		err error
	)
	if c.DBPath != "" {
		s, err = store.OpenPath(c.DBPath)
	} else {
		s, err = store.Open(c.Project)
	}
	if err != nil {
		return nil, err
	}
	s.SetTxTimeout(time.Duration(c.TxTimeout))
	return s, nil
}

func (c *Config) discoverOptions() *discover.Options {
	return &discover.Options{IgnoreFile: c.IgnoreFile, MaxFileSize: c.MaxFileSize}
}

// app bundles the pieces every command needs.
type app struct {
	cfg     *Config
	store   *store.Store
	reg     *lang.Registry
	graphID string
}

func openApp() (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	s, err := cfg.openStore()
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: s, reg: lang.NewRegistry(), graphID: cfg.graphID()}, nil
}

func (a *app) close() {
	a.store.Close()
}
