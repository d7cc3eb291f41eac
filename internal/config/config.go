// Package config handles loading and resolving plotdesk configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags (--user, --db, --listen)
//  2. Environment variables (PLOTDESK_*)
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultConfigFile = "config.json"
	DefaultFormat     = "table"
	DefaultTimeout    = 30 * time.Second
	DefaultRate       = 5.0
	DefaultListen     = "127.0.0.1:8585"
	DefaultBaseURL    = "http://localhost:8585/"
	EnvUser           = "PLOTDESK_USER"
	EnvDBPath         = "PLOTDESK_DB_PATH"
	EnvListen         = "PLOTDESK_LISTEN"
	EnvToken          = "PLOTDESK_TOKEN"
)

// File is the on-disk representation of config.json.
type File struct {
	User          string  `json:"user"`
	DefaultFormat string  `json:"default_format"`
	Timeout       string  `json:"timeout"`
	Rate          float64 `json:"rate"`
	CatalogURL    string  `json:"catalog_url"`
	BaseURL       string  `json:"base_url"`
	Listen        string  `json:"listen"`
	DBPath        string  `json:"db_path"`
	PlotType      string  `json:"plot_type"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	User       string // local user id for history operations; empty = anonymous
	Token      string // session token for the identity backend
	Format     string
	Timeout    time.Duration
	Rate       float64
	CatalogURL string
	BaseURL    string // public URL share links are built from
	Listen     string
	DBPath     string
	PlotType   string
	ConfigPath string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Flags holds the CLI flag values that participate in resolution.
type Flags struct {
	User   string
	DBPath string
	Listen string
}

// Load resolves configuration from all sources.
func Load(flags Flags) (*Config, error) {
	cfg := &Config{
		Format:   DefaultFormat,
		Timeout:  DefaultTimeout,
		Rate:     DefaultRate,
		Listen:   DefaultListen,
		BaseURL:  DefaultBaseURL,
		PlotType: "plot",
	}

	// Layer 1: config.json (lowest priority)
	if f, path, err := loadFile(); err == nil {
		applyFile(cfg, f, path)
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvUser); v != "" {
		cfg.User = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}

	// Layer 3: CLI flags (highest priority)
	if flags.User != "" {
		cfg.User = flags.User
	}
	if flags.DBPath != "" {
		cfg.DBPath = flags.DBPath
	}
	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".plotdesk", "plotdesk.db")
		}
	}

	return cfg, nil
}

// loadFile attempts to read config.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s", path)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.User != "" {
		cfg.User = f.User
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.CatalogURL != "" {
		cfg.CatalogURL = f.CatalogURL
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.Listen != "" {
		cfg.Listen = f.Listen
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.PlotType == "map" || f.PlotType == "plot" {
		cfg.PlotType = f.PlotType
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `plotdesk config init`.
func Template() File {
	return File{
		User:          "",
		DefaultFormat: DefaultFormat,
		Timeout:       "30s",
		Rate:          DefaultRate,
		Listen:        DefaultListen,
		BaseURL:       DefaultBaseURL,
		PlotType:      "plot",
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
