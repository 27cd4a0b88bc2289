// Package config resolves promptkit's configuration from layered JSONC
// files, environment and CLI overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/promptkit/internal/fs"
	"github.com/calvinalkan/promptkit/internal/logger"
)

var (
	ErrConfigInvalid      = errors.New("invalid config")
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrDataDirEmpty       = errors.New("data_dir cannot be empty")
	ErrQuotaNegative      = errors.New("quota_bytes cannot be negative")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	DataDir     string `json:"data_dir"`
	BackupDir   string `json:"backup_dir,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
	LogFormat   string `json:"log_format,omitempty"`
	MetricsFile string `json:"metrics_file,omitempty"`
	Listen      string `json:"listen,omitempty"`
	QuotaBytes  int64  `json:"quota_bytes,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"`
	DataDirAbs   string `json:"-"`
	BackupDirAbs string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// FileName is the project config file name.
const FileName = ".promptkit.json"

// DBFileName is the SQLite database file inside the data dir.
const DBFileName = "promptkit.db"

// DefaultListen is the default address for `pk serve`.
const DefaultListen = "127.0.0.1:7878"

// Default returns the default configuration for env.
func Default(env map[string]string) Config {
	return Config{
		DataDir:   defaultDataDir(env),
		LogLevel:  "warn",
		LogFormat: logger.FormatConsole,
		Listen:    DefaultListen,
	}
}

// DBPath returns the absolute path of the database file.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDirAbs, DBFileName)
}

// defaultDataDir uses $XDG_DATA_HOME/promptkit, then ~/.local/share/promptkit.
// Without either it falls back to a relative .promptkit directory.
func defaultDataDir(env map[string]string) string {
	if xdg := env["XDG_DATA_HOME"]; xdg != "" {
		return filepath.Join(xdg, "promptkit")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".local", "share", "promptkit")
	}

	return ".promptkit"
}

// globalPath returns $XDG_CONFIG_HOME/promptkit/config.json or
// ~/.config/promptkit/config.json, or "" if neither can be determined.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "promptkit", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "promptkit", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	DataDirOverride string            // --data-dir flag value; empty means no override
	Env             map[string]string // environment variables
	FS              fs.FS             // defaults to [fs.Real]
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/promptkit/config.json)
// 3. Project config file (.promptkit.json in the working dir, if it exists)
// 4. Explicit config file via ConfigPath
// 5. CLI overrides.
//
// Relative paths are resolved against the working directory.
func Load(input LoadInput) (Config, error) {
	fsys := input.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default(input.Env)

	if path := globalPath(input.Env); path != "" {
		globalCfg, loaded, err := loadFile(fsys, path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = merge(cfg, globalCfg)
		}
	}

	projectFile := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectFile = input.ConfigPath
		if !filepath.IsAbs(projectFile) {
			projectFile = filepath.Join(workDir, projectFile)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(fsys, projectFile, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectFile
		cfg = merge(cfg, projectCfg)
	}

	if input.DataDirOverride != "" {
		cfg.DataDir = input.DataDirOverride
	}

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.DataDirAbs = absPath(workDir, cfg.DataDir)

	if cfg.BackupDir == "" {
		cfg.BackupDirAbs = filepath.Join(cfg.DataDirAbs, "backups")
	} else {
		cfg.BackupDirAbs = absPath(workDir, cfg.BackupDir)
	}

	if cfg.MetricsFile != "" {
		cfg.MetricsFile = absPath(workDir, cfg.MetricsFile)
	}

	return cfg, nil
}

func absPath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(base, p)
}

// loadFile loads one config file. Missing optional files report loaded=false.
func loadFile(fsys fs.FS, path string, mustExist bool) (Config, bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		switch {
		case mustExist && errors.Is(err, os.ErrNotExist):
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		case mustExist:
			return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
		default:
			return Config{}, false, nil
		}
	}

	cfg, explicitEmpty, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if explicitEmpty["data_dir"] {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrDataDirEmpty)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, map[string]bool, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	explicitEmpty := make(map[string]bool)

	if val, exists := raw["data_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			explicitEmpty["data_dir"] = true
		}
	}

	return cfg, explicitEmpty, nil
}

func merge(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.BackupDir != "" {
		base.BackupDir = overlay.BackupDir
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}

	if overlay.MetricsFile != "" {
		base.MetricsFile = overlay.MetricsFile
	}

	if overlay.Listen != "" {
		base.Listen = overlay.Listen
	}

	if overlay.QuotaBytes != 0 {
		base.QuotaBytes = overlay.QuotaBytes
	}

	return base
}

func validate(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrDataDirEmpty
	}

	if cfg.QuotaBytes < 0 {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, ErrQuotaNegative)
	}

	_, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	switch cfg.LogFormat {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrConfigInvalid, cfg.LogFormat)
	}

	return nil
}
