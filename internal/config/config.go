// Package config loads devflow's read-only settings.
//
// Precedence, lowest first: built-in defaults, the YAML file
// (~/.devflow/config.yaml or an explicit path), DEVFLOW_* environment
// variables, then command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDirName is the data directory under the user's home.
	DefaultDirName = ".devflow"
	// FileName is the config file inside the data directory.
	FileName = "config.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DEVFLOW_"
)

// Settings is consumed read-only at construction time.
type Settings struct {
	// DataDir holds projects, backups, generated documents and the journal.
	DataDir string `yaml:"data_dir"`
	// AutoBackup snapshots a record before it is overwritten or deleted.
	AutoBackup bool `yaml:"auto_backup"`
	// BackupRetention is how many backups are kept per project.
	BackupRetention int `yaml:"backup_retention"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// RepairInterval runs an index repair pass periodically; 0 disables it.
	RepairInterval time.Duration `yaml:"repair_interval"`
	// MetricsAddr serves Prometheus metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		DataDir:         defaultDataDir(),
		AutoBackup:      true,
		BackupRetention: 10,
		LogLevel:        "info",
		RepairInterval:  5 * time.Minute,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// DefaultPath returns ~/.devflow/config.yaml.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), FileName)
}

// Load layers defaults, the YAML file and the environment. An empty path
// means DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Settings, error) {
	s := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := s.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	s.DataDir = expandHome(s.DataDir)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFromFile reads settings from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Settings, error) {
	s := Default()
	if err := s.mergeFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

// mergeFile overlays the keys present in a YAML file onto s.
func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays DEVFLOW_* variables. lookup is os.LookupEnv outside
// tests.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("DATA_DIR"); ok {
		s.DataDir = v
	}
	if v, ok := get("AUTO_BACKUP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sAUTO_BACKUP: %w", EnvPrefix, err))
		} else {
			s.AutoBackup = b
		}
	}
	if v, ok := get("BACKUP_RETENTION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBACKUP_RETENTION: %w", EnvPrefix, err))
		} else {
			s.BackupRetention = n
		}
	}
	if v, ok := get("LOG_LEVEL"); ok {
		s.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("REPAIR_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREPAIR_INTERVAL: %w", EnvPrefix, err))
		} else {
			s.RepairInterval = d
		}
	}
	if v, ok := get("METRICS_ADDR"); ok {
		s.MetricsAddr = v
	}
	return errors.Join(errs...)
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the settings are usable.
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if s.BackupRetention < 1 {
		errs = append(errs, fmt.Errorf("backup_retention must be at least 1, got %d", s.BackupRetention))
	}
	if !validLevels[s.LogLevel] {
		errs = append(errs, fmt.Errorf("invalid log_level %q: must be one of: debug, info, warn, error", s.LogLevel))
	}
	if s.RepairInterval < 0 {
		errs = append(errs, fmt.Errorf("repair_interval must not be negative, got %s", s.RepairInterval))
	}
	return errors.Join(errs...)
}

// SaveToFile writes the settings as YAML, creating parent directories.
func (s *Settings) SaveToFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
