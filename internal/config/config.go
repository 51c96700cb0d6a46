// Package config loads application settings: where the registry lives, how
// to log, matching vocabulary, and the optional history and metrics outputs.
// The service registry itself is not part of the settings; see store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/loykin/servctl/internal/env"
	"github.com/loykin/servctl/internal/logger"
)

const (
	EnvPrefix       = "SERVCTL"
	EnvConfigPath   = "SERVCTL_CONFIG"
	DefaultRegistry = "~/.config/servctl/services.json"
)

// Settings represents the TOML settings file. Every key can be overridden by
// SERVCTL_<SECTION>_<KEY> environment variables.
type Settings struct {
	Registry string        `toml:"registry" mapstructure:"registry"`
	Env      []string      `toml:"env" mapstructure:"env"`
	EnvFiles []string      `toml:"env_files" mapstructure:"env_files"`
	Log      LogConfig     `toml:"log" mapstructure:"log"`
	Match    MatchConfig   `toml:"match" mapstructure:"match"`
	History  HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics  MetricsConfig `toml:"metrics" mapstructure:"metrics"`

	// Path of the settings file that was read, empty when none.
	Source string `toml:"-" mapstructure:"-"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// MatchConfig tunes the name resolver. A nil FillerWords keeps the built-in
// list; an explicitly empty list disables filler stripping.
type MatchConfig struct {
	FillerWords []string `toml:"filler_words" mapstructure:"filler_words"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Textfile string `toml:"textfile" mapstructure:"textfile"`
}

// Load reads settings from path, or from $SERVCTL_CONFIG when path is empty.
// With neither, defaults and environment overrides apply.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if strings.TrimSpace(path) == "" {
		path = os.Getenv(EnvConfigPath)
	}
	path = strings.TrimSpace(path)
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return Settings{}, fmt.Errorf("config path %s: %w", path, err)
		}
		path = filepath.Clean(expanded)
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	s.Source = path

	if v.IsSet("match.filler_words") {
		s.Match.FillerWords = v.GetStringSlice("match.filler_words")
		if s.Match.FillerWords == nil {
			s.Match.FillerWords = []string{}
		}
	} else {
		s.Match.FillerWords = nil
	}

	registry, err := homedir.Expand(strings.TrimSpace(s.Registry))
	if err != nil {
		return Settings{}, fmt.Errorf("registry path %s: %w", s.Registry, err)
	}
	s.Registry = registry
	if s.Log.File != "" {
		if s.Log.File, err = homedir.Expand(s.Log.File); err != nil {
			return Settings{}, fmt.Errorf("log file %s: %w", s.Log.File, err)
		}
	}
	return s, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("registry", DefaultRegistry)
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("log.level", "")
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.color", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 0)
	v.SetDefault("log.max_backups", 0)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.compress", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
}

// Logger converts the log section into a logger.Config.
func (s Settings) Logger() logger.Config {
	return logger.Config{
		Level:  s.Log.Level,
		Format: s.Log.Format,
		Color:  s.Log.Color,
		File: logger.FileConfig{
			Path:       s.Log.File,
			MaxSizeMB:  s.Log.MaxSizeMB,
			MaxBackups: s.Log.MaxBackups,
			MaxAgeDays: s.Log.MaxAgeDays,
			Compress:   s.Log.Compress,
		},
	}
}

// BaseEnv returns the environment every service command starts from: the OS
// environment, then env_files in order, then the env list.
func (s Settings) BaseEnv() ([]string, error) {
	e := env.New()
	e.FromOS()
	for _, p := range s.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			e.Set(k, v)
		}
	}
	for _, kv := range s.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
	return e.Merge(), nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Clean(expanded))
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
