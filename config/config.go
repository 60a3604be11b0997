package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Import   ImportConfig   `yaml:"import"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ImportConfig struct {
	Workers    int      `yaml:"workers"`
	Extensions []string `yaml:"extensions"`
}

type ExportConfig struct {
	Format string `yaml:"format"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Default returns the configuration used when no file or env sets a value.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "fitlog.db"},
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080, AllowedOrigins: []string{"*"}},
		Import:   ImportConfig{Workers: 4, Extensions: []string{".fit"}},
		Export:   ExportConfig{Format: "parquet"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides. A .env file in the working directory is loaded
// first; variables already set in the environment win over it. An empty
// path or a missing file leaves the defaults in place.
// Env vars use the prefix FITLOG_ and underscore-separated paths:
//
//	FITLOG_DATABASE_PATH, FITLOG_SERVER_HOST, FITLOG_SERVER_PORT,
//	FITLOG_SERVER_ALLOWED_ORIGINS (comma separated),
//	FITLOG_IMPORT_WORKERS, FITLOG_IMPORT_EXTENSIONS (comma separated),
//	FITLOG_EXPORT_FORMAT, FITLOG_LOG_LEVEL
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env file: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("FITLOG_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FITLOG_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FITLOG_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FITLOG_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("FITLOG_SERVER_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("FITLOG_IMPORT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FITLOG_IMPORT_WORKERS: %w", err)
		}
		cfg.Import.Workers = n
	}
	if v := os.Getenv("FITLOG_IMPORT_EXTENSIONS"); v != "" {
		cfg.Import.Extensions = splitList(v)
	}
	if v := os.Getenv("FITLOG_EXPORT_FORMAT"); v != "" {
		cfg.Export.Format = v
	}
	if v := os.Getenv("FITLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) normalize() {
	c.Export.Format = strings.ToLower(strings.TrimSpace(c.Export.Format))
	exts := c.Import.Extensions[:0]
	for _, ext := range c.Import.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		// A blank extension would match every file as a suffix.
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.Import.Extensions = exts
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Import.Workers < 1 {
		return fmt.Errorf("import.workers must be at least 1")
	}
	if len(c.Import.Extensions) == 0 {
		return fmt.Errorf("import.extensions must not be empty")
	}
	switch c.Export.Format {
	case "parquet", "csv":
	default:
		return fmt.Errorf("export.format %q must be parquet or csv", c.Export.Format)
	}
	return nil
}
