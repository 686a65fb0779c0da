// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; connection DSNs go to the OS keychain
// unless given explicitly through the environment or a .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "malloy/cli/internal/errors"
	"malloy/cli/internal/xdg"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MALLOY_LOG_LEVEL or
// MALLOY_COMPILER_ADDRESS.
const EnvPrefix = "MALLOY"

// FileName is the config file inside the XDG config dir.
const FileName = "config.json"

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel          string             `mapstructure:"log_level" json:"log_level"`
	Compiler          CompilerConfig     `mapstructure:"compiler" json:"compiler"`
	DefaultConnection string             `mapstructure:"default_connection" json:"default_connection,omitempty"`
	Connections       []ConnectionConfig `mapstructure:"connections" json:"connections"`
	S3                S3Config           `mapstructure:"s3" json:"s3"`
	// MetricsAddr serves Prometheus metrics while a command runs when set.
	MetricsAddr string `mapstructure:"metrics_addr" json:"metrics_addr,omitempty"`
}

// CompilerConfig selects the compiler service.
type CompilerConfig struct {
	// Address of an externally run compiler; empty spawns the bundled one.
	Address     string `mapstructure:"address" json:"address,omitempty"`
	ServicePath string `mapstructure:"service_path" json:"service_path,omitempty"`
}

// ConnectionConfig names a database connection.
type ConnectionConfig struct {
	Name string `mapstructure:"name" json:"name"`
	// DSN is normally empty and read from the keychain.
	DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
	// HomeDir resolves relative SQLite database paths.
	HomeDir string `mapstructure:"home_dir" json:"home_dir,omitempty"`
}

// S3Config configures reading s3:// imports.
type S3Config struct {
	Region       string `mapstructure:"region" json:"region,omitempty"`
	Endpoint     string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	UsePathStyle bool   `mapstructure:"use_path_style" json:"use_path_style,omitempty"`
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// LoadDotEnv loads .env then .env.local from dir. Values from .env never
// replace the process environment; .env.local overrides both.
func LoadDotEnv(dir string) error {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := godotenv.Overload(filepath.Join(dir, ".env.local")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	return nil
}

// Load reads configuration; missing file returns defaults.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(p)
}

// LoadFrom reads the config file at path and applies MALLOY_* environment
// overrides. A missing file yields the defaults.
func LoadFrom(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, apperrors.Wrap(apperrors.ConfigInvalid, "read "+path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, apperrors.Wrap(apperrors.ConfigInvalid, "decode "+path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	// Every key is given a default so AutomaticEnv can override it on Unmarshal.
	v.SetDefault("log_level", "warn")
	v.SetDefault("compiler.address", "")
	v.SetDefault("compiler.service_path", "")
	v.SetDefault("default_connection", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("metrics_addr", "")
}

// Validate checks connection names are present and unique and that the
// default names a configured connection.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		if strings.TrimSpace(conn.Name) == "" {
			return apperrors.Newf(apperrors.ConfigInvalid, "connection %d has no name", i)
		}
		if seen[conn.Name] {
			return apperrors.Newf(apperrors.ConfigInvalid, "connection %q is configured twice", conn.Name)
		}
		seen[conn.Name] = true
	}
	if c.DefaultConnection != "" && !seen[c.DefaultConnection] {
		return apperrors.Newf(apperrors.ConfigInvalid, "default connection %q is not configured", c.DefaultConnection)
	}
	return nil
}

// Connection returns the named connection.
func (c Config) Connection(name string) (ConnectionConfig, bool) {
	for _, conn := range c.Connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionConfig{}, false
}

// Upsert adds conn or replaces the connection with the same name in place.
func (c *Config) Upsert(conn ConnectionConfig) {
	for i := range c.Connections {
		if c.Connections[i].Name == conn.Name {
			c.Connections[i] = conn
			return
		}
	}
	c.Connections = append(c.Connections, conn)
}

// Remove drops the named connection and clears it as default. It reports
// whether the connection existed.
func (c *Config) Remove(name string) bool {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			c.Connections = append(c.Connections[:i], c.Connections[i+1:]...)
			if c.DefaultConnection == name {
				c.DefaultConnection = ""
			}
			return true
		}
	}
	return false
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(p, c)
}

// SaveTo writes c to path with 0600 permissions.
func SaveTo(path string, c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
