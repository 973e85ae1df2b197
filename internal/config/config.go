// Package config loads schemakit configuration from schemakit.yml with
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the schemakit configuration
type Config struct {
	SchemaRoot        string                      `mapstructure:"schema_root"`
	Debug             bool                        `mapstructure:"debug"`
	DefaultConnection string                      `mapstructure:"default_connection"`
	Connections       map[string]ConnectionConfig `mapstructure:"connections"`
	Cache             CacheConfig                 `mapstructure:"cache"`
	Server            ServerConfig                `mapstructure:"server"`
}

// ConnectionConfig represents one named database connection
type ConnectionConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// CacheConfig represents the shared cache tier configuration
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	// TTLSeconds of 0 means entries never expire automatically.
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	APIPrefix string `mapstructure:"api_prefix"`
}

// Load loads the configuration from schemakit.yml or schemakit.yaml
func Load() (*Config, error) {
	return load("")
}

// LoadFile loads the configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("schema_root", "schemas")
	v.SetDefault("debug", false)
	v.SetDefault("default_connection", "default")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.prefix", "schemakit:")
	v.SetDefault("cache.ttl_seconds", 0)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.api_prefix", "/api")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("schemakit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SCHEMAKIT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig checks the loaded values for obvious mistakes before any
// component trusts them.
func validateConfig(config *Config) error {
	if config.SchemaRoot == "" {
		return fmt.Errorf("schema_root must not be empty")
	}
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	for name, conn := range config.Connections {
		if conn.Driver == "" {
			return fmt.Errorf("connection %s: driver must not be empty", name)
		}
		if conn.URL == "" {
			return fmt.Errorf("connection %s: url must not be empty", name)
		}
	}
	return nil
}

// DatabaseURL returns the URL of a named connection, preferring the
// SCHEMAKIT_DATABASE_URL environment variable for the default connection.
func (c *Config) DatabaseURL(name string) string {
	if name == "" || name == c.DefaultConnection {
		if url := os.Getenv("SCHEMAKIT_DATABASE_URL"); url != "" {
			return url
		}
	}
	if conn, ok := c.Connections[name]; ok {
		return conn.URL
	}
	return ""
}
