// Package config loads the muster.yaml settings of the CLI and the graph files
// it serves.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file read when none is given.
const DefaultFile = "muster.yaml"

// Config holds the settings of every CLI command.
type Config struct {
	// Graph is the path of the graph file to serve.
	Graph    string   `mapstructure:"graph"`
	Root     []string `mapstructure:"root"`
	Debug    bool     `mapstructure:"debug"`
	MaxDepth int      `mapstructure:"max_depth"`

	Log   LogConfig   `mapstructure:"log"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	Redis RedisConfig `mapstructure:"redis"`
	MCP   MCPConfig   `mapstructure:"mcp"`
}

// LogConfig selects the logger level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig configures the HTTP endpoint.
type HTTPConfig struct {
	Addr     string        `mapstructure:"addr"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
	Metrics  bool          `mapstructure:"metrics"`
}

// RedisConfig configures the event bridge. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	Transport string `mapstructure:"transport"`
	Addr      string `mapstructure:"addr"`
	BaseURL   string `mapstructure:"base_url"`
}

// Default returns the settings used for keys a file leaves out.
func Default() Config {
	return Config{
		Graph:    "graph.yaml",
		MaxDepth: 256,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPConfig{
			Addr:     ":8080",
			Timeout:  30 * time.Second,
			MaxBytes: 1 << 20,
			Metrics:  true,
		},
		Redis: RedisConfig{
			Channel: "muster:events",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Addr:      ":8081",
			BaseURL:   "http://localhost:8081",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error when optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML settings into cfg, keeping the values of absent keys.
// Durations may be written as strings ("5s"); scalars are converted to the
// field type where unambiguous.
func Parse(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc("/"),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
