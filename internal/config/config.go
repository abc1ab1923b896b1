// Package config loads the gguflens configuration file
// (~/.config/gguflens/config.yaml).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvModelsDir overrides models_dir from the file.
const EnvModelsDir = "GGUFLENS_MODELS_DIR"

const (
	DefaultServerAddress = "127.0.0.1:8089"
	DefaultTensorLimit   = 50
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "pretty"
)

// Config mirrors the YAML file. Pointer fields distinguish "not set" from
// an explicit zero.
type Config struct {
	ModelsDir     string  `yaml:"models_dir"`
	LogLevel      string  `yaml:"log_level"`
	LogFormat     string  `yaml:"log_format"`
	ServerAddress string  `yaml:"server_address"`
	TensorLimit   *int64  `yaml:"tensor_limit"`
	Alignment     *uint64 `yaml:"alignment"`
}

// Path is the default config file location, honouring XDG_CONFIG_HOME.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gguflens", "config.yaml")
}

// Load reads the file at path. A missing file yields a zero Config; a file
// that exists but does not parse is an error.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no command could use.
func (c Config) Validate() error {
	if c.TensorLimit != nil && *c.TensorLimit < 0 {
		return fmt.Errorf("tensor_limit must be >= 0, got %d", *c.TensorLimit)
	}
	if c.Alignment != nil {
		if a := *c.Alignment; a == 0 || a&(a-1) != 0 {
			return fmt.Errorf("alignment must be a power of two, got %d", a)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "pretty", "text", "json":
	default:
		return fmt.Errorf("log_format must be pretty, text or json, got %q", c.LogFormat)
	}
	return nil
}

// ResolveModelsDir picks the models directory: env wins over the file.
func (c Config) ResolveModelsDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvModelsDir)); dir != "" {
		return dir
	}
	return strings.TrimSpace(c.ModelsDir)
}

func (c Config) ResolveServerAddress() string {
	if c.ServerAddress != "" {
		return c.ServerAddress
	}
	return DefaultServerAddress
}

func (c Config) ResolveTensorLimit() int64 {
	if c.TensorLimit != nil {
		return *c.TensorLimit
	}
	return DefaultTensorLimit
}
