// Package config loads optional tool configuration from a file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFileName is the config file searched for in the working directory.
const DefaultFileName = ".fbcontrib.yaml"

// Config holds all file-configurable options. Command-line flags override
// any value set here.
type Config struct {
	// Detectors toggles individual detectors by name.
	Detectors map[string]bool `koanf:"detectors"`

	// Classpath lists extra roots (directories, jars) for resolving
	// class metadata of classes outside the analyzed set.
	Classpath []string `koanf:"classpath"`

	Output  OutputConfig `koanf:"output"`
	Workers int          `koanf:"workers"`
}

// OutputConfig controls findings rendering.
type OutputConfig struct {
	// Format is one of "text", "json", or "table".
	Format string `koanf:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Detectors: map[string]bool{},
		Output:    OutputConfig{Format: "text"},
	}
}

// Load reads the config file at path. An empty path falls back to
// DefaultFileName in the working directory; a missing default file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return cfg, nil
	}

	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("config file %s: unsupported extension", path)
	}
}

// Enabled reports whether the named detector should run. Detectors are
// on unless explicitly disabled.
func (c *Config) Enabled(detector string) bool {
	enabled, ok := c.Detectors[detector]
	return !ok || enabled
}

func (c *Config) validate() error {
	switch c.Output.Format {
	case "", "text", "json", "table":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
}
