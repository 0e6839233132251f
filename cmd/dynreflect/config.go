package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds settings that would otherwise have to be repeated on every
// invocation: proto import paths for compile, and the default rendering
// options for json/text output. Flags passed on the command line override
// the matching config field.
type Config struct {
	Compile struct {
		ImportPaths []string `yaml:"import_paths"`
	} `yaml:"compile"`

	JSON struct {
		EmitUnpopulated bool `yaml:"emit_unpopulated"`
		UseProtoNames   bool `yaml:"use_proto_names"`
		UseEnumNumbers  bool `yaml:"use_enum_numbers"`
		Indent          string `yaml:"indent"`
	} `yaml:"json"`

	Text struct {
		Multiline bool `yaml:"multiline"`
	} `yaml:"text"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns the configuration used when no --config file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.JSON.Indent = "  "
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads and parses a YAML config file, starting from
// DefaultConfig so that an omitted section keeps its default. An empty path
// is not an error; it just returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is an explicit CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}
