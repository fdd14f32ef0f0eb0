// Package config loads the generator configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kbirk/protonats/internal/gen/go_gen"
	"github.com/kbirk/protonats/internal/parse"
)

// FileNames are searched for, in order, when no configuration file is given.
var FileNames = []string{"protonats.yaml", "protonats.yml"}

type Config struct {
	Input         string   `yaml:"input"`
	ImportPaths   []string `yaml:"import_paths"`
	Output        string   `yaml:"output"`
	BasePackage   string   `yaml:"base_package"`
	Notifications string   `yaml:"notifications"`
}

// ConfigError is a configuration file that could not be decoded.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Path + ": " + e.Message
}

// Find returns the first configuration file present in dir, or an empty
// string.
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadFile reads a configuration file. Relative paths in the file are
// resolved against the file's directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, &ConfigError{
			Path:    path,
			Message: err.Error(),
		}
	}

	conf.resolvePaths(filepath.Dir(path))
	return &conf, nil
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Input = resolve(c.Input)
	c.Output = resolve(c.Output)
	for i, p := range c.ImportPaths {
		c.ImportPaths[i] = resolve(p)
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if _, err := go_gen.ParseNotificationPolicy(c.Notifications); err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Config) ParseOptions() parse.Options {
	return parse.Options{
		ImportPaths:   c.ImportPaths,
		GoBasePackage: c.BasePackage,
	}
}

// GenerateOptions returns the generator options. The policy must have been
// checked by Validate.
func (c *Config) GenerateOptions(logger *slog.Logger) go_gen.Options {
	policy, _ := go_gen.ParseNotificationPolicy(c.Notifications)
	return go_gen.Options{
		Notifications: policy,
		Logger:        logger,
	}
}
