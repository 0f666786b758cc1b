package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/train"
	"gopkg.in/yaml.v3"
)

const (
	FileName = "config.yaml"
	dirMode  = 0700
	fileMode = 0600
)

// Config holds the persisted training defaults. Zero values are replaced
// with defaults on load.
type Config struct {
	Version   string         `json:"version" yaml:"version"`
	Format    string         `json:"format" yaml:"format"`
	Strategy  train.Strategy `json:"strategy" yaml:"strategy"`
	C         float64        `json:"c" yaml:"c"`
	MaxIter   int            `json:"max_iter" yaml:"max_iter"`
	Tolerance float64        `json:"tolerance" yaml:"tolerance"`
}

// Default returns the configuration matching the reference training setup.
func Default() *Config {
	o := train.DefaultOptions()
	return &Config{
		Version:   model.DefaultVersion,
		Format:    model.FormatJSON,
		Strategy:  o.Strategy,
		C:         o.C,
		MaxIter:   o.MaxIter,
		Tolerance: o.Tolerance,
	}
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.C == 0 {
		c.C = d.C
	}
	if c.MaxIter == 0 {
		c.MaxIter = d.MaxIter
	}
	if c.Tolerance == 0 {
		c.Tolerance = d.Tolerance
	}
}

// TrainOptions returns the solver options described by c.
func (c *Config) TrainOptions() train.Options {
	return train.Options{
		C:         c.C,
		MaxIter:   c.MaxIter,
		Tolerance: c.Tolerance,
		Strategy:  c.Strategy,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if !model.ValidVersion(c.Version) {
		return fmt.Errorf("invalid artifact version %q", c.Version)
	}
	if _, err := model.ParseFormat(c.Format); err != nil {
		return err
	}
	return c.TrainOptions().Validate()
}

// Load reads the config file at path and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	c.fillDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &c, nil
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, FileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	return Load(path)
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
