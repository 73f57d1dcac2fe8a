package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/covalent"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	concurrencyDefault = 4
	cacheTTLDefault    = 24 * time.Hour
	timeoutDefault     = 60 * time.Second
	logLevelDefault    = "info"
)

// Config represents app config object.
type Config struct {
	APIURL      string        `yaml:"api_url"`
	ChainID     int           `yaml:"chain_id"`
	Protocol    string        `yaml:"protocol"`
	PageSize    int           `yaml:"page_size"`
	MaxPages    int           `yaml:"max_pages"`
	Concurrency int           `yaml:"concurrency"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Timeout     time.Duration `yaml:"timeout"`
	LogLevel    string        `yaml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		APIURL:      covalent.DefaultBaseURL,
		ChainID:     covalent.DefaultChainID,
		Protocol:    covalent.DefaultProtocol,
		PageSize:    covalent.DefaultPageSize,
		MaxPages:    covalent.DefaultMaxPages,
		Concurrency: concurrencyDefault,
		CacheTTL:    cacheTTLDefault,
		Timeout:     timeoutDefault,
		LogLevel:    logLevelDefault,
	}
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if c.APIURL == "" {
		return errors.New("api_url is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive: %d", c.ChainID)
	}
	if c.PageSize <= 0 || c.MaxPages <= 0 || c.Concurrency <= 0 {
		return fmt.Errorf("page_size (%d), max_pages (%d) and concurrency (%d) must be positive",
			c.PageSize, c.MaxPages, c.Concurrency)
	}
	if c.CacheTTL < 0 || c.Timeout < 0 {
		return errors.New("cache_ttl and timeout can not be negative")
	}
	return nil
}

// Save writes the config into dirPath.
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
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
// Keys missing from the file keep their default values.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

// GetOrCreateHomeDir returns the app directory under the user home.
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
