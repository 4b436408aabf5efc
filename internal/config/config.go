// Package config loads the server configuration from defaults, an optional
// YAML file, BUCKETFS_* environment variables and command line flags, in that
// order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/damacus/bucketfs/internal/filesystem"
	"github.com/damacus/bucketfs/internal/provider"
)

const envPrefix = "BUCKETFS_"

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Listen  string           `yaml:"listen"`
	Log     Log              `yaml:"log"`
	Storage provider.Options `yaml:"storage"`
	// AccountRoot is the directory below storage.root_path served over HTTP
	AccountRoot     string `yaml:"account_root"`
	PageSize        int    `yaml:"page_size"`
	MoveConcurrency int    `yaml:"move_concurrency"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Storage: provider.Options{
			Backend: "minio",
		},
		MoveConcurrency: filesystem.DefaultMoveConcurrency,
	}
}

// Load parses args (without the program name) and reads the environment
// through getenv
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("bucketfs", flag.ContinueOnError)
	configPath := fs.String("config", getenv(envPrefix+"CONFIG"), "Path to a YAML configuration file")
	listen := fs.String("listen", "", "Address to listen on")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, console)")
	accountRoot := fs.String("account-root", "", "Directory below the storage root path to serve")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(getenv); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "account-root":
			cfg.AccountRoot = *accountRoot
		}
	})
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"LISTEN":                    &c.Listen,
		"LOG_LEVEL":                 &c.Log.Level,
		"LOG_FORMAT":                &c.Log.Format,
		"STORAGE_BACKEND":           &c.Storage.Backend,
		"STORAGE_ENDPOINT":          &c.Storage.Endpoint,
		"STORAGE_REGION":            &c.Storage.Region,
		"STORAGE_ACCESS_KEY_ID":     &c.Storage.AccessKeyID,
		"STORAGE_ACCESS_KEY_SECRET": &c.Storage.AccessKeySecret,
		"STORAGE_SESSION_TOKEN":     &c.Storage.SessionToken,
		"STORAGE_BUCKET":            &c.Storage.BucketName,
		"STORAGE_ROOT_PATH":         &c.Storage.RootPath,
		"ACCOUNT_ROOT":              &c.AccountRoot,
	}
	for name, dst := range strs {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PAGE_SIZE":        &c.PageSize,
		"MOVE_CONCURRENCY": &c.MoveConcurrency,
	}
	for name, dst := range ints {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	if v := getenv(envPrefix + "STORAGE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTORAGE_SECURE: %w", envPrefix, err)
		}
		c.Storage.Secure = &secure
	}
	return nil
}

// Validate checks the server settings. Storage settings are validated by
// provider.New when the store is built.
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen address %q: %w", c.Listen, err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log format must be json or console, got %q", c.Log.Format))
	}
	if c.PageSize < 0 || c.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("page size must be between 0 and 1000, got %d", c.PageSize))
	}
	if c.MoveConcurrency < 1 {
		errs = append(errs, fmt.Errorf("move concurrency must be at least 1, got %d", c.MoveConcurrency))
	}
	return errors.Join(errs...)
}
