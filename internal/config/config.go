// Package config loads the apicheck configuration: target environment
// profiles, login credentials for the auth bootstrap, schema and feature
// locations, and report settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = "apicheck.yaml"

// Environment variables read by Select.
const (
	EnvVar     = "API_ENV"
	BaseURLVar = "API_BASE_URL"
)

// DefaultEnv is the profile used when nothing else selects one.
const DefaultEnv = "development"

// DefaultTimeout applies to profiles that do not set one.
const DefaultTimeout = 30 * time.Second

// Profile is one target environment.
type Profile struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Login describes the request made by the auth bootstrap.
type Login struct {
	Endpoint   string `yaml:"endpoint"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	TokenField string `yaml:"token_field"`
	StashKey   string `yaml:"stash_key"`
}

// Report configures suite output.
type Report struct {
	Format   string `yaml:"format"`
	Cucumber string `yaml:"cucumber"` // cucumber JSON report path; empty disables it
}

// Config represents the contents of apicheck.yaml.
type Config struct {
	Environments map[string]Profile `yaml:"environments"`
	Login        Login              `yaml:"login"`
	SchemaRoot   string             `yaml:"schema_root"`
	Features     []string           `yaml:"features"`
	Report       Report             `yaml:"report"`
	LogLevel     string             `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environments: map[string]Profile{
			"development": {BaseURL: "https://dummyjson.com", Timeout: DefaultTimeout},
			"staging":     {BaseURL: "https://staging-api-url.com", Timeout: DefaultTimeout},
		},
		Login: Login{
			Endpoint:   "/auth/login",
			Username:   "emilys",
			Password:   "emilyspass",
			TokenField: "accessToken",
			StashKey:   "authToken",
		},
		SchemaRoot: ".",
		Features:   []string{"features"},
		Report: Report{
			Format:   "progress",
			Cucumber: "reports/cucumber-report.json",
		},
		LogLevel: "info",
	}
}

// Load reads the config at path on top of the built-in defaults. Profiles in
// the file override or add to the built-in ones. Returns the defaults if the
// file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Environments == nil {
		c.Environments = def.Environments
	}
	for name, p := range c.Environments {
		if p.Timeout <= 0 {
			p.Timeout = DefaultTimeout
			c.Environments[name] = p
		}
	}
	if c.Login.Endpoint == "" {
		c.Login.Endpoint = def.Login.Endpoint
	}
	if c.Login.TokenField == "" {
		c.Login.TokenField = def.Login.TokenField
	}
	if c.Login.StashKey == "" {
		c.Login.StashKey = def.Login.StashKey
	}
	if c.SchemaRoot == "" {
		c.SchemaRoot = def.SchemaRoot
	}
	if len(c.Features) == 0 {
		c.Features = def.Features
	}
	if c.Report.Format == "" {
		c.Report.Format = def.Report.Format
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate checks that every profile has an absolute http(s) base URL.
func (c *Config) Validate() error {
	for _, name := range c.ProfileNames() {
		p := c.Environments[name]
		u, err := url.Parse(p.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("environment %q: base_url %q is not an absolute http(s) URL", name, p.BaseURL)
		}
	}
	return nil
}

// ProfileNames returns the configured environment names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvName resolves the environment to use: name if non-empty, else $API_ENV,
// else DefaultEnv.
func EnvName(name string) string {
	if name != "" {
		return name
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	return DefaultEnv
}

// Select returns the profile chosen by EnvName(name), with $API_BASE_URL
// overriding its base URL when set.
func (c *Config) Select(name string) (string, Profile, error) {
	name = EnvName(name)
	p, ok := c.Environments[name]
	if !ok {
		return "", Profile{}, fmt.Errorf("unknown environment %q (known: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	if override := os.Getenv(BaseURLVar); override != "" {
		p.BaseURL = override
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	return name, p, nil
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none are
// given) into the process environment. Variables already set are kept and
// missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}
