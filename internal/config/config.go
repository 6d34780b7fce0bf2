// Package config loads microfactory settings from an optional YAML file and
// the process environment. The resulting Config is passed explicitly to the
// store, publisher and pipeline constructors.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gorewood/microfactory/internal/output"
)

const appName = "microfactory"

// FileName is the project-local configuration file looked up in the working directory.
const FileName = "microfactory.yaml"

// Store backends.
const (
	BackendGitHub = "github"
	BackendDir    = "dir"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config is the full microfactory configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Source is the file the config was read from, empty when only defaults
	// and environment were used.
	Source string `yaml:"-"`
}

// StoreConfig selects and configures the remote store.
type StoreConfig struct {
	Backend    string        `yaml:"backend"`
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"`
	Repository string        `yaml:"repository"` // owner/repo
	Branch     string        `yaml:"branch"`
	Dir        string        `yaml:"dir"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	S3         S3Config      `yaml:"s3"`
}

// S3Config configures the S3/MinIO backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LLMConfig selects the model used by every agent.
type LLMConfig struct {
	Model    string        `yaml:"model"`
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

// PipelineConfig controls which artifacts a run produces and how it names them.
type PipelineConfig struct {
	WithSQL       bool   `yaml:"with_sql"`
	WithMarketing bool   `yaml:"with_marketing"`
	Naming        string `yaml:"naming"` // fixed, classify, title, timestamp
	Slug          string `yaml:"slug"`
	Hub           string `yaml:"hub"` // catalog or single
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendGitHub,
			BaseURL: "https://api.github.com",
			Branch:  "main",
			Timeout: 30 * time.Second,
			Retries: 2,
			S3:      S3Config{Region: "us-east-1", UseSSL: true},
		},
		LLM: LLMConfig{
			Model:   "openai-mini",
			Timeout: 3 * time.Minute,
			Retries: 2,
		},
		Pipeline: PipelineConfig{
			Naming: "title",
			Slug:   "tool",
			Hub:    "catalog",
		},
	}
}

// Load reads path (or the first default location that exists when path is
// empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = []string{FileName}
		if dir := Dir(); dir != "" {
			candidates = append(candidates, filepath.Join(dir, "config.yaml"))
		}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == "" {
				continue
			}
			return nil, output.NewUserError(fmt.Sprintf("reading config %s: %v", candidate, err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, output.NewUserError(fmt.Sprintf("parsing config %s: %v", candidate, err))
		}
		cfg.Source = candidate
		break
	}

	applyEnv(cfg, getenv)
	return cfg, nil
}

// applyEnv overrides file values with any non-empty environment variable.
func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.Store.Backend, "MICROFACTORY_STORE")
	set(&cfg.Store.BaseURL, "MICROFACTORY_STORE_URL")
	set(&cfg.Store.Token, "GITHUB_TOKEN")
	set(&cfg.Store.Repository, "GITHUB_REPOSITORY")
	set(&cfg.Store.Branch, "MICROFACTORY_BRANCH")
	set(&cfg.Store.Dir, "MICROFACTORY_DIR")

	set(&cfg.Store.S3.Endpoint, "MICROFACTORY_S3_ENDPOINT")
	set(&cfg.Store.S3.Region, "MICROFACTORY_S3_REGION")
	set(&cfg.Store.S3.AccessKey, "MICROFACTORY_S3_ACCESS_KEY")
	set(&cfg.Store.S3.SecretKey, "MICROFACTORY_S3_SECRET_KEY")
	set(&cfg.Store.S3.Bucket, "MICROFACTORY_S3_BUCKET")
	set(&cfg.Store.S3.Prefix, "MICROFACTORY_S3_PREFIX")
	if v := getenv("MICROFACTORY_S3_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.S3.UseSSL = b
		}
	}

	set(&cfg.LLM.Model, "MICROFACTORY_MODEL")
	set(&cfg.LLM.Provider, "MICROFACTORY_PROVIDER")
}

// Validate checks that the selected backend has everything it needs.
func (c *Config) Validate() error {
	s := c.Store
	switch s.Backend {
	case BackendGitHub:
		if s.Token == "" {
			return output.NewUserError("GITHUB_TOKEN environment variable not set")
		}
		owner, repo, ok := strings.Cut(s.Repository, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return output.NewUserError(fmt.Sprintf("store repository must be owner/repo, got %q", s.Repository))
		}
		if s.Branch == "" {
			return output.NewUserError("store branch must not be empty")
		}
	case BackendDir:
		if s.Dir == "" {
			return output.NewUserError("store dir must be set for the dir backend (MICROFACTORY_DIR)")
		}
	case BackendS3:
		if s.S3.Endpoint == "" || s.S3.Bucket == "" {
			return output.NewUserError("s3 endpoint and bucket are required")
		}
		if s.S3.AccessKey == "" || s.S3.SecretKey == "" {
			return output.NewUserError("s3 access key and secret key are required")
		}
	case BackendMemory:
	default:
		return output.NewUserError(fmt.Sprintf("unknown store backend %q (github, dir, s3, memory)", s.Backend))
	}

	if s.Timeout <= 0 {
		return output.NewUserError("store timeout must be positive")
	}
	if s.Retries < 0 || c.LLM.Retries < 0 {
		return output.NewUserError("retries must be non-negative")
	}

	switch c.Pipeline.Naming {
	case "fixed", "classify", "title", "timestamp":
	default:
		return output.NewUserError(fmt.Sprintf("unknown naming %q (fixed, classify, title, timestamp)", c.Pipeline.Naming))
	}
	switch c.Pipeline.Hub {
	case "catalog", "single":
	default:
		return output.NewUserError(fmt.Sprintf("unknown hub mode %q (catalog, single)", c.Pipeline.Hub))
	}
	return nil
}
