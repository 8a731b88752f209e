// Package config loads bugzapp settings: built-in defaults, then an
// optional YAML file, then a .env file and QA_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bugzapp/internal/publish"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
	"github.com/roach88/bugzapp/internal/submission"
)

// Config is the top-level configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Runner     RunnerConfig     `yaml:"runner"`
	Submission SubmissionConfig `yaml:"submission"`
	Publish    publish.Config   `yaml:"publish"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Store converts the section to the form store.Open takes.
func (c StorageConfig) Store() store.Config {
	return store.Config{Backend: c.Backend, Dir: c.Dir, SQLitePath: c.SQLitePath}
}

type RunnerConfig struct {
	EvidenceDir string        `yaml:"evidence_dir"`
	StepTimeout time.Duration `yaml:"step_timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

type SubmissionConfig struct {
	StorePath         string  `yaml:"store_path"`
	MaxPages          int     `yaml:"max_pages"`
	MaxDepth          int     `yaml:"max_depth"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	UserAgent         string  `yaml:"user_agent"`
}

// Discovery converts the section to discovery options.
func (c SubmissionConfig) Discovery() submission.DiscoveryOptions {
	return submission.DiscoveryOptions{
		MaxPages:          c.MaxPages,
		MaxDepth:          c.MaxDepth,
		UserAgent:         c.UserAgent,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load builds the effective configuration. path may be empty, in which
// case only defaults and the environment apply. envFile names a dotenv
// file to load first; a missing file is not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, qa.WrapError(qa.ErrCodeConfiguration, err, "read config %s", path)
		}
		if err := decode(data, cfg); err != nil {
			return nil, qa.WrapError(qa.ErrCodeConfiguration, err, "parse config %s", path)
		}
	}
	if err := LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg, rejecting unknown keys. An empty document
// leaves cfg unchanged.
func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml: %w", err)
	}
	return nil
}
