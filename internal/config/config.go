package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Library LibraryConfig `yaml:"library"`
	SUT     SUTConfig     `yaml:"sut"`
	Driver  DriverConfig  `yaml:"driver"`
	Storage StorageConfig `yaml:"storage"`
}

type LibraryConfig struct {
	Dataset                string `yaml:"dataset,omitempty"`
	DatasetPath            string `yaml:"dataset_path,omitempty"`
	PerformanceSampleCount int    `yaml:"performance_sample_count,omitempty"`
	Metric                 string `yaml:"metric,omitempty"`
}

type SUTConfig struct {
	Backend  string                   `yaml:"backend,omitempty"`
	Backends map[string]BackendConfig `yaml:"backends,omitempty"`
}

type BackendConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type DriverConfig struct {
	Concurrency int `yaml:"concurrency,omitempty"`
}

type StorageConfig struct {
	Path string `yaml:"path,omitempty"` // SQLite file path
}

// Load reads a config file, applies defaults and environment API-key
// overrides. A missing file at the default path yields the defaults.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}
	usingDefault := path == DefaultPath

	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		if !(usingDefault && os.IsNotExist(err)) {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	} else if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SUT.Backends == nil {
		cfg.SUT.Backends = make(map[string]BackendConfig)
	}
	if strings.TrimSpace(cfg.SUT.Backend) == "" {
		cfg.SUT.Backend = "echo"
	}
	if strings.TrimSpace(cfg.Library.Dataset) == "" && strings.TrimSpace(cfg.Library.DatasetPath) == "" {
		cfg.Library.Dataset = "demo"
	}
	if strings.TrimSpace(cfg.Library.Metric) == "" {
		cfg.Library.Metric = "exact"
	}
	if cfg.Driver.Concurrency <= 0 {
		cfg.Driver.Concurrency = 4
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = "data/samplebench.db"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		b := cfg.SUT.Backends["claude"]
		b.APIKey = v
		cfg.SUT.Backends["claude"] = b
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		b := cfg.SUT.Backends["claude"]
		b.APIKey = v
		cfg.SUT.Backends["claude"] = b
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		b := cfg.SUT.Backends["openai"]
		b.APIKey = v
		cfg.SUT.Backends["openai"] = b
	}
}
