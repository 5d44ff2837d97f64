// Package config loads and defaults the engine and scheduler's external
// configuration: concurrency caps, chunk sizing, the default output
// directory, connection timeout, SSH server aliases, MinIO aliases, and the
// HTTP user agent.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults, named after the quantities spec.md calls out explicitly.
const (
	DefaultMaxConcurrentTaskNumber = 4
	DefaultConcurrentNumber        = 4
	DefaultMinimumChunkSize        = 100 * 1024 // 100 KiB
	DefaultConnectionTimeout       = 60 * time.Second
	DefaultUserAgent               = "caracal/1.0"
)

// SSHServer is one entry of the ssh_servers alias map.
type SSHServer struct {
	Endpoint     string `yaml:"endpoint"`
	User         string `yaml:"user"`
	IdentityFile string `yaml:"identity_file"`
}

// MinioAlias is one entry of the minio_aliases map.
type MinioAlias struct {
	EndpointURL string `yaml:"endpoint_url"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
}

// Config is the full set of external configuration consumed by the core.
type Config struct {
	MaxConcurrentTaskNumber int                   `yaml:"max_concurrent_task_number"`
	DefaultConcurrentNumber int                   `yaml:"default_concurrent_number"`
	MinimumChunkSize        uint64                `yaml:"minimum_chunk_size"`
	DefaultOutputDirectory  string                `yaml:"default_output_directory"`
	ConnectionTimeout       time.Duration         `yaml:"connection_timeout"`
	SSHServers              map[string]SSHServer  `yaml:"ssh_servers"`
	MinioAliases            map[string]MinioAlias `yaml:"minio_aliases"`
	UserAgent               string                `yaml:"user_agent"`
}

// Default returns a Config populated with every default named in SPEC_FULL.md.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		MaxConcurrentTaskNumber: DefaultMaxConcurrentTaskNumber,
		DefaultConcurrentNumber: DefaultConcurrentNumber,
		MinimumChunkSize:        DefaultMinimumChunkSize,
		DefaultOutputDirectory:  filepath.Join(home, "Downloads"),
		ConnectionTimeout:       DefaultConnectionTimeout,
		SSHServers:              map[string]SSHServer{},
		MinioAliases:            map[string]MinioAlias{},
		UserAgent:               DefaultUserAgent,
	}
}

// CaracalDir returns ~/.caracal, creating it if needed is the caller's job
// (see EnsureDirs).
func CaracalDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".caracal")
}

// GetLogsDir returns the directory debug logs are written to.
func GetLogsDir() string {
	return filepath.Join(CaracalDir(), "logs")
}

// ConfigPath returns the path of the YAML config file.
func ConfigPath() string {
	return filepath.Join(CaracalDir(), "config.yaml")
}

// EnsureDirs creates the caracal state and logs directories.
func EnsureDirs() error {
	if err := os.MkdirAll(CaracalDir(), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(GetLogsDir(), 0o755)
}

// Load reads the YAML config file, creating it with defaults on first run.
func Load() (*Config, error) {
	if err := EnsureDirs(); err != nil {
		return nil, err
	}
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg := Default()
		return cfg, cfg.Save()
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.MinimumChunkSize == 0 {
		cfg.MinimumChunkSize = DefaultMinimumChunkSize
	}
	return cfg, nil
}

// Save writes the config back to disk.
func (c *Config) Save() error {
	if err := EnsureDirs(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0o644)
}
