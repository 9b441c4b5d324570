// Package config loads daemon configuration from a YAML file and
// RENDERTRACK_* environment variables, with environment taking
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vidforge/rendertrack/pkg/auth"
)

// BackendConfig configures one render backend variant
type BackendConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// TriggerConfig configures the downstream completion collaborators.
// Empty base URLs disable the corresponding dispatch.
type TriggerConfig struct {
	PublishBaseURL string `mapstructure:"publish_base_url"`
	StageBaseURL   string `mapstructure:"stage_base_url"`
}

// ArtifactsConfig configures output URL resolution
type ArtifactsConfig struct {
	Endpoint        string        `mapstructure:"endpoint"` // empty: pass references through
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// Config is the full daemon configuration
type Config struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	APIKey         string `mapstructure:"api_key"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsAddr    string `mapstructure:"metrics_addr"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "json" or "console"

	StoreDriver string `mapstructure:"store_driver"` // "sqlite" or "memory"
	StorePath   string `mapstructure:"store_path"`

	IdentitiesFile string `mapstructure:"identities_file"`

	Serverless BackendConfig   `mapstructure:"serverless"`
	GPU        BackendConfig   `mapstructure:"gpu"`
	Local      BackendConfig   `mapstructure:"local"`
	Triggers   TriggerConfig   `mapstructure:"triggers"`
	Artifacts  ArtifactsConfig `mapstructure:"artifacts"`
}

// Load reads configuration from the given file (optional) and the
// environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("store_path", "rendertrack.db")
	v.SetDefault("artifacts.presign_expiry", 15*time.Minute)
	v.SetDefault("serverless.enabled", true)
	v.SetDefault("gpu.enabled", true)
	v.SetDefault("local.enabled", false)

	// Keys without meaningful defaults still need to be known to viper
	// so environment overrides reach Unmarshal.
	for _, key := range []string{
		"api_key", "identities_file",
		"serverless.base_url", "serverless.api_key",
		"gpu.base_url", "gpu.api_key",
		"local.base_url", "local.api_key",
		"triggers.publish_base_url", "triggers.stage_base_url",
		"artifacts.endpoint", "artifacts.access_key_id", "artifacts.secret_access_key",
	} {
		v.SetDefault(key, "")
	}

	v.SetEnvPrefix("RENDERTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// identitiesFile is the YAML shape of the callback identities file
type identitiesFile struct {
	Identities []auth.BackendIdentity `yaml:"identities"`
}

// LoadIdentities reads the callback identities file. A missing path
// yields an empty set, which rejects every callback.
func LoadIdentities(path string) (*auth.IdentitySet, error) {
	if path == "" {
		return auth.NewIdentitySet(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identities file %s: %w", path, err)
	}

	var file identitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing identities file %s: %w", path, err)
	}

	for i, id := range file.Identities {
		if id.Name == "" || id.Secret == "" {
			return nil, fmt.Errorf("identities file %s: entry %d needs name and secret", path, i)
		}
	}
	return auth.NewIdentitySet(file.Identities...), nil
}
