// Package config loads pkgfeed configuration from YAML, the environment
// and an optional .env file, and serves per-attempt policy snapshots.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/spf13/viper"
)

// DefaultFile is read when no --config flag is given
const DefaultFile = "pkgfeed.yaml"

// EnvPrefix prefixes environment overrides, e.g. PKGFEED_DATABASE_TYPE
const EnvPrefix = "PKGFEED"

// Config is the full pkgfeed configuration
type Config struct {
	SpoolDir  string          `mapstructure:"spool_dir"`
	Overwrite string          `mapstructure:"overwrite"`
	Retention RetentionConfig `mapstructure:"retention"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Signing   SigningConfig   `mapstructure:"signing"`
	Server    ServerConfig    `mapstructure:"server"`
}

// RetentionConfig bounds kept versions per tier. An unset tier is
// unbounded; zero keeps nothing of that tier besides the pushed version.
type RetentionConfig struct {
	MaxMajor      *int `mapstructure:"max_major"`
	MaxMinor      *int `mapstructure:"max_minor"`
	MaxPatch      *int `mapstructure:"max_patch"`
	MaxPrerelease *int `mapstructure:"max_prerelease"`
}

// retentionKeys have no default, so they are bound to the environment
// explicitly
var retentionKeys = []string{
	"retention.max_major",
	"retention.max_minor",
	"retention.max_patch",
	"retention.max_prerelease",
}

type DatabaseConfig struct {
	Type             string `mapstructure:"type"`
	ConnectionString string `mapstructure:"connection_string"`
}

type StorageConfig struct {
	Type     string `mapstructure:"type"`
	Path     string `mapstructure:"path"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

type SearchConfig struct {
	Type    string `mapstructure:"type"`
	Address string `mapstructure:"address"`
	Prefix  string `mapstructure:"prefix"`
}

type SigningConfig struct {
	GPGKey        string `mapstructure:"gpg_key"`
	GPGPassphrase string `mapstructure:"gpg_passphrase"`
}

type ServerConfig struct {
	Listen         string `mapstructure:"listen"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("spool_dir", "")
	v.SetDefault("overwrite", "disallow")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection_string", "pkgfeed.db")
	v.SetDefault("storage.type", "filesystem")
	v.SetDefault("storage.path", "packages")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("search.type", "database")
	v.SetDefault("search.address", "")
	v.SetDefault("search.prefix", "pkgfeed")
	v.SetDefault("signing.gpg_key", "")
	v.SetDefault("signing.gpg_passphrase", "")
	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.max_upload_bytes", 256<<20)
}

// New returns a viper instance reading path. A missing file is allowed
// only when path is the default.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range retentionKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, configError(err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || isNotExist(err)) {
			return nil, configError(fmt.Errorf("failed to read config %s: %w", path, err))
		}
	}
	return v, nil
}

// Load reads and decodes the configuration at path
func Load(path string) (*viper.Viper, *Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

// Decode unmarshals and validates the configuration held by v
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configError(fmt.Errorf("failed to decode config: %w", err))
	}
	if _, err := cfg.Snapshot(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Snapshot converts the hot-reloadable part of the configuration
func (c *Config) Snapshot() (models.Snapshot, error) {
	policy, err := models.ParseOverwritePolicy(c.Overwrite)
	if err != nil {
		return models.Snapshot{}, configError(err)
	}

	r := c.Retention
	for name, n := range map[string]*int{
		"max_major":      r.MaxMajor,
		"max_minor":      r.MaxMinor,
		"max_patch":      r.MaxPatch,
		"max_prerelease": r.MaxPrerelease,
	} {
		if n != nil && *n < 0 {
			return models.Snapshot{}, configError(fmt.Errorf("retention.%s must not be negative", name))
		}
	}

	return models.Snapshot{
		Overwrite: policy,
		Retention: models.RetentionEnvelope{
			MaxMajor:      bound(r.MaxMajor),
			MaxMinor:      bound(r.MaxMinor),
			MaxPatch:      bound(r.MaxPatch),
			MaxPrerelease: bound(r.MaxPrerelease),
		},
	}, nil
}

func bound(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func configError(err error) error {
	return &models.IngestError{Stage: models.StageConfig, Err: err}
}
