// Package config loads hub configuration from file and environment and
// initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	TDX        TDXConfig        `yaml:"tdx" mapstructure:"tdx"`
	HR         HRConfig         `yaml:"hr" mapstructure:"hr"`
	LDAP       LDAPConfig       `yaml:"ldap" mapstructure:"ldap"`
	MCommunity MCommunityConfig `yaml:"mcommunity" mapstructure:"mcommunity"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Merge      MergeConfig      `yaml:"merge" mapstructure:"merge"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// TDXConfig holds ticketing/asset system API settings.
type TDXConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	AppID   string `yaml:"app_id" mapstructure:"app_id"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// HRConfig holds HR API settings.
type HRConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// LDAPConfig holds directory REST gateway settings.
type LDAPConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	BaseDN  string `yaml:"base_dn" mapstructure:"base_dn"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// MCommunityConfig holds the second directory service settings.
type MCommunityConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// IngestConfig configures the change-tracked ingest stage.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
}

// MergeConfig configures the consolidation stage.
type MergeConfig struct {
	PrioritiesPath string `yaml:"priorities_path" mapstructure:"priorities_path"`
}

// QualityConfig holds the deduction weights behind quality scores. The
// weights are policy, not contract; only the [0,1] bounds are guaranteed.
type QualityConfig struct {
	MissingSource       float64 `yaml:"missing_source" mapstructure:"missing_source"`
	MissingField        float64 `yaml:"missing_field" mapstructure:"missing_field"`
	Conflict            float64 `yaml:"conflict" mapstructure:"conflict"`
	SingleEvidence      float64 `yaml:"single_evidence" mapstructure:"single_evidence"`
	CompositeFieldGap   float64 `yaml:"composite_field_gap" mapstructure:"composite_field_gap"`
}

// ClassifierConfig configures role classification.
type ClassifierConfig struct {
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LSATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("ingest.concurrency", 8)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("quality.missing_source", 0.15)
	v.SetDefault("quality.missing_field", 0.10)
	v.SetDefault("quality.conflict", 0.05)
	v.SetDefault("quality.single_evidence", 0.25)
	v.SetDefault("quality.composite_field_gap", 0.05)
	v.SetDefault("classifier.max_results", 3)
	v.SetDefault("ldap.base_dn", "ou=People,dc=umich,dc=edu")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
