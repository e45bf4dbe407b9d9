package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

// Config holds the full application configuration.
type Config struct {
	Environment string          `yaml:"environment" mapstructure:"environment"`
	Store       StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Notion      NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server      ServerConfig    `yaml:"server" mapstructure:"server"`
	Access      AccessConfig    `yaml:"access" mapstructure:"access"`
	Prompts     PromptsConfig   `yaml:"prompts" mapstructure:"prompts"`
	Export      ExportConfig    `yaml:"export" mapstructure:"export"`
	Log         LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	Model        string  `yaml:"model" mapstructure:"model"`
	MaxTokens    int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// NotionConfig holds the Notion integration token and the database page
// drafts are published into.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DocumentDB string `yaml:"document_db" mapstructure:"document_db"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AccessConfig configures the admin access gate. When Enforce is false a
// failed or non-admin role lookup is logged as degraded access but not
// blocked; production environments default to enforcing.
type AccessConfig struct {
	Enforce bool `yaml:"enforce" mapstructure:"enforce"`
}

// PromptsConfig configures prompt composition.
type PromptsConfig struct {
	// Language is the BCP-47 tag for free-text values in AI responses.
	Language string `yaml:"language" mapstructure:"language"`
}

// ExportConfig configures history/document export.
type ExportConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
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
	v.SetEnvPrefix("CERTIMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("environment", "development")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("anthropic.rate_limit_rps", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("prompts.language", "en")
	v.SetDefault("export.limit", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	// The access gate enforces by default only in production. An explicit
	// access.enforce setting always wins. Read through GetBool because
	// Unmarshal does not see env-only keys that have no default.
	if v.IsSet("access.enforce") {
		cfg.Access.Enforce = v.GetBool("access.enforce")
	} else {
		cfg.Access.Enforce = cfg.Environment == "production"
	}

	if _, err := language.Parse(cfg.Prompts.Language); err != nil {
		return nil, eris.Wrapf(err, "config: invalid prompts.language %q", cfg.Prompts.Language)
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
