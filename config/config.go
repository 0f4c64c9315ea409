// Package config loads server configuration from a YAML file and the
// environment. Precedence: environment > file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the fintalk server.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Compaction CompactionConfig `mapstructure:"compaction"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the PostgreSQL connection settings. When URL is empty
// the server runs with in-memory storage.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AnthropicConfig holds the model settings. The API key is read from the
// ANTHROPIC_API_KEY environment variable by the SDK itself.
type AnthropicConfig struct {
	ChatModel    string `mapstructure:"chat_model"`
	SummaryModel string `mapstructure:"summary_model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
}

// CompactionConfig controls history summarization.
type CompactionConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	TailTokenBudget  int  `mapstructure:"tail_token_budget"`
	SummaryMaxTokens int  `mapstructure:"summary_max_tokens"`
}

// MemoryConfig controls long-term memory recall.
type MemoryConfig struct {
	RecallLimit int `mapstructure:"recall_limit"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration. A missing file is not an error; defaults and
// FINTALK_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FINTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server.addr must not be empty")
	}
	if c.Compaction.TailTokenBudget <= 0 {
		return errors.New("config: compaction.tail_token_budget must be positive")
	}
	if c.Compaction.SummaryMaxTokens <= 0 {
		return errors.New("config: compaction.summary_max_tokens must be positive")
	}
	if c.Memory.RecallLimit < 0 {
		return errors.New("config: memory.recall_limit must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute) // SSE turns can run long
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")

	v.SetDefault("anthropic.chat_model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.summary_model", "claude-3-5-haiku-20241022")
	v.SetDefault("anthropic.max_tokens", 4096)

	v.SetDefault("compaction.enabled", true)
	v.SetDefault("compaction.tail_token_budget", 20000)
	v.SetDefault("compaction.summary_max_tokens", 500)

	v.SetDefault("memory.recall_limit", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
