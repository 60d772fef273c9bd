package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/aihen-app/chat-gateway/internal/pkg/redis"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Redis    redis.Config   `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// UpstreamConfig describes the external services the gateway fronts.
type UpstreamConfig struct {
	Chat    ServiceConfig `mapstructure:"chat"`
	Session ServiceConfig `mapstructure:"session"`
	Usage   ServiceConfig `mapstructure:"usage"`
	Items   ServiceConfig `mapstructure:"items"`
	Image   ServiceConfig `mapstructure:"image"`

	// Dialect selects the chat wire vocabulary: "ndjson" (legacy) or
	// "sse" (current).
	Dialect string `mapstructure:"dialect"`

	// HistoryShape selects the stored-history schema the session
	// service returns: "log" (flat event log) or "turns" (one record
	// per turn).
	HistoryShape string `mapstructure:"history_shape"`
}

const (
	DialectNDJSON = "ndjson"
	DialectSSE    = "sse"

	HistoryShapeLog   = "log"
	HistoryShapeTurns = "turns"
)

type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Output           string        `mapstructure:"output"`
	File             FileLogConfig `mapstructure:"file"`
	EnableCaller     bool          `mapstructure:"enablecaller"`
	EnableStacktrace bool          `mapstructure:"enablestacktrace"`
}

type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

// AuthConfig verifies tokens minted by the external identity provider.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Upstream.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the upstream endpoints the gateway cannot run without.
func (c *UpstreamConfig) Validate() error {
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("upstream.chat.base_url is required")
	}
	if c.Session.BaseURL == "" {
		return fmt.Errorf("upstream.session.base_url is required")
	}
	switch c.Dialect {
	case "", DialectNDJSON, DialectSSE:
	default:
		return fmt.Errorf("upstream.dialect must be \"ndjson\" or \"sse\", got %q", c.Dialect)
	}
	switch c.HistoryShape {
	case "", HistoryShapeLog, HistoryShapeTurns:
	default:
		return fmt.Errorf("upstream.history_shape must be \"log\" or \"turns\", got %q", c.HistoryShape)
	}
	return nil
}
